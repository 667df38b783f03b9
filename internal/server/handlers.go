package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/generic"
	"github.com/alanbriolat/mediagrab/internal/jobs"
)

type fetchRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// parseFetchRequest accepts either a JSON body or form values.
func parseFetchRequest(r *http.Request) (fetchRequest, error) {
	var req fetchRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, mediagrab.NewError(mediagrab.KindInvalidInput, "parse request", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, mediagrab.NewError(mediagrab.KindInvalidInput, "parse request", err)
		}
		req.URL = r.PostForm.Get("url")
		req.Format = r.PostForm.Get("format")
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Format = strings.TrimSpace(req.Format)
	if req.URL == "" {
		return req, mediagrab.Errorf(mediagrab.KindInvalidInput, "parse request", "missing url")
	}
	return req, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createJobResponse struct {
	JobID jobs.ID `json:"jobId"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	req, err := parseFetchRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := s.registry.Create(req.URL, req.Format)
	s.worker.Spawn(id)
	mediagrab.Logger(r.Context()).Sugar().Infow("job created", "job_id", id, "url", req.URL, "format", req.Format)
	writeJSON(w, http.StatusAccepted, createJobResponse{JobID: id})
}

// StatusResponse is the job status payload; DownloadURL is set if and only if the job completed.
type StatusResponse struct {
	Status      mediagrab.Status `json:"status"`
	Progress    int              `json:"progress"`
	Message     string           `json:"message"`
	Error       string           `json:"error,omitempty"`
	DownloadURL string           `json:"downloadUrl,omitempty"`
}

func statusResponse(job jobs.Job) StatusResponse {
	resp := StatusResponse{
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.Message,
		Error:    job.Error,
	}
	if job.Status == mediagrab.StatusCompleted {
		resp.DownloadURL = fmt.Sprintf("/api/jobs/%s/file", job.ID)
	}
	return resp
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (jobs.Job, bool) {
	id := jobs.ID(r.PathValue("id"))
	job, ok := s.registry.Snapshot(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
	}
	return job, ok
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if job, ok := s.lookupJob(w, r); ok {
		writeJSON(w, http.StatusOK, statusResponse(job))
	}
}

// JobSummary is one entry of the job list.
type JobSummary struct {
	ID        jobs.ID `json:"id"`
	SourceURL string  `json:"url"`
	StatusResponse
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	list := s.registry.List()
	summaries := make([]JobSummary, 0, len(list))
	for _, job := range list {
		summaries = append(summaries, JobSummary{ID: job.ID, SourceURL: job.SourceURL, StatusResponse: statusResponse(job)})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleDeleteJob forgets a finished job and deletes its file, along with the job's own directory once that is empty.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.registry.Remove(jobs.ID(r.PathValue("id")))
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
		return
	case errors.Is(err, jobs.ErrJobNotFinished):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "job not finished"})
		return
	case err != nil:
		writeError(w, r, mediagrab.NewError(mediagrab.KindFatal, "remove job", err))
		return
	}
	log := mediagrab.Logger(r.Context()).Sugar()
	if job.Filepath != "" {
		if err := os.Remove(job.Filepath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnw("failed to delete job file", "job_id", job.ID, "path", job.Filepath, "error", err)
		}
		if dir := filepath.Dir(job.Filepath); filepath.Base(dir) == string(job.ID) {
			_ = os.Remove(dir)
		}
	}
	log.Infow("job deleted", "job_id", job.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJobFile(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	switch job.Status {
	case mediagrab.StatusCompleted:
		s.serveFile(w, r, job.Filepath)
	case mediagrab.StatusError:
		writeJSON(w, http.StatusGone, errorResponse{Error: job.Error})
	default:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "job not finished"})
	}
}

// serveFile sends the file at path as an attachment named after its base name.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "file no longer available"})
		} else {
			writeError(w, r, mediagrab.NewError(mediagrab.KindFatal, "serve file", err))
		}
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "file no longer available"})
		return
	}
	name := filepath.Base(path)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	req, err := parseFetchRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log := mediagrab.Logger(r.Context()).Sugar()
	sink := mediagrab.ProgressFunc(func(percent generic.Option[int], message string, status mediagrab.Status) {
		log.Debugw("progress", "percent", percent.UnwrapOr(-1), "message", message, "status", status)
	})
	// A request-scoped directory keeps concurrent synchronous downloads apart.
	path, err := s.fetcher.Fetch(r.Context(), req.URL, req.Format, "sync-"+string(jobs.NewID()), sink)
	if err != nil {
		log.Infow("download failed", "url", req.URL, "error", err)
		writeError(w, r, err)
		return
	}
	log.Infow("download finished", "url", req.URL, "path", path)
	s.serveFile(w, r, path)
}

type videoInfoResponse struct {
	Title     string                 `json:"title"`
	Thumbnail string                 `json:"thumbnail"`
	Provider  string                 `json:"provider"`
	Formats   []mediagrab.FormatInfo `json:"formats"`
}

func (s *Server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	req, err := parseFetchRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	match, info, err := s.resolver.Resolve(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := videoInfoResponse{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Formats:   info.Formats,
	}
	if match != nil {
		resp.Provider = match.ProviderName
	}
	if resp.Formats == nil {
		resp.Formats = []mediagrab.FormatInfo{}
	}
	writeJSON(w, http.StatusOK, resp)
}
