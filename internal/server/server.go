// Package server is the HTTP layer: job submission, polling and cleanup, file download, synchronous download and media
// info.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/internal/jobs"
)

// A MediaResolver describes media URLs, like mediagrab.ProviderRegistry.
type MediaResolver interface {
	Resolve(ctx context.Context, url string) (*mediagrab.Match, *mediagrab.MediaInfo, error)
}

type Config struct {
	// Origins allowed to make cross-origin requests; empty means any.
	AllowedOrigins []string
	// Maximum size of a request body.
	MaxBodyBytes int64
}

var DefaultConfig = Config{
	MaxBodyBytes: 64 * 1024,
}

type Server struct {
	config   Config
	registry *jobs.Registry
	worker   *jobs.Worker
	fetcher  jobs.Fetcher
	resolver MediaResolver
	log      *zap.SugaredLogger
}

func New(config Config, registry *jobs.Registry, worker *jobs.Worker, fetcher jobs.Fetcher, resolver MediaResolver) *Server {
	return &Server{
		config:   config,
		registry: registry,
		worker:   worker,
		fetcher:  fetcher,
		resolver: resolver,
		log:      zap.S().Named("server"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("GET /api/jobs/{id}/file", s.handleJobFile)
	mux.HandleFunc("POST /download", s.handleDownload)
	mux.HandleFunc("POST /video_info", s.handleVideoInfo)

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition"},
	})
	return c.Handler(s.withLogger(mux))
}

// withLogger gives every request a logger tagged with a request ID, and logs the outcome.
func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		logger := s.log.Desugar().With(zap.String("request_id", requestID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if s.config.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(rec, r.Body, s.config.MaxBodyBytes)
		}
		next.ServeHTTP(rec, r.WithContext(mediagrab.WithLogger(r.Context(), logger)))
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPStatus is the response status for a failure of the given kind.
func HTTPStatus(kind mediagrab.Kind) int {
	switch kind {
	case mediagrab.KindInvalidInput:
		return http.StatusBadRequest
	case mediagrab.KindMetadataUnavailable, mediagrab.KindFormatUnavailable, mediagrab.KindRelayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(mediagrab.KindOf(err))
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		status = http.StatusRequestEntityTooLarge
	}
	if status >= 500 {
		mediagrab.Logger(r.Context()).Sugar().Errorw("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: mediagrab.UserMessage(err)})
}
