package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/internal/extract"
	"github.com/alanbriolat/mediagrab/internal/extract/extracttest"
	"github.com/alanbriolat/mediagrab/internal/fetch"
	"github.com/alanbriolat/mediagrab/internal/jobs"
	"github.com/alanbriolat/mediagrab/internal/relay"
)

type fakeResolver struct {
	info *mediagrab.MediaInfo
	err  error
}

func (f *fakeResolver) Resolve(ctx context.Context, url string) (*mediagrab.Match, *mediagrab.MediaInfo, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &mediagrab.Match{ProviderName: "fake"}, f.info, nil
}

type fakeMusic struct{}

func (fakeMusic) Matches(url string) bool {
	return strings.HasPrefix(url, "https://open.spotify.com/")
}

func (fakeMusic) Resolve(ctx context.Context, url string) (*mediagrab.MediaInfo, error) {
	return &mediagrab.MediaInfo{Title: "Track", Query: "Artist - Track"}, nil
}

type fixture struct {
	config    *mediagrab.Config
	extractor *extracttest.Fake
	registry  *jobs.Registry
	worker    *jobs.Worker
	server    *httptest.Server
}

// newRelay serves a relay that answers every lookup with a 1000 byte "Song".
func newRelay(t *testing.T) *relay.Client {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": server.URL + "/test.mp4", "title": "Song"})
	})
	mux.HandleFunc("/test.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write(bytes.Repeat([]byte("a"), 1000))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return relay.NewClient(server.URL, "token", 5*time.Second, 0)
}

func newFixture(t *testing.T, resolver MediaResolver) *fixture {
	config := mediagrab.DefaultConfig
	config.DownloadDir = filepath.Join(t.TempDir(), "downloads")
	config.CookieFile = ""
	f := &fixture{config: &config, extractor: &extracttest.Fake{}}

	registry, err := jobs.NewRegistry(jobs.NilDatabase{})
	require.NoError(t, err)
	f.registry = registry
	chain := fetch.NewChain(f.config, f.extractor, newRelay(t), fakeMusic{})
	f.worker = jobs.NewWorker(context.Background(), registry, chain)
	if resolver == nil {
		resolver = &fakeResolver{err: mediagrab.Errorf(mediagrab.KindMetadataUnavailable, "resolve", "nothing")}
	}
	f.server = httptest.NewServer(New(DefaultConfig, registry, f.worker, chain, resolver).Handler())
	t.Cleanup(func() {
		f.server.Close()
		f.worker.Wait()
		registry.Close()
	})
	return f
}

func (f *fixture) postForm(t *testing.T, path string, values url.Values) *http.Response {
	resp, err := http.PostForm(f.server.URL+path, values)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) createJob(t *testing.T, values url.Values) jobs.ID {
	resp := f.postForm(t, "/api/jobs", values)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	require.NotEmpty(t, body["jobId"])
	return jobs.ID(body["jobId"])
}

// waitTerminal polls the status endpoint until the job finishes.
func (f *fixture) waitTerminal(t *testing.T, id jobs.ID) StatusResponse {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status := decode[StatusResponse](t, f.get(t, "/api/jobs/"+string(id)))
		if status.Status.IsTerminal() {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.FailNow(t, "job did not finish")
	return StatusResponse{}
}

func TestServer_JobAPIDirect(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)

	id := f.createJob(t, url.Values{"url": {"https://www.youtube.com/watch?v=abc"}, "format": {fetch.FormatAPIDirect}})
	status := f.waitTerminal(t, id)
	assert.Equal(mediagrab.StatusCompleted, status.Status)
	assert.Equal(100, status.Progress)
	assert.Empty(status.Error)
	assert.Equal("/api/jobs/"+string(id)+"/file", status.DownloadURL)
	assert.Empty(f.extractor.Calls())

	job, ok := f.registry.Snapshot(id)
	require.True(t, ok)
	assert.Equal("Song(-by Alex).mp4", filepath.Base(job.Filepath))
	assert.True(filepath.IsAbs(job.Filepath), job.Filepath)

	resp := f.get(t, status.DownloadURL)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(`attachment; filename="Song(-by Alex).mp4"`, resp.Header.Get("Content-Disposition"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Len(data, 1000)
}

func TestServer_JobMusic(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)
	f.extractor.DownloadFunc = extracttest.Succeed("Artist - Track", "webm", "mp3")

	id := f.createJob(t, url.Values{"url": {"https://open.spotify.com/track/123"}})
	status := f.waitTerminal(t, id)
	assert.Equal(mediagrab.StatusCompleted, status.Status)

	job, _ := f.registry.Snapshot(id)
	assert.True(strings.HasSuffix(job.Filepath, ".mp3"))
	downloads := f.extractor.Downloads()
	require.Len(t, downloads, 1)
	assert.Equal("ytsearch1:Artist - Track", downloads[0].Target)
}

func TestServer_JobJSONBody(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)
	f.extractor.DownloadFunc = extracttest.Succeed("Clip", "mp4", "mp4")

	resp, err := http.Post(f.server.URL+"/api/jobs", "application/json",
		strings.NewReader(`{"url": "https://example.com/clip", "format": "best"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id := jobs.ID(decode[map[string]string](t, resp)["jobId"])

	status := f.waitTerminal(t, id)
	assert.Equal(mediagrab.StatusCompleted, status.Status)
	job, _ := f.registry.Snapshot(id)
	assert.Equal("best", job.RequestedFormat)
}

func TestServer_JobStatusIdempotent(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)

	id := f.createJob(t, url.Values{"url": {"https://example.com/clip"}, "format": {fetch.FormatAPIDirect}})
	first := f.waitTerminal(t, id)
	for i := 0; i < 5; i++ {
		body, err := io.ReadAll(f.get(t, "/api/jobs/"+string(id)).Body)
		require.NoError(t, err)
		var again StatusResponse
		require.NoError(t, json.Unmarshal(body, &again))
		assert.Equal(first, again)
	}
}

func TestServer_JobNotFinished(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)
	id := f.registry.Create("https://example.com/clip", "")

	status := decode[StatusResponse](t, f.get(t, "/api/jobs/"+string(id)))
	assert.Equal(mediagrab.StatusPending, status.Status)
	assert.Empty(status.DownloadURL)
	assert.Equal(http.StatusConflict, f.get(t, "/api/jobs/"+string(id)+"/file").StatusCode)
}

func TestServer_JobFailed(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)
	id := f.registry.Create("https://example.com/clip", "")
	f.registry.Update(id, jobs.Failed(mediagrab.Errorf(mediagrab.KindRelayUnavailable, "relay lookup", "no usable download link")))

	status := decode[StatusResponse](t, f.get(t, "/api/jobs/"+string(id)))
	assert.Equal(mediagrab.StatusError, status.Status)
	assert.Equal(0, status.Progress)
	assert.Contains(status.Error, "no usable download link")
	assert.Empty(status.DownloadURL)

	resp := f.get(t, "/api/jobs/"+string(id)+"/file")
	assert.Equal(http.StatusGone, resp.StatusCode)
}

func TestServer_JobUnknown(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)

	assert.Equal(http.StatusNotFound, f.get(t, "/api/jobs/nope").StatusCode)
	assert.Equal(http.StatusNotFound, f.get(t, "/api/jobs/nope/file").StatusCode)
}

func TestServer_JobMissingURL(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)

	resp := f.postForm(t, "/api/jobs", url.Values{"url": {"  "}})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Contains(decode[map[string]string](t, resp)["error"], "missing url")
	assert.Empty(f.registry.List())
}

func TestServer_ListJobs(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)
	assert.Empty(decode[[]JobSummary](t, f.get(t, "/api/jobs")))

	first := f.registry.Create("https://example.com/one", "")
	second := f.registry.Create("https://example.com/two", "")
	f.registry.Update(second, jobs.Failed(mediagrab.Errorf(mediagrab.KindFatal, "download", "boom")))

	list := decode[[]JobSummary](t, f.get(t, "/api/jobs"))
	require.Len(t, list, 2)
	assert.Equal(first, list[0].ID)
	assert.Equal("https://example.com/one", list[0].SourceURL)
	assert.Equal(mediagrab.StatusPending, list[0].Status)
	assert.Equal(second, list[1].ID)
	assert.Equal(mediagrab.StatusError, list[1].Status)
	assert.Contains(list[1].Error, "boom")
}

func TestServer_DeleteJob(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)
	del := func(id jobs.ID) int {
		req, err := http.NewRequest(http.MethodDelete, f.server.URL+"/api/jobs/"+string(id), nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(http.StatusNotFound, del("nope"))

	pending := f.registry.Create("https://example.com/clip", "")
	assert.Equal(http.StatusConflict, del(pending))
	_, ok := f.registry.Snapshot(pending)
	assert.True(ok)

	id := f.createJob(t, url.Values{"url": {"https://www.youtube.com/watch?v=abc"}, "format": {fetch.FormatAPIDirect}})
	require.Equal(t, mediagrab.StatusCompleted, f.waitTerminal(t, id).Status)
	job, ok := f.registry.Snapshot(id)
	require.True(t, ok)
	require.FileExists(t, job.Filepath)

	assert.Equal(http.StatusNoContent, del(id))
	assert.NoFileExists(job.Filepath)
	assert.NoDirExists(filepath.Dir(job.Filepath))
	assert.DirExists(f.config.DownloadDir)
	assert.Equal(http.StatusNotFound, f.get(t, "/api/jobs/"+string(id)).StatusCode)
	assert.Equal(http.StatusNotFound, del(id))
}

func TestServer_JobFileRemoved(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)
	id := f.registry.Create("https://example.com/clip", "")
	f.registry.Update(id, jobs.Completed(filepath.Join(t.TempDir(), "gone.mp4")))

	assert.Equal(http.StatusNotFound, f.get(t, "/api/jobs/"+string(id)+"/file").StatusCode)
}

func TestServer_Download(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)
	f.extractor.DownloadFunc = extracttest.Succeed("Clip", "webm", "mp4")

	resp := f.postForm(t, "/download", url.Values{"url": {"https://example.com/clip"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(`attachment; filename="Clip(-by Alex).mp4"`, resp.Header.Get("Content-Disposition"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal("media", string(data))
	assert.Empty(f.registry.List())
}

func TestServer_DownloadFallsBackToRelay(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)
	f.extractor.DownloadFunc = func(ctx context.Context, req extract.Request, onEvent func(extract.Event)) (*extract.Info, error) {
		return nil, mediagrab.Errorf(mediagrab.KindFormatUnavailable, "download", "HTTP Error 403: Forbidden")
	}

	resp := f.postForm(t, "/download", url.Values{"url": {"https://example.com/clip"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(`attachment; filename="Song(-by Alex).mp4"`, resp.Header.Get("Content-Disposition"))
}

type fetchFunc func(ctx context.Context, url string, format string, jobID string, sink mediagrab.ProgressSink) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, url string, format string, jobID string, sink mediagrab.ProgressSink) (string, error) {
	return f(ctx, url, format, jobID, sink)
}

func TestServer_DownloadFailure(t *testing.T) {
	assert := assert_.New(t)
	fetcher := fetchFunc(func(ctx context.Context, url string, format string, jobID string, sink mediagrab.ProgressSink) (string, error) {
		return "", mediagrab.Errorf(mediagrab.KindRelayUnavailable, "relay lookup", "\x1b[0;31mno usable\x1b[0m download\nlink")
	})
	registry, err := jobs.NewRegistry(nil)
	require.NoError(t, err)
	defer registry.Close()
	server := httptest.NewServer(New(DefaultConfig, registry, jobs.NewWorker(context.Background(), registry, fetcher), fetcher, &fakeResolver{}).Handler())
	defer server.Close()

	resp, err := http.PostForm(server.URL+"/download", url.Values{"url": {"https://example.com/clip"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(http.StatusBadGateway, resp.StatusCode)
	assert.Equal("application/json", resp.Header.Get("Content-Type"))
	assert.Equal("relay fetch failed (relay lookup): no usable download link", decode[map[string]string](t, resp)["error"])
}

func TestServer_VideoInfo(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, &fakeResolver{info: &mediagrab.MediaInfo{
		Title:     "Clip",
		Thumbnail: "https://example.com/thumb.jpg",
		Formats:   []mediagrab.FormatInfo{{ID: "22", Ext: "mp4", Note: "720p"}},
	}})

	resp := f.postForm(t, "/video_info", url.Values{"url": {"https://example.com/clip"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[videoInfoResponse](t, resp)
	assert.Equal("Clip", body.Title)
	assert.Equal("https://example.com/thumb.jpg", body.Thumbnail)
	assert.Equal("fake", body.Provider)
	assert.Equal([]mediagrab.FormatInfo{{ID: "22", Ext: "mp4", Note: "720p"}}, body.Formats)
}

func TestServer_VideoInfoFailure(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)

	resp := f.postForm(t, "/video_info", url.Values{"url": {"https://example.com/clip"}})
	assert.Equal(http.StatusBadGateway, resp.StatusCode)
	assert.Contains(decode[map[string]string](t, resp)["error"], "metadata unavailable")

	resp = f.postForm(t, "/video_info", url.Values{})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestServer_CORS(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, nil)

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/jobs", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal("*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHTTPStatus(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal(http.StatusBadRequest, HTTPStatus(mediagrab.KindInvalidInput))
	assert.Equal(http.StatusBadGateway, HTTPStatus(mediagrab.KindMetadataUnavailable))
	assert.Equal(http.StatusBadGateway, HTTPStatus(mediagrab.KindFormatUnavailable))
	assert.Equal(http.StatusBadGateway, HTTPStatus(mediagrab.KindRelayUnavailable))
	assert.Equal(http.StatusInternalServerError, HTTPStatus(mediagrab.KindFileMissingAfterProcessing))
	assert.Equal(http.StatusInternalServerError, HTTPStatus(mediagrab.KindFatal))
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t, nil)
	assert_.Equal(t, http.StatusOK, f.get(t, "/healthz").StatusCode)
}
