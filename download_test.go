package mediagrab

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressRecord struct {
	downloaded, expected int64
}

func TestDownload_SaveHTTPRequest(t *testing.T) {
	assert := assert_.New(t)
	body := bytes.Repeat([]byte("x"), 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("yes", r.Header.Get("X-Replayed"))
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	var records []progressRecord
	dir := t.TempDir()
	d, err := NewDownloadBuilder().
		WithTargetDir(dir).
		WithProgressCallback(func(downloaded, expected int64) {
			records = append(records, progressRecord{downloaded, expected})
		}).
		Build()
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/test.mp4", nil)
	require.NoError(t, err)
	req.Header.Set("X-Replayed", "yes")
	path, err := d.SaveHTTPRequest("out.mp4", req)
	require.NoError(t, err)

	assert.Equal(filepath.Join(dir, "out.mp4"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(body, data)

	require.NotEmpty(t, records)
	assert.Equal(progressRecord{0, 1000}, records[0])
	assert.Equal(progressRecord{1000, 1000}, records[len(records)-1])
	downloaded, expected := d.Progress()
	assert.Equal(int64(1000), downloaded)
	assert.Equal(int64(1000), expected)
}

func TestDownload_BadStatus(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dir := t.TempDir()
	d, err := NewDownloadBuilder().WithTargetDir(dir).Build()
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err = d.SaveHTTPRequest("out.mp4", req)
	assert.ErrorContains(err, "bad status code: 404")
	entries, _ := os.ReadDir(dir)
	assert.Empty(entries)
}

func TestDownload_UnknownLength(t *testing.T) {
	assert := assert_.New(t)
	d, err := NewDownloadBuilder().WithTargetDir(t.TempDir()).Build()
	require.NoError(t, err)
	d.AddExpectedBytes(-1)
	d.AddExpectedBytes(10)
	_, err = d.SaveStream("a.bin", strings.NewReader("hello"))
	require.NoError(t, err)
	downloaded, expected := d.Progress()
	assert.Equal(int64(5), downloaded)
	assert.Equal(int64(-1), expected)
}

func TestDownload_Cancelled(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	d, err := NewDownloadBuilder().WithContext(ctx).WithTargetDir(dir).Build()
	require.NoError(t, err)
	cancel()
	_, err = d.SaveStream("a.bin", strings.NewReader("hello"))
	assert.ErrorIs(err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(dir, "a.bin"))
	assert.True(os.IsNotExist(statErr))
}
