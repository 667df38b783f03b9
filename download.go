package mediagrab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// A Download saves one or more streams into a target directory, tracking byte progress as it goes.
type Download interface {
	// AddDownloadedBytes increases how many bytes have been successfully downloaded so far.
	AddDownloadedBytes(n int64)

	// AddExpectedBytes increases how many bytes are expected to be downloaded. A negative n marks the expected size as
	// unknown.
	AddExpectedBytes(n int64)

	// Cancel the Download, stopping any in-progress I/O activity.
	Cancel()

	// Context is the cancellable context of this Download.
	Context() context.Context

	// Progress returns the downloaded and expected bytes of the download; expected is -1 if unknown.
	Progress() (int64, int64)

	// SaveHTTPRequest will execute the http.Request with Context() and then download the resulting stream like
	// SaveStream, returning the saved path.
	SaveHTTPRequest(filename string, req *http.Request) (string, error)

	// SaveStream will download the stream to the named file, calling AddDownloadedBytes as necessary. The file only
	// appears under its final name once the whole stream has been written.
	SaveStream(filename string, stream io.Reader) (string, error)

	// Write will ignore the data but will send the byte count to AddDownloadedBytes. Allows progress tracking using
	// io.MultiWriter (but ensure the Download is the last writer to avoid counting failed writes).
	Write(p []byte) (n int, err error)
}

type download struct {
	mu               sync.Mutex
	ctx              context.Context
	cancel           context.CancelFunc
	client           *http.Client
	progressCallback func(int64, int64)
	targetDir        string
	expectedBytes    int64
	downloadedBytes  int64
}

func (d *download) AddDownloadedBytes(n int64) {
	d.mu.Lock()
	d.downloadedBytes += n
	d.mu.Unlock()
	d.notify()
}

func (d *download) AddExpectedBytes(n int64) {
	d.mu.Lock()
	if n < 0 || d.expectedBytes < 0 {
		d.expectedBytes = -1
	} else {
		d.expectedBytes += n
	}
	d.mu.Unlock()
	d.notify()
}

func (d *download) Cancel() {
	d.cancel()
}

func (d *download) Context() context.Context {
	return d.ctx
}

func (d *download) Progress() (int64, int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.downloadedBytes, d.expectedBytes
}

func (d *download) SaveHTTPRequest(filename string, req *http.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("nil request")
	}
	req = req.WithContext(d.Context())
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download failed: bad status code: %d", resp.StatusCode)
	}
	// ContentLength is -1 when unknown
	d.AddExpectedBytes(resp.ContentLength)
	return d.SaveStream(filename, resp.Body)
}

func (d *download) SaveStream(filename string, stream io.Reader) (string, error) {
	if err := os.MkdirAll(d.targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create target dir: %w", err)
	}
	f, err := os.CreateTemp(d.targetDir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to open target file: %w", err)
	}
	tempPath := f.Name()
	defer os.Remove(tempPath) // No-op after a successful rename

	_, err = io.Copy(io.MultiWriter(f, d), NewReaderContext(d.ctx, stream))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to save stream: %w", err)
	}

	targetPath := filepath.Join(d.targetDir, filename)
	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	return targetPath, nil
}

func (d *download) Write(p []byte) (n int, err error) {
	n = len(p)
	d.AddDownloadedBytes(int64(n))
	return n, nil
}

func (d *download) notify() {
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

type DownloadBuilder interface {
	Build() (Download, error)
	WithContext(ctx context.Context) DownloadBuilder
	WithHTTPClient(client *http.Client) DownloadBuilder
	WithProgressCallback(f func(downloaded int64, expected int64)) DownloadBuilder
	WithTargetDir(dir string) DownloadBuilder
}

type downloadBuilder struct {
	ctx              context.Context
	client           *http.Client
	progressCallback func(int64, int64)
	targetDir        string
}

func NewDownloadBuilder() DownloadBuilder {
	return &downloadBuilder{
		ctx:       context.Background(),
		client:    http.DefaultClient,
		targetDir: ".",
	}
}

func (b *downloadBuilder) Build() (Download, error) {
	if b.targetDir == "" {
		return nil, fmt.Errorf("empty target dir")
	}
	d := &download{}
	d.ctx, d.cancel = context.WithCancel(b.ctx)
	d.client = b.client
	d.progressCallback = b.progressCallback
	d.targetDir = b.targetDir
	return d, nil
}

func (b *downloadBuilder) WithContext(ctx context.Context) DownloadBuilder {
	b.ctx = ctx
	return b
}

func (b *downloadBuilder) WithHTTPClient(client *http.Client) DownloadBuilder {
	b.client = client
	return b
}

func (b *downloadBuilder) WithProgressCallback(f func(int64, int64)) DownloadBuilder {
	b.progressCallback = f
	return b
}

func (b *downloadBuilder) WithTargetDir(dir string) DownloadBuilder {
	b.targetDir = dir
	return b
}
