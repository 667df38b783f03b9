// Package extracttest provides a scriptable extract.Extractor for tests.
package extracttest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/internal/extract"
)

type Call struct {
	Probe   bool
	Request extract.Request
}

type Fake struct {
	DownloadFunc func(ctx context.Context, req extract.Request, onEvent func(extract.Event)) (*extract.Info, error)
	ProbeFunc    func(ctx context.Context, req extract.Request) (*extract.Info, error)

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Download(ctx context.Context, req extract.Request, onEvent func(extract.Event)) (*extract.Info, error) {
	f.record(Call{Request: req})
	if f.DownloadFunc == nil {
		return nil, mediagrab.Errorf(mediagrab.KindFormatUnavailable, "download", "not scripted")
	}
	return f.DownloadFunc(ctx, req, onEvent)
}

func (f *Fake) Probe(ctx context.Context, req extract.Request) (*extract.Info, error) {
	f.record(Call{Probe: true, Request: req})
	if f.ProbeFunc == nil {
		return nil, mediagrab.Errorf(mediagrab.KindFormatUnavailable, "probe", "not scripted")
	}
	return f.ProbeFunc(ctx, req)
}

// Calls returns a copy of every call made so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Downloads returns the requests of every Download call made so far.
func (f *Fake) Downloads() []extract.Request {
	var reqs []extract.Request
	for _, call := range f.Calls() {
		if !call.Probe {
			reqs = append(reqs, call.Request)
		}
	}
	return reqs
}

func (f *Fake) record(call Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Render substitutes "%(key)s" placeholders in an output template, like the real tool does.
func Render(template string, fields map[string]string) string {
	for key, value := range fields {
		template = strings.ReplaceAll(template, "%("+key+")s", value)
	}
	return strings.ReplaceAll(template, "%%", "%")
}

// Succeed returns a DownloadFunc that reports some progress, writes a file named from the request's output template
// with extension ext and reports info (whose Ext is overwritten to declared).
func Succeed(title string, declared string, ext string) func(context.Context, extract.Request, func(extract.Event)) (*extract.Info, error) {
	return func(ctx context.Context, req extract.Request, onEvent func(extract.Event)) (*extract.Info, error) {
		if onEvent != nil {
			onEvent(extract.Event{Status: extract.EventDownloading, DownloadedBytes: 50, TotalBytes: 100})
			onEvent(extract.Event{Status: extract.EventFinished, DownloadedBytes: 100, TotalBytes: 100})
		}
		info := &extract.Info{ID: "fake", Title: title, Ext: ext}
		path := Render(req.OutputTemplate, info.Fields())
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
			return nil, err
		}
		info.Ext = declared
		return info, nil
	}
}
