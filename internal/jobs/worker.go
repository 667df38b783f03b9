package jobs

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/async"
	"github.com/alanbriolat/mediagrab/generic"
)

// A Fetcher produces a file for a URL, like fetch.Chain.
type Fetcher interface {
	Fetch(ctx context.Context, url string, format string, jobID string, sink mediagrab.ProgressSink) (string, error)
}

// A Worker runs jobs from a Registry in the background, one goroutine per job.
type Worker struct {
	ctx      context.Context
	registry *Registry
	fetcher  Fetcher
	running  sync.WaitGroup
	log      *zap.SugaredLogger
}

// NewWorker creates a Worker. Jobs are not cancelled when a client stops polling, only when ctx is done.
func NewWorker(ctx context.Context, registry *Registry, fetcher Fetcher) *Worker {
	return &Worker{
		ctx:      ctx,
		registry: registry,
		fetcher:  fetcher,
		log:      zap.S().Named("worker"),
	}
}

// Spawn starts running the job and returns immediately.
func (w *Worker) Spawn(id ID) {
	w.running.Add(1)
	go func() {
		defer w.running.Done()
		_ = w.Run(id)
	}()
}

// Run runs the job to completion, always leaving it in a terminal status, and returns the job's error if it failed.
func (w *Worker) Run(id ID) error {
	job, ok := w.registry.Snapshot(id)
	if !ok {
		w.log.Warnw("no such job", "job_id", id)
		return nil
	}
	log := w.log.With("job_id", id)
	w.registry.Update(id, Update{
		Status:  generic.Some(mediagrab.StatusStarting),
		Message: generic.Some("Starting..."),
	})
	log.Infow("job started", "url", job.SourceURL, "format", job.RequestedFormat)

	ctx := mediagrab.WithLogger(w.ctx, log.Desugar())
	result := <-async.RunResult(func() (string, error) {
		return w.fetcher.Fetch(ctx, job.SourceURL, job.RequestedFormat, string(id), w.registry.Sink(id))
	})
	path, err := result.Parts()
	if err == nil && path == "" {
		err = mediagrab.Errorf(mediagrab.KindFileMissingAfterProcessing, "worker", "no file produced")
	}
	if err != nil {
		var panicErr *async.PanicError
		if errors.As(err, &panicErr) {
			log.Errorw("job panicked", "panic", panicErr.Value)
			err = mediagrab.NewError(mediagrab.KindFatal, "worker", err)
		}
		log.Infow("job failed", "error", err)
		w.registry.Update(id, Failed(err))
		return err
	}
	log.Infow("job completed", "path", path)
	w.registry.Update(id, Completed(path))
	return nil
}

// Wait blocks until every spawned job has finished.
func (w *Worker) Wait() {
	w.running.Wait()
}
