// Package jobs tracks download jobs and runs them in the background.
package jobs

import (
	"errors"
	"sort"
	"time"

	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/internal/pubsub"
	"github.com/alanbriolat/mediagrab/internal/sync_"
)

var (
	ErrDuplicateJob   = errors.New("duplicate job ID")
	ErrUnknownJob     = errors.New("unknown job")
	ErrJobNotFinished = errors.New("job not finished")
)

// Events kept for a subscriber that isn't keeping up, beyond which events are dropped for it.
const subscriberBacklog = 256

type jobsByID = map[ID]*Job

// A Registry is the single shared store of jobs. All access goes through one lock, and jobs are copied in and out so
// that nothing outside the Registry holds a reference to shared state.
type Registry struct {
	jobs      *sync_.RWMutexed[jobsByID]
	events    *pubsub.Publisher[Event]
	database  Database
	persisted sync_.Event
	log       *zap.SugaredLogger
	now       func() time.Time
}

// NewRegistry creates a Registry, loading finished jobs from database. Jobs that reach a terminal status are written
// back to database as they finish.
func NewRegistry(database Database) (*Registry, error) {
	if database == nil {
		database = NilDatabase{}
	}
	r := &Registry{
		jobs:      sync_.NewRWMutexed(make(jobsByID)),
		events:    pubsub.NewPublisher[Event](),
		database:  database,
		log:       zap.S().Named("jobs"),
		now:       time.Now,
	}
	saved, err := database.ListJobs()
	if err != nil {
		return nil, err
	}
	err = r.jobs.Locked(func(jobs jobsByID) error {
		for i := range saved {
			job := saved[i]
			if !job.IsTerminal() {
				// Nothing is running it any more
				continue
			}
			if _, ok := jobs[job.ID]; ok {
				return ErrDuplicateJob
			}
			jobs[job.ID] = &job
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Debugf("loaded %d saved jobs", len(saved))

	// Every finished job must be saved, so this subscription has no backlog limit
	finished, err := r.events.Subscribe(Event.Finished, 0)
	if err != nil {
		return nil, err
	}
	go r.persist(finished)
	return r, nil
}

func (r *Registry) persist(finished *pubsub.Subscription[Event]) {
	defer r.persisted.Set()
	for event := range finished.Receive() {
		if err := r.database.WriteJob(&event.New); err != nil {
			r.log.Errorw("failed to save job", "job_id", event.New.ID, "error", err)
		}
	}
}

// Create adds a new pending job and returns its ID.
func (r *Registry) Create(sourceURL string, format string) ID {
	now := r.now()
	job := Job{
		ID:              NewID(),
		Status:          mediagrab.StatusPending,
		SourceURL:       sourceURL,
		RequestedFormat: format,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_ = r.jobs.Locked(func(jobs jobsByID) error {
		stored := job
		jobs[job.ID] = &stored
		return nil
	})
	r.log.Debugw("job created", "job_id", job.ID, "url", sourceURL, "format", format)
	r.events.Publish(Event{New: job})
	return job.ID
}

// Update merges u into the job. Updating an unknown job, or a job that already finished, does nothing.
func (r *Registry) Update(id ID, u Update) {
	var old, updated Job
	changed := false
	_ = r.jobs.Locked(func(jobs jobsByID) error {
		job, ok := jobs[id]
		if !ok {
			return nil
		}
		old = *job
		changed = job.apply(u, r.now())
		updated = *job
		return nil
	})
	if !changed {
		return
	}
	r.logChanges(old, updated)
	r.events.Publish(Event{Old: old, New: updated})
}

func (r *Registry) logChanges(old Job, updated Job) {
	log := r.log.With("job_id", updated.ID)
	changes, err := diff.Diff(old, updated)
	if err != nil {
		log.Errorf("failed to diff old and new job state: %v", err)
		return
	}
	for _, change := range changes {
		if len(change.Path) > 0 && change.Path[0] == "UpdatedAt" {
			continue
		}
		log.Debugf("%v: %#v -> %#v", change.Path, change.From, change.To)
	}
}

// Snapshot returns a copy of the job.
func (r *Registry) Snapshot(id ID) (job Job, ok bool) {
	_ = r.jobs.RLocked(func(jobs jobsByID) error {
		var stored *Job
		if stored, ok = jobs[id]; ok {
			job = *stored
		}
		return nil
	})
	return job, ok
}

// List returns a copy of every job, oldest first.
func (r *Registry) List() []Job {
	var list []Job
	_ = r.jobs.RLocked(func(jobs jobsByID) error {
		list = make([]Job, 0, len(jobs))
		for _, job := range jobs {
			list = append(list, *job)
		}
		return nil
	})
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Remove forgets a finished job, including its saved copy, and returns it. It doesn't touch the job's file.
func (r *Registry) Remove(id ID) (Job, error) {
	var removed Job
	err := r.jobs.Locked(func(jobs jobsByID) error {
		job, ok := jobs[id]
		if !ok {
			return ErrUnknownJob
		}
		if !job.IsTerminal() {
			return ErrJobNotFinished
		}
		removed = *job
		delete(jobs, id)
		return nil
	})
	if err != nil {
		return Job{}, err
	}
	r.log.Debugw("job removed", "job_id", id)
	return removed, r.database.DeleteJob(id)
}

// subscribe returns a subscription to every job Event from now on. Updates never wait for it; a subscriber that falls
// too far behind misses events.
func (r *Registry) subscribe() (*pubsub.Subscription[Event], error) {
	return r.events.Subscribe(nil, subscriberBacklog)
}

// Close stops publishing events, and waits for finished jobs to be saved.
func (r *Registry) Close() {
	r.events.Close()
	<-r.persisted.Wait()
}
