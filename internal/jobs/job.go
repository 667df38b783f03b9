package jobs

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/generic"
)

type ID string

func NewID() ID {
	return ID(generic.Unwrap(uuid.NewRandom()).String())
}

// A Job is one download request. Filepath is set if and only if Status is completed, Error is set if and only if
// Status is error, and a Job with a terminal status never changes again.
type Job struct {
	ID       ID               `json:"id"`
	Status   mediagrab.Status `json:"status"`
	Progress int              `json:"progress"`
	Message  string           `json:"message"`
	Filepath string           `json:"filepath,omitempty"`
	Error    string           `json:"error,omitempty"`

	SourceURL       string    `json:"source_url"`
	RequestedFormat string    `json:"requested_format"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// An Update is a partial Job; only fields that are Some are applied.
type Update struct {
	Status generic.Option[mediagrab.Status]
	// Clamped to [0, 100] and rounded; NaN and infinities leave progress unchanged.
	Progress generic.Option[float64]
	Message  generic.Option[string]
	Filepath generic.Option[string]
	Error    generic.Option[string]
}

// Completed is the Update for a successful job.
func Completed(path string) Update {
	return Update{
		Status:   generic.Some(mediagrab.StatusCompleted),
		Progress: generic.Some(100.0),
		Message:  generic.Some("Download complete"),
		Filepath: generic.Some(path),
	}
}

// Failed is the Update for a failed job.
func Failed(err error) Update {
	msg := mediagrab.UserMessage(err)
	return Update{
		Status:   generic.Some(mediagrab.StatusError),
		Progress: generic.Some(0.0),
		Message:  generic.Some(msg),
		Error:    generic.Some(msg),
	}
}

// ClampProgress converts a percentage to the [0, 100] range. ok is false if the value isn't a usable number.
func ClampProgress(value float64) (progress int, ok bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return int(math.Round(math.Max(0, math.Min(100, value)))), true
}

// apply merges u into j, keeping the Job invariants, and returns true if anything changed.
func (j *Job) apply(u Update, now time.Time) bool {
	if j.IsTerminal() {
		return false
	}
	old := *j
	if u.Status.IsSome() && u.Status.Value.IsValid() {
		j.Status = u.Status.Value
	}
	if u.Progress.IsSome() {
		if progress, ok := ClampProgress(u.Progress.Value); ok {
			j.Progress = progress
		}
	}
	if u.Message.IsSome() {
		j.Message = u.Message.Value
	}
	if u.Filepath.IsSome() {
		j.Filepath = u.Filepath.Value
	}
	if u.Error.IsSome() {
		j.Error = u.Error.Value
	}

	switch j.Status {
	case mediagrab.StatusCompleted:
		if j.Filepath == "" {
			// Can't be complete without a file
			j.Status = old.Status
		}
	case mediagrab.StatusError:
		if j.Error == "" {
			j.Error = mediagrab.UserMessage(mediagrab.ErrFatal)
		}
	}
	if j.Status != mediagrab.StatusCompleted {
		j.Filepath = ""
	}
	if j.Status != mediagrab.StatusError {
		j.Error = ""
	}

	if *j == old {
		return false
	}
	j.UpdatedAt = now
	return true
}
