package mediagrab

import (
	"github.com/alanbriolat/mediagrab/generic"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// IsTerminal returns true if no further changes can happen after reaching this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// IsValid returns true for the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusStarting, StatusDownloading, StatusProcessing, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// A ProgressSink receives incremental progress of a fetch. A None percent means the percentage is unknown and only
// the message (and status) should change.
type ProgressSink interface {
	Report(percent generic.Option[int], message string, status Status)
}

// ProgressFunc adapts a plain function to ProgressSink.
type ProgressFunc func(percent generic.Option[int], message string, status Status)

func (f ProgressFunc) Report(percent generic.Option[int], message string, status Status) {
	f(percent, message, status)
}

// NopSink discards all progress.
var NopSink ProgressSink = ProgressFunc(func(generic.Option[int], string, Status) {})
