package jobs

import (
	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/generic"
)

type registrySink struct {
	registry *Registry
	id       ID
}

// Sink returns a ProgressSink that records progress on the job. Terminal statuses are left to the Worker: a reported
// error only resets progress and shows the message, since a fallback strategy may still succeed.
func (r *Registry) Sink(id ID) mediagrab.ProgressSink {
	return &registrySink{registry: r, id: id}
}

func (s *registrySink) Report(percent generic.Option[int], message string, status mediagrab.Status) {
	u := Update{Message: generic.Some(message)}
	if percent.IsSome() {
		u.Progress = generic.Some(float64(percent.Value))
	}
	if status.IsValid() && !status.IsTerminal() {
		u.Status = generic.Some(status)
	}
	s.registry.Update(s.id, u)
}
