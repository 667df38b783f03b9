// Package console shows job progress on a terminal.
package console

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/generic"
)

// Sink is a ProgressSink drawing a progress bar.
type Sink struct {
	bar *progressbar.ProgressBar
}

func NewSink(w io.Writer) *Sink {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(string(mediagrab.StatusPending)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
	return &Sink{bar: bar}
}

func (s *Sink) Report(percent generic.Option[int], message string, status mediagrab.Status) {
	if percent.IsSome() {
		value := percent.Value
		if value < 0 {
			value = 0
		} else if value > 100 {
			value = 100
		}
		_ = s.bar.Set(value)
	}
	s.bar.Describe(fmt.Sprintf("[%s] %s", status, mediagrab.Sanitize(message)))
}

// Done finishes the bar, leaving it on screen.
func (s *Sink) Done() {
	_ = s.bar.Finish()
}
