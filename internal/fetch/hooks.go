package fetch

import (
	"fmt"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/generic"
	"github.com/alanbriolat/mediagrab/internal/extract"
)

const (
	// Progress shown while post-processing, which has no progress of its own.
	ProcessingPercent = 96
	// Progress shown while downloading something of unknown size.
	UnknownSizePercent = 1
)

// TranslateEvent maps an extraction progress event onto the job progress fields. An error event yields
// StatusError, but sinks attached to jobs (see jobs.Registry.Sink) drop terminal statuses: the error only resets
// progress and shows the message, and the job's Worker alone decides whether it failed, since a fallback strategy may
// still succeed.
func TranslateEvent(event extract.Event) (generic.Option[int], string, mediagrab.Status) {
	switch event.Status {
	case extract.EventFinished:
		return generic.Some(ProcessingPercent), "Post-processing...", mediagrab.StatusProcessing
	case extract.EventError:
		msg := mediagrab.Sanitize(event.Message)
		if msg == "" {
			msg = "Download error"
		}
		return generic.Some(0), msg, mediagrab.StatusError
	default:
		if event.TotalBytes > 0 {
			percent := clampPercent(event.DownloadedBytes * 100 / event.TotalBytes)
			return generic.Some(percent), fmt.Sprintf("Downloading... %d%%", percent), mediagrab.StatusDownloading
		}
		return generic.Some(UnknownSizePercent), "Downloading...", mediagrab.StatusDownloading
	}
}

// clampPercent keeps percentages in range when a size estimate turns out too small.
func clampPercent(percent int64) int {
	return int(min(max(percent, 0), 100))
}

// extractSink forwards extraction events to a ProgressSink.
func extractSink(sink mediagrab.ProgressSink) func(extract.Event) {
	return func(event extract.Event) {
		sink.Report(TranslateEvent(event))
	}
}

// streamSink forwards byte progress of a direct stream to a ProgressSink, only when there is something new to show.
func streamSink(sink mediagrab.ProgressSink) func(int64, int64) {
	lastPercent := -1
	lastMiB := int64(-1)
	return func(downloaded int64, expected int64) {
		if expected > 0 {
			percent := clampPercent(downloaded * 100 / expected)
			if percent != lastPercent {
				lastPercent = percent
				sink.Report(generic.Some(percent), fmt.Sprintf("Downloading via relay... %d%%", percent), mediagrab.StatusDownloading)
			}
			return
		}
		if mib := downloaded >> 20; mib != lastMiB {
			lastMiB = mib
			sink.Report(generic.None[int](), fmt.Sprintf("Downloading via relay... %d MiB", mib), mediagrab.StatusDownloading)
		}
	}
}
