// Package extract is the boundary to the external media extraction tool.
package extract

import (
	"context"
)

// A Request describes one invocation of the extraction tool.
type Request struct {
	// Target is a media URL or a search expression like "ytsearch1:<query>".
	Target string
	// Format is the format selector, e.g. "22+bestaudio/22".
	Format string
	// OutputTemplate is the filename template, with "%(key)s" placeholders.
	OutputTemplate string
	// CookieFile enables authenticated requests when set.
	CookieFile string
	// AudioOnly extracts the audio to AudioFormat at AudioQuality.
	AudioOnly    bool
	AudioFormat  string
	AudioQuality string
	// EmbedThumbnail writes the thumbnail and embeds it as a post-processing step.
	EmbedThumbnail bool
	FFmpegLocation string
}

// RequestedDownload is one file the tool produced (or meant to produce) for a download.
type RequestedDownload struct {
	Filepath    string `json:"filepath"`
	AltFilename string `json:"_filename"`
	Filename    string `json:"filename"`
	Ext         string `json:"ext"`
}

type Format struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	FormatNote string `json:"format_note"`
	Resolution string `json:"resolution"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
}

// Info is the subset of the tool's metadata structure that is used here.
type Info struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Thumbnail          string              `json:"thumbnail"`
	Ext                string              `json:"ext"`
	Filename           string              `json:"filename"`
	AltFilename        string              `json:"_filename"`
	RequestedDownloads []RequestedDownload `json:"requested_downloads"`
	Formats            []Format            `json:"formats"`
	// Entries is set for playlist-like results, e.g. searches.
	Entries []*Info `json:"entries"`
}

// Fields returns the values available for "%(key)s" template substitution.
func (i *Info) Fields() map[string]string {
	return map[string]string{
		"id":    i.ID,
		"title": i.Title,
		"ext":   i.Ext,
	}
}

type EventStatus string

const (
	EventDownloading EventStatus = "downloading"
	EventFinished    EventStatus = "finished"
	EventError       EventStatus = "error"
)

// An Event is a progress report from a running download.
type Event struct {
	Status          EventStatus
	DownloadedBytes int64
	// TotalBytes is 0 when unknown.
	TotalBytes int64
	Message    string
}

type Extractor interface {
	// Download runs the request to completion, calling onEvent (if not nil) with progress. A failure reported by the
	// tool itself is a mediagrab.ErrFormatUnavailable; anything else (e.g. the tool not running at all) is not.
	Download(ctx context.Context, req Request, onEvent func(Event)) (*Info, error)
	// Probe fetches metadata for the request's target without downloading anything.
	Probe(ctx context.Context, req Request) (*Info, error)
}
