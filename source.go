package mediagrab

import (
	"context"
)

// FormatInfo describes one encoding a source can be fetched in.
type FormatInfo struct {
	ID   string `json:"id"`
	Ext  string `json:"ext,omitempty"`
	Note string `json:"note,omitempty"`
}

// MediaInfo is the displayable description of a media URL.
type MediaInfo struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
	// Query is what to search for instead of the original URL, for sources that can't be fetched directly.
	Query   string       `json:"-"`
	Formats []FormatInfo `json:"formats,omitempty"`
}

type Source interface {
	// URL should return the canonical URL for this source. It is assumed that the Provider.Match that created the
	// Source would successfully match this canonical URL.
	URL() string
	// Recon should fetch information about the media.
	Recon(context.Context) (*MediaInfo, error)
}
