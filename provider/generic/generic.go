// Package generic describes any URL the extraction tool supports, by asking the tool.
package generic

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/internal/extract"
)

type Config struct {
	Extractor extract.Extractor
	// CookiePath returns the cookie file to try first, if any.
	CookiePath func() (string, bool)
}

func (c Config) Match(s string) (mediagrab.Source, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unknown URL scheme %v", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return &source{url: parsedURL.String(), config: c}, nil
}

func (c Config) Provider() mediagrab.Provider {
	return mediagrab.Provider{Name: "generic", Match: c.Match, Priority: mediagrab.PriorityLowest}
}

type source struct {
	url    string
	config Config
}

func (s *source) URL() string {
	return s.url
}

func (s *source) String() string {
	return s.URL()
}

// Recon probes with cookies if available, then once more without if the tool rejected the authenticated request.
func (s *source) Recon(ctx context.Context) (*mediagrab.MediaInfo, error) {
	req := extract.Request{Target: s.url}
	if s.config.CookiePath != nil {
		if cookieFile, ok := s.config.CookiePath(); ok {
			req.CookieFile = cookieFile
		}
	}
	info, err := s.config.Extractor.Probe(ctx, req)
	if err != nil && req.CookieFile != "" && errors.Is(err, mediagrab.ErrFormatUnavailable) {
		zap.S().Named("generic").Debugw("probe with cookies failed, retrying without", "url", s.url, "error", err)
		req.CookieFile = ""
		info, err = s.config.Extractor.Probe(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return mediaInfo(info), nil
}

func mediaInfo(info *extract.Info) *mediagrab.MediaInfo {
	// A playlist-like result describes its first entry
	if info.Title == "" && len(info.Entries) > 0 && info.Entries[0] != nil {
		info = info.Entries[0]
	}
	result := &mediagrab.MediaInfo{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
	}
	for _, format := range info.Formats {
		note := format.FormatNote
		if note == "" {
			note = format.Resolution
		}
		result.Formats = append(result.Formats, mediagrab.FormatInfo{
			ID:   format.FormatID,
			Ext:  format.Ext,
			Note: note,
		})
	}
	return result
}
