// Package raw describes direct links to media files from the URL alone.
package raw

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/generic"
	"github.com/alanbriolat/mediagrab/util"
)

type Config struct {
	Protocols  generic.Set[string]
	Extensions generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Protocols: generic.NewSet(
			"http",
			"https",
		),
		Extensions: generic.NewSet(
			"flv",
			"m4a",
			"m4v",
			"mkv",
			"mp3",
			"mp4",
			"opus",
			"webm",
		),
	}
}

func (c *Config) Match(s string) (mediagrab.Source, error) {
	// Expect string to be a URL
	parsedURL, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	// Check that scheme/protocol is valid
	if !c.Protocols.Contains(parsedURL.Scheme) {
		return nil, fmt.Errorf("unknown URL scheme %v", parsedURL.Scheme)
	}
	// Attempt to extract filename and extension
	filename, err := util.FilenameFromURL(parsedURL)
	if err != nil {
		return nil, err
	}
	extension := strings.TrimPrefix(path.Ext(filename), ".")
	if extension == "" {
		return nil, fmt.Errorf("no file extension found")
	}
	if !c.Extensions.Contains(strings.ToLower(extension)) {
		return nil, fmt.Errorf("unknown file extension %v", extension)
	}
	res := source{
		url:       parsedURL.String(),
		filename:  filename,
		extension: extension,
	}
	return &res, nil
}

func (c Config) Provider() mediagrab.Provider {
	return mediagrab.Provider{
		Name:     "raw",
		Match:    c.Match,
		Priority: mediagrab.PriorityLowest - 1,
	}
}

type source struct {
	url       string
	filename  string
	extension string
}

func (s *source) URL() string {
	return s.url
}

func (s *source) String() string {
	return s.URL()
}

// Recon needs no network access: the file is all there is, and its name is the best available title.
func (s *source) Recon(ctx context.Context) (*mediagrab.MediaInfo, error) {
	return &mediagrab.MediaInfo{
		Title:   strings.TrimSuffix(s.filename, "."+s.extension),
		Formats: []mediagrab.FormatInfo{{ID: "direct", Ext: s.extension}},
	}, nil
}
