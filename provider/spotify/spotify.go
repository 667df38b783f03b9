// Package spotify resolves Spotify track links through the public oEmbed endpoint, which needs no credentials.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/mediagrab"
)

const DefaultEndpoint = "https://open.spotify.com/oembed"

type oembedResponse struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type Resolver struct {
	// Endpoint is the oEmbed endpoint URL.
	Endpoint string

	client *http.Client
	logger *zap.SugaredLogger
}

func New(timeout time.Duration) *Resolver {
	return &Resolver{
		Endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   zap.S().Named("spotify"),
	}
}

// Matches returns true for Spotify track links, e.g. https://open.spotify.com/track/<id> or
// https://open.spotify.com/intl-de/track/<id>.
func (r *Resolver) Matches(s string) bool {
	_, err := parseTrackURL(s)
	return err == nil
}

// Resolve fetches the title and thumbnail of a track. The search query is the title, which for tracks the endpoint
// gives as "<track>" or "<artist> - <track>".
func (r *Resolver) Resolve(ctx context.Context, s string) (*mediagrab.MediaInfo, error) {
	const op = "spotify oembed"
	if trackURL, err := parseTrackURL(s); err == nil {
		s = trackURL
	}
	query := url.Values{}
	query.Set("url", s)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, mediagrab.NewError(mediagrab.KindMetadataUnavailable, op, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, mediagrab.NewError(mediagrab.KindMetadataUnavailable, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mediagrab.Errorf(mediagrab.KindMetadataUnavailable, op, "bad status code: %d", resp.StatusCode)
	}
	var data oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, mediagrab.NewError(mediagrab.KindMetadataUnavailable, op, fmt.Errorf("invalid response: %w", err))
	}
	title := strings.TrimSpace(data.Title)
	if title == "" {
		return nil, mediagrab.Errorf(mediagrab.KindMetadataUnavailable, op, "no title for track")
	}
	r.logger.Debugw("resolved track", "url", s, "title", title)
	return &mediagrab.MediaInfo{
		Title:     title,
		Thumbnail: data.ThumbnailURL,
		Query:     title,
	}, nil
}

func (r *Resolver) Match(s string) (mediagrab.Source, error) {
	trackURL, err := parseTrackURL(s)
	if err != nil {
		return nil, err
	}
	return &source{url: trackURL, resolver: r}, nil
}

func (r *Resolver) Provider() mediagrab.Provider {
	return mediagrab.Provider{Name: "spotify", Match: r.Match, Priority: mediagrab.PriorityHighest}
}

type source struct {
	url      string
	resolver *Resolver
}

func (s *source) URL() string {
	return s.url
}

func (s *source) String() string {
	return s.URL()
}

func (s *source) Recon(ctx context.Context) (*mediagrab.MediaInfo, error) {
	return s.resolver.Resolve(ctx, s.url)
}

// parseTrackURL checks that s is a track link, returning it without tracking query parameters.
func parseTrackURL(s string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("unknown URL scheme %v", parsedURL.Scheme)
	}
	if parsedURL.Hostname() != "open.spotify.com" {
		return "", fmt.Errorf("unrecognised hostname")
	}
	parts := strings.Split(strings.Trim(parsedURL.Path, "/"), "/")
	if len(parts) >= 3 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) != 2 || parts[0] != "track" || parts[1] == "" {
		return "", fmt.Errorf("not a track link")
	}
	return "https://open.spotify.com/track/" + parts[1], nil
}
