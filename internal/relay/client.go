// Package relay talks to the third-party relay service, which resolves a media URL to a directly streamable link.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alanbriolat/mediagrab"
)

// A Descriptor is the relay's answer for one media URL.
type Descriptor struct {
	// URL is the directly streamable resource.
	URL     string `json:"url"`
	Title   string `json:"title"`
	VideoID string `json:"video_id"`
	// Headers must be replayed when fetching URL.
	Headers map[string]string `json:"headers"`
	Referer string            `json:"referer"`
}

type Client struct {
	baseURL string
	token   string
	// Used for lookups, bounded by an overall timeout.
	lookupClient *http.Client
	// Used for streaming, bounded only at the network level because the body can take arbitrarily long.
	streamClient *http.Client
	limiter      *rate.Limiter
	logger       *zap.SugaredLogger
}

// NewClient creates a relay client. A ratePerSecond of 0 or less means lookups are not throttled.
func NewClient(baseURL string, token string, timeout time.Duration, ratePerSecond float64) *Client {
	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		lookupClient: &http.Client{Timeout: timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		logger:       zap.S().Named("relay"),
	}
	if ratePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return c
}

// Configured returns true if the client has somewhere to send requests.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Lookup asks the relay for a Descriptor for mediaURL.
func (c *Client) Lookup(ctx context.Context, mediaURL string) (*Descriptor, error) {
	const op = "relay lookup"
	if !c.Configured() {
		return nil, mediagrab.Errorf(mediagrab.KindRelayUnavailable, op, "no relay configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, mediagrab.NewError(mediagrab.KindRelayUnavailable, op, err)
		}
	}
	query := url.Values{}
	query.Set("token", c.token)
	query.Set("q", mediaURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info?"+query.Encode(), nil)
	if err != nil {
		return nil, mediagrab.NewError(mediagrab.KindRelayUnavailable, op, err)
	}
	c.logger.Debugw("looking up media", "url", mediaURL)
	resp, err := c.lookupClient.Do(req)
	if err != nil {
		return nil, mediagrab.NewError(mediagrab.KindRelayUnavailable, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, mediagrab.Errorf(mediagrab.KindRelayUnavailable, op, "bad status code: %d", resp.StatusCode)
	}
	var desc Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, mediagrab.NewError(mediagrab.KindRelayUnavailable, op, fmt.Errorf("invalid response: %w", err))
	}
	if desc.URL == "" {
		return nil, mediagrab.Errorf(mediagrab.KindRelayUnavailable, op, "no usable download link")
	}
	return &desc, nil
}

// Fetch streams the Descriptor's URL into targetDir/filename, replaying the relay's headers. progress gets the
// downloaded and expected bytes, where expected is -1 if the relay didn't say.
func (c *Client) Fetch(ctx context.Context, desc *Descriptor, targetDir string, filename string, progress func(int64, int64)) (string, error) {
	const op = "relay stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return "", mediagrab.NewError(mediagrab.KindRelayUnavailable, op, err)
	}
	for key, value := range desc.Headers {
		req.Header.Set(key, value)
	}
	if desc.Referer != "" {
		req.Header.Set("Referer", desc.Referer)
	}
	d, err := mediagrab.NewDownloadBuilder().
		WithContext(ctx).
		WithHTTPClient(c.streamClient).
		WithTargetDir(targetDir).
		WithProgressCallback(progress).
		Build()
	if err != nil {
		return "", mediagrab.NewError(mediagrab.KindRelayUnavailable, op, err)
	}
	defer d.Cancel()
	path, err := d.SaveHTTPRequest(filename, req)
	if err != nil {
		return "", mediagrab.NewError(mediagrab.KindRelayUnavailable, op, err)
	}
	downloaded, _ := d.Progress()
	c.logger.Debugw("relay stream finished", "path", path, "bytes", downloaded)
	return path, nil
}
