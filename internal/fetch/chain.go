// Package fetch turns a (url, format) request into a file on disk, falling back through progressively less direct
// strategies.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/generic"
	"github.com/alanbriolat/mediagrab/internal/extract"
	"github.com/alanbriolat/mediagrab/internal/relay"
	"github.com/alanbriolat/mediagrab/util"
)

const (
	FormatBest      = "best"
	FormatAPIDirect = "api-direct"
)

// A MusicResolver turns a music streaming link into something that can be searched for.
type MusicResolver interface {
	Matches(url string) bool
	Resolve(ctx context.Context, url string) (*mediagrab.MediaInfo, error)
}

type Chain struct {
	config    *mediagrab.Config
	extractor extract.Extractor
	relay     *relay.Client
	music     MusicResolver
	logger    *zap.SugaredLogger
}

// NewChain creates a Chain. relayClient and music may be nil, disabling the relay strategy and music link handling
// respectively.
func NewChain(config *mediagrab.Config, extractor extract.Extractor, relayClient *relay.Client, music MusicResolver) *Chain {
	return &Chain{
		config:    config,
		extractor: extractor,
		relay:     relayClient,
		music:     music,
		logger:    zap.S().Named("fetch"),
	}
}

// VideoFormat is the format selector for a requested format: the format muxed with the best audio if possible,
// otherwise the format by itself.
func VideoFormat(format string) string {
	if format == "" || format == FormatBest {
		return "bestvideo*+bestaudio/best"
	}
	return fmt.Sprintf("%s+bestaudio/%s", format, format)
}

// Fetch produces a local file for url in the requested format, reporting progress to sink. jobID selects the output
// directory (see mediagrab.Config.TargetDir) and may be empty.
func (c *Chain) Fetch(ctx context.Context, url string, format string, jobID string, sink mediagrab.ProgressSink) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", mediagrab.Errorf(mediagrab.KindInvalidInput, "fetch", "missing url")
	}
	if format == "" {
		format = FormatBest
	}
	if sink == nil {
		sink = mediagrab.NopSink
	}
	log := c.logger.With("url", url, "format", format)
	if jobID != "" {
		log = log.With("job_id", jobID)
	}

	dir, err := c.config.TargetDir(jobID)
	if err != nil {
		return "", mediagrab.NewError(mediagrab.KindFatal, "fetch", err)
	}
	template := c.config.OutputTemplate(dir)

	var primaryErr error
	switch {
	case c.music != nil && c.music.Matches(url):
		sink.Report(generic.None[int](), "Resolving track...", mediagrab.StatusStarting)
		info, err := c.music.Resolve(ctx, url)
		if err != nil {
			return "", err
		}
		query := info.Query
		if query == "" {
			query = info.Title
		}
		log.Infow("searching for music track", "query", query)
		path, err := c.primary(ctx, log, AudioRequest(query, template, c.config.FFmpegLocation), sink)
		if err == nil {
			return path, nil
		}
		primaryErr = err
	case format == FormatAPIDirect:
		log.Info("going straight to relay")
	default:
		req := extract.Request{
			Target:         url,
			Format:         VideoFormat(format),
			OutputTemplate: template,
			EmbedThumbnail: true,
			FFmpegLocation: c.config.FFmpegLocation,
		}
		path, err := c.primary(ctx, log, req, sink)
		if err == nil {
			return path, nil
		}
		primaryErr = err
	}

	if primaryErr != nil {
		if !c.relay.Configured() {
			return "", primaryErr
		}
		log.Infow("primary fetch failed, trying relay", "error", primaryErr)
	}
	path, err := c.viaRelay(ctx, url, dir, sink)
	if err != nil {
		log.Infow("relay fetch failed", "error", err)
		return "", combine(primaryErr, err)
	}
	return path, nil
}

// AudioRequest is the request for the best audio of the first search result for query, as mp3.
func AudioRequest(query string, template string, ffmpegLocation string) extract.Request {
	return extract.Request{
		Target:         "ytsearch1:" + query,
		Format:         "bestaudio/best",
		OutputTemplate: template,
		AudioOnly:      true,
		AudioFormat:    "mp3",
		AudioQuality:   "192",
		EmbedThumbnail: true,
		FFmpegLocation: ffmpegLocation,
	}
}

// primary runs the extraction tool, first with cookies if there are any. Only a failure the tool itself reports gets
// the one retry without cookies.
func (c *Chain) primary(ctx context.Context, log *zap.SugaredLogger, req extract.Request, sink mediagrab.ProgressSink) (string, error) {
	sink.Report(generic.Some(0), "Starting download...", mediagrab.StatusDownloading)
	if cookieFile, ok := c.config.CookiePath(); ok {
		req.CookieFile = cookieFile
		path, err := c.attempt(ctx, req, sink)
		if err == nil || !errors.Is(err, mediagrab.ErrFormatUnavailable) {
			return path, err
		}
		log.Infow("authenticated fetch failed, retrying without cookies", "error", err)
		sink.Report(generic.Some(0), "Retrying without cookies...", mediagrab.StatusDownloading)
		req.CookieFile = ""
	}
	return c.attempt(ctx, req, sink)
}

func (c *Chain) attempt(ctx context.Context, req extract.Request, sink mediagrab.ProgressSink) (string, error) {
	info, err := c.extractor.Download(ctx, req, extractSink(sink))
	if err != nil {
		return "", err
	}
	return ResolveOutputPath(info, req.OutputTemplate)
}

func (c *Chain) viaRelay(ctx context.Context, url string, dir string, sink mediagrab.ProgressSink) (string, error) {
	sink.Report(generic.Some(0), "Looking up relay...", mediagrab.StatusDownloading)
	desc, err := c.relay.Lookup(ctx, url)
	if err != nil {
		return "", err
	}
	ext := util.ExtFromURLString(desc.URL)
	if ext == "" {
		ext = "mp4"
	}
	filename, err := c.config.TargetFilename(desc.Title, ext)
	if err != nil {
		return "", mediagrab.NewError(mediagrab.KindRelayUnavailable, "relay stream", err)
	}
	sink.Report(generic.Some(0), "Downloading via relay...", mediagrab.StatusDownloading)
	return c.relay.Fetch(ctx, desc, dir, filename, streamSink(sink))
}

// combine reports the relay failure, keeping the earlier failure as context.
func combine(primaryErr error, relayErr error) error {
	if primaryErr == nil {
		return relayErr
	}
	result := multierror.Append(primaryErr, relayErr)
	result.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return mediagrab.NewError(mediagrab.KindOf(relayErr), "fetch", result)
}
