package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"

	"github.com/alanbriolat/mediagrab"
)

// YtDlp is the Extractor backed by the yt-dlp binary.
type YtDlp struct {
	// How often progress is reported while downloading.
	ProgressInterval time.Duration

	logger *zap.SugaredLogger
}

func NewYtDlp() *YtDlp {
	return &YtDlp{
		ProgressInterval: 500 * time.Millisecond,
		logger:           zap.S().Named("extract"),
	}
}

func (y *YtDlp) command(req Request) *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		ForceOverwrites()
	if req.OutputTemplate != "" {
		cmd.Output(req.OutputTemplate)
	}
	if req.Format != "" {
		cmd.Format(req.Format)
	}
	if req.CookieFile != "" {
		cmd.Cookies(req.CookieFile)
	}
	if req.AudioOnly {
		cmd.ExtractAudio()
		if req.AudioFormat != "" {
			cmd.AudioFormat(req.AudioFormat)
		}
		if req.AudioQuality != "" {
			cmd.AudioQuality(req.AudioQuality)
		}
	}
	if req.EmbedThumbnail {
		cmd.WriteThumbnail().EmbedThumbnail()
	}
	if req.FFmpegLocation != "" {
		cmd.FFmpegLocation(req.FFmpegLocation)
	}
	return cmd
}

func (y *YtDlp) Download(ctx context.Context, req Request, onEvent func(Event)) (*Info, error) {
	cmd := y.command(req).PrintJSON()
	if onEvent != nil {
		cmd.ProgressFunc(y.ProgressInterval, func(update ytdlp.ProgressUpdate) {
			if event, ok := eventFromUpdate(update); ok {
				onEvent(event)
			}
		})
	}
	log := y.logger.With("target", req.Target, "format", req.Format, "cookies", req.CookieFile != "")
	log.Debug("starting download")
	result, err := cmd.Run(ctx, req.Target)
	if err != nil {
		err = classify(ctx, "download", result, err)
		log.Debugw("download failed", "error", err)
		return nil, err
	}
	info, err := ParseInfo(result.Stdout)
	if err != nil {
		return nil, mediagrab.NewError(mediagrab.KindFatal, "download", err)
	}
	log.Debugw("download finished", "title", info.Title)
	return info, nil
}

func (y *YtDlp) Probe(ctx context.Context, req Request) (*Info, error) {
	cmd := y.command(req).DumpSingleJSON()
	result, err := cmd.Run(ctx, req.Target)
	if err != nil {
		return nil, classify(ctx, "probe", result, err)
	}
	info, err := ParseInfo(result.Stdout)
	if err != nil {
		return nil, mediagrab.NewError(mediagrab.KindMetadataUnavailable, "probe", err)
	}
	return info, nil
}

func eventFromUpdate(update ytdlp.ProgressUpdate) (Event, bool) {
	event := Event{
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
	}
	switch string(update.Status) {
	case string(EventDownloading):
		event.Status = EventDownloading
	case string(EventFinished):
		event.Status = EventFinished
	case string(EventError):
		event.Status = EventError
		event.Message = "download error"
	default:
		return event, false
	}
	return event, true
}

// classify turns a failed run into the error taxonomy. Only a run where the tool itself reported failure counts as
// ErrFormatUnavailable, which is what allows the caller to retry.
func classify(ctx context.Context, op string, result *ytdlp.Result, err error) error {
	if ctx.Err() != nil {
		return mediagrab.NewError(mediagrab.KindFatal, op, ctx.Err())
	}
	var exitErr *exec.ExitError
	if (result != nil && result.ExitCode > 0) || errors.As(err, &exitErr) {
		msg := ""
		if result != nil {
			msg = lastErrorLine(result.Stderr)
		}
		if msg == "" {
			msg = err.Error()
		}
		return mediagrab.NewError(mediagrab.KindFormatUnavailable, op, errors.New(msg))
	}
	return mediagrab.NewError(mediagrab.KindFatal, op, err)
}

// lastErrorLine finds the most relevant line of the tool's diagnostic output.
func lastErrorLine(stderr string) string {
	var last, lastError string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		last = line
		if strings.HasPrefix(line, "ERROR:") {
			lastError = strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	if lastError != "" {
		return lastError
	}
	return last
}

// ParseInfo parses the metadata the tool prints as JSON lines, ignoring anything else in the output. When several
// objects are printed, the last one wins.
func ParseInfo(stdout string) (*Info, error) {
	var info *Info
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var parsed Info
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			continue
		}
		info = &parsed
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	if info == nil {
		return nil, errors.New("no metadata in output")
	}
	return info, nil
}
