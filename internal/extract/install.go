package extract

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/lrstanley/go-ytdlp"
)

// Install makes sure a usable yt-dlp binary is available, downloading it if needed, and returns its path and version.
func Install(ctx context.Context) (string, string, error) {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to install yt-dlp: %w", err)
	}
	return resolved.Executable, resolved.Version, nil
}

// FindFFmpeg returns the ffmpeg location to use: the configured one if set, otherwise whatever is on PATH.
func FindFFmpeg(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	return path, nil
}
