package mediagrab

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/alanbriolat/mediagrab/util"
)

type Config struct {
	// Directory that all downloads are saved under.
	DownloadDir string
	// Optional cookie file for authenticated fetches; if it doesn't exist, authenticated attempts are skipped.
	CookieFile string
	// Appended to every media title in output filenames.
	FileSuffix string
	// Save each job's output under DownloadDir/<job id>/ so that same-titled jobs can't overwrite each other.
	IsolateJobs bool
	// Directory or path of the ffmpeg binary used for post-processing (empty means PATH).
	FFmpegLocation string

	RelayBaseURL string
	RelayToken   string
	RelayTimeout time.Duration
	// Maximum relay lookups per second (0 means unlimited).
	RelayRate float64

	MetadataTimeout time.Duration

	DatabasePath string
}

var DefaultConfig = Config{
	DownloadDir:     "downloads",
	CookieFile:      "cookies.txt",
	FileSuffix:      "(-by Alex)",
	IsolateJobs:     true,
	RelayTimeout:    30 * time.Second,
	RelayRate:       2,
	MetadataTimeout: 10 * time.Second,
	DatabasePath:    "mediagrab.db",
}

// CookiePath returns the cookie file path if one is configured and exists on disk.
func (c *Config) CookiePath() (string, bool) {
	if c.CookieFile == "" {
		return "", false
	}
	if info, err := os.Stat(c.CookieFile); err != nil || info.IsDir() {
		return "", false
	}
	return c.CookieFile, true
}

// TargetDir returns the directory to save output for the given job, creating it if necessary. An empty jobID means
// there is no job (e.g. a synchronous download), which always uses DownloadDir directly. The result is always absolute.
func (c *Config) TargetDir(jobID string) (string, error) {
	dir, err := filepath.Abs(c.DownloadDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve download dir: %w", err)
	}
	if c.IsolateJobs && jobID != "" {
		dir = filepath.Join(dir, jobID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create target dir: %w", err)
	}
	return dir, nil
}

var targetFileTemplate = template.Must(template.New("target_file").Parse("{{.Title}}{{.Suffix}}.{{.Ext}}"))

type targetFileTemplateArgs struct {
	Title  string
	Suffix string
	Ext    string
}

// TargetFilename renders the filename for media with the given title and extension (without leading ".").
func (c *Config) TargetFilename(title string, ext string) (string, error) {
	args := targetFileTemplateArgs{
		Title:  util.SanitizeFilename(title),
		Suffix: c.FileSuffix,
		Ext:    strings.TrimPrefix(ext, "."),
	}
	builder := strings.Builder{}
	if err := targetFileTemplate.Execute(&builder, &args); err != nil {
		return "", err
	} else {
		return builder.String(), nil
	}
}

// OutputTemplate returns the extraction library's output template for saving into dir.
func (c *Config) OutputTemplate(dir string) string {
	// "%" is the only special character in the template syntax itself
	suffix := strings.ReplaceAll(c.FileSuffix, "%", "%%")
	return filepath.Join(dir, "%(title)s"+suffix+".%(ext)s")
}
