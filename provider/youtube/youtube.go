// Package youtube describes YouTube videos without going through the extraction tool.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/alanbriolat/mediagrab"
)

type Config struct {
	Timeout time.Duration
}

func (c Config) Match(s string) (mediagrab.Source, error) {
	if parsedURL, err := url.Parse(strings.TrimSpace(s)); err != nil {
		return nil, err
	} else if videoID, err := extractVideoID(parsedURL); err != nil {
		return nil, err
	} else {
		return &source{videoID: *videoID, timeout: c.Timeout}, nil
	}
}

func (c Config) Provider() mediagrab.Provider {
	return mediagrab.Provider{Name: "youtube", Match: c.Match}
}

type source struct {
	videoID string
	timeout time.Duration
}

func (s *source) URL() string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", s.videoID)
}

func (s *source) String() string {
	return s.URL()
}

func (s *source) Recon(ctx context.Context) (*mediagrab.MediaInfo, error) {
	client := youtube.Client{HTTPClient: &http.Client{Timeout: s.timeout}}
	video, err := client.GetVideoContext(ctx, s.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	return mediaInfo(video), nil
}

func mediaInfo(video *youtube.Video) *mediagrab.MediaInfo {
	info := &mediagrab.MediaInfo{Title: video.Title}
	// Thumbnails are listed smallest first
	var bestWidth uint
	for _, thumbnail := range video.Thumbnails {
		if info.Thumbnail == "" || thumbnail.Width > bestWidth {
			info.Thumbnail = thumbnail.URL
			bestWidth = thumbnail.Width
		}
	}
	for _, format := range video.Formats {
		info.Formats = append(info.Formats, mediagrab.FormatInfo{
			// Format IDs used by the extraction tool for YouTube are the itags
			ID:   strconv.Itoa(format.ItagNo),
			Ext:  extFromMimeType(format.MimeType),
			Note: formatNote(format),
		})
	}
	return info
}

func formatNote(format youtube.Format) string {
	var parts []string
	if format.QualityLabel != "" {
		parts = append(parts, format.QualityLabel)
	}
	if format.AudioChannels > 0 {
		parts = append(parts, "audio")
	} else {
		parts = append(parts, "video only")
	}
	return strings.Join(parts, ", ")
}

// extFromMimeType gives "mp4" for e.g. `video/mp4; codecs="avc1.42001E, mp4a.40.2"`.
func extFromMimeType(mimeType string) string {
	mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	parts := strings.SplitN(mimeType, "/", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Extract video ID from YouTube URL.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/(watch|details)?v={VIDEO_ID}
//	http(s?)://(www|m).youtube.com/(v|shorts)/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
func extractVideoID(url *url.URL) (*string, error) {
	var id string
	switch url.Hostname() {
	case "youtube.com":
		fallthrough
	case "www.youtube.com":
		fallthrough
	case "m.youtube.com":
		if strings.HasPrefix(url.Path, "/v/") || strings.HasPrefix(url.Path, "/shorts/") {
			id = strings.SplitN(url.Path, "/", 4)[2]
		} else if url.Path == "/watch" || url.Path == "/details" {
			if url.Query().Has("v") {
				id = url.Query().Get("v")
			} else {
				return nil, fmt.Errorf("missing ?v= query parameter")
			}
		}
	case "youtu.be":
		id = strings.Trim(url.Path, "/")
	default:
		return nil, fmt.Errorf("unrecognised hostname")
	}
	if id == "" {
		return nil, fmt.Errorf("could not extract video ID")
	}
	return &id, nil
}
