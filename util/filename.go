package util

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

const fallbackFilename = "download"

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

// SanitizeFilename replaces characters that are unsafe in filenames on common platforms, so that a media title can be
// used as (part of) a filename.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			continue
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), " .")
	if s == "" {
		return fallbackFilename
	}
	return s
}

// FilenameFromURL returns the last element of the URL's path, unescaped. Directory-like paths and names made only of
// dots have no filename.
func FilenameFromURL(u *url.URL) (string, error) {
	if u == nil || strings.HasSuffix(u.Path, "/") {
		return "", ErrNoFilename
	}
	name := path.Base(u.Path)
	if strings.Trim(name, ".") == "" || name == "/" {
		return "", ErrNoFilename
	}
	return name, nil
}

// ExtFromURLString returns the file extension (without ".") of the URL's filename, or "" if there is none.
func ExtFromURLString(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	filename, err := FilenameFromURL(u)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(path.Ext(filename), ".")
}
