package util

import (
	"net/url"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestFilenameFromURL(t *testing.T) {
	assert := assert_.New(t)
	filename := func(s string) (string, error) {
		u, err := url.Parse(s)
		if err != nil {
			t.Fatal(err)
		}
		return FilenameFromURL(u)
	}

	name, err := filename("http://x/path/test.mp4?sig=abc")
	assert.NoError(err)
	assert.Equal("test.mp4", name)

	name, err = filename("https://cdn.example.com/media/My%20Clip.mp4")
	assert.NoError(err)
	assert.Equal("My Clip.mp4", name)

	for _, s := range []string{"http://x", "http://x/", "http://x/dir/", "http://x/a/..", "http://x/..."} {
		_, err = filename(s)
		assert.ErrorIs(err, ErrNoFilename, s)
	}
	_, err = FilenameFromURL(nil)
	assert.ErrorIs(err, ErrNoFilename)
}

func TestExtFromURLString(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("mp4", ExtFromURLString("http://x/test.mp4"))
	assert.Equal("m4a", ExtFromURLString("https://cdn.example.com/v/abc.m4a?expire=1"))
	assert.Equal("", ExtFromURLString("https://cdn.example.com/stream"))
	assert.Equal("", ExtFromURLString("::bad"))
}

func TestSanitizeFilename(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("Artist - Track", SanitizeFilename("Artist - Track"))
	assert.Equal("a_b_c", SanitizeFilename("a/b\\c"))
	assert.Equal("tab", SanitizeFilename("\ttab\n"))
	assert.Equal("download", SanitizeFilename(" .. "))
	assert.Equal("Ünïcødé", SanitizeFilename("Ünïcødé"))
}
