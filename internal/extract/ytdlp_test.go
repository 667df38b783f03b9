package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/lrstanley/go-ytdlp"
	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/mediagrab"
)

func TestParseInfo(t *testing.T) {
	assert := assert_.New(t)
	stdout := `[youtube] abc: Downloading webpage
{"id": "abc", "title": "Song", "ext": "webm", "_filename": "/tmp/Song.webm", "requested_downloads": [{"filepath": "/tmp/Song.mp4", "ext": "mp4"}]}
`
	info, err := ParseInfo(stdout)
	require.NoError(t, err)
	assert.Equal("abc", info.ID)
	assert.Equal("Song", info.Title)
	assert.Equal("/tmp/Song.webm", info.AltFilename)
	require.Len(t, info.RequestedDownloads, 1)
	assert.Equal("/tmp/Song.mp4", info.RequestedDownloads[0].Filepath)
	assert.Equal(map[string]string{"id": "abc", "title": "Song", "ext": "webm"}, info.Fields())
}

func TestParseInfo_Entries(t *testing.T) {
	assert := assert_.New(t)
	info, err := ParseInfo(`{"id": "ytsearch1:x", "entries": [{"id": "a", "title": "A", "ext": "mp3"}]}`)
	require.NoError(t, err)
	require.Len(t, info.Entries, 1)
	assert.Equal("A", info.Entries[0].Title)
}

func TestParseInfo_Empty(t *testing.T) {
	_, err := ParseInfo("[download] nothing to see\n{not json\n")
	assert_.Error(t, err)
}

func TestLastErrorLine(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("Requested format is not available", lastErrorLine("WARNING: x\nERROR: Requested format is not available\nmore\n"))
	assert.Equal("more", lastErrorLine("WARNING: x\nmore\n\n"))
	assert.Equal("", lastErrorLine(""))
}

func TestClassify(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()

	err := classify(ctx, "download", &ytdlp.Result{ExitCode: 1, Stderr: "ERROR: HTTP Error 403: Forbidden"}, errors.New("exit status 1"))
	assert.ErrorIs(err, mediagrab.ErrFormatUnavailable)
	assert.ErrorContains(err, "HTTP Error 403: Forbidden")

	err = classify(ctx, "download", nil, errors.New("executable not found"))
	assert.ErrorIs(err, mediagrab.ErrFatal)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = classify(cancelled, "download", &ytdlp.Result{ExitCode: 1}, errors.New("killed"))
	assert.ErrorIs(err, mediagrab.ErrFatal)
	assert.ErrorIs(err, context.Canceled)
}
