package fetch

import (
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/internal/extract"
)

func touch(t *testing.T, path string) {
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestPrepareFilename(t *testing.T) {
	assert := assert_.New(t)
	info := &extract.Info{ID: "abc", Title: "AC/DC: Live", Ext: "webm"}
	assert.Equal("/d/AC_DC_ Live(-by Alex).webm", PrepareFilename("/d/%(title)s(-by Alex).%(ext)s", info))
	assert.Equal("/d/abc-NA 100%.webm", PrepareFilename("/d/%(id)s-%(uploader)s 100%%.%(ext)s", info))
}

func TestResolveOutputPath_AlternateExtension(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	template := filepath.Join(dir, "%(title)s.%(ext)s")
	touch(t, filepath.Join(dir, "video.mp4"))
	info := &extract.Info{Title: "video", Ext: "webm", AltFilename: filepath.Join(dir, "video.webm")}

	path, err := ResolveOutputPath(info, template)
	require.NoError(t, err)
	assert.Equal(filepath.Join(dir, "video.mp4"), path)
}

func TestResolveOutputPath_Order(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	template := filepath.Join(dir, "%(title)s.%(ext)s")
	touch(t, filepath.Join(dir, "video.mkv"))
	touch(t, filepath.Join(dir, "merged.mkv"))
	info := &extract.Info{
		Title:              "video",
		Ext:                "mkv",
		RequestedDownloads: []extract.RequestedDownload{{Filepath: filepath.Join(dir, "merged.mkv")}},
	}

	path, err := ResolveOutputPath(info, template)
	require.NoError(t, err)
	assert.Equal(filepath.Join(dir, "merged.mkv"), path)

	candidates := OutputCandidates(info, template)
	assert.Equal(filepath.Join(dir, "merged.mkv"), candidates[0])
	assert.Contains(candidates, filepath.Join(dir, "video.opus"))
	// The declared extension comes before the fallback list, and isn't repeated
	assert.Equal(filepath.Join(dir, "video.mkv"), candidates[2])
	assert.Len(candidates, 8)
}

func TestResolveOutputPath_SearchEntries(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	template := filepath.Join(dir, "%(title)s.%(ext)s")
	touch(t, filepath.Join(dir, "Track.mp3"))
	info := &extract.Info{
		Title:   "ytsearch1:Track",
		Entries: []*extract.Info{{Title: "Track", Ext: "webm"}},
	}

	path, err := ResolveOutputPath(info, template)
	require.NoError(t, err)
	assert.Equal(filepath.Join(dir, "Track.mp3"), path)
}

func TestResolveOutputPath_Missing(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	// A directory with a matching name doesn't count
	require.NoError(t, os.Mkdir(filepath.Join(dir, "video.mp4"), 0755))
	info := &extract.Info{Title: "video", Ext: "webm", Filename: filepath.Join(dir, "video.webm")}

	_, err := ResolveOutputPath(info, filepath.Join(dir, "%(title)s.%(ext)s"))
	assert.ErrorIs(err, mediagrab.ErrFileMissingAfterProcessing)

	_, err = ResolveOutputPath(nil, "")
	assert.ErrorIs(err, mediagrab.ErrFileMissingAfterProcessing)
}
