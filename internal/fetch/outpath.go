package fetch

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/generic"
	"github.com/alanbriolat/mediagrab/internal/extract"
	"github.com/alanbriolat/mediagrab/util"
)

// Extensions tried against the prepared filename after the declared one, since post-processing often changes the
// container.
var FallbackExtensions = []string{"mp4", "mkv", "webm", "m4a", "mp3", "opus"}

var templateField = regexp.MustCompile(`%%|%\((\w+)\)s`)

// PrepareFilename renders an output template for info the way the extraction tool would, as best it can be predicted.
func PrepareFilename(template string, info *extract.Info) string {
	fields := info.Fields()
	return templateField.ReplaceAllStringFunc(template, func(m string) string {
		if m == "%%" {
			return "%"
		}
		key := templateField.FindStringSubmatch(m)[1]
		value, ok := fields[key]
		if !ok || value == "" {
			return "NA"
		}
		if key == "title" {
			return util.SanitizeFilename(value)
		}
		return value
	})
}

// OutputCandidates lists every path the output file might be at, most trusted first, without duplicates.
func OutputCandidates(info *extract.Info, template string) []string {
	var candidates []string
	for _, d := range info.RequestedDownloads {
		candidates = append(candidates, d.Filepath, d.AltFilename, d.Filename)
	}
	candidates = append(candidates, info.AltFilename, info.Filename, template)
	prepared := PrepareFilename(template, info)
	candidates = append(candidates, prepared)
	base := strings.TrimSuffix(prepared, filepath.Ext(prepared))
	for _, ext := range append([]string{info.Ext}, FallbackExtensions...) {
		if ext != "" {
			candidates = append(candidates, base+"."+ext)
		}
	}

	seen := generic.NewSet[string]()
	result := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c != "" && seen.Add(c) {
			result = append(result, c)
		}
	}
	return result
}

// ResolveOutputPath finds the file that was actually produced for info. The tool's own idea of the filename is not
// trusted: if no candidate exists on disk, the result is ErrFileMissingAfterProcessing even though the tool succeeded.
// A search result's own metadata rarely names a file, so the first entry is tried too.
func ResolveOutputPath(info *extract.Info, template string) (string, error) {
	const op = "resolve output"
	if info == nil {
		return "", mediagrab.Errorf(mediagrab.KindFileMissingAfterProcessing, op, "no metadata")
	}
	candidates := OutputCandidates(info, template)
	for _, c := range candidates {
		if stat, err := os.Stat(c); err == nil && stat.Mode().IsRegular() {
			if abs, err := filepath.Abs(c); err == nil {
				return abs, nil
			}
			return c, nil
		}
	}
	if len(info.Entries) > 0 && info.Entries[0] != nil {
		return ResolveOutputPath(info.Entries[0], template)
	}
	return "", mediagrab.Errorf(mediagrab.KindFileMissingAfterProcessing, op, "none of %d candidate paths exist", len(candidates))
}
