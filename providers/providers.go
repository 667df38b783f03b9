// Package providers assembles the ProviderRegistry used to describe media URLs.
package providers

import (
	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/internal/extract"
	"github.com/alanbriolat/mediagrab/provider/generic"
	"github.com/alanbriolat/mediagrab/provider/raw"
	"github.com/alanbriolat/mediagrab/provider/spotify"
	"github.com/alanbriolat/mediagrab/provider/youtube"
)

// New creates a registry that tries, in order: Spotify track links, YouTube links, direct media file links, and finally
// anything the extraction tool can describe.
func New(config *mediagrab.Config, extractor extract.Extractor, music *spotify.Resolver) *mediagrab.ProviderRegistry {
	registry := &mediagrab.ProviderRegistry{}
	if music != nil {
		registry.MustAdd(music.Provider())
	}
	registry.MustAdd(youtube.Config{Timeout: config.MetadataTimeout}.Provider())
	registry.MustAdd(raw.NewConfig().Provider())
	registry.MustAdd(generic.Config{Extractor: extractor, CookiePath: config.CookiePath}.Provider())
	return registry
}
