package mediagrab

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/mediagrab/generic"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider name")
	ErrInvalidProvider   = errors.New("invalid provider")
	ErrNoMatch           = errors.New("no provider matched the input")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityLowest  int16 = math.MaxInt16
)

type MatchFunc = func(string) (Source, error)

// A Provider matches any URL it knows how to handle, giving a Source that can describe the media.
type Provider struct {
	Name  string
	Match MatchFunc
	// Priority of the matcher, lower (including negative) means matching earlier.
	Priority int16
}

// A Match is the result of a Provider successfully matching a URL.
type Match struct {
	ProviderName string
	Source       Source
}

// A ProviderRegistry is a collection of Provider instances which can be used to try to match URLs.
type ProviderRegistry struct {
	providers []*Provider
	names     generic.Set[string]
}

// Add registers a Provider with the ProviderRegistry. Provider.Name and Provider.Match must be set, and
// Provider.Name must be unique within the ProviderRegistry.
func (r *ProviderRegistry) Add(p Provider) error {
	if r.names == nil {
		r.names = generic.NewSet[string]()
	}
	if p.Name == "" || p.Match == nil {
		return ErrInvalidProvider
	}
	if !r.names.Add(p.Name) {
		return ErrDuplicateProvider
	}
	r.providers = append(r.providers, &p)
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority < r.providers[j].Priority
	})
	return nil
}

// MustAdd wraps Add but panics if there is an error.
func (r *ProviderRegistry) MustAdd(p Provider) {
	generic.Unwrap_(r.Add(p))
}

// List returns the names of registered providers in priority order.
func (r *ProviderRegistry) List() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name)
	}
	return names
}

// Candidates matches a string against every Provider, returning the matches in priority order. If nothing matches,
// the returned error wraps ErrNoMatch and carries each provider's reason.
func (r *ProviderRegistry) Candidates(s string) ([]Match, error) {
	var matches []Match
	reasons := multierror.Append(nil, ErrNoMatch)
	for _, p := range r.providers {
		source, err := p.Match(s)
		if err != nil {
			reasons = multierror.Append(reasons, multierror.Prefix(err, fmt.Sprintf("[%v]", p.Name)))
		} else if source != nil {
			matches = append(matches, Match{ProviderName: p.Name, Source: source})
		}
	}
	if len(matches) == 0 {
		return nil, reasons.ErrorOrNil()
	}
	return matches, nil
}

// Resolve fetches MediaInfo for a URL. Every candidate is tried in priority order until one of them manages a
// successful Source.Recon, so a narrow provider failing still lets a more general one have a go.
func (r *ProviderRegistry) Resolve(ctx context.Context, s string) (*Match, *MediaInfo, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil, Errorf(KindInvalidInput, "resolve", "missing url")
	}
	candidates, err := r.Candidates(s)
	if err != nil {
		return nil, nil, NewError(KindInvalidInput, "resolve", err)
	}
	var result *multierror.Error
	for i := range candidates {
		info, err := candidates[i].Source.Recon(ctx)
		if err == nil {
			return &candidates[i], info, nil
		}
		if ctx.Err() != nil {
			return nil, nil, NewError(KindMetadataUnavailable, "resolve", ctx.Err())
		}
		result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", candidates[i].ProviderName)))
	}
	return nil, nil, NewError(KindMetadataUnavailable, "resolve", result.ErrorOrNil())
}
