package catalog

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultGenre is the genre assigned when no tag can be resolved. Genre is an
// enrichment, not a correctness-critical field, so resolution failures degrade
// to this value instead of propagating.
const DefaultGenre = "Undefined"

// GenreSource is the slice of the catalog service the resolver needs.
type GenreSource interface {
	ReleaseGroupGenres(ctx context.Context, id string) ([]string, error)
	ArtistGenres(ctx context.Context, id string) ([]string, error)
}

// GenreResolver resolves a best-effort genre label for one release group.
// Results are memoized, and concurrent first lookups for the same id are
// collapsed into a single network round trip.
type GenreResolver struct {
	source GenreSource
	cache  *GenreCache
	group  singleflight.Group
}

func NewGenreResolver(source GenreSource, cache *GenreCache) *GenreResolver {
	if cache == nil {
		cache = NewGenreCache()
	}
	return &GenreResolver{source: source, cache: cache}
}

// Resolve never fails: the release-group tags are tried first, then the artist
// tags when an artist id is known, and any error or empty result yields
// DefaultGenre. The outcome is cached before returning, the default included,
// so items confirmed to have no genre are not re-queried.
func (r *GenreResolver) Resolve(ctx context.Context, releaseGroupID string, artistID *string) string {
	if releaseGroupID == "" {
		return DefaultGenre
	}
	if genre, ok := r.cache.Get(ctx, releaseGroupID); ok {
		return genre
	}

	value, _, _ := r.group.Do(releaseGroupID, func() (any, error) {
		// Re-check inside the flight: a caller that lost the race to an
		// already-finished flight must hit the cache, not the network.
		if genre, ok := r.cache.Get(ctx, releaseGroupID); ok {
			return genre, nil
		}
		return r.lookup(ctx, releaseGroupID, artistID), nil
	})
	genre, ok := value.(string)
	if !ok || genre == "" {
		return DefaultGenre
	}
	return genre
}

func (r *GenreResolver) lookup(ctx context.Context, releaseGroupID string, artistID *string) string {
	genre := ""
	if names, err := r.source.ReleaseGroupGenres(ctx, releaseGroupID); err == nil && len(names) > 0 {
		genre = names[0]
	}
	if genre == "" && artistID != nil && strings.TrimSpace(*artistID) != "" {
		if names, err := r.source.ArtistGenres(ctx, *artistID); err == nil && len(names) > 0 {
			genre = names[0]
		}
	}

	if genre == "" {
		genre = DefaultGenre
	} else {
		genre = titleGenre(genre)
	}
	r.cache.Set(ctx, releaseGroupID, genre)
	return genre
}

// titleGenre turns MusicBrainz's lowercase tag names ("progressive rock")
// into display form ("Progressive Rock").
func titleGenre(raw string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(raw))
}
