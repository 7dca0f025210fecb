// Package catalog aggregates paged album searches against the external
// catalog service and enriches each hit with a best-effort, memoized genre.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"recordsrecord/catalogservice/internal/domain"
	"recordsrecord/catalogservice/internal/providers/musicbrainz"
)

var (
	ErrInvalidQuery  = errors.New("query is required")
	ErrInvalidOffset = errors.New("offset must be >= 0")
	ErrUpstream      = errors.New("catalog search failed")
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	defaultCoverBase = "https://coverartarchive.org"

	// maxConcurrentResolves bounds the per-page genre fan-out so a large page
	// does not open one connection per album at once.
	maxConcurrentResolves = 10

	unknownArtist = "Unknown"
	unknownYear   = "N/A"
)

// Searcher is the paged text-search slice of the catalog service.
type Searcher interface {
	SearchReleaseGroups(ctx context.Context, query string, limit, offset int) (musicbrainz.SearchResult, error)
}

type Service struct {
	searcher  Searcher
	resolver  *GenreResolver
	coverBase string
}

type ServiceOption func(*Service)

// WithCoverArtEndpoint overrides the base URL used for the deterministic
// cover-image template.
func WithCoverArtEndpoint(endpoint string) ServiceOption {
	return func(s *Service) {
		if value := strings.TrimRight(strings.TrimSpace(endpoint), "/"); value != "" {
			s.coverBase = value
		}
	}
}

func NewService(searcher Searcher, resolver *GenreResolver, opts ...ServiceOption) *Service {
	service := &Service{
		searcher:  searcher,
		resolver:  resolver,
		coverBase: defaultCoverBase,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Search runs one paged catalog query and returns the formatted, enriched
// page. A failed search call aborts the page; genre resolution cannot fail,
// so a page either fully succeeds or fails at the search step.
func (s *Service) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchPage, error) {
	query := strings.TrimSpace(request.Query)
	if query == "" {
		return domain.SearchPage{}, ErrInvalidQuery
	}
	if request.Offset < 0 {
		return domain.SearchPage{}, ErrInvalidOffset
	}
	limit := request.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	result, err := s.searcher.SearchReleaseGroups(ctx, query, limit, request.Offset)
	if err != nil {
		return domain.SearchPage{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	albums := make([]domain.Album, len(result.ReleaseGroups))
	for i, record := range result.ReleaseGroups {
		albums[i] = s.formatRecord(record)
	}
	s.resolveGenres(ctx, albums)

	return domain.SearchPage{Albums: albums, Count: result.Count}, nil
}

// formatRecord maps a raw release group to the caller-facing shape. Missing
// artist-credit fields degrade per record instead of failing the page.
func (s *Service) formatRecord(record musicbrainz.ReleaseGroup) domain.Album {
	artist := unknownArtist
	var artistID *string
	if len(record.ArtistCredit) > 0 {
		credited := record.ArtistCredit[0].Artist
		if credited.Name != "" {
			artist = credited.Name
		}
		if credited.ID != "" {
			id := credited.ID
			artistID = &id
		}
	}

	year := unknownYear
	if date := strings.TrimSpace(record.FirstReleaseDate); date != "" {
		year = strings.SplitN(date, "-", 2)[0]
	}

	return domain.Album{
		ID:       record.ID,
		Name:     record.Title,
		Artist:   artist,
		ArtistID: artistID,
		Year:     year,
		CoverURL: s.coverURL(record.ID),
		Genre:    DefaultGenre,
	}
}

func (s *Service) coverURL(releaseGroupID string) string {
	return s.coverBase + "/release-group/" + releaseGroupID + "/front-250"
}

// resolveGenres fans out one resolution per album and joins before returning,
// so page latency is bounded by the slowest single resolution rather than the
// sum. If the context dies mid-fan-out, unresolved albums keep DefaultGenre.
func (s *Service) resolveGenres(ctx context.Context, albums []domain.Album) {
	if s.resolver == nil || len(albums) == 0 {
		return
	}

	sem := semaphore.NewWeighted(maxConcurrentResolves)
	var wg sync.WaitGroup
	for i := range albums {
		wg.Add(1)
		go func(album *domain.Album) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			album.Genre = s.resolver.Resolve(ctx, album.ID, album.ArtistID)
		}(&albums[i])
	}
	wg.Wait()
}
