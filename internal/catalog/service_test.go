package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"recordsrecord/catalogservice/internal/domain"
	"recordsrecord/catalogservice/internal/providers/musicbrainz"
)

type fakeSearcher struct {
	mu         sync.Mutex
	result     musicbrainz.SearchResult
	err        error
	lastQuery  string
	lastLimit  int
	lastOffset int
	calls      int
}

func (f *fakeSearcher) SearchReleaseGroups(_ context.Context, query string, limit, offset int) (musicbrainz.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastQuery = query
	f.lastLimit = limit
	f.lastOffset = offset
	if f.err != nil {
		return musicbrainz.SearchResult{}, f.err
	}
	return f.result, nil
}

func newTestService(searcher *fakeSearcher, source GenreSource) *Service {
	resolver := NewGenreResolver(source, NewGenreCache())
	return NewService(searcher, resolver)
}

func TestSearchValidation(t *testing.T) {
	service := newTestService(&fakeSearcher{}, newFakeGenreSource())

	if _, err := service.Search(context.Background(), domain.SearchRequest{Query: "   "}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
	if _, err := service.Search(context.Background(), domain.SearchRequest{Query: "pink", Offset: -1}); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("err = %v, want ErrInvalidOffset", err)
	}
}

func TestSearchAppliesDefaultsAndClamps(t *testing.T) {
	searcher := &fakeSearcher{}
	service := newTestService(searcher, newFakeGenreSource())

	if _, err := service.Search(context.Background(), domain.SearchRequest{Query: "pink floyd"}); err != nil {
		t.Fatalf("search error: %v", err)
	}
	if searcher.lastLimit != 10 || searcher.lastOffset != 0 {
		t.Fatalf("limit/offset = %d/%d, want 10/0", searcher.lastLimit, searcher.lastOffset)
	}

	if _, err := service.Search(context.Background(), domain.SearchRequest{Query: "pink floyd", Limit: 500, Offset: 20}); err != nil {
		t.Fatalf("search error: %v", err)
	}
	if searcher.lastLimit != 100 || searcher.lastOffset != 20 {
		t.Fatalf("limit/offset = %d/%d, want 100/20", searcher.lastLimit, searcher.lastOffset)
	}
}

func TestSearchWrapsUpstreamFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("musicbrainz search: 503 Service Unavailable")}
	service := newTestService(searcher, newFakeGenreSource())

	_, err := service.Search(context.Background(), domain.SearchRequest{Query: "nevermind"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if !strings.Contains(err.Error(), "503 Service Unavailable") {
		t.Fatalf("err %q does not carry the upstream status text", err)
	}
}

// Mirrors the degenerate record: empty release date, no artist credit, and a
// genre lookup that fails with a nil artist id.
func TestSearchFormatsDegradedRecord(t *testing.T) {
	searcher := &fakeSearcher{
		result: musicbrainz.SearchResult{
			Count: 1,
			ReleaseGroups: []musicbrainz.ReleaseGroup{
				{ID: "X", Title: "Nevermind"},
			},
		},
	}
	source := newFakeGenreSource()
	source.releaseErr = errors.New("connection reset")
	resolver := NewGenreResolver(source, NewGenreCache())
	service := NewService(searcher, resolver)

	page, err := service.Search(context.Background(), domain.SearchRequest{Query: "Nevermind"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if page.Count != 1 || len(page.Albums) != 1 {
		t.Fatalf("page = %+v", page)
	}

	album := page.Albums[0]
	if album.Year != "N/A" {
		t.Fatalf("year = %q, want N/A", album.Year)
	}
	if album.Artist != "Unknown" || album.ArtistID != nil {
		t.Fatalf("artist = %q/%v, want Unknown/nil", album.Artist, album.ArtistID)
	}
	if !strings.Contains(album.CoverURL, "X") {
		t.Fatalf("cover url %q does not contain the record id", album.CoverURL)
	}
	if album.Genre != DefaultGenre {
		t.Fatalf("genre = %q, want %q", album.Genre, DefaultGenre)
	}

	// The failed resolution is cached: a second page for the same record
	// must not hit the genre endpoint again.
	if _, err := service.Search(context.Background(), domain.SearchRequest{Query: "Nevermind"}); err != nil {
		t.Fatalf("second search error: %v", err)
	}
	if source.calls("X") != 1 {
		t.Fatalf("release genre calls = %d, want 1", source.calls("X"))
	}
}

func TestSearchEnrichesWholePage(t *testing.T) {
	searcher := &fakeSearcher{
		result: musicbrainz.SearchResult{
			Count: 42,
			ReleaseGroups: []musicbrainz.ReleaseGroup{
				{
					ID:               "rg-1",
					Title:            "The Dark Side of the Moon",
					FirstReleaseDate: "1973-03-01",
					ArtistCredit:     []musicbrainz.ArtistCredit{{Artist: musicbrainz.Artist{ID: "ar-1", Name: "Pink Floyd"}}},
				},
				{
					ID:               "rg-2",
					Title:            "Wish You Were Here",
					FirstReleaseDate: "1975",
					ArtistCredit:     []musicbrainz.ArtistCredit{{Artist: musicbrainz.Artist{ID: "ar-1", Name: "Pink Floyd"}}},
				},
				{
					ID:               "rg-3",
					Title:            "Animals",
					FirstReleaseDate: "1977-01-23",
					ArtistCredit:     []musicbrainz.ArtistCredit{{Artist: musicbrainz.Artist{ID: "ar-1", Name: "Pink Floyd"}}},
				},
			},
		},
	}
	source := newFakeGenreSource()
	source.releaseGenres["rg-1"] = []string{"progressive rock"}
	source.releaseGenres["rg-2"] = []string{"progressive rock"}
	source.artistGenres["ar-1"] = []string{"rock"}
	service := newTestService(searcher, source)

	page, err := service.Search(context.Background(), domain.SearchRequest{Query: "pink floyd"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if page.Count != 42 {
		t.Fatalf("count = %d, want 42", page.Count)
	}
	if len(page.Albums) != 3 {
		t.Fatalf("got %d albums, want 3", len(page.Albums))
	}

	// Upstream order is preserved through the concurrent fan-out.
	wantOrder := []string{"rg-1", "rg-2", "rg-3"}
	for i, want := range wantOrder {
		if page.Albums[i].ID != want {
			t.Fatalf("albums[%d].ID = %q, want %q", i, page.Albums[i].ID, want)
		}
	}

	if page.Albums[0].Genre != "Progressive Rock" {
		t.Fatalf("albums[0].Genre = %q", page.Albums[0].Genre)
	}
	if page.Albums[0].Year != "1973" {
		t.Fatalf("albums[0].Year = %q, want 1973", page.Albums[0].Year)
	}
	if page.Albums[1].Year != "1975" {
		t.Fatalf("albums[1].Year = %q, want 1975", page.Albums[1].Year)
	}
	// rg-3 has no release-group tags, so it falls back to the artist tags.
	if page.Albums[2].Genre != "Rock" {
		t.Fatalf("albums[2].Genre = %q, want Rock", page.Albums[2].Genre)
	}
	if page.Albums[0].ArtistID == nil || *page.Albums[0].ArtistID != "ar-1" {
		t.Fatalf("albums[0].ArtistID = %v, want ar-1", page.Albums[0].ArtistID)
	}
}
