package apihttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"recordsrecord/catalogservice/internal/catalog"
	"recordsrecord/catalogservice/internal/domain"
)

type fakeCatalog struct {
	mu       sync.Mutex
	page     domain.SearchPage
	err      error
	requests []domain.SearchRequest
}

func (f *fakeCatalog) Search(_ context.Context, request domain.SearchRequest) (domain.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	if f.err != nil {
		return domain.SearchPage{}, f.err
	}
	return f.page, nil
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeCollectionStore struct {
	albums    []domain.CollectionAlbum
	addErr    error
	reviewErr error
}

func (f *fakeCollectionStore) AddAlbum(_ context.Context, album domain.CollectionAlbum) (domain.CollectionAlbum, error) {
	if f.addErr != nil {
		return domain.CollectionAlbum{}, f.addErr
	}
	album.ID = int64(len(f.albums) + 1)
	f.albums = append(f.albums, album)
	return album, nil
}

func (f *fakeCollectionStore) ListAlbums(_ context.Context) ([]domain.CollectionAlbum, error) {
	return f.albums, nil
}

func (f *fakeCollectionStore) AddReview(_ context.Context, review domain.Review) (domain.Review, error) {
	if f.reviewErr != nil {
		return domain.Review{}, f.reviewErr
	}
	review.ID = 1
	return review, nil
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestSearchAlbumsRequiresQuery(t *testing.T) {
	service := &fakeCatalog{}
	server := NewServer(service)
	handler := server.Handler()

	for _, target := range []string{"/search-albums", "/search-albums?q=", "/search-albums?q=%20%20"} {
		recorder := doRequest(t, handler, http.MethodGet, target, "")
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, recorder.Code)
		}
		if got := strings.TrimSpace(recorder.Body.String()); got != `{"error":"Query parameter is required."}` {
			t.Fatalf("%s: body = %s", target, got)
		}
	}
	if service.callCount() != 0 {
		t.Fatalf("search invoked %d times for missing query, want 0", service.callCount())
	}
}

func TestSearchAlbumsSuccess(t *testing.T) {
	artistID := "ar-1"
	service := &fakeCatalog{
		page: domain.SearchPage{
			Count: 27,
			Albums: []domain.Album{
				{
					ID:       "rg-1",
					Name:     "Nevermind",
					Artist:   "Nirvana",
					ArtistID: &artistID,
					Year:     "1991",
					CoverURL: "https://coverartarchive.org/release-group/rg-1/front-250",
					Genre:    "Grunge",
				},
			},
		},
	}
	server := NewServer(service)

	recorder := doRequest(t, server.Handler(), http.MethodGet, "/search-albums?q=nevermind&limit=5&offset=10", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var page struct {
		Albums []map[string]any `json:"albums"`
		Count  int              `json:"count"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if page.Count != 27 || len(page.Albums) != 1 {
		t.Fatalf("page = %+v", page)
	}
	got := page.Albums[0]
	for key, want := range map[string]string{
		"id":       "rg-1",
		"name":     "Nevermind",
		"artist":   "Nirvana",
		"artistId": "ar-1",
		"year":     "1991",
		"genre":    "Grunge",
	} {
		if got[key] != want {
			t.Fatalf("albums[0][%q] = %v, want %q", key, got[key], want)
		}
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	if len(service.requests) != 1 {
		t.Fatalf("search invoked %d times, want 1", len(service.requests))
	}
	want := domain.SearchRequest{Query: "nevermind", Limit: 5, Offset: 10}
	if service.requests[0] != want {
		t.Fatalf("request = %+v, want %+v", service.requests[0], want)
	}
}

func TestSearchAlbumsInvalidPagination(t *testing.T) {
	service := &fakeCatalog{}
	server := NewServer(service)
	handler := server.Handler()

	recorder := doRequest(t, handler, http.MethodGet, "/search-albums?q=nirvana&limit=abc", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "Invalid limit parameter.") {
		t.Fatalf("body = %s", recorder.Body.String())
	}

	recorder = doRequest(t, handler, http.MethodGet, "/search-albums?q=nirvana&offset=-1", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "Invalid offset parameter.") {
		t.Fatalf("body = %s", recorder.Body.String())
	}
	if service.callCount() != 0 {
		t.Fatalf("search invoked %d times, want 0", service.callCount())
	}
}

func TestSearchAlbumsUpstreamFailure(t *testing.T) {
	service := &fakeCatalog{
		err: fmt.Errorf("%w: musicbrainz search: 503 Service Unavailable", catalog.ErrUpstream),
	}
	server := NewServer(service)

	recorder := doRequest(t, server.Handler(), http.MethodGet, "/search-albums?q=nirvana", "")
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", recorder.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.Contains(body["error"], "503 Service Unavailable") {
		t.Fatalf("body = %v", body)
	}
}

func TestSearchAlbumsMethodNotAllowed(t *testing.T) {
	server := NewServer(&fakeCatalog{})
	recorder := doRequest(t, server.Handler(), http.MethodPost, "/search-albums?q=x", "")
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", recorder.Code)
	}
}

func TestAlbumsCreateAndList(t *testing.T) {
	store := &fakeCollectionStore{}
	server := NewServer(&fakeCatalog{}, WithCollection(store))
	handler := server.Handler()

	recorder := doRequest(t, handler, http.MethodPost, "/albums",
		`{"releaseGroupId":"rg-1","name":"Nevermind","artist":"Nirvana","year":"1991","genre":"Grunge","coverUrl":"x"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	var created domain.CollectionAlbum
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if created.ID == 0 || created.ReleaseGroupID != "rg-1" {
		t.Fatalf("created = %+v", created)
	}

	recorder = doRequest(t, handler, http.MethodGet, "/albums", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var listed struct {
		Albums []domain.CollectionAlbum `json:"albums"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(listed.Albums) != 1 || listed.Albums[0].Name != "Nevermind" {
		t.Fatalf("listed = %+v", listed)
	}
}

func TestAlbumsDuplicateConflict(t *testing.T) {
	store := &fakeCollectionStore{addErr: domain.ErrDuplicateAlbum}
	server := NewServer(&fakeCatalog{}, WithCollection(store))

	recorder := doRequest(t, server.Handler(), http.MethodPost, "/albums",
		`{"releaseGroupId":"rg-1","name":"Nevermind"}`)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "already exists") {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}

func TestAlbumsValidatesBody(t *testing.T) {
	server := NewServer(&fakeCatalog{}, WithCollection(&fakeCollectionStore{}))
	handler := server.Handler()

	recorder := doRequest(t, handler, http.MethodPost, "/albums", `{not json`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}

	recorder = doRequest(t, handler, http.MethodPost, "/albums", `{"name":"Nevermind"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing releaseGroupId", recorder.Code)
	}
}

func TestReviews(t *testing.T) {
	cases := []struct {
		name       string
		storeErr   error
		wantStatus int
	}{
		{name: "created", wantStatus: http.StatusCreated},
		{name: "invalid rating", storeErr: domain.ErrInvalidRating, wantStatus: http.StatusBadRequest},
		{name: "album missing", storeErr: domain.ErrAlbumNotFound, wantStatus: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeCollectionStore{reviewErr: tc.storeErr}
			server := NewServer(&fakeCatalog{}, WithCollection(store))

			recorder := doRequest(t, server.Handler(), http.MethodPost, "/reviews",
				`{"albumId":1,"production":4,"composition":5,"originality":3,"notes":"holds up"}`)
			if recorder.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", recorder.Code, tc.wantStatus, recorder.Body.String())
			}
		})
	}
}

func TestHealth(t *testing.T) {
	server := NewServer(&fakeCatalog{})
	recorder := doRequest(t, server.Handler(), http.MethodGet, "/health", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}
