// Package session implements the incremental search session: a client-side
// state machine that debounces query input, pages through the aggregation
// endpoint, and merges pages into one deduplicated result list per query.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"recordsrecord/catalogservice/internal/domain"
)

// ErrNoCollection is returned by Add when the session has no collection store.
var ErrNoCollection = errors.New("collection is not configured")

type State string

const (
	// StateIdle means no active query.
	StateIdle State = "idle"
	// StateSearching means a page request is in flight. At most one request
	// is in flight per session.
	StateSearching State = "searching"
	// StateReady means the last requested page loaded and more may exist.
	StateReady State = "ready"
	// StateExhausted means the loaded count has reached the reported total.
	StateExhausted State = "exhausted"
)

const (
	defaultDebounce       = 300 * time.Millisecond
	defaultPageLimit      = 10
	defaultRequestTimeout = 15 * time.Second

	// minQueryLength is the trimmed length a query must exceed before the
	// debounce activates it.
	minQueryLength = 3
)

// Fetcher issues one page request against the aggregation endpoint.
type Fetcher interface {
	SearchAlbums(ctx context.Context, query string, limit, offset int) (domain.SearchPage, error)
}

// Collection is the add-to-collection side effect.
type Collection interface {
	AddAlbum(ctx context.Context, album domain.CollectionAlbum) (domain.CollectionAlbum, error)
}

// Snapshot is an immutable view of the session handed to the update hook.
type Snapshot struct {
	State   State
	Query   string
	Albums  []domain.Album
	Total   int
	Offset  int
	HasMore bool
	Message string
}

type Session struct {
	fetcher        Fetcher
	collection     Collection
	limit          int
	debounce       time.Duration
	requestTimeout time.Duration
	onUpdate       func(Snapshot)

	mu         sync.Mutex
	state      State
	query      string
	offset     int
	generation uint64
	albums     []domain.Album
	seen       map[string]struct{}
	total      int
	message    string
	timer      *time.Timer
}

type Option func(*Session)

func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func WithPageLimit(limit int) Option {
	return func(s *Session) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

func WithCollection(collection Collection) Option {
	return func(s *Session) {
		s.collection = collection
	}
}

// WithUpdateHook installs a callback fired after every state change. The
// callback runs outside the session lock and may be invoked from timer and
// fetch goroutines.
func WithUpdateHook(hook func(Snapshot)) Option {
	return func(s *Session) {
		s.onUpdate = hook
	}
}

func New(fetcher Fetcher, opts ...Option) *Session {
	session := &Session{
		fetcher:        fetcher,
		limit:          defaultPageLimit,
		debounce:       defaultDebounce,
		requestTimeout: defaultRequestTimeout,
		state:          StateIdle,
		seen:           make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(session)
	}
	return session
}

// Input records a keystroke. Each call cancels any pending debounce timer and
// arms a fresh one; only the last keystroke's timer fires.
func (s *Session) Input(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() { s.debounced(raw) })
}

func (s *Session) debounced(raw string) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) <= minQueryLength {
		s.mu.Lock()
		s.resetLocked()
		s.state = StateIdle
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snapshot)
		return
	}
	s.startQuery(trimmed)
}

// Submit bypasses the debounce and activates the current input immediately,
// provided it is non-empty.
func (s *Session) Submit(raw string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.startQuery(trimmed)
}

func (s *Session) startQuery(query string) {
	s.mu.Lock()
	s.resetLocked()
	s.query = query
	generation := s.generation
	s.state = StateSearching
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)

	go s.fetch(generation, query, 0)
}

// LoadMore requests the next page for the active query. It is valid only in
// StateReady; in any other state it is a no-op.
func (s *Session) LoadMore() {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	s.state = StateSearching
	s.message = ""
	generation := s.generation
	query := s.query
	offset := s.offset
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)

	go s.fetch(generation, query, offset)
}

func (s *Session) fetch(generation uint64, query string, offset int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()
	page, err := s.fetcher.SearchAlbums(ctx, query, s.limit, offset)
	s.deliver(generation, page, err)
}

// deliver merges a page response into the session. Responses tagged with a
// generation other than the current one were issued for a superseded query
// and are discarded unmerged.
func (s *Session) deliver(generation uint64, page domain.SearchPage, err error) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.message = "Search failed: " + err.Error()
		if len(s.seen) == 0 {
			s.state = StateIdle
		} else {
			s.state = StateReady
		}
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snapshot)
		return
	}

	for _, album := range page.Albums {
		if _, ok := s.seen[album.ID]; ok {
			continue
		}
		s.seen[album.ID] = struct{}{}
		s.albums = append(s.albums, album)
	}
	s.total = page.Count
	s.offset += s.limit
	s.message = ""
	if len(s.seen) >= s.total {
		s.state = StateExhausted
	} else {
		s.state = StateReady
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)
}

// Add persists a result item into the collection. On success the item leaves
// the local result list and the persisted record is returned; its id stays
// known so a duplicate page delivery cannot resurrect it. A duplicate
// surfaces as domain.ErrDuplicateAlbum with an "already in your collection"
// message rather than a generic failure.
func (s *Session) Add(ctx context.Context, albumID string) (domain.CollectionAlbum, error) {
	s.mu.Lock()
	if s.collection == nil {
		s.mu.Unlock()
		return domain.CollectionAlbum{}, ErrNoCollection
	}
	var album *domain.Album
	for i := range s.albums {
		if s.albums[i].ID == albumID {
			album = &s.albums[i]
			break
		}
	}
	if album == nil {
		s.mu.Unlock()
		return domain.CollectionAlbum{}, domain.ErrAlbumNotFound
	}
	record := domain.CollectionAlbum{
		ReleaseGroupID: album.ID,
		Name:           album.Name,
		Artist:         album.Artist,
		Year:           album.Year,
		Genre:          album.Genre,
		CoverURL:       album.CoverURL,
	}
	s.mu.Unlock()

	persisted, err := s.collection.AddAlbum(ctx, record)
	if err != nil {
		s.mu.Lock()
		if errors.Is(err, domain.ErrDuplicateAlbum) {
			s.message = `Album "` + record.Name + `" is already in your collection.`
		} else {
			s.message = "Could not add album: " + err.Error()
		}
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snapshot)
		return domain.CollectionAlbum{}, err
	}

	s.mu.Lock()
	for i := range s.albums {
		if s.albums[i].ID == albumID {
			s.albums = append(s.albums[:i], s.albums[i+1:]...)
			break
		}
	}
	s.message = `Album "` + persisted.Name + `" added to your collection.`
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)
	return persisted, nil
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close cancels any pending debounce timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// resetLocked discards the accumulated state and advances the generation so
// any response still in flight for the previous query is dropped on arrival.
func (s *Session) resetLocked() {
	s.generation++
	s.query = ""
	s.offset = 0
	s.albums = nil
	s.seen = make(map[string]struct{})
	s.total = 0
	s.message = ""
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:   s.state,
		Query:   s.query,
		Albums:  append([]domain.Album(nil), s.albums...),
		Total:   s.total,
		Offset:  s.offset,
		HasMore: s.state == StateReady,
		Message: s.message,
	}
}

func (s *Session) notify(snapshot Snapshot) {
	if s.onUpdate != nil {
		s.onUpdate(snapshot)
	}
}
