package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"recordsrecord/catalogservice/internal/catalog"
	"recordsrecord/catalogservice/internal/domain"
)

type CatalogService interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchPage, error)
}

type CollectionStore interface {
	AddAlbum(ctx context.Context, album domain.CollectionAlbum) (domain.CollectionAlbum, error)
	ListAlbums(ctx context.Context) ([]domain.CollectionAlbum, error)
	AddReview(ctx context.Context, review domain.Review) (domain.Review, error)
}

type Server struct {
	catalog    CatalogService
	collection CollectionStore
	logger     *slog.Logger
}

const (
	maxQueryLength = 500
	maxBodyBytes   = 64 << 10
)

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithCollection(store CollectionStore) ServerOption {
	return func(s *Server) {
		s.collection = store
	}
}

func NewServer(catalogService CatalogService, options ...ServerOption) *Server {
	server := &Server{
		catalog: catalogService,
		logger:  slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search-albums", s.handleSearchAlbums)
	mux.HandleFunc("/albums", s.handleAlbums)
	mux.HandleFunc("/reviews", s.handleReviews)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "album-catalog",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearchAlbums(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search-albums" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "catalog service is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter is required.")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "Query too long.")
		return
	}
	limit, err := parseNonNegativeInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit parameter.")
		return
	}
	offset, err := parseNonNegativeInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset parameter.")
		return
	}

	page, err := s.catalog.Search(r.Context(), domain.SearchRequest{
		Query:  query,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Warn("album search failed",
			slog.String("query", truncate(query, 80)),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, catalog.ErrInvalidQuery), errors.Is(err, catalog.ErrInvalidOffset):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.logger.Info("album search completed",
		slog.String("query", truncate(query, 80)),
		slog.Int("albums", len(page.Albums)),
		slog.Int("count", page.Count),
		slog.Int("offset", offset),
	)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/albums" {
		http.NotFound(w, r)
		return
	}
	if s.collection == nil {
		writeError(w, http.StatusInternalServerError, "collection store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		albums, err := s.collection.ListAlbums(r.Context())
		if err != nil {
			s.logger.Error("list albums failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "could not load collection")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"albums": albums})
	case http.MethodPost:
		var album domain.CollectionAlbum
		if err := decodeBody(r, &album); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
		if strings.TrimSpace(album.ReleaseGroupID) == "" || strings.TrimSpace(album.Name) == "" {
			writeError(w, http.StatusBadRequest, "releaseGroupId and name are required.")
			return
		}
		persisted, err := s.collection.AddAlbum(r.Context(), album)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateAlbum) {
				writeError(w, http.StatusConflict, "Album already exists in your collection.")
				return
			}
			s.logger.Error("add album failed",
				slog.String("releaseGroupId", album.ReleaseGroupID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "could not add album")
			return
		}
		writeJSON(w, http.StatusCreated, persisted)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/reviews" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.collection == nil {
		writeError(w, http.StatusInternalServerError, "collection store is not configured")
		return
	}

	var review domain.Review
	if err := decodeBody(r, &review); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	persisted, err := s.collection.AddReview(r.Context(), review)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRating):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrAlbumNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			s.logger.Error("add review failed",
				slog.Int64("albumId", review.AlbumID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "could not save review")
		}
		return
	}
	writeJSON(w, http.StatusCreated, persisted)
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func parseNonNegativeInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("invalid " + key)
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
