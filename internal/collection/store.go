// Package collection persists the personal album collection and its reviews
// in SQLite.
package collection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"recordsrecord/catalogservice/internal/domain"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) init() error {
	// WAL keeps collection writes from blocking concurrent list reads.
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		return err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS albums (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		release_group_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		artist TEXT NOT NULL,
		year TEXT NOT NULL,
		genre TEXT NOT NULL,
		cover_url TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		album_id INTEGER NOT NULL REFERENCES albums(id),
		production INTEGER NOT NULL,
		composition INTEGER NOT NULL,
		originality INTEGER NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_album_id ON reviews(album_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AddAlbum inserts an album and returns the persisted record. Inserting an
// album whose release-group id already exists yields domain.ErrDuplicateAlbum
// so callers can tell "already in your collection" from a real failure.
func (s *Store) AddAlbum(ctx context.Context, album domain.CollectionAlbum) (domain.CollectionAlbum, error) {
	album.CreatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
	INSERT INTO albums (release_group_id, name, artist, year, genre, cover_url, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		album.ReleaseGroupID,
		album.Name,
		album.Artist,
		album.Year,
		album.Genre,
		album.CoverURL,
		album.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.CollectionAlbum{}, domain.ErrDuplicateAlbum
		}
		return domain.CollectionAlbum{}, fmt.Errorf("insert album: %w", err)
	}

	album.ID, err = result.LastInsertId()
	if err != nil {
		return domain.CollectionAlbum{}, fmt.Errorf("insert album: %w", err)
	}
	return album, nil
}

// ListAlbums returns the collection oldest-first, the order it was built in.
func (s *Store) ListAlbums(ctx context.Context) ([]domain.CollectionAlbum, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, release_group_id, name, artist, year, genre, cover_url, created_at
	FROM albums
	ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	albums := make([]domain.CollectionAlbum, 0)
	for rows.Next() {
		var album domain.CollectionAlbum
		if err := rows.Scan(
			&album.ID,
			&album.ReleaseGroupID,
			&album.Name,
			&album.Artist,
			&album.Year,
			&album.Genre,
			&album.CoverURL,
			&album.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		albums = append(albums, album)
	}
	return albums, rows.Err()
}

// AddReview validates the three 0-5 ratings, checks the album exists, and
// inserts the review.
func (s *Store) AddReview(ctx context.Context, review domain.Review) (domain.Review, error) {
	for _, rating := range []int{review.Production, review.Composition, review.Originality} {
		if rating < 0 || rating > 5 {
			return domain.Review{}, domain.ErrInvalidRating
		}
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM albums WHERE id = ?`, review.AlbumID).Scan(&exists)
	if err == sql.ErrNoRows {
		return domain.Review{}, domain.ErrAlbumNotFound
	}
	if err != nil {
		return domain.Review{}, fmt.Errorf("check album: %w", err)
	}

	review.CreatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
	INSERT INTO reviews (album_id, production, composition, originality, notes, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		review.AlbumID,
		review.Production,
		review.Composition,
		review.Originality,
		review.Notes,
		review.CreatedAt,
	)
	if err != nil {
		return domain.Review{}, fmt.Errorf("insert review: %w", err)
	}

	review.ID, err = result.LastInsertId()
	if err != nil {
		return domain.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return review, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
