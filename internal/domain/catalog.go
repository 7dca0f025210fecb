package domain

import "time"

// Album is the caller-facing shape of one catalog search hit: a MusicBrainz
// release group formatted for display, enriched with a best-effort genre.
type Album struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Artist   string  `json:"artist"`
	ArtistID *string `json:"artistId"`
	Year     string  `json:"year"`
	CoverURL string  `json:"coverUrl"`
	Genre    string  `json:"genre"`
}

type SearchRequest struct {
	Query  string
	Limit  int
	Offset int
}

// SearchPage is one bounded slice of search results. Count is the total the
// catalog service reports for the query, independent of how many albums this
// page carries.
type SearchPage struct {
	Albums []Album `json:"albums"`
	Count  int     `json:"count"`
}

// CollectionAlbum is an album persisted in the personal collection.
type CollectionAlbum struct {
	ID             int64     `json:"id"`
	ReleaseGroupID string    `json:"releaseGroupId"`
	Name           string    `json:"name"`
	Artist         string    `json:"artist"`
	Year           string    `json:"year"`
	Genre          string    `json:"genre"`
	CoverURL       string    `json:"coverUrl"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Review rates a collection album on three 0-5 criteria.
type Review struct {
	ID          int64     `json:"id"`
	AlbumID     int64     `json:"albumId"`
	Production  int       `json:"production"`
	Composition int       `json:"composition"`
	Originality int       `json:"originality"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"createdAt"`
}
