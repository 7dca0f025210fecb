package domain

import "errors"

var (
	ErrDuplicateAlbum = errors.New("album already in collection")
	ErrAlbumNotFound  = errors.New("album not found")
	ErrInvalidRating  = errors.New("rating must be between 0 and 5")
)
