package store

import (
	"context"
	"errors"
	"time"

	"image.share/internal/models"
)

var (
	ErrNotFound  = errors.New("link not found")
	ErrExpired   = errors.New("link has expired")
	ErrDuplicate = errors.New("link id already exists")
)

// Store persists ShareLink records. Every mutation of a single record is
// atomic within the store; callers never read-modify-write.
type Store interface {
	// Save inserts a new record and fails with ErrDuplicate if the id exists.
	Save(ctx context.Context, link *models.ShareLink) error
	// Get returns the record regardless of expiry.
	Get(ctx context.Context, id string) (*models.ShareLink, error)
	// IncrementViews adds exactly one view unless the link is expired at now,
	// in which case it returns ErrExpired and leaves the record untouched.
	IncrementViews(ctx context.Context, id string, now time.Time) (*models.ShareLink, error)
	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// Expired lists ids whose records are expired at now.
	Expired(ctx context.Context, now time.Time) ([]string, error)
	Close() error
}
