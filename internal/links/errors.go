package links

import (
	"errors"
	"fmt"

	"image.share/internal/store"
	"image.share/internal/upload"
)

var (
	ErrNotFound   = store.ErrNotFound
	ErrExpired    = store.ErrExpired
	ErrValidation = upload.ErrValidation
	// ErrStorage marks failures of the record or blob store. The request that
	// hit it fails as a whole.
	ErrStorage = errors.New("storage failure")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
