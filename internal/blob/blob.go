// Package blob stores image payloads under content names that are generated
// independently of anything the client sent.
package blob

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"image.share/internal/crypto"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidRef = errors.New("invalid blob reference")
)

type Store interface {
	// Put stores data under a fresh content name with the given extension
	// (without dot, may be empty) and returns that name.
	Put(ctx context.Context, data []byte, ext string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete is idempotent: removing a missing blob is not an error.
	Delete(ctx context.Context, ref string) error
	Close() error
}

var (
	refPattern = regexp.MustCompile(`^[0-9a-f]{64}(\.[a-z0-9]{1,5})?$`)
	extPattern = regexp.MustCompile(`^[a-z0-9]{1,5}$`)
)

// ContentName derives a name from sha256(random nonce || timestamp).
// Extensions that do not look like a short lowercase token are dropped.
func ContentName(ext string) (string, error) {
	name, err := crypto.RandomDigest()
	if err != nil {
		return "", err
	}

	if extPattern.MatchString(ext) {
		name += "." + ext
	}
	return name, nil
}

func ValidateRef(ref string) error {
	if !refPattern.MatchString(ref) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}
