// Package crypto generates the random identifiers used for links and stored
// payloads.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const nonceSize = 16

// GenerateID returns a random (version 4) UUID: 122 bits of entropy, URL-safe,
// and unrelated to anything the client sent.
func GenerateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating link id: %w", err)
	}
	return id.String(), nil
}

// RandomDigest returns hex(sha256(nonce || timestamp)) for a fresh random
// nonce.
func RandomDigest() (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	h := sha256.New()
	h.Write(nonce)
	h.Write([]byte(time.Now().UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil)), nil
}
