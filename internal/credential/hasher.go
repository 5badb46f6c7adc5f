package credential

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// SchemeSaltedSHA256 selects the legacy salted single-round SHA-256 records.
	SchemeSaltedSHA256 = "salted-sha256"
	// SchemeArgon2id selects Argon2id records.
	SchemeArgon2id = "argon2id"

	minSaltLength = 16
)

// ErrUnknownScheme indicates an unsupported hashing scheme name.
var ErrUnknownScheme = errors.New("credential.unknown_scheme")

// Hasher produces and checks password records.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, record string) bool
	// NeedsRehash reports whether record was produced by a different scheme or weaker parameters.
	NeedsRehash(record string) bool
}

// NewHasher builds the Hasher for the named scheme.
func NewHasher(scheme string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeSaltedSHA256:
		return NewSaltedSHA256Hasher(), nil
	case SchemeArgon2id:
		return NewArgon2idHasher(DefaultArgon2idParams()), nil
	default:
		return nil, fmt.Errorf("credential.new_hasher.%s: %w", scheme, ErrUnknownScheme)
	}
}
