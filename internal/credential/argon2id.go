package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = 19

// Argon2idParams controls Argon2id cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams returns an interactive-login baseline.
func DefaultArgon2idParams() Argon2idParams {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}
	return Argon2idParams{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4]
		SaltLength:  minSaltLength,
		KeyLength:   32,
	}
}

// Argon2idHasher writes PHC-encoded Argon2id records and still verifies legacy salted records,
// so existing accounts can log in and be upgraded.
type Argon2idHasher struct {
	params Argon2idParams
	legacy *SaltedSHA256Hasher
}

// NewArgon2idHasher constructs the hasher; salts shorter than 16 bytes are raised to 16.
func NewArgon2idHasher(params Argon2idParams) *Argon2idHasher {
	if params.SaltLength < minSaltLength {
		params.SaltLength = minSaltLength
	}
	return &Argon2idHasher{params: params, legacy: NewSaltedSHA256Hasher()}
}

// Hash returns $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<key>.
func (hasher *Argon2idHasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, hasher.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("credential.argon2id.salt: %w", err)
	}
	key := argon2.IDKey([]byte(plaintext), salt, hasher.params.Iterations, hasher.params.MemoryKiB, hasher.params.Parallelism, hasher.params.KeyLength)
	encoding := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		hasher.params.MemoryKiB,
		hasher.params.Iterations,
		hasher.params.Parallelism,
		encoding.EncodeToString(salt),
		encoding.EncodeToString(key),
	), nil
}

// Verify accepts both Argon2id and legacy salted records.
func (hasher *Argon2idHasher) Verify(plaintext string, record string) bool {
	if !strings.HasPrefix(record, "$argon2id$") {
		return hasher.legacy.Verify(plaintext, record)
	}
	params, salt, expected, ok := decodeArgon2id(record)
	if !ok || !withinBounds(params, hasher.params) {
		return false
	}
	key := argon2.IDKey([]byte(plaintext), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected))) // #nosec G115 -- bounded by decodeArgon2id
	return subtle.ConstantTimeCompare(key, expected) == 1
}

// NeedsRehash is true for legacy records and for Argon2id records weaker than the configured params.
func (hasher *Argon2idHasher) NeedsRehash(record string) bool {
	params, _, _, ok := decodeArgon2id(record)
	if !ok {
		return true
	}
	return params.MemoryKiB < hasher.params.MemoryKiB ||
		params.Iterations < hasher.params.Iterations ||
		params.Parallelism < hasher.params.Parallelism
}

// Attacker-controlled records must not be able to demand pathological work.
func withinBounds(got Argon2idParams, limits Argon2idParams) bool {
	if got.MemoryKiB > limits.MemoryKiB*2 || got.Iterations > limits.Iterations*2 || got.Parallelism > limits.Parallelism*2 {
		return false
	}
	return got.SaltLength >= 8 && got.SaltLength <= 64 && got.KeyLength >= 16 && got.KeyLength <= 64
}

func decodeArgon2id(record string) (Argon2idParams, []byte, []byte, bool) {
	parts := strings.Split(record, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, false
	}
	if parts[2] != "v="+strconv.Itoa(argon2Version) {
		return Argon2idParams{}, nil, nil, false
	}

	var params Argon2idParams
	for _, field := range strings.Split(parts[3], ",") {
		name, rawValue, found := strings.Cut(field, "=")
		if !found {
			return Argon2idParams{}, nil, nil, false
		}
		value, err := strconv.ParseUint(rawValue, 10, 32)
		if err != nil {
			return Argon2idParams{}, nil, nil, false
		}
		switch name {
		case "m":
			params.MemoryKiB = uint32(value)
		case "t":
			params.Iterations = uint32(value)
		case "p":
			if value == 0 || value > 255 {
				return Argon2idParams{}, nil, nil, false
			}
			params.Parallelism = uint8(value)
		default:
			return Argon2idParams{}, nil, nil, false
		}
	}
	if params.MemoryKiB == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return Argon2idParams{}, nil, nil, false
	}

	salt, saltErr := base64.RawStdEncoding.DecodeString(parts[4])
	key, keyErr := base64.RawStdEncoding.DecodeString(parts[5])
	if saltErr != nil || keyErr != nil {
		return Argon2idParams{}, nil, nil, false
	}
	params.SaltLength = uint32(len(salt)) // #nosec G115 -- decoded from a bounded record
	params.KeyLength = uint32(len(key))   // #nosec G115 -- decoded from a bounded record
	return params, salt, key, true
}
