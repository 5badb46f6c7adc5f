package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

// SaltedSHA256Hasher reads and writes "salt:digest" records.
type SaltedSHA256Hasher struct {
	saltLength int
}

// NewSaltedSHA256Hasher constructs the legacy hasher with a 16 byte salt.
func NewSaltedSHA256Hasher() *SaltedSHA256Hasher {
	return &SaltedSHA256Hasher{saltLength: minSaltLength}
}

// Hash draws a fresh salt and returns base64(salt):base64(digest).
func (hasher *SaltedSHA256Hasher) Hash(plaintext string) (string, error) {
	saltBytes := make([]byte, hasher.saltLength)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", fmt.Errorf("credential.sha256.salt: %w", err)
	}
	salt := base64.StdEncoding.EncodeToString(saltBytes)
	return salt + ":" + saltedDigest(salt, plaintext), nil
}

// Verify recomputes the digest with the stored salt.
func (hasher *SaltedSHA256Hasher) Verify(plaintext string, record string) bool {
	salt, storedDigest, ok := splitSaltedRecord(record)
	if !ok {
		return false
	}
	computed := saltedDigest(salt, plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedDigest)) == 1
}

// NeedsRehash is false for any well-formed salted record.
func (hasher *SaltedSHA256Hasher) NeedsRehash(record string) bool {
	_, _, ok := splitSaltedRecord(record)
	return !ok
}

func splitSaltedRecord(record string) (string, string, bool) {
	salt, digest, found := strings.Cut(record, ":")
	if !found || salt == "" || digest == "" || strings.Contains(digest, ":") {
		return "", "", false
	}
	return salt, digest, true
}

// The encoded salt text, not the raw salt bytes, is fed to the digest.
func saltedDigest(salt string, plaintext string) string {
	digest := sha256.New()
	digest.Write([]byte(salt))
	digest.Write([]byte(plaintext))
	return base64.StdEncoding.EncodeToString(digest.Sum(nil))
}
