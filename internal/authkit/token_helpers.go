package authkit

import (
	"encoding/hex"
	"fmt"
	"io"
)

const (
	tokenByteLength = 16
	// Longer inputs cannot be tokens this authority issued and are rejected before any store call.
	maxTokenLength  = 256
	logPrefixLength = 8
)

func generateToken(randomSource io.Reader) (string, error) {
	randomBytes := make([]byte, tokenByteLength)
	if _, err := io.ReadFull(randomSource, randomBytes); err != nil {
		return "", fmt.Errorf("token.random: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}

func tokenLogPrefix(token string) string {
	if len(token) <= logPrefixLength {
		return token
	}
	return token[:logPrefixLength] + "..."
}
