// Package oauth completes third-party sign-in handshakes and yields the provider identity.
package oauth

import "errors"

var (
	// ErrInvalidIdentity indicates the provider rejected the credential or the identity is incomplete.
	ErrInvalidIdentity = errors.New("oauth.invalid_identity")
	// ErrProviderUnavailable indicates the provider could not be reached.
	ErrProviderUnavailable = errors.New("oauth.provider_unavailable")
)

// Identity is the stable provider subject plus a display nickname.
type Identity struct {
	ProviderID string
	Nickname   string
}
