package oauth

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

const googleDefaultNickname = "google-user"

// IDTokenValidator checks a Google ID token against an audience.
type IDTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier verifies Google ID tokens issued for one web client.
type GoogleVerifier struct {
	validator IDTokenValidator
	clientID  string
}

// NewGoogleVerifier builds a verifier backed by Google's published signing keys.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth.google.validator: %w", err)
	}
	return NewGoogleVerifierWithValidator(validator, clientID), nil
}

// NewGoogleVerifierWithValidator builds a verifier around an existing validator.
func NewGoogleVerifierWithValidator(validator IDTokenValidator, clientID string) *GoogleVerifier {
	return &GoogleVerifier{validator: validator, clientID: clientID}
}

// Verify validates idToken and requires a Google issuer and a verified email.
func (verifier *GoogleVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	if strings.TrimSpace(idToken) == "" {
		return Identity{}, fmt.Errorf("oauth.google: %w", ErrInvalidIdentity)
	}
	payload, err := verifier.validator.Validate(ctx, idToken, verifier.clientID)
	if err != nil {
		return Identity{}, fmt.Errorf("oauth.google.validate: %w: %w", ErrInvalidIdentity, err)
	}
	issuerValue, _ := payload.Claims["iss"].(string)
	if issuerValue != "https://accounts.google.com" && issuerValue != "accounts.google.com" {
		return Identity{}, fmt.Errorf("oauth.google.issuer: %w", ErrInvalidIdentity)
	}
	googleSub, _ := payload.Claims["sub"].(string)
	userEmail, _ := payload.Claims["email"].(string)
	emailVerified, _ := payload.Claims["email_verified"].(bool)
	if googleSub == "" || userEmail == "" || !emailVerified {
		return Identity{}, fmt.Errorf("oauth.google.unverified: %w", ErrInvalidIdentity)
	}
	nickname, _ := payload.Claims["name"].(string)
	if strings.TrimSpace(nickname) == "" {
		nickname = googleDefaultNickname
	}
	return Identity{ProviderID: googleSub, Nickname: nickname}, nil
}
