package authkit

import "errors"

var (
	// ErrInvalidToken covers blank, unknown, expired, revoked, and corrupt tokens alike.
	ErrInvalidToken = errors.New("token.invalid")
	// ErrUnknownTokenKind indicates a TokenKind outside the known namespaces.
	ErrUnknownTokenKind = errors.New("token.unknown_kind")
)
