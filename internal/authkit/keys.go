package authkit

import (
	"strconv"
	"time"
)

// TokenKind names the namespace a token lives in. Token strings carry no kind information.
type TokenKind int

const (
	// TokenKindGeneral is the long-lived single-token login credential.
	TokenKindGeneral TokenKind = iota
	// TokenKindAccess is the short-lived half of a dual-token login.
	TokenKindAccess
	// TokenKindRefresh is the long-lived half of a dual-token login; it never authorizes requests.
	TokenKindRefresh
)

const (
	generalTokenPrefix = "auth_token:"
	accessTokenPrefix  = "access_token:"
	refreshTokenPrefix = "refresh_token:"
	sessionSetPrefix   = "user_tokens:"
	refreshSetSuffix   = ":refresh"

	generalTokenTTL = 24 * time.Hour
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// requestTokenKinds is the validation probe order: shortest-lived first.
var requestTokenKinds = []TokenKind{TokenKindAccess, TokenKindGeneral}

func (kind TokenKind) String() string {
	switch kind {
	case TokenKindGeneral:
		return "general"
	case TokenKindAccess:
		return "access"
	case TokenKindRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

func (kind TokenKind) valid() bool {
	return kind == TokenKindGeneral || kind == TokenKindAccess || kind == TokenKindRefresh
}

func (kind TokenKind) prefix() string {
	switch kind {
	case TokenKindAccess:
		return accessTokenPrefix
	case TokenKindRefresh:
		return refreshTokenPrefix
	default:
		return generalTokenPrefix
	}
}

func (kind TokenKind) ttl() time.Duration {
	switch kind {
	case TokenKindAccess:
		return accessTokenTTL
	case TokenKindRefresh:
		return refreshTokenTTL
	default:
		return generalTokenTTL
	}
}

func tokenKey(kind TokenKind, token string) string {
	return kind.prefix() + token
}

// Access and general tokens share one session set; refresh tokens have their own.
// Each add re-stamps the set with the issuing token's TTL, so an access issuance shortens
// tracking of general tokens in the same set to one hour.
func sessionSetKey(kind TokenKind, accountID int64) string {
	key := sessionSetPrefix + strconv.FormatInt(accountID, 10)
	if kind == TokenKindRefresh {
		key += refreshSetSuffix
	}
	return key
}
