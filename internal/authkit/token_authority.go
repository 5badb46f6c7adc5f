package authkit

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/myrealpet/accountauth/internal/cache"
	"go.uber.org/zap"
)

// TokenAuthority issues, validates, and revokes opaque bearer tokens.
//
// It holds no session state of its own; every record lives in the cache store with the
// store's TTL as its only expiry. Revocation deletes records and leaves no tombstone, so a
// revoked token is indistinguishable from an expired one.
type TokenAuthority struct {
	store        cache.Client
	logger       *zap.Logger
	metrics      MetricsRecorder
	randomSource io.Reader
	atomicIssue  bool
}

// TokenPair is the result of a dual-token login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// AuthorityOption customizes a TokenAuthority.
type AuthorityOption func(*TokenAuthority)

// WithLogger sets the logger used for issuance and revocation events.
func WithLogger(logger *zap.Logger) AuthorityOption {
	return func(authority *TokenAuthority) {
		if logger != nil {
			authority.logger = logger
		}
	}
}

// WithMetrics sets the recorder that receives token events.
func WithMetrics(metrics MetricsRecorder) AuthorityOption {
	return func(authority *TokenAuthority) {
		if metrics != nil {
			authority.metrics = metrics
		}
	}
}

// WithAtomicIssue toggles use of cache.TrackingWriter when the store offers it.
func WithAtomicIssue(enabled bool) AuthorityOption {
	return func(authority *TokenAuthority) {
		authority.atomicIssue = enabled
	}
}

func withRandomSource(source io.Reader) AuthorityOption {
	return func(authority *TokenAuthority) {
		authority.randomSource = source
	}
}

// NewTokenAuthority binds an authority to the given store.
func NewTokenAuthority(store cache.Client, options ...AuthorityOption) *TokenAuthority {
	if store == nil {
		panic("token authority requires a cache client")
	}
	authority := &TokenAuthority{
		store:        store,
		logger:       zap.NewNop(),
		metrics:      noopMetrics{},
		randomSource: rand.Reader,
		atomicIssue:  true,
	}
	for _, option := range options {
		option(authority)
	}
	return authority
}

// TokenTTL returns the lifetime assigned to tokens of the given kind.
func (authority *TokenAuthority) TokenTTL(kind TokenKind) time.Duration {
	return kind.ttl()
}

// IssueToken mints a token of the given kind for accountID and records it in the account's
// session set. The record write and the set bookkeeping are separate store operations unless
// the store implements cache.TrackingWriter; a failure between them leaves an untracked record
// that still expires on its own TTL.
func (authority *TokenAuthority) IssueToken(ctx context.Context, accountID int64, kind TokenKind) (string, error) {
	if !kind.valid() {
		return "", fmt.Errorf("token.issue: %w", ErrUnknownTokenKind)
	}
	token, err := generateToken(authority.randomSource)
	if err != nil {
		return "", err
	}

	recordKey := tokenKey(kind, token)
	setKey := sessionSetKey(kind, accountID)
	value := strconv.FormatInt(accountID, 10)
	ttl := kind.ttl()

	if writer, ok := authority.store.(cache.TrackingWriter); ok && authority.atomicIssue {
		if err := writer.SetAndTrack(ctx, recordKey, value, setKey, token, ttl); err != nil {
			return "", authority.storeFailure("token.issue", err)
		}
	} else {
		if err := authority.store.SetWithExpiration(ctx, recordKey, value, ttl); err != nil {
			return "", authority.storeFailure("token.issue.record", err)
		}
		if err := authority.store.AddToSet(ctx, setKey, token); err != nil {
			return "", authority.storeFailure("token.issue.track", err)
		}
		if err := authority.store.SetExpiration(ctx, setKey, ttl); err != nil {
			return "", authority.storeFailure("token.issue.track_ttl", err)
		}
	}

	authority.metrics.Increment("token.issue." + kind.String())
	authority.logger.Info("token issued",
		zap.String("code", "token.issue"),
		zap.String("kind", kind.String()),
		zap.Int64("account_id", accountID),
		zap.String("token_prefix", tokenLogPrefix(token)))
	return token, nil
}

// IssueGeneralToken issues a 24h single-token login credential.
func (authority *TokenAuthority) IssueGeneralToken(ctx context.Context, accountID int64) (string, error) {
	return authority.IssueToken(ctx, accountID, TokenKindGeneral)
}

// IssueAccessToken issues a 1h access token.
func (authority *TokenAuthority) IssueAccessToken(ctx context.Context, accountID int64) (string, error) {
	return authority.IssueToken(ctx, accountID, TokenKindAccess)
}

// IssueRefreshToken issues a 7d refresh token.
func (authority *TokenAuthority) IssueRefreshToken(ctx context.Context, accountID int64) (string, error) {
	return authority.IssueToken(ctx, accountID, TokenKindRefresh)
}

// IssueTokenPair issues an access token and a refresh token for a dual-token login.
func (authority *TokenAuthority) IssueTokenPair(ctx context.Context, accountID int64) (TokenPair, error) {
	accessToken, err := authority.IssueAccessToken(ctx, accountID)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := authority.IssueRefreshToken(ctx, accountID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    accessTokenTTL,
		RefreshTTL:   refreshTokenTTL,
	}, nil
}

// ValidateToken resolves a request token to its account id. Access tokens are probed before
// general tokens; refresh tokens never validate here. Every failure to resolve is reported as
// ErrInvalidToken, except store outages, which wrap cache.ErrStoreUnavailable.
func (authority *TokenAuthority) ValidateToken(ctx context.Context, token string) (int64, error) {
	return authority.resolve(ctx, token, requestTokenKinds)
}

// ValidateRefreshToken resolves a refresh token to its account id.
func (authority *TokenAuthority) ValidateRefreshToken(ctx context.Context, token string) (int64, error) {
	return authority.resolve(ctx, token, []TokenKind{TokenKindRefresh})
}

// IsTokenValid reports whether ValidateToken would resolve the token.
func (authority *TokenAuthority) IsTokenValid(ctx context.Context, token string) bool {
	_, err := authority.ValidateToken(ctx, token)
	return err == nil
}

// Refresh issues a new access token for the owner of a live refresh token.
// The refresh token itself is left untouched.
func (authority *TokenAuthority) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	accountID, err := authority.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", 0, err
	}
	accessToken, err := authority.IssueAccessToken(ctx, accountID)
	if err != nil {
		return "", 0, err
	}
	return accessToken, accountID, nil
}

// InvalidateToken revokes a general token. Only the general namespace is consulted: access and
// refresh tokens passed here are left valid. Use InvalidateTokenOfKind for those.
func (authority *TokenAuthority) InvalidateToken(ctx context.Context, token string) error {
	return authority.InvalidateTokenOfKind(ctx, token, TokenKindGeneral)
}

// InvalidateTokenOfKind revokes a token in the given namespace and prunes it from its owner's
// session set. The record delete is attempted even when the owner lookup fails, and revoking an
// unknown token succeeds.
func (authority *TokenAuthority) InvalidateTokenOfKind(ctx context.Context, token string, kind TokenKind) error {
	if !kind.valid() {
		return fmt.Errorf("token.invalidate: %w", ErrUnknownTokenKind)
	}
	if strings.TrimSpace(token) == "" || len(token) > maxTokenLength {
		return nil
	}
	recordKey := tokenKey(kind, token)

	value, found, lookupErr := authority.store.Get(ctx, recordKey)
	switch {
	case lookupErr != nil:
		authority.logger.Warn("token owner lookup failed during revocation",
			zap.String("code", "token.invalidate.lookup_failed"),
			zap.String("kind", kind.String()),
			zap.Error(lookupErr))
	case found:
		if accountID, parseErr := strconv.ParseInt(value, 10, 64); parseErr == nil {
			if err := authority.store.RemoveFromSet(ctx, sessionSetKey(kind, accountID), token); err != nil {
				authority.logger.Warn("session set cleanup failed",
					zap.String("code", "token.invalidate.untrack_failed"),
					zap.Int64("account_id", accountID),
					zap.Error(err))
			}
		} else {
			authority.logger.Warn("corrupt account id on revoked token",
				zap.String("code", "token.invalidate.corrupt_value"),
				zap.String("kind", kind.String()),
				zap.String("token_prefix", tokenLogPrefix(token)))
		}
	}

	if err := authority.store.Delete(ctx, recordKey); err != nil {
		return authority.storeFailure("token.invalidate", err)
	}
	authority.metrics.Increment("token.invalidate." + kind.String())
	authority.logger.Info("token invalidated",
		zap.String("code", "token.invalidate"),
		zap.String("kind", kind.String()),
		zap.String("token_prefix", tokenLogPrefix(token)))
	return nil
}

// InvalidateAllUserTokens deletes every token tracked in the account's session sets, then the
// sets themselves. Tokens whose set entry already expired are not reachable and live out their TTL.
func (authority *TokenAuthority) InvalidateAllUserTokens(ctx context.Context, accountID int64) error {
	var failures []error
	sweeps := []struct {
		setKind     TokenKind
		recordKinds []TokenKind
	}{
		{setKind: TokenKindGeneral, recordKinds: []TokenKind{TokenKindGeneral, TokenKindAccess}},
		{setKind: TokenKindRefresh, recordKinds: []TokenKind{TokenKindRefresh}},
	}

	revoked := 0
	for _, sweep := range sweeps {
		setKey := sessionSetKey(sweep.setKind, accountID)
		members, err := authority.store.Members(ctx, setKey)
		if err != nil {
			if errors.Is(err, cache.ErrStoreUnavailable) {
				return authority.storeFailure("token.invalidate_all", err)
			}
			failures = append(failures, err)
		}
		for _, member := range members {
			for _, kind := range sweep.recordKinds {
				if err := authority.store.Delete(ctx, tokenKey(kind, member)); err != nil {
					failures = append(failures, err)
				}
			}
			revoked++
		}
		if err := authority.store.Delete(ctx, setKey); err != nil {
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		return authority.storeFailure("token.invalidate_all", errors.Join(failures...))
	}
	authority.metrics.Increment("token.invalidate_all")
	authority.logger.Info("all account tokens invalidated",
		zap.String("code", "token.invalidate_all"),
		zap.Int64("account_id", accountID),
		zap.Int("tracked_tokens", revoked))
	return nil
}

func (authority *TokenAuthority) resolve(ctx context.Context, token string, kinds []TokenKind) (int64, error) {
	if strings.TrimSpace(token) == "" || len(token) > maxTokenLength {
		return 0, ErrInvalidToken
	}
	for _, kind := range kinds {
		recordKey := tokenKey(kind, token)
		value, found, err := authority.store.Get(ctx, recordKey)
		if errors.Is(err, cache.ErrWrongType) {
			authority.heal(ctx, recordKey, kind, token)
			return 0, ErrInvalidToken
		}
		if err != nil {
			return 0, authority.storeFailure("token.validate", err)
		}
		if !found {
			continue
		}
		accountID, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil {
			authority.heal(ctx, recordKey, kind, token)
			return 0, ErrInvalidToken
		}
		authority.metrics.Increment("token.validate.hit")
		return accountID, nil
	}
	authority.metrics.Increment("token.validate.miss")
	return 0, ErrInvalidToken
}

// heal removes a record whose value cannot be an account id.
func (authority *TokenAuthority) heal(ctx context.Context, recordKey string, kind TokenKind, token string) {
	authority.metrics.Increment("token.validate.corrupt")
	authority.logger.Warn("corrupt token record removed",
		zap.String("code", "token.validate.corrupt_value"),
		zap.String("kind", kind.String()),
		zap.String("token_prefix", tokenLogPrefix(token)))
	if err := authority.store.Delete(ctx, recordKey); err != nil {
		authority.logger.Warn("corrupt token record removal failed",
			zap.String("code", "token.validate.heal_failed"),
			zap.Error(err))
	}
}

func (authority *TokenAuthority) storeFailure(operation string, err error) error {
	authority.metrics.Increment("token.store_error")
	authority.logger.Error("token store operation failed",
		zap.String("code", operation),
		zap.Error(err))
	return fmt.Errorf("%s: %w", operation, err)
}
