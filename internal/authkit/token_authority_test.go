package authkit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/myrealpet/accountauth/internal/cache"
	"go.uber.org/zap/zaptest"
)

type controllableClock struct {
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.current = clock.current.Add(duration)
}

// plainClient hides cache.TrackingWriter so issuance takes the two-write path.
type plainClient struct {
	cache.Client
}

// failingClient fails selected operations with a store outage.
type failingClient struct {
	cache.Client
	failGet     bool
	failDelete  bool
	failMembers bool
	failAdd     bool
	deletes     []string
}

var errConnectionRefused = errors.New("dial tcp: connection refused")

func (client *failingClient) Get(ctx context.Context, key string) (string, bool, error) {
	if client.failGet {
		return "", false, errors.Join(cache.ErrStoreUnavailable, errConnectionRefused)
	}
	return client.Client.Get(ctx, key)
}

func (client *failingClient) Delete(ctx context.Context, key string) error {
	client.deletes = append(client.deletes, key)
	if client.failDelete {
		return errors.Join(cache.ErrStoreUnavailable, errConnectionRefused)
	}
	return client.Client.Delete(ctx, key)
}

func (client *failingClient) Members(ctx context.Context, key string) ([]string, error) {
	if client.failMembers {
		return nil, errors.Join(cache.ErrStoreUnavailable, errConnectionRefused)
	}
	return client.Client.Members(ctx, key)
}

func (client *failingClient) AddToSet(ctx context.Context, key string, member string) error {
	if client.failAdd {
		return errors.Join(cache.ErrStoreUnavailable, errConnectionRefused)
	}
	return client.Client.AddToSet(ctx, key, member)
}

func newTestAuthority(t *testing.T) (*TokenAuthority, *cache.MemoryClient, *controllableClock, *CounterMetrics) {
	t.Helper()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	store := cache.NewMemoryClientWithClock(clock.Now)
	metrics := NewCounterMetrics()
	authority := NewTokenAuthority(store, WithLogger(zaptest.NewLogger(t)), WithMetrics(metrics))
	return authority, store, clock, metrics
}

func TestIssueThenValidateForEveryRequestKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, _, _, _ := newTestAuthority(t)

	for _, accountID := range []int64{1, 42, 9007199254740993} {
		for _, kind := range []TokenKind{TokenKindGeneral, TokenKindAccess} {
			token, err := authority.IssueToken(ctx, accountID, kind)
			if err != nil {
				t.Fatalf("issue %s failed: %v", kind, err)
			}
			if len(token) != 32 || strings.Trim(token, "0123456789abcdef") != "" {
				t.Fatalf("expected 32 lowercase hex characters, got %q", token)
			}
			resolved, err := authority.ValidateToken(ctx, token)
			if err != nil {
				t.Fatalf("validate %s failed: %v", kind, err)
			}
			if resolved != accountID {
				t.Fatalf("expected account %d, got %d", accountID, resolved)
			}
			if !authority.IsTokenValid(ctx, token) {
				t.Fatalf("expected IsTokenValid for %s token", kind)
			}
		}
	}
}

func TestIssueWritesBitExactKeysAndTTLs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	randomBytes := bytes.Repeat([]byte{0xab}, 16)

	issuePaths := []struct {
		hideTrackingWriter bool
		atomicIssue        bool
	}{
		{atomicIssue: true},
		{atomicIssue: false},
		{hideTrackingWriter: true, atomicIssue: true},
	}
	for _, issuePath := range issuePaths {
		clock := &controllableClock{current: time.Unix(1700000000, 0)}
		store := cache.NewMemoryClientWithClock(clock.Now)
		var client cache.Client = store
		if issuePath.hideTrackingWriter {
			client = plainClient{Client: store}
		}

		testCases := []struct {
			kind      TokenKind
			recordKey string
			setKey    string
			ttl       time.Duration
		}{
			{kind: TokenKindGeneral, recordKey: "auth_token:", setKey: "user_tokens:42", ttl: 24 * time.Hour},
			{kind: TokenKindAccess, recordKey: "access_token:", setKey: "user_tokens:42", ttl: time.Hour},
			{kind: TokenKindRefresh, recordKey: "refresh_token:", setKey: "user_tokens:42:refresh", ttl: 7 * 24 * time.Hour},
		}
		for _, testCase := range testCases {
			authority := NewTokenAuthority(client,
				withRandomSource(bytes.NewReader(randomBytes)),
				WithAtomicIssue(issuePath.atomicIssue),
			)
			token, err := authority.IssueToken(ctx, 42, testCase.kind)
			if err != nil {
				t.Fatalf("issue failed: %v", err)
			}
			if token != strings.Repeat("ab", 16) {
				t.Fatalf("unexpected token encoding %q", token)
			}
			value, found, _ := store.Get(ctx, testCase.recordKey+token)
			if !found || value != "42" {
				t.Fatalf("expected %s%s=42, got %q found=%v", testCase.recordKey, token, value, found)
			}
			if ttl, _ := store.TTL(testCase.recordKey + token); ttl != testCase.ttl {
				t.Fatalf("expected record ttl %s, got %s", testCase.ttl, ttl)
			}
			if ttl, _ := store.TTL(testCase.setKey); ttl != testCase.ttl {
				t.Fatalf("expected set %s re-stamped to %s, got %s", testCase.setKey, testCase.ttl, ttl)
			}
			members, _ := store.Members(ctx, testCase.setKey)
			if len(members) != 1 || members[0] != token {
				t.Fatalf("expected %s to track token, got %v", testCase.setKey, members)
			}
			if authority.TokenTTL(testCase.kind) != testCase.ttl {
				t.Fatalf("unexpected TokenTTL for %s", testCase.kind)
			}
		}
	}
}

func TestTokensExpireWithTheirTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, _, clock, _ := newTestAuthority(t)

	general, _ := authority.IssueGeneralToken(ctx, 5)
	access, _ := authority.IssueAccessToken(ctx, 5)
	refresh, _ := authority.IssueRefreshToken(ctx, 5)

	clock.Advance(time.Hour)
	if authority.IsTokenValid(ctx, access) {
		t.Fatalf("expected access token to expire after one hour")
	}
	if !authority.IsTokenValid(ctx, general) {
		t.Fatalf("expected general token to survive one hour")
	}

	clock.Advance(23 * time.Hour)
	if authority.IsTokenValid(ctx, general) {
		t.Fatalf("expected general token to expire after 24 hours")
	}
	if _, err := authority.ValidateRefreshToken(ctx, refresh); err != nil {
		t.Fatalf("expected refresh token to survive a day: %v", err)
	}

	clock.Advance(6 * 24 * time.Hour)
	if _, err := authority.ValidateRefreshToken(ctx, refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token to expire after seven days, got %v", err)
	}
}

func TestValidateRejectsBlankInputWithoutStoreAccess(t *testing.T) {
	t.Parallel()
	store := &failingClient{Client: cache.NewMemoryClient(), failGet: true, failDelete: true}
	authority := NewTokenAuthority(store)

	for _, token := range []string{"", "   ", "\t\n", strings.Repeat("a", maxTokenLength+1)} {
		if _, err := authority.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
		if err := authority.InvalidateToken(context.Background(), token); err != nil {
			t.Fatalf("expected no-op revocation for %q, got %v", token, err)
		}
	}
	if len(store.deletes) != 0 {
		t.Fatalf("expected no side effects, saw deletes %v", store.deletes)
	}
}

func TestValidateUnknownTokenIsInvalid(t *testing.T) {
	t.Parallel()
	authority, _, _, metrics := newTestAuthority(t)
	if _, err := authority.ValidateToken(context.Background(), "0123456789abcdef0123456789abcdef"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if metrics.Count("token.validate.miss") != 1 {
		t.Fatalf("expected one validation miss, got %v", metrics.Snapshot())
	}
}

func TestValidatePrefersAccessNamespace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, store, _, _ := newTestAuthority(t)

	_ = store.SetWithExpiration(ctx, "auth_token:shared", "1", time.Hour)
	_ = store.SetWithExpiration(ctx, "access_token:shared", "2", time.Hour)

	accountID, err := authority.ValidateToken(ctx, "shared")
	if err != nil || accountID != 2 {
		t.Fatalf("expected access namespace to win with account 2, got %d err=%v", accountID, err)
	}
}

func TestRefreshTokensDoNotAuthorizeRequests(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, _, _, _ := newTestAuthority(t)

	refresh, _ := authority.IssueRefreshToken(ctx, 11)
	if authority.IsTokenValid(ctx, refresh) {
		t.Fatalf("expected refresh token to be rejected as a request token")
	}
	accountID, err := authority.ValidateRefreshToken(ctx, refresh)
	if err != nil || accountID != 11 {
		t.Fatalf("expected refresh token to resolve to 11, got %d err=%v", accountID, err)
	}
	general, _ := authority.IssueGeneralToken(ctx, 11)
	if _, err := authority.ValidateRefreshToken(ctx, general); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected general token to be rejected as a refresh token, got %v", err)
	}
}

func TestValidateHealsCorruptRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, store, _, metrics := newTestAuthority(t)

	_ = store.SetWithExpiration(ctx, "access_token:corrupt", "not-a-number", time.Hour)
	_ = store.SetWithExpiration(ctx, "auth_token:corrupt", "17", time.Hour)
	_ = store.AddToSet(ctx, "auth_token:settype", "x")

	if _, err := authority.ValidateToken(ctx, "corrupt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected corrupt access record to be invalid, got %v", err)
	}
	if _, found, _ := store.Get(ctx, "access_token:corrupt"); found {
		t.Fatalf("expected corrupt access record to be deleted")
	}
	if _, found, _ := store.Get(ctx, "auth_token:corrupt"); !found {
		t.Fatalf("expected the general record under the same token to be left alone")
	}

	if _, err := authority.ValidateToken(ctx, "settype"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong-type record to be invalid, got %v", err)
	}
	if members, _ := store.Members(ctx, "auth_token:settype"); len(members) != 0 {
		t.Fatalf("expected wrong-type record to be deleted")
	}
	if metrics.Count("token.validate.corrupt") != 2 {
		t.Fatalf("expected two heal events, got %v", metrics.Snapshot())
	}
}

func TestValidateSurfacesStoreUnavailable(t *testing.T) {
	t.Parallel()
	store := &failingClient{Client: cache.NewMemoryClient(), failGet: true}
	authority := NewTokenAuthority(store)

	_, err := authority.ValidateToken(context.Background(), "abcdef")
	if !errors.Is(err, cache.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Fatalf("store outage must not be reported as an invalid token")
	}
	if authority.IsTokenValid(context.Background(), "abcdef") {
		t.Fatalf("expected IsTokenValid to be false during an outage")
	}
}

func TestInvalidateTokenRevokesGeneralToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, store, _, _ := newTestAuthority(t)

	token, _ := authority.IssueGeneralToken(ctx, 42)
	other, _ := authority.IssueGeneralToken(ctx, 42)

	if err := authority.InvalidateToken(ctx, token); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, err := authority.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to be invalid, got %v", err)
	}
	members, _ := store.Members(ctx, "user_tokens:42")
	if len(members) != 1 || members[0] != other {
		t.Fatalf("expected only the surviving token in the session set, got %v", members)
	}

	if err := authority.InvalidateToken(ctx, token); err != nil {
		t.Fatalf("revoking an already revoked token must succeed: %v", err)
	}
	if err := authority.InvalidateToken(ctx, "never-issued"); err != nil {
		t.Fatalf("revoking an unknown token must succeed: %v", err)
	}
}

func TestInvalidateTokenDeletesEvenWhenLookupFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	memory := cache.NewMemoryClient()
	store := &failingClient{Client: memory}
	authority := NewTokenAuthority(store)

	token, _ := authority.IssueGeneralToken(ctx, 3)
	store.failGet = true

	if err := authority.InvalidateToken(ctx, token); err != nil {
		t.Fatalf("expected revocation to succeed when only the owner lookup fails: %v", err)
	}
	if _, found, _ := memory.Get(ctx, "auth_token:"+token); found {
		t.Fatalf("expected record to be deleted")
	}

	store.failGet = false
	store.failDelete = true
	if err := authority.InvalidateToken(ctx, token); !errors.Is(err, cache.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable when the delete itself fails, got %v", err)
	}
}

func TestInvalidateTokenOnlyConsultsGeneralNamespace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, _, _, _ := newTestAuthority(t)

	pair, err := authority.IssueTokenPair(ctx, 7)
	if err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}
	if pair.AccessTTL != time.Hour || pair.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected pair ttls: %+v", pair)
	}

	if err := authority.InvalidateToken(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if !authority.IsTokenValid(ctx, pair.AccessToken) {
		t.Fatalf("expected access token to stay valid after revoking the refresh token")
	}
	if _, err := authority.ValidateRefreshToken(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("expected refresh token to survive general-namespace revocation: %v", err)
	}

	if err := authority.InvalidateToken(ctx, pair.AccessToken); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if !authority.IsTokenValid(ctx, pair.AccessToken) {
		t.Fatalf("expected access token to survive general-namespace revocation")
	}
}

func TestInvalidateTokenOfKindRevokesEachNamespace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, store, _, _ := newTestAuthority(t)

	pair, _ := authority.IssueTokenPair(ctx, 8)

	if err := authority.InvalidateTokenOfKind(ctx, pair.AccessToken, TokenKindAccess); err != nil {
		t.Fatalf("invalidate access failed: %v", err)
	}
	if authority.IsTokenValid(ctx, pair.AccessToken) {
		t.Fatalf("expected access token to be revoked")
	}
	if err := authority.InvalidateTokenOfKind(ctx, pair.RefreshToken, TokenKindRefresh); err != nil {
		t.Fatalf("invalidate refresh failed: %v", err)
	}
	if _, err := authority.ValidateRefreshToken(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token to be revoked, got %v", err)
	}
	if members, _ := store.Members(ctx, "user_tokens:8:refresh"); len(members) != 0 {
		t.Fatalf("expected refresh session set to be pruned, got %v", members)
	}
	if err := authority.InvalidateTokenOfKind(ctx, "x", TokenKind(99)); !errors.Is(err, ErrUnknownTokenKind) {
		t.Fatalf("expected ErrUnknownTokenKind, got %v", err)
	}
}

func TestInvalidateAllUserTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, store, _, _ := newTestAuthority(t)

	general, _ := authority.IssueGeneralToken(ctx, 42)
	pair, _ := authority.IssueTokenPair(ctx, 42)
	bystander, _ := authority.IssueGeneralToken(ctx, 43)
	bystanderAccess, _ := authority.IssueAccessToken(ctx, 43)

	if err := authority.InvalidateAllUserTokens(ctx, 42); err != nil {
		t.Fatalf("invalidate all failed: %v", err)
	}
	for _, token := range []string{general, pair.AccessToken} {
		if authority.IsTokenValid(ctx, token) {
			t.Fatalf("expected %s to be revoked", token)
		}
	}
	if _, err := authority.ValidateRefreshToken(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token to be revoked, got %v", err)
	}
	for _, key := range []string{"user_tokens:42", "user_tokens:42:refresh"} {
		if members, _ := store.Members(ctx, key); len(members) != 0 {
			t.Fatalf("expected %s to be deleted, got %v", key, members)
		}
	}
	if !authority.IsTokenValid(ctx, bystander) || !authority.IsTokenValid(ctx, bystanderAccess) {
		t.Fatalf("expected other accounts' tokens to be unaffected")
	}

	if err := authority.InvalidateAllUserTokens(ctx, 999); err != nil {
		t.Fatalf("bulk revocation of an account without sessions must succeed: %v", err)
	}
}

func TestInvalidateAllUserTokensMissesTokensWithLostSetEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, store, _, _ := newTestAuthority(t)

	token, _ := authority.IssueGeneralToken(ctx, 50)
	_ = store.Delete(ctx, "user_tokens:50")

	if err := authority.InvalidateAllUserTokens(ctx, 50); err != nil {
		t.Fatalf("invalidate all failed: %v", err)
	}
	if !authority.IsTokenValid(ctx, token) {
		t.Fatalf("expected untracked token to survive bulk revocation until its own ttl")
	}
}

func TestInvalidateAllUserTokensSurfacesStoreUnavailable(t *testing.T) {
	t.Parallel()
	store := &failingClient{Client: cache.NewMemoryClient(), failMembers: true}
	authority := NewTokenAuthority(store)
	if err := authority.InvalidateAllUserTokens(context.Background(), 1); !errors.Is(err, cache.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestIssueFailsWhenTrackingFails(t *testing.T) {
	t.Parallel()
	store := &failingClient{Client: cache.NewMemoryClient(), failAdd: true}
	authority := NewTokenAuthority(store)
	if _, err := authority.IssueGeneralToken(context.Background(), 1); !errors.Is(err, cache.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := authority.IssueToken(context.Background(), 1, TokenKind(-1)); !errors.Is(err, ErrUnknownTokenKind) {
		t.Fatalf("expected ErrUnknownTokenKind, got %v", err)
	}
}

func TestRefreshIssuesAccessTokenForRefreshOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, _, _, _ := newTestAuthority(t)

	pair, _ := authority.IssueTokenPair(ctx, 64)
	accessToken, accountID, err := authority.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if accountID != 64 || accessToken == pair.AccessToken {
		t.Fatalf("expected a fresh access token for account 64, got %q for %d", accessToken, accountID)
	}
	if resolved, _ := authority.ValidateToken(ctx, accessToken); resolved != 64 {
		t.Fatalf("expected refreshed access token to resolve to 64")
	}
	if _, _, err := authority.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token to be refused as a refresh token, got %v", err)
	}
}

func TestLoginRevokeReissueScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, _, _, _ := newTestAuthority(t)

	token, _ := authority.IssueGeneralToken(ctx, 42)
	if accountID, err := authority.ValidateToken(ctx, token); err != nil || accountID != 42 {
		t.Fatalf("expected 42, got %d err=%v", accountID, err)
	}
	if err := authority.InvalidateToken(ctx, token); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if authority.IsTokenValid(ctx, token) {
		t.Fatalf("expected revoked token to be invalid")
	}

	reissued, _ := authority.IssueGeneralToken(ctx, 42)
	if err := authority.InvalidateAllUserTokens(ctx, 42); err != nil {
		t.Fatalf("invalidate all failed: %v", err)
	}
	if authority.IsTokenValid(ctx, reissued) {
		t.Fatalf("expected no valid tokens left for account 42")
	}
}

func TestNewTokenAuthorityRequiresStore(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for nil store")
		}
	}()
	NewTokenAuthority(nil)
}

func TestAccessIssuanceShortensGeneralTracking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	authority, store, clock, _ := newTestAuthority(t)

	general, err := authority.IssueGeneralToken(ctx, 12)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if _, err := authority.IssueAccessToken(ctx, 12); err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if ttl, _ := store.TTL("user_tokens:12"); ttl != time.Hour {
		t.Fatalf("expected shared set re-stamped to one hour, got %s", ttl)
	}

	clock.Advance(time.Hour + time.Minute)
	if err := authority.InvalidateAllUserTokens(ctx, 12); err != nil {
		t.Fatalf("invalidate error: %v", err)
	}
	if !authority.IsTokenValid(ctx, general) {
		t.Fatalf("expected general token to outlive its expired set entry")
	}
}
