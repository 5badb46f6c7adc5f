package sessionvalidator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/myrealpet/accountauth/internal/authkit"
	"github.com/myrealpet/accountauth/internal/cache"
)

func newRedisFixture(t *testing.T) (*miniredis.Miniredis, *Validator, *authkit.TokenAuthority) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	validator, err := New(Config{Store: NewRedisStore(client)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	issuer := authkit.NewTokenAuthority(cache.NewRedisClientFromHandle(client))
	return server, validator, issuer
}

func TestNewValidatorRequiresStore(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	if !errors.Is(err, ErrMissingStore) {
		t.Fatalf("expected missing store error, got %v", err)
	}
}

func TestValidatorAcceptsTokensFromIssuingService(t *testing.T) {
	_, validator, issuer := newRedisFixture(t)
	ctx := context.Background()

	generalToken, err := issuer.IssueGeneralToken(ctx, 42)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	pair, err := issuer.IssueTokenPair(ctx, 7)
	if err != nil {
		t.Fatalf("issue pair error: %v", err)
	}

	if accountID, err := validator.ValidateToken(ctx, generalToken); err != nil || accountID != 42 {
		t.Fatalf("expected general token for 42, got %d (%v)", accountID, err)
	}
	if accountID, err := validator.ValidateToken(ctx, pair.AccessToken); err != nil || accountID != 7 {
		t.Fatalf("expected access token for 7, got %d (%v)", accountID, err)
	}
	if _, err := validator.ValidateToken(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token to be rejected, got %v", err)
	}

	if err := issuer.InvalidateAllUserTokens(ctx, 42); err != nil {
		t.Fatalf("invalidate error: %v", err)
	}
	if _, err := validator.ValidateToken(ctx, generalToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestValidatorDoesNotWrite(t *testing.T) {
	server, validator, _ := newRedisFixture(t)
	server.Set("auth_token:corrupt", "not-a-number")

	if _, err := validator.ValidateToken(context.Background(), "corrupt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected corrupt record to be invalid, got %v", err)
	}
	if !server.Exists("auth_token:corrupt") {
		t.Fatalf("validator must leave records untouched")
	}
}

func TestValidatorAgreesWithIssuingService(t *testing.T) {
	server, validator, issuer := newRedisFixture(t)
	ctx := context.Background()
	token, err := issuer.IssueGeneralToken(ctx, 11)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if _, err := server.SAdd("auth_token:settoken", "11"); err != nil {
		t.Fatalf("seed error: %v", err)
	}

	testCases := []struct {
		name  string
		token string
	}{
		{name: "padded token", token: " " + token + " "},
		{name: "wrongly typed record", token: "settoken"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, validatorErr := validator.ValidateToken(ctx, testCase.token)
			if !errors.Is(validatorErr, ErrInvalidToken) {
				t.Fatalf("expected validator to reject, got %v", validatorErr)
			}
			if errors.Is(validatorErr, ErrStoreUnavailable) {
				t.Fatalf("rejection must not be reported as an outage: %v", validatorErr)
			}
			if _, authorityErr := issuer.ValidateToken(ctx, testCase.token); !errors.Is(authorityErr, authkit.ErrInvalidToken) {
				t.Fatalf("expected issuing service to reject, got %v", authorityErr)
			}
		})
	}
}

func TestValidatorRejectsOverlongAndBlankTokens(t *testing.T) {
	_, validator, _ := newRedisFixture(t)
	overlong := make([]byte, maxTokenLength+1)
	for index := range overlong {
		overlong[index] = 'a'
	}
	if _, err := validator.ValidateToken(context.Background(), string(overlong)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected overlong token to be invalid, got %v", err)
	}
	if _, err := validator.ValidateToken(context.Background(), "  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected blank token to be missing, got %v", err)
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server, validator, issuer := newRedisFixture(t)
	token, err := issuer.IssueGeneralToken(context.Background(), 99)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	if _, err := server.SAdd("access_token:settoken", "1"); err != nil {
		t.Fatalf("seed error: %v", err)
	}

	router := gin.New()
	router.Use(validator.GinMiddleware(""))
	router.GET("/protected", func(contextGin *gin.Context) {
		accountID := contextGin.GetInt64(DefaultContextKey)
		contextGin.JSON(http.StatusOK, gin.H{"account_id": accountID})
	})

	testCases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer deadbeef", wantStatus: http.StatusUnauthorized},
		{name: "padded header", header: "Bearer  " + token + " ", wantStatus: http.StatusOK},
		{name: "wrongly typed record", header: "Bearer settoken", wantStatus: http.StatusUnauthorized},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if testCase.header != "" {
				request.Header.Set("Authorization", testCase.header)
			}
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, request)
			if recorder.Code != testCase.wantStatus {
				t.Fatalf("expected %d, got %d", testCase.wantStatus, recorder.Code)
			}
		})
	}

	server.Close()
	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the store is down, got %d", recorder.Code)
	}
}
