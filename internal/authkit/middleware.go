package authkit

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/myrealpet/accountauth/internal/cache"
	"go.uber.org/zap"
)

const (
	// AccountIDContextKey holds the authenticated account id on the gin context.
	AccountIDContextKey = "auth_account_id"
	// TokenContextKey holds the bearer token that authenticated the request.
	TokenContextKey = "auth_token"

	bearerPrefix = "Bearer "
)

// TokenValidator resolves request tokens to account ids.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (int64, error)
}

// RequireToken validates the bearer token and injects the account id for the rest of the request.
func RequireToken(validator TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		token, ok := BearerToken(contextGin.Request)
		if !ok {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		accountID, err := validator.ValidateToken(contextGin.Request.Context(), token)
		if err != nil {
			if errors.Is(err, cache.ErrStoreUnavailable) {
				logger.Error("token validation unavailable",
					zap.String("code", "auth.require_token.store_unavailable"),
					zap.Error(err))
				contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
				return
			}
			logger.Debug("token rejected",
				zap.String("code", "auth.require_token.invalid"),
				zap.String("path", contextGin.Request.URL.Path))
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		contextGin.Set(AccountIDContextKey, accountID)
		contextGin.Set(TokenContextKey, token)
		contextGin.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(request *http.Request) (string, bool) {
	if request == nil {
		return "", false
	}
	header := request.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// AccountIDFromContext returns the account id set by RequireToken.
func AccountIDFromContext(contextGin *gin.Context) (int64, bool) {
	value, found := contextGin.Get(AccountIDContextKey)
	if !found {
		return 0, false
	}
	accountID, ok := value.(int64)
	return accountID, ok
}
