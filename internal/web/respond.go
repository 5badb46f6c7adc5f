package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/myrealpet/accountauth/internal/account"
	"github.com/myrealpet/accountauth/internal/authkit"
	"github.com/myrealpet/accountauth/internal/cache"
	"github.com/myrealpet/accountauth/internal/oauth"
	"github.com/myrealpet/accountauth/internal/phone"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: a store outage wrapped together with a domain error is reported as the outage.
var errorMappings = []errorMapping{
	{target: cache.ErrStoreUnavailable, status: http.StatusServiceUnavailable, code: "store_unavailable"},
	{target: account.ErrAccountNotFound, status: http.StatusNotFound, code: "account_not_found"},
	{target: account.ErrProfileNotFound, status: http.StatusNotFound, code: "profile_not_found"},
	{target: account.ErrUsernameTaken, status: http.StatusConflict, code: "username_taken"},
	{target: account.ErrNicknameTaken, status: http.StatusConflict, code: "nickname_taken"},
	{target: account.ErrProfileExists, status: http.StatusConflict, code: "profile_exists"},
	{target: account.ErrSocialAccountExists, status: http.StatusConflict, code: "social_account_exists"},
	{target: account.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials"},
	{target: authkit.ErrInvalidToken, status: http.StatusUnauthorized, code: "invalid_token"},
	{target: oauth.ErrInvalidIdentity, status: http.StatusUnauthorized, code: "invalid_identity"},
	{target: oauth.ErrProviderUnavailable, status: http.StatusBadGateway, code: "provider_unavailable"},
	{target: phone.ErrInvalidPhoneNumber, status: http.StatusBadRequest, code: "invalid_phone_number"},
	{target: account.ErrInvalidInput, status: http.StatusBadRequest, code: "invalid_input"},
}

func statusForError(err error) (int, string) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return mapping.status, mapping.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func abortWithError(contextGin *gin.Context, logger *zap.Logger, logCode string, err error) {
	status, code := statusForError(err)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed",
			zap.String("code", logCode),
			zap.Int("status", status),
			zap.Error(err))
	default:
		logger.Debug("request rejected",
			zap.String("code", logCode),
			zap.String("reason", code))
	}
	contextGin.AbortWithStatusJSON(status, gin.H{"error": code})
}

func abortInvalidJSON(contextGin *gin.Context) {
	contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
}
