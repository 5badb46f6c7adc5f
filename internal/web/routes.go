package web

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/myrealpet/accountauth/internal/account"
	"github.com/myrealpet/accountauth/internal/authkit"
	"github.com/myrealpet/accountauth/internal/oauth"
)

// GoogleVerifier turns a Google ID token into a provider identity.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (oauth.Identity, error)
}

// KakaoIdentityFetcher turns a Kakao access token into a provider identity.
type KakaoIdentityFetcher interface {
	FetchIdentity(ctx context.Context, accessToken string) (oauth.Identity, error)
}

// Dependencies bundles what the HTTP handlers need. Google and Kakao are optional; a nil
// provider answers 503 provider_not_configured.
type Dependencies struct {
	Accounts *account.Service
	Profiles *account.ProfileService
	Tokens   *authkit.TokenAuthority
	Google   GoogleVerifier
	Kakao    KakaoIdentityFetcher
	Logger   *zap.Logger
}

type handlers struct {
	accounts *account.Service
	profiles *account.ProfileService
	tokens   *authkit.TokenAuthority
	google   GoogleVerifier
	kakao    KakaoIdentityFetcher
	logger   *zap.Logger
}

// MountRoutes registers the /api/auth, /api/oauth, /api/accounts, /api/profiles, and /api/phone groups.
func MountRoutes(router gin.IRouter, dependencies Dependencies) {
	if dependencies.Accounts == nil || dependencies.Profiles == nil || dependencies.Tokens == nil {
		panic("web: account service, profile service, and token authority are required")
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	routeHandlers := &handlers{
		accounts: dependencies.Accounts,
		profiles: dependencies.Profiles,
		tokens:   dependencies.Tokens,
		google:   dependencies.Google,
		kakao:    dependencies.Kakao,
		logger:   logger,
	}
	requireToken := authkit.RequireToken(dependencies.Tokens, logger)

	api := router.Group("/api")
	routeHandlers.mountAuthRoutes(api.Group("/auth"), requireToken)
	routeHandlers.mountOAuthRoutes(api.Group("/oauth"))
	routeHandlers.mountAccountRoutes(api.Group("/accounts"), requireToken)
	routeHandlers.mountProfileRoutes(api.Group("/profiles"), requireToken)
	mountPhoneRoutes(api.Group("/phone"))
}

func pathID(contextGin *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(contextGin.Param(name), 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}
