package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/myrealpet/accountauth/internal/account"
	"github.com/myrealpet/accountauth/internal/authkit"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (routeHandlers *handlers) mountAuthRoutes(group *gin.RouterGroup, requireToken gin.HandlerFunc) {
	group.POST("/login", routeHandlers.handleLogin)
	group.POST("/register", routeHandlers.handleRegister)
	group.POST("/logout", routeHandlers.handleLogout)
	group.POST("/refresh", routeHandlers.handleRefresh)
	group.POST("/logout-all", requireToken, routeHandlers.handleLogoutAll)
	group.GET("/me", requireToken, routeHandlers.handleMe)
}

func (routeHandlers *handlers) handleLogin(contextGin *gin.Context) {
	var inbound loginRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil || strings.TrimSpace(inbound.Username) == "" {
		abortInvalidJSON(contextGin)
		return
	}
	response, err := routeHandlers.accounts.Login(contextGin.Request.Context(), inbound.Username, inbound.Password)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.auth.login_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, response)
}

func (routeHandlers *handlers) handleRegister(contextGin *gin.Context) {
	var inbound account.RegisterRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil {
		abortInvalidJSON(contextGin)
		return
	}
	response, err := routeHandlers.accounts.Register(contextGin.Request.Context(), inbound)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.auth.register_failed", err)
		return
	}
	contextGin.JSON(http.StatusCreated, response)
}

// Logout is idempotent: an unknown or expired token still answers 200.
func (routeHandlers *handlers) handleLogout(contextGin *gin.Context) {
	token, ok := authkit.BearerToken(contextGin.Request)
	if !ok {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_token"})
		return
	}
	if err := routeHandlers.accounts.Logout(contextGin.Request.Context(), token); err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.auth.logout_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (routeHandlers *handlers) handleLogoutAll(contextGin *gin.Context) {
	accountID, ok := authkit.AccountIDFromContext(contextGin)
	if !ok {
		contextGin.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if err := routeHandlers.accounts.LogoutAll(contextGin.Request.Context(), accountID); err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.auth.logout_all_failed", err)
		return
	}
	routeHandlers.logger.Info("all sessions revoked",
		zap.String("code", "api.auth.logout_all"),
		zap.Int64("account_id", accountID))
	contextGin.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (routeHandlers *handlers) handleRefresh(contextGin *gin.Context) {
	var inbound refreshRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil || strings.TrimSpace(inbound.RefreshToken) == "" {
		abortInvalidJSON(contextGin)
		return
	}
	accessToken, accountID, err := routeHandlers.tokens.Refresh(contextGin.Request.Context(), inbound.RefreshToken)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.auth.refresh_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, account.LoginResponse{
		Token:            accessToken,
		AccountID:        accountID,
		ExpiresInSeconds: int64(routeHandlers.tokens.TokenTTL(authkit.TokenKindAccess).Seconds()),
	})
}

func (routeHandlers *handlers) handleMe(contextGin *gin.Context) {
	accountID, ok := authkit.AccountIDFromContext(contextGin)
	if !ok {
		contextGin.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	current, err := routeHandlers.accounts.FindAccountByID(contextGin.Request.Context(), accountID)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.me.lookup_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, current)
}

type kakaoLoginRequest struct {
	AccessToken string `json:"access_token"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

func (routeHandlers *handlers) mountOAuthRoutes(group *gin.RouterGroup) {
	group.POST("/kakao", routeHandlers.handleKakaoLogin)
	group.POST("/google", routeHandlers.handleGoogleLogin)
}

func (routeHandlers *handlers) handleKakaoLogin(contextGin *gin.Context) {
	if routeHandlers.kakao == nil {
		contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "provider_not_configured"})
		return
	}
	var inbound kakaoLoginRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil || strings.TrimSpace(inbound.AccessToken) == "" {
		abortInvalidJSON(contextGin)
		return
	}
	identity, err := routeHandlers.kakao.FetchIdentity(contextGin.Request.Context(), inbound.AccessToken)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.oauth.kakao_failed", err)
		return
	}
	routeHandlers.completeSocialLogin(contextGin, account.SocialIdentity{
		Provider:   account.ProviderKakao,
		ProviderID: identity.ProviderID,
		Nickname:   identity.Nickname,
	})
}

func (routeHandlers *handlers) handleGoogleLogin(contextGin *gin.Context) {
	if routeHandlers.google == nil {
		contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "provider_not_configured"})
		return
	}
	var inbound googleLoginRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil || strings.TrimSpace(inbound.IDToken) == "" {
		abortInvalidJSON(contextGin)
		return
	}
	identity, err := routeHandlers.google.Verify(contextGin.Request.Context(), inbound.IDToken)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.oauth.google_failed", err)
		return
	}
	routeHandlers.completeSocialLogin(contextGin, account.SocialIdentity{
		Provider:   account.ProviderGoogle,
		ProviderID: identity.ProviderID,
		Nickname:   identity.Nickname,
	})
}

func (routeHandlers *handlers) completeSocialLogin(contextGin *gin.Context, identity account.SocialIdentity) {
	response, err := routeHandlers.accounts.LoginWithSocial(contextGin.Request.Context(), identity)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.oauth.login_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, response)
}
