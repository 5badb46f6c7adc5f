package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/myrealpet/accountauth/internal/account"
	"github.com/myrealpet/accountauth/internal/authkit"
)

type socialRegisterRequest struct {
	Username   string `json:"username"`
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
}

type passwordUpdateRequest struct {
	NewPassword string `json:"new_password"`
}

func (routeHandlers *handlers) mountAccountRoutes(group *gin.RouterGroup, requireToken gin.HandlerFunc) {
	group.GET("/check-username/:username", routeHandlers.handleCheckUsername)

	protected := group.Group("", requireToken)
	protected.GET("", routeHandlers.requireAdmin, routeHandlers.handleListAccounts)
	protected.GET("/inactive", routeHandlers.requireAdmin, routeHandlers.handleListInactiveAccounts)
	protected.GET("/username/:username", routeHandlers.requireAdmin, routeHandlers.handleGetAccountByUsername)
	protected.POST("/social-register", routeHandlers.requireAdmin, routeHandlers.handleSocialRegister)
	protected.GET("/:id", routeHandlers.handleGetAccount)
	protected.PUT("/:id/password", routeHandlers.handleUpdatePassword)
	protected.PUT("/:id/deactivate", routeHandlers.handleDeactivateAccount)
	protected.PUT("/:id/activate", routeHandlers.requireAdmin, routeHandlers.handleActivateAccount)
	protected.DELETE("/:id", routeHandlers.handleDeleteAccount)
}

// requireAdmin lets the request through only when the authenticated account has the ADMIN role.
func (routeHandlers *handlers) requireAdmin(contextGin *gin.Context) {
	if _, ok := routeHandlers.callerIsAdmin(contextGin); !ok {
		return
	}
	contextGin.Next()
}

// callerIsAdmin aborts the request when no caller is authenticated or the caller is not an admin.
func (routeHandlers *handlers) callerIsAdmin(contextGin *gin.Context) (int64, bool) {
	callerID, ok := authkit.AccountIDFromContext(contextGin)
	if !ok {
		contextGin.AbortWithStatus(http.StatusUnauthorized)
		return 0, false
	}
	caller, err := routeHandlers.accounts.FindAccountByID(contextGin.Request.Context(), callerID)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.caller_lookup_failed", err)
		return 0, false
	}
	if caller.Role != account.RoleAdmin {
		contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return 0, false
	}
	return callerID, true
}

// authorizedTarget resolves the :id path parameter and requires the caller to be that account or an admin.
func (routeHandlers *handlers) authorizedTarget(contextGin *gin.Context, parameter string) (int64, bool) {
	targetID, ok := pathID(contextGin, parameter)
	if !ok {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	callerID, ok := authkit.AccountIDFromContext(contextGin)
	if !ok {
		contextGin.AbortWithStatus(http.StatusUnauthorized)
		return 0, false
	}
	if callerID == targetID {
		return targetID, true
	}
	if _, admin := routeHandlers.callerIsAdmin(contextGin); !admin {
		return 0, false
	}
	return targetID, true
}

func (routeHandlers *handlers) handleCheckUsername(contextGin *gin.Context) {
	taken, err := routeHandlers.accounts.IsUsernameTaken(contextGin.Request.Context(), contextGin.Param("username"))
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.check_username_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"exists": taken})
}

func (routeHandlers *handlers) handleListAccounts(contextGin *gin.Context) {
	accounts, err := routeHandlers.accounts.FindAllAccounts(contextGin.Request.Context())
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.list_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, accounts)
}

func (routeHandlers *handlers) handleListInactiveAccounts(contextGin *gin.Context) {
	accounts, err := routeHandlers.accounts.FindInactiveAccounts(contextGin.Request.Context())
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.list_inactive_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, accounts)
}

func (routeHandlers *handlers) handleGetAccountByUsername(contextGin *gin.Context) {
	found, err := routeHandlers.accounts.FindAccountByUsername(contextGin.Request.Context(), contextGin.Param("username"))
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.get_by_username_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, found)
}

func (routeHandlers *handlers) handleSocialRegister(contextGin *gin.Context) {
	var inbound socialRegisterRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil {
		abortInvalidJSON(contextGin)
		return
	}
	provider := account.AuthProvider(strings.ToUpper(strings.TrimSpace(inbound.Provider)))
	created, err := routeHandlers.accounts.CreateSocialAccount(contextGin.Request.Context(), inbound.Username, provider, inbound.ProviderID)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.social_register_failed", err)
		return
	}
	contextGin.JSON(http.StatusCreated, created)
}

func (routeHandlers *handlers) handleGetAccount(contextGin *gin.Context) {
	targetID, ok := routeHandlers.authorizedTarget(contextGin, "id")
	if !ok {
		return
	}
	found, err := routeHandlers.accounts.FindAccountByID(contextGin.Request.Context(), targetID)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.get_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, found)
}

func (routeHandlers *handlers) handleUpdatePassword(contextGin *gin.Context) {
	targetID, ok := routeHandlers.authorizedTarget(contextGin, "id")
	if !ok {
		return
	}
	var inbound passwordUpdateRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil {
		abortInvalidJSON(contextGin)
		return
	}
	updated, err := routeHandlers.accounts.UpdatePassword(contextGin.Request.Context(), targetID, inbound.NewPassword)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.update_password_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, updated)
}

func (routeHandlers *handlers) handleDeactivateAccount(contextGin *gin.Context) {
	targetID, ok := routeHandlers.authorizedTarget(contextGin, "id")
	if !ok {
		return
	}
	updated, err := routeHandlers.accounts.DeactivateAccount(contextGin.Request.Context(), targetID)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.deactivate_failed", err)
		return
	}
	routeHandlers.logger.Info("account deactivated",
		zap.String("code", "api.accounts.deactivated"),
		zap.Int64("account_id", targetID))
	contextGin.JSON(http.StatusOK, updated)
}

func (routeHandlers *handlers) handleActivateAccount(contextGin *gin.Context) {
	targetID, ok := pathID(contextGin, "id")
	if !ok {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}
	updated, err := routeHandlers.accounts.ActivateAccount(contextGin.Request.Context(), targetID)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.activate_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, updated)
}

func (routeHandlers *handlers) handleDeleteAccount(contextGin *gin.Context) {
	targetID, ok := routeHandlers.authorizedTarget(contextGin, "id")
	if !ok {
		return
	}
	if err := routeHandlers.accounts.DeleteAccount(contextGin.Request.Context(), targetID); err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.accounts.delete_failed", err)
		return
	}
	contextGin.Status(http.StatusNoContent)
}
