package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/myrealpet/accountauth/internal/account"
	"github.com/myrealpet/accountauth/internal/authkit"
)

const birthDateLayout = "2006-01-02"

type createProfileRequest struct {
	Nickname string `json:"nickname"`
}

type profileUpdateRequest struct {
	Nickname        *string `json:"nickname"`
	ProfileImageURL *string `json:"profile_image_url"`
	Phone           *string `json:"phone"`
	Bio             *string `json:"bio"`
	BirthDate       *string `json:"birth_date"`
	Gender          *string `json:"gender"`
}

func (routeHandlers *handlers) mountProfileRoutes(group *gin.RouterGroup, requireToken gin.HandlerFunc) {
	group.GET("/account/:accountId", routeHandlers.handleGetProfile)
	group.GET("/nickname/:nickname", routeHandlers.handleGetProfileByNickname)
	group.GET("/search", routeHandlers.handleSearchProfiles)
	group.GET("/check-nickname/:nickname", routeHandlers.handleCheckNickname)

	protected := group.Group("", requireToken)
	protected.POST("", routeHandlers.handleCreateProfile)
	protected.PUT("/account/:accountId", routeHandlers.handleUpdateProfile)
	protected.PUT("/account/:accountId/nickname", routeHandlers.handleUpdateNickname)
	protected.PUT("/account/:accountId/profile-image", routeHandlers.handleUpdateProfileImage)
	protected.PUT("/account/:accountId/phone", routeHandlers.handleUpdatePhone)
	protected.PUT("/account/:accountId/birth-date", routeHandlers.handleUpdateBirthDate)
	protected.PUT("/account/:accountId/gender", routeHandlers.handleUpdateGender)
	protected.PUT("/account/:accountId/bio", routeHandlers.handleUpdateBio)
	protected.DELETE("/account/:accountId", routeHandlers.handleDeleteProfile)
}

func (routeHandlers *handlers) handleGetProfile(contextGin *gin.Context) {
	accountID, ok := pathID(contextGin, "accountId")
	if !ok {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}
	profile, err := routeHandlers.profiles.FindProfileByAccountID(contextGin.Request.Context(), accountID)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.profiles.get_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, profile)
}

func (routeHandlers *handlers) handleGetProfileByNickname(contextGin *gin.Context) {
	profile, err := routeHandlers.profiles.FindProfileByNickname(contextGin.Request.Context(), contextGin.Param("nickname"))
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.profiles.get_by_nickname_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, profile)
}

func (routeHandlers *handlers) handleSearchProfiles(contextGin *gin.Context) {
	profiles, err := routeHandlers.profiles.SearchProfilesByNickname(contextGin.Request.Context(), contextGin.Query("keyword"))
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.profiles.search_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, profiles)
}

func (routeHandlers *handlers) handleCheckNickname(contextGin *gin.Context) {
	taken, err := routeHandlers.profiles.IsNicknameTaken(contextGin.Request.Context(), contextGin.Param("nickname"))
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.profiles.check_nickname_failed", err)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"exists": taken})
}

func (routeHandlers *handlers) handleCreateProfile(contextGin *gin.Context) {
	callerID, ok := authkit.AccountIDFromContext(contextGin)
	if !ok {
		contextGin.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var inbound createProfileRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil {
		abortInvalidJSON(contextGin)
		return
	}
	profile, err := routeHandlers.profiles.CreateProfile(contextGin.Request.Context(), callerID, inbound.Nickname)
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.profiles.create_failed", err)
		return
	}
	contextGin.JSON(http.StatusCreated, profile)
}

// bindProfileUpdate authorizes the caller for :accountId and decodes the body.
func (routeHandlers *handlers) bindProfileUpdate(contextGin *gin.Context) (int64, profileUpdateRequest, bool) {
	accountID, ok := routeHandlers.authorizedTarget(contextGin, "accountId")
	if !ok {
		return 0, profileUpdateRequest{}, false
	}
	var inbound profileUpdateRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil {
		abortInvalidJSON(contextGin)
		return 0, profileUpdateRequest{}, false
	}
	return accountID, inbound, true
}

func (routeHandlers *handlers) respondProfile(contextGin *gin.Context, logCode string, profile account.Profile, err error) {
	if err != nil {
		abortWithError(contextGin, routeHandlers.logger, logCode, err)
		return
	}
	contextGin.JSON(http.StatusOK, profile)
}

func (routeHandlers *handlers) handleUpdateProfile(contextGin *gin.Context) {
	accountID, inbound, ok := routeHandlers.bindProfileUpdate(contextGin)
	if !ok {
		return
	}
	update := account.ProfileUpdate{
		Nickname:        inbound.Nickname,
		ProfileImageURL: inbound.ProfileImageURL,
		Phone:           inbound.Phone,
		Bio:             inbound.Bio,
	}
	if inbound.BirthDate != nil {
		birthDate, parsed := parseBirthDate(contextGin, *inbound.BirthDate)
		if !parsed {
			return
		}
		update.BirthDate = birthDate
		update.ClearBirthDate = birthDate == nil
	}
	if inbound.Gender != nil {
		gender := parseGender(*inbound.Gender)
		update.Gender = &gender
	}
	profile, err := routeHandlers.profiles.UpdateProfile(contextGin.Request.Context(), accountID, update)
	routeHandlers.respondProfile(contextGin, "api.profiles.update_failed", profile, err)
}

func (routeHandlers *handlers) handleUpdateNickname(contextGin *gin.Context) {
	accountID, inbound, ok := routeHandlers.bindProfileUpdate(contextGin)
	if !ok {
		return
	}
	if inbound.Nickname == nil {
		abortInvalidJSON(contextGin)
		return
	}
	profile, err := routeHandlers.profiles.UpdateNickname(contextGin.Request.Context(), accountID, *inbound.Nickname)
	routeHandlers.respondProfile(contextGin, "api.profiles.update_nickname_failed", profile, err)
}

func (routeHandlers *handlers) handleUpdateProfileImage(contextGin *gin.Context) {
	accountID, inbound, ok := routeHandlers.bindProfileUpdate(contextGin)
	if !ok {
		return
	}
	if inbound.ProfileImageURL == nil {
		abortInvalidJSON(contextGin)
		return
	}
	profile, err := routeHandlers.profiles.UpdateProfileImage(contextGin.Request.Context(), accountID, *inbound.ProfileImageURL)
	routeHandlers.respondProfile(contextGin, "api.profiles.update_image_failed", profile, err)
}

func (routeHandlers *handlers) handleUpdatePhone(contextGin *gin.Context) {
	accountID, inbound, ok := routeHandlers.bindProfileUpdate(contextGin)
	if !ok {
		return
	}
	if inbound.Phone == nil {
		abortInvalidJSON(contextGin)
		return
	}
	profile, err := routeHandlers.profiles.UpdatePhone(contextGin.Request.Context(), accountID, *inbound.Phone)
	routeHandlers.respondProfile(contextGin, "api.profiles.update_phone_failed", profile, err)
}

func (routeHandlers *handlers) handleUpdateBirthDate(contextGin *gin.Context) {
	accountID, inbound, ok := routeHandlers.bindProfileUpdate(contextGin)
	if !ok {
		return
	}
	var birthDate *time.Time
	if inbound.BirthDate != nil {
		var parsed bool
		if birthDate, parsed = parseBirthDate(contextGin, *inbound.BirthDate); !parsed {
			return
		}
	}
	profile, err := routeHandlers.profiles.UpdateBirthDate(contextGin.Request.Context(), accountID, birthDate)
	routeHandlers.respondProfile(contextGin, "api.profiles.update_birth_date_failed", profile, err)
}

func (routeHandlers *handlers) handleUpdateGender(contextGin *gin.Context) {
	accountID, inbound, ok := routeHandlers.bindProfileUpdate(contextGin)
	if !ok {
		return
	}
	if inbound.Gender == nil {
		abortInvalidJSON(contextGin)
		return
	}
	profile, err := routeHandlers.profiles.UpdateGender(contextGin.Request.Context(), accountID, parseGender(*inbound.Gender))
	routeHandlers.respondProfile(contextGin, "api.profiles.update_gender_failed", profile, err)
}

// parseBirthDate returns nil for a blank value. It aborts with 400 on a malformed date.
func parseBirthDate(contextGin *gin.Context, raw string) (*time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, true
	}
	parsed, parseErr := time.Parse(birthDateLayout, trimmed)
	if parseErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_birth_date"})
		return nil, false
	}
	return &parsed, true
}

func parseGender(raw string) account.Gender {
	return account.Gender(strings.ToUpper(strings.TrimSpace(raw)))
}

func (routeHandlers *handlers) handleUpdateBio(contextGin *gin.Context) {
	accountID, inbound, ok := routeHandlers.bindProfileUpdate(contextGin)
	if !ok {
		return
	}
	if inbound.Bio == nil {
		abortInvalidJSON(contextGin)
		return
	}
	profile, err := routeHandlers.profiles.UpdateBio(contextGin.Request.Context(), accountID, *inbound.Bio)
	routeHandlers.respondProfile(contextGin, "api.profiles.update_bio_failed", profile, err)
}

func (routeHandlers *handlers) handleDeleteProfile(contextGin *gin.Context) {
	accountID, ok := routeHandlers.authorizedTarget(contextGin, "accountId")
	if !ok {
		return
	}
	if err := routeHandlers.profiles.DeleteProfile(contextGin.Request.Context(), accountID); err != nil {
		abortWithError(contextGin, routeHandlers.logger, "api.profiles.delete_failed", err)
		return
	}
	contextGin.Status(http.StatusNoContent)
}
