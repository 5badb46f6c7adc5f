package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/myrealpet/accountauth/internal/phone"
)

type phoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

func mountPhoneRoutes(group *gin.RouterGroup) {
	group.POST("/format", handleFormatPhone)
	group.GET("/validate", handleValidatePhone)
}

func handleFormatPhone(contextGin *gin.Context) {
	var inbound phoneRequest
	if err := contextGin.ShouldBindJSON(&inbound); err != nil {
		abortInvalidJSON(contextGin)
		return
	}
	formatted, err := phone.Format(inbound.PhoneNumber)
	if err != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_phone_number"})
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"phone_number": formatted})
}

func handleValidatePhone(contextGin *gin.Context) {
	contextGin.JSON(http.StatusOK, gin.H{"valid": phone.IsValid(contextGin.Query("phone_number"))})
}
