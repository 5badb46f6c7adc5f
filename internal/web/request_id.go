package web

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	// RequestIDContextKey holds the request id on the gin context.
	RequestIDContextKey = "request_id"

	maxInboundRequestIDLength = 128
)

// RequestID propagates an inbound X-Request-ID or assigns a fresh UUID, and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		requestID := strings.TrimSpace(contextGin.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > maxInboundRequestIDLength {
			requestID = uuid.NewString()
		}
		contextGin.Set(RequestIDContextKey, requestID)
		contextGin.Header(requestIDHeader, requestID)
		contextGin.Next()
	}
}

// RequestIDFromContext returns the id assigned by RequestID, or an empty string.
func RequestIDFromContext(contextGin *gin.Context) string {
	return contextGin.GetString(RequestIDContextKey)
}
