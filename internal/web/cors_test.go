package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func itoa(value int64) string {
	return strconv.FormatInt(value, 10)
}

func TestConfigureCORS(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	middleware, err := ConfigureCORS(zap.NewNop(), []string{"http://localhost"})
	if err != nil {
		t.Fatalf("unexpected error configuring CORS: %v", err)
	}
	router.Use(middleware)
	router.OPTIONS("/resource", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/resource", nil)
	request.Header.Set("Origin", "http://localhost")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from preflight, got %d", recorder.Code)
	}
	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost" {
		t.Fatalf("unexpected allowed origin header: %q", origin)
	}
}

func TestSanitizeOrigins(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		origins []string
		want    []string
		wantErr error
	}{
		{name: "nil list", origins: nil, wantErr: errEmptyAllowedOrigins},
		{name: "whitespace only", origins: []string{"  "}, wantErr: errEmptyAllowedOrigins},
		{name: "wildcard", origins: []string{"*"}, wantErr: errWildcardOrigin},
		{name: "path segment", origins: []string{"https://app.example.com/login"}, wantErr: errInvalidOrigin},
		{name: "bad scheme", origins: []string{"ftp://app.example.com"}, wantErr: errInvalidOrigin},
		{name: "dedupe and normalize", origins: []string{"HTTPS://app.example.com/", "https://app.example.com"}, want: []string{"https://app.example.com"}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			sanitized, err := sanitizeOrigins(zap.NewNop(), testCase.origins)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sanitized) != len(testCase.want) || sanitized[0] != testCase.want[0] {
				t.Fatalf("expected %v, got %v", testCase.want, sanitized)
			}
		})
	}
}

func TestRequestIDPropagatesInboundValue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	var seen string
	router.GET("/ping", func(contextGin *gin.Context) {
		seen = RequestIDFromContext(contextGin)
		contextGin.Status(http.StatusNoContent)
	})

	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	request.Header.Set("X-Request-ID", "req-123")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if seen != "req-123" || recorder.Header().Get("X-Request-ID") != "req-123" {
		t.Fatalf("expected inbound request id to propagate, got %q / %q", seen, recorder.Header().Get("X-Request-ID"))
	}
}
