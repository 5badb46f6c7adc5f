package authkit

import "time"

// ServerConfig carries the validated runtime configuration of the account service.
type ServerConfig struct {
	ListenAddr         string
	DatabaseURL        string
	RedisURL           string
	RedisDialTimeout   time.Duration
	RedisIOTimeout     time.Duration
	GoogleWebClientID  string
	KakaoUserInfoURL   string
	PasswordScheme     string
	EnableMetrics      bool
	EnableCORS         bool
	CORSAllowedOrigins []string
}
