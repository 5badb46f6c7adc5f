package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/myrealpet/accountauth/internal/account"
	"github.com/myrealpet/accountauth/internal/authkit"
	"github.com/myrealpet/accountauth/internal/cache"
	"github.com/myrealpet/accountauth/internal/credential"
	"github.com/myrealpet/accountauth/internal/oauth"
	"github.com/myrealpet/accountauth/internal/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildGoogleVerifier = func(ctx context.Context, clientID string) (web.GoogleVerifier, error) {
	verifier, err := oauth.NewGoogleVerifier(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return verifier, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "accountauth",
		Short:   "Account service with opaque bearer tokens over a TTL key-value store",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("database_url", "", "Account database URL (postgres:// or sqlite://)")
	rootCmd.Flags().String("redis_url", "", "Token store Redis URL (redis://...); leave empty for an in-memory store")
	rootCmd.Flags().Duration("redis_dial_timeout", 5*time.Second, "Redis dial timeout")
	rootCmd.Flags().Duration("redis_io_timeout", 3*time.Second, "Redis read/write timeout")
	rootCmd.Flags().String("google_web_client_id", "", "Google Web OAuth Client ID; empty disables Google sign-in")
	rootCmd.Flags().String("kakao_user_info_url", oauth.DefaultKakaoUserInfoURL, "Kakao user-info endpoint")
	rootCmd.Flags().String("password_scheme", credential.SchemeSaltedSHA256, "Password record scheme for new hashes (salted-sha256 or argon2id)")
	rootCmd.Flags().Bool("enable_metrics", false, "Expose Prometheus metrics on /metrics")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	for _, flagName := range []string{
		"listen_addr",
		"database_url",
		"redis_url",
		"redis_dial_timeout",
		"redis_io_timeout",
		"google_web_client_id",
		"kakao_user_info_url",
		"password_scheme",
		"enable_metrics",
		"enable_cors",
		"cors_allowed_origins",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	configCodeMissingDatabaseURL      = "config.missing_database_url"
	configCodeInvalidRedisTimeout     = "config.invalid_redis_timeout"
	configCodeUnknownPasswordScheme   = "config.unknown_password_scheme"
	configCodeMissingCORSOrigins      = "config.missing_cors_allowed_origins"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
	configCodeGoogleValidatorInit     = "config.google_validator_init"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadServerConfig() (authkit.ServerConfig, error) {
	databaseURL := strings.TrimSpace(viper.GetString("database_url"))
	if databaseURL == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingDatabaseURL, "database_url must be provided")
	}

	redisDialTimeout := viper.GetDuration("redis_dial_timeout")
	redisIOTimeout := viper.GetDuration("redis_io_timeout")
	if redisDialTimeout < 0 || redisIOTimeout < 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidRedisTimeout, "redis timeouts must not be negative")
	}

	passwordScheme := viper.GetString("password_scheme")
	if passwordScheme == "" {
		passwordScheme = credential.SchemeSaltedSHA256
	}
	if _, err := credential.NewHasher(passwordScheme); err != nil {
		return authkit.ServerConfig{}, configError(configCodeUnknownPasswordScheme, fmt.Sprintf("password_scheme %q is not supported", passwordScheme))
	}

	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")
	if enableCORS && len(corsAllowedOrigins) == 0 {
		return authkit.ServerConfig{}, configError(configCodeMissingCORSOrigins, "cors_allowed_origins must be provided when enable_cors is true")
	}

	listenAddr := viper.GetString("listen_addr")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	return authkit.ServerConfig{
		ListenAddr:         listenAddr,
		DatabaseURL:        databaseURL,
		RedisURL:           strings.TrimSpace(viper.GetString("redis_url")),
		RedisDialTimeout:   redisDialTimeout,
		RedisIOTimeout:     redisIOTimeout,
		GoogleWebClientID:  strings.TrimSpace(viper.GetString("google_web_client_id")),
		KakaoUserInfoURL:   viper.GetString("kakao_user_info_url"),
		PasswordScheme:     passwordScheme,
		EnableMetrics:      viper.GetBool("enable_metrics"),
		EnableCORS:         enableCORS,
		CORSAllowedOrigins: corsAllowedOrigins,
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(web.RequestID())
	router.Use(zapLoggerMiddleware(logger))

	if serverConfig.EnableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, serverConfig.CORSAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	repository, repositoryErr := account.NewDatabaseRepository(commandContext, serverConfig.DatabaseURL)
	if repositoryErr != nil {
		return repositoryErr
	}
	defer func() { _ = repository.Close() }()
	logger.Info("using account database", zap.String("driver", repository.Driver()))

	var tokenStore cache.Client
	if serverConfig.RedisURL != "" {
		redisStore, redisErr := cache.NewRedisClient(commandContext, cache.RedisConfig{
			URL:         serverConfig.RedisURL,
			DialTimeout: serverConfig.RedisDialTimeout,
			IOTimeout:   serverConfig.RedisIOTimeout,
		})
		if redisErr != nil {
			return redisErr
		}
		defer func() { _ = redisStore.Close() }()
		tokenStore = redisStore
		logger.Info("using redis token store")
	} else {
		tokenStore = cache.NewMemoryClient()
		logger.Warn("using in-memory token store; tokens do not survive restarts",
			zap.String("code", "config.in_memory_token_store"))
	}

	hasher, hasherErr := credential.NewHasher(serverConfig.PasswordScheme)
	if hasherErr != nil {
		return configError(configCodeUnknownPasswordScheme, hasherErr.Error())
	}

	var metricsRecorder authkit.MetricsRecorder = authkit.NewCounterMetrics()
	if serverConfig.EnableMetrics {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prometheusMetrics, metricsErr := authkit.NewPrometheusMetrics(registry)
		if metricsErr != nil {
			return metricsErr
		}
		metricsRecorder = prometheusMetrics
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	authority := authkit.NewTokenAuthority(tokenStore,
		authkit.WithLogger(logger),
		authkit.WithMetrics(metricsRecorder),
	)

	dependencies := web.Dependencies{
		Accounts: account.NewService(repository, authority, hasher, logger),
		Profiles: account.NewProfileService(repository, logger),
		Tokens:   authority,
		Kakao:    oauth.NewKakaoClient(serverConfig.KakaoUserInfoURL, &http.Client{Timeout: 10 * time.Second}),
		Logger:   logger,
	}
	if serverConfig.GoogleWebClientID != "" {
		verifier, verifierErr := buildGoogleVerifier(commandContext, serverConfig.GoogleWebClientID)
		if verifierErr != nil {
			return fmt.Errorf("%s: %w", configCodeGoogleValidatorInit, verifierErr)
		}
		dependencies.Google = verifier
	} else {
		logger.Info("google sign-in disabled", zap.String("code", "config.google_disabled"))
	}

	router.GET("/healthz", handleHealth(tokenStore))
	web.MountRoutes(router, dependencies)

	server := &http.Server{
		Addr:              serverConfig.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-signalCtx.Done()
		graceCtx, graceCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", serverConfig.ListenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

const healthProbeKey = "healthz:probe"

// handleHealth reports 503 when the token store cannot be read.
func handleHealth(store cache.Client) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		if _, _, err := store.Get(contextGin.Request.Context(), healthProbeKey); err != nil {
			contextGin.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
			zap.String("request_id", web.RequestIDFromContext(contextGin)),
		)
	}
}
