package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/evently/internal/authkit"
	"github.com/tyemirov/evently/internal/events"
	"github.com/tyemirov/evently/internal/storage"
	"github.com/tyemirov/evently/internal/web"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "evently",
		Short:   "Event catalog API with password login, JWT access tokens, and rotating refresh tokens",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.PersistentFlags().String("database_url", "sqlite://evently.db", "Database URL (sqlite:// or postgres://)")
	rootCmd.PersistentFlags().String("credential_store", credentialStoreGorm, "Credential store backend: gorm, pgx, or memory")

	rootCmd.Flags().Int("port", 3000, "HTTP listen port")
	rootCmd.Flags().String("jwt_secret", "", "HS256 signing secret for access tokens")
	rootCmd.Flags().String("jwt_refresh_secret", "", "HS256 signing secret for refresh tokens")
	rootCmd.Flags().Duration("access_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 7*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().String("uploads_dir", "./uploads", "Directory for uploaded thumbnails")
	rootCmd.Flags().String("public_base_url", "http://localhost:3000", "Base URL thumbnails are served from")
	rootCmd.Flags().String("thumbnail_storage", thumbnailStorageDisk, "Thumbnail storage backend: disk or s3")
	rootCmd.Flags().String("s3_bucket", "", "S3 bucket for thumbnails")
	rootCmd.Flags().String("s3_region", "", "S3 region")
	rootCmd.Flags().String("s3_endpoint", "", "S3-compatible endpoint, e.g. MinIO")
	rootCmd.Flags().String("s3_access_key", "", "S3 access key; empty uses the default credential chain")
	rootCmd.Flags().String("s3_secret_key", "", "S3 secret key")
	rootCmd.Flags().String("s3_public_url", "", "Public base URL of the thumbnail bucket")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients (sets SameSite=None cookies)")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{"http://localhost:3001"}, "Allowed origins when CORS is enabled")
	rootCmd.Flags().Float64("login_rate_per_second", 1, "Login attempts per second per client IP; 0 disables limiting")
	rootCmd.Flags().Int("login_burst", 5, "Login burst per client IP")

	_ = viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database_url"))
	_ = viper.BindPFlag("credential_store", rootCmd.PersistentFlags().Lookup("credential_store"))
	for _, flagName := range []string{
		"port", "jwt_secret", "jwt_refresh_secret", "access_ttl", "refresh_ttl", "cookie_domain",
		"uploads_dir", "public_base_url", "thumbnail_storage", "s3_bucket", "s3_region", "s3_endpoint",
		"s3_access_key", "s3_secret_key", "s3_public_url", "enable_cors", "cors_allowed_origins",
		"login_rate_per_second", "login_burst",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newCreateUserCommand())
	return rootCmd
}

const (
	tokenIssuer       = "evently"
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"

	credentialStoreGorm   = "gorm"
	credentialStorePgx    = "pgx"
	credentialStoreMemory = "memory"

	thumbnailStorageDisk = "disk"
	thumbnailStorageS3   = "s3"

	configCodeMissingJWTSecret        = "config.missing_jwt_secret"
	configCodeMissingRefreshSecret    = "config.missing_jwt_refresh_secret"
	configCodeSharedSecrets           = "config.shared_jwt_secrets"
	configCodeInvalidAccessTTL        = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeInvalidPort             = "config.invalid_port"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
	configCodeUnknownCredentialStore  = "config.unknown_credential_store"
	configCodeUnknownThumbnailStorage = "config.unknown_thumbnail_storage"
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

// LoadServerConfig validates the token and listener settings held by viper.
func LoadServerConfig() (authkit.ServerConfig, error) {
	accessSecret := viper.GetString("jwt_secret")
	if accessSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingJWTSecret, "jwt_secret must be provided")
	}

	refreshSecret := viper.GetString("jwt_refresh_secret")
	if refreshSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingRefreshSecret, "jwt_refresh_secret must be provided")
	}
	if refreshSecret == accessSecret {
		return authkit.ServerConfig{}, configError(configCodeSharedSecrets, "jwt_secret and jwt_refresh_secret must differ")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	if port := viper.GetInt("port"); port <= 0 || port > 65535 {
		return authkit.ServerConfig{}, configError(configCodeInvalidPort, "port must be between 1 and 65535")
	}

	return authkit.ServerConfig{
		AccessSigningKey:  []byte(accessSecret),
		RefreshSigningKey: []byte(refreshSecret),
		TokenIssuer:       tokenIssuer,
		CookieDomain:      viper.GetString("cookie_domain"),
		RefreshCookieName: refreshCookieName,
		RefreshCookiePath: refreshCookiePath,
		AccessTTL:         accessTTL,
		RefreshTTL:        refreshTTL,
		SameSiteMode:      http.SameSiteStrictMode,
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
	if commandContext == nil {
		commandContext = context.Background()
	}

	listenAddr := ":" + strconv.Itoa(viper.GetInt("port"))
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
		serverConfig.SameSiteMode = http.SameSiteNoneMode
	}

	database, databaseErr := storage.Open(commandContext, viper.GetString("database_url"))
	if databaseErr != nil {
		return databaseErr
	}
	defer func() { _ = database.Close() }()
	logger.Info("database opened", zap.String("driver", database.Driver()))

	credentialStore, closeCredentials, credentialErr := openCredentialStore(commandContext, logger, database, viper.GetString("credential_store"), viper.GetString("database_url"))
	if credentialErr != nil {
		return credentialErr
	}
	defer closeCredentials()

	tokens, tokensErr := authkit.NewTokenService(serverConfig, credentialStore, authkit.NewSystemClock(), logger)
	if tokensErr != nil {
		return tokensErr
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsRecorder, metricsErr := authkit.NewPrometheusMetrics(registry)
	if metricsErr != nil {
		return metricsErr
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	routeDependencies := authkit.RouteDependencies{
		Tokens:  tokens,
		Metrics: metricsRecorder,
		Logger:  logger,
	}
	if ratePerSecond := viper.GetFloat64("login_rate_per_second"); ratePerSecond > 0 {
		routeDependencies.LoginLimiter = authkit.NewLoginRateLimiter(ratePerSecond, viper.GetInt("login_burst")).Middleware()
	}
	authkit.MountAuthRoutes(router, serverConfig, routeDependencies)

	requireAccessToken := authkit.RequireAccessToken(tokens)
	router.GET("/auth/me", requireAccessToken, web.HandleWhoAmI(logger, tokens))

	thumbnails, thumbnailsErr := buildThumbnailStorage(commandContext, router)
	if thumbnailsErr != nil {
		return thumbnailsErr
	}
	eventStore, eventStoreErr := events.NewStore(commandContext, database.DB)
	if eventStoreErr != nil {
		return eventStoreErr
	}
	eventService, eventServiceErr := events.NewService(events.ServiceConfig{
		Repository:    eventStore,
		Thumbnails:    thumbnails,
		Confirmer:     tokens,
		PublicBaseURL: viper.GetString("public_base_url"),
		Logger:        logger,
	})
	if eventServiceErr != nil {
		return eventServiceErr
	}
	events.MountEventRoutes(router, events.RouteDependencies{
		Service:     eventService,
		RequireAuth: requireAccessToken,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func buildThumbnailStorage(ctx context.Context, router gin.IRouter) (events.ThumbnailStorage, error) {
	switch backend := viper.GetString("thumbnail_storage"); backend {
	case "", thumbnailStorageDisk:
		uploadsDir := viper.GetString("uploads_dir")
		diskStorage, err := events.NewDiskThumbnailStorage(uploadsDir, web.UploadsPathPrefix)
		if err != nil {
			return nil, err
		}
		web.MountUploads(router, uploadsDir)
		return diskStorage, nil
	case thumbnailStorageS3:
		return events.NewS3ThumbnailStorage(ctx, events.S3Config{
			Bucket:    viper.GetString("s3_bucket"),
			Region:    viper.GetString("s3_region"),
			Endpoint:  viper.GetString("s3_endpoint"),
			AccessKey: viper.GetString("s3_access_key"),
			SecretKey: viper.GetString("s3_secret_key"),
			PublicURL: viper.GetString("s3_public_url"),
		})
	default:
		return nil, configError(configCodeUnknownThumbnailStorage, fmt.Sprintf("thumbnail_storage %q is not one of disk, s3", backend))
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
		)
	}
}
