package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mediahub.dev/portal/internal/admin/httpserver"
	adminmw "mediahub.dev/portal/internal/admin/middleware"
	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/config"
	"mediahub.dev/portal/internal/metrics"
	"mediahub.dev/portal/internal/observability"
	"mediahub.dev/portal/internal/secrets"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level, _ := config.Lookup("LOG_LEVEL")
	baseLogger, err := observability.NewLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("admin")

	cfg, err := loadConfig(ctx, logger)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", verr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	authn, err := newAuthenticator(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise authenticator", zap.Error(err))
	}

	secure := cfg.Session.Secure || cfg.Production()
	server := httpserver.New(httpserver.Config{
		Address:          cfg.Admin.Addr,
		BasePath:         cfg.Admin.BasePath,
		LoginPath:        cfg.Admin.LoginPath,
		PublicBaseURL:    cfg.Site.BaseURL,
		Authenticator:    authn,
		Content:          backend.NewClient(cfg.Backend.BaseURL, backend.WithTimeout(cfg.Backend.Timeout), backend.WithLogger(logger.Named("backend"))),
		Logger:           logger,
		Metrics:          metrics.NewRegistry(),
		CSRFCookieSecure: secure,
		SecureCookies:    secure,
	})

	serverLogger := logger.With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("admin listening",
			zap.String("base_path", cfg.Admin.BasePath),
			zap.Bool("firebase", cfg.Admin.FirebaseProjectID != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received; draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newAuthenticator verifies Firebase ID tokens when a project is configured. Config
// validation requires one in production.
func newAuthenticator(ctx context.Context, cfg config.Config, logger *zap.Logger) (adminmw.Authenticator, error) {
	if cfg.Admin.FirebaseProjectID == "" {
		logger.Warn("admin authentication is passthrough; set MEDIAHUB_ADMIN_FIREBASE_PROJECT_ID to verify tokens")
		return adminmw.Passthrough(), nil
	}
	verifier, err := adminmw.NewFirebaseVerifier(ctx, cfg.Admin.FirebaseProjectID, cfg.Admin.FirebaseCredentialsFile)
	if err != nil {
		return nil, err
	}
	return adminmw.NewFirebaseAuthenticator(verifier), nil
}

func loadConfig(ctx context.Context, logger *zap.Logger) (config.Config, error) {
	project, err := config.Lookup("SECRETS_PROJECT_ID")
	if err != nil {
		return config.Config{}, err
	}
	if project == "" {
		return config.Load(ctx)
	}
	credentials, _ := config.Lookup("SECRETS_CREDENTIALS_FILE")
	fetcher, err := secrets.NewFetcher(ctx, project,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithCredentialsFile(credentials),
	)
	if err != nil {
		return config.Config{}, err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()
	return config.Load(ctx, config.WithSecretResolver(fetcher))
}
