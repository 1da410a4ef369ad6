package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/catalog"
	"mediahub.dev/portal/internal/config"
	"mediahub.dev/portal/internal/i18n"
	"mediahub.dev/portal/internal/metrics"
	"mediahub.dev/portal/internal/observability"
	"mediahub.dev/portal/internal/secrets"
	"mediahub.dev/portal/internal/web/handlers"
	mw "mediahub.dev/portal/internal/web/middleware"
	"mediahub.dev/portal/locales"
	"mediahub.dev/portal/public/assets"
	"mediahub.dev/portal/templates"
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
	logger := baseLogger.Named("web")

	cfg, err := loadConfig(ctx, logger)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", verr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise web app", zap.Error(err))
	}
	defer a.Close()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serverLogger := logger.With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("web listening",
			zap.Bool("dev_mode", cfg.Server.DevMode),
			zap.Bool("offline", cfg.Backend.BaseURL == ""),
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

// loadConfig loads configuration, resolving secret references through Secret Manager
// when MEDIAHUB_SECRETS_PROJECT_ID is set.
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

type app struct {
	handler http.Handler
	closers []func() error
	logger  *zap.Logger
}

// Close releases long-lived clients.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close error", zap.Error(err))
		}
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}
	registry := metrics.NewRegistry()

	client := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(logger.Named("backend")),
	)

	var store catalog.Store = catalog.NewMemoryStore()
	if cfg.Cache.RedisAddr != "" {
		rs, err := catalog.NewRedisStore(ctx, catalog.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		store = rs
	}

	svc, err := catalog.NewService(catalog.ServiceDeps{
		Endpoints: catalog.BackendEndpoints(client),
		Store:     store,
		Logger:    logger,
		Metrics:   registry.Catalog,
	})
	if err != nil {
		return nil, err
	}

	bundle, err := i18n.Load(locales.FS, cfg.Site.DefaultLocale, cfg.Site.Locales)
	if err != nil {
		return nil, err
	}

	var templateFS fs.FS = templates.FS
	if cfg.Server.TemplatesDir != "" {
		templateFS = os.DirFS(cfg.Server.TemplatesDir)
	}
	tmpls, err := handlers.NewTemplates(templateFS, cfg.Server.DevMode)
	if err != nil {
		return nil, err
	}

	h, err := handlers.New(handlers.Deps{
		Catalog:   svc,
		Source:    client,
		Bundle:    bundle,
		Templates: tmpls,
		SiteName:  cfg.Site.Name,
		BaseURL:   cfg.Site.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	var assetFS fs.FS = assets.FS
	if cfg.Server.AssetsDir != "" {
		assetFS = os.DirFS(cfg.Server.AssetsDir)
	}

	a.handler = newRouter(routerDeps{
		Handlers: h,
		Bundle:   bundle,
		Sessions: mw.NewSessions(mw.SessionOptions{
			CookieName: cfg.Session.CookieName,
			SigningKey: cfg.Session.SigningKey,
			Secure:     cfg.Session.Secure || cfg.Production(),
			Logger:     logger.Named("session"),
		}),
		Logger:         logger,
		Metrics:        registry,
		Assets:         assetFS,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	return a, nil
}
