// Package httpserver serves the admin dashboard.
package httpserver

import (
	"context"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"mediahub.dev/portal/internal/admin/dashboard"
	adminmw "mediahub.dev/portal/internal/admin/middleware"
	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/content"
	"mediahub.dev/portal/internal/metrics"
	"mediahub.dev/portal/internal/observability"
	webmw "mediahub.dev/portal/internal/web/middleware"
	"mediahub.dev/portal/public/assets"
)

// ContentService is the backend surface the admin needs. *backend.Client satisfies it.
type ContentService interface {
	SiteInfo(ctx context.Context, lang string) (content.SiteInfo, error)
	CreateItem(ctx context.Context, token, idempotencyKey string, d backend.Draft) (content.Item, error)
}

// Config holds the admin server options.
type Config struct {
	Address       string
	BasePath      string
	LoginPath     string
	PublicBaseURL string
	Authenticator adminmw.Authenticator
	Dashboard     dashboard.Service
	Content       ContentService
	Assets        fs.FS
	Logger        *zap.Logger
	Metrics       *metrics.Registry

	CSRFCookieName   string
	CSRFCookiePath   string
	CSRFCookieSecure bool
	CSRFHeaderName   string
	SecureCookies    bool
}

// New builds the admin HTTP server.
func New(cfg Config) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base := normalizeBasePath(cfg.BasePath)
	loginPath := resolveLoginPath(base, cfg.LoginPath)

	authn := cfg.Authenticator
	if authn == nil {
		authn = adminmw.Passthrough()
	}
	svc := cfg.Content
	if svc == nil {
		svc = backend.NewClient("", backend.WithLogger(logger))
	}
	dash := cfg.Dashboard
	if dash == nil {
		if src, ok := svc.(dashboard.StatisticsSource); ok {
			dash = dashboard.NewBackendService(src)
		} else {
			dash = dashboard.NewStaticService()
		}
	}
	static := cfg.Assets
	if static == nil {
		static = assets.FS
	}

	h := &handlers{
		base:          base,
		loginPath:     loginPath,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		authn:         authn,
		dashboard:     dash,
		content:       svc,
		secure:        cfg.SecureCookies,
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLogger(logger))
	router.Use(observability.RequestLogger)
	router.Use(observability.Recovery)
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.HTTP.Middleware)
	}
	router.Use(chimw.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics.Handler())
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	assetsPrefix := strings.TrimRight(base, "/") + "/assets"
	router.Handle(assetsPrefix+"/*", http.StripPrefix(assetsPrefix, webmw.AssetsWithCache(static)))

	csrf := adminmw.CSRFConfig{
		CookieName: cfg.CSRFCookieName,
		CookiePath: firstNonEmpty(cfg.CSRFCookiePath, base),
		HeaderName: cfg.CSRFHeaderName,
		Secure:     cfg.CSRFCookieSecure,
	}
	mountAdminRoutes(router, h, csrf, logger)

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func mountAdminRoutes(router chi.Router, h *handlers, csrf adminmw.CSRFConfig, logger *zap.Logger) {
	protected := func(r chi.Router) {
		r.Use(adminmw.Auth(h.authn, h.loginPath, logger))
		r.Get("/", h.dashboardPage)
		RegisterFragment(r, "/fragments/kpis", h.kpiFragment)
		r.Get("/items/new", h.newItemPage)
		r.Post("/items", h.createItem)
	}
	router.Route(h.base, func(r chi.Router) {
		r.Use(adminmw.HTMX)
		r.Use(adminmw.NoStore)
		r.Use(adminmw.CSRF(csrf))

		r.Get("/login", h.loginPage)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Group(protected)
	})
}

// RegisterFragment registers a GET route reachable only from htmx.
func RegisterFragment(r chi.Router, pattern string, handler http.HandlerFunc) {
	r.With(adminmw.RequireHTMX).Get(pattern, handler)
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return "/admin"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func resolveLoginPath(base, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if base == "/" {
		return "/login"
	}
	return base + "/login"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
