package testutil

import (
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"mediahub.dev/portal/internal/admin/dashboard"
	"mediahub.dev/portal/internal/admin/httpserver"
	"mediahub.dev/portal/internal/admin/middleware"
	"mediahub.dev/portal/internal/backend"
)

// ServerOption adjusts the server config.
type ServerOption func(*httpserver.Config)

// WithAuthenticator replaces the passthrough authenticator.
func WithAuthenticator(a middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) { cfg.Authenticator = a }
}

// WithBasePath mounts the admin under path.
func WithBasePath(path string) ServerOption {
	return func(cfg *httpserver.Config) { cfg.BasePath = path }
}

// WithDashboard replaces the static KPI service.
func WithDashboard(s dashboard.Service) ServerOption {
	return func(cfg *httpserver.Config) { cfg.Dashboard = s }
}

// WithContent replaces the offline backend client.
func WithContent(c httpserver.ContentService) ServerOption {
	return func(cfg *httpserver.Config) { cfg.Content = c }
}

// NewServer runs the admin stack on an httptest server closed at cleanup.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := httpserver.Config{
		Address:        ":0",
		BasePath:       "/admin",
		PublicBaseURL:  "https://mediahub.test",
		CSRFCookieName: "csrf_token",
		CSRFHeaderName: "X-CSRF-Token",
		Authenticator:  middleware.Passthrough(),
		Dashboard:      dashboard.NewStaticService(),
		Content:        backend.NewClient("", backend.WithLogger(logger)),
		Logger:         logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	ts := httptest.NewServer(httpserver.New(cfg).Handler)
	t.Cleanup(ts.Close)
	return ts
}
