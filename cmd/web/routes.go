package main

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"mediahub.dev/portal/internal/i18n"
	"mediahub.dev/portal/internal/metrics"
	"mediahub.dev/portal/internal/observability"
	"mediahub.dev/portal/internal/web/handlers"
	mw "mediahub.dev/portal/internal/web/middleware"
)

type routerDeps struct {
	Handlers       *handlers.Handlers
	Bundle         *i18n.Bundle
	Sessions       *mw.Sessions
	Logger         *zap.Logger
	Metrics        *metrics.Registry
	Assets         fs.FS
	RequestTimeout time.Duration
}

func newRouter(d routerDeps) http.Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// RealIP trusts X-Forwarded-For; deploy behind a proxy that sets it.
	r.Use(chimw.RealIP)
	r.Use(observability.InjectLogger(d.Logger))
	r.Use(observability.RequestLogger)
	r.Use(observability.Recovery)
	r.Use(d.Metrics.HTTP.Middleware)
	r.Use(chimw.Compress(5))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", d.Metrics.Handler())
	r.Handle("/assets/*", http.StripPrefix("/assets", mw.AssetsWithCache(d.Assets)))

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))
		r.Use(mw.HTMX)
		r.Use(d.Sessions.Middleware)
		r.Use(mw.Locale(d.Bundle))
		r.Use(mw.VaryLocale)
		d.Handlers.Mount(r)
	})

	return otelhttp.NewHandler(r, "web")
}
