package middleware

import (
	"context"
	"net/http"
	"strings"
)

// HTMXInfo holds the HX-* request headers.
type HTMXInfo struct {
	Request    bool
	Boosted    bool
	CurrentURL string
	Target     string
	Trigger    string
}

// HTMX records htmx request metadata on the context.
func HTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := HTMXInfo{
			Request:    strings.EqualFold(r.Header.Get("HX-Request"), "true"),
			Boosted:    strings.EqualFold(r.Header.Get("HX-Boosted"), "true"),
			CurrentURL: r.Header.Get("HX-Current-URL"),
			Target:     r.Header.Get("HX-Target"),
			Trigger:    r.Header.Get("HX-Trigger"),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), htmxKey, info)))
	})
}

// HTMXFrom returns the request's htmx metadata.
func HTMXFrom(ctx context.Context) HTMXInfo {
	info, _ := ctx.Value(htmxKey).(HTMXInfo)
	return info
}

// IsHTMX reports whether htmx issued the request.
func IsHTMX(ctx context.Context) bool { return HTMXFrom(ctx).Request }

// RequireHTMX answers 404 to direct navigation of fragment routes.
func RequireHTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "HX-Request")
		if !IsHTMX(r.Context()) {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NoStore disables caching of admin responses.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
