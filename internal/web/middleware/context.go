package middleware

import (
	"context"

	"mediahub.dev/portal/internal/i18n"
)

type ctxKey string

const (
	ctxKeyIsHTMX    ctxKey = "is_htmx"
	ctxKeySession   ctxKey = "session"
	ctxKeyLocalizer ctxKey = "localizer"
)

// WithHTMX marks the request as issued by htmx.
func WithHTMX(ctx context.Context, is bool) context.Context {
	return context.WithValue(ctx, ctxKeyIsHTMX, is)
}

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyIsHTMX).(bool)
	return v
}

// WithLocalizer stores the request localizer.
func WithLocalizer(ctx context.Context, l i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKeyLocalizer, l)
}

// LocalizerFrom returns the request localizer. The zero Localizer echoes keys.
func LocalizerFrom(ctx context.Context) i18n.Localizer {
	l, _ := ctx.Value(ctxKeyLocalizer).(i18n.Localizer)
	return l
}
