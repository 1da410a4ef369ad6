package middleware

import (
	"net/http"

	"mediahub.dev/portal/internal/i18n"
)

const localeCookie = "hl"

// Locale resolves the request locale: the hl query parameter, then the hl cookie, then
// the session, then Accept-Language. The result is stored in the session and exposed as
// a Localizer on the request context.
func Locale(bundle *i18n.Bundle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := GetSession(r)
			lang := ""
			if q := r.URL.Query().Get("hl"); q != "" {
				if l, ok := bundle.Match(q); ok {
					lang = l
					http.SetCookie(w, &http.Cookie{Name: localeCookie, Value: l, Path: "/", SameSite: http.SameSiteLaxMode})
				}
			}
			if lang == "" {
				if c, err := r.Cookie(localeCookie); err == nil && c.Value != "" {
					if l, ok := bundle.Match(c.Value); ok {
						lang = l
					}
				}
			}
			if lang == "" && s.Locale != "" && bundle.IsSupported(s.Locale) {
				lang = s.Locale
			}
			if lang == "" {
				lang = bundle.Resolve(r.Header.Get("Accept-Language"))
			}
			if s.Locale != lang {
				s.Locale = lang
				s.MarkDirty()
			}
			w.Header().Set("Content-Language", lang)
			ctx := WithLocalizer(r.Context(), bundle.Localizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Lang returns the resolved locale of the request.
func Lang(r *http.Request) string {
	if l := LocalizerFrom(r.Context()); l.Lang != "" {
		return l.Lang
	}
	return GetSession(r).Locale
}
