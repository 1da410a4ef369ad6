package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// TokenCookie holds the ID token for browser sessions.
const TokenCookie = "__session"

type ctxKey string

const (
	userKey ctxKey = "admin.user"
	csrfKey ctxKey = "admin.csrf"
	htmxKey ctxKey = "admin.htmx"
)

// User is the signed-in editor.
type User struct {
	UID   string
	Email string
	Roles []string
	Token string
}

// Authenticator turns a bearer token into a User.
type Authenticator interface {
	Authenticate(r *http.Request, token string) (*User, error)
}

// ErrUnauthorized is returned when no user can be resolved.
var ErrUnauthorized = errors.New("unauthorized")

const (
	ReasonMissingToken = "missing_token"
	ReasonTokenInvalid = "token_invalid"
	ReasonTokenExpired = "token_expired"
)

// AuthError carries a reason code alongside the cause.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err with a reason code.
func NewAuthError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

// Passthrough accepts any non-empty token. Development only.
func Passthrough() Authenticator { return passthrough{} }

type passthrough struct{}

func (passthrough) Authenticate(_ *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	return &User{UID: token, Roles: []string{"editor"}, Token: token}, nil
}

// Auth resolves the request's user or sends the browser to loginPath.
func Auth(authn Authenticator, loginPath string, logger *zap.Logger) func(http.Handler) http.Handler {
	if authn == nil {
		authn = Passthrough()
	}
	if loginPath == "" {
		loginPath = "/login"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := RequestToken(r)
			if token == "" {
				logger.Debug("admin auth failed", zap.String("reason", ReasonMissingToken), zap.String("path", r.URL.Path))
				unauthorized(w, r, loginPath, ReasonMissingToken)
				return
			}
			user, err := authn.Authenticate(r, token)
			if err != nil || user == nil {
				reason := ReasonTokenInvalid
				var ae *AuthError
				if errors.As(err, &ae) && ae.Reason != "" {
					reason = ae.Reason
				}
				if err == nil {
					err = ErrUnauthorized
				}
				logger.Info("admin auth failed", zap.String("reason", reason), zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w, r, loginPath, reason)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey).(*User)
	return u, ok && u != nil
}

// RequestToken reads the bearer header, then the token cookie.
func RequestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func unauthorized(w http.ResponseWriter, r *http.Request, loginPath, reason string) {
	if IsHTMX(r.Context()) {
		if reason == ReasonTokenExpired {
			w.Header().Set("HX-Refresh", "true")
		} else {
			w.Header().Set("HX-Redirect", loginPath)
		}
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	target := loginPath
	if reason == ReasonTokenExpired {
		if u, err := url.Parse(loginPath); err == nil {
			q := u.Query()
			q.Set("reason", "expired")
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
}
