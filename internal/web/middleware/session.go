package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSessionCookie = "MEDIAHUB_SESSION"
	sessionMaxAge        = 30 * 24 * time.Hour
)

// SessionData is the state carried in the signed session cookie.
type SessionData struct {
	ID        string    `json:"id"`
	Locale    string    `json:"locale,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	dirty bool
}

// MarkDirty flags the session for writing before the response is sent.
func (s *SessionData) MarkDirty() {
	s.dirty = true
	s.UpdatedAt = time.Now().UTC()
}

// SessionOptions configures the session cookie.
type SessionOptions struct {
	CookieName string
	SigningKey string
	Secure     bool
	Logger     *zap.Logger
}

// Sessions signs and verifies session cookies with HMAC-SHA256.
type Sessions struct {
	name   string
	key    []byte
	secure bool
}

// NewSessions builds the session middleware. Without a signing key a process-ephemeral
// key is generated, which invalidates sessions on restart.
func NewSessions(opts SessionOptions) *Sessions {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := strings.TrimSpace(opts.CookieName)
	if name == "" {
		name = defaultSessionCookie
	}
	key := []byte(opts.SigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			logger.Error("session: generate signing key", zap.Error(err))
			key = []byte("insecure-dev-key-set-MEDIAHUB_SESSION_SIGNING_KEY")
		}
		logger.Warn("session: using ephemeral signing key; set MEDIAHUB_SESSION_SIGNING_KEY in production")
	}
	return &Sessions{name: name, key: key, secure: opts.Secure}
}

// Middleware loads or initialises the session and stores it on the request context.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd, fromCookie := s.read(r)
		if sd.ID == "" {
			sd.ID = randID()
			sd.CreatedAt = time.Now().UTC()
			sd.UpdatedAt = sd.CreatedAt
			sd.dirty = true
		}
		ctx := context.WithValue(r.Context(), ctxKeySession, sd)
		rw := newBeforeWriteRecorder(w, func(w http.ResponseWriter) {
			if sd.dirty || !fromCookie {
				s.write(w, sd)
			}
		})
		next.ServeHTTP(rw, r.WithContext(ctx))
		rw.fire()
	})
}

// GetSession returns the session of the request, or an empty one outside the middleware.
func GetSession(r *http.Request) *SessionData {
	if sd, ok := r.Context().Value(ctxKeySession).(*SessionData); ok {
		return sd
	}
	return &SessionData{}
}

func (s *Sessions) read(r *http.Request) (*SessionData, bool) {
	c, err := r.Cookie(s.name)
	if err != nil || c.Value == "" {
		return &SessionData{}, false
	}
	payload, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return &SessionData{}, false
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return &SessionData{}, false
	}
	sigB, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return &SessionData{}, false
	}
	if !hmac.Equal(sigB, s.sign(payloadB)) {
		return &SessionData{}, false
	}
	var sd SessionData
	if err := json.Unmarshal(payloadB, &sd); err != nil {
		return &SessionData{}, false
	}
	return &sd, true
}

func (s *Sessions) write(w http.ResponseWriter, sd *SessionData) {
	b, err := json.Marshal(sd)
	if err != nil {
		return
	}
	value := base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(s.sign(b))
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionMaxAge),
	})
}

func (s *Sessions) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

func randID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
