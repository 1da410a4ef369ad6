package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// TokenVerifier is the subset of the Firebase auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// NewFirebaseVerifier builds an auth client for projectID. credentialsFile may be empty
// to use application default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	return client, nil
}

// FirebaseAuthenticator verifies Firebase ID tokens.
type FirebaseAuthenticator struct {
	verifier TokenVerifier
}

// NewFirebaseAuthenticator panics on a nil verifier.
func NewFirebaseAuthenticator(v TokenVerifier) *FirebaseAuthenticator {
	if v == nil {
		panic("middleware: firebase verifier is required")
	}
	return &FirebaseAuthenticator{verifier: v}
}

// Authenticate implements Authenticator.
func (f *FirebaseAuthenticator) Authenticate(r *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	verified, err := f.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) {
			return nil, NewAuthError(ReasonTokenExpired, err)
		}
		return nil, NewAuthError(ReasonTokenInvalid, err)
	}
	return &User{
		UID:   verified.UID,
		Email: stringClaim(verified.Claims["email"]),
		Roles: roleClaims(verified.Claims["role"], verified.Claims["roles"]),
		Token: token,
	}, nil
}

func stringClaim(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func roleClaims(values ...any) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, v := range values {
		switch v := v.(type) {
		case string:
			add(v)
		case []string:
			for _, s := range v {
				add(s)
			}
		case []any:
			for _, s := range v {
				if s, ok := s.(string); ok {
					add(s)
				}
			}
		}
	}
	return out
}
