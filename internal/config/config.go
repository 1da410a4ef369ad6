package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix = "MEDIAHUB_"

	defaultEnvFile        = ".env"
	defaultEnvironment    = "local"
	defaultAddr           = ":8080"
	defaultAdminAddr      = ":8081"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultSiteName       = "Mediahub"
	defaultBaseURL        = "http://localhost:8080"
	defaultLocale         = "en"
	defaultLocales        = "en,fr,ar"
	defaultBackendTimeout = 8 * time.Second
	defaultSessionCookie  = "mh_session"
	defaultAdminBasePath  = "/admin"
	defaultLogLevel       = "info"
)

// Config captures runtime configuration of both binaries.
type Config struct {
	Environment string
	Server      ServerConfig
	Site        SiteConfig
	Backend     BackendConfig
	Cache       CacheConfig
	Session     SessionConfig
	Admin       AdminConfig
	Log         LogConfig
	Secrets     SecretsConfig
}

// ServerConfig configures the public HTTP server.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	DevMode        bool
	TemplatesDir   string
	AssetsDir      string
}

// SiteConfig describes the public site.
type SiteConfig struct {
	Name          string
	BaseURL       string
	DefaultLocale string
	Locales       []string
}

// BackendConfig points at the content REST API. An empty BaseURL serves built-in data.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CacheConfig selects the category cache store. An empty RedisAddr keeps the cache in memory.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	CookieName string
	SigningKey string
	Secure     bool
}

// AdminConfig configures the admin dashboard.
type AdminConfig struct {
	Addr                    string
	BasePath                string
	LoginPath               string
	FirebaseProjectID       string
	FirebaseCredentialsFile string
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string
}

// SecretsConfig enables Secret Manager lookups for secret:// values.
type SecretsConfig struct {
	ProjectID       string
	CredentialsFile string
}

// Production reports whether the environment is production.
func (c Config) Production() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists missing or invalid settings.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the invalid field names.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError describes a failed secret resolution.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the dotenv path. An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver resolves secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// Lookup returns a single raw value with the precedence of Load, e.g. to bootstrap a
// secret resolver before loading. key omits the MEDIAHUB_ prefix.
func Lookup(key string, opts ...Option) (string, error) {
	options := newLoaderOptions(opts)
	lookup, err := options.lookupFunc()
	if err != nil {
		return "", err
	}
	v, _ := lookup(envPrefix + key)
	return strings.TrimSpace(v), nil
}

func (o loaderOptions) lookupFunc() (func(string) (string, bool), error) {
	dotEnv, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if v, ok := o.envMap[key]; ok {
			return v, true
		}
		if o.useSystemEnv {
			if v, ok := os.LookupEnv(key); ok {
				return v, true
			}
		}
		v, ok := dotEnv[key]
		return v, ok
	}, nil
}

// Load assembles configuration from defaults, a dotenv file, the environment and an
// explicit map, in increasing precedence, then resolves secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	lookup, err := options.lookupFunc()
	if err != nil {
		return Config{}, err
	}
	get := func(key string) (string, bool) { return lookup(envPrefix + key) }

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(get, "ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Addr:           stringWithDefault(get, "SERVER_ADDR", defaultAddr),
			ReadTimeout:    durationWithDefault(get, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(get, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(get, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(get, "SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			DevMode:        boolWithDefault(get, "DEV_MODE", false),
			TemplatesDir:   stringWithDefault(get, "TEMPLATES_DIR", ""),
			AssetsDir:      stringWithDefault(get, "ASSETS_DIR", ""),
		},
		Site: SiteConfig{
			Name:          stringWithDefault(get, "SITE_NAME", defaultSiteName),
			BaseURL:       strings.TrimRight(stringWithDefault(get, "SITE_BASE_URL", defaultBaseURL), "/"),
			DefaultLocale: strings.ToLower(stringWithDefault(get, "SITE_DEFAULT_LOCALE", defaultLocale)),
			Locales:       csvWithDefault(get, "SITE_LOCALES", defaultLocales),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(stringWithDefault(get, "BACKEND_BASE_URL", ""), "/"),
			Timeout: durationWithDefault(get, "BACKEND_TIMEOUT", defaultBackendTimeout),
		},
		Cache: CacheConfig{
			RedisAddr:     stringWithDefault(get, "CACHE_REDIS_ADDR", ""),
			RedisPassword: stringWithDefault(get, "CACHE_REDIS_PASSWORD", ""),
			RedisDB:       intWithDefault(get, "CACHE_REDIS_DB", 0),
			TTL:           durationWithDefault(get, "CACHE_TTL", 0),
		},
		Session: SessionConfig{
			CookieName: stringWithDefault(get, "SESSION_COOKIE", defaultSessionCookie),
			SigningKey: stringWithDefault(get, "SESSION_SIGNING_KEY", ""),
			Secure:     boolWithDefault(get, "SESSION_SECURE", false),
		},
		Admin: AdminConfig{
			Addr:                    stringWithDefault(get, "ADMIN_ADDR", defaultAdminAddr),
			BasePath:                stringWithDefault(get, "ADMIN_BASE_PATH", defaultAdminBasePath),
			LoginPath:               stringWithDefault(get, "ADMIN_LOGIN_PATH", ""),
			FirebaseProjectID:       stringWithDefault(get, "ADMIN_FIREBASE_PROJECT_ID", ""),
			FirebaseCredentialsFile: stringWithDefault(get, "ADMIN_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(get, "LOG_LEVEL", defaultLogLevel)),
		},
		Secrets: SecretsConfig{
			ProjectID:       stringWithDefault(get, "SECRETS_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(get, "SECRETS_CREDENTIALS_FILE", ""),
		},
	}

	for _, field := range []*string{&cfg.Cache.RedisPassword, &cfg.Session.SigningKey, &cfg.Backend.BaseURL} {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var fields []string
	if strings.TrimSpace(c.Server.Addr) == "" {
		fields = append(fields, "Server.Addr")
	}
	if u, err := url.Parse(c.Site.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		fields = append(fields, "Site.BaseURL")
	}
	if len(c.Site.Locales) == 0 || !slices.Contains(c.Site.Locales, c.Site.DefaultLocale) {
		fields = append(fields, "Site.DefaultLocale")
	}
	if c.Backend.BaseURL != "" {
		if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			fields = append(fields, "Backend.BaseURL")
		}
	}
	if c.Backend.Timeout <= 0 {
		fields = append(fields, "Backend.Timeout")
	}
	if c.Cache.TTL < 0 {
		fields = append(fields, "Cache.TTL")
	}
	if !strings.HasPrefix(c.Admin.BasePath, "/") {
		fields = append(fields, "Admin.BasePath")
	}
	if c.Production() {
		if len(c.Session.SigningKey) < 32 {
			fields = append(fields, "Session.SigningKey")
		}
		if c.Admin.FirebaseProjectID == "" {
			fields = append(fields, "Admin.FirebaseProjectID")
		}
	}
	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !isSecretReference(trimmed) {
		return value, nil
	}
	ref := normalizeSecretReference(trimmed)
	resolved, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		var secretErr *SecretError
		if errors.As(err, &secretErr) {
			return "", err
		}
		return "", &SecretError{Ref: ref, Err: err}
	}
	return strings.TrimSpace(resolved), nil
}

func isSecretReference(value string) bool {
	return strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://")
}

func normalizeSecretReference(value string) string {
	if strings.HasPrefix(value, "sm://") {
		return "secret://" + strings.TrimPrefix(value, "sm://")
	}
	return value
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key, fallback string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" && !slices.Contains(out, trimmed) {
			out = append(out, trimmed)
		}
	}
	return out
}
