package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func load(t *testing.T, env map[string]string, opts ...Option) (Config, error) {
	t.Helper()
	base := []Option{WithEnvMap(env), WithoutSystemEnv(), WithEnvFile("")}
	return Load(context.Background(), append(base, opts...)...)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Admin.Addr != ":8081" {
		t.Errorf("unexpected addrs %q %q", cfg.Server.Addr, cfg.Admin.Addr)
	}
	if cfg.Backend.Timeout != 8*time.Second {
		t.Errorf("backend timeout = %v", cfg.Backend.Timeout)
	}
	if !reflect.DeepEqual(cfg.Site.Locales, []string{"en", "fr", "ar"}) {
		t.Errorf("locales = %v", cfg.Site.Locales)
	}
	if cfg.Cache.RedisAddr != "" || cfg.Cache.TTL != 0 {
		t.Errorf("cache must default to memory without ttl: %+v", cfg.Cache)
	}
	if cfg.Admin.BasePath != "/admin" || cfg.Log.Level != "info" || cfg.Environment != "local" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"MEDIAHUB_SERVER_ADDR":         ":9000",
		"MEDIAHUB_BACKEND_BASE_URL":    "https://api.example.com/v1/",
		"MEDIAHUB_BACKEND_TIMEOUT":     "3s",
		"MEDIAHUB_SITE_LOCALES":        "fr, AR ,fr",
		"MEDIAHUB_SITE_DEFAULT_LOCALE": "fr",
		"MEDIAHUB_CACHE_REDIS_ADDR":    "localhost:6379",
		"MEDIAHUB_CACHE_REDIS_DB":      "2",
		"MEDIAHUB_CACHE_TTL":           "10m",
		"MEDIAHUB_DEV_MODE":            "yes",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9000" || !cfg.Server.DevMode {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Backend.BaseURL != "https://api.example.com/v1" || cfg.Backend.Timeout != 3*time.Second {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if !reflect.DeepEqual(cfg.Site.Locales, []string{"fr", "ar"}) {
		t.Errorf("locales = %v", cfg.Site.Locales)
	}
	if cfg.Cache.RedisDB != 2 || cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := load(t, map[string]string{
		"MEDIAHUB_SITE_DEFAULT_LOCALE": "de",
		"MEDIAHUB_SITE_BASE_URL":       "not a url",
		"MEDIAHUB_ENVIRONMENT":         "production",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"Site.BaseURL", "Site.DefaultLocale", "Session.SigningKey", "Admin.FirebaseProjectID"}
	if !reflect.DeepEqual(verr.Fields(), want) {
		t.Fatalf("fields = %v, want %v", verr.Fields(), want)
	}
}

func TestLoadResolvesSecrets(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://session-key" {
			t.Fatalf("unexpected ref %q", ref)
		}
		return " resolved-key \n", nil
	})
	cfg, err := load(t, map[string]string{"MEDIAHUB_SESSION_SIGNING_KEY": "sm://session-key"}, WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.SigningKey != "resolved-key" {
		t.Fatalf("signing key = %q", cfg.Session.SigningKey)
	}
}

func TestLoadSecretWithoutResolver(t *testing.T) {
	_, err := load(t, map[string]string{"MEDIAHUB_CACHE_REDIS_PASSWORD": "secret://redis"})
	var serr *SecretError
	if !errors.As(err, &serr) || !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("expected SecretError, got %v", err)
	}
}

func TestDotEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nexport MEDIAHUB_LOG_LEVEL=debug\nMEDIAHUB_SITE_NAME=\"From File\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"MEDIAHUB_SITE_NAME": "From Map"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Site.Name != "From Map" {
		t.Errorf("site name = %q", cfg.Site.Name)
	}

	v, err := Lookup("LOG_LEVEL", WithEnvFile(path), WithoutSystemEnv())
	if err != nil || v != "debug" {
		t.Errorf("Lookup = %q, %v", v, err)
	}
}
