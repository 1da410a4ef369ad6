package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const defaultVersion = "latest"

// ErrProjectMissing is returned when no project is configured for a reference.
var ErrProjectMissing = errors.New("secrets: project id missing")

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret://name[?version=N&project=P] references against Google
// Secret Manager, caching values for the lifetime of the process.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	project    string
	logger     *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

type fetcherConfig struct {
	logger     *zap.Logger
	client     secretManagerClient
	clientOpts []option.ClientOption
}

// Option customises a Fetcher.
type Option func(*fetcherConfig)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithCredentialsFile authenticates with a service account key file.
func WithCredentialsFile(path string) Option {
	return func(cfg *fetcherConfig) {
		if path = strings.TrimSpace(path); path != "" {
			cfg.clientOpts = append(cfg.clientOpts, option.WithCredentialsFile(path))
		}
	}
}

// WithClient injects a Secret Manager client.
func WithClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

// NewFetcher builds a Fetcher for projectID, dialling Secret Manager unless a client
// is injected.
func NewFetcher(ctx context.Context, projectID string, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	f := &Fetcher{
		client:  cfg.client,
		project: strings.TrimSpace(projectID),
		logger:  cfg.logger,
		cache:   map[string]string{},
	}
	if f.client == nil {
		client, err := secretmanager.NewClient(ctx, cfg.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("secrets: create client: %w", err)
		}
		f.client = client
		f.ownsClient = true
	}
	return f, nil
}

// Close releases a client created by NewFetcher.
func (f *Fetcher) Close() error {
	if f == nil || !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// ResolveSecret returns the payload of ref.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	project := parsed.project
	if project == "" {
		project = f.project
	}
	if project == "" {
		return "", ErrProjectMissing
	}
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, parsed.secret, parsed.version)

	f.mu.RLock()
	value, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return value, nil
	}

	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s/%s: %w", parsed.secret, parsed.version, err)
	}
	value = string(resp.GetPayload().GetData())
	f.logger.Debug("secret resolved", zap.String("secret", parsed.secret), zap.String("version", parsed.version))

	f.mu.Lock()
	f.cache[name] = value
	f.mu.Unlock()
	return value, nil
}

type reference struct {
	secret  string
	version string
	project string
}

func parseReference(ref string) (reference, error) {
	if strings.TrimSpace(ref) == "" {
		return reference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}
	q := u.Query()
	version := strings.TrimSpace(q.Get("version"))
	if version == "" {
		version = defaultVersion
	}
	return reference{secret: name, version: version, project: strings.TrimSpace(q.Get("project"))}, nil
}
