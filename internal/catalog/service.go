package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"mediahub.dev/portal/internal/content"
	"mediahub.dev/portal/internal/metrics"
)

var (
	// ErrEndpointsMissing indicates a kind has no backend endpoint configured.
	ErrEndpointsMissing = errors.New("catalog: endpoint missing")
	// ErrStoreMissing indicates the service was built without a store.
	ErrStoreMissing = errors.New("catalog: store missing")
)

const warmConcurrency = 4

var tracer = otel.Tracer("mediahub.dev/portal/internal/catalog")

// ServiceDeps wires a Service.
type ServiceDeps struct {
	Endpoints Endpoints
	Store     Store
	Logger    *zap.Logger
	Metrics   *metrics.Catalog
	PageSize  int
}

// Service resolves the first page of a category with at most one backend call per
// key in flight, sharing the result with every caller.
type Service struct {
	endpoints Endpoints
	store     Store
	logger    *zap.Logger
	metrics   *metrics.Catalog
	pageSize  int

	group   singleflight.Group
	mu      sync.Mutex
	loading map[string]bool
}

// NewService validates deps and returns a ready Service.
func NewService(deps ServiceDeps) (*Service, error) {
	if err := deps.Endpoints.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, ErrStoreMissing
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewCatalog(nil)
	}
	size := deps.PageSize
	if size <= 0 {
		size = content.PageSize
	}
	return &Service{
		endpoints: deps.Endpoints,
		store:     deps.Store,
		logger:    logger.Named("catalog"),
		metrics:   m,
		pageSize:  size,
		loading:   map[string]bool{},
	}, nil
}

// PageSize returns the number of items requested per page.
func (s *Service) PageSize() int {
	return s.pageSize
}

// Get returns page 1 of the category, fetching it on first use. Concurrent callers for
// the same key share one backend call. The call is not cancelled when ctx is; the
// caller stops waiting and the result still lands in the store.
func (s *Service) Get(ctx context.Context, kind content.Kind, id content.CategoryID) ([]content.Item, error) {
	fetch, err := s.endpoints.For(kind)
	if err != nil {
		return nil, err
	}
	key := content.CacheKey(kind, id)

	if items, ok := s.cached(ctx, key); ok {
		s.metrics.Hits.WithLabelValues(string(kind)).Inc()
		return items, nil
	}

	if s.Loading(kind, id) {
		s.metrics.SharedWaits.WithLabelValues(string(kind)).Inc()
	}
	ch := s.group.DoChan(key, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), kind, id, key, fetch)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return content.CloneItems(res.Val.([]content.Item)), nil
	}
}

// Lookup reads the store without fetching.
func (s *Service) Lookup(kind content.Kind, id content.CategoryID) ([]content.Item, bool) {
	return s.cached(context.Background(), content.CacheKey(kind, id))
}

// Loading reports whether a fetch for the key is in flight.
func (s *Service) Loading(kind content.Kind, id content.CategoryID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading[content.CacheKey(kind, id)]
}

// Request names one category to warm.
type Request struct {
	Kind content.Kind
	ID   content.CategoryID
}

// Warm fetches every request concurrently. Failures are logged and do not stop the rest.
// The returned map holds the items of each key that resolved.
func (s *Service) Warm(ctx context.Context, reqs []Request) map[string][]content.Item {
	var (
		mu  sync.Mutex
		out = make(map[string][]content.Item, len(reqs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, req := range reqs {
		g.Go(func() error {
			items, err := s.Get(gctx, req.Kind, req.ID)
			if err != nil {
				s.logger.Warn("warm category failed",
					zap.String("kind", string(req.Kind)),
					zap.String("category_id", string(req.ID)),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			out[content.CacheKey(req.Kind, req.ID)] = items
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// FetchPage loads an arbitrary page of a category directly from the backend. Pages
// past the first are never cached.
func (s *Service) FetchPage(ctx context.Context, kind content.Kind, id content.CategoryID, offset int) (content.Page, error) {
	if offset <= 0 {
		items, err := s.Get(ctx, kind, id)
		if err != nil {
			return content.Page{}, err
		}
		return content.Page{Results: items}, nil
	}
	fetch, err := s.endpoints.For(kind)
	if err != nil {
		return content.Page{}, err
	}
	page, err := fetch(ctx, id, s.pageSize, offset)
	if err != nil {
		s.logger.Warn("fetch category page failed",
			zap.String("kind", string(kind)),
			zap.String("category_id", string(id)),
			zap.Int("offset", offset),
			zap.Error(err),
		)
		return content.Page{}, fmt.Errorf("catalog: fetch %s offset %d: %w", content.CacheKey(kind, id), offset, err)
	}
	if page.Results == nil {
		page.Results = []content.Item{}
	}
	return page, nil
}

func (s *Service) load(ctx context.Context, kind content.Kind, id content.CategoryID, key string, fetch FetchFunc) ([]content.Item, error) {
	// A caller may have populated the key between the first check and joining the group.
	if items, ok := s.cached(ctx, key); ok {
		return items, nil
	}

	s.setLoading(key, true)
	defer s.setLoading(key, false)

	s.metrics.Misses.WithLabelValues(string(kind)).Inc()

	ctx, span := tracer.Start(ctx, "catalog.fetch")
	span.SetAttributes(
		attribute.String("catalog.kind", string(kind)),
		attribute.String("catalog.category_id", string(id)),
	)
	defer span.End()

	start := time.Now()
	page, err := fetch(ctx, id, s.pageSize, 0)
	s.metrics.FetchDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.metrics.Fetches.WithLabelValues(string(kind), "error").Inc()
		s.logger.Error("fetch category failed",
			zap.String("kind", string(kind)),
			zap.String("category_id", string(id)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("catalog: fetch %s: %w", key, err)
	}
	s.metrics.Fetches.WithLabelValues(string(kind), "ok").Inc()

	items := page.Results
	if items == nil {
		items = []content.Item{}
	}
	if err := s.store.Set(ctx, key, items); err != nil {
		s.logger.Warn("store category failed", zap.String("key", key), zap.Error(err))
	}
	return items, nil
}

func (s *Service) cached(ctx context.Context, key string) ([]content.Item, bool) {
	items, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("read category cache failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return items, ok
}

func (s *Service) setLoading(key string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.loading[key] = true
		return
	}
	delete(s.loading, key)
}
