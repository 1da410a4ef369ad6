// Package dashboard turns backend statistics into KPI cards.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mediahub.dev/portal/internal/content"
)

// ErrNotConfigured is returned when no statistics source was provided.
var ErrNotConfigured = errors.New("dashboard: service not configured")

// Service provides the numbers shown on the dashboard.
type Service interface {
	FetchKPIs(ctx context.Context, token string) ([]KPI, error)
}

// KPI is one dashboard card.
type KPI struct {
	ID        string
	Label     string
	Value     string
	DeltaText string
	Trend     Trend
	UpdatedAt time.Time
}

// Trend is the direction of change since the previous fetch.
type Trend string

const (
	TrendFlat Trend = "flat"
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// StatisticsSource is satisfied by *backend.Client.
type StatisticsSource interface {
	Statistics(ctx context.Context, token string) (content.Statistics, error)
}

// BackendService builds KPIs from backend statistics. Trends compare against the
// previous successful fetch.
type BackendService struct {
	src     StatisticsSource
	printer *message.Printer

	mu   sync.Mutex
	last *content.Statistics
}

// NewBackendService wraps src.
func NewBackendService(src StatisticsSource) *BackendService {
	return &BackendService{src: src, printer: message.NewPrinter(language.English)}
}

// FetchKPIs implements Service.
func (s *BackendService) FetchKPIs(ctx context.Context, token string) ([]KPI, error) {
	if s == nil || s.src == nil {
		return nil, ErrNotConfigured
	}
	stats, err := s.src.Statistics(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("dashboard: statistics: %w", err)
	}
	s.mu.Lock()
	prev := s.last
	s.last = &stats
	s.mu.Unlock()
	return s.kpis(stats, prev), nil
}

func (s *BackendService) kpis(cur content.Statistics, prev *content.Statistics) []KPI {
	var items, cats int
	var perKind []string
	for _, k := range content.Kinds {
		items += cur.Items[k]
		cats += cur.Categories[k]
		perKind = append(perKind, s.printer.Sprintf("%d %s", cur.Items[k], k.Segment()))
	}
	var prevItems int
	var prevViews, prevVisitors int64
	if prev != nil {
		for _, k := range content.Kinds {
			prevItems += prev.Items[k]
		}
		prevViews, prevVisitors = prev.Views, prev.Visitors
	}

	itemsKPI := KPI{ID: "items", Label: "Published items", Value: s.printer.Sprintf("%d", items), DeltaText: strings.Join(perKind, " · "), UpdatedAt: cur.UpdatedAt}
	if prev != nil {
		itemsKPI.Trend = trend(int64(items), int64(prevItems))
	} else {
		itemsKPI.Trend = TrendFlat
	}
	return []KPI{
		itemsKPI,
		{ID: "categories", Label: "Categories", Value: s.printer.Sprintf("%d", cats), Trend: TrendFlat, UpdatedAt: cur.UpdatedAt},
		s.counter("views", "Views", cur.Views, prevViews, prev != nil, cur.UpdatedAt),
		s.counter("visitors", "Visitors", cur.Visitors, prevVisitors, prev != nil, cur.UpdatedAt),
	}
}

func (s *BackendService) counter(id, label string, cur, prev int64, hasPrev bool, at time.Time) KPI {
	k := KPI{ID: id, Label: label, Value: s.printer.Sprintf("%d", cur), Trend: TrendFlat, UpdatedAt: at}
	if hasPrev {
		k.Trend = trend(cur, prev)
		k.DeltaText = s.printer.Sprintf("%+d since last refresh", cur-prev)
	}
	return k
}

func trend(cur, prev int64) Trend {
	switch {
	case cur > prev:
		return TrendUp
	case cur < prev:
		return TrendDown
	default:
		return TrendFlat
	}
}
