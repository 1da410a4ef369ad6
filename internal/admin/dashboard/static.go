package dashboard

import (
	"context"
	"time"
)

// StaticService returns fixed KPIs.
type StaticService struct {
	KPIs []KPI
	Err  error
}

// NewStaticService returns sample KPIs for local work.
func NewStaticService() *StaticService {
	now := time.Now().UTC()
	return &StaticService{KPIs: []KPI{
		{ID: "items", Label: "Published items", Value: "42", DeltaText: "12 articles · 10 videos · 12 posts · 8 events", Trend: TrendFlat, UpdatedAt: now},
		{ID: "categories", Label: "Categories", Value: "11", Trend: TrendFlat, UpdatedAt: now},
		{ID: "views", Label: "Views", Value: "18,240", DeltaText: "+1,120 since last refresh", Trend: TrendUp, UpdatedAt: now},
		{ID: "visitors", Label: "Visitors", Value: "3,905", DeltaText: "-42 since last refresh", Trend: TrendDown, UpdatedAt: now},
	}}
}

// FetchKPIs implements Service.
func (s *StaticService) FetchKPIs(context.Context, string) ([]KPI, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]KPI(nil), s.KPIs...), nil
}
