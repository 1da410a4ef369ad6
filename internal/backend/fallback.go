package backend

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"mediahub.dev/portal/internal/content"
)

//go:embed fallback.yaml
var fallbackYAML []byte

// Dataset is an in-process stand-in for the backend, used when no base URL is configured.
type Dataset struct {
	mu     sync.RWMutex
	site   content.SiteInfo
	items  []content.Item
	guided []content.GuidedCard
	seq    int
}

type datasetFile struct {
	Site struct {
		Name        string                        `yaml:"name"`
		Description string                        `yaml:"description"`
		Categories  map[string][]content.Category `yaml:"categories"`
	} `yaml:"site"`
	Items  []content.Item       `yaml:"items"`
	Guided []content.GuidedCard `yaml:"guided"`
}

var (
	defaultDatasetOnce sync.Once
	defaultDataset     *Dataset
)

// DefaultDataset returns the dataset embedded in the binary.
func DefaultDataset() *Dataset {
	defaultDatasetOnce.Do(func() {
		ds, err := ParseDataset(fallbackYAML)
		if err != nil {
			panic(fmt.Sprintf("backend: embedded fallback dataset: %v", err))
		}
		defaultDataset = ds
	})
	return defaultDataset
}

// ParseDataset decodes a YAML dataset.
func ParseDataset(data []byte) (*Dataset, error) {
	var file datasetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("backend: parse dataset: %w", err)
	}
	ds := &Dataset{
		site: content.SiteInfo{
			Name:        strings.TrimSpace(file.Site.Name),
			Description: strings.TrimSpace(file.Site.Description),
			Categories:  map[content.Kind][]content.Category{},
		},
		guided: file.Guided,
	}
	for raw, cats := range file.Site.Categories {
		kind, err := content.ParseKind(raw)
		if err != nil {
			return nil, fmt.Errorf("backend: dataset categories: %w", err)
		}
		ds.site.Categories[kind] = cats
	}
	for _, it := range file.Items {
		if !it.Kind.Valid() {
			return nil, fmt.Errorf("backend: dataset item %q: %w", it.ID, content.ErrUnknownKind)
		}
		ds.items = append(ds.items, it)
	}
	sort.SliceStable(ds.guided, func(i, j int) bool { return ds.guided[i].Step < ds.guided[j].Step })
	ds.recount()
	return ds, nil
}

func (d *Dataset) recount() {
	counts := map[string]int{}
	for _, it := range d.items {
		counts[content.CacheKey(it.Kind, it.CategoryID)]++
	}
	for kind, cats := range d.site.Categories {
		for i := range cats {
			cats[i].ContentCount = counts[content.CacheKey(kind, cats[i].ID)]
		}
	}
}

// SiteInfo returns a copy of the site description.
func (d *Dataset) SiteInfo() content.SiteInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := content.SiteInfo{
		Name:        d.site.Name,
		Description: d.site.Description,
		Categories:  make(map[content.Kind][]content.Category, len(d.site.Categories)),
	}
	for k, cats := range d.site.Categories {
		out.Categories[k] = append([]content.Category(nil), cats...)
	}
	return out
}

// ByCategory pages through the items of one category.
func (d *Dataset) ByCategory(kind content.Kind, id content.CategoryID, limit, offset int) content.Page {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var matched []content.Item
	for _, it := range d.items {
		if it.Kind == kind && it.CategoryID == id {
			matched = append(matched, it)
		}
	}
	return paginate(matched, limit, offset)
}

// Item looks up one item.
func (d *Dataset) Item(kind content.Kind, id string) (content.Item, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, it := range d.items {
		if it.Kind == kind && it.ID == id {
			return it, true
		}
	}
	return content.Item{}, false
}

// Search matches titles and summaries case-insensitively.
func (d *Dataset) Search(q SearchQuery) content.Page {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	d.mu.RLock()
	defer d.mu.RUnlock()
	var matched []content.Item
	for _, it := range d.items {
		if q.Kind != "" && it.Kind != q.Kind {
			continue
		}
		if strings.Contains(strings.ToLower(it.Title), needle) || strings.Contains(strings.ToLower(it.Summary), needle) {
			matched = append(matched, it)
		}
	}
	return paginate(matched, q.Limit, q.Offset)
}

// Guided returns the guided-reading cards.
func (d *Dataset) Guided() []content.GuidedCard {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]content.GuidedCard{}, d.guided...)
}

// Statistics summarises the dataset.
func (d *Dataset) Statistics() content.Statistics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stats := content.Statistics{
		Items:      map[content.Kind]int{},
		Categories: map[content.Kind]int{},
		UpdatedAt:  time.Now().UTC(),
	}
	for _, it := range d.items {
		stats.Items[it.Kind]++
	}
	for k, cats := range d.site.Categories {
		stats.Categories[k] = len(cats)
	}
	return stats
}

// Create appends a draft to the dataset.
func (d *Dataset) Create(dr Draft) content.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	it := content.Item{
		ID:          fmt.Sprintf("local-%d", d.seq),
		Kind:        dr.Kind,
		Title:       dr.Title,
		Image:       dr.Image,
		Summary:     dr.Summary,
		Body:        dr.Body,
		BodyFormat:  dr.BodyFormat,
		CategoryID:  dr.CategoryID,
		PublishedAt: time.Now().UTC(),
	}
	switch dr.Kind {
	case content.KindVideo:
		it.Video = &content.VideoDetails{StreamURL: dr.StreamURL}
	case content.KindEvent:
		ev := &content.EventDetails{Location: dr.Location}
		if dr.StartsAt != nil {
			ev.StartsAt = *dr.StartsAt
		}
		if dr.EndsAt != nil {
			ev.EndsAt = *dr.EndsAt
		}
		it.Event = ev
	}
	d.items = append(d.items, it)
	d.recount()
	return it
}

func paginate(items []content.Item, limit, offset int) content.Page {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return content.Page{Results: []content.Item{}, Count: total}
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return content.Page{Results: content.CloneItems(items[offset:end]), Count: total}
}
