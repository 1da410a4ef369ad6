package content

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PageSize is the fixed number of items requested per category page.
const PageSize = 8

// ErrUnknownKind is returned when a content type outside the supported set is requested.
var ErrUnknownKind = errors.New("content: unknown kind")

// Kind enumerates the content variants served by the backend.
type Kind string

const (
	KindContent Kind = "content"
	KindVideo   Kind = "video"
	KindPost    Kind = "post"
	KindEvent   Kind = "event"
)

// Kinds lists every supported kind in navigation order.
var Kinds = []Kind{KindContent, KindVideo, KindPost, KindEvent}

// ParseKind normalises raw input into a Kind.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	return k, nil
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindContent, KindVideo, KindPost, KindEvent:
		return true
	default:
		return false
	}
}

// Segment returns the URL path segment used for the kind, e.g. "videos".
func (k Kind) Segment() string {
	switch k {
	case KindContent:
		return "articles"
	case KindVideo:
		return "videos"
	case KindPost:
		return "posts"
	case KindEvent:
		return "events"
	default:
		return ""
	}
}

// LabelKey returns the i18n key naming the kind's section.
func (k Kind) LabelKey() string {
	if !k.Valid() {
		return ""
	}
	return "nav." + k.Segment()
}

// KindFromSegment reverses Segment.
func KindFromSegment(seg string) (Kind, bool) {
	seg = strings.ToLower(strings.TrimSpace(seg))
	for _, k := range Kinds {
		if k.Segment() == seg {
			return k, true
		}
	}
	return "", false
}

// CategoryID is an opaque backend identifier.
type CategoryID string

// CacheKey identifies a (kind, category) pair, e.g. "video-42".
func CacheKey(kind Kind, id CategoryID) string {
	return string(kind) + "-" + string(id)
}

// Category is a named grouping of items of one kind.
type Category struct {
	ID           CategoryID `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	ContentCount int        `json:"content_count" yaml:"content_count"`
}

// Item is a single piece of published content. Exactly one of the variant blocks is
// populated, matching Kind.
type Item struct {
	ID          string     `json:"id" yaml:"id"`
	Kind        Kind       `json:"kind" yaml:"kind"`
	Title       string     `json:"title" yaml:"title"`
	Image       string     `json:"image" yaml:"image"`
	URL         string     `json:"url,omitempty" yaml:"url"`
	Summary     string     `json:"summary,omitempty" yaml:"summary"`
	Body        string     `json:"body,omitempty" yaml:"body"`
	BodyFormat  string     `json:"body_format,omitempty" yaml:"body_format"`
	CategoryID  CategoryID `json:"category_id,omitempty" yaml:"category_id"`
	PublishedAt time.Time  `json:"published_at,omitempty" yaml:"published_at"`

	Article *ArticleDetails `json:"article,omitempty" yaml:"article"`
	Video   *VideoDetails   `json:"video,omitempty" yaml:"video"`
	Post    *PostDetails    `json:"post,omitempty" yaml:"post"`
	Event   *EventDetails   `json:"event,omitempty" yaml:"event"`
}

// ArticleDetails holds fields specific to long-form content.
type ArticleDetails struct {
	Author         string `json:"author,omitempty" yaml:"author"`
	ReadingMinutes int    `json:"reading_minutes,omitempty" yaml:"reading_minutes"`
}

// VideoDetails holds playback metadata.
type VideoDetails struct {
	StreamURL string `json:"stream_url,omitempty" yaml:"stream_url"`
	Duration  int    `json:"duration,omitempty" yaml:"duration"` // seconds
}

// PostDetails holds short-form post metadata.
type PostDetails struct {
	Author string `json:"author,omitempty" yaml:"author"`
}

// EventDetails holds scheduling metadata.
type EventDetails struct {
	StartsAt time.Time `json:"starts_at,omitempty" yaml:"starts_at"`
	EndsAt   time.Time `json:"ends_at,omitempty" yaml:"ends_at"`
	Location string    `json:"location,omitempty" yaml:"location"`
}

// Href returns the site-relative detail URL of the item.
func (it Item) Href() string {
	seg := it.Kind.Segment()
	if seg == "" || it.ID == "" {
		return ""
	}
	return "/" + seg + "/" + it.ID
}

// Page is one page of results as returned by the backend.
type Page struct {
	Results []Item `json:"results"`
	Count   int    `json:"count,omitempty"`
}

// SiteInfo describes the site and the categories available per kind.
type SiteInfo struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description" yaml:"description"`
	Categories  map[Kind][]Category `json:"categories" yaml:"categories"`
}

// CategoriesFor returns the categories of kind in server order.
func (s SiteInfo) CategoriesFor(kind Kind) []Category {
	if s.Categories == nil {
		return nil
	}
	return s.Categories[kind]
}

// FindCategory locates a category of the given kind by id.
func (s SiteInfo) FindCategory(kind Kind, id CategoryID) (Category, bool) {
	for _, c := range s.CategoriesFor(kind) {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// GuidedCard is a single step of a guided-reading sequence.
type GuidedCard struct {
	ID      string `json:"id" yaml:"id"`
	Step    int    `json:"step" yaml:"step"`
	Title   string `json:"title" yaml:"title"`
	Caption string `json:"caption" yaml:"caption"`
	Photo   string `json:"photo" yaml:"photo"`
}

// Statistics summarises backend content volumes for the admin dashboard.
type Statistics struct {
	Items      map[Kind]int `json:"items"`
	Categories map[Kind]int `json:"categories"`
	Views      int64        `json:"views"`
	Visitors   int64        `json:"visitors"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// CloneItems returns a shallow copy of items so callers cannot mutate shared slices.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
