// Package forms parses and validates the admin new-item form.
package forms

import (
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/content"
	"mediahub.dev/portal/internal/richtext"
)

const (
	maxTitle    = 160
	maxSummary  = 400
	maxLocation = 120
)

// Field names as they appear in the form.
const (
	FieldKind       = "kind"
	FieldTitle      = "title"
	FieldSummary    = "summary"
	FieldBody       = "body"
	FieldBodyFormat = "body_format"
	FieldImage      = "image"
	FieldCategory   = "category_id"
	FieldStreamURL  = "stream_url"
	FieldStartsAt   = "starts_at"
	FieldEndsAt     = "ends_at"
	FieldLocation   = "location"
	FieldKey        = "idempotency_key"
)

const dateTimeLocal = "2006-01-02T15:04"

// ValidationError lists problems keyed by field name.
type ValidationError struct {
	Message     string
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || strings.TrimSpace(e.Message) == "" {
		return "invalid item"
	}
	return e.Message
}

// Item holds raw form input. Values are trimmed but otherwise untouched so the form
// can be re-rendered as submitted.
type Item struct {
	Kind       string
	Title      string
	Summary    string
	Body       string
	BodyFormat string
	Image      string
	CategoryID string
	StreamURL  string
	StartsAt   string
	EndsAt     string
	Location   string
	Key        string
}

// ParseItem reads an Item from submitted form values.
func ParseItem(v url.Values) Item {
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }
	return Item{
		Kind:       strings.ToLower(get(FieldKind)),
		Title:      get(FieldTitle),
		Summary:    get(FieldSummary),
		Body:       v.Get(FieldBody),
		BodyFormat: strings.ToLower(get(FieldBodyFormat)),
		Image:      get(FieldImage),
		CategoryID: get(FieldCategory),
		StreamURL:  get(FieldStreamURL),
		StartsAt:   get(FieldStartsAt),
		EndsAt:     get(FieldEndsAt),
		Location:   get(FieldLocation),
		Key:        get(FieldKey),
	}
}

// Draft validates the form against site's categories and converts it. A nil error
// means every field passed.
func (f Item) Draft(site content.SiteInfo) (backend.Draft, error) {
	errs := map[string]string{}
	d := backend.Draft{
		Title:      f.Title,
		Summary:    f.Summary,
		Body:       f.Body,
		BodyFormat: f.BodyFormat,
		Image:      f.Image,
		CategoryID: content.CategoryID(f.CategoryID),
		Location:   f.Location,
	}

	kind, err := content.ParseKind(f.Kind)
	if err != nil {
		errs[FieldKind] = "Choose a content type."
	}
	d.Kind = kind

	Required(errs, FieldTitle, f.Title)
	MaxLength(errs, FieldTitle, f.Title, maxTitle)
	MaxLength(errs, FieldSummary, f.Summary, maxSummary)
	MaxLength(errs, FieldLocation, f.Location, maxLocation)
	URL(errs, FieldImage, f.Image)

	switch f.BodyFormat {
	case "":
		d.BodyFormat = richtext.FormatMarkdown
	case richtext.FormatMarkdown, richtext.FormatHTML:
	default:
		errs[FieldBodyFormat] = "Body format must be markdown or html."
	}

	if kind.Valid() && Required(errs, FieldCategory, f.CategoryID) {
		Category(errs, FieldCategory, site, kind, d.CategoryID)
	}

	switch kind {
	case content.KindVideo:
		if Required(errs, FieldStreamURL, f.StreamURL) {
			URL(errs, FieldStreamURL, f.StreamURL)
		}
		d.StreamURL = f.StreamURL
	case content.KindEvent:
		if Required(errs, FieldStartsAt, f.StartsAt) {
			if start, ok := Time(errs, FieldStartsAt, f.StartsAt); ok {
				d.StartsAt = &start
			}
		}
		if f.EndsAt != "" {
			if end, ok := Time(errs, FieldEndsAt, f.EndsAt); ok {
				d.EndsAt = &end
			}
		}
		if d.StartsAt != nil && d.EndsAt != nil && !d.EndsAt.After(*d.StartsAt) {
			errs[FieldEndsAt] = "End must be after start."
		}
	}

	if len(errs) > 0 {
		return backend.Draft{}, &ValidationError{Message: "Please fix the highlighted fields.", FieldErrors: errs}
	}
	return d, nil
}

// Required records an error when value is blank and reports whether it was present.
func Required(errs map[string]string, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		errs[field] = "This field is required."
		return false
	}
	return true
}

// MaxLength records an error when value exceeds max runes.
func MaxLength(errs map[string]string, field, value string, max int) {
	if _, set := errs[field]; set {
		return
	}
	if utf8.RuneCountInString(value) > max {
		errs[field] = "Keep this under " + strconv.Itoa(max) + " characters."
	}
}

// URL accepts empty values or absolute http(s) URLs.
func URL(errs map[string]string, field, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs[field] = "Enter a full http or https URL."
	}
}

// Category records an error unless id names a category of kind in site.
func Category(errs map[string]string, field string, site content.SiteInfo, kind content.Kind, id content.CategoryID) {
	for _, c := range site.CategoriesFor(kind) {
		if c.ID == id {
			return
		}
	}
	errs[field] = "Pick a category for this content type."
}

// Time parses RFC 3339 or datetime-local input; the latter is read as UTC.
func Time(errs map[string]string, field, value string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.ParseInLocation(dateTimeLocal, value, time.UTC); err == nil {
		return t, true
	}
	errs[field] = "Use a date and time like 2024-05-01T18:30."
	return time.Time{}, false
}
