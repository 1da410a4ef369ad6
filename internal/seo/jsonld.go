package seo

import (
	"encoding/json"
	"fmt"
	"html/template"
	"time"
)

const schemaContext = "https://schema.org"

// JSON marshals v for a JSON-LD script tag. It returns "" on error.
func JSON(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return template.JS(b)
}

// Organization returns a minimal Organization schema.
func Organization(name, url, logoURL string) map[string]any {
	m := map[string]any{
		"@context": schemaContext,
		"@type":    "Organization",
		"name":     name,
	}
	setIf(m, "url", url)
	setIf(m, "logo", logoURL)
	return m
}

// WebSite returns a WebSite schema with a SearchAction pointing at searchURL.
func WebSite(name, url, searchURL string) map[string]any {
	m := map[string]any{
		"@context": schemaContext,
		"@type":    "WebSite",
		"name":     name,
	}
	setIf(m, "url", url)
	if searchURL != "" {
		m["potentialAction"] = map[string]any{
			"@type":       "SearchAction",
			"target":      searchURL + "{search_term_string}",
			"query-input": "required name=search_term_string",
		}
	}
	return m
}

// BreadcrumbItem maps a name to an absolute URL.
type BreadcrumbItem struct {
	Name string
	Item string
}

// BreadcrumbList builds a schema.org BreadcrumbList.
func BreadcrumbList(items []BreadcrumbItem) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     it.Name,
			"item":     it.Item,
		})
	}
	return map[string]any{
		"@context":        schemaContext,
		"@type":           "BreadcrumbList",
		"itemListElement": el,
	}
}

// Article describes long-form and short-form text.
func Article(headline, description, url, imageURL, author string, published time.Time, lang string) map[string]any {
	m := map[string]any{
		"@context": schemaContext,
		"@type":    "Article",
		"headline": headline,
	}
	setIf(m, "description", description)
	setIf(m, "url", url)
	setIf(m, "image", imageURL)
	setIf(m, "inLanguage", lang)
	if author != "" {
		m["author"] = map[string]any{"@type": "Person", "name": author}
	}
	setTime(m, "datePublished", published)
	return m
}

// VideoObject describes a video.
func VideoObject(name, description, url, thumbnail, contentURL string, durationSeconds int, uploaded time.Time) map[string]any {
	m := map[string]any{
		"@context": schemaContext,
		"@type":    "VideoObject",
		"name":     name,
	}
	setIf(m, "description", description)
	setIf(m, "url", url)
	setIf(m, "thumbnailUrl", thumbnail)
	setIf(m, "contentUrl", contentURL)
	if durationSeconds > 0 {
		m["duration"] = ISODuration(durationSeconds)
	}
	setTime(m, "uploadDate", uploaded)
	return m
}

// Event describes a scheduled event.
func Event(name, description, url, imageURL, location string, start, end time.Time) map[string]any {
	m := map[string]any{
		"@context": schemaContext,
		"@type":    "Event",
		"name":     name,
	}
	setIf(m, "description", description)
	setIf(m, "url", url)
	setIf(m, "image", imageURL)
	setTime(m, "startDate", start)
	setTime(m, "endDate", end)
	if location != "" {
		m["location"] = map[string]any{"@type": "Place", "name": location}
	}
	return m
}

// ISODuration formats seconds as an ISO 8601 duration, e.g. PT1H2M3S.
func ISODuration(seconds int) string {
	if seconds <= 0 {
		return "PT0S"
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	out := "PT"
	if h > 0 {
		out += fmt.Sprintf("%dH", h)
	}
	if m > 0 {
		out += fmt.Sprintf("%dM", m)
	}
	if s > 0 || out == "PT" {
		out += fmt.Sprintf("%dS", s)
	}
	return out
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func setTime(m map[string]any, key string, t time.Time) {
	if !t.IsZero() {
		m[key] = t.UTC().Format(time.RFC3339)
	}
}
