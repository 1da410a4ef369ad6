// Package handlers serves the pages and fragments of the public site.
package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/catalog"
	"mediahub.dev/portal/internal/content"
	"mediahub.dev/portal/internal/i18n"
	"mediahub.dev/portal/internal/nav"
	"mediahub.dev/portal/internal/observability"
	"mediahub.dev/portal/internal/seo"
	mw "mediahub.dev/portal/internal/web/middleware"
)

const defaultSiteTTL = 5 * time.Minute

// ContentSource is the part of the backend the pages read outside the category cache.
type ContentSource interface {
	GetItem(ctx context.Context, kind content.Kind, id string) (content.Item, error)
	SiteInfo(ctx context.Context, lang string) (content.SiteInfo, error)
	Search(ctx context.Context, q backend.SearchQuery) (content.Page, error)
	GuidedReading(ctx context.Context, lang string) ([]content.GuidedCard, error)
}

// Deps wires the handlers.
type Deps struct {
	Catalog   *catalog.Service
	Source    ContentSource
	Bundle    *i18n.Bundle
	Templates *Templates
	SiteName  string
	BaseURL   string
	SiteTTL   time.Duration
}

// Handlers holds the page handlers.
type Handlers struct {
	catalog   *catalog.Service
	source    ContentSource
	bundle    *i18n.Bundle
	templates *Templates
	siteName  string
	baseURL   string
	sites     *siteCache
}

// New validates deps and builds the handlers.
func New(deps Deps) (*Handlers, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("handlers: catalog is required")
	case deps.Source == nil:
		return nil, errors.New("handlers: content source is required")
	case deps.Bundle == nil:
		return nil, errors.New("handlers: i18n bundle is required")
	case deps.Templates == nil:
		return nil, errors.New("handlers: templates are required")
	}
	ttl := deps.SiteTTL
	if ttl <= 0 {
		ttl = defaultSiteTTL
	}
	return &Handlers{
		catalog:   deps.Catalog,
		source:    deps.Source,
		bundle:    deps.Bundle,
		templates: deps.Templates,
		siteName:  deps.SiteName,
		baseURL:   strings.TrimRight(deps.BaseURL, "/"),
		sites:     &siteCache{ttl: ttl, entries: map[string]siteEntry{}},
	}, nil
}

// PageData is the view model shared by every page.
type PageData struct {
	Title    string
	Tagline  string
	Lang     string
	Dir      string
	Path     string
	SiteName string
	SEO      Meta

	Nav         []nav.Entry
	Breadcrumbs []nav.Crumb
	Locales     []LocaleLink

	// Alert is an inline error shown above the content.
	Alert    string
	Sections []template.HTML

	Category *CategoryView
	Detail   *DetailView
	Search   *SearchView

	loc i18n.Localizer
}

// T translates key in the page locale.
func (p PageData) T(key string, args ...any) string {
	return p.loc.T(key, args...)
}

// Meta carries head metadata.
type Meta struct {
	Title       string
	Description string
	Canonical   string
	Image       string
	Type        string
	Alternates  []LocaleLink
	JSONLD      []template.JS
}

// LocaleLink points at the current page in another locale.
type LocaleLink struct {
	Lang   string
	Label  string
	Href   string
	Active bool
}

// newPage builds the shared parts of a page. A site info failure is reported inline
// and leaves the menu without categories.
func (h *Handlers) newPage(w http.ResponseWriter, r *http.Request, title string) (PageData, content.SiteInfo) {
	l := mw.LocalizerFrom(r.Context())
	info, err := h.siteInfo(r.Context(), l.Lang)
	p := PageData{
		Title:    title,
		Lang:     l.Lang,
		Dir:      l.Dir(),
		Path:     r.URL.Path,
		SiteName: h.siteName,
		loc:      l,
	}
	if err != nil {
		p.Alert = h.report(w, r, err)
	}
	if info.Name != "" && p.SiteName == "" {
		p.SiteName = info.Name
	}
	entries := nav.MarkActive(nav.Build(l, info), r.URL.Path)
	p.Nav = entries
	p.Breadcrumbs = nav.Breadcrumbs(l, r.URL.Path, entries)
	p.Locales = h.localeLinks(r, l.Lang, false)

	p.SEO = Meta{
		Title:      title + " | " + p.SiteName,
		Canonical:  h.absolute(r.URL.Path),
		Alternates: h.localeLinks(r, l.Lang, true),
	}
	if title == "" {
		p.SEO.Title = p.SiteName
	}
	return p, info
}

func (h *Handlers) localeLinks(r *http.Request, current string, absolute bool) []LocaleLink {
	langs := h.bundle.Supported()
	out := make([]LocaleLink, 0, len(langs))
	for _, lang := range langs {
		q := url.Values{}
		for k, v := range r.URL.Query() {
			q[k] = v
		}
		q.Set("hl", lang)
		href := r.URL.Path + "?" + q.Encode()
		if absolute {
			href = h.absolute(href)
		}
		out = append(out, LocaleLink{
			Lang:   lang,
			Label:  strings.ToUpper(lang),
			Href:   href,
			Active: lang == current,
		})
	}
	return out
}

func (h *Handlers) absolute(p string) string {
	if h.baseURL == "" {
		return p
	}
	return h.baseURL + p
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, page string, data PageData) {
	if len(data.Breadcrumbs) > 1 {
		crumbs := make([]seo.BreadcrumbItem, 0, len(data.Breadcrumbs))
		for _, c := range data.Breadcrumbs {
			crumbs = append(crumbs, seo.BreadcrumbItem{Name: c.Label, Item: h.absolute(c.Href)})
		}
		data.SEO.JSONLD = append(data.SEO.JSONLD, seo.JSON(seo.BreadcrumbList(crumbs)))
	}
	var buf strings.Builder
	if err := h.templates.Render(&buf, page, data); err != nil {
		observability.FromContext(r.Context()).Error("render page", zap.String("page", page), zap.Error(err))
		http.Error(w, data.T("error.generic"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// NotFound renders the localized 404 page.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	l := mw.LocalizerFrom(r.Context())
	p, _ := h.newPage(w, r, l.T("error.not_found"))
	h.render(w, r, http.StatusNotFound, "error", p)
}

type siteEntry struct {
	info    content.SiteInfo
	expires time.Time
}

type siteCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]siteEntry
	refresh singleflight.Group
}

// siteInfo returns the cached site info for lang. Concurrent refreshes of one language
// share a single backend call.
func (h *Handlers) siteInfo(ctx context.Context, lang string) (content.SiteInfo, error) {
	h.sites.mu.Lock()
	e, ok := h.sites.entries[lang]
	h.sites.mu.Unlock()
	if ok && time.Now().Before(e.expires) {
		return e.info, nil
	}
	v, err, _ := h.sites.refresh.Do(lang, func() (any, error) {
		info, err := h.source.SiteInfo(context.WithoutCancel(ctx), lang)
		if err != nil {
			return nil, err
		}
		h.sites.mu.Lock()
		h.sites.entries[lang] = siteEntry{info: info, expires: time.Now().Add(h.sites.ttl)}
		h.sites.mu.Unlock()
		return info, nil
	})
	if err != nil {
		if ok {
			// Serve the stale copy rather than a menu without categories.
			return e.info, nil
		}
		return content.SiteInfo{}, err
	}
	return v.(content.SiteInfo), nil
}

// unknownCategory reports whether the site info loaded and does not list id. When the
// site info is unavailable the category is given the benefit of the doubt.
func (h *Handlers) unknownCategory(ctx context.Context, kind content.Kind, id content.CategoryID) bool {
	info, err := h.siteInfo(ctx, mw.LocalizerFrom(ctx).Lang)
	if err != nil {
		return false
	}
	_, ok := info.FindCategory(kind, id)
	return !ok
}
