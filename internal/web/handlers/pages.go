package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/cards"
	"mediahub.dev/portal/internal/catalog"
	"mediahub.dev/portal/internal/content"
	"mediahub.dev/portal/internal/i18n"
	"mediahub.dev/portal/internal/nav"
	"mediahub.dev/portal/internal/observability"
	"mediahub.dev/portal/internal/richtext"
	"mediahub.dev/portal/internal/section"
	"mediahub.dev/portal/internal/seo"
	mw "mediahub.dev/portal/internal/web/middleware"
)

const (
	// maxPages bounds the ?pages= parameter of category listings.
	maxPages           = 10
	descriptionLimit   = 160
	relatedSectionSize = 4
)

// CategoryView carries listing state for the category template.
type CategoryView struct {
	Kind         content.Kind
	ID           content.CategoryID
	Count        int
	NextPageHref string
}

// DetailView is the single item page.
type DetailView struct {
	Kind      content.Kind
	Title     string
	Summary   string
	Image     string
	StreamURL string
	Body      template.HTML
	Meta      []MetaPair
}

// MetaPair is a label/value line of the detail header.
type MetaPair struct {
	Label string
	Value string
}

// SearchView holds the search form state.
type SearchView struct {
	Query string
	Kind  content.Kind
	Kinds []KindOption
}

// KindOption is an entry of the search type filter.
type KindOption struct {
	Value    string
	Label    string
	Selected bool
}

// Home renders one slider per kind showing the first category of each, fetched
// concurrently through the catalog.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := mw.LocalizerFrom(ctx)
	p, info := h.newPage(w, r, l.T("home.title"))
	p.Tagline = l.T("site.tagline")
	p.SEO.Title = p.SiteName
	p.SEO.Description = firstNonEmpty(info.Description, p.Tagline)
	home := h.absolute("/")
	p.SEO.JSONLD = append(p.SEO.JSONLD,
		seo.JSON(seo.Organization(p.SiteName, home, "")),
		seo.JSON(seo.WebSite(p.SiteName, home, h.absolute("/search?q="))),
	)

	firsts := make(map[content.Kind]content.Category, len(content.Kinds))
	reqs := make([]catalog.Request, 0, len(content.Kinds))
	for _, kind := range content.Kinds {
		cats := info.CategoriesFor(kind)
		if len(cats) == 0 {
			continue
		}
		firsts[kind] = cats[0]
		reqs = append(reqs, catalog.Request{Kind: kind, ID: cats[0].ID})
	}
	results := h.catalog.Warm(ctx, reqs)

	for _, kind := range content.Kinds {
		cat, ok := firsts[kind]
		if !ok {
			continue
		}
		opts := sliderOptions(l, "home-"+string(kind), l.T(kind.LabelKey())+" · "+cat.Name, nav.CategoryHref(kind, cat.ID))
		items := results[content.CacheKey(kind, cat.ID)]
		p.Sections = appendSection(ctx, p.Sections, section.Render(items, cards.ForKind(kind, l), opts))
	}
	h.render(w, r, http.StatusOK, "home", p)
}

// KindIndex renders a slider per category of the kind named by the URL segment.
func (h *Handlers) KindIndex(w http.ResponseWriter, r *http.Request) {
	kind, ok := content.KindFromSegment(chi.URLParam(r, "segment"))
	if !ok {
		h.NotFound(w, r)
		return
	}
	ctx := r.Context()
	l := mw.LocalizerFrom(ctx)
	p, info := h.newPage(w, r, l.T(kind.LabelKey()))

	cats := info.CategoriesFor(kind)
	reqs := make([]catalog.Request, 0, len(cats))
	for _, c := range cats {
		reqs = append(reqs, catalog.Request{Kind: kind, ID: c.ID})
	}
	results := h.catalog.Warm(ctx, reqs)
	for _, c := range cats {
		opts := sliderOptions(l, sectionID(kind, c.ID), c.Name, nav.CategoryHref(kind, c.ID))
		p.Sections = appendSection(ctx, p.Sections, section.Render(results[content.CacheKey(kind, c.ID)], cards.ForKind(kind, l), opts))
	}
	h.render(w, r, http.StatusOK, "kind", p)
}

// Category renders the first page of a category from the catalog cache with a
// load-more trigger. ?pages=N eagerly appends further pages for clients without htmx.
func (h *Handlers) Category(w http.ResponseWriter, r *http.Request) {
	kind, ok := content.KindFromSegment(chi.URLParam(r, "segment"))
	if !ok {
		h.NotFound(w, r)
		return
	}
	id := content.CategoryID(chi.URLParam(r, "id"))
	ctx := r.Context()
	if h.unknownCategory(ctx, kind, id) {
		h.NotFound(w, r)
		return
	}
	l := mw.LocalizerFrom(ctx)
	p, info := h.newPage(w, r, l.T(kind.LabelKey()))
	cat, known := info.FindCategory(kind, id)
	if known {
		p.Title = cat.Name
		p.SEO.Title = cat.Name + " | " + p.SiteName
	}

	items, err := h.catalog.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			h.NotFound(w, r)
			return
		}
		p.Alert = h.report(w, r, err)
	}

	feed := section.NewFeed(items, h.catalog.PageSize())
	fetch := func(ctx context.Context, offset, _ int) ([]content.Item, error) {
		page, err := h.catalog.FetchPage(ctx, kind, id, offset)
		return page.Results, err
	}
	for i := 1; i < pagesParam(r); i++ {
		more, err := feed.LoadMore(ctx, fetch)
		if err != nil {
			p.Alert = h.report(w, r, err)
			break
		}
		if len(more) == 0 {
			break
		}
	}
	pager := feed.Pager()
	loaded := feed.Items()

	p.Category = &CategoryView{Kind: kind, ID: id, Count: cat.ContentCount}
	if pager.HasMore {
		p.Category.NextPageHref = r.URL.Path + "?pages=" + strconv.Itoa(pager.Offset/pager.PageSize+1)
	}
	opts := categoryOptions(l, kind, id, p.Title, r.URL.Path, pager)
	p.Sections = appendSection(ctx, p.Sections, section.Render(loaded, cards.ForKind(kind, l), opts))
	h.render(w, r, http.StatusOK, "category", p)
}

// CategoryMore serves the htmx fragment appending the page at ?offset=N to a category
// grid, together with the refreshed load-more trigger.
func (h *Handlers) CategoryMore(w http.ResponseWriter, r *http.Request) {
	kind, ok := content.KindFromSegment(chi.URLParam(r, "segment"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := content.CategoryID(chi.URLParam(r, "id"))
	ctx := r.Context()
	if h.unknownCategory(ctx, kind, id) {
		http.NotFound(w, r)
		return
	}
	l := mw.LocalizerFrom(ctx)
	offset := intParam(r, "offset")

	pager := section.NewPager(h.catalog.PageSize())
	pager.Offset = offset
	page, err := h.catalog.FetchPage(ctx, kind, id, offset)
	if err != nil {
		h.report(w, r, err)
	} else {
		pager.Advance(len(page.Results))
	}
	base := strings.TrimSuffix(r.URL.Path, "/more")
	opts := categoryOptions(l, kind, id, "", base, pager)
	templ.Handler(section.Page(page.Results, cards.ForKind(kind, l), opts)).ServeHTTP(w, r)
}

// Detail renders a single item with its sanitised body and structured data.
func (h *Handlers) Detail(w http.ResponseWriter, r *http.Request) {
	kind, ok := content.KindFromSegment(chi.URLParam(r, "segment"))
	if !ok {
		h.NotFound(w, r)
		return
	}
	ctx := r.Context()
	l := mw.LocalizerFrom(ctx)
	item, err := h.source.GetItem(ctx, kind, chi.URLParam(r, "id"))
	if errors.Is(err, backend.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	p, info := h.newPage(w, r, item.Title)
	if err != nil {
		p.Title = l.T("error.title")
		p.SEO.Title = p.Title + " | " + p.SiteName
		p.Alert = h.report(w, r, err)
		h.render(w, r, http.StatusOK, "error", p)
		return
	}
	if item.Kind == "" {
		item.Kind = kind
	}

	body := richtext.Render(item.Body, item.BodyFormat)
	p.SEO.Description = firstNonEmpty(item.Summary, richtext.Excerpt(string(body), descriptionLimit))
	p.SEO.Image = item.Image
	p.SEO.Type = "article"
	p.Detail = &DetailView{
		Kind:    kind,
		Title:   item.Title,
		Summary: item.Summary,
		Image:   item.Image,
		Body:    body,
		Meta:    detailMeta(l, item),
	}
	canonical := p.SEO.Canonical
	switch kind {
	case content.KindVideo:
		p.SEO.Type = "video.other"
		var stream string
		duration := 0
		if v := item.Video; v != nil {
			stream, duration = v.StreamURL, v.Duration
		}
		p.Detail.StreamURL = stream
		p.SEO.JSONLD = append(p.SEO.JSONLD, seo.JSON(seo.VideoObject(item.Title, p.SEO.Description, canonical, item.Image, stream, duration, item.PublishedAt)))
	case content.KindEvent:
		var (
			loc        string
			start, end time.Time
		)
		if e := item.Event; e != nil {
			loc, start, end = e.Location, e.StartsAt, e.EndsAt
		}
		p.SEO.JSONLD = append(p.SEO.JSONLD, seo.JSON(seo.Event(item.Title, p.SEO.Description, canonical, item.Image, loc, start, end)))
	default:
		author := ""
		if item.Article != nil {
			author = item.Article.Author
		} else if item.Post != nil {
			author = item.Post.Author
		}
		p.SEO.JSONLD = append(p.SEO.JSONLD, seo.JSON(seo.Article(item.Title, p.SEO.Description, canonical, item.Image, author, item.PublishedAt, p.Lang)))
	}

	p.Breadcrumbs = detailCrumbs(p.Breadcrumbs, info, item)

	if item.CategoryID != "" {
		if related, ok := h.catalog.Lookup(kind, item.CategoryID); ok {
			related = withoutItem(related, item.ID)
			if len(related) > relatedSectionSize {
				related = related[:relatedSectionSize]
			}
			title := ""
			if cat, ok := info.FindCategory(kind, item.CategoryID); ok {
				title = cat.Name
			}
			opts := sliderOptions(l, "related", title, nav.CategoryHref(kind, item.CategoryID))
			p.Sections = appendSection(ctx, p.Sections, section.Render(related, cards.ForKind(kind, l), opts))
		}
	}
	h.render(w, r, http.StatusOK, "detail", p)
}

// Search renders results for ?q= filtered by ?type=, with an explicit empty state.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := mw.LocalizerFrom(ctx)
	p, _ := h.newPage(w, r, l.T("search.title"))
	q, kind := searchParams(r)
	p.Search = &SearchView{Query: q, Kind: kind, Kinds: kindOptions(l, kind)}
	if q == "" {
		h.render(w, r, http.StatusOK, "search", p)
		return
	}
	p.SEO.Title = q + " | " + l.T("search.title") + " | " + p.SiteName

	page, err := h.source.Search(ctx, backend.SearchQuery{Text: q, Kind: kind, Lang: p.Lang, Limit: h.catalog.PageSize()})
	if err != nil {
		p.Alert = h.report(w, r, err)
	}
	pager := section.NewPager(h.catalog.PageSize())
	pager.Advance(len(page.Results))
	opts := searchOptions(l, q, kind, pager)
	p.Sections = appendSection(ctx, p.Sections, section.Render(page.Results, cards.Mixed(l), opts))
	h.render(w, r, http.StatusOK, "search", p)
}

// SearchMore serves the next page of search results as an htmx fragment.
func (h *Handlers) SearchMore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := mw.LocalizerFrom(ctx)
	q, kind := searchParams(r)
	offset := intParam(r, "offset")
	pager := section.NewPager(h.catalog.PageSize())
	pager.Offset = offset

	page, err := h.source.Search(ctx, backend.SearchQuery{Text: q, Kind: kind, Lang: l.Lang, Limit: pager.PageSize, Offset: offset})
	if err != nil {
		h.report(w, r, err)
	} else {
		pager.Advance(len(page.Results))
	}
	templ.Handler(section.Page(page.Results, cards.Mixed(l), searchOptions(l, q, kind, pager))).ServeHTTP(w, r)
}

// Guided renders the guided-reading cards as a slider.
func (h *Handlers) Guided(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := mw.LocalizerFrom(ctx)
	p, _ := h.newPage(w, r, l.T("guided.title"))
	steps, err := h.source.GuidedReading(ctx, p.Lang)
	if err != nil {
		p.Alert = h.report(w, r, err)
	}
	opts := sliderOptions(l, "guided", "", "")
	opts.EmptyText = l.T("guided.empty")
	opts.MaxPerRow = 1
	p.Sections = appendSection(ctx, p.Sections, section.Render(steps, cards.Guided(l), opts))
	h.render(w, r, http.StatusOK, "guided", p)
}

func sliderOptions(l i18n.Localizer, id, title, href string) section.Options {
	return section.Options{
		ID:        id,
		Title:     title,
		Href:      href,
		Mode:      section.Slider,
		Dir:       l.Dir(),
		PrevLabel: l.T("section.prev"),
		NextLabel: l.T("section.next"),
	}
}

func categoryOptions(l i18n.Localizer, kind content.Kind, id content.CategoryID, title, basePath string, pager section.Pager) section.Options {
	return section.Options{
		ID:        sectionID(kind, id),
		Title:     title,
		Mode:      section.Grid,
		Dir:       l.Dir(),
		EmptyText: l.T("category.empty"),
		LoadMore: &section.LoadMore{
			URL:     basePath + "/more",
			Offset:  pager.Offset,
			HasMore: pager.HasMore,
			Label:   l.T("section.more"),
		},
	}
}

func searchOptions(l i18n.Localizer, q string, kind content.Kind, pager section.Pager) section.Options {
	v := url.Values{}
	v.Set("q", q)
	if kind != "" {
		v.Set("type", string(kind))
	}
	return section.Options{
		ID:        "search-results",
		Mode:      section.Grid,
		Dir:       l.Dir(),
		EmptyText: l.T("search.no_results", q),
		LoadMore: &section.LoadMore{
			URL:     "/search/more?" + v.Encode(),
			Offset:  pager.Offset,
			HasMore: pager.HasMore,
			Label:   l.T("section.more"),
		},
	}
}

func sectionID(kind content.Kind, id content.CategoryID) string {
	return "category-" + content.CacheKey(kind, id)
}

// appendSection renders c to HTML for the page layout. Render failures drop the section.
func appendSection(ctx context.Context, sections []template.HTML, c templ.Component) []template.HTML {
	html, err := templ.ToGoHTML(ctx, c)
	if err != nil {
		observability.FromContext(ctx).Warn("render section", zap.Error(err))
		return sections
	}
	if html == "" {
		return sections
	}
	return append(sections, html)
}

func detailMeta(l i18n.Localizer, it content.Item) []MetaPair {
	var out []MetaPair
	if !it.PublishedAt.IsZero() {
		out = append(out, MetaPair{Label: l.T("detail.published"), Value: cards.Date(it.PublishedAt)})
	}
	switch {
	case it.Article != nil:
		if it.Article.Author != "" {
			out = append(out, MetaPair{Value: l.T("detail.by", it.Article.Author)})
		}
		if it.Article.ReadingMinutes > 0 {
			out = append(out, MetaPair{Value: l.T("detail.minutes", it.Article.ReadingMinutes)})
		}
	case it.Video != nil:
		if d := cards.Duration(it.Video.Duration); d != "" {
			out = append(out, MetaPair{Label: l.T("detail.duration"), Value: d})
		}
	case it.Post != nil:
		if it.Post.Author != "" {
			out = append(out, MetaPair{Value: l.T("detail.by", it.Post.Author)})
		}
	case it.Event != nil:
		if !it.Event.StartsAt.IsZero() {
			out = append(out, MetaPair{Label: l.T("detail.starts"), Value: it.Event.StartsAt.UTC().Format("2006-01-02 15:04")})
		}
		if !it.Event.EndsAt.IsZero() {
			out = append(out, MetaPair{Label: l.T("detail.ends"), Value: it.Event.EndsAt.UTC().Format("2006-01-02 15:04")})
		}
		if it.Event.Location != "" {
			out = append(out, MetaPair{Label: l.T("detail.location"), Value: it.Event.Location})
		}
	}
	return out
}

// detailCrumbs names the last crumb after the item and inserts its category.
func detailCrumbs(crumbs []nav.Crumb, info content.SiteInfo, it content.Item) []nav.Crumb {
	if len(crumbs) == 0 {
		return crumbs
	}
	out := append([]nav.Crumb(nil), crumbs[:len(crumbs)-1]...)
	if cat, ok := info.FindCategory(it.Kind, it.CategoryID); ok {
		out = append(out, nav.Crumb{Href: nav.CategoryHref(it.Kind, cat.ID), Label: cat.Name})
	}
	last := crumbs[len(crumbs)-1]
	last.Label = it.Title
	return append(out, last)
}

func withoutItem(items []content.Item, id string) []content.Item {
	out := make([]content.Item, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

func kindOptions(l i18n.Localizer, selected content.Kind) []KindOption {
	out := []KindOption{{Value: "", Label: l.T("search.all"), Selected: selected == ""}}
	for _, k := range content.Kinds {
		out = append(out, KindOption{Value: string(k), Label: l.T(k.LabelKey()), Selected: k == selected})
	}
	return out
}

func searchParams(r *http.Request) (string, content.Kind) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	kind, err := content.ParseKind(r.URL.Query().Get("type"))
	if err != nil {
		kind = ""
	}
	return q, kind
}

func pagesParam(r *http.Request) int {
	n := intParam(r, "pages")
	switch {
	case n < 1:
		return 1
	case n > maxPages:
		return maxPages
	}
	return n
}

func intParam(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
