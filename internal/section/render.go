package section

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"mediahub.dev/portal/internal/observability"
)

// Renderer turns one item into markup.
type Renderer[T any] func(T) templ.Component

// Mode selects the section layout.
type Mode int

const (
	Grid Mode = iota
	Slider
)

func (m Mode) String() string {
	if m == Slider {
		return "slider"
	}
	return "grid"
}

// LoadMore describes the pagination trigger of a section.
type LoadMore struct {
	// URL is the fragment endpoint; the offset query parameter is set on render.
	URL     string
	Offset  int
	HasMore bool
	Loading bool
	Label   string
}

// Options configures a section.
type Options struct {
	ID        string
	Title     string
	Href      string
	Mode      Mode
	Dir       string
	MaxPerRow int
	LoadMore  *LoadMore
	// EmptyText renders an explicit no-results state instead of nothing.
	EmptyText string
	PrevLabel string
	NextLabel string
}

func (o Options) rtl() bool {
	return strings.EqualFold(o.Dir, "rtl")
}

func (o Options) trackID() string {
	return o.ID + "-track"
}

func (o Options) moreID() string {
	return o.ID + "-more"
}

// Render lays out items with render. Empty input renders nothing unless EmptyText is set.
func Render[T any](items []T, render Renderer[T], opts Options) templ.Component {
	if render == nil {
		return nilRenderer(opts.ID)
	}
	if len(items) == 0 {
		if opts.EmptyText == "" {
			return templ.NopComponent
		}
		return emptyState(opts)
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &builder{w: w}
		b.raw(`<section class="section section--` + opts.Mode.String() + `"`)
		if opts.ID != "" {
			b.attr("id", opts.ID)
		}
		if opts.rtl() {
			b.attr("dir", "rtl")
		}
		b.attr("data-mode", opts.Mode.String())
		b.raw(">")

		if opts.Title != "" || opts.Mode == Slider {
			b.raw(`<header class="section__header flex items-center justify-between">`)
			if opts.Title != "" {
				b.raw(`<h2 class="section__title">`)
				if opts.Href != "" {
					b.raw(`<a`)
					b.attr("href", opts.Href)
					b.raw(">" + templ.EscapeString(opts.Title) + "</a>")
				} else {
					b.raw(templ.EscapeString(opts.Title))
				}
				b.raw(`</h2>`)
			}
			if opts.Mode == Slider {
				writeControls(b, opts)
			}
			b.raw(`</header>`)
		}

		trackClass := "section__track flex flex-wrap gap-4"
		if opts.Mode == Slider {
			trackClass = "section__track flex flex-nowrap overflow-x-auto snap-x gap-4"
		}
		b.raw(`<div`)
		b.attr("class", trackClass)
		if opts.ID != "" {
			b.attr("id", opts.trackID())
		}
		b.raw(">")
		if b.err == nil {
			b.err = writeItems(ctx, w, items, render, Basis(len(items), opts.MaxPerRow))
		}
		b.raw(`</div>`)

		if opts.LoadMore != nil {
			writeTrigger(b, opts, false)
		}
		b.raw(`</section>`)
		return b.err
	})
}

// Page renders the items of a follow-up page plus an out-of-band replacement of the
// load-more trigger. Appended items keep the basis of a full row.
func Page[T any](items []T, render Renderer[T], opts Options) templ.Component {
	if render == nil {
		return nilRenderer(opts.ID)
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &builder{w: w}
		perRow := opts.MaxPerRow
		if perRow <= 0 {
			perRow = DefaultMaxPerRow
		}
		if err := writeItems(ctx, w, items, render, Basis(perRow, perRow)); err != nil {
			return err
		}
		writeTrigger(b, opts, true)
		return b.err
	})
}

func writeItems[T any](ctx context.Context, w io.Writer, items []T, render Renderer[T], basis string) error {
	for _, item := range items {
		c := render(item)
		if c == nil {
			continue
		}
		if _, err := io.WriteString(w, `<div class="section__item shrink-0 snap-start `+basis+`">`); err != nil {
			return err
		}
		if err := c.Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</div>`); err != nil {
			return err
		}
	}
	return nil
}

func writeControls(b *builder, opts Options) {
	prev, next := opts.PrevLabel, opts.NextLabel
	if prev == "" {
		prev = "Previous"
	}
	if next == "" {
		next = "Next"
	}
	prevGlyph, nextGlyph := "&#8249;", "&#8250;"
	if opts.rtl() {
		prevGlyph, nextGlyph = nextGlyph, prevGlyph
	}
	b.raw(`<div class="section__controls flex gap-2">`)
	b.raw(`<button type="button" class="section__control" data-slide="prev"`)
	b.attr("data-target", opts.trackID())
	b.attr("aria-label", prev)
	b.raw(">" + prevGlyph + "</button>")
	b.raw(`<button type="button" class="section__control" data-slide="next"`)
	b.attr("data-target", opts.trackID())
	b.attr("aria-label", next)
	b.raw(">" + nextGlyph + "</button>")
	b.raw(`</div>`)
}

func writeTrigger(b *builder, opts Options, oob bool) {
	lm := opts.LoadMore
	b.raw(`<div class="section__more"`)
	b.attr("id", opts.moreID())
	if oob {
		b.attr("hx-swap-oob", "true")
	}
	b.raw(">")
	if lm != nil && lm.HasMore && lm.URL != "" {
		label := lm.Label
		if label == "" {
			label = "Load more"
		}
		href := withOffset(lm.URL, lm.Offset)
		b.raw(`<button type="button" class="section__more-button"`)
		b.attr("hx-get", href)
		b.attr("hx-target", "#"+opts.trackID())
		b.attr("hx-swap", "beforeend")
		b.attr("hx-indicator", "#"+opts.moreID())
		if lm.Loading {
			b.raw(` disabled aria-busy="true"`)
		}
		b.raw(">" + templ.EscapeString(label) + "</button>")
	}
	b.raw(`</div>`)
}

func emptyState(opts Options) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		b := &builder{w: w}
		b.raw(`<section class="section section--empty"`)
		if opts.ID != "" {
			b.attr("id", opts.ID)
		}
		if opts.rtl() {
			b.attr("dir", "rtl")
		}
		b.raw(">")
		if opts.Title != "" {
			b.raw(`<h2 class="section__title">` + templ.EscapeString(opts.Title) + `</h2>`)
		}
		b.raw(`<p class="section__empty" role="status">` + templ.EscapeString(opts.EmptyText) + `</p></section>`)
		return b.err
	})
}

func nilRenderer(id string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, _ io.Writer) error {
		observability.FromContext(ctx).Error("section rendered without an item renderer", zap.String("section", id))
		return nil
	})
}

func withOffset(raw string, offset int) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String()
}

type builder struct {
	w   io.Writer
	err error
}

func (b *builder) raw(s string) {
	if b.err != nil {
		return
	}
	_, b.err = io.WriteString(b.w, s)
}

func (b *builder) attr(name, value string) {
	b.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}
