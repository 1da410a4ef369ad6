// Package cards renders the item cards placed inside sections.
package cards

import (
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/a-h/templ"

	"mediahub.dev/portal/internal/content"
	"mediahub.dev/portal/internal/i18n"
	"mediahub.dev/portal/internal/richtext"
	"mediahub.dev/portal/internal/section"
)

const summaryLimit = 140

//go:embed cards.tmpl
var cardsTmpl string

var tmpl = template.Must(template.New("cards").Parse(cardsTmpl))

type itemView struct {
	ID      string
	Kind    content.Kind
	Href    string
	Image   string
	Title   string
	Badge   string
	Summary string
	Meta    []string
}

type guidedView struct {
	Step      int
	StepLabel string
	Title     string
	Caption   string
	Photo     string
}

// ForKind returns the renderer for items of kind, or nil when the kind is unknown.
func ForKind(kind content.Kind, l i18n.Localizer) section.Renderer[content.Item] {
	switch kind {
	case content.KindContent, content.KindVideo, content.KindPost, content.KindEvent:
		return func(it content.Item) templ.Component {
			if it.Kind == "" {
				it.Kind = kind
			}
			return Item(it, l)
		}
	default:
		return nil
	}
}

// Mixed returns a renderer for lists mixing kinds, such as search results.
func Mixed(l i18n.Localizer) section.Renderer[content.Item] {
	return func(it content.Item) templ.Component {
		return Item(it, l)
	}
}

// Item renders one card, picking the metadata line from the item kind.
func Item(it content.Item, l i18n.Localizer) templ.Component {
	v := itemView{
		ID:      it.ID,
		Kind:    it.Kind,
		Href:    it.Href(),
		Image:   it.Image,
		Title:   it.Title,
		Summary: richtext.Excerpt(template.HTMLEscapeString(it.Summary), summaryLimit),
	}
	switch it.Kind {
	case content.KindContent:
		if a := it.Article; a != nil {
			if a.Author != "" {
				v.Meta = append(v.Meta, l.T("detail.by", a.Author))
			}
			if a.ReadingMinutes > 0 {
				v.Meta = append(v.Meta, l.T("detail.minutes", a.ReadingMinutes))
			}
		}
	case content.KindVideo:
		if vd := it.Video; vd != nil && vd.Duration > 0 {
			v.Badge = Duration(vd.Duration)
		}
	case content.KindPost:
		if p := it.Post; p != nil && p.Author != "" {
			v.Meta = append(v.Meta, l.T("detail.by", p.Author))
		}
	case content.KindEvent:
		if e := it.Event; e != nil {
			if !e.StartsAt.IsZero() {
				v.Badge = Date(e.StartsAt)
			}
			if e.Location != "" {
				v.Meta = append(v.Meta, e.Location)
			}
		}
	}
	if len(v.Meta) == 0 && !it.PublishedAt.IsZero() {
		v.Meta = append(v.Meta, Date(it.PublishedAt))
	}
	return templ.FromGoHTML(tmpl.Lookup("item"), v)
}

// Guided returns the renderer for guided-reading steps.
func Guided(l i18n.Localizer) section.Renderer[content.GuidedCard] {
	return func(c content.GuidedCard) templ.Component {
		return templ.FromGoHTML(tmpl.Lookup("guided"), guidedView{
			Step:      c.Step,
			StepLabel: l.T("guided.step", c.Step),
			Title:     c.Title,
			Caption:   c.Caption,
			Photo:     c.Photo,
		})
	}
}

// Duration formats seconds as m:ss or h:mm:ss.
func Duration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Date formats t as an ISO calendar date in UTC.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
