// Package views renders admin pages and htmx fragments.
package views

import (
	"context"
	_ "embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"mediahub.dev/portal/internal/admin/dashboard"
	"mediahub.dev/portal/internal/admin/forms"
	"mediahub.dev/portal/internal/content"
)

//go:embed views.tmpl
var viewsTmpl string

var tmpl = template.Must(template.New("views").Parse(viewsTmpl))

// User is the signed-in editor shown in the header.
type User struct {
	UID   string
	Email string
}

// Page describes the outer layout.
type Page struct {
	Title    string
	BasePath string
	CSRF     string
	User     *User
	Body     templ.Component
}

// Layout renders body inside the admin chrome.
func Layout(p Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := p.Body
		if body == nil {
			body = templ.NopComponent
		}
		html, err := templ.ToGoHTML(ctx, body)
		if err != nil {
			return err
		}
		return tmpl.ExecuteTemplate(w, "page", struct {
			Page
			Body template.HTML
		}{p, html})
	})
}

// KPIData feeds the KPI fragment.
type KPIData struct {
	Path  string
	KPIs  []dashboard.KPI
	Error string
}

// KPIs renders the refreshable KPI grid.
func KPIs(d KPIData) templ.Component {
	return templ.FromGoHTML(tmpl.Lookup("kpis"), d)
}

// DashboardData feeds the dashboard page body.
type DashboardData struct {
	KPIs        KPIData
	NewItemPath string
	Created     string
}

// Dashboard renders the dashboard page body.
func Dashboard(d DashboardData) templ.Component {
	return templ.FromGoHTML(tmpl.Lookup("dashboard"), d)
}

// Option is a select option.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// OptionGroup is an optgroup.
type OptionGroup struct {
	Label   string
	Options []Option
}

// FormData feeds the new-item form.
type FormData struct {
	Action     string
	CSRF       string
	Item       forms.Item
	Errors     map[string]string
	Message    string
	Kinds      []Option
	Categories []OptionGroup
}

// NewFormData builds select options from site, marking the submitted values.
func NewFormData(action, csrf string, item forms.Item, site content.SiteInfo) FormData {
	d := FormData{Action: action, CSRF: csrf, Item: item}
	for _, k := range content.Kinds {
		d.Kinds = append(d.Kinds, Option{Value: string(k), Label: kindLabel(k), Selected: string(k) == item.Kind})
		cats := site.CategoriesFor(k)
		if len(cats) == 0 {
			continue
		}
		g := OptionGroup{Label: kindLabel(k)}
		for _, c := range cats {
			g.Options = append(g.Options, Option{Value: string(c.ID), Label: c.Name, Selected: string(c.ID) == item.CategoryID})
		}
		d.Categories = append(d.Categories, g)
	}
	return d
}

// ItemForm renders the new-item form.
func ItemForm(d FormData) templ.Component {
	return templ.FromGoHTML(tmpl.Lookup("item-form"), d)
}

// CreatedData feeds the confirmation fragment.
type CreatedData struct {
	Title       string
	PublicURL   string
	NewItemPath string
}

// Created confirms a new item; it replaces the form.
func Created(d CreatedData) templ.Component {
	return templ.FromGoHTML(tmpl.Lookup("created"), d)
}

// LoginData feeds the sign-in page.
type LoginData struct {
	Action  string
	CSRF    string
	Expired bool
	Error   string
}

// Login renders the sign-in form.
func Login(d LoginData) templ.Component {
	return templ.FromGoHTML(tmpl.Lookup("login"), d)
}

func kindLabel(k content.Kind) string {
	switch k {
	case content.KindContent:
		return "Article"
	case content.KindVideo:
		return "Video"
	case content.KindPost:
		return "Post"
	case content.KindEvent:
		return "Event"
	}
	return string(k)
}
