package nav

import (
	"path"
	"strings"

	"mediahub.dev/portal/internal/content"
)

// Translator resolves i18n keys.
type Translator interface {
	T(key string, args ...any) string
}

// Entry is a navigation node. Category children carry the backend item count.
type Entry struct {
	Href     string
	LabelKey string
	Label    string
	Kind     content.Kind
	Count    int
	Active   bool
	Children []Entry
}

// Crumb is a breadcrumb entry.
type Crumb struct {
	Href   string
	Label  string
	Active bool
}

const (
	homePath   = "/"
	guidedPath = "/guided-reading"
	searchPath = "/search"
)

// CategoryHref returns the listing URL of a category.
func CategoryHref(kind content.Kind, id content.CategoryID) string {
	return "/" + kind.Segment() + "/category/" + string(id)
}

// Build derives the site menu from info. It performs no I/O and never modifies info.
func Build(t Translator, info content.SiteInfo) []Entry {
	entries := make([]Entry, 0, len(content.Kinds)+3)
	entries = append(entries, Entry{Href: homePath, LabelKey: "nav.home", Label: t.T("nav.home")})
	for _, kind := range content.Kinds {
		e := Entry{
			Href:     "/" + kind.Segment(),
			LabelKey: kind.LabelKey(),
			Label:    t.T(kind.LabelKey()),
			Kind:     kind,
		}
		cats := info.CategoriesFor(kind)
		if len(cats) > 0 {
			e.Children = make([]Entry, 0, len(cats))
			for _, c := range cats {
				e.Children = append(e.Children, Entry{
					Href:  CategoryHref(kind, c.ID),
					Label: c.Name,
					Kind:  kind,
					Count: c.ContentCount,
				})
				e.Count += c.ContentCount
			}
		}
		entries = append(entries, e)
	}
	entries = append(entries,
		Entry{Href: guidedPath, LabelKey: "nav.guided", Label: t.T("nav.guided")},
		Entry{Href: searchPath, LabelKey: "nav.search", Label: t.T("nav.search")},
	)
	return entries
}

// MarkActive returns a copy of entries with Active set for currentPath.
func MarkActive(entries []Entry, currentPath string) []Entry {
	if currentPath == "" {
		currentPath = homePath
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Active = isActive(e.Href, currentPath)
		if len(e.Children) > 0 {
			e.Children = MarkActive(e.Children, currentPath)
		}
		out[i] = e
	}
	return out
}

func isActive(itemPath, currentPath string) bool {
	if itemPath == homePath {
		return currentPath == homePath
	}
	// exact or prefix boundary: "/videos" or "/videos/..."
	return currentPath == itemPath || strings.HasPrefix(currentPath, itemPath+"/")
}

// Breadcrumbs builds the trail for currentPath. Known sections and categories use
// their menu labels; other segments are prettified.
func Breadcrumbs(t Translator, currentPath string, entries []Entry) []Crumb {
	if currentPath == "" {
		currentPath = homePath
	}
	crumbs := []Crumb{{Href: homePath, Label: t.T("nav.home"), Active: currentPath == homePath}}
	clean := path.Clean(currentPath)
	if clean == homePath || clean == "." {
		return crumbs
	}
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")

	top := "/" + parts[0]
	var section *Entry
	for i := range entries {
		if entries[i].Href == top {
			section = &entries[i]
			break
		}
	}
	label := titleFromSegment(parts[0])
	if section != nil {
		label = section.Label
	}
	crumbs = append(crumbs, Crumb{Href: top, Label: label, Active: len(parts) == 1})

	href := top
	for i := 1; i < len(parts); i++ {
		href += "/" + parts[i]
		if parts[i] == "category" && i+1 < len(parts) {
			continue
		}
		label := titleFromSegment(parts[i])
		if section != nil {
			for _, c := range section.Children {
				if c.Href == href {
					label = c.Label
					break
				}
			}
		}
		crumbs = append(crumbs, Crumb{Href: href, Label: label, Active: i == len(parts)-1})
	}
	return crumbs
}

func titleFromSegment(seg string) string {
	if seg == "" {
		return seg
	}
	s := strings.NewReplacer("-", " ", "_", " ").Replace(seg)
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}
