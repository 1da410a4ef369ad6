package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"
)

const layoutTemplate = "base"

var funcMap = template.FuncMap{
	"year": func() int { return time.Now().Year() },
}

// Templates executes page templates laid out over base.tmpl and partials/*.tmpl.
// In dev mode templates are reparsed on every render.
type Templates struct {
	fsys  fs.FS
	dev   bool
	pages map[string]*template.Template
}

// NewTemplates parses every page under pages/ in fsys.
func NewTemplates(fsys fs.FS, dev bool) (*Templates, error) {
	t := &Templates{fsys: fsys, dev: dev}
	pages, err := t.parse()
	if err != nil {
		return nil, err
	}
	t.pages = pages
	return t, nil
}

func (t *Templates) parse() (map[string]*template.Template, error) {
	partials, err := fs.Glob(t.fsys, "partials/*.tmpl")
	if err != nil {
		return nil, err
	}
	root, err := template.New("_root").Funcs(funcMap).ParseFS(t.fsys, append([]string{"base.tmpl"}, partials...)...)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(t.fsys, "pages/*.tmpl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no page templates found under pages/")
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		clone, err := root.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(t.fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".tmpl")] = clone
	}
	return pages, nil
}

// Render executes page into w. Output is buffered so a failing template never
// produces a partial document.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	pages := t.pages
	if t.dev {
		fresh, err := t.parse()
		if err != nil {
			return err
		}
		pages = fresh
	}
	tmpl, ok := pages[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		return fmt.Errorf("execute %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
