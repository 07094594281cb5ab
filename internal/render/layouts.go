package render

import (
	"bytes"
	"fmt"
	"html/template"
	"path"
	"strings"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/storage"
)

// Directories layouts and partials are read from, relative to the site root.
const (
	LayoutsDir  = "_layouts"
	IncludesDir = "_includes"
)

// Author is the site author as layouts see it.
type Author struct {
	Name  string
	Email string
	URI   string
}

// Site is the .Site value in every template.
type Site struct {
	Title       string
	Description string
	URL         string
	BaseURL     string
	Author      Author
	Params      map[string]any
	Posts       []*models.Page
	Pages       []*models.Page
	Tags        map[string][]*models.Page
	TagNames    []string
	Time        time.Time
}

// Data is the value passed to templates.
type Data struct {
	Site    *Site
	Page    *models.Page
	Content template.HTML
	// Vars is the lowercase site/page view used by the resolve filter.
	Vars map[string]any
}

type layout struct {
	name   string
	parent string
	tmpl   *template.Template
}

// Layouts holds parsed layouts sharing one set of partials and functions.
type Layouts struct {
	base    *template.Template
	layouts map[string]*layout
}

// LoadLayouts parses _includes/*.html as partials (named by file name, e.g.
// {{ template "head.html" . }}) and _layouts/*.html as layouts (named
// without extension). A missing directory means none of that kind.
func LoadLayouts(store storage.Provider, funcs template.FuncMap) (*Layouts, error) {
	base := template.New("_base").Funcs(funcs)

	includes, err := listDir(store, IncludesDir)
	if err != nil {
		return nil, err
	}
	for _, p := range includes {
		data, err := store.Read(p)
		if err != nil {
			return nil, err
		}
		name := strings.TrimPrefix(p, IncludesDir+"/")
		if _, err := base.New(name).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("render: parse include %s: %w", p, err)
		}
	}

	l := &Layouts{base: base, layouts: make(map[string]*layout)}

	files, err := listDir(store, LayoutsDir)
	if err != nil {
		return nil, err
	}
	for _, p := range files {
		data, err := store.Read(p)
		if err != nil {
			return nil, err
		}
		res, err := parser.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("render: layout %s: %w", p, err)
		}
		name := strings.TrimSuffix(path.Base(p), path.Ext(p))
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("render: clone base for %s: %w", p, err)
		}
		if _, err := t.New(name).Parse(res.Body); err != nil {
			return nil, fmt.Errorf("render: parse layout %s: %w", p, err)
		}
		l.layouts[name] = &layout{name: name, parent: res.Layout, tmpl: t}
	}
	return l, nil
}

// Has reports whether a layout with that name exists.
func (l *Layouts) Has(name string) bool {
	_, ok := l.layouts[name]
	return ok
}

// Names returns every layout name.
func (l *Layouts) Names() []string {
	out := make([]string, 0, len(l.layouts))
	for n := range l.layouts {
		out = append(out, n)
	}
	return out
}

// Render executes the named layout with data, then each parent layout in
// turn, feeding every result in as .Content of the next.
func (l *Layouts) Render(name string, data Data) ([]byte, error) {
	seen := make(map[string]struct{})
	var out []byte
	for name != "" {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("render: %w at %q", apperr.ErrLayoutCycle, name)
		}
		seen[name] = struct{}{}

		lay, ok := l.layouts[name]
		if !ok {
			return nil, fmt.Errorf("render: %w %q", apperr.ErrUnknownLayout, name)
		}
		var buf bytes.Buffer
		if err := lay.tmpl.ExecuteTemplate(&buf, lay.name, data); err != nil {
			return nil, fmt.Errorf("render: layout %s: %w", name, err)
		}
		out = buf.Bytes()
		data.Content = template.HTML(out) //nolint:gosec // output of our own templates
		name = lay.parent
	}
	return out, nil
}

// Execute runs body as a template sharing the partials and functions of the
// layouts. HTML pages with front matter go through here before their layout.
func (l *Layouts) Execute(name, body string, data Data) (template.HTML, error) {
	t, err := l.base.Clone()
	if err != nil {
		return "", fmt.Errorf("render: clone base for %s: %w", name, err)
	}
	if _, err := t.New(name).Parse(body); err != nil {
		return "", fmt.Errorf("render: parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render: execute %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // output of our own templates
}

func listDir(store storage.Provider, dir string) ([]string, error) {
	if !store.Exists(dir) {
		return nil, nil
	}
	metas, err := store.List(dir, func(rel string, isDir bool) bool {
		return !isDir && !strings.HasSuffix(rel, ".html")
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.Path)
	}
	return out, nil
}
