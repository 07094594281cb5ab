package site

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/quire/internal/assets"
	"github.com/starford/quire/internal/filters"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/render"
	"github.com/starford/quire/internal/storage"
)

type run struct {
	b       *Builder
	src     storage.Provider
	dest    storage.Provider
	f       *filters.Filters
	md      *render.Markdown
	layouts *render.Layouts
	now     time.Time

	postSources []source
	pageSources []source

	posts    []*models.Page
	pages    []*models.Page
	static   []models.StaticFile
	site     *render.Site
	manifest assets.Manifest

	// output maps a written output path to the source that produced it.
	output map[string]string
}

func (r *run) render() error {
	r.site = r.siteData()

	// Template bodies run first, posts before pages, so listings see
	// finished post content.
	for _, p := range append(append([]*models.Page{}, r.posts...), r.pages...) {
		if IsMarkdown(path.Ext(p.Path)) {
			continue
		}
		content, err := r.layouts.Execute(p.Path, p.Body, r.data(p))
		if err != nil {
			return err
		}
		p.Content = content
		excerpt, err := filters.StripFootnotes(htmlExcerpt(content))
		if err != nil {
			return fmt.Errorf("%s: excerpt: %w", p.Path, err)
		}
		p.Excerpt = excerpt
		r.measure(p)
	}

	for _, p := range append(append([]*models.Page{}, r.posts...), r.pages...) {
		out := []byte(p.Content)
		if p.Layout != "" {
			var err error
			out, err = r.layouts.Render(p.Layout, r.data(p))
			if err != nil {
				return fmt.Errorf("%s: %w", p.Path, err)
			}
		}
		if err := r.write(p.OutputPath, p.Path, out); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) data(p *models.Page) render.Data {
	return render.Data{Site: r.site, Page: p, Content: p.Content, Vars: vars(r.site, p)}
}

// write stores an output file, injecting the reload script into HTML.
func (r *run) write(out, from string, data []byte) error {
	if prev, dup := r.output[out]; dup {
		r.b.logger.Warn("render: output conflict, later source wins",
			slog.String("output", out), slog.String("first", prev), slog.String("second", from))
	}
	r.output[out] = from
	if r.b.opts.LiveReload != "" && strings.HasSuffix(out, ".html") {
		data = InjectReload(data, r.b.opts.LiveReload)
	}
	return r.dest.Write(out, data)
}

func (r *run) copyStatic() error {
	for _, s := range r.static {
		data, err := r.src.Read(s.Path)
		if err != nil {
			return err
		}
		if err := r.write(s.Path, s.Path, data); err != nil {
			return err
		}
	}
	return nil
}

// destSkip leaves dot files and kept top-level entries out of the asset
// pipeline.
func (r *run) destSkip() storage.SkipFunc {
	keep := make(map[string]bool, len(r.b.opts.KeepFiles))
	for _, k := range r.b.opts.KeepFiles {
		keep[strings.Trim(k, "/")] = true
	}
	return func(rel string, _ bool) bool {
		if strings.HasPrefix(path.Base(rel), ".") {
			return true
		}
		top, _, _ := strings.Cut(rel, "/")
		return keep[top]
	}
}

func (r *run) minify() error {
	n, err := assets.Minify(r.dest, r.destSkip())
	if err != nil {
		return err
	}
	r.b.logger.Debug("minified", slog.Int("files", n))
	return nil
}

func (r *run) revision() error {
	m, err := assets.Revision(r.dest, r.b.opts.RevisionExtensions, r.b.opts.Manifest, r.destSkip())
	if err != nil {
		return err
	}
	r.manifest = m
	return nil
}

// vars builds the lowercase view of site and page that resolve walks.
func vars(site *render.Site, p *models.Page) map[string]any {
	siteVars := map[string]any{}
	for k, v := range site.Params {
		siteVars[k] = v
	}
	siteVars["title"] = site.Title
	siteVars["description"] = site.Description
	siteVars["url"] = site.URL
	siteVars["baseurl"] = site.BaseURL
	siteVars["author"] = map[string]any{
		"name":  site.Author.Name,
		"email": site.Author.Email,
		"uri":   site.Author.URI,
	}
	siteVars["params"] = site.Params
	siteVars["time"] = site.Time

	pageVars := map[string]any{}
	for k, v := range p.Frontmatter {
		pageVars[k] = v
	}
	pageVars["url"] = p.URL
	pageVars["title"] = p.Title
	pageVars["date"] = p.Date
	pageVars["slug"] = p.Slug
	pageVars["path"] = p.Path
	pageVars["tags"] = p.Tags
	pageVars["categories"] = p.Categories
	pageVars["excerpt"] = p.Excerpt
	return map[string]any{"site": siteVars, "page": pageVars}
}
