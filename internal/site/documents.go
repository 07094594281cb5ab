package site

import (
	"fmt"
	"html/template"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/starford/quire/internal/filters"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/render"
)

// noLayout values in front matter turn the default layout off.
var noLayout = map[string]bool{"none": true, "null": true, "false": true}

func (r *run) loadLayouts() error {
	l, err := render.LoadLayouts(r.src, r.f.FuncMap())
	if err != nil {
		return err
	}
	r.layouts = l
	return nil
}

func (r *run) read() error {
	for _, s := range r.postSources {
		p, err := r.readPost(s)
		if err != nil {
			return err
		}
		if p != nil {
			r.posts = append(r.posts, p)
		}
	}
	for _, s := range r.pageSources {
		p, err := r.readPage(s)
		if err != nil {
			return err
		}
		if p != nil {
			r.pages = append(r.pages, p)
		}
	}

	// Newest first; Previous is the older neighbour, Next the newer one.
	sort.SliceStable(r.posts, func(i, j int) bool {
		if !r.posts[i].Date.Equal(r.posts[j].Date) {
			return r.posts[i].Date.After(r.posts[j].Date)
		}
		return r.posts[i].Path > r.posts[j].Path
	})
	for i, p := range r.posts {
		if i > 0 {
			p.Next = r.posts[i-1]
		}
		if i+1 < len(r.posts) {
			p.Previous = r.posts[i+1]
		}
	}
	sort.Slice(r.pages, func(i, j int) bool { return r.pages[i].URL < r.pages[j].URL })
	return nil
}

// readPost parses a post source. It returns nil for posts that are skipped:
// badly named files, drafts and future posts unless enabled.
func (r *run) readPost(s source) (*models.Page, error) {
	name := path.Base(s.path)
	date, fileSlug, ok := parser.ParsePostFilename(name)
	if !ok {
		if !s.draft {
			r.b.logger.Warn("read: post file name is not YYYY-MM-DD-slug", slog.String("path", s.path))
			return nil, nil
		}
		fileSlug = strings.TrimSuffix(name, path.Ext(name))
		date = s.modTime
	}

	res, err := parser.Parse(s.data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	if res.HasDate {
		date = res.Date
	}

	p := r.newPage(models.KindPost, s, res)
	p.Date = date
	if p.Title == "" {
		p.Title = strings.ReplaceAll(fileSlug, "-", " ")
	}
	if p.Layout == "" && !hasExplicitLayout(res) && r.layouts.Has("post") {
		p.Layout = "post"
	}
	p.Draft = p.Draft || s.draft || isUnpublished(res)

	if p.Draft && !r.b.opts.Drafts {
		r.b.logger.Debug("read: skipping draft", slog.String("path", s.path))
		return nil, nil
	}
	if date.After(r.now) && !r.b.opts.Future {
		r.b.logger.Debug("read: skipping future post", slog.String("path", s.path), slog.Time("date", date))
		return nil, nil
	}

	pattern := r.b.opts.Permalink
	if res.Permalink != "" {
		pattern = res.Permalink
	}
	p.URL = PostURL(pattern, p, fileSlug)
	if p.Slug == "" {
		p.Slug = fileSlug
	}
	p.OutputPath = OutputPath(p.URL)

	if err := r.convert(p, s, res); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *run) readPage(s source) (*models.Page, error) {
	res, err := parser.Parse(s.data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	p := r.newPage(models.KindPage, s, res)
	if (p.Draft || isUnpublished(res)) && !r.b.opts.Drafts {
		return nil, nil
	}
	p.Date = s.modTime
	if res.HasDate {
		p.Date = res.Date
	}
	if res.Permalink != "" {
		p.URL = cleanURL(res.Permalink)
	} else {
		p.URL = PageURL(s.path)
	}
	p.OutputPath = OutputPath(p.URL)
	if p.Slug == "" {
		p.Slug = filters.Slugify(strings.TrimSuffix(path.Base(s.path), path.Ext(s.path)))
	}
	if err := r.convert(p, s, res); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *run) newPage(kind models.Kind, s source, res *parser.Result) *models.Page {
	layout := res.Layout
	if noLayout[strings.ToLower(layout)] {
		layout = ""
	}
	return &models.Page{
		Kind:        kind,
		Path:        s.path,
		Frontmatter: res.Frontmatter,
		Body:        res.Body,
		Title:       res.Title,
		Slug:        res.Slug,
		Layout:      layout,
		Tags:        res.Tags,
		Categories:  res.Categories,
		Draft:       res.Draft,
		Checksum:    s.checksum,
	}
}

// convert renders markdown bodies now. Other bodies are templates and run
// in render, once every document is known.
func (r *run) convert(p *models.Page, s source, res *parser.Result) error {
	if !IsMarkdown(path.Ext(s.path)) {
		return nil
	}
	content, err := r.md.Convert(res.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	p.Content = content

	excerpt, err := r.md.Convert(res.Excerpt)
	if err != nil {
		return fmt.Errorf("%s: excerpt: %w", s.path, err)
	}
	if p.Excerpt, err = filters.StripFootnotes(excerpt); err != nil {
		return fmt.Errorf("%s: excerpt: %w", s.path, err)
	}
	r.measure(p)
	return nil
}

func (r *run) measure(p *models.Page) {
	p.Words = filters.NumberOfWords(p.Content)
	p.ReadingTime = filters.Minutes(p.Words, r.b.opts.WordsPerMinute)
}

// htmlExcerpt takes the markup before the more marker, else the first
// paragraph, else everything.
func htmlExcerpt(content template.HTML) template.HTML {
	s := string(content)
	if i := strings.Index(s, parser.MoreMarker); i >= 0 {
		return template.HTML(strings.TrimSpace(s[:i])) //nolint:gosec // rendered site content
	}
	if i := strings.Index(s, "</p>"); i >= 0 {
		return template.HTML(strings.TrimSpace(s[:i+len("</p>")])) //nolint:gosec // rendered site content
	}
	return content
}

func hasExplicitLayout(res *parser.Result) bool {
	_, ok := res.Frontmatter["layout"]
	return ok
}

func isUnpublished(res *parser.Result) bool {
	v, ok := res.Frontmatter["published"].(bool)
	return ok && !v
}
