package site

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"

	"github.com/starford/quire/internal/filters"
	"github.com/starford/quire/internal/models"
)

// Generated files, skipped when a source document already produced them.
const (
	FeedFile    = "feed.xml"
	SitemapFile = "sitemap.xml"
	SearchFile  = "search.json"
)

func (r *run) generate() error {
	gens := []struct {
		name string
		fn   func() ([]byte, error)
	}{
		{FeedFile, r.feed},
		{SitemapFile, r.sitemap},
		{SearchFile, r.searchIndex},
	}
	for _, g := range gens {
		if _, taken := r.output[g.name]; taken {
			continue
		}
		data, err := g.fn()
		if err != nil {
			return fmt.Errorf("%s: %w", g.name, err)
		}
		if err := r.write(g.name, g.name, data); err != nil {
			return err
		}
	}
	return nil
}

// feed renders the newest posts as Atom. A post with a "uuid" in its front
// matter keeps that identity across URL changes.
func (r *run) feed() ([]byte, error) {
	o := r.b.opts
	home := r.f.AbsoluteURL("/")
	feed := &feeds.Feed{
		Title:       o.Title,
		Link:        &feeds.Link{Href: home},
		Description: o.Description,
		Id:          home,
		Updated:     r.now,
	}
	if o.Author.Name != "" {
		feed.Author = &feeds.Author{Name: o.Author.Name, Email: o.Author.Email}
	}

	posts := r.posts
	if o.FeedLimit > 0 {
		posts = filters.Limit(o.FeedLimit, posts)
	}
	if len(posts) > 0 {
		feed.Updated = updated(posts[0])
	}
	for _, p := range posts {
		link := r.f.AbsoluteURL(p.URL)
		content, err := filters.StripFootnotes(p.Content)
		if err != nil {
			return nil, err
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: link},
			Id:          entryID(p, link),
			Created:     p.Date,
			Updated:     updated(p),
			Description: string(p.Excerpt),
			Content:     string(content),
		})
	}
	atom, err := feed.ToAtom()
	if err != nil {
		return nil, err
	}
	return []byte(atom), nil
}

func entryID(p *models.Page, link string) string {
	if s, ok := p.Param("uuid").(string); ok {
		if id, err := uuid.Parse(s); err == nil {
			return id.URN()
		}
	}
	return link
}

// updated returns last_modified_at from front matter, else the post date.
func updated(p *models.Page) time.Time {
	switch v := p.Param("last_modified_at").(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}
	return p.Date
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// sitemap lists every HTML document except 404 pages and those with
// "sitemap: false".
func (r *run) sitemap() ([]byte, error) {
	set := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	add := func(p *models.Page, lastmod bool) {
		if !strings.HasSuffix(p.OutputPath, ".html") || p.OutputPath == "404.html" {
			return
		}
		if v, ok := p.Param("sitemap").(bool); ok && !v {
			return
		}
		u := sitemapURL{Loc: r.f.AbsoluteURL(p.URL)}
		if lastmod {
			u.LastMod = updated(p).Format(time.RFC3339)
		}
		set.URLs = append(set.URLs, u)
	}
	for _, p := range r.pages {
		add(p, false)
	}
	for _, p := range r.posts {
		add(p, true)
	}
	for _, s := range r.static {
		if strings.HasSuffix(s.Path, ".html") && s.Path != "404.html" {
			set.URLs = append(set.URLs, sitemapURL{Loc: r.f.AbsoluteURL(PageURL(s.Path))})
		}
	}
	sort.SliceStable(set.URLs, func(i, j int) bool { return set.URLs[i].Loc < set.URLs[j].Loc })

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// SearchEntry is one post in search.json.
type SearchEntry struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags"`
	Excerpt string   `json:"excerpt"`
}

func (r *run) searchIndex() ([]byte, error) {
	entries := make([]SearchEntry, 0, len(r.posts))
	for _, p := range r.posts {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		entries = append(entries, SearchEntry{
			Title:   p.Title,
			URL:     r.f.RelativeURL(p.URL),
			Date:    p.Date.Format(time.RFC3339),
			Tags:    tags,
			Excerpt: filters.StripHTML(p.Excerpt),
		})
	}
	return json.Marshal(entries)
}
