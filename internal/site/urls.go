package site

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/quire/internal/filters"
	"github.com/starford/quire/internal/models"
)

// DefaultPermalink is the post URL pattern used when none is configured.
const DefaultPermalink = "/:year/:month/:day/:title/"

var slashesRe = regexp.MustCompile(`/{2,}`)

// PostURL expands pattern for p. fileSlug is the slug from the file name,
// used for :title; :slug prefers the front matter slug.
func PostURL(pattern string, p *models.Page, fileSlug string) string {
	d := p.Date
	slug := p.Slug
	if slug == "" {
		slug = fileSlug
	}
	cats := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		if s := filters.Slugify(c); s != "" {
			cats = append(cats, s)
		}
	}
	r := strings.NewReplacer(
		":year", d.Format("2006"),
		":short_year", d.Format("06"),
		":month", d.Format("01"),
		":i_month", strconv.Itoa(int(d.Month())),
		":day", d.Format("02"),
		":i_day", strconv.Itoa(d.Day()),
		":categories", strings.Join(cats, "/"),
		":title", fileSlug,
		":slug", slug,
	)
	return cleanURL(r.Replace(pattern))
}

// PageURL maps a source path to its URL: markdown becomes .html, index
// files map to their directory.
func PageURL(rel string) string {
	ext := path.Ext(rel)
	if IsMarkdown(ext) {
		rel = strings.TrimSuffix(rel, ext) + ".html"
	}
	if path.Base(rel) == "index.html" {
		dir := path.Dir(rel)
		if dir == "." {
			return "/"
		}
		return "/" + dir + "/"
	}
	return "/" + rel
}

// OutputPath returns the file a URL is written to, relative to the output
// root: directories get index.html, extensionless names get .html.
func OutputPath(url string) string {
	u := strings.TrimPrefix(url, "/")
	switch {
	case u == "" || strings.HasSuffix(u, "/"):
		return u + "index.html"
	case path.Ext(u) == "":
		return u + ".html"
	}
	return u
}

func cleanURL(u string) string {
	u = slashesRe.ReplaceAllString(u, "/")
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return u
}
