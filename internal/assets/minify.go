// Package assets post-processes the output tree: minification and
// content-hash revisioning of asset files.
package assets

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"

	"github.com/starford/quire/internal/storage"
)

// mediaTypes maps the extensions that get minified to their media type.
var mediaTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".svg":  "image/svg+xml",
}

// NewMinifier returns a minifier for every type in mediaTypes. Document
// tags, end tags and attribute quotes survive so the HTML stays lintable.
func NewMinifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]json$`), json.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]xml$`), xml.Minify)
	return m
}

// Minify rewrites every minifiable file under the store in place and returns
// how many files it touched. Files already named *.min.* are left alone.
// The first failure aborts.
func Minify(store storage.Provider, skip storage.SkipFunc) (int, error) {
	metas, err := store.List("", skip)
	if err != nil {
		return 0, err
	}
	m := NewMinifier()
	n := 0
	for _, meta := range metas {
		ext := strings.ToLower(path.Ext(meta.Path))
		mediatype, ok := mediaTypes[ext]
		if !ok || strings.HasSuffix(strings.TrimSuffix(meta.Path, path.Ext(meta.Path)), ".min") {
			continue
		}
		data, err := store.Read(meta.Path)
		if err != nil {
			return n, err
		}
		out, err := m.Bytes(mediatype, data)
		if err != nil {
			return n, fmt.Errorf("assets: minify %s: %w", meta.Path, err)
		}
		if err := store.Write(meta.Path, out); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
