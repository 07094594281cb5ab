// Package render turns markdown into HTML and executes layouts.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrMarkdown indicates markdown conversion failed.
var ErrMarkdown = errors.New("markdown conversion failed")

// Markdown converts markdown to HTML fragments.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a converter with GFM, footnotes, typographic quotes and
// chroma highlighting using CSS classes. style names the chroma style used
// when a stylesheet is generated from it.
func NewMarkdown(style string) *Markdown {
	if style == "" {
		style = "github"
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			// Posts embed raw HTML (figures, iframes) like kramdown allowed.
			html.WithUnsafe(),
		),
	)
	return &Markdown{md: md}
}

// Convert renders src to an HTML fragment.
func (m *Markdown) Convert(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMarkdown, err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // author content
}
