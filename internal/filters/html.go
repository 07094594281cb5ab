package filters

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripFootnotes removes footnote references and the footnote list from
// rendered HTML.
func StripFootnotes(v any) (template.HTML, error) {
	src := toString(v)
	if !strings.Contains(src, "fnref") && !strings.Contains(src, "footnotes") {
		return template.HTML(src), nil //nolint:gosec // rendered by our own markdown pipeline
	}
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), context)
	if err != nil {
		return "", fmt.Errorf("filters: strip_footnotes: parse: %w", err)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if isFootnote(n) {
			continue
		}
		pruneFootnotes(n)
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("filters: strip_footnotes: render: %w", err)
		}
	}
	return template.HTML(buf.String()), nil //nolint:gosec // rendered by our own markdown pipeline
}

func pruneFootnotes(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if isFootnote(c) {
			n.RemoveChild(c)
		} else {
			pruneFootnotes(c)
		}
		c = next
	}
}

// isFootnote matches the markup goldmark and kramdown emit for footnotes.
func isFootnote(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Sup:
		return strings.HasPrefix(attr(n, "id"), "fnref")
	case atom.Div, atom.Section, atom.Ol:
		for _, class := range strings.Fields(attr(n, "class")) {
			if class == "footnotes" {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// inline elements do not separate words.
var inline = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Code: true, atom.Em: true,
	atom.I: true, atom.Mark: true, atom.Small: true, atom.Span: true,
	atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.Kbd: true,
}

// StripHTML returns the text content of v with tags, scripts and styles
// removed and whitespace collapsed.
func StripHTML(v any) string {
	z := html.NewTokenizer(strings.NewReader(toString(v)))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail: either way return what was read.
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				skip++
			}
			if !inline[a] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
			if !inline[a] {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}
