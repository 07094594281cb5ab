// Package parser extracts front matter and derived metadata from source documents.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MoreMarker splits an explicit excerpt from the rest of a post.
const MoreMarker = "<!--more-->"

// ErrInvalidFrontmatter wraps YAML errors from a front matter block.
var ErrInvalidFrontmatter = errors.New("invalid front matter")

// ErrInvalidDate is returned for a date field that cannot be parsed. It
// also matches ErrInvalidFrontmatter.
var ErrInvalidDate = fmt.Errorf("%w: invalid date", ErrInvalidFrontmatter)

var (
	postNameRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})-(.+)\.(md|markdown|html)$`)
	headingRe  = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t#]*$`)
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Result holds the output of parsing a source document.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Layout      string
	Permalink   string
	Slug        string
	Date        time.Time
	HasDate     bool
	Tags        []string
	Categories  []string
	Excerpt     string
	Draft       bool
}

// HasFrontmatter reports whether data opens with a front matter block.
// Only such HTML files are rendered; all others are copied verbatim.
func HasFrontmatter(data []byte) bool {
	_, _, ok := cut(data)
	return ok
}

// Parse extracts front matter and body from raw bytes and derives the
// fields layouts rely on.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Layout:      stringValue(fm, "layout"),
		Permalink:   stringValue(fm, "permalink"),
		Slug:        stringValue(fm, "slug"),
		Tags:        mergeLists(fm, "tags", "tag"),
		Categories:  mergeLists(fm, "categories", "category"),
		Excerpt:     extractExcerpt(fm, body),
	}
	if fm != nil {
		if d, ok := fm["draft"].(bool); ok {
			res.Draft = d
		}
		if raw, ok := fm["date"]; ok {
			t, err := CoerceDate(raw)
			if err != nil {
				return nil, err
			}
			res.Date, res.HasDate = t, true
		}
	}
	return res, nil
}

// cut splits data at the front matter delimiters. ok is false when data has
// no complete front matter block.
func cut(data []byte) (yamlBlock []byte, body string, ok bool) {
	const delim = "---"
	trimmed := bytes.TrimPrefix(data, []byte("\ufeff"))

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), false
	}
	rest := trimmed[len(delim):]
	// The opening delimiter must be alone on its line.
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || strings.TrimSpace(string(rest[:nl])) != "" {
		return nil, string(data), false
	}
	rest = rest[nl:]

	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), false
	}
	yamlBlock = rest[:idx]
	after := rest[idx+1+len(delim):]
	// Drop the remainder of the closing delimiter line.
	if i := bytes.IndexByte(after, '\n'); i >= 0 {
		after = after[i+1:]
	} else {
		after = nil
	}
	return yamlBlock, strings.TrimLeft(string(after), "\r\n"), true
}

// splitFrontmatter separates YAML front matter from the body. Documents
// without front matter return a nil map and the whole content as body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	yamlBlock, body, ok := cut(data)
	if !ok {
		return nil, body, nil
	}
	fm := map[string]any{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return fm, body, nil
}

// ParsePostFilename splits "2017-03-01-my-post.md" into its date and slug.
func ParsePostFilename(name string) (time.Time, string, bool) {
	m := postNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, "", false
	}
	t, err := time.ParseInLocation("2006-01-02", m[1]+"-"+m[2]+"-"+m[3], time.Local)
	if err != nil {
		return time.Time{}, "", false
	}
	return t, m[4], true
}

// CoerceDate accepts the shapes YAML produces for a date field.
func CoerceDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, d)
	default:
		return time.Time{}, fmt.Errorf("%w of type %T", ErrInvalidDate, v)
	}
}

func stringValue(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	if s, ok := fm[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// mergeLists reads list-or-string values from the given keys, deduplicated
// in first-seen order.
func mergeLists(fm map[string]any, keys ...string) []string {
	if fm == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, key := range keys {
		switch v := fm[key].(type) {
		case string:
			for _, f := range strings.Fields(v) {
				add(f)
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		}
	}
	return out
}

// deriveTitle returns the front matter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if t := stringValue(fm, "title"); t != "" {
		return t
	}
	if m := headingRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractExcerpt returns the front matter "excerpt", the text before the more
// marker, or the first paragraph, in that order.
func extractExcerpt(fm map[string]any, body string) string {
	if e := stringValue(fm, "excerpt"); e != "" {
		return e
	}
	if i := strings.Index(body, MoreMarker); i >= 0 {
		return strings.TrimSpace(body[:i])
	}
	text := strings.TrimLeft(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	if i := strings.Index(text, "\n\n"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
