// Package filters provides the functions layouts can call: image metadata,
// variable resolution, footnote stripping, reading time and the usual
// text/date/URL helpers.
package filters

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/starford/quire/internal/models"
)

// DefaultWordsPerMinute is used when Options.WordsPerMinute is not set.
const DefaultWordsPerMinute = 200

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Options configures a Filters set.
type Options struct {
	// SourceDir is the site root that image paths are resolved against.
	SourceDir      string
	SiteURL        string
	BaseURL        string
	WordsPerMinute int
}

// Filters holds per-build state for template functions.
type Filters struct {
	opts Options

	mu     sync.Mutex
	images map[string]ImageSize
}

// New creates a Filters set.
func New(opts Options) *Filters {
	if opts.WordsPerMinute <= 0 {
		opts.WordsPerMinute = DefaultWordsPerMinute
	}
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Filters{opts: opts, images: make(map[string]ImageSize)}
}

// FuncMap returns the functions registered into every layout.
func (f *Filters) FuncMap() template.FuncMap {
	return template.FuncMap{
		"image_size":          f.ImageSize,
		"image_width":         f.ImageWidth,
		"image_height":        f.ImageHeight,
		"resolve":             Resolve,
		"strip_footnotes":     StripFootnotes,
		"reading_time":        f.ReadingTime,
		"reading_time_label":  f.ReadingTimeLabel,
		"number_of_words":     NumberOfWords,
		"strip_html":          StripHTML,
		"xml_escape":          XMLEscape,
		"date_to_xmlschema":   DateToXMLSchema,
		"date_to_string":      DateToString,
		"date_to_long_string": DateToLongString,
		"date_format":         DateFormat,
		"absolute_url":        f.AbsoluteURL,
		"relative_url":        f.RelativeURL,
		"slugify":             Slugify,
		"jsonify":             Jsonify,
		"truncate_words":      TruncateWords,
		"limit":               Limit,
		"safe_html":           SafeHTML,
	}
}

// ReadingTime estimates minutes needed to read v, rounded up, at least 1.
func (f *Filters) ReadingTime(v any) int {
	return Minutes(NumberOfWords(v), f.opts.WordsPerMinute)
}

// ReadingTimeLabel formats ReadingTime as "N min read".
func (f *Filters) ReadingTimeLabel(v any) string {
	return fmt.Sprintf("%d min read", f.ReadingTime(v))
}

// Minutes converts a word count to whole minutes at wpm, never below 1.
func Minutes(words, wpm int) int {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	m := int(math.Ceil(float64(words) / float64(wpm)))
	if m < 1 {
		return 1
	}
	return m
}

// NumberOfWords counts whitespace separated words in the text of v.
func NumberOfWords(v any) int {
	return len(strings.Fields(StripHTML(v)))
}

// RelativeURL prefixes a site path with the base URL.
func (f *Filters) RelativeURL(v any) string {
	p := toString(v)
	if hasScheme(p) {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return f.opts.BaseURL + p
}

// AbsoluteURL turns a site path into a full URL.
func (f *Filters) AbsoluteURL(v any) string {
	p := toString(v)
	if hasScheme(p) {
		return p
	}
	return f.opts.SiteURL + f.RelativeURL(p)
}

// XMLEscape escapes text for use inside XML.
func XMLEscape(v any) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(toString(v)))
	return buf.String()
}

// DateToXMLSchema formats t as RFC 3339.
func DateToXMLSchema(t time.Time) string { return t.Format(time.RFC3339) }

// DateToString formats t as "02 Jan 2006".
func DateToString(t time.Time) string { return t.Format("02 Jan 2006") }

// DateToLongString formats t as "02 January 2006".
func DateToLongString(t time.Time) string { return t.Format("02 January 2006") }

// DateFormat formats t with a Go layout.
func DateFormat(layout string, t time.Time) string { return t.Format(layout) }

// Slugify lowercases v and collapses every run of non-alphanumerics to "-".
func Slugify(v any) string {
	s := slugRe.ReplaceAllString(strings.ToLower(toString(v)), "-")
	return strings.Trim(s, "-")
}

// Jsonify encodes v as JSON.
func Jsonify(v any) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("filters: jsonify: %w", err)
	}
	return template.JS(b), nil
}

// TruncateWords keeps the first n words of the text of v, adding an
// ellipsis when something was cut.
func TruncateWords(n int, v any) string {
	words := strings.Fields(StripHTML(v))
	if n < 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "…"
}

// Limit returns at most n pages.
func Limit(n int, pages []*models.Page) []*models.Page {
	if n < 0 || n >= len(pages) {
		return pages
	}
	return pages[:n]
}

// SafeHTML marks trusted markup as HTML so templates do not escape it.
func SafeHTML(v any) template.HTML {
	return template.HTML(toString(v)) //nolint:gosec // content comes from the site author
}

func hasScheme(s string) bool {
	i := strings.Index(s, "://")
	return i > 0 || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "mailto:")
}

// toString accepts the string-like values templates pass around.
func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case template.HTML:
		return string(s)
	case template.JS:
		return string(s)
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
