package filters

import (
	"bytes"
	"html/template"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/quire/internal/models"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestImageSize_PNG(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "img", "diagram.png"), 640, 480)
	f := New(Options{SourceDir: dir})

	w, err := f.ImageWidth("/img/diagram.png")
	if err != nil {
		t.Fatalf("ImageWidth: %v", err)
	}
	h, err := f.ImageHeight("img/diagram.png?v=3")
	if err != nil {
		t.Fatalf("ImageHeight: %v", err)
	}
	if w != 640 || h != 480 {
		t.Errorf("size = %dx%d, want 640x480", w, h)
	}
}

func TestImageSize_BaseURLStripped(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "img", "a.png"), 3, 2)
	f := New(Options{SourceDir: dir, BaseURL: "/blog"})

	s, err := f.ImageSize("/blog/img/a.png")
	if err != nil {
		t.Fatalf("ImageSize: %v", err)
	}
	if s.Width != 3 || s.Height != 2 {
		t.Errorf("size = %+v", s)
	}
}

func TestImageSize_BaseURLOnlyOnSegmentBoundary(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "blogroll.png"), 5, 4)
	f := New(Options{SourceDir: dir, BaseURL: "/blog"})

	s, err := f.ImageSize("/blogroll.png")
	if err != nil {
		t.Fatalf("ImageSize: %v", err)
	}
	if s.Width != 5 || s.Height != 4 {
		t.Errorf("size = %+v, want 5x4", s)
	}
}

func TestImageSize_SVG(t *testing.T) {
	dir := t.TempDir()
	svg := `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 120 80.4"><rect/></svg>`
	if err := os.WriteFile(filepath.Join(dir, "logo.svg"), []byte(svg), 0o644); err != nil {
		t.Fatal(err)
	}
	f := New(Options{SourceDir: dir})
	s, err := f.ImageSize("/logo.svg")
	if err != nil {
		t.Fatalf("ImageSize: %v", err)
	}
	if s.Width != 120 || s.Height != 80 {
		t.Errorf("size = %+v, want 120x80", s)
	}
}

func TestImageSize_MissingFileErrors(t *testing.T) {
	f := New(Options{SourceDir: t.TempDir()})
	if _, err := f.ImageSize("/img/nope.png"); err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestImageSize_RejectsRemoteAndTraversal(t *testing.T) {
	f := New(Options{SourceDir: t.TempDir()})
	for _, p := range []string{"https://example.com/a.png", "//cdn.example.com/a.png", "/../../etc/passwd", ""} {
		if _, err := f.ImageSize(p); err == nil {
			t.Errorf("expected error for %q", p)
		}
	}
}

func TestImageSize_InTemplateAbortsOnError(t *testing.T) {
	f := New(Options{SourceDir: t.TempDir()})
	tmpl := template.Must(template.New("x").Funcs(f.FuncMap()).Parse(`<img width="{{ image_width "/missing.png" }}">`))
	if err := tmpl.Execute(&bytes.Buffer{}, nil); err == nil {
		t.Fatal("expected template execution to fail")
	}
}

func TestResolve(t *testing.T) {
	vars := map[string]any{
		"site": map[string]any{"url": "https://blog.example", "author": map[string]any{"name": "Ada"}},
		"page": map[string]any{"tags": []any{"cpp", "raii"}},
	}
	got := Resolve("{{ site.url }}/img/x.png by {{site.author.name}} #{{ page.tags.1 }}{{ page.missing }}", vars)
	want := "https://blog.example/img/x.png by Ada #raii"
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolve_StructFields(t *testing.T) {
	type site struct{ Title string }
	vars := map[string]any{"site": &site{Title: "Notes"}}
	if got := Resolve("{{ site.title }}", vars); got != "Notes" {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolve_NoPlaceholders(t *testing.T) {
	if got := Resolve("plain text", nil); got != "plain text" {
		t.Errorf("Resolve = %q", got)
	}
}

func TestStripFootnotes(t *testing.T) {
	in := `<p>RAII ties lifetime to scope<sup id="fnref:1"><a href="#fn:1" class="footnote-ref" role="doc-noteref">1</a></sup>.</p>
<div class="footnotes" role="doc-endnotes"><hr><ol><li id="fn:1"><p>Stroustrup.</p></li></ol></div>`
	out, err := StripFootnotes(in)
	if err != nil {
		t.Fatalf("StripFootnotes: %v", err)
	}
	s := string(out)
	if strings.Contains(s, "fnref") || strings.Contains(s, "footnotes") || strings.Contains(s, "Stroustrup") {
		t.Errorf("footnote markup left: %q", s)
	}
	if !strings.Contains(s, "RAII ties lifetime to scope.") {
		t.Errorf("prose lost: %q", s)
	}
}

func TestStripFootnotes_NoFootnotesUnchanged(t *testing.T) {
	in := template.HTML("<p>hello</p>")
	out, err := StripFootnotes(in)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("out = %q", out)
	}
}

func TestStripHTML(t *testing.T) {
	in := `<h1>Title</h1><p>Some <em>emph</em>asis</p><script>var x = 1;</script><style>p{}</style>`
	if got := StripHTML(in); got != "Title Some emphasis" {
		t.Errorf("StripHTML = %q", got)
	}
}

func TestStripHTML_SelfClosingScript(t *testing.T) {
	in := `<p>before</p><script src="a.js"/>var x = 1;</script><p>after the script</p><style/>p{}</style><p>end</p>`
	if got := StripHTML(in); got != "before after the script end" {
		t.Errorf("StripHTML = %q", got)
	}
}

func TestReadingTime(t *testing.T) {
	f := New(Options{WordsPerMinute: 100})
	words := strings.Repeat("word ", 250)
	if got := f.ReadingTime("<p>" + words + "</p>"); got != 3 {
		t.Errorf("ReadingTime = %d, want 3", got)
	}
	if got := f.ReadingTime(""); got != 1 {
		t.Errorf("ReadingTime(empty) = %d, want 1", got)
	}
	if got := f.ReadingTimeLabel(words); got != "3 min read" {
		t.Errorf("label = %q", got)
	}
}

func TestMinutes_DefaultWPM(t *testing.T) {
	if got := Minutes(401, 0); got != 3 {
		t.Errorf("Minutes = %d, want 3", got)
	}
}

func TestURLs(t *testing.T) {
	f := New(Options{SiteURL: "https://example.com/", BaseURL: "/blog"})
	if got := f.RelativeURL("css/main.css"); got != "/blog/css/main.css" {
		t.Errorf("RelativeURL = %q", got)
	}
	if got := f.AbsoluteURL("/2017/01/01/x/"); got != "https://example.com/blog/2017/01/01/x/" {
		t.Errorf("AbsoluteURL = %q", got)
	}
	if got := f.AbsoluteURL("https://other.org/x"); got != "https://other.org/x" {
		t.Errorf("AbsoluteURL(external) = %q", got)
	}
}

func TestSlugify(t *testing.T) {
	if got := Slugify("Template Specialization in C++!"); got != "template-specialization-in-c" {
		t.Errorf("Slugify = %q", got)
	}
}

func TestTruncateWords(t *testing.T) {
	if got := TruncateWords(3, "<p>one two three four</p>"); got != "one two three…" {
		t.Errorf("TruncateWords = %q", got)
	}
	if got := TruncateWords(10, "one two"); got != "one two" {
		t.Errorf("TruncateWords = %q", got)
	}
}

func TestXMLEscape(t *testing.T) {
	if got := XMLEscape(`a < b & "c"`); got != "a &lt; b &amp; &#34;c&#34;" {
		t.Errorf("XMLEscape = %q", got)
	}
}

func TestDates(t *testing.T) {
	d := time.Date(2016, time.November, 20, 9, 5, 0, 0, time.UTC)
	if got := DateToXMLSchema(d); got != "2016-11-20T09:05:00Z" {
		t.Errorf("DateToXMLSchema = %q", got)
	}
	if got := DateToString(d); got != "20 Nov 2016" {
		t.Errorf("DateToString = %q", got)
	}
	if got := DateToLongString(d); got != "20 November 2016" {
		t.Errorf("DateToLongString = %q", got)
	}
}

func TestLimit(t *testing.T) {
	pages := []*models.Page{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	if got := Limit(2, pages); len(got) != 2 {
		t.Errorf("len = %d", len(got))
	}
	if got := Limit(5, pages); len(got) != 3 {
		t.Errorf("len = %d", len(got))
	}
}

func TestJsonify(t *testing.T) {
	got, err := Jsonify(map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"a":1}` {
		t.Errorf("Jsonify = %q", got)
	}
}
