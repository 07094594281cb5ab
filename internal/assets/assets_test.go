package assets

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/testutil"
)

func TestMinify_ByExtension(t *testing.T) {
	dir, store := testutil.TestSite(t, map[string]string{
		"index.html":    "<!DOCTYPE html>\n<html>\n  <head><title>x</title></head>\n  <body>\n    <!-- note -->\n    <p class=\"lead\">hello</p>\n  </body>\n</html>\n",
		"css/main.css":  "body {\n  color : red ;\n}\n",
		"data.json":     "{ \"a\" : 1 }",
		"img/photo.png": "not text",
		"js/lib.min.js": "var  keep = 1 ;",
		"js/app.js":     "function add ( a , b ) {\n  return a + b ;\n}\n",
	})

	n, err := Minify(store, nil)
	if err != nil {
		t.Fatalf("Minify: %v", err)
	}
	if n != 4 {
		t.Errorf("minified %d files, want 4", n)
	}

	if got := testutil.ReadFile(t, dir, "css/main.css"); got != "body{color:red}" {
		t.Errorf("css = %q", got)
	}
	if got := testutil.ReadFile(t, dir, "data.json"); got != `{"a":1}` {
		t.Errorf("json = %q", got)
	}
	html := testutil.ReadFile(t, dir, "index.html")
	if strings.Contains(html, "note") || strings.Contains(html, "\n  ") {
		t.Errorf("html not minified: %q", html)
	}
	for _, keep := range []string{"<html>", "</html>", "</p>", `class="lead"`} {
		if !strings.Contains(html, keep) {
			t.Errorf("html lost %q: %q", keep, html)
		}
	}
	if got := testutil.ReadFile(t, dir, "js/lib.min.js"); got != "var  keep = 1 ;" {
		t.Errorf(".min.js was touched: %q", got)
	}
	if got := testutil.ReadFile(t, dir, "img/photo.png"); got != "not text" {
		t.Errorf("png was touched: %q", got)
	}
}

func TestRevisionedName(t *testing.T) {
	data := []byte("body{}")
	got := RevisionedName("css/main.css", data)
	want := "css/main-" + checksum.Short(data) + ".css"
	if got != want {
		t.Errorf("RevisionedName = %q, want %q", got, want)
	}
}

func TestRevision_RenamesAndRewrites(t *testing.T) {
	dir, store := testutil.TestSite(t, map[string]string{
		"img/logo.png":     "png-bytes",
		"css/main.css":     "body{background:url(/img/logo.png)}",
		"index.html":       `<link href="/css/main.css"><img src="/img/logo.png"><a href="/about/">about</a>`,
		"feed.xml":         `<logo>https://example.com/img/logo.png</logo>`,
		"about/index.html": `<p>no assets</p>`,
	})

	manifest, err := Revision(store, []string{".css", ".png"}, "rev-manifest.json", nil)
	if err != nil {
		t.Fatalf("Revision: %v", err)
	}

	logo := "img/logo-" + checksum.Short([]byte("png-bytes")) + ".png"
	if manifest["img/logo.png"] != logo {
		t.Errorf("manifest logo = %q, want %q", manifest["img/logo.png"], logo)
	}
	css := manifest["css/main.css"]
	if !strings.HasPrefix(css, "css/main-") {
		t.Fatalf("manifest css = %q", css)
	}
	if got := testutil.ReadFile(t, dir, css); got != "body{background:url(/"+logo+")}" {
		t.Errorf("css content = %q", got)
	}

	index := testutil.ReadFile(t, dir, "index.html")
	if !strings.Contains(index, "/"+css) || !strings.Contains(index, "/"+logo) {
		t.Errorf("index not rewritten: %q", index)
	}
	if !strings.Contains(testutil.ReadFile(t, dir, "feed.xml"), logo) {
		t.Error("feed not rewritten")
	}
	if store.Exists("img/logo.png") || store.Exists("css/main.css") {
		t.Error("original assets still present")
	}

	var onDisk Manifest
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, dir, "rev-manifest.json")), &onDisk); err != nil {
		t.Fatalf("manifest json: %v", err)
	}
	if len(onDisk) != 2 || onDisk["css/main.css"] != css {
		t.Errorf("manifest on disk = %+v", onDisk)
	}
}

func TestRevision_ChangedImageChangesStylesheetName(t *testing.T) {
	build := func(img string) string {
		_, store := testutil.TestSite(t, map[string]string{
			"img/a.png":    img,
			"css/main.css": "a{background:url(../img/a.png)}",
		})
		m, err := Revision(store, []string{".css", ".png"}, "", nil)
		if err != nil {
			t.Fatal(err)
		}
		return m["css/main.css"]
	}
	if build("one") == build("two") {
		t.Error("stylesheet name should follow the image it references")
	}
}

func TestManifestReplacer_LongestFirst(t *testing.T) {
	m := Manifest{"main.css": "main-1.css", "css/main.css": "css/main-2.css"}
	if got := m.Replacer().Replace(`href="/css/main.css"`); got != `href="/css/main-2.css"` {
		t.Errorf("Replace = %q", got)
	}
}
