package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/quire/internal/filters"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/postservice"
	"github.com/starford/quire/internal/testutil"
)

// testEnv sets up a source tree, a built site, an index holding two posts
// and a router over all of it.
func testEnv(t *testing.T) http.Handler {
	t.Helper()

	srcDir, store := testutil.TestSite(t, map[string]string{
		"_posts/2020-01-02-raii.md":         "---\ntitle: RAII\ntags: [c++, memory]\n---\nResources are owned by objects.\n",
		"_posts/2021-03-04-copy-elision.md": "---\ntitle: Copy elision\ntags: [c++]\n---\nThe copy is elided.\n",
	})
	siteDir, _ := testutil.TestSite(t, map[string]string{
		"index.html":           "<h1>home</h1>",
		"about/index.html":     "<h1>about</h1>",
		"2020/01/02/raii.html": "<h1>RAII</h1>",
		"css/main.css":         "body{}",
		NotFoundPage:           "<h1>lost</h1>",
	})

	db := testutil.TestDB(t)
	for _, p := range []struct {
		row  index.PostRow
		body string
	}{
		{index.PostRow{Path: "_posts/2020-01-02-raii.md", URL: "/2020/01/02/raii.html", Title: "RAII",
			Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Tags: []string{"c++", "memory"}}, "Resources are owned by objects."},
		{index.PostRow{Path: "_posts/2021-03-04-copy-elision.md", URL: "/2021/03/04/copy-elision.html", Title: "Copy elision",
			Date: time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), Tags: []string{"c++"}}, "The copy is elided."},
	} {
		if err := db.UpsertPost(p.row, p.body); err != nil {
			t.Fatal(err)
		}
	}

	svc := postservice.NewService(store, db, filters.New(filters.Options{SourceDir: srcDir}))
	return NewRouter(RouterConfig{
		Posts:   svc,
		Events:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("events")) }),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("metrics")) }),
		Site:    NewSiteHandler(siteDir, ""),
	})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListPosts(t *testing.T) {
	router := testEnv(t)

	w := get(t, router, "/api/posts")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PostListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Posts) != 2 || resp.Posts[0].Title != "Copy elision" {
		t.Errorf("resp = %+v", resp)
	}

	w = get(t, router, "/api/posts?tag=memory&limit=5")
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Posts[0].Title != "RAII" {
		t.Errorf("tag filter = %+v", resp)
	}

	w = get(t, router, "/api/posts?limit=1&offset=1")
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Posts) != 1 || resp.Posts[0].Title != "RAII" {
		t.Errorf("page 2 = %+v", resp)
	}
}

func TestGetPost(t *testing.T) {
	router := testEnv(t)

	for _, target := range []string{
		"/api/posts/2020/01/02/raii.html",
		"/api/posts/_posts/2020-01-02-raii.md",
		"/api/posts/_posts%2F2020-01-02-raii.md",
	} {
		w := get(t, router, target)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, body = %s", target, w.Code, w.Body.String())
			continue
		}
		var post PostDetail
		if err := json.Unmarshal(w.Body.Bytes(), &post); err != nil {
			t.Fatal(err)
		}
		if post.Title != "RAII" || !strings.Contains(post.Source, "title: RAII") {
			t.Errorf("%s: post = %+v", target, post)
		}
	}
}

func TestGetPost_NotFound(t *testing.T) {
	router := testEnv(t)
	w := get(t, router, "/api/posts/2099/01/01/nope.html")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error != "not found" {
		t.Errorf("body = %+v", body)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t)

	w := get(t, router, "/api/search?q=elided")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].URL != "/2021/03/04/copy-elision.html" {
		t.Errorf("results = %+v", resp.Results)
	}

	if w := get(t, router, "/api/search"); w.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", w.Code)
	}
}

func TestTagsEndpoint(t *testing.T) {
	router := testEnv(t)
	w := get(t, router, "/api/tags")
	var resp TagsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tags) != 2 || resp.Tags[0].Tag != "c++" || resp.Tags[0].Count != 2 {
		t.Errorf("tags = %+v", resp.Tags)
	}
}

func TestHealthEventsMetrics(t *testing.T) {
	router := testEnv(t)
	if w := get(t, router, "/health/live"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
	if w := get(t, router, EventsPath); w.Body.String() != "events" {
		t.Errorf("events = %q", w.Body.String())
	}
	if w := get(t, router, "/metrics"); w.Body.String() != "metrics" {
		t.Errorf("metrics = %q", w.Body.String())
	}
}

func TestSiteHandler(t *testing.T) {
	router := testEnv(t)

	cases := []struct {
		target string
		code   int
		body   string
	}{
		{"/", http.StatusOK, "<h1>home</h1>"},
		{"/about/", http.StatusOK, "<h1>about</h1>"},
		{"/about", http.StatusOK, "<h1>about</h1>"},
		{"/2020/01/02/raii", http.StatusOK, "<h1>RAII</h1>"},
		{"/css/main.css", http.StatusOK, "body{}"},
		{"/missing.html", http.StatusNotFound, "<h1>lost</h1>"},
		{"/../../etc/passwd", http.StatusNotFound, "<h1>lost</h1>"},
		{"/index.html/foo", http.StatusNotFound, "<h1>lost</h1>"},
		{"/index.html/", http.StatusNotFound, "<h1>lost</h1>"},
	}
	for _, tc := range cases {
		w := get(t, router, tc.target)
		if w.Code != tc.code || w.Body.String() != tc.body {
			t.Errorf("%s: %d %q, want %d %q", tc.target, w.Code, w.Body.String(), tc.code, tc.body)
		}
		if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-cache") {
			t.Errorf("%s: Cache-Control = %q", tc.target, cc)
		}
	}
}

func TestSiteHandler_BaseURL(t *testing.T) {
	dir, _ := testutil.TestSite(t, map[string]string{"index.html": "home"})
	h := NewSiteHandler(dir, "/blog/")

	if w := get(t, h, "/blog/"); w.Code != http.StatusOK || w.Body.String() != "home" {
		t.Errorf("/blog/ = %d %q", w.Code, w.Body.String())
	}
	if w := get(t, h, "/blog"); w.Code != http.StatusMovedPermanently {
		t.Errorf("/blog = %d, want redirect", w.Code)
	}
	if w := get(t, h, "/index.html"); w.Code != http.StatusNotFound {
		t.Errorf("/index.html = %d, want 404", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/blog/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req.WithContext(context.Background()))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST = %d", w.Code)
	}
}
