package postservice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/filters"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/testutil"
)

func testService(t *testing.T, files map[string]string) (*Service, *index.DB, string) {
	t.Helper()
	dir, store := testutil.TestSite(t, files)
	db := testutil.TestDB(t)
	svc := NewService(store, db, filters.New(filters.Options{SourceDir: dir, WordsPerMinute: 200}))
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return svc, db, dir
}

func TestCreatePost(t *testing.T) {
	svc, _, dir := testService(t, nil)
	ctx := context.Background()

	p, err := svc.CreatePost(ctx, NewPost{Title: "Move Semantics, Explained", Tags: []string{"c++"}, Body: "Intro"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p != "_posts/2024-05-01-move-semantics-explained.md" {
		t.Fatalf("path = %q", p)
	}
	res, err := parser.Parse([]byte(testutil.ReadFile(t, dir, p)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Title != "Move Semantics, Explained" || res.Layout != "post" {
		t.Errorf("title/layout = %q/%q", res.Title, res.Layout)
	}
	if !res.HasDate || res.Date.Year() != 2024 || res.Date.Day() != 1 {
		t.Errorf("date = %v (has %v)", res.Date, res.HasDate)
	}
	if len(res.Tags) != 1 || res.Tags[0] != "c++" {
		t.Errorf("tags = %v", res.Tags)
	}
	id, _ := res.Frontmatter["uuid"].(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("uuid %q: %v", id, err)
	}
	if strings.TrimSpace(res.Body) != "Intro" {
		t.Errorf("body = %q", res.Body)
	}

	if _, err := svc.CreatePost(ctx, NewPost{Title: "Move semantics explained"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreatePost_Draft(t *testing.T) {
	svc, _, dir := testService(t, nil)
	p, err := svc.CreatePost(context.Background(), NewPost{Title: "WIP", Slug: "Copy Elision", Draft: true})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p != "_drafts/copy-elision.md" {
		t.Fatalf("path = %q", p)
	}
	res, err := parser.Parse([]byte(testutil.ReadFile(t, dir, p)))
	if err != nil {
		t.Fatal(err)
	}
	if res.HasDate {
		t.Errorf("draft should not carry a date: %v", res.Date)
	}
}

func TestCreatePost_RequiresTitle(t *testing.T) {
	svc, _, _ := testService(t, nil)
	if _, err := svc.CreatePost(context.Background(), NewPost{Title: "  "}); err == nil {
		t.Error("expected error for empty title")
	}
	if _, err := svc.CreatePost(context.Background(), NewPost{Title: "!!!"}); err == nil {
		t.Error("expected error for title without slug characters")
	}
}

func TestGetPost(t *testing.T) {
	src := "---\ntitle: RAII\ntags: [c++]\n---\nResources are owned.\n"
	svc, db, _ := testService(t, map[string]string{"_posts/2020-01-02-raii.md": src})
	ctx := context.Background()

	err := db.UpsertPost(index.PostRow{
		Path:  "_posts/2020-01-02-raii.md",
		URL:   "/2020/01/02/raii.html",
		Title: "RAII",
		Date:  time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		Tags:  []string{"c++"},
	}, "Resources are owned.")
	if err != nil {
		t.Fatal(err)
	}

	p, err := svc.GetPost(ctx, "/2020/01/02/raii.html")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if p.Source != src || p.Text != "Resources are owned." || p.Frontmatter["title"] != "RAII" {
		t.Errorf("post = %+v", p)
	}

	if _, err := svc.GetPost(ctx, "/nope.html"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	// Indexed but deleted from the source tree.
	_ = db.UpsertPost(index.PostRow{Path: "_posts/2019-01-01-gone.md", URL: "/gone.html", Title: "Gone"}, "")
	if _, err := svc.GetPost(ctx, "/gone.html"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListAndTags_Empty(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx := context.Background()
	posts, total, err := svc.ListPosts(ctx, 10, 0, "")
	if err != nil || posts == nil || total != 0 {
		t.Errorf("ListPosts = %v, %d, %v", posts, total, err)
	}
	tags, err := svc.Tags(ctx)
	if err != nil || tags == nil {
		t.Errorf("Tags = %v, %v", tags, err)
	}
}

func TestReadingTime(t *testing.T) {
	svc, _, _ := testService(t, nil)
	text := "<p>" + strings.Repeat("word ", 401) + "</p>"
	rt := svc.ReadingTime(text)
	if rt.Words != 401 || rt.Minutes != 3 {
		t.Errorf("ReadingTime = %+v", rt)
	}
}
