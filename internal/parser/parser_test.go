package parser

import (
	"errors"
	"testing"
	"time"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\nlayout: post\ntags:\n  - cpp\n  - templates\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if r.Layout != "post" {
		t.Errorf("layout = %q", r.Layout)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "cpp" || r.Tags[1] != "templates" {
		t.Errorf("tags = %v, want [cpp templates]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_EmptyFrontmatter(t *testing.T) {
	r, err := Parse([]byte("---\n---\nbody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter == nil {
		t.Error("empty block should yield an empty, non-nil map")
	}
	if r.Body != "body\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_InvalidYAMLIsError(t *testing.T) {
	_, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if !errors.Is(err, ErrInvalidFrontmatter) {
		t.Fatalf("err = %v, want ErrInvalidFrontmatter", err)
	}
}

func TestParse_DashRuleIsNotFrontmatter(t *testing.T) {
	input := []byte("----- not a delimiter\ntext\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("frontmatter = %v, want nil", r.Frontmatter)
	}
}

func TestParse_DateString(t *testing.T) {
	r, err := Parse([]byte("---\ndate: \"2017-03-01 10:30:00 +0100\"\n---\nx"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.HasDate {
		t.Fatal("expected date")
	}
	if r.Date.Year() != 2017 || r.Date.Month() != time.March || r.Date.Day() != 1 {
		t.Errorf("date = %v", r.Date)
	}
}

func TestParse_BadDate(t *testing.T) {
	_, err := Parse([]byte("---\ndate: \"last tuesday\"\n---\nx"))
	if !errors.Is(err, ErrInvalidFrontmatter) {
		t.Fatalf("err = %v, want ErrInvalidFrontmatter", err)
	}
}

func TestParse_DraftAndCategories(t *testing.T) {
	r, err := Parse([]byte("---\ndraft: true\ncategories: c++ programming\ncategory: notes\n---\nx"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Draft {
		t.Error("draft flag lost")
	}
	want := []string{"c++", "programming", "notes"}
	if len(r.Categories) != len(want) {
		t.Fatalf("categories = %v, want %v", r.Categories, want)
	}
	for i := range want {
		if r.Categories[i] != want[i] {
			t.Errorf("categories[%d] = %q, want %q", i, r.Categories[i], want[i])
		}
	}
}

func TestHasFrontmatter(t *testing.T) {
	if !HasFrontmatter([]byte("---\nlayout: default\n---\n<p>x</p>")) {
		t.Error("expected front matter")
	}
	if HasFrontmatter([]byte("<html></html>")) {
		t.Error("plain html has no front matter")
	}
	if HasFrontmatter([]byte("---\nnever closed\n")) {
		t.Error("unterminated block is not front matter")
	}
}

func TestParsePostFilename(t *testing.T) {
	d, slug, ok := ParsePostFilename("2016-11-20-template-specialization.md")
	if !ok {
		t.Fatal("expected match")
	}
	if slug != "template-specialization" {
		t.Errorf("slug = %q", slug)
	}
	if d.Format("2006-01-02") != "2016-11-20" {
		t.Errorf("date = %v", d)
	}

	for _, bad := range []string{"about.md", "2016-11-20.md", "16-11-20-x.md", "2016-11-20-x.txt"} {
		if _, _, ok := ParsePostFilename(bad); ok {
			t.Errorf("%q should not match", bad)
		}
	}
}

func TestExtractExcerpt_MoreMarker(t *testing.T) {
	got := extractExcerpt(nil, "Intro one.\n\nIntro two.\n<!--more-->\nRest.")
	if got != "Intro one.\n\nIntro two." {
		t.Errorf("excerpt = %q", got)
	}
}

func TestExtractExcerpt_FirstParagraph(t *testing.T) {
	got := extractExcerpt(nil, "\nFirst paragraph\nstill first.\n\nSecond.")
	if got != "First paragraph\nstill first." {
		t.Errorf("excerpt = %q", got)
	}
}

func TestMergeLists_Dedup(t *testing.T) {
	fm := map[string]any{
		"tags": []any{"alpha", "beta"},
		"tag":  "alpha gamma",
	}
	tags := mergeLists(fm, "tags", "tag")
	if len(tags) != 3 || tags[0] != "alpha" || tags[1] != "beta" || tags[2] != "gamma" {
		t.Errorf("tags = %v, want [alpha beta gamma]", tags)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	if title := deriveTitle(fm, "# H1 Title\ntext"); title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	if title := deriveTitle(nil, "some text\n# My Heading #\nmore"); title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}
