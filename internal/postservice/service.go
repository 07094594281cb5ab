// Package postservice answers questions about the published posts. The dev
// server API, the MCP server and "quire new" share it.
package postservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/filters"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/storage"
)

// PostDetail is the full representation of a post.
type PostDetail struct {
	index.PostRow
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	// Source is the raw markdown file.
	Source string `json:"source"`
	// Text is the rendered body with markup removed.
	Text string `json:"text"`
}

// PostListItem is a lightweight item in a list response.
type PostListItem = index.PostRow

// ReadingTime is the result of measuring a text.
type ReadingTime struct {
	Words   int `json:"words"`
	Minutes int `json:"minutes"`
}

// NewPost describes a post to scaffold.
type NewPost struct {
	Title string
	// Slug defaults to the slugified title.
	Slug   string
	Tags   []string
	Layout string
	Draft  bool
	Body   string
}

// Service reads the post index and the source tree.
type Service struct {
	store   storage.Provider
	db      index.PostIndex
	filters *filters.Filters
	now     func() time.Time
}

// NewService creates a post service over the source tree store. db may be
// nil for callers that only scaffold posts.
func NewService(store storage.Provider, db index.PostIndex, f *filters.Filters) *Service {
	return &Service{store: store, db: db, filters: f, now: time.Now}
}

// ListPosts returns paginated posts, newest first, with optional tag filter.
func (s *Service) ListPosts(_ context.Context, limit, offset int, tag string) ([]PostListItem, int, error) {
	rows, total, err := s.db.ListPosts(limit, offset, tag)
	if err != nil {
		return nil, 0, err
	}
	for i := range rows {
		rows[i].Tags = nonNilSlice(rows[i].Tags)
	}
	return nonNilSlice(rows), total, nil
}

// GetPost finds a post by source path or URL and adds its source file.
func (s *Service) GetPost(_ context.Context, key string) (*PostDetail, error) {
	p, err := s.db.GetPost(key)
	if err != nil {
		return nil, err
	}
	detail := &PostDetail{PostRow: p.PostRow, Text: p.Body}
	detail.Tags = nonNilSlice(detail.Tags)

	data, err := s.store.Read(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("postservice: %s: %w", p.Path, apperr.ErrNotFound)
		}
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	detail.Frontmatter = res.Frontmatter
	detail.Source = string(data)
	return detail, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	results, err := s.db.Search(query, limit)
	return nonNilSlice(results), err
}

// Tags returns every tag with its post count.
func (s *Service) Tags(_ context.Context) ([]index.TagCount, error) {
	tags, err := s.db.Tags()
	return nonNilSlice(tags), err
}

// ReadingTime measures text, which may contain HTML.
func (s *Service) ReadingTime(text string) ReadingTime {
	return ReadingTime{Words: filters.NumberOfWords(text), Minutes: s.filters.ReadingTime(text)}
}

// ImageSize reports the dimensions of an image in the source tree.
func (s *Service) ImageSize(p string) (filters.ImageSize, error) {
	return s.filters.ImageSize(p)
}

type scaffold struct {
	Layout string   `yaml:"layout"`
	Title  string   `yaml:"title"`
	Date   string   `yaml:"date,omitempty"`
	Tags   []string `yaml:"tags,omitempty"`
	UUID   string   `yaml:"uuid"`
}

// CreatePost writes a new post with front matter to _posts (or _drafts)
// and returns its source path. Existing files are never overwritten.
func (s *Service) CreatePost(_ context.Context, np NewPost) (string, error) {
	title := strings.TrimSpace(np.Title)
	if title == "" {
		return "", fmt.Errorf("postservice: title is required")
	}
	slug := filters.Slugify(np.Slug)
	if slug == "" {
		slug = filters.Slugify(title)
	}
	if slug == "" {
		return "", fmt.Errorf("postservice: cannot derive a slug from %q", title)
	}
	layout := np.Layout
	if layout == "" {
		layout = "post"
	}

	now := s.now()
	fm := scaffold{Layout: layout, Title: title, Tags: np.Tags, UUID: uuid.NewString()}
	var p string
	if np.Draft {
		p = path.Join("_drafts", slug+".md")
	} else {
		p = path.Join("_posts", now.Format("2006-01-02")+"-"+slug+".md")
		fm.Date = now.Format("2006-01-02 15:04:05 -0700")
	}
	if s.store.Exists(p) {
		return "", fmt.Errorf("postservice: %s: %w", p, apperr.ErrAlreadyExists)
	}

	head, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("postservice: encode front matter: %w", err)
	}
	body := np.Body
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	content := "---\n" + string(head) + "---\n\n" + body
	if err := s.store.Write(p, []byte(content)); err != nil {
		return "", err
	}
	return p, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
