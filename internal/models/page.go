// Package models defines the domain types for quire.
package models

import (
	"html/template"
	"time"
)

// Kind tells posts, pages and copied files apart.
type Kind string

const (
	KindPost   Kind = "post"
	KindPage   Kind = "page"
	KindStatic Kind = "static"
)

// Page is a source document with front matter, after parsing and rendering.
type Page struct {
	Kind        Kind           `json:"kind"`
	Path        string         `json:"path"` // source path relative to the site root, slash separated
	URL         string         `json:"url"`
	OutputPath  string         `json:"-"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Body        string         `json:"-"`
	Content     template.HTML  `json:"-"`
	Excerpt     template.HTML  `json:"-"`
	Title       string         `json:"title"`
	Slug        string         `json:"slug,omitempty"`
	Layout      string         `json:"layout,omitempty"`
	Date        time.Time      `json:"date"`
	Tags        []string       `json:"tags,omitempty"`
	Categories  []string       `json:"categories,omitempty"`
	Draft       bool           `json:"draft,omitempty"`
	Words       int            `json:"words"`
	ReadingTime int            `json:"reading_time"`
	Checksum    string         `json:"checksum"`

	Previous *Page `json:"-"`
	Next     *Page `json:"-"`
}

// Param returns a front matter value, or nil.
func (p *Page) Param(key string) any {
	if p.Frontmatter == nil {
		return nil
	}
	return p.Frontmatter[key]
}

// StaticFile is a file copied to the output unchanged.
type StaticFile struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}

// FileMetadata is a lightweight representation returned by storage listings.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
