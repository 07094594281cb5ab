package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/quire/internal/apperr"
)

// PostRow represents a row in the posts table.
type PostRow struct {
	Path           string    `json:"path"`
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Date           time.Time `json:"date"`
	Checksum       string    `json:"checksum"`
	Tags           []string  `json:"tags"`
	Words          int       `json:"words"`
	ReadingMinutes int       `json:"reading_minutes"`
}

// Post is a row together with its plain-text body.
type Post struct {
	PostRow
	Body string `json:"body"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// TagCount is a tag and the number of posts carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// UpsertPost inserts or replaces a post, its FTS entry, and its tags within a transaction.
func (db *DB) UpsertPost(p PostRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if p.Tags == nil {
		p.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(p.Tags)

	_, err = tx.Exec(`
		INSERT INTO posts (path, url, title, date, checksum, tags, words, reading_minutes, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			url             = excluded.url,
			title           = excluded.title,
			date            = excluded.date,
			checksum        = excluded.checksum,
			tags            = excluded.tags,
			words           = excluded.words,
			reading_minutes = excluded.reading_minutes,
			body            = excluded.body
	`, p.Path, p.URL, p.Title, p.Date.UTC(), p.Checksum, string(tagsJSON), p.Words, p.ReadingMinutes, body)
	if err != nil {
		return fmt.Errorf("index: upsert post: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, p.Path, p.Title, body, p.Tags); err != nil {
		return err
	}

	// Replace tags: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM post_tags WHERE path = ?`, p.Path)
	if len(p.Tags) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO post_tags (path, tag) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare tag insert: %w", err)
		}
		defer stmt.Close()
		for _, tag := range p.Tags {
			if _, err := stmt.Exec(p.Path, tag); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeletePost removes a post, its FTS entry, and its tags.
func (db *DB) DeletePost(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM post_tags WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM posts WHERE path = ?`, path)

	return tx.Commit()
}

// AllChecksums returns path → checksum for every indexed post.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// GetPost looks a post up by source path or by URL.
func (db *DB) GetPost(key string) (*Post, error) {
	row := db.conn.QueryRow(`
		SELECT path, url, title, date, checksum, tags, words, reading_minutes, body
		FROM posts
		WHERE path = ? OR url = ?
		LIMIT 1
	`, key, key)
	var (
		p    Post
		tags string
	)
	err := row.Scan(&p.Path, &p.URL, &p.Title, &p.Date, &p.Checksum, &tags, &p.Words, &p.ReadingMinutes, &p.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: post %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get post: %w", err)
	}
	_ = json.Unmarshal([]byte(tags), &p.Tags)
	return &p, nil
}

// ListPosts returns posts newest first and the total count matching tag.
// An empty tag matches every post.
func (db *DB) ListPosts(limit, offset int, tag string) ([]PostRow, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if tag != "" {
		where = `WHERE path IN (SELECT path FROM post_tags WHERE tag = ?)`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM posts `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count posts: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, url, title, date, checksum, tags, words, reading_minutes
		FROM posts `+where+`
		ORDER BY date DESC, path
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list posts: %w", err)
	}
	defer rows.Close()

	var out []PostRow
	for rows.Next() {
		var (
			r    PostRow
			tags string
		)
		if err := rows.Scan(&r.Path, &r.URL, &r.Title, &r.Date, &r.Checksum, &tags, &r.Words, &r.ReadingMinutes); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tags), &r.Tags)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Tags returns every tag with its post count, most used first.
func (db *DB) Tags() ([]TagCount, error) {
	rows, err := db.conn.Query(`
		SELECT tag, count(*) AS n
		FROM post_tags
		GROUP BY tag
		ORDER BY n DESC, tag
	`)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
