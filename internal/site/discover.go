package site

import (
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/storage"
)

// Special source directories.
const (
	PostsDir  = "_posts"
	DraftsDir = "_drafts"
)

type source struct {
	path     string
	data     []byte
	checksum string
	modTime  time.Time
	draft    bool
}

// IsMarkdown reports whether ext names a markdown file.
func IsMarkdown(ext string) bool {
	switch strings.ToLower(ext) {
	case ".md", ".markdown", ".mkd", ".mkdn":
		return true
	}
	return false
}

func isPostSource(ext string) bool {
	return IsMarkdown(ext) || strings.EqualFold(ext, ".html")
}

func under(rel, dir string) bool {
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}

// Skip returns the discovery filter for the source tree: dot files,
// underscore entries other than the post directories, configured excludes
// and the destination directory are left out.
func (b *Builder) Skip(srcRoot string) storage.SkipFunc {
	destRel := ""
	if abs, err := filepath.Abs(b.opts.Destination); err == nil {
		if rel, err := filepath.Rel(srcRoot, abs); err == nil && !strings.HasPrefix(rel, "..") && rel != "." {
			destRel = filepath.ToSlash(rel)
		}
	}
	return func(rel string, isDir bool) bool {
		if destRel != "" && under(rel, destRel) {
			return true
		}
		base := path.Base(rel)
		if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasPrefix(base, "#") {
			return true
		}
		switch {
		case under(rel, PostsDir):
		case under(rel, DraftsDir):
			if !b.opts.Drafts {
				return true
			}
		case strings.HasPrefix(base, "_"):
			return true
		}
		return Excluded(b.opts.Exclude, rel)
	}
}

// Excluded reports whether rel matches one of the exclude patterns. A
// pattern matches the whole path, the base name, or a leading directory.
func Excluded(patterns []string, rel string) bool {
	base := path.Base(rel)
	for _, pat := range patterns {
		pat = strings.Trim(filepath.ToSlash(pat), "/")
		if pat == "" {
			continue
		}
		if ok, _ := path.Match(pat, rel); ok {
			return true
		}
		if ok, _ := path.Match(pat, base); ok {
			return true
		}
		if strings.HasPrefix(rel, pat+"/") {
			return true
		}
	}
	return false
}

func (r *run) discover() error {
	metas, err := r.src.List("", r.b.Skip(r.src.Root()))
	if err != nil {
		return err
	}
	for _, m := range metas {
		ext := path.Ext(m.Path)
		inPosts, inDrafts := under(m.Path, PostsDir), under(m.Path, DraftsDir)
		if (inPosts || inDrafts) && !isPostSource(ext) {
			r.b.logger.Debug("discover: ignoring non-post file", slog.String("path", m.Path))
			continue
		}
		data, err := r.src.Read(m.Path)
		if err != nil {
			return err
		}
		s := source{path: m.Path, data: data, checksum: m.Checksum, modTime: m.UpdatedAt, draft: inDrafts}
		switch {
		case inPosts || inDrafts:
			r.postSources = append(r.postSources, s)
		case parser.HasFrontmatter(data):
			r.pageSources = append(r.pageSources, s)
		default:
			r.static = append(r.static, models.StaticFile{Path: m.Path, ModTime: m.UpdatedAt})
		}
	}
	r.b.logger.Debug("discover: done",
		slog.Int("posts", len(r.postSources)),
		slog.Int("pages", len(r.pageSources)),
		slog.Int("static", len(r.static)))
	return nil
}
