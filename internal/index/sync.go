package index

import (
	"log/slog"

	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/filters"
	"github.com/starford/quire/internal/models"
)

// Sync brings the index up to date with the posts of a finished build:
//   - new/changed posts (by source checksum) are upserted
//   - posts no longer in the build are deleted from the index
func Sync(db PostIndex, posts []*models.Page, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	built := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		built[p.Path] = struct{}{}

		row := rowFor(p)
		if checksums[p.Path] == row.Checksum {
			continue
		}
		if err := db.UpsertPost(row, filters.StripHTML(p.Content)); err != nil {
			logger.Warn("sync: index failed", slog.String("path", p.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", p.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := built[p]; !ok {
			if err := db.DeletePost(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// rowFor maps a built post to its row. The stored checksum covers the URL as
// well as the source so a permalink change re-indexes the post.
func rowFor(p *models.Page) PostRow {
	return PostRow{
		Path:           p.Path,
		URL:            p.URL,
		Title:          p.Title,
		Date:           p.Date,
		Checksum:       checksum.Sum([]byte(p.Checksum + "\x00" + p.URL)),
		Tags:           p.Tags,
		Words:          p.Words,
		ReadingMinutes: p.ReadingTime,
	}
}
