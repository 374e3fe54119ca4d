package index

import (
	"context"
	"log/slog"

	"github.com/lectern/lectern/internal/checksum"
	"github.com/lectern/lectern/internal/models"
	"github.com/lectern/lectern/internal/parser"
	"github.com/lectern/lectern/internal/storage"
)

// Sync walks the library and brings the index up to date:
//   - new and changed files are parsed and upserted (unchanged checksums are skipped)
//   - files no longer on disk are purged from the index
//
// An unreadable file is logged and skipped; it never aborts the scan.
// Cancelling ctx stops the walk between files, leaving whatever was already
// applied (each file is indexed in its own transaction, so the index is
// always in a previously-valid state).
func Sync(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data, m.ModifiedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Reconciliation pass: purge entries whose files vanished from disk.
	for p := range checksums {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts the resulting document. modifiedAt is
// the file's mtime in Unix millis; zero means "now".
func IndexFile(db DocumentIndex, path string, data []byte, modifiedAt int64) error {
	res := parser.Parse(path, data)
	return db.UpsertDocument(documentFromParse(path, data, res, modifiedAt))
}

func documentFromParse(path string, data []byte, res *parser.Result, modifiedAt int64) models.Document {
	return models.Document{
		Path:        path,
		Title:       res.Title,
		Content:     res.Content,
		RawContent:  res.RawContent,
		Frontmatter: res.Frontmatter,
		Tags:        res.Tags,
		Topics:      res.Topics,
		ContentType: res.ContentType,
		WordCount:   res.WordCount,
		Checksum:    checksum.Sum(data),
		ModifiedAt:  modifiedAt,
	}
}
