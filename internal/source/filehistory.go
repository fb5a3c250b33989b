package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"claudehist/internal/store"
)

// FileHistoryExtractor loads edited-file snapshots from the
// file-history/ directory: one subdirectory per session, one file per
// (content-hash, version) pair named {hash}@v{version}.
type FileHistoryExtractor struct {
	base
}

func (e *FileHistoryExtractor) Name() string { return "file-history" }

func (e *FileHistoryExtractor) Extract(dryRun bool) Result {
	started := time.Now()
	var res Result
	defer e.finish(e.Name(), started, &res)

	historyDir := filepath.Join(e.sourceDir, "file-history")
	sessions, err := os.ReadDir(historyDir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("file-history directory not found", "path", historyDir)
			return res
		}
		slog.Error("reading file-history directory", "path", historyDir, "error", err)
		res.ErrorsCount++
		return res
	}

	slog.Info("found file-history sessions", "count", len(sessions))

	for _, session := range sessions {
		if !session.IsDir() {
			continue
		}
		sessionID := session.Name()

		versions, err := os.ReadDir(filepath.Join(historyDir, sessionID))
		if err != nil {
			slog.Error("reading session directory", "session", sessionID, "error", err)
			res.ErrorsCount++
			continue
		}

		for _, version := range versions {
			if version.IsDir() {
				continue
			}
			path := filepath.Join(historyDir, sessionID, version.Name())

			due, err := e.tracker.ShouldProcess(e.Name(), path)
			if err != nil {
				res.ErrorsCount++
				continue
			}
			if !due {
				continue
			}

			if err := e.processVersionFile(sessionID, path, dryRun); err != nil {
				slog.Error("processing file version", "file", version.Name(), "error", err)
				res.ErrorsCount++
				continue
			}
			res.RecordsInserted++
			res.FilesProcessed++

			if !dryRun {
				if err := e.tracker.MarkProcessed(e.Name(), path); err != nil {
					slog.Error("marking file processed", "file", path, "error", err)
					res.ErrorsCount++
				}
			}
		}
	}

	return res
}

// parseVersionFilename splits {hash}@v{version}. Names missing the
// marker map to version 0 with the whole name as hash.
func parseVersionFilename(filename string) (hash string, version int) {
	if idx := strings.LastIndex(filename, "@v"); idx >= 0 {
		if v, err := strconv.Atoi(filename[idx+2:]); err == nil {
			return filename[:idx], v
		}
	}
	return filename, 0
}

func (e *FileHistoryExtractor) processVersionFile(sessionID, path string, dryRun bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Lossy UTF-8 decode: invalid byte sequences become replacement runes.
	content := strings.ToValidUTF8(string(raw), "�")

	hash, version := parseVersionFilename(filepath.Base(path))
	fileID := fmt.Sprintf("%s/%s@v%d", sessionID, hash, version)

	if dryRun {
		return nil
	}

	return e.db.Transaction(func(tx store.Tx) error {
		return tx.Exec(`
			INSERT OR IGNORE INTO file_versions
			(id, session_id, file_hash, version, content, file_size)
			VALUES (?, ?, ?, ?, ?, ?)`,
			fileID, sessionID, hash, version, content, len(content),
		)
	})
}
