package source

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"claudehist/internal/store"
)

// ShellSnapshotsExtractor loads shell environment snapshots from the
// shell-snapshots/ directory. Filenames encode the shell type and a
// millisecond epoch timestamp: snapshot-{shell}-{ms}-{random}.sh.
type ShellSnapshotsExtractor struct {
	base
}

func (e *ShellSnapshotsExtractor) Name() string { return "shell-snapshots" }

func (e *ShellSnapshotsExtractor) Extract(dryRun bool) Result {
	started := time.Now()
	var res Result
	defer e.finish(e.Name(), started, &res)

	snapshotsDir := filepath.Join(e.sourceDir, "shell-snapshots")
	files, err := filepath.Glob(filepath.Join(snapshotsDir, "snapshot-*.sh"))
	if err != nil || len(files) == 0 {
		if err != nil {
			res.ErrorsCount++
		} else {
			slog.Info("shell-snapshots directory empty or missing", "path", snapshotsDir)
		}
		return res
	}
	sort.Strings(files)

	slog.Info("found shell snapshots", "count", len(files))

	for _, path := range files {
		due, err := e.tracker.ShouldProcess(e.Name(), path)
		if err != nil {
			res.ErrorsCount++
			continue
		}
		if !due {
			continue
		}

		if err := e.processSnapshot(path, dryRun); err != nil {
			slog.Error("processing snapshot", "file", filepath.Base(path), "error", err)
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

	return res
}

// parseSnapshotFilename extracts the shell type and millisecond epoch
// from snapshot-{shell}-{ms}-{random}.sh. Unparseable names fall back to
// ("unknown", 0).
func parseSnapshotFilename(filename string) (shellType string, timestampMs int64) {
	name := strings.TrimSuffix(filename, ".sh")
	name = strings.TrimPrefix(name, "snapshot-")

	parts := strings.Split(name, "-")
	if len(parts) >= 2 {
		if ms, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			return parts[0], ms
		}
	}
	return "unknown", 0
}

func (e *ShellSnapshotsExtractor) processSnapshot(path string, dryRun bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := strings.ToValidUTF8(string(raw), "�")

	shellType, timestampMs := parseSnapshotFilename(filepath.Base(path))
	timestamp := time.Now()
	if timestampMs > 0 {
		timestamp = time.UnixMilli(timestampMs)
	}

	snapshotID := strings.TrimSuffix(filepath.Base(path), ".sh")

	sum := sha256.Sum256([]byte(content))
	contentHash := hex.EncodeToString(sum[:])

	if dryRun {
		return nil
	}

	return e.db.Transaction(func(tx store.Tx) error {
		return tx.Exec(`
			INSERT OR IGNORE INTO shell_snapshots
			(id, timestamp, shell_type, content, content_hash)
			VALUES (?, ?, ?, ?, ?)`,
			snapshotID, timestamp.Format(time.RFC3339), shellType, content, contentHash,
		)
	})
}
