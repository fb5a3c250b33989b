package source

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"claudehist/internal/store"
)

// HistoryLogExtractor loads the single append-only history.jsonl file.
// The whole-file mtime/size fingerprint is the only incremental guard:
// any change reprocesses the file in full, so rows are keyed by line
// number and upserted rather than plainly inserted.
type HistoryLogExtractor struct {
	base
}

func (e *HistoryLogExtractor) Name() string { return "history" }

func (e *HistoryLogExtractor) Extract(dryRun bool) Result {
	started := time.Now()
	var res Result
	defer e.finish(e.Name(), started, &res)

	historyFile := filepath.Join(e.sourceDir, "history.jsonl")
	if _, err := os.Stat(historyFile); err != nil {
		if os.IsNotExist(err) {
			slog.Info("history file not found", "path", historyFile)
			return res
		}
		res.ErrorsCount++
		return res
	}

	due, err := e.tracker.ShouldProcess(e.Name(), historyFile)
	if err != nil {
		res.ErrorsCount++
		return res
	}
	if !due {
		slog.Info("history file not modified since last run")
		return res
	}

	inserted, err := e.processHistoryFile(historyFile, dryRun)
	if err != nil {
		slog.Error("processing history file", "error", err)
		res.ErrorsCount++
		return res
	}
	res.RecordsInserted = inserted
	res.FilesProcessed = 1

	if !dryRun {
		if err := e.tracker.MarkProcessed(e.Name(), historyFile); err != nil {
			slog.Error("marking file processed", "file", historyFile, "error", err)
			res.ErrorsCount++
		}
	}

	return res
}

func (e *HistoryLogExtractor) processHistoryFile(path string, dryRun bool) (int, error) {
	var rows [][]any

	_, err := streamJSONL(path, func(lineNo int, entry map[string]any) {
		// The timestamp field appears both as an ISO string and as an
		// epoch-seconds number across versions of the log format.
		var timestamp string
		switch ts := entry["timestamp"].(type) {
		case string:
			timestamp = ts
		case float64:
			timestamp = time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
		default:
			timestamp = time.Now().Format(time.RFC3339)
		}
		rows = append(rows, []any{
			lineNo, timestamp,
			nullable(jsonString(entry, "project_path")),
			jsonString(entry, "display"),
		})
	})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if dryRun {
		return len(rows), nil
	}

	return e.db.ExecuteBatch(`
		INSERT OR REPLACE INTO history_log
		(line_no, timestamp, project_path, display)
		VALUES (?, ?, ?, ?)`,
		rows, store.DefaultBatchSize)
}
