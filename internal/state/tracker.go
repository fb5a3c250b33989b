// Package state tracks per-file processing fingerprints so repeated runs
// only touch files that changed.
package state

import (
	"fmt"
	"os"
	"time"

	"claudehist/internal/store"
)

// Tracker decides whether a candidate file needs (re)processing this run
// and durably records that it was. Each method runs in its own
// transaction; marks for different files are committed independently, so
// a crash mid-run loses at most the in-flight file's bookkeeping.
type Tracker struct {
	db    store.Backend
	force bool
	runTS time.Time
}

// New creates a tracker for one run. force makes ShouldProcess return
// true unconditionally.
func New(db store.Backend, force bool) *Tracker {
	return &Tracker{
		db:    db,
		force: force,
		runTS: time.Now(),
	}
}

// RunTimestamp is the start time shared by every mark and run log in
// this run.
func (t *Tracker) RunTimestamp() time.Time {
	return t.runTS
}

// ShouldProcess reports whether path is due for processing: always under
// force, otherwise when the file is new, its mtime moved strictly
// forward, or its size changed (which catches truncation or overwrite
// under an older-or-equal mtime).
func (t *Tracker) ShouldProcess(source, path string) (bool, error) {
	if t.force {
		return true, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	row, err := t.db.QueryOne(
		"SELECT mtime_ns, size FROM etl_file_state WHERE file_path = ?", path)
	if err != nil {
		return false, fmt.Errorf("reading file state for %s: %w", path, err)
	}
	if row == nil {
		return true, nil // new file
	}

	return info.ModTime().UnixNano() > row.Int64("mtime_ns") ||
		info.Size() != row.Int64("size"), nil
}

// MarkProcessed upserts the file's fingerprint. Callers must invoke it
// only after the file's records have been durably written: marking first
// would silently lose the file forever if the write then failed.
func (t *Tracker) MarkProcessed(source, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	return t.db.Transaction(func(tx store.Tx) error {
		return tx.Exec(`
			INSERT OR REPLACE INTO etl_file_state
			(file_path, source, mtime_ns, size, last_processed)
			VALUES (?, ?, ?, ?, ?)`,
			path, source, info.ModTime().UnixNano(), info.Size(),
			t.runTS.Format(time.RFC3339),
		)
	})
}

// LogRun appends one run-log row for a source. Rows are append-only and
// never aggregated across calls.
func (t *Tracker) LogRun(source string, files, records, errors int, duration time.Duration, status string) error {
	return t.db.Transaction(func(tx store.Tx) error {
		return tx.Exec(`
			INSERT INTO etl_runs
			(run_timestamp, source, files_processed, records_inserted,
			 errors_count, duration_seconds, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.runTS.Format(time.RFC3339), source, files, records, errors,
			duration.Seconds(), status,
		)
	})
}
