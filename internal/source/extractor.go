// Package source implements the extractors that walk a Claude Code data
// directory and emit normalized rows to the database backend. One
// extractor exists per on-disk format; all of them share the same
// incremental skeleton: enumerate candidates, consult the state tracker,
// parse, write, mark processed, log the run.
package source

import (
	"encoding/json"
	"log/slog"
	"time"

	"claudehist/internal/state"
	"claudehist/internal/store"
)

// Result is the outcome of one extractor run. Per-file failures are
// folded into ErrorsCount; Extract never panics or propagates them.
type Result struct {
	FilesProcessed  int
	RecordsInserted int
	ErrorsCount     int
	Duration        time.Duration
}

// Status is "success" when the run had no errors, "partial" otherwise.
func (r Result) Status() string {
	if r.ErrorsCount > 0 {
		return "partial"
	}
	return "success"
}

// Extractor walks one data source and loads it into the database.
type Extractor interface {
	Name() string

	// Extract processes every candidate due per the state tracker. With
	// dryRun set it parses and counts without writing rows or touching
	// file state. A missing source directory yields a zero Result, not
	// an error.
	Extract(dryRun bool) Result
}

// base carries the collaborators every extractor needs.
type base struct {
	db        store.Backend
	tracker   *state.Tracker
	sourceDir string
}

// finish stamps the duration and appends the run-log row.
func (b base) finish(name string, started time.Time, res *Result) {
	res.Duration = time.Since(started)
	if err := b.tracker.LogRun(name, res.FilesProcessed, res.RecordsInserted,
		res.ErrorsCount, res.Duration, res.Status()); err != nil {
		slog.Error("recording run log", "source", name, "error", err)
	}
}

// All returns every extractor in its fixed run order.
func All(db store.Backend, tracker *state.Tracker, sourceDir string) []Extractor {
	b := base{db: db, tracker: tracker, sourceDir: sourceDir}
	return []Extractor{
		&ProjectsExtractor{base: b},
		&TodosExtractor{base: b},
		&FileHistoryExtractor{base: b},
		&HistoryLogExtractor{base: b},
		&PlansExtractor{base: b},
		&ShellSnapshotsExtractor{base: b},
	}
}

// jsonString returns the string value of a key, or "" when absent or not
// a string.
func jsonString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// jsonBool returns the bool value of a key, false when absent.
func jsonBool(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

// jsonInt returns a numeric field as int64, or nil when absent, so token
// counts stay NULL in the database rather than becoming 0.
func jsonInt(m map[string]any, key string) any {
	if f, ok := m[key].(float64); ok {
		return int64(f)
	}
	return nil
}

// nullable converts "" to nil so optional text columns store NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// marshalCompact renders v as compact JSON, "" on failure.
func marshalCompact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
