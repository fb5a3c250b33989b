// Package pipeline orchestrates a full extraction run: it selects
// extractors, drives them strictly sequentially in a fixed order, and
// aggregates per-source results.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"claudehist/internal/source"
	"claudehist/internal/state"
	"claudehist/internal/store"
)

// Options selects what a run processes.
type Options struct {
	// SourceDir is the Claude data directory root.
	SourceDir string
	// Sources optionally restricts the run to the named extractors.
	// Empty means all, in their fixed order.
	Sources []string
	// DryRun parses and counts without writing rows or file state.
	DryRun bool
}

// SourceResult pairs an extractor name with its outcome.
type SourceResult struct {
	Source string
	source.Result
}

// Summary aggregates a whole run.
type Summary struct {
	Results      []SourceResult
	TotalFiles   int
	TotalRecords int
	TotalErrors  int
	DryRun       bool
}

// OK reports whether every selected source completed without errors.
func (s *Summary) OK() bool {
	return s.TotalErrors == 0
}

// Run executes the selected extractors sequentially and returns the
// aggregate summary. A missing source directory is fatal; per-file
// failures inside an extractor are not — they surface only in the error
// counts.
func Run(db store.Backend, tracker *state.Tracker, opts Options) (*Summary, error) {
	if _, err := os.Stat(opts.SourceDir); err != nil {
		return nil, fmt.Errorf("source directory not found: %s", opts.SourceDir)
	}

	extractors := source.All(db, tracker, opts.SourceDir)
	if len(opts.Sources) > 0 {
		extractors = filterExtractors(extractors, opts.Sources)
	}

	summary := &Summary{DryRun: opts.DryRun}
	for _, ex := range extractors {
		slog.Info("processing source", "source", ex.Name())

		res := ex.Extract(opts.DryRun)
		slog.Info("source complete",
			"source", ex.Name(),
			"files", res.FilesProcessed,
			"records", res.RecordsInserted,
			"errors", res.ErrorsCount,
			"duration", res.Duration.Round(time.Millisecond),
		)

		summary.Results = append(summary.Results, SourceResult{Source: ex.Name(), Result: res})
		summary.TotalFiles += res.FilesProcessed
		summary.TotalRecords += res.RecordsInserted
		summary.TotalErrors += res.ErrorsCount
	}

	return summary, nil
}

// filterExtractors keeps the requested sources in run order, warning
// about names that match nothing.
func filterExtractors(extractors []source.Extractor, requested []string) []source.Extractor {
	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		want[strings.TrimSpace(name)] = true
	}

	var kept []source.Extractor
	for _, ex := range extractors {
		if want[ex.Name()] {
			kept = append(kept, ex)
			delete(want, ex.Name())
		}
	}
	for name := range want {
		slog.Warn("unknown source requested", "source", name)
	}
	return kept
}
