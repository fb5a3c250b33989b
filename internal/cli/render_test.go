package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"claudehist/internal/pipeline"
	"claudehist/internal/source"
	"claudehist/internal/store"
)

func sampleSummary() *pipeline.Summary {
	return &pipeline.Summary{
		Results: []pipeline.SourceResult{
			{Source: "projects", Result: source.Result{
				FilesProcessed: 3, RecordsInserted: 1200, Duration: 870 * time.Millisecond}},
			{Source: "todos", Result: source.Result{
				FilesProcessed: 1, RecordsInserted: 4, ErrorsCount: 1, Duration: 20 * time.Millisecond}},
		},
		TotalFiles:   4,
		TotalRecords: 1204,
		TotalErrors:  1,
	}
}

func TestRenderSummary_Plain(t *testing.T) {
	var buf strings.Builder
	RenderSummary(&buf, sampleSummary(), false)
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, "source\tfiles\trecords\terrors\tduration\tstatus", lines[0])
	assert.Equal(t, "projects\t3\t1200\t0\t870ms\tsuccess", lines[1])
	assert.Equal(t, "todos\t1\t4\t1\t20ms\tpartial", lines[2])
	assert.Equal(t, "total\t4\t1204\t1", lines[3])
}

func TestRenderSummary_Styled(t *testing.T) {
	var buf strings.Builder
	RenderSummary(&buf, sampleSummary(), true)
	out := buf.String()

	assert.Contains(t, out, "Sync complete")
	assert.Contains(t, out, "projects")
	assert.Contains(t, out, "1,200", "styled output gets thousands separators")
	assert.Contains(t, out, "partial")
}

func TestRenderSummary_DryRunTitle(t *testing.T) {
	s := sampleSummary()
	s.DryRun = true

	var buf strings.Builder
	RenderSummary(&buf, s, true)
	assert.Contains(t, buf.String(), "Dry run (no data committed)")
}

func TestRenderRuns_Plain(t *testing.T) {
	rows := []store.Row{{
		"run_timestamp": "2026-08-31T10:00:00Z", "source": "projects",
		"files_processed": int64(3), "records_inserted": int64(12),
		"errors_count": int64(0), "duration_seconds": 1.5, "status": "success",
	}}

	var buf strings.Builder
	RenderRuns(&buf, rows, false)
	assert.Contains(t, buf.String(), "2026-08-31T10:00:00Z\tprojects\t3\t12\t0\t1.5\tsuccess")
}

func TestRenderStats_Plain(t *testing.T) {
	var buf strings.Builder
	RenderStats(&buf, []string{"sessions", "messages"},
		map[string]int64{"sessions": 2, "messages": 40}, false)
	assert.Equal(t, "sessions\t2\nmessages\t40\n", buf.String())
}
