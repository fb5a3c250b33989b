package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claudehist/internal/state"
	"claudehist/internal/store"
)

// seedSourceDir lays out a minimal Claude data directory touching every
// extractor.
func seedSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"projects/-Users-alice-app/s-1.jsonl": `{"uuid":"u1","sessionId":"s-1","timestamp":"2026-08-30T10:00:00Z","message":{"role":"user","content":"hello"}}` + "\n",
		"todos/s-1-agent-s-1.json":            `[{"content":"finish","status":"pending"}]`,
		"file-history/s-1/abc@v1":             "original content\n",
		"history.jsonl":                       `{"display":"hello","timestamp":"2026-08-30T10:00:00Z"}` + "\n",
		"plans/work.md":                       "# The plan\n",
		"shell-snapshots/snapshot-zsh-1756500000000-a.sh": "export A=1\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func newTestDB(t *testing.T) store.Backend {
	t.Helper()
	db := store.NewLocal(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, db.Connect())
	require.NoError(t, db.SetupSchema())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func count(t *testing.T, db store.Backend, table string) int64 {
	t.Helper()
	row, err := db.QueryOne("SELECT COUNT(*) AS n FROM " + table)
	require.NoError(t, err)
	return row.Int64("n")
}

func TestRun_AllSources(t *testing.T) {
	db := newTestDB(t)
	dir := seedSourceDir(t)

	summary, err := Run(db, state.New(db, false), Options{SourceDir: dir})
	require.NoError(t, err)

	assert.Len(t, summary.Results, 6)
	assert.Equal(t, 6, summary.TotalFiles)
	assert.Equal(t, 0, summary.TotalErrors)
	assert.True(t, summary.OK())

	assert.EqualValues(t, 1, count(t, db, "projects"))
	assert.EqualValues(t, 1, count(t, db, "sessions"))
	assert.EqualValues(t, 1, count(t, db, "messages"))
	assert.EqualValues(t, 1, count(t, db, "todos"))
	assert.EqualValues(t, 1, count(t, db, "file_versions"))
	assert.EqualValues(t, 1, count(t, db, "history_log"))
	assert.EqualValues(t, 1, count(t, db, "plans"))
	assert.EqualValues(t, 1, count(t, db, "shell_snapshots"))
	assert.EqualValues(t, 6, count(t, db, "etl_runs"), "one run-log row per source")
}

func TestRun_IdempotentRerun(t *testing.T) {
	db := newTestDB(t)
	dir := seedSourceDir(t)

	_, err := Run(db, state.New(db, false), Options{SourceDir: dir})
	require.NoError(t, err)

	second, err := Run(db, state.New(db, false), Options{SourceDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalFiles)
	assert.Equal(t, 0, second.TotalRecords, "nothing changed, nothing reported")
	assert.Equal(t, 0, second.TotalErrors)
}

func TestRun_ForceReprocessesWithoutDuplicating(t *testing.T) {
	db := newTestDB(t)
	dir := seedSourceDir(t)

	_, err := Run(db, state.New(db, false), Options{SourceDir: dir})
	require.NoError(t, err)

	forced, err := Run(db, state.New(db, true), Options{SourceDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 6, forced.TotalFiles, "force reprocesses every file")

	for _, table := range []string{"projects", "sessions", "messages", "todos",
		"file_versions", "history_log", "plans", "shell_snapshots"} {
		assert.EqualValues(t, 1, count(t, db, table), table)
	}
}

func TestRun_DryRunLeavesNoTrace(t *testing.T) {
	db := newTestDB(t)
	dir := seedSourceDir(t)

	dry, err := Run(db, state.New(db, false), Options{SourceDir: dir, DryRun: true})
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Equal(t, 6, dry.TotalFiles)
	assert.Positive(t, dry.TotalRecords)

	for _, table := range []string{"projects", "sessions", "messages", "todos",
		"file_versions", "history_log", "plans", "shell_snapshots", "etl_file_state"} {
		assert.EqualValues(t, 0, count(t, db, table), table)
	}

	// A dry run must not consume the incremental state either: the real
	// run that follows sees everything as new.
	real, err := Run(db, state.New(db, false), Options{SourceDir: dir})
	require.NoError(t, err)
	assert.Equal(t, dry.TotalRecords, real.TotalRecords, "dry-run counts match the real run")
}

func TestRun_MissingSourceDir(t *testing.T) {
	db := newTestDB(t)

	_, err := Run(db, state.New(db, false), Options{
		SourceDir: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source directory not found")
}

func TestRun_SourceFilter(t *testing.T) {
	db := newTestDB(t)
	dir := seedSourceDir(t)

	summary, err := Run(db, state.New(db, false), Options{
		SourceDir: dir,
		Sources:   []string{"todos", "history", "not-a-source"},
	})
	require.NoError(t, err)

	require.Len(t, summary.Results, 2, "unknown names are dropped with a warning")
	assert.Equal(t, "todos", summary.Results[0].Source)
	assert.Equal(t, "history", summary.Results[1].Source)

	assert.EqualValues(t, 0, count(t, db, "sessions"), "unselected sources never run")
	assert.EqualValues(t, 1, count(t, db, "todos"))
	assert.EqualValues(t, 1, count(t, db, "history_log"))
}
