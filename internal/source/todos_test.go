package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTodoFilename(t *testing.T) {
	tests := []struct {
		filename string
		parent   string
		ref      string
	}{
		{"sess-1-agent-sess-1.json", "sess-1", "sess-1"},
		{"sess-1-agent-sub-9.json", "sess-1", "sub-9"},
		{"plainname.json", "plainname", ""},
	}
	for _, tt := range tests {
		parent, ref := parseTodoFilename(tt.filename)
		assert.Equal(t, tt.parent, parent, tt.filename)
		assert.Equal(t, tt.ref, ref, tt.filename)
	}
}

func TestTodosExtract(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "todos/P-agent-P.json",
		`[{"content":"write tests","activeForm":"writing tests","status":"in_progress"},{"content":"ship it"}]`)

	e := &TodosExtractor{base: env.base()}
	res := e.Extract(false)

	assert.Equal(t, 1, res.FilesProcessed)
	assert.Equal(t, 2, res.RecordsInserted)
	assert.Equal(t, 0, res.ErrorsCount)

	first, err := env.db.QueryOne("SELECT * FROM todos WHERE id = ?", "P-P-0")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "P", first.String("parent_session_id"))
	assert.Equal(t, "P", first.String("ref_session_id"))
	assert.Equal(t, "write tests", first.String("content"))
	assert.Equal(t, "writing tests", first.String("active_form"))
	assert.Equal(t, "in_progress", first.String("status"))
	assert.Nil(t, first["agent_id"], "no matching agent row means NULL")

	second, err := env.db.QueryOne("SELECT * FROM todos WHERE id = ?", "P-P-1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "pending", second.String("status"), "missing status defaults to pending")
	assert.Equal(t, int64(1), second.Int64("sequence"))
}

func TestTodosExtract_AgentLink(t *testing.T) {
	env := newTestEnv(t)

	// Seed the agent the ref id points at.
	_, err := env.db.ExecuteBatch(
		"INSERT INTO agents (id, session_id) VALUES (?, ?)",
		[][]any{{"ag-1", "sub-9"}}, 100)
	require.NoError(t, err)

	env.write(t, "todos/sess-1-agent-sub-9.json", `[{"content":"delegate"}]`)

	e := &TodosExtractor{base: env.base()}
	res := e.Extract(false)
	require.Equal(t, 0, res.ErrorsCount)

	row, err := env.db.QueryOne("SELECT agent_id FROM todos WHERE id = ?", "sess-1-sub-9-0")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "ag-1", row.String("agent_id"))
}

func TestTodosExtract_EmptyAndMalformed(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "todos/empty-agent-empty.json", `[]`)
	env.write(t, "todos/bad-agent-bad.json", `{"not":"an array"}`)

	e := &TodosExtractor{base: env.base()}
	res := e.Extract(false)

	assert.Equal(t, 1, res.FilesProcessed, "the empty list still counts as processed")
	assert.Equal(t, 0, res.RecordsInserted)
	assert.Equal(t, 1, res.ErrorsCount, "the malformed file is an error, not a crash")
	assert.EqualValues(t, 0, env.count(t, "todos"))
}

func TestTodosExtract_IdempotentRerun(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "todos/P-agent-P.json", `[{"content":"once"}]`)

	e := &TodosExtractor{base: env.base()}
	require.Equal(t, 1, e.Extract(false).RecordsInserted)

	second := e.Extract(false)
	assert.Equal(t, 0, second.FilesProcessed)
	assert.Equal(t, 0, second.RecordsInserted)
	assert.EqualValues(t, 1, env.count(t, "todos"))
}
