package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWrangler writes a shell script that emits the given stdout and
// exits with the given code, so remote tests never touch a real CLI.
func fakeWrangler(t *testing.T, stdout string, exitCode int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wrangler")
	script := fmt.Sprintf("#!/bin/sh\nprintf '%%s' '%s'\nexit %d\n", stdout, exitCode)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestRemoteConnect_Success(t *testing.T) {
	b := NewRemote("test-db")
	b.wrangler = fakeWrangler(t, `[{"results":[{"probe":1}],"success":true}]`, 0)

	require.NoError(t, b.Connect())
	assert.True(t, b.connected)
}

func TestRemoteConnect_CommandFails(t *testing.T) {
	b := NewRemote("test-db")
	b.wrangler = fakeWrangler(t, "", 1)

	err := b.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connectivity probe failed")
	assert.False(t, b.connected)
}

func TestRemoteConnect_BadShape(t *testing.T) {
	b := NewRemote("test-db")
	b.wrangler = fakeWrangler(t, `{"not":"an array"}`, 0)

	err := b.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected shape")
}

func TestRemoteQuery_ParsesEnvelope(t *testing.T) {
	b := NewRemote("test-db")
	b.wrangler = fakeWrangler(t,
		`[{"results":[{"id":"s1","count":2},{"id":"s2","count":5}],"success":true}]`, 0)
	b.connected = true

	rows, err := b.Query("SELECT id, count FROM sessions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "s1", rows[0].String("id"))
	assert.Equal(t, int64(5), rows[1].Int64("count"))
}

func TestRemoteQueryOne_Empty(t *testing.T) {
	b := NewRemote("test-db")
	b.wrangler = fakeWrangler(t, `[{"results":[],"success":true}]`, 0)
	b.connected = true

	row, err := b.QueryOne("SELECT id FROM sessions WHERE id = ?", "missing")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestRemoteOps_RequireConnect(t *testing.T) {
	b := NewRemote("test-db")

	_, err := b.ExecuteBatch("INSERT INTO t (a) VALUES (?)", [][]any{{1}}, DefaultBatchSize)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = b.Query("SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)

	err = b.Transaction(func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestRemoteExecuteBatch_Buffers(t *testing.T) {
	b := NewRemote("test-db")
	b.wrangler = fakeWrangler(t, "", 1) // a dispatch would fail loudly
	b.connected = true

	n, err := b.ExecuteBatch("INSERT INTO todos (id) VALUES (?)", [][]any{{"t1"}, {"t2"}}, DefaultBatchSize)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, b.buffer.size("INSERT INTO todos (id) VALUES (?)"))
}

func TestInterpolate(t *testing.T) {
	got := interpolate("SELECT * FROM t WHERE a = ? AND b = ? AND c = ?",
		[]any{"x'y", int64(3), nil})
	assert.Equal(t, "SELECT * FROM t WHERE a = 'x''y' AND b = 3 AND c = NULL", got)
}

func TestParseWranglerResults_EmptyEnvelope(t *testing.T) {
	rows, err := parseWranglerResults([]byte(`[]`))
	require.NoError(t, err)
	assert.Nil(t, rows)
}
