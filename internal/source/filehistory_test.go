package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionFilename(t *testing.T) {
	tests := []struct {
		filename string
		hash     string
		version  int
	}{
		{"abc123@v1", "abc123", 1},
		{"abc123@v42", "abc123", 42},
		{"weird@vname@v3", "weird@vname", 3},
		{"nomarker", "nomarker", 0},
		{"abc@vnotanumber", "abc@vnotanumber", 0},
	}
	for _, tt := range tests {
		hash, version := parseVersionFilename(tt.filename)
		assert.Equal(t, tt.hash, hash, tt.filename)
		assert.Equal(t, tt.version, version, tt.filename)
	}
}

func TestFileHistoryExtract(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "file-history/sess-1/abc123@v1", "package main\n")
	env.write(t, "file-history/sess-1/abc123@v2", "package main\n\nfunc main() {}\n")

	e := &FileHistoryExtractor{base: env.base()}
	res := e.Extract(false)

	assert.Equal(t, 2, res.FilesProcessed)
	assert.Equal(t, 2, res.RecordsInserted)
	assert.Equal(t, 0, res.ErrorsCount)

	row, err := env.db.QueryOne("SELECT * FROM file_versions WHERE id = ?", "sess-1/abc123@v2")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "sess-1", row.String("session_id"))
	assert.Equal(t, "abc123", row.String("file_hash"))
	assert.Equal(t, int64(2), row.Int64("version"))
	assert.Contains(t, row.String("content"), "func main")
	assert.Equal(t, int64(len("package main\n\nfunc main() {}\n")), row.Int64("file_size"))
}

func TestFileHistoryExtract_InvalidUTF8(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "file-history/sess-2/bin@v1", "ok \xff\xfe bytes")

	e := &FileHistoryExtractor{base: env.base()}
	res := e.Extract(false)
	require.Equal(t, 0, res.ErrorsCount)

	row, err := env.db.QueryOne("SELECT content FROM file_versions WHERE id = ?", "sess-2/bin@v1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Contains(t, row.String("content"), "�", "invalid bytes become replacement runes")
}

func TestFileHistoryExtract_MissingDir(t *testing.T) {
	env := newTestEnv(t)

	e := &FileHistoryExtractor{base: env.base()}
	res := e.Extract(false)
	assert.Equal(t, Result{Duration: res.Duration}, res, "a missing directory is a clean no-op")
}
