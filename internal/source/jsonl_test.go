package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lines.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStreamJSONL(t *testing.T) {
	path := writeTemp(t, `{"a":1}`+"\n\n"+`not json`+"\n"+`{"b":2}`+"\n")

	var lines []int
	bad, err := streamJSONL(path, func(lineNo int, obj map[string]any) {
		lines = append(lines, lineNo)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, bad)
	assert.Equal(t, []int{1, 4}, lines, "line numbers count blanks and bad lines")
}

func TestStreamJSONL_LongLines(t *testing.T) {
	// Well past bufio's 64K default token limit.
	big := `{"text":"` + strings.Repeat("x", 300*1024) + `"}`
	path := writeTemp(t, big+"\n")

	seen := 0
	bad, err := streamJSONL(path, func(int, map[string]any) { seen++ })
	require.NoError(t, err)
	assert.Equal(t, 0, bad)
	assert.Equal(t, 1, seen)
}

func TestFirstJSONLLine(t *testing.T) {
	path := writeTemp(t, "\nbroken\n"+`{"sessionId":"s-1"}`+"\n"+`{"sessionId":"other"}`+"\n")

	obj, err := firstJSONLLine(path)
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "s-1", obj["sessionId"])
}

func TestFirstJSONLLine_Empty(t *testing.T) {
	obj, err := firstJSONLLine(writeTemp(t, "\n\n"))
	require.NoError(t, err)
	assert.Nil(t, obj)
}
