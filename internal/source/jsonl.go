package source

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// Session lines routinely exceed bufio's default 64K token limit once
// tool results are embedded, so the scanner gets a 2 MB ceiling.
const (
	scanInitialBuf = 256 * 1024
	scanMaxBuf     = 2 * 1024 * 1024
)

// streamJSONL reads path line by line, decoding each non-blank line into
// a generic map and passing it to fn. Malformed lines are logged,
// counted, and skipped; only I/O failures are returned.
func streamJSONL(path string, fn func(lineNo int, obj map[string]any)) (badLines int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, scanInitialBuf), scanMaxBuf)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			slog.Warn("skipping malformed JSONL line", "file", path, "line", lineNo, "error", err)
			badLines++
			continue
		}
		fn(lineNo, obj)
	}
	return badLines, scanner.Err()
}

// firstJSONLLine returns the first parseable object in path without
// reading the rest of the file, or nil when no valid line exists.
func firstJSONLLine(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, scanInitialBuf), scanMaxBuf)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		return obj, nil
	}
	return nil, scanner.Err()
}
