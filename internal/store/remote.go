package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// wranglerTimeout bounds every external invocation. A timeout is a hard
// failure for that operation, never a silent skip.
const wranglerTimeout = 10 * time.Minute

// ErrNotConnected is returned when an operation runs before Connect.
var ErrNotConnected = errors.New("remote backend not connected")

// RemoteBackend talks to a Cloudflare D1 database through the wrangler
// CLI. Writes are accumulated in an in-memory buffer and flushed as few
// large statements, since each CLI invocation costs seconds.
type RemoteBackend struct {
	dbName    string
	connected bool
	buffer    *writeBuffer

	// wrangler is the executable to invoke; tests point it at a stub.
	wrangler string
}

// NewRemote creates an unconnected remote backend for the named D1
// database. Call Connect before use.
func NewRemote(dbName string) *RemoteBackend {
	b := &RemoteBackend{
		dbName:   dbName,
		wrangler: "wrangler",
	}
	b.buffer = newWriteBuffer(b.runFile)
	return b
}

// Connect probes the database with a trivial query and fails loudly when
// the CLI is unreachable or returns an unexpected shape.
func (b *RemoteBackend) Connect() error {
	out, err := b.runCommand("SELECT 1 as probe", true)
	if err != nil {
		return fmt.Errorf("D1 connectivity probe failed for %q: %w", b.dbName, err)
	}

	var result []json.RawMessage
	if err := json.Unmarshal(out, &result); err != nil || len(result) == 0 {
		return fmt.Errorf("D1 connectivity probe for %q returned unexpected shape", b.dbName)
	}

	b.connected = true
	slog.Info("connected to remote D1", "database", b.dbName)
	return nil
}

// Close drains the write buffer before releasing the connection so no
// buffered rows are silently dropped at shutdown.
func (b *RemoteBackend) Close() error {
	_, err := b.buffer.drain()
	b.connected = false
	slog.Info("D1 connection closed")
	return err
}

// SetupSchema applies the DDL script via a one-shot file invocation.
func (b *RemoteBackend) SetupSchema() error {
	if err := b.runFile(schemaSQL); err != nil {
		return fmt.Errorf("D1 schema setup failed: %w", err)
	}
	return nil
}

// ExecuteBatch buffers rows for the given SQL template. The returned
// count is the number of rows flushed when this call triggered a flush,
// or the number of rows accepted into the buffer otherwise — not a
// durable-insert count. Close (or a later threshold crossing) makes
// buffered rows durable.
func (b *RemoteBackend) ExecuteBatch(query string, rows [][]any, _ int) (int, error) {
	if !b.connected {
		return 0, ErrNotConnected
	}
	return b.buffer.add(query, rows)
}

// QueryOne substitutes params into the template, runs it with JSON
// output, and returns the first result row, or (nil, nil) when the
// result set is empty.
func (b *RemoteBackend) QueryOne(query string, params ...any) (Row, error) {
	rows, err := b.Query(query, params...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Query runs the statement with JSON output and returns all result rows.
func (b *RemoteBackend) Query(query string, params ...any) ([]Row, error) {
	if !b.connected {
		return nil, ErrNotConnected
	}

	out, err := b.runCommand(interpolate(query, params), true)
	if err != nil {
		return nil, fmt.Errorf("D1 query failed (%s): %w", sqlPrefix(query), err)
	}
	return parseWranglerResults(out)
}

type remoteTx struct {
	statements []statement
}

type statement struct {
	query  string
	params []any
}

func (t *remoteTx) Exec(query string, params ...any) error {
	t.statements = append(t.statements, statement{query, params})
	return nil
}

// Transaction collects statements from fn and dispatches them
// sequentially after fn returns nil.
//
// This is NOT atomic: each statement is a separate CLI invocation, so a
// failure mid-sequence leaves the statements already dispatched
// committed. There is no rollback. Callers must treat remote writes as
// at-least-once and rely on idempotent keys where duplication would be
// harmful.
func (b *RemoteBackend) Transaction(fn func(tx Tx) error) error {
	if !b.connected {
		return ErrNotConnected
	}

	tx := &remoteTx{}
	if err := fn(tx); err != nil {
		return err
	}

	for _, st := range tx.statements {
		if _, err := b.runCommand(interpolate(st.query, st.params), false); err != nil {
			return fmt.Errorf("D1 statement failed (%s): %w", sqlPrefix(st.query), err)
		}
	}
	return nil
}

// runCommand executes SQL via `wrangler d1 execute --command`.
func (b *RemoteBackend) runCommand(query string, jsonOutput bool) ([]byte, error) {
	args := []string{"d1", "execute", b.dbName, "--command", query}
	if jsonOutput {
		args = append(args, "--json")
	}

	ctx, cancel := context.WithTimeout(context.Background(), wranglerTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.wrangler, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("wrangler: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// runFile writes SQL to a temp file and executes it via `--file`, the
// path used for large multi-statement payloads.
func (b *RemoteBackend) runFile(sqlContent string) error {
	f, err := os.CreateTemp("", "claudehist-*.sql")
	if err != nil {
		return fmt.Errorf("creating temp SQL file: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.WriteString(sqlContent); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing temp SQL file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), wranglerTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.wrangler, "d1", "execute", b.dbName, "--file", path)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wrangler file execute: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// parseWranglerResults decodes wrangler's --json output shape:
// [{"results": [...], "success": true, ...}].
func parseWranglerResults(out []byte) ([]Row, error) {
	var envelope []struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(out, &envelope); err != nil {
		return nil, fmt.Errorf("decoding wrangler output: %w", err)
	}
	if len(envelope) == 0 {
		return nil, nil
	}

	rows := make([]Row, 0, len(envelope[0].Results))
	for _, r := range envelope[0].Results {
		rows = append(rows, Row(r))
	}
	return rows, nil
}

// interpolate substitutes params for ? placeholders left to right. The
// placeholder count must match the param count; this is the caller's
// responsibility and is not validated here.
func interpolate(query string, params []any) string {
	for _, p := range params {
		query = strings.Replace(query, "?", formatValue(p), 1)
	}
	return query
}
