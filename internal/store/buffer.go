package store

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Write buffer tuning. Each wrangler invocation costs hundreds of
// milliseconds regardless of payload, so the buffer exists to reduce the
// number of invocations, not to add concurrency.
const (
	bufferRowLimit     = 500    // rows per SQL key before a flush
	statementCharLimit = 50000  // estimated serialized statement size before a flush
	flushChunkRows     = 100    // rows per dispatched multi-row INSERT
	sizeSampleRows     = 5      // rows sampled when estimating statement size
)

// writeBuffer accumulates rows per normalized SQL template and flushes
// them as few large multi-row INSERT statements. It is owned by a single
// RemoteBackend instance; there is no shared or package-level state.
type writeBuffer struct {
	pending map[string][][]any
	// dispatch sends one serialized SQL statement to the remote engine.
	dispatch func(stmt string) error
}

func newWriteBuffer(dispatch func(stmt string) error) *writeBuffer {
	return &writeBuffer{
		pending:  make(map[string][][]any),
		dispatch: dispatch,
	}
}

// add buffers rows under the normalized SQL key and flushes the key when
// the row count or the estimated statement size crosses its threshold.
// The return value is the number of rows flushed, or the number of rows
// accepted into the buffer when no flush was triggered.
func (b *writeBuffer) add(query string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	key := normalizeSQL(query)
	b.pending[key] = append(b.pending[key], rows...)

	buffered := b.pending[key]
	if len(buffered) >= bufferRowLimit || estimateStatementSize(key, buffered) > statementCharLimit {
		return b.flushKey(key)
	}
	return len(rows), nil
}

// flushKey serializes and dispatches all rows buffered under key, in
// chunks of flushChunkRows per statement to respect the engine's own
// per-statement limits. On a mid-flush failure the unflushed remainder is
// put back in the buffer; chunks already dispatched are not retried.
func (b *writeBuffer) flushKey(key string) (int, error) {
	rows := b.pending[key]
	if len(rows) == 0 {
		return 0, nil
	}
	b.pending[key] = nil

	insertPart := key
	if idx := strings.Index(key, "VALUES"); idx >= 0 {
		insertPart = strings.TrimSpace(key[:idx])
	} else {
		slog.Warn("could not split SQL on VALUES, using as is", "sql", sqlPrefix(key))
	}

	flushed := 0
	for start := 0; start < len(rows); start += flushChunkRows {
		end := min(start+flushChunkRows, len(rows))
		chunk := rows[start:end]

		groups := make([]string, 0, len(chunk))
		for _, row := range chunk {
			groups = append(groups, formatRow(row))
		}
		stmt := insertPart + " VALUES " + strings.Join(groups, ",\n") + ";"

		if err := b.dispatch(stmt); err != nil {
			// Re-buffer the unflushed remainder; dispatched chunks are
			// not retried.
			b.pending[key] = append(rows[start:len(rows):len(rows)], b.pending[key]...)
			return flushed, fmt.Errorf("flushing %d rows (%s): %w", len(chunk), sqlPrefix(key), err)
		}
		flushed += len(chunk)
		slog.Debug("flushed chunk", "rows", len(chunk))
	}

	slog.Info("flushed buffered rows", "rows", flushed, "sql", sqlPrefix(key))
	return flushed, nil
}

// drain flushes every buffered key. A failure on one key is logged and
// the drain continues with the others; the first error is returned after
// all keys have been attempted.
func (b *writeBuffer) drain() (int, error) {
	keys := make([]string, 0, len(b.pending))
	for key := range b.pending {
		keys = append(keys, key)
	}

	total := 0
	var firstErr error
	for _, key := range keys {
		n, err := b.flushKey(key)
		total += n
		if err != nil {
			slog.Error("buffer drain failed for key", "sql", sqlPrefix(key), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if total > 0 {
		slog.Info("drained write buffer", "rows", total)
	}
	return total, firstErr
}

// size returns the number of rows currently buffered under query's key.
func (b *writeBuffer) size(query string) int {
	return len(b.pending[normalizeSQL(query)])
}

// estimateStatementSize cheaply predicts the serialized size of a
// multi-row INSERT by formatting a small sample and extrapolating
// linearly by row count.
func estimateStatementSize(key string, rows [][]any) int {
	if len(rows) == 0 {
		return len(key)
	}

	insertPart := key
	if idx := strings.Index(key, "VALUES"); idx >= 0 {
		insertPart = strings.TrimSpace(key[:idx])
	}

	sample := rows[:min(sizeSampleRows, len(rows))]
	sampleLen := 0
	for _, row := range sample {
		sampleLen += len(formatRow(row))
	}
	avg := float64(sampleLen) / float64(len(sample))

	return len(insertPart) + len(" VALUES ") + int(avg*float64(len(rows)))
}

func formatRow(row []any) string {
	vals := make([]string, len(row))
	for i, v := range row {
		vals[i] = formatValue(v)
	}
	return "(" + strings.Join(vals, ",") + ")"
}

// formatValue renders a Go value as a SQL literal. This is a minimal
// encoder for trusted extractor output, not a parameterized-query
// substitute: the caller is responsible for matching placeholder count to
// row arity.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return "'" + val.Format(time.RFC3339) + "'"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(val), "'", "''") + "'"
	}
}

// normalizeSQL collapses whitespace runs so structurally identical SQL
// templates share one buffer key regardless of source formatting.
func normalizeSQL(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
