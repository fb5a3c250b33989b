// Package store provides a uniform database layer over two backends:
// a local SQLite database opened in-process, and a remote Cloudflare D1
// database reached through the wrangler CLI.
package store

import (
	"fmt"
	"log/slog"
	"strconv"
)

// Kind identifies which backend implementation to use.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
)

func (k Kind) String() string {
	if k == KindRemote {
		return "remote"
	}
	return "local"
}

// Row is a single query result as a column -> value mapping.
// Values come from either database/sql scanning (local) or JSON decoding
// (remote), so numeric columns may arrive as int64 or float64.
type Row map[string]any

// Int64 returns the named column coerced to int64, or 0 if absent.
func (r Row) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// Float64 returns the named column coerced to float64, or 0 if absent.
func (r Row) Float64(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// String returns the named column as a string, or "" if absent or NULL.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Tx executes statements inside a transaction scope.
type Tx interface {
	Exec(sql string, params ...any) error
}

// Backend is the storage contract shared by the local and remote engines.
//
// Local gives real transactional atomicity. Remote dispatches each
// statement through a separate wrangler invocation, so its Transaction is
// non-atomic: see RemoteBackend.Transaction before relying on rollback.
type Backend interface {
	// Connect establishes readiness. For local this opens the database
	// file; for remote it performs a connectivity probe and fails if the
	// wrangler CLI is unreachable.
	Connect() error

	// Close releases resources. The remote backend flushes any buffered
	// writes first so nothing is silently dropped at shutdown.
	Close() error

	// SetupSchema applies the idempotent DDL script. Safe to re-run.
	SetupSchema() error

	// ExecuteBatch inserts rows in chunks of batchSize and returns the
	// number of rows durably inserted (local) or accepted into the write
	// buffer / flushed (remote). An empty rows slice is a no-op.
	ExecuteBatch(sql string, rows [][]any, batchSize int) (int, error)

	// QueryOne returns a single row, or (nil, nil) when no row matches.
	QueryOne(sql string, params ...any) (Row, error)

	// Query returns all matching rows.
	Query(sql string, params ...any) ([]Row, error)

	// Transaction runs fn inside a transaction scope: commit on nil
	// return, rollback (local) on error.
	Transaction(fn func(tx Tx) error) error
}

// DefaultBatchSize is the chunk size for ExecuteBatch when callers have
// no reason to pick another.
const DefaultBatchSize = 1000

// Options configures backend selection.
type Options struct {
	// Kind selects the backend implementation to start with.
	Kind Kind
	// Path is the local SQLite database file.
	Path string
	// RemoteDB is the D1 database name passed to wrangler.
	RemoteDB string
	// FallbackToLocal permits a one-way remote -> local transition when
	// remote construction or connection fails. Without it a remote
	// failure is fatal.
	FallbackToLocal bool
}

// Open selects a backend, connects it, and returns it ready for use.
//
// The selection state machine has two states {remote, local}. It starts
// in remote only when explicitly requested, transitions remote -> local
// at most once (and only when fallback is enabled), and never transitions
// local -> remote within a run.
func Open(opts Options) (Backend, error) {
	if opts.Kind == KindRemote {
		remote := NewRemote(opts.RemoteDB)
		if err := remote.Connect(); err != nil {
			if !opts.FallbackToLocal {
				return nil, fmt.Errorf("connecting to remote D1: %w", err)
			}
			slog.Warn("remote D1 unavailable, falling back to local", "error", err)
		} else {
			return remote, nil
		}
	}

	local := NewLocal(opts.Path)
	if err := local.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to local database: %w", err)
	}
	return local, nil
}
