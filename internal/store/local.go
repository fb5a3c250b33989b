package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register sqlite driver
)

// LocalBackend stores data in an embedded SQLite database file.
type LocalBackend struct {
	path string
	db   *sql.DB
}

// NewLocal creates an unconnected local backend for the given database
// file. Call Connect before use.
func NewLocal(path string) *LocalBackend {
	return &LocalBackend{path: path}
}

// Connect opens the database, creating parent directories as needed.
// WAL journaling and foreign key enforcement are enabled via the DSN.
func (b *LocalBackend) Connect() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating database dir: %w", err)
	}

	db, err := sql.Open("sqlite", b.path+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("opening database: %w", err)
	}

	b.db = db
	slog.Info("connected to local SQLite", "path", b.path)
	return nil
}

// Close closes the database.
func (b *LocalBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SetupSchema applies the DDL script in a single transaction.
func (b *LocalBackend) SetupSchema() error {
	if _, err := b.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

type localTx struct {
	tx *sql.Tx
}

func (t localTx) Exec(query string, params ...any) error {
	_, err := t.tx.Exec(query, params...)
	return err
}

// Transaction runs fn inside a real SQLite transaction: commit on nil
// return, rollback when fn returns an error.
func (b *LocalBackend) Transaction(fn func(tx Tx) error) error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(localTx{tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ExecuteBatch inserts rows in chunks of batchSize, one transaction per
// chunk, and returns the number of rows actually inserted. OR IGNORE
// conflicts do not count.
func (b *LocalBackend) ExecuteBatch(query string, rows [][]any, batchSize int) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	total := 0
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		chunk := rows[start:end]

		err := b.Transaction(func(tx Tx) error {
			ltx := tx.(localTx)
			stmt, err := ltx.tx.Prepare(query)
			if err != nil {
				return err
			}
			defer func() { _ = stmt.Close() }()

			for _, row := range chunk {
				res, err := stmt.Exec(row...)
				if err != nil {
					return err
				}
				if n, err := res.RowsAffected(); err == nil {
					total += int(n)
				}
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("batch insert (%s, %d rows): %w", sqlPrefix(query), len(chunk), err)
		}
	}
	return total, nil
}

// QueryOne returns the first matching row, or (nil, nil) when nothing
// matches.
func (b *LocalBackend) QueryOne(query string, params ...any) (Row, error) {
	rows, err := b.Query(query, params...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Query returns all matching rows as column -> value maps.
func (b *LocalBackend) Query(query string, params ...any) ([]Row, error) {
	rs, err := b.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rs.Close() }()

	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if bs, ok := vals[i].([]byte); ok {
				row[c] = string(bs)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

// sqlPrefix trims a SQL string for error context.
func sqlPrefix(query string) string {
	s := normalizeSQL(query)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
