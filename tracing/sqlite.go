// Package tracing persists retired bus transactions to a SQLite database,
// so a run's bus activity can be inspected after the fact independent of
// the human-readable report. It is optional: a simulation that never
// installs a Recorder behaves exactly as if this package did not exist.
package tracing

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite3" driver used by database/sql below.
	_ "github.com/mattn/go-sqlite3"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/mesi4sim/bus"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS bus_transactions (
	id TEXT PRIMARY KEY,
	requester_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	addr INTEGER NOT NULL,
	start_cycle INTEGER NOT NULL,
	completion_cycle INTEGER NOT NULL,
	served_by_cache INTEGER NOT NULL
)`

const insertSQL = `
INSERT INTO bus_transactions
	(id, requester_id, type, addr, start_cycle, completion_cycle, served_by_cache)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// SQLiteRecorder is a bus.Recorder that batches retired transactions and
// writes them to a SQLite database file.
type SQLiteRecorder struct {
	db        *sql.DB
	batch     []bus.Transaction
	batchSize int
}

// NewSQLiteRecorder opens (creating if necessary) a SQLite database at
// path and prepares it to record bus transactions. The recorder's Flush
// is registered with atexit so buffered rows are not lost if the process
// exits through a nested error path.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("tracing: opening %s: %w", path, err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracing: creating table: %w", err)
	}

	r := &SQLiteRecorder{db: db, batchSize: 500}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

// RecordTransaction buffers a retired transaction, flushing automatically
// once the batch grows large enough.
func (r *SQLiteRecorder) RecordTransaction(t bus.Transaction) {
	r.batch = append(r.batch, t)

	if len(r.batch) >= r.batchSize {
		r.Flush()
	}
}

// Flush writes any buffered transactions to the database.
func (r *SQLiteRecorder) Flush() {
	if len(r.batch) == 0 {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		return
	}

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		tx.Rollback()
		return
	}

	for _, t := range r.batch {
		_, _ = stmt.Exec(
			t.ID.String(),
			t.RequesterID,
			t.Type.String(),
			t.Addr,
			t.StartCycle,
			t.CompletionCycle,
			t.ServedByCache,
		)
	}

	stmt.Close()
	tx.Commit()

	r.batch = r.batch[:0]
}

// Close flushes remaining rows and closes the underlying database handle.
func (r *SQLiteRecorder) Close() error {
	r.Flush()
	return r.db.Close()
}
