package vm

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// HistoryLog is an optional, purely diagnostic record of every
// CollectionStats a Runtime has produced, backed by the pure-Go SQLite
// driver the way the teacher's server package persists long-lived
// runtime state. A Runtime with no attached HistoryLog behaves
// identically to one with an attached log: Append runs synchronously
// inside GC, so it never introduces a suspension point into the
// otherwise stop-the-world collector.
type HistoryLog struct {
	db *sql.DB
}

// OpenHistoryLog opens (creating if necessary) a SQLite database at path
// and ensures its collections table exists.
func OpenHistoryLog(path string) (*HistoryLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vm: open history log: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS collections (
	id            TEXT PRIMARY KEY,
	variant       TEXT NOT NULL,
	live_cells    INTEGER NOT NULL,
	live_bytes    INTEGER NOT NULL,
	heap_capacity INTEGER NOT NULL,
	duration_ns   INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vm: create history schema: %w", err)
	}
	return &HistoryLog{db: db}, nil
}

// Append records one collection's stats.
func (h *HistoryLog) Append(stats CollectionStats) error {
	const insert = `
INSERT INTO collections (id, variant, live_cells, live_bytes, heap_capacity, duration_ns)
VALUES (?, ?, ?, ?, ?, ?);`
	_, err := h.db.Exec(insert, stats.ID, stats.Variant.String(), stats.LiveCells, stats.LiveBytes, stats.HeapCapacity, stats.Duration.Nanoseconds())
	if err != nil {
		return fmt.Errorf("vm: append history: %w", err)
	}
	return nil
}

// Count returns how many collections have been recorded.
func (h *HistoryLog) Count() (int, error) {
	var n int
	if err := h.db.QueryRow(`SELECT COUNT(*) FROM collections;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vm: count history: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (h *HistoryLog) Close() error {
	return h.db.Close()
}
