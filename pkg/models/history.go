package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry records one executed statement against a registered
// connection. Entries are append-only: created exactly once per executed
// statement, including failures, and never mutated.
type HistoryEntry struct {
	ID           uuid.UUID `json:"id"`
	ConnectionID uuid.UUID `json:"connection_id"`
	Statement    string    `json:"statement"`
	Success      bool      `json:"success"`
	ElapsedMs    int64     `json:"elapsed_ms"`
	RowCount     int64     `json:"row_count"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
