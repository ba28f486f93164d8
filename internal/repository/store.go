package repository

import (
	"database/sql"
	"log/slog"
)

// Store is the row-store facade used by the job executors. One instance per
// process; safe for concurrent use.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}
