package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database holding the message log.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}

// Stats holds row counts for health reporting.
type Stats struct {
	Messages      int `json:"messages"`
	Conversations int `json:"conversations"`
}

// Stats counts stored messages and distinct conversations.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT wa_id) FROM messages`).
		Scan(&s.Messages, &s.Conversations)
	if err != nil {
		return Stats{}, fmt.Errorf("count messages: %w", err)
	}
	return s, nil
}
