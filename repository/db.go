package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Timestamps are stored as unix nanoseconds so that ordering in SQL matches
// ordering in Go exactly, with the auto-increment id as the tiebreaker.
const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id     INTEGER NOT NULL,
	sender_role   TEXT NOT NULL,
	receiver_id   INTEGER NOT NULL,
	receiver_role TEXT NOT NULL,
	content       TEXT NOT NULL,
	is_read       INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_sender    ON messages (sender_id, sender_role);
CREATE INDEX IF NOT EXISTS idx_messages_receiver  ON messages (receiver_id, receiver_role);
CREATE INDEX IF NOT EXISTS idx_messages_created   ON messages (created_at);
CREATE INDEX IF NOT EXISTS idx_messages_pair      ON messages (sender_id, sender_role, receiver_id, receiver_role);

CREATE TABLE IF NOT EXISTS profiles (
	id            INTEGER NOT NULL,
	role          TEXT NOT NULL,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	PRIMARY KEY (id, role)
);
`

// Open opens (or creates) the SQLite database backing the message log and
// the profile directory, and applies the schema.
func Open(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}
