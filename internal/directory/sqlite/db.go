// Package sqlite is the embedded single-file directory backend: a
// standalone deployment with no external database process, on the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS citizens (
	id           INTEGER PRIMARY KEY,
	name         TEXT NOT NULL,
	name_lower   TEXT NOT NULL UNIQUE,
	password     TEXT NOT NULL DEFAULT '',
	priv_pass    TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	comment      TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	immigration  INTEGER NOT NULL DEFAULT 0,
	expiration   INTEGER NOT NULL DEFAULT 0,
	last_login   INTEGER NOT NULL DEFAULT 0,
	last_address INTEGER NOT NULL DEFAULT 0,
	total_time   INTEGER NOT NULL DEFAULT 0,
	bot_limit    INTEGER NOT NULL DEFAULT 0,
	beta         INTEGER NOT NULL DEFAULT 0,
	cav_enabled  INTEGER NOT NULL DEFAULT 0,
	trial        INTEGER NOT NULL DEFAULT 0,
	enabled      INTEGER NOT NULL DEFAULT 1,
	cav_template TEXT NOT NULL DEFAULT '',
	privacy      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS licenses (
	id           INTEGER PRIMARY KEY,
	name         TEXT NOT NULL,
	name_lower   TEXT NOT NULL UNIQUE,
	password     TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	comment      TEXT NOT NULL DEFAULT '',
	creation     INTEGER NOT NULL DEFAULT 0,
	expiration   INTEGER NOT NULL DEFAULT 0,
	last_start   INTEGER NOT NULL DEFAULT 0,
	last_address INTEGER NOT NULL DEFAULT 0,
	users        INTEGER NOT NULL DEFAULT 0,
	world_size   INTEGER NOT NULL DEFAULT 0,
	hidden       INTEGER NOT NULL DEFAULT 0,
	tourists     INTEGER NOT NULL DEFAULT 1,
	voip         INTEGER NOT NULL DEFAULT 0,
	plugins      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contacts (
	owner_cit_id INTEGER NOT NULL,
	other_cit_id INTEGER NOT NULL,
	options      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (owner_cit_id, other_cit_id)
);

CREATE TABLE IF NOT EXISTS telegrams (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	to_cit_id   INTEGER NOT NULL,
	from_cit_id INTEGER NOT NULL,
	ts          INTEGER NOT NULL,
	message     TEXT NOT NULL,
	delivered   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS telegrams_undelivered_idx ON telegrams (to_cit_id, delivered, ts);

CREATE TABLE IF NOT EXISTS ejections (
	address    INTEGER PRIMARY KEY,
	expiration INTEGER NOT NULL,
	creation   INTEGER NOT NULL,
	comment    TEXT NOT NULL DEFAULT ''
);
`

// DB wraps the embedded database handle. Unlike the postgres pool, the
// modernc.org/sqlite driver is pure Go and single-process: path may be a
// file path or ":memory:" for tests.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if absent) the database file at path and applies
// the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The embedded driver does not support concurrent writers; the
	// server's single-threaded event loop is the only caller, but a
	// conservative cap keeps that invariant honest if that ever changes.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}
