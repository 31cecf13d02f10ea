package postgres

// schema is applied on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		username TEXT NOT NULL,
		position INTEGER NOT NULL,
		country  TEXT NOT NULL,
		capital  TEXT NOT NULL,
		PRIMARY KEY (username, position)
	)`,
}
