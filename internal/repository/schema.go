package repository

import (
	"context"
	"fmt"
)

// Schema is portable across SQLite and Postgres: TEXT primary keys
// (uuid strings), times as RFC 3339 UTC text so lexicographic order is
// chronological order, booleans as 0/1 integers.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		line_count INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		generic_name TEXT NOT NULL DEFAULT '',
		name_corrected INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		expiry_date TEXT,
		expiry_time TEXT,
		manufacture_date TEXT,
		batch_number TEXT NOT NULL DEFAULT '',
		dosage TEXT NOT NULL DEFAULT '',
		strength TEXT NOT NULL DEFAULT '',
		form TEXT NOT NULL DEFAULT '',
		manufacturer TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL DEFAULT '',
		duration TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL DEFAULT '',
		overall_confidence REAL NOT NULL DEFAULT 0,
		needs_review INTEGER NOT NULL DEFAULT 0,
		field_confidence TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_scan_id ON records(scan_id)`,
	`CREATE INDEX IF NOT EXISTS idx_records_expiry_time ON records(expiry_time)`,
	`CREATE INDEX IF NOT EXISTS idx_records_needs_review ON records(needs_review)`,
	`CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
		times TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_record_id ON reminders(record_id)`,
	`CREATE TABLE IF NOT EXISTS dose_events (
		id TEXT PRIMARY KEY,
		reminder_id TEXT NOT NULL REFERENCES reminders(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dose_events_reminder_id ON dose_events(reminder_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dose_events_at ON dose_events(at)`,
}

func (d *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}
