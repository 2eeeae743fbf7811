package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

func (s *Store) schemaVersion() string {
	var version string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version); err != nil {
		return ""
	}
	return version
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS channel_cache (
		channel_id   TEXT PRIMARY KEY,
		last_ts      TEXT NOT NULL,
		last_user    TEXT NOT NULL DEFAULT '',
		last_subtype TEXT NOT NULL DEFAULT '',
		last_bot_id  TEXT NOT NULL DEFAULT '',
		updated_at   INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	return nil
}

func (s *Store) migrateV2() error {
	if s.schemaVersion() >= "2" {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS archive_log (
		id              TEXT PRIMARY KEY,
		channel_id      TEXT NOT NULL,
		channel_name    TEXT NOT NULL DEFAULT '',
		threshold_days  INTEGER NOT NULL,
		requested_by    TEXT NOT NULL DEFAULT '',
		last_message_ts TEXT,
		result          TEXT NOT NULL,
		error           TEXT,
		created_at      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_archive_log_created ON archive_log(created_at);
	CREATE INDEX IF NOT EXISTS idx_archive_log_channel ON archive_log(channel_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v2: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}
