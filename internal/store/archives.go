package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Archive results recorded in the audit log.
const (
	ArchiveOK     = "archived"
	ArchiveFailed = "failed"
)

// ArchiveRecord is one row of the archive audit log.
type ArchiveRecord struct {
	ID            string `json:"id"`
	ChannelID     string `json:"channel_id"`
	ChannelName   string `json:"channel_name"`
	Days          int    `json:"threshold_days"`
	RequestedBy   string `json:"requested_by"`
	LastMessageTS string `json:"last_message_ts,omitempty"`
	Result        string `json:"result"`
	Error         string `json:"error,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// RecordArchive appends rec to the audit log, filling ID and CreatedAt when unset.
func (s *Store) RecordArchive(ctx context.Context, rec *ArchiveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}

	lastTS := sql.NullString{String: rec.LastMessageTS, Valid: rec.LastMessageTS != ""}
	errText := sql.NullString{String: rec.Error, Valid: rec.Error != ""}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO archive_log (
		id, channel_id, channel_name, threshold_days, requested_by,
		last_message_ts, result, error, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.ChannelID, rec.ChannelName, rec.Days, rec.RequestedBy,
		lastTS, rec.Result, errText, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record archive: %w", err)
	}
	return nil
}

// ListArchives returns up to limit audit records, newest first.
func (s *Store) ListArchives(ctx context.Context, limit int) ([]ArchiveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, channel_id, channel_name, threshold_days, requested_by,
	       last_message_ts, result, error, created_at
	FROM archive_log
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}
	defer rows.Close()

	var out []ArchiveRecord
	for rows.Next() {
		var rec ArchiveRecord
		var lastTS, errText sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.ChannelID, &rec.ChannelName, &rec.Days, &rec.RequestedBy,
			&lastTS, &rec.Result, &errText, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan archive record: %w", err)
		}
		rec.LastMessageTS = lastTS.String
		rec.Error = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
