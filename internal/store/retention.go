package store

import (
	"context"
	"fmt"
	"time"
)

// RunRetention deletes audit records older than maxAge. A non-positive maxAge keeps everything.
func (s *Store) RunRetention(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, "DELETE FROM archive_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old archive records: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("archive log retention completed")
	}
	return n, nil
}
