package store

import (
	"context"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

// ExportAll returns all live records, optionally filtered by user, oldest version first.
func (s *SQLiteStore) ExportAll(ctx context.Context, userID string) ([]model.MemoryRecord, error) {
	where := []string{"m.deleted_at IS NULL"}
	args := []interface{}{}

	if userID != "" {
		where = append(where, "m.user_id = ?")
		args = append(args, userID)
	}

	query := `SELECT ` + memoryColumns + ` FROM memories m WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY m.user_id, m.key, m.version`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

// Import stores records from an export. Records whose user/key already holds the same
// value are skipped, so importing the same file twice is a no-op.
func (s *SQLiteStore) Import(ctx context.Context, records []model.MemoryRecord) (int, error) {
	imported := 0
	for _, r := range records {
		existing, err := s.Get(ctx, r.UserID, r.Key, false)
		if err == nil && len(existing) > 0 && existing[0].Value == r.Value {
			continue
		}
		r.AccessCount = 0
		r.LastAccessedAt = nil
		r.DeletedAt = nil
		r.Metadata.Supersedes = ""
		if _, err := s.Store(ctx, r); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
