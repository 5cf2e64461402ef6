package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

// LinkParams holds parameters for creating or removing a link between two keys of one user.
type LinkParams struct {
	UserID  string
	FromKey string
	ToKey   string
	Rel     string // relates_to | contradicts | depends_on | refines | mentions
	Remove  bool
}

// Link represents a relation between two memory records.
type Link struct {
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Rel       string `json:"rel"`
	CreatedAt string `json:"created_at"`
}

var validRels = map[string]bool{
	"relates_to":  true,
	"contradicts": true,
	"depends_on":  true,
	"refines":     true,
	"mentions":    true,
}

// Link creates or removes a relation between the latest versions of two keys.
func (s *SQLiteStore) Link(ctx context.Context, p LinkParams) (*Link, error) {
	if !validRels[p.Rel] {
		return nil, fmt.Errorf("invalid relation %q (valid: relates_to, contradicts, depends_on, refines, mentions)", p.Rel)
	}

	fromID, err := s.resolveID(ctx, p.UserID, p.FromKey)
	if err != nil {
		return nil, fmt.Errorf("resolve from: %w", err)
	}
	toID, err := s.resolveID(ctx, p.UserID, p.ToKey)
	if err != nil {
		return nil, fmt.Errorf("resolve to: %w", err)
	}

	if p.Remove {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM memory_links WHERE from_id = ? AND to_id = ? AND rel = ?`,
			fromID, toID, p.Rel)
		if err != nil {
			return nil, err
		}
		return &Link{FromID: fromID, ToID: toID, Rel: p.Rel}, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO memory_links (from_id, to_id, rel, created_at) VALUES (?, ?, ?, ?)`,
		fromID, toID, p.Rel, now)
	if err != nil {
		return nil, err
	}
	return &Link{FromID: fromID, ToID: toID, Rel: p.Rel, CreatedAt: now}, nil
}

// GetLinks returns all links touching a record.
func (s *SQLiteStore) GetLinks(ctx context.Context, id string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id, rel, created_at FROM memory_links
		 WHERE from_id = ? OR to_id = ?`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.FromID, &l.ToID, &l.Rel, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *SQLiteStore) Linked(ctx context.Context, userID string, ids []string) ([]model.MemoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in := placeholders(len(ids))
	args := []interface{}{userID}
	for i := 0; i < 2; i++ {
		for _, id := range ids {
			args = append(args, id)
		}
	}
	for _, id := range ids {
		args = append(args, id)
	}

	query := `SELECT ` + memoryColumns + ` FROM memories m ` + latestJoin + `
		WHERE m.deleted_at IS NULL AND m.user_id = ? AND m.id IN (
			SELECT to_id FROM memory_links WHERE from_id IN (` + in + `)
			UNION
			SELECT from_id FROM memory_links WHERE to_id IN (` + in + `)
		) AND m.id NOT IN (` + in + `)
		ORDER BY m.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

// resolveID finds the latest live record ID for a user/key pair.
func (s *SQLiteStore) resolveID(ctx context.Context, userID, key string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM memories WHERE user_id = ? AND key = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`, userID, key).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, userID, key)
	}
	return id, nil
}
