package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath        string      `json:"db_path"`
	DBSizeBytes   int64       `json:"db_size_bytes"`
	TotalRecords  int         `json:"total_records"`
	ActiveRecords int         `json:"active_records"`
	Links         int         `json:"links"`
	Users         []UserStats `json:"users"`
}

// UserStats holds per-user counts.
type UserStats struct {
	UserID     string         `json:"user_id"`
	Count      int            `json:"count"`
	Keys       int            `json:"keys"`
	Categories map[string]int `json:"categories,omitempty"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL`).Scan(&st.ActiveRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_links`).Scan(&st.Links)

	users, err := s.Users(ctx)
	if err != nil {
		return st, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, category, COUNT(*) FROM memories
		WHERE deleted_at IS NULL GROUP BY user_id, category`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	byUser := map[string]map[string]int{}
	for rows.Next() {
		var user, category string
		var n int
		if err := rows.Scan(&user, &category, &n); err != nil {
			return st, err
		}
		if byUser[user] == nil {
			byUser[user] = map[string]int{}
		}
		byUser[user][category] = n
	}
	for i := range users {
		users[i].Categories = byUser[users[i].UserID]
	}
	st.Users = users
	return st, rows.Err()
}

// Users lists every user with live records, largest first.
func (s *SQLiteStore) Users(ctx context.Context) ([]UserStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*) AS cnt, COUNT(DISTINCT key) AS keys
		FROM memories WHERE deleted_at IS NULL
		GROUP BY user_id ORDER BY cnt DESC, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserStats
	for rows.Next() {
		var u UserStats
		if err := rows.Scan(&u.UserID, &u.Count, &u.Keys); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
