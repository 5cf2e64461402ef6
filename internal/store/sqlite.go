package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Candidate writes arrive concurrently; SQLite takes one writer at a time.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func newID() string {
	return ulid.Make().String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		key              TEXT NOT NULL,
		value            TEXT NOT NULL,
		category         TEXT NOT NULL DEFAULT 'general',
		confidence       REAL NOT NULL DEFAULT 0,
		version          INTEGER NOT NULL DEFAULT 1,
		supersedes       TEXT,
		created_at       TEXT NOT NULL,
		deleted_at       TEXT,
		access_count     INTEGER NOT NULL DEFAULT 0,
		last_accessed_at TEXT,
		meta             TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user_key ON memories(user_id, key);
	CREATE INDEX IF NOT EXISTS idx_memories_user_category ON memories(user_id, category);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_deleted ON memories(deleted_at);

	CREATE TABLE IF NOT EXISTS memory_links (
		from_id    TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		to_id      TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		rel        TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, rel)
	);
	CREATE INDEX IF NOT EXISTS idx_links_to ON memory_links(to_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const memoryColumns = `m.id, m.user_id, m.key, m.value, m.category, m.confidence, m.version, m.supersedes,
	m.created_at, m.deleted_at, m.access_count, m.last_accessed_at, m.meta`

// latestJoin restricts m to the newest live version of each user/key.
const latestJoin = `
	INNER JOIN (
		SELECT user_id, key, MAX(version) AS max_ver
		FROM memories WHERE deleted_at IS NULL
		GROUP BY user_id, key
	) latest ON m.user_id = latest.user_id AND m.key = latest.key AND m.version = latest.max_ver`

func (s *SQLiteStore) Store(ctx context.Context, rec model.MemoryRecord) (*model.MemoryRecord, error) {
	if rec.UserID == "" || rec.Key == "" {
		return nil, fmt.Errorf("store: user and key are required")
	}
	if strings.TrimSpace(rec.Value) == "" {
		return nil, fmt.Errorf("store: value is required")
	}

	now := time.Now().UTC()
	if rec.Metadata.CreatedAt.IsZero() {
		rec.Metadata.CreatedAt = now
	}
	if rec.Category == "" {
		rec.Category = "general"
	}
	rec.ID = newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prevID string
	var prevVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT id, version FROM memories
		 WHERE user_id = ? AND key = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`, rec.UserID, rec.Key).Scan(&prevID, &prevVersion)

	rec.Version = 1
	var supersedes *string
	switch {
	case err == nil:
		rec.Version = prevVersion + 1
		supersedes = &prevID
		rec.Metadata.Supersedes = prevID
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("lookup previous version: %w", err)
	case rec.Metadata.Supersedes != "":
		supersedes = &rec.Metadata.Supersedes
	}

	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, key, value, category, confidence, version, supersedes, created_at, access_count, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		rec.ID, rec.UserID, rec.Key, rec.Value, string(rec.Category), rec.Confidence, rec.Version, supersedes,
		rec.Metadata.CreatedAt.UTC().Format(time.RFC3339Nano), string(meta))
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID, key string, history bool) ([]model.MemoryRecord, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories m
		WHERE m.user_id = ? AND m.key = ? AND m.deleted_at IS NULL
		ORDER BY m.version DESC`
	if !history {
		query += ` LIMIT 1`
	}

	rows, err := s.db.QueryContext(ctx, query, userID, key)
	if err != nil {
		return nil, err
	}
	records, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, userID, key)
	}
	return records, nil
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID string, p ListParams) ([]model.MemoryRecord, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"m.deleted_at IS NULL", "m.user_id = ?"}
	args := []interface{}{userID}
	if len(p.Categories) > 0 {
		where = append(where, "m.category IN ("+placeholders(len(p.Categories))+")")
		for _, c := range p.Categories {
			args = append(args, string(c))
		}
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM memories m %s
		WHERE %s
		ORDER BY m.created_at DESC
		LIMIT ?`, memoryColumns, latestJoin, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, key string) error {
	return s.Retire(ctx, RetireParams{UserID: userID, Key: key, Hard: true})
}

func (s *SQLiteStore) Retire(ctx context.Context, p RetireParams) error {
	scope := `user_id = ? AND key = ?`
	args := []interface{}{p.UserID, p.Key}
	if p.KeepID != "" {
		scope += ` AND id != ?`
		args = append(args, p.KeepID)
	}

	var live int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE `+scope+` AND deleted_at IS NULL`, args...).Scan(&live); err != nil {
		return err
	}
	if live == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, p.UserID, p.Key)
	}

	if p.Hard {
		_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE `+scope, args...)
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET deleted_at = ? WHERE `+scope+` AND deleted_at IS NULL`,
		append([]interface{}{now}, args...)...)
	return err
}

func (s *SQLiteStore) Touch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := []interface{}{time.Now().UTC().Format(time.RFC3339Nano)}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?
		 WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAll(rows *sql.Rows) ([]model.MemoryRecord, error) {
	defer rows.Close()
	var records []model.MemoryRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(row scanner) (model.MemoryRecord, error) {
	var r model.MemoryRecord
	var category, createdAt string
	var supersedes, deletedAt, lastAccessed, meta sql.NullString

	err := row.Scan(
		&r.ID, &r.UserID, &r.Key, &r.Value, &category, &r.Confidence, &r.Version, &supersedes,
		&createdAt, &deletedAt, &r.AccessCount, &lastAccessed, &meta,
	)
	if err != nil {
		return r, err
	}

	r.Category = model.Category(category)
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
			return r, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
	}
	r.Metadata.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if supersedes.Valid {
		r.Metadata.Supersedes = supersedes.String
	}
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, deletedAt.String)
		r.DeletedAt = &t
	}
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastAccessed.String)
		r.LastAccessedAt = &t
	}
	return r, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
