// Package store provides the memory store gateway and its SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

// ErrNotFound is returned when no live record matches a user/key pair.
var ErrNotFound = errors.New("memory not found")

// SearchParams holds parameters for a text search over a user's records.
type SearchParams struct {
	UserID     string
	Query      string
	Categories []model.Category
	Limit      int
}

// ListParams holds parameters for listing a user's records.
type ListParams struct {
	Categories []model.Category
	Limit      int
}

// RetireParams holds parameters for retiring all versions of a key.
// KeepID, when set, names one version that survives.
type RetireParams struct {
	UserID string
	Key    string
	Hard   bool
	KeepID string
}

// Gateway is the persistence contract the core depends on.
type Gateway interface {
	// Store persists a record. A record with an existing user/key becomes the new latest version.
	Store(ctx context.Context, rec model.MemoryRecord) (*model.MemoryRecord, error)

	// Search returns the latest version of records matching the query.
	Search(ctx context.Context, p SearchParams) ([]model.RetrievalHit, error)

	// Delete permanently removes every version of a key.
	Delete(ctx context.Context, userID, key string) error

	// ListByUser lists the latest version of each key owned by a user, newest first.
	ListByUser(ctx context.Context, userID string, p ListParams) ([]model.MemoryRecord, error)
}

// Store extends Gateway with the version, access and link operations the memory engine uses.
type Store interface {
	Gateway

	// Get returns the latest live version, or every live version when history is set.
	Get(ctx context.Context, userID, key string, history bool) ([]model.MemoryRecord, error)

	// Retire soft-deletes (or hard-deletes) every version of a key.
	Retire(ctx context.Context, p RetireParams) error

	// Touch bumps access counters of the given record IDs.
	Touch(ctx context.Context, ids []string) error

	// Linked returns live records linked to any of the given IDs, in either direction.
	Linked(ctx context.Context, userID string, ids []string) ([]model.MemoryRecord, error)

	// Close closes the store.
	Close() error
}
