// Package vector is the semantic-search backend: a chromem-go collection of memory records.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/textutil"
)

const collectionName = "memories"

// Options configures the index. An empty Path keeps the index in memory.
type Options struct {
	Path     string
	Compress bool
}

// Filter restricts a semantic search. Categories are OR-ed.
type Filter struct {
	UserID     string
	Categories []model.Category
}

// Index wraps a chromem-go collection keyed by user and memory key.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewIndex opens or creates the index.
func NewIndex(opts Options, embed chromem.EmbeddingFunc, logger *zap.Logger) (*Index, error) {
	if embed == nil {
		return nil, fmt.Errorf("vector index requires an embedding function")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if opts.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem database: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	logger.Debug("vector index ready",
		zap.String("path", opts.Path),
		zap.Int("documents", collection.Count()))
	return &Index{db: db, collection: collection, logger: logger}, nil
}

func docID(userID, key string) string {
	return userID + "/" + key
}

// Add indexes the latest version of a record, replacing any earlier version of its key.
// Records without content words are skipped.
func (ix *Index) Add(ctx context.Context, rec model.MemoryRecord) error {
	if len(textutil.ContentWords(rec.Value, 2)) == 0 {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Documents are keyed by user/key, so a new version overwrites the old one.
	return ix.collection.AddDocument(ctx, chromem.Document{
		ID:      docID(rec.UserID, rec.Key),
		Content: rec.Value,
		Metadata: map[string]string{
			"user_id":  rec.UserID,
			"key":      rec.Key,
			"category": string(rec.Category),
			"record":   string(raw),
		},
	})
}

// Remove drops a user's key from the index. Removing a missing key is not an error.
func (ix *Index) Remove(ctx context.Context, userID, key string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.collection.Delete(ctx, nil, nil, docID(userID, key))
}

// RemoveUser drops every document owned by a user.
func (ix *Index) RemoveUser(ctx context.Context, userID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.collection.Count() == 0 {
		return nil
	}
	return ix.collection.Delete(ctx, map[string]string{"user_id": userID}, nil)
}

// Count returns the number of indexed documents.
func (ix *Index) Count() int {
	return ix.collection.Count()
}

// SemanticSearch returns up to topK of the user's records whose similarity to query is at least
// minSimilarity, most similar first.
func (ix *Index) SemanticSearch(ctx context.Context, query string, f Filter, topK int, minSimilarity float64) ([]model.RetrievalHit, error) {
	if len(textutil.ContentWords(query, 2)) == 0 || topK <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}
	// Category filtering happens after the query, so over-fetch.
	n := topK
	if len(f.Categories) > 0 {
		n = topK * 4
	}
	if n > count {
		n = count
	}

	var where map[string]string
	if f.UserID != "" {
		where = map[string]string{"user_id": f.UserID}
	}

	results, err := ix.collection.Query(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}

	allowed := map[model.Category]bool{}
	for _, c := range f.Categories {
		allowed[c] = true
	}

	var hits []model.RetrievalHit
	for _, r := range results {
		sim := float64(r.Similarity)
		if sim < minSimilarity {
			continue
		}
		if len(allowed) > 0 && !allowed[model.Category(r.Metadata["category"])] {
			continue
		}
		var rec model.MemoryRecord
		if err := json.Unmarshal([]byte(r.Metadata["record"]), &rec); err != nil {
			ix.logger.Warn("skipping undecodable vector document", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		hits = append(hits, model.RetrievalHit{Record: rec, Similarity: sim, Strategy: model.StrategySemantic})
		if len(hits) == topK {
			break
		}
	}
	return hits, nil
}
