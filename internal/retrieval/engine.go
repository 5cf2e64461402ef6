// Package retrieval recalls and ranks the memories relevant to one message.
//
// Every recall starts from an identity baseline (name and general facts), then runs the
// category-expanded search and the episodic strategies in parallel. A broad fallback search
// runs only when both of those come back empty. Results are merged by key, filtered to
// personal categories and ranked with the supersession score.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/scorer"
	"github.com/neuraplayapp/assistant-core/internal/store"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
	"github.com/neuraplayapp/assistant-core/internal/textutil"
	"github.com/neuraplayapp/assistant-core/internal/vector"
)

// Searcher is the semantic-search backend.
type Searcher interface {
	SemanticSearch(ctx context.Context, query string, f vector.Filter, topK int, minSimilarity float64) ([]model.RetrievalHit, error)
}

// Config tunes a recall.
type Config struct {
	Limit         int
	TopK          int
	MinSimilarity float64
	BaselineLimit int
	// PoolLimit bounds the per-user snapshot the episodic strategies score.
	PoolLimit int
}

// DefaultConfig returns the standard recall settings.
func DefaultConfig() Config {
	return Config{Limit: 20, TopK: 10, MinSimilarity: 0.3, BaselineLimit: 10, PoolLimit: 200}
}

const (
	baselineFloor = 0.3
	profileNudge  = 0.1
)

// Engine runs recalls against a store and an optional semantic index.
type Engine struct {
	store    store.Store
	semantic Searcher
	profiles *ProfileCache
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSemantic enables the semantic-search backend.
func WithSemantic(s Searcher) Option { return func(e *Engine) { e.semantic = s } }

// WithProfiles attaches an interest-profile cache.
func WithProfiles(c *ProfileCache) Option { return func(e *Engine) { e.profiles = c } }

// WithConfig overrides the recall settings. Zero fields keep their defaults.
func WithConfig(c Config) Option {
	return func(e *Engine) {
		d := DefaultConfig()
		if c.Limit <= 0 {
			c.Limit = d.Limit
		}
		if c.TopK <= 0 {
			c.TopK = d.TopK
		}
		if c.MinSimilarity <= 0 {
			c.MinSimilarity = d.MinSimilarity
		}
		if c.BaselineLimit <= 0 {
			c.BaselineLimit = d.BaselineLimit
		}
		if c.PoolLimit <= 0 {
			c.PoolLimit = d.PoolLimit
		}
		e.cfg = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine creates an Engine.
func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RecallParams describes one recall.
type RecallParams struct {
	UserID    string
	SessionID string
	Message   string
	History   []model.Message
	Context   model.SupersessionContext
}

// recall is the read-only state shared by the strategies of one recall.
type recall struct {
	params   RecallParams
	qc       model.SupersessionContext
	terms    []string
	baseline []model.RetrievalHit
	pool     []model.MemoryRecord
}

// Recall returns the ranked memories for a message. Strategy failures degrade to empty
// results; only a missing user is an error.
func (e *Engine) Recall(ctx context.Context, p RecallParams) ([]model.RankedMemory, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("recall: user is required")
	}

	qc := p.Context
	if qc.Query == "" {
		qc.Query = p.Message
	}
	if qc.Now.IsZero() {
		qc.Now = e.now()
	}
	if qc.TargetCategory == "" {
		if c, ok := taxonomy.InferFromContent(p.Message); ok {
			qc.TargetCategory = c
		}
	}

	r := &recall{params: p, qc: qc, terms: textutil.ContentWords(p.Message, 3)}
	r.baseline = e.baseline(ctx, r)
	pool, err := e.store.ListByUser(ctx, p.UserID, store.ListParams{Limit: e.cfg.PoolLimit})
	if err != nil {
		e.logger.Warn("recall pool unavailable", zap.String("user", p.UserID), zap.Error(err))
	}
	r.pool = pool

	var (
		mu       sync.Mutex
		category []model.RetrievalHit
		episodic []model.RetrievalHit
		g        errgroup.Group
	)
	g.Go(func() error {
		hits := e.categorySearch(ctx, r)
		mu.Lock()
		category = hits
		mu.Unlock()
		return nil
	})
	for _, s := range e.strategies() {
		g.Go(func() error {
			hits, err := s.run(ctx, r)
			if err != nil {
				e.logger.Warn("recall strategy failed",
					zap.String("strategy", s.name),
					zap.String("user", p.UserID),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			episodic = append(episodic, hits...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	var fallback []model.RetrievalHit
	if len(category) == 0 && len(episodic) == 0 {
		fallback = e.fallbackSearch(ctx, r)
	}

	merged := merge(r.baseline, category, episodic, fallback)
	ranked := e.rank(merged, r)

	if len(ranked) > 0 {
		ids := make([]string, 0, len(ranked))
		for _, m := range ranked {
			ids = append(ids, m.ID)
		}
		if err := e.store.Touch(ctx, ids); err != nil {
			e.logger.Warn("touch failed", zap.String("user", p.UserID), zap.Error(err))
		}
	}
	if e.profiles != nil && qc.TargetCategory != "" && qc.TargetCategory != taxonomy.General {
		e.profiles.Observe(p.UserID, qc.TargetCategory)
	}

	e.logger.Debug("recall",
		zap.String("user", p.UserID),
		zap.Int("baseline", len(r.baseline)),
		zap.Int("category", len(category)),
		zap.Int("episodic", len(episodic)),
		zap.Int("fallback", len(fallback)),
		zap.Int("returned", len(ranked)))
	return ranked, nil
}

// baseline fetches the identity slice regardless of the query. Name records are listed on
// their own so recent general facts can never push them out of the slice.
func (e *Engine) baseline(ctx context.Context, r *recall) []model.RetrievalHit {
	var hits []model.RetrievalHit
	for _, cat := range []model.Category{taxonomy.Name, taxonomy.General} {
		recs, err := e.store.ListByUser(ctx, r.params.UserID, store.ListParams{
			Categories: []model.Category{cat},
			Limit:      e.cfg.BaselineLimit,
		})
		if err != nil {
			e.logger.Warn("identity baseline unavailable",
				zap.String("user", r.params.UserID),
				zap.String("category", string(cat)),
				zap.Error(err))
			continue
		}
		for _, rec := range recs {
			sim := textutil.Overlap(r.terms, rec.Value)
			if sim < baselineFloor {
				sim = baselineFloor
			}
			hits = append(hits, model.RetrievalHit{Record: rec, Similarity: sim, Strategy: model.StrategyBaseline})
		}
	}
	return hits
}

// categorySearch queries the gateway and the semantic index within the expanded target category.
func (e *Engine) categorySearch(ctx context.Context, r *recall) []model.RetrievalHit {
	var cats []model.Category
	if c := r.qc.TargetCategory; c != "" && c != taxonomy.General {
		cats = taxonomy.Expand(c)
	}

	hits, err := e.store.Search(ctx, store.SearchParams{
		UserID:     r.params.UserID,
		Query:      r.params.Message,
		Categories: cats,
		Limit:      e.cfg.TopK,
	})
	if err != nil {
		e.logger.Warn("category search failed", zap.String("user", r.params.UserID), zap.Error(err))
		hits = nil
	}

	if e.semantic != nil {
		sem, err := e.semantic.SemanticSearch(ctx, r.params.Message,
			vector.Filter{UserID: r.params.UserID, Categories: cats}, e.cfg.TopK, e.cfg.MinSimilarity)
		if err != nil {
			e.logger.Warn("category semantic search failed", zap.String("user", r.params.UserID), zap.Error(err))
		}
		hits = append(hits, sem...)
	}
	return retag(hits, model.StrategyCategory)
}

// fallbackSearch is the broad, unfiltered pass.
func (e *Engine) fallbackSearch(ctx context.Context, r *recall) []model.RetrievalHit {
	hits, err := e.store.Search(ctx, store.SearchParams{
		UserID: r.params.UserID,
		Query:  r.params.Message,
		Limit:  e.cfg.Limit,
	})
	if err != nil {
		e.logger.Warn("fallback search failed", zap.String("user", r.params.UserID), zap.Error(err))
		hits = nil
	}
	if e.semantic != nil {
		sem, err := e.semantic.SemanticSearch(ctx, r.params.Message,
			vector.Filter{UserID: r.params.UserID}, e.cfg.Limit, 0)
		if err != nil {
			e.logger.Warn("fallback semantic search failed", zap.String("user", r.params.UserID), zap.Error(err))
		}
		hits = append(hits, sem...)
	}
	return retag(hits, model.StrategyFallback)
}

func retag(hits []model.RetrievalHit, strategy string) []model.RetrievalHit {
	for i := range hits {
		hits[i].Strategy = strategy
	}
	return hits
}

// merge unions hit sets by key. Earlier sets take precedence; a later hit for the same key
// only raises the similarity, and never when it comes from the fallback pass.
func merge(baseline, category, episodic, fallback []model.RetrievalHit) []model.RetrievalHit {
	index := map[string]int{}
	var out []model.RetrievalHit
	add := func(hits []model.RetrievalHit, canRaise bool) {
		for _, h := range hits {
			if i, ok := index[h.Record.Key]; ok {
				if canRaise && h.Similarity > out[i].Similarity {
					out[i].Similarity = h.Similarity
				}
				continue
			}
			index[h.Record.Key] = len(out)
			out = append(out, h)
		}
	}
	add(baseline, true)
	add(category, true)
	add(episodic, true)
	add(fallback, false)
	return out
}

// IsChunk reports whether a record is a course or lesson chunk, which has its own delivery
// channel and never counts as a personal memory.
func IsChunk(r model.MemoryRecord) bool {
	if r.Metadata.Granularity == model.GranularityChunk {
		return true
	}
	return strings.HasPrefix(r.Key, "course_chunk") || strings.HasPrefix(r.Key, "lesson_chunk")
}

// rank filters, scores and truncates the merged hits.
func (e *Engine) rank(hits []model.RetrievalHit, r *recall) []model.RankedMemory {
	var weights map[model.Category]float64
	if e.profiles != nil {
		if p, ok := e.profiles.Get(r.params.UserID); ok {
			weights = p.Weights
		} else {
			weights = e.profiles.Build(r.params.UserID, r.pool).Weights
		}
	}

	out := make([]model.RankedMemory, 0, len(hits))
	for _, h := range hits {
		rec := h.Record
		if !taxonomy.IsPersonal(rec.Category) || IsChunk(rec) || rec.DeletedAt != nil {
			continue
		}
		relevance := h.Similarity + profileNudge*weights[rec.Category]
		out = append(out, model.RankedMemory{
			ID:       rec.ID,
			Key:      rec.Key,
			Content:  rec.Value,
			Category: rec.Category,
			Score:    scorer.Score(rec, relevance, r.qc),
			Strategy: h.Strategy,
			Recency:  rec.CreatedAt(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > e.cfg.Limit {
		out = out[:e.cfg.Limit]
	}
	return out
}
