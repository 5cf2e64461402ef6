// Package memory applies what a message says about the user to the memory store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neuraplayapp/assistant-core/internal/extract"
	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/scorer"
	"github.com/neuraplayapp/assistant-core/internal/store"
	"github.com/neuraplayapp/assistant-core/internal/textutil"
)

// maxScan bounds how many records a forget or negation scans per user.
const maxScan = 1000

// Indexer keeps the semantic index in step with the store.
type Indexer interface {
	Add(ctx context.Context, rec model.MemoryRecord) error
	Remove(ctx context.Context, userID, key string) error
	RemoveUser(ctx context.Context, userID string) error
}

// Manager routes classified messages to store, overwrite and delete logic.
type Manager struct {
	store  store.Store
	index  Indexer
	chain  *extract.Chain
	logger *zap.Logger
	now    func() time.Time
	writes int
}

// Option configures a Manager.
type Option func(*Manager)

// WithIndex mirrors writes into a semantic index.
func WithIndex(ix Indexer) Option { return func(m *Manager) { m.index = ix } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithWriteConcurrency bounds concurrent candidate writes.
func WithWriteConcurrency(n int) Option { return func(m *Manager) { m.writes = n } }

// New creates a Manager.
func New(st store.Store, chain *extract.Chain, opts ...Option) *Manager {
	m := &Manager{
		store:  st,
		chain:  chain,
		logger: zap.NewNop(),
		now:    time.Now,
		writes: 4,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// IngestParams is one user message to learn from.
type IngestParams struct {
	UserID    string
	SessionID string
	Message   string
	History   []model.Message
}

// Skip records a candidate that was not written.
type Skip struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// IngestResult reports what a message changed.
type IngestResult struct {
	Operation extract.Operation    `json:"operation"`
	Stored    []model.MemoryRecord `json:"stored,omitempty"`
	Retired   []string             `json:"retired,omitempty"`
	Deleted   []string             `json:"deleted,omitempty"`
	Skipped   []Skip               `json:"skipped,omitempty"`
}

// Ingest classifies a message and applies it. Storage failures are logged per key and never
// returned; only invalid input is an error.
func (m *Manager) Ingest(ctx context.Context, p IngestParams) (*IngestResult, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("ingest: user is required")
	}
	res := &IngestResult{Operation: extract.Classify(p.Message)}

	switch res.Operation {
	case extract.OpForget:
		m.forget(ctx, p, res)
	case extract.OpUpdate:
		if extract.IsNegation(p.Message) {
			m.negate(ctx, p, res)
		} else {
			m.write(ctx, p, res)
		}
	case extract.OpStore:
		m.write(ctx, p, res)
	}
	return res, nil
}

// write stores extracted candidates concurrently, best effort per key.
func (m *Manager) write(ctx context.Context, p IngestParams, res *IngestResult) {
	cands := m.chain.Extract(ctx, p.Message, extract.ExtractContext{
		UserID:    p.UserID,
		SessionID: p.SessionID,
		History:   p.History,
	})
	if len(cands) == 0 {
		return
	}
	explicit := extract.HasExplicitDeclaration(p.Message)
	now := m.now()

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(m.writes)
	for _, c := range cands {
		g.Go(func() error {
			rec := c.Record(p.UserID, p.SessionID, now)
			stored, retired, skip, err := m.apply(ctx, rec, p.Message, explicit)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("%s: %w", c.Key, err))
			case skip != "":
				res.Skipped = append(res.Skipped, Skip{Key: c.Key, Reason: skip})
			default:
				res.Stored = append(res.Stored, *stored)
			}
			if retired {
				res.Retired = append(res.Retired, c.Key)
			}
			return nil
		})
	}
	g.Wait()

	if err := errors.Join(errs...); err != nil {
		m.logger.Warn("some memories were not stored",
			zap.String("user", p.UserID),
			zap.Int("failed", len(errs)),
			zap.Error(err))
	}
}

// apply resolves a record against its key's current version and writes it.
func (m *Manager) apply(ctx context.Context, rec model.MemoryRecord, message string, explicit bool) (*model.MemoryRecord, bool, string, error) {
	existing, err := m.store.Get(ctx, rec.UserID, rec.Key, false)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, "", fmt.Errorf("load current version: %w", err)
	}

	cand := []model.Candidate{{Key: rec.Key, Value: rec.Value}}
	if !explicit && len(extract.Protect(cand, existing, message)) == 0 {
		return nil, false, "protected", nil
	}

	resolution := scorer.ResolveConflict(rec, existing, explicit)
	if !resolution.Accept {
		return nil, false, resolution.Reason, nil
	}

	if resolution.Reason == "accumulate" {
		rec.Key = extract.VariantKey(rec.Key, rec.Value)
	}

	stored, err := m.store.Store(ctx, rec)
	if err != nil {
		return nil, false, "", err
	}

	// Older versions go only once the new one is durable. A failed retirement is logged;
	// the new version is already latest.
	retired := false
	if len(resolution.Retire) > 0 {
		err := m.store.Retire(ctx, store.RetireParams{UserID: rec.UserID, Key: rec.Key, Hard: resolution.Hard, KeepID: stored.ID})
		if err != nil {
			m.logger.Warn("could not retire superseded memory",
				zap.String("user", rec.UserID),
				zap.String("key", rec.Key),
				zap.Error(err))
		} else {
			retired = true
		}
	}
	m.indexAdd(ctx, *stored)
	m.logger.Debug("stored memory",
		zap.String("user", rec.UserID),
		zap.String("key", rec.Key),
		zap.String("resolution", resolution.Reason))
	return stored, retired, "", nil
}

// StoreExplicit writes a record as an explicit user statement, applying the same conflict
// policy as extraction.
func (m *Manager) StoreExplicit(ctx context.Context, rec model.MemoryRecord) (*model.MemoryRecord, string, error) {
	if rec.Metadata.Source == "" {
		rec.Metadata.Source = model.SourceExplicit
	}
	if rec.Metadata.Importance == 0 {
		rec.Metadata.Importance = scorer.DefaultImportance
	}
	if rec.Confidence == 0 {
		rec.Confidence = 1
	}
	if rec.Metadata.CreatedAt.IsZero() {
		rec.Metadata.CreatedAt = m.now()
	}
	stored, _, skip, err := m.apply(ctx, rec, "", true)
	return stored, skip, err
}

// Forget permanently removes one key.
func (m *Manager) Forget(ctx context.Context, userID, key string) error {
	if err := m.store.Delete(ctx, userID, key); err != nil {
		return err
	}
	m.indexRemove(ctx, userID, key)
	return nil
}

func (m *Manager) forget(ctx context.Context, p IngestParams, res *IngestResult) {
	target := extract.TargetOf(p.Message)
	if !target.All && target.Category == "" && len(target.Terms) == 0 {
		return
	}

	lp := store.ListParams{Limit: maxScan}
	if !target.All && target.Category != "" {
		lp.Categories = []model.Category{target.Category}
	}
	records, err := m.store.ListByUser(ctx, p.UserID, lp)
	if err != nil {
		m.logger.Warn("forget: list failed", zap.String("user", p.UserID), zap.Error(err))
		return
	}

	for _, r := range records {
		if !target.All && len(target.Terms) > 0 && textutil.Overlap(target.Terms, forgetText(r)) == 0 {
			continue
		}
		if err := m.store.Delete(ctx, p.UserID, r.Key); err != nil {
			m.logger.Warn("forget: delete failed", zap.String("key", r.Key), zap.Error(err))
			continue
		}
		if !target.All {
			m.indexRemove(ctx, p.UserID, r.Key)
		}
		res.Deleted = append(res.Deleted, r.Key)
	}
	if target.All && m.index != nil {
		if err := m.index.RemoveUser(ctx, p.UserID); err != nil {
			m.logger.Warn("forget: index purge failed", zap.String("user", p.UserID), zap.Error(err))
		}
	}
}

// forgetText is the text forget terms are matched against.
func forgetText(r model.MemoryRecord) string {
	text := r.Key + " " + r.Value
	if e := r.Metadata.Entity; e != nil {
		text += " " + e.Relation + " " + e.Name
	}
	return text
}

// negate soft-retires records that a negation denies.
func (m *Manager) negate(ctx context.Context, p IngestParams, res *IngestResult) {
	n, ok := extract.NegationOf(p.Message)
	if !ok {
		return
	}
	terms := textutil.ContentWords(n.Value, 2)
	if len(terms) == 0 {
		return
	}

	lp := store.ListParams{Limit: maxScan}
	if n.Category != "" {
		lp.Categories = []model.Category{n.Category}
	}
	records, err := m.store.ListByUser(ctx, p.UserID, lp)
	if err != nil {
		m.logger.Warn("negation: list failed", zap.String("user", p.UserID), zap.Error(err))
		return
	}

	for _, r := range records {
		if textutil.Overlap(terms, r.Value) < 0.5 {
			continue
		}
		if err := m.store.Retire(ctx, store.RetireParams{UserID: p.UserID, Key: r.Key}); err != nil {
			m.logger.Warn("negation: retire failed", zap.String("key", r.Key), zap.Error(err))
			continue
		}
		m.indexRemove(ctx, p.UserID, r.Key)
		res.Retired = append(res.Retired, r.Key)
	}
}

func (m *Manager) indexAdd(ctx context.Context, rec model.MemoryRecord) {
	if m.index == nil {
		return
	}
	if err := m.index.Add(ctx, rec); err != nil {
		m.logger.Warn("index add failed", zap.String("key", rec.Key), zap.Error(err))
	}
}

func (m *Manager) indexRemove(ctx context.Context, userID, key string) {
	if m.index == nil {
		return
	}
	if err := m.index.Remove(ctx, userID, key); err != nil {
		m.logger.Warn("index remove failed", zap.String("key", key), zap.Error(err))
	}
}

// String renders a result for logs and CLI output.
func (r *IngestResult) String() string {
	var b strings.Builder
	b.WriteString(string(r.Operation))
	for _, s := range r.Stored {
		fmt.Fprintf(&b, " +%s", s.Key)
	}
	for _, k := range r.Retired {
		fmt.Fprintf(&b, " ~%s", k)
	}
	for _, k := range r.Deleted {
		fmt.Fprintf(&b, " -%s", k)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, " !%s(%s)", s.Key, s.Reason)
	}
	return b.String()
}
