package retrieval

import (
	"context"
	"regexp"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/store"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
	"github.com/neuraplayapp/assistant-core/internal/textutil"
	"github.com/neuraplayapp/assistant-core/internal/vector"
)

// strategy is one independently scored episodic pass.
type strategy struct {
	name string
	run  func(ctx context.Context, r *recall) ([]model.RetrievalHit, error)
}

func (e *Engine) strategies() []strategy {
	return []strategy{
		{model.StrategySemantic, e.semanticRecall},
		{model.StrategyEmotional, emotionalRecall},
		{model.StrategyTemporal, temporalRecall},
		{model.StrategyAssociative, e.associativeRecall},
		{model.StrategyContinuity, continuityRecall},
	}
}

// semanticRecall is unfiltered similarity against the index, or keyword search without one.
func (e *Engine) semanticRecall(ctx context.Context, r *recall) ([]model.RetrievalHit, error) {
	if e.semantic != nil {
		return e.semantic.SemanticSearch(ctx, r.params.Message,
			vector.Filter{UserID: r.params.UserID}, e.cfg.TopK, e.cfg.MinSimilarity)
	}
	hits, err := e.store.Search(ctx, store.SearchParams{
		UserID: r.params.UserID,
		Query:  r.params.Message,
		Limit:  e.cfg.TopK,
	})
	return retag(hits, model.StrategySemantic), err
}

var emotionCue = regexp.MustCompile(`(?i)\b(feel|feeling|felt|sad|happy|upset|anxious|stressed|excited|worried|lonely|angry|scared|afraid|nervous|frustrated|overwhelmed|depressed|proud|grateful)\b`)

// emotionalRecall surfaces emotionally weighted memories when the message carries emotion.
func emotionalRecall(_ context.Context, r *recall) ([]model.RetrievalHit, error) {
	if !emotionCue.MatchString(r.params.Message) {
		return nil, nil
	}
	var hits []model.RetrievalHit
	for _, rec := range r.pool {
		w := rec.Metadata.EmotionalWeight
		if rec.Category == taxonomy.Emotion && w < 0.5 {
			w = 0.5
		}
		if w <= 0 {
			continue
		}
		hits = append(hits, model.RetrievalHit{
			Record:     rec,
			Similarity: 0.4 + 0.6*clamp01(w),
			Strategy:   model.StrategyEmotional,
		})
	}
	return hits, nil
}

var temporalCues = []struct {
	tag     string
	pattern *regexp.Regexp
}{
	{model.TemporalPast, regexp.MustCompile(`(?i)\b(used to|yesterday|last (?:week|month|year|time)|ago|before|back then|when i was)\b`)},
	{model.TemporalFuture, regexp.MustCompile(`(?i)\b(tomorrow|next (?:week|month|year)|going to|plan(?:ning)? to|soon|upcoming|will)\b`)},
	{model.TemporalCurrent, regexp.MustCompile(`(?i)\b(now|currently|these days|today|at the moment|right now)\b`)},
}

// temporalRecall matches the message's time frame against each record's temporal tag.
func temporalRecall(_ context.Context, r *recall) ([]model.RetrievalHit, error) {
	tag := ""
	for _, c := range temporalCues {
		if c.pattern.MatchString(r.params.Message) {
			tag = c.tag
			break
		}
	}
	if tag == "" {
		return nil, nil
	}
	var hits []model.RetrievalHit
	for _, rec := range r.pool {
		if rec.Metadata.TemporalRelevance != tag {
			continue
		}
		hits = append(hits, model.RetrievalHit{
			Record:     rec,
			Similarity: 0.5 + 0.5*textutil.Overlap(r.terms, rec.Value),
			Strategy:   model.StrategyTemporal,
		})
	}
	return hits, nil
}

// associativeRecall follows links out of the records the message mentions directly.
func (e *Engine) associativeRecall(ctx context.Context, r *recall) ([]model.RetrievalHit, error) {
	seeds, err := e.store.Search(ctx, store.SearchParams{
		UserID: r.params.UserID,
		Query:  r.params.Message,
		Limit:  e.cfg.TopK,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(seeds)+len(r.baseline))
	for _, h := range seeds {
		ids = append(ids, h.Record.ID)
	}
	for _, h := range r.baseline {
		ids = append(ids, h.Record.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	linked, err := e.store.Linked(ctx, r.params.UserID, ids)
	if err != nil {
		return nil, err
	}
	hits := make([]model.RetrievalHit, 0, len(linked))
	for _, rec := range linked {
		hits = append(hits, model.RetrievalHit{Record: rec, Similarity: 0.5, Strategy: model.StrategyAssociative})
	}
	return hits, nil
}

// continuityTurns is how many recent turns count as the running conversation.
const continuityTurns = 4

// continuityRecall favors memories from this session or about what was just discussed.
func continuityRecall(_ context.Context, r *recall) ([]model.RetrievalHit, error) {
	var recent []string
	h := r.params.History
	if len(h) > continuityTurns {
		h = h[len(h)-continuityTurns:]
	}
	for _, m := range h {
		recent = append(recent, textutil.ContentWords(m.Content, 3)...)
	}
	if r.params.SessionID == "" && len(recent) == 0 {
		return nil, nil
	}

	var hits []model.RetrievalHit
	for _, rec := range r.pool {
		overlap := textutil.Overlap(recent, rec.Value)
		sameSession := r.params.SessionID != "" && rec.Metadata.SessionID == r.params.SessionID
		if !sameSession && overlap == 0 {
			continue
		}
		sim := 0.6 * overlap
		if sameSession {
			sim += 0.4
		}
		hits = append(hits, model.RetrievalHit{Record: rec, Similarity: sim, Strategy: model.StrategyContinuity})
	}
	return hits, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
