package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/store"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
	"github.com/neuraplayapp/assistant-core/internal/vector"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func put(t *testing.T, s store.Store, key, value string, cat model.Category, mutate ...func(*model.MemoryRecord)) model.MemoryRecord {
	t.Helper()
	rec := model.MemoryRecord{
		UserID:     "u1",
		Key:        key,
		Value:      value,
		Category:   cat,
		Confidence: 0.9,
		Metadata: model.MemoryMetadata{
			Source:     model.SourceExplicit,
			Importance: 0.8,
			CreatedAt:  now.Add(-48 * time.Hour),
		},
	}
	for _, m := range mutate {
		m(&rec)
	}
	stored, err := s.Store(context.Background(), rec)
	require.NoError(t, err)
	return *stored
}

func recallKeys(t *testing.T, e *Engine, p RecallParams) []string {
	t.Helper()
	if p.UserID == "" {
		p.UserID = "u1"
	}
	got, err := e.Recall(context.Background(), p)
	require.NoError(t, err)
	keys := make([]string, 0, len(got))
	for _, m := range got {
		keys = append(keys, m.Key)
	}
	return keys
}

func strategyOf(mems []model.RankedMemory, key string) string {
	for _, m := range mems {
		if m.Key == key {
			return m.Strategy
		}
	}
	return ""
}

// fakeSearcher records the filters it is called with.
type fakeSearcher struct {
	mu    sync.Mutex
	calls []fakeCall
	hits  []model.RetrievalHit
	err   error
}

type fakeCall struct {
	filter vector.Filter
	minSim float64
}

func (f *fakeSearcher) SemanticSearch(_ context.Context, _ string, filter vector.Filter, _ int, minSim float64) ([]model.RetrievalHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{filter: filter, minSim: minSim})
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.RetrievalHit, len(f.hits))
	copy(out, f.hits)
	return out, nil
}

func (f *fakeSearcher) fallbackCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.minSim == 0 {
			n++
		}
	}
	return n
}

func TestRecall_NameRankedFirst(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "user_name", "Ahmed", taxonomy.Name)
	put(t, s, "hobby_chess", "plays chess", taxonomy.Hobby)
	put(t, s, "user_location", "Cairo", taxonomy.Location)
	e := NewEngine(s, WithClock(func() time.Time { return now }))

	keys := recallKeys(t, e, RecallParams{Message: "What's my name?"})
	require.NotEmpty(t, keys)
	assert.Equal(t, "user_name", keys[0])
}

func TestRecall_IdentityBaselineForAnyQuery(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "user_name", "Ahmed", taxonomy.Name)
	put(t, s, "hobby_chess", "plays chess on weekends", taxonomy.Hobby)
	put(t, s, "user_profession", "nurse", taxonomy.Profession)
	put(t, s, "preference_food", "loves spicy ramen", taxonomy.Preference)
	put(t, s, "family_uncle_omar", "uncle Omar", taxonomy.Family)
	e := NewEngine(s, WithClock(func() time.Time { return now }))

	words := []string{"chess", "weather", "ramen", "uncle", "quantum", "hello", "nurse", "tomorrow",
		"feel", "stressed", "what", "is", "the", "capital", "france", "translate", "poem", "?", ""}
	rng := rand.New(rand.NewSource(7))

	hits := 0
	for i := 0; i < 100; i++ {
		n := rng.Intn(6)
		q := make([]string, n)
		for j := range q {
			q[j] = words[rng.Intn(len(words))]
		}
		keys := recallKeys(t, e, RecallParams{Message: strings.Join(q, " ")})
		for _, k := range keys {
			if k == "user_name" {
				hits++
				break
			}
		}
	}
	assert.GreaterOrEqual(t, hits, 99)
}

func TestRecall_NameSurvivesManyGeneralFacts(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "user_name", "Ahmed", taxonomy.Name, func(r *model.MemoryRecord) {
		r.Metadata.CreatedAt = now.Add(-30 * 24 * time.Hour)
	})
	e := NewEngine(s, WithClock(func() time.Time { return now }))
	for i := 0; i < e.cfg.BaselineLimit+2; i++ {
		put(t, s, fmt.Sprintf("general_note_%d", i), fmt.Sprintf("note number %d", i), taxonomy.General)
	}

	assert.Contains(t, recallKeys(t, e, RecallParams{Message: "hello there"}), "user_name")
}

func TestRecall_CategoryExpansion(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "user_profession", "nurse", taxonomy.Profession)
	sem := &fakeSearcher{}
	e := NewEngine(s, WithSemantic(sem), WithClock(func() time.Time { return now }))

	_, err := e.Recall(context.Background(), RecallParams{UserID: "u1", Message: "tell me about my job"})
	require.NoError(t, err)

	var filtered *vector.Filter
	for _, c := range sem.calls {
		if len(c.filter.Categories) > 0 {
			filtered = &c.filter
		}
	}
	require.NotNil(t, filtered, "expected a category-filtered semantic search")
	assert.Equal(t, "u1", filtered.UserID)
	assert.Equal(t, taxonomy.Expand(taxonomy.Profession), filtered.Categories)
	assert.Contains(t, filtered.Categories, taxonomy.Education)
}

func TestRecall_ExcludesChunksAndDocuments(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "course_biology", "summary of the biology course", taxonomy.Course, func(r *model.MemoryRecord) {
		r.Metadata.Granularity = model.GranularitySummary
	})
	put(t, s, "course_biology_part3", "biology cell division notes", taxonomy.Course, func(r *model.MemoryRecord) {
		r.Metadata.Granularity = model.GranularityChunk
	})
	put(t, s, "lesson_chunk_12", "biology lesson text", taxonomy.Course)
	put(t, s, "doc_biology", "biology essay draft", taxonomy.Document)
	e := NewEngine(s, WithClock(func() time.Time { return now }))

	keys := recallKeys(t, e, RecallParams{Message: "biology"})
	assert.Equal(t, []string{"course_biology"}, keys)
}

func TestRecall_FallbackOnlyWhenPassesAreEmpty(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "hobby_chess", "plays chess", taxonomy.Hobby)

	sem := &fakeSearcher{}
	e := NewEngine(s, WithSemantic(sem), WithClock(func() time.Time { return now }))
	recallKeys(t, e, RecallParams{Message: "quantum chromodynamics lecture"})
	assert.Equal(t, 1, sem.fallbackCalls())

	sem = &fakeSearcher{}
	e = NewEngine(s, WithSemantic(sem), WithClock(func() time.Time { return now }))
	keys := recallKeys(t, e, RecallParams{Message: "do I still play chess"})
	assert.Contains(t, keys, "hobby_chess")
	assert.Equal(t, 0, sem.fallbackCalls())
}

func TestRecall_FailingBackendDegrades(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "user_name", "Ahmed", taxonomy.Name)
	sem := &fakeSearcher{err: errors.New("connection refused")}
	e := NewEngine(s, WithSemantic(sem), WithClock(func() time.Time { return now }))

	keys := recallKeys(t, e, RecallParams{Message: "what do I like"})
	assert.Equal(t, []string{"user_name"}, keys)
}

func TestRecall_SemanticHitsMergeByKey(t *testing.T) {
	s := newTestStore(t)
	chess := put(t, s, "hobby_chess", "plays chess", taxonomy.Hobby)
	sem := &fakeSearcher{hits: []model.RetrievalHit{{Record: chess, Similarity: 0.9, Strategy: model.StrategySemantic}}}
	e := NewEngine(s, WithSemantic(sem), WithClock(func() time.Time { return now }))

	keys := recallKeys(t, e, RecallParams{Message: "board games chess"})
	assert.Equal(t, []string{"hobby_chess"}, keys)
}

func TestRecall_Associative(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	put(t, s, "hobby_chess", "plays chess", taxonomy.Hobby)
	put(t, s, "goal_tournament", "wants to win the regional tournament", taxonomy.Goal)
	_, err := s.Link(ctx, store.LinkParams{UserID: "u1", FromKey: "hobby_chess", ToKey: "goal_tournament", Rel: "relates_to"})
	require.NoError(t, err)
	e := NewEngine(s, WithClock(func() time.Time { return now }))

	got, err := e.Recall(ctx, RecallParams{UserID: "u1", Message: "chess"})
	require.NoError(t, err)
	assert.Equal(t, model.StrategyAssociative, strategyOf(got, "goal_tournament"))
}

func TestRecall_Emotional(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "emotion_exams", "stressed about exams", taxonomy.Emotion, func(r *model.MemoryRecord) {
		r.Metadata.EmotionalWeight = 0.8
	})
	e := NewEngine(s, WithClock(func() time.Time { return now }))

	got, err := e.Recall(context.Background(), RecallParams{UserID: "u1", Message: "I feel bad"})
	require.NoError(t, err)
	assert.Equal(t, model.StrategyEmotional, strategyOf(got, "emotion_exams"))
}

func TestRecall_Continuity(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "preference_tea", "prefers green tea", taxonomy.Preference, func(r *model.MemoryRecord) {
		r.Metadata.SessionID = "s9"
	})
	put(t, s, "hobby_hiking", "goes hiking in the alps", taxonomy.Hobby)
	e := NewEngine(s, WithClock(func() time.Time { return now }))

	got, err := e.Recall(context.Background(), RecallParams{
		UserID:    "u1",
		SessionID: "s9",
		Message:   "ok",
		History:   []model.Message{{Role: "user", Content: "we talked about hiking trips"}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StrategyContinuity, strategyOf(got, "preference_tea"))
	assert.Equal(t, model.StrategyContinuity, strategyOf(got, "hobby_hiking"))
}

func TestRecall_TouchesReturnedRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	put(t, s, "user_name", "Ahmed", taxonomy.Name)
	e := NewEngine(s, WithClock(func() time.Time { return now }))

	recallKeys(t, e, RecallParams{Message: "hi"})
	recallKeys(t, e, RecallParams{Message: "hi"})
	got, err := s.Get(ctx, "u1", "user_name", false)
	require.NoError(t, err)
	assert.Equal(t, 2, got[0].AccessCount)
}

func TestRecall_CapsResults(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 30; i++ {
		put(t, s, "general_fact_"+string(rune('a'+i%26))+string(rune('a'+i/26)), "fact about chess", taxonomy.General)
	}
	e := NewEngine(s, WithConfig(Config{Limit: 5}), WithClock(func() time.Time { return now }))
	assert.Len(t, recallKeys(t, e, RecallParams{Message: "chess"}), 5)
}

func TestRecall_RequiresUser(t *testing.T) {
	e := NewEngine(newTestStore(t))
	_, err := e.Recall(context.Background(), RecallParams{Message: "hi"})
	assert.Error(t, err)
}

func TestRecall_ObservesInterestProfile(t *testing.T) {
	s := newTestStore(t)
	put(t, s, "hobby_chess", "plays chess", taxonomy.Hobby)
	cache := NewProfileCache(time.Hour)
	e := NewEngine(s, WithProfiles(cache), WithClock(func() time.Time { return now }))

	recallKeys(t, e, RecallParams{Message: "what are my hobbies"})
	p, ok := cache.Get("u1")
	require.True(t, ok)
	assert.Equal(t, 1.0, p.Weights[taxonomy.Hobby])
}

func TestMerge_FallbackNeverOverrides(t *testing.T) {
	rec := model.MemoryRecord{Key: "k", Value: "v"}
	merged := merge(
		nil,
		[]model.RetrievalHit{{Record: rec, Similarity: 0.4, Strategy: model.StrategyCategory}},
		[]model.RetrievalHit{{Record: rec, Similarity: 0.6, Strategy: model.StrategySemantic}},
		[]model.RetrievalHit{{Record: rec, Similarity: 0.9, Strategy: model.StrategyFallback}},
	)
	require.Len(t, merged, 1)
	assert.Equal(t, model.StrategyCategory, merged[0].Strategy)
	assert.Equal(t, 0.6, merged[0].Similarity)
}

func TestIsChunk(t *testing.T) {
	assert.True(t, IsChunk(model.MemoryRecord{Key: "course_chunk_4"}))
	assert.True(t, IsChunk(model.MemoryRecord{Key: "x", Metadata: model.MemoryMetadata{Granularity: model.GranularityChunk}}))
	assert.False(t, IsChunk(model.MemoryRecord{Key: "course_summary", Metadata: model.MemoryMetadata{Granularity: model.GranularitySummary}}))
}
