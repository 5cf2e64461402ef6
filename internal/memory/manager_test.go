package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neuraplayapp/assistant-core/internal/embedding"
	"github.com/neuraplayapp/assistant-core/internal/extract"
	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/store"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
	"github.com/neuraplayapp/assistant-core/internal/vector"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestIndex(t *testing.T) *vector.Index {
	t.Helper()
	ix, err := vector.NewIndex(vector.Options{}, embedding.ChromemFunc(embedding.NewHashEmbedder(1024)), nil)
	require.NoError(t, err)
	return ix
}

func ingest(t *testing.T, m *Manager, msg string) *IngestResult {
	t.Helper()
	res, err := m.Ingest(context.Background(), IngestParams{UserID: "u1", SessionID: "s1", Message: msg})
	require.NoError(t, err)
	return res
}

func keys(recs []model.MemoryRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Key)
	}
	return out
}

func TestIngest_StoresName(t *testing.T) {
	st := newTestStore(t)
	m := New(st, extract.NewChain(nil))

	res := ingest(t, m, "My name is Ahmed")
	assert.Equal(t, extract.OpStore, res.Operation)
	require.Len(t, res.Stored, 1)
	assert.Equal(t, "user_name", res.Stored[0].Key)

	got, err := st.Get(context.Background(), "u1", "user_name", false)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", got[0].Value)
	assert.Equal(t, "s1", got[0].Metadata.SessionID)
}

func TestIngest_DuplicateIsNoop(t *testing.T) {
	st := newTestStore(t)
	m := New(st, extract.NewChain(nil))

	ingest(t, m, "My name is Ahmed")
	res := ingest(t, m, "My name is Ahmed")
	assert.Empty(t, res.Stored)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "duplicate", res.Skipped[0].Reason)

	got, err := st.Get(context.Background(), "u1", "user_name", true)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIngest_NameCorrectionDeletesOldName(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m := New(st, extract.NewChain(nil))

	first := ingest(t, m, "My name is Ahmed")
	require.Len(t, first.Stored, 1)

	res := ingest(t, m, "Actually, my name is Sam")
	assert.Equal(t, extract.OpUpdate, res.Operation)
	assert.Equal(t, []string{"user_name"}, res.Retired)
	require.Len(t, res.Stored, 1)
	assert.Equal(t, first.Stored[0].ID, res.Stored[0].Metadata.Supersedes)

	history, err := st.Get(ctx, "u1", "user_name", true)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Sam", history[0].Value)
}

func TestIngest_ForgetCategory(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	ix := newTestIndex(t)
	m := New(st, extract.NewChain(nil), WithIndex(ix))

	ingest(t, m, "My name is Ahmed")
	ingest(t, m, "I live in Cairo")
	require.Equal(t, 2, ix.Count())

	res := ingest(t, m, "Forget my name")
	assert.Equal(t, extract.OpForget, res.Operation)
	assert.Equal(t, []string{"user_name"}, res.Deleted)

	_, err := st.Get(ctx, "u1", "user_name", false)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, err = st.Get(ctx, "u1", "user_location", false)
	assert.NoError(t, err)
	assert.Equal(t, 1, ix.Count())
}

func TestIngest_ForgetRelationKeepsRestOfCategory(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m := New(st, extract.NewChain(nil))

	for _, r := range []model.MemoryRecord{
		{UserID: "u1", Key: "family_mother_sarah", Value: "mother Sarah is a teacher", Category: taxonomy.Family,
			Metadata: model.MemoryMetadata{Entity: &model.Entity{Name: "Sarah", Relation: "mother"}}},
		{UserID: "u1", Key: "family_uncle_omar", Value: "uncle Omar lives in Alexandria", Category: taxonomy.Family,
			Metadata: model.MemoryMetadata{Entity: &model.Entity{Name: "Omar", Relation: "uncle"}}},
	} {
		_, err := st.Store(ctx, r)
		require.NoError(t, err)
	}

	res := ingest(t, m, "Forget my uncle")
	assert.Equal(t, extract.OpForget, res.Operation)
	assert.Equal(t, []string{"family_uncle_omar"}, res.Deleted)

	left, err := st.ListByUser(ctx, "u1", store.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"family_mother_sarah"}, keys(left))

	res = ingest(t, m, "Forget my family")
	assert.Equal(t, []string{"family_mother_sarah"}, res.Deleted)
}

func TestIngest_ForgetEverything(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	ix := newTestIndex(t)
	m := New(st, extract.NewChain(nil), WithIndex(ix))

	ingest(t, m, "My name is Ahmed")
	ingest(t, m, "I live in Cairo and I work as a nurse")
	_, err := st.Store(ctx, model.MemoryRecord{UserID: "u2", Key: "user_name", Value: "Lina", Category: taxonomy.Name})
	require.NoError(t, err)

	res := ingest(t, m, "Delete all my memories")
	assert.ElementsMatch(t, []string{"user_name", "user_location", "user_profession"}, res.Deleted)

	left, err := st.ListByUser(ctx, "u1", store.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Equal(t, 0, ix.Count())

	other, err := st.ListByUser(ctx, "u2", store.ListParams{})
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestIngest_ForgetWithoutTargetDeletesNothing(t *testing.T) {
	st := newTestStore(t)
	m := New(st, extract.NewChain(nil))
	ingest(t, m, "My name is Ahmed")

	res := ingest(t, m, "forget what I told you")
	assert.Equal(t, extract.OpForget, res.Operation)
	assert.Empty(t, res.Deleted)
}

func TestIngest_NegationRetires(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m := New(st, extract.NewChain(nil))

	ingest(t, m, "I live in Cairo and I work as a nurse")
	res := ingest(t, m, "I am not a nurse anymore")
	assert.Equal(t, extract.OpUpdate, res.Operation)
	assert.Equal(t, []string{"user_profession"}, res.Retired)
	assert.Empty(t, res.Stored)

	left, err := st.ListByUser(ctx, "u1", store.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"user_location"}, keys(left))
}

func TestIngest_RecallAndAmbiguousChangeNothing(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m := New(st, extract.NewChain(nil))

	for _, msg := range []string{"What is my name?", "add a chart to the canvas", ""} {
		res := ingest(t, m, msg)
		assert.Empty(t, res.Stored, msg)
		assert.Empty(t, res.Deleted, msg)
	}
	all, err := st.ListByUser(ctx, "u1", store.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIngest_RequiresUser(t *testing.T) {
	m := New(newTestStore(t), extract.NewChain(nil))
	_, err := m.Ingest(context.Background(), IngestParams{Message: "My name is Ahmed"})
	assert.Error(t, err)
}

type flakyStore struct {
	*store.SQLiteStore
	failKey string
}

func (f *flakyStore) Store(ctx context.Context, rec model.MemoryRecord) (*model.MemoryRecord, error) {
	if rec.Key == f.failKey {
		return nil, errors.New("disk full")
	}
	return f.SQLiteStore.Store(ctx, rec)
}

func TestIngest_BestEffortWrites(t *testing.T) {
	st := &flakyStore{SQLiteStore: newTestStore(t), failKey: "user_profession"}
	m := New(st, extract.NewChain(nil))

	res := ingest(t, m, "I live in Cairo and I work as a nurse")
	require.Len(t, res.Stored, 1)
	assert.Equal(t, "user_location", res.Stored[0].Key)
}

func TestIngest_FailedRenameKeepsOldName(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	ingest(t, New(st, extract.NewChain(nil)), "My name is Ahmed")

	m := New(&flakyStore{SQLiteStore: st, failKey: "user_name"}, extract.NewChain(nil))
	res := ingest(t, m, "Actually, my name is Sam")
	assert.Empty(t, res.Stored)
	assert.Empty(t, res.Retired)

	got, err := st.Get(ctx, "u1", "user_name", false)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", got[0].Value)
}

func TestIngest_AccumulatesPeopleFacts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m := New(st, extract.NewChain(nil))

	mother := func(value string) model.MemoryRecord {
		return model.MemoryRecord{UserID: "u1", Key: "family_mother", Value: value, Category: taxonomy.Family,
			Metadata: model.MemoryMetadata{Entity: &model.Entity{Relation: "mother"}}}
	}
	first, skip, err := m.StoreExplicit(ctx, mother("mother is a doctor"))
	require.NoError(t, err)
	require.Empty(t, skip)
	second, skip, err := m.StoreExplicit(ctx, mother("mother loves gardening"))
	require.NoError(t, err)
	require.Empty(t, skip)
	assert.NotEqual(t, first.Key, second.Key)

	live, err := st.ListByUser(ctx, "u1", store.ListParams{Categories: []model.Category{taxonomy.Family}})
	require.NoError(t, err)
	values := make([]string, 0, len(live))
	for _, r := range live {
		values = append(values, r.Value)
	}
	assert.ElementsMatch(t, []string{"mother is a doctor", "mother loves gardening"}, values)
}

func TestStoreExplicit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m := New(st, extract.NewChain(nil))

	ingest(t, m, "My name is Ahmed")
	rec, skip, err := m.StoreExplicit(ctx, model.MemoryRecord{UserID: "u1", Key: "user_name", Value: "Sam", Category: taxonomy.Name})
	require.NoError(t, err)
	assert.Empty(t, skip)
	assert.Equal(t, model.SourceExplicit, rec.Metadata.Source)

	history, err := st.Get(ctx, "u1", "user_name", true)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Sam", history[0].Value)

	_, skip, err = m.StoreExplicit(ctx, model.MemoryRecord{UserID: "u1", Key: "user_name", Value: "sam", Category: taxonomy.Name})
	require.NoError(t, err)
	assert.Equal(t, "duplicate", skip)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	ix := newTestIndex(t)
	m := New(st, extract.NewChain(nil), WithIndex(ix))

	ingest(t, m, "I live in Cairo")
	require.NoError(t, m.Forget(ctx, "u1", "user_location"))
	assert.Equal(t, 0, ix.Count())
	assert.True(t, errors.Is(m.Forget(ctx, "u1", "user_location"), store.ErrNotFound))
}
