package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(key string, cat model.Category, source string, ageDays float64) model.MemoryRecord {
	return model.MemoryRecord{
		UserID:   "u1",
		Key:      key,
		Value:    "v",
		Category: cat,
		Metadata: model.MemoryMetadata{
			Source:     source,
			Importance: 0.8,
			CreatedAt:  now.Add(-time.Duration(ageDays*24) * time.Hour),
		},
	}
}

func TestTimeDecay(t *testing.T) {
	assert.Equal(t, 1.0, TimeDecay(0))
	assert.InDelta(t, 0.9, TimeDecay(10), 1e-9)
	assert.Equal(t, 0.5, TimeDecay(50))
	assert.Equal(t, 0.5, TimeDecay(5000))
	assert.Equal(t, 1.0, TimeDecay(-3))
}

func TestScore_MonotonicInAge(t *testing.T) {
	qc := model.SupersessionContext{Now: now}
	prev := Score(rec("hobby_chess", taxonomy.Hobby, model.SourceExplicit, 0), 0.9, qc)
	for age := 1.0; age <= 400; age += 7 {
		s := Score(rec("hobby_chess", taxonomy.Hobby, model.SourceExplicit, age), 0.9, qc)
		assert.LessOrEqual(t, s, prev, "age %v", age)
		prev = s
	}
}

func TestScore_FloorAtHalfWeight(t *testing.T) {
	qc := model.SupersessionContext{Now: now}
	for _, src := range []string{model.SourceExplicit, model.SourceInferred, model.SourceLLM, model.SourceCanvas} {
		r := rec("hobby_chess", taxonomy.Hobby, src, 10000)
		floor := 0.5 * 0.7 * r.Metadata.Importance * SourcePriority(src)
		assert.GreaterOrEqual(t, Score(r, 0.7, qc), floor-1e-12, src)
	}
}

func TestScore_IdentityWinsTies(t *testing.T) {
	qc := model.SupersessionContext{Now: now}
	name := rec("user_name", taxonomy.Name, model.SourceExplicit, 30)
	topic := rec("hobby_chess", taxonomy.Hobby, model.SourceExplicit, 0)
	assert.Greater(t, Score(name, 0.5, qc), Score(topic, 0.5, qc))
}

func TestScore_AccessBonusCapped(t *testing.T) {
	assert.Equal(t, 0.0, AccessBonus(0))
	assert.InDelta(t, 0.1, AccessBonus(5), 1e-9)
	assert.Equal(t, 0.2, AccessBonus(100))
}

func TestSourcePriorityOrdering(t *testing.T) {
	assert.Greater(t, SourcePriority(model.SourceExplicit), SourcePriority(model.SourceInferred))
	assert.Greater(t, SourcePriority(model.SourceInferred), SourcePriority(model.SourceLLM))
	assert.Equal(t, SourcePriority(model.SourceLLM), SourcePriority(model.SourceAuto))
	assert.Greater(t, SourcePriority(model.SourceAuto), SourcePriority(model.SourceCanvas))
	assert.Equal(t, 0.7, SourcePriority("mystery"))
}

func TestResolveConflict(t *testing.T) {
	oldName := rec("user_name", taxonomy.Name, model.SourceExplicit, 5)
	oldName.Value = "Ahmed"

	t.Run("no existing record", func(t *testing.T) {
		res := ResolveConflict(rec("user_name", taxonomy.Name, model.SourceExplicit, 0), nil, false)
		assert.True(t, res.Accept)
		assert.Empty(t, res.Retire)
	})

	t.Run("protected key needs explicit declaration", func(t *testing.T) {
		n := rec("user_name", taxonomy.Name, model.SourceAuto, 0)
		n.Value = "Sam"
		res := ResolveConflict(n, []model.MemoryRecord{oldName}, false)
		assert.False(t, res.Accept)
		assert.Equal(t, "protected", res.Reason)
	})

	t.Run("explicit declaration retires old name", func(t *testing.T) {
		n := rec("user_name", taxonomy.Name, model.SourceExplicit, 0)
		n.Value = "Sam"
		res := ResolveConflict(n, []model.MemoryRecord{oldName}, true)
		require.True(t, res.Accept)
		assert.True(t, res.Hard)
		require.Len(t, res.Retire, 1)
		assert.Equal(t, "Ahmed", res.Retire[0].Value)
	})

	t.Run("same value is a duplicate", func(t *testing.T) {
		n := rec("user_name", taxonomy.Name, model.SourceExplicit, 0)
		n.Value = "ahmed "
		res := ResolveConflict(n, []model.MemoryRecord{oldName}, true)
		assert.False(t, res.Accept)
		assert.Equal(t, "duplicate", res.Reason)
	})

	t.Run("replace-on-conflict category", func(t *testing.T) {
		old := rec("user_location", taxonomy.Location, model.SourceExplicit, 5)
		old.Value = "Cairo"
		n := rec("user_location", taxonomy.Location, model.SourceExplicit, 0)
		n.Value = "Berlin"
		res := ResolveConflict(n, []model.MemoryRecord{old}, false)
		assert.True(t, res.Accept)
		assert.False(t, res.Hard)
		assert.Len(t, res.Retire, 1)
	})

	t.Run("other categories accumulate", func(t *testing.T) {
		old := rec("preference_food", taxonomy.Preference, model.SourceExplicit, 5)
		old.Value = "likes pizza"
		n := rec("preference_food", taxonomy.Preference, model.SourceExplicit, 0)
		n.Value = "likes sushi"
		res := ResolveConflict(n, []model.MemoryRecord{old}, false)
		assert.True(t, res.Accept)
		assert.Empty(t, res.Retire)
		assert.Equal(t, "accumulate", res.Reason)
	})
}
