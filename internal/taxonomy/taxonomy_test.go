package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		word string
		want model.Category
	}{
		{"uncle", Family},
		{"uncles", Family},
		{"Uncles", Family},
		{"colleague", Colleague},
		{"colleagues", Colleague},
		{"hobbies", Hobby},
		{"skills", Skills},
		{"friends", Friend},
		{"job", Profession},
		{"zeppelin", General},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.word))
		})
	}
}

func TestNormalize_ColleaguesNeverFamily(t *testing.T) {
	assert.NotEqual(t, Family, Normalize("colleagues"))
	assert.Equal(t, Normalize("uncles"), Normalize("uncle"))
}

func TestNamesCategory(t *testing.T) {
	for _, w := range []string{"family", "friends", "colleagues", "job", "name", "city", "like"} {
		assert.True(t, NamesCategory(w), w)
	}
	for _, w := range []string{"uncle", "mother", "boss", "girlfriend", "pizza", "omar"} {
		assert.False(t, NamesCategory(w), w)
	}
}

func TestExpand(t *testing.T) {
	assert.Contains(t, Expand(Profession), Education)
	assert.Contains(t, Expand(Hobby), Interest)
	assert.Equal(t, Profession, Expand(Profession)[0])
	assert.Equal(t, []model.Category{Behavior}, Expand(Behavior)[:1])
	assert.Equal(t, []model.Category{General}, Expand(General))

	// Callers must not be able to mutate the table.
	e := Expand(Hobby)
	e[0] = General
	assert.Equal(t, Hobby, Expand(Hobby)[0])
}

func TestInferFromContent(t *testing.T) {
	tests := []struct {
		text string
		want model.Category
		ok   bool
	}{
		{"My name is Ahmed", Name, true},
		{"What's my name?", Name, true},
		{"I live in Cairo", Location, true},
		{"I work as a nurse", Profession, true},
		{"my uncle visits on Sundays", Family, true},
		{"I love pizza", Preference, true},
		{"qwerty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := InferFromContent(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Precedence(t *testing.T) {
	// (a) valid category wins even if the content says otherwise
	assert.Equal(t, Hobby, Resolve("hobby", "I live in Paris", "professional"))
	// (b) content keywords
	assert.Equal(t, Location, Resolve("place", "I live in Paris", "professional"))
	// (c) coarse type
	assert.Equal(t, Profession, Resolve("", "something vague", "professional"))
	// (d) general
	assert.Equal(t, General, Resolve("", "something vague", ""))
}

func TestPolicySets(t *testing.T) {
	assert.True(t, IsIdentity(Name))
	assert.True(t, IsIdentity(Skills))
	assert.False(t, IsIdentity(Age))
	assert.True(t, ReplacesOnConflict(Age))
	assert.False(t, ReplacesOnConflict(Hobby))
	assert.False(t, IsPersonal(Document))
	assert.True(t, IsPersonal(Course))

	k, ok := CanonicalKey(Name)
	assert.True(t, ok)
	assert.Equal(t, "user_name", k)
	assert.True(t, ProtectedKeys[k])
	assert.True(t, IsIdentityKey("user_location"))
	assert.False(t, IsIdentityKey("user_age"))
}
