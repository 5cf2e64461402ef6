package extract

import (
	"regexp"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
	"github.com/neuraplayapp/assistant-core/internal/textutil"
)

// ValidateExtractionInMessage reports whether value is traceable to message: at least two
// of its content words (or all of them, when it has fewer) must occur in the message.
func ValidateExtractionInMessage(value, message string) bool {
	words := textutil.ContentWords(value, 1)
	if len(words) == 0 {
		return false
	}
	need := 2
	if len(words) < need {
		need = len(words)
	}
	lower := strings.ToLower(message)
	found := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			found++
			if found >= need {
				return true
			}
		}
	}
	return false
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

const maxKeyWords = 3

// DeriveKey builds a stable key from category and content. Single-valued categories use
// their canonical key; people facts are keyed by relation (and name, when known).
func DeriveKey(category model.Category, value string, entity *model.Entity) string {
	if k, ok := taxonomy.CanonicalKey(category); ok {
		return k
	}
	if entity != nil && entity.Relation != "" {
		key := string(category) + "_" + slug(entity.Relation)
		if entity.Name != "" {
			key += "_" + slug(entity.Name)
		}
		return key
	}

	words := textutil.ContentWords(value, 2)
	if len(words) > maxKeyWords {
		words = words[:maxKeyWords]
	}
	s := slug(strings.Join(words, " "))
	if s == "" {
		return string(category)
	}
	return string(category) + "_" + s
}

// VariantKey derives a sibling of key for a fact that accumulates next to the key's current
// value instead of replacing it.
func VariantKey(key, value string) string {
	inKey := map[string]bool{}
	for _, part := range strings.Split(key, "_") {
		inKey[part] = true
	}
	var words []string
	for _, w := range textutil.ContentWords(value, 2) {
		if !inKey[w] {
			words = append(words, w)
		}
	}
	if len(words) > maxKeyWords {
		words = words[:maxKeyWords]
	}
	s := slug(strings.Join(words, " "))
	if s == "" || key == s || strings.HasSuffix(key, "_"+s) {
		return key
	}
	return key + "_" + s
}

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// Protect drops candidates that would silently overwrite a protected key. An overwrite is
// allowed only when the message carries an explicit first-person declaration.
func Protect(candidates []model.Candidate, existing []model.MemoryRecord, message string) []model.Candidate {
	current := map[string]string{}
	for _, r := range existing {
		if r.DeletedAt == nil {
			current[r.Key] = r.Value
		}
	}
	explicit := HasExplicitDeclaration(message)

	out := candidates[:0:0]
	for _, c := range candidates {
		old, exists := current[c.Key]
		if taxonomy.ProtectedKeys[c.Key] && exists && !strings.EqualFold(old, c.Value) && !explicit {
			continue
		}
		out = append(out, c)
	}
	return out
}
