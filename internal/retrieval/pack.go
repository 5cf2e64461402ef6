package retrieval

import (
	"unicode/utf8"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

// charsPerToken is the rough size of one token of context.
const charsPerToken = 4

// minExcerpt is the smallest remaining budget, in characters, worth filling with an excerpt.
const minExcerpt = 100

// Packed is a budgeted slice of ranked memories ready for context injection.
type Packed struct {
	Budget   int                  `json:"budget"`
	Used     int                  `json:"used"`
	Memories []model.RankedMemory `json:"memories"`
	Excerpt  bool                 `json:"excerpt,omitempty"`
}

// Pack greedily fills a token budget with memories in rank order. The first memory that does
// not fit is cut to an excerpt when enough budget remains, and packing stops there.
func Pack(memories []model.RankedMemory, budget int) *Packed {
	if budget <= 0 {
		budget = 2000
	}
	charBudget := budget * charsPerToken

	out := &Packed{Budget: budget, Memories: []model.RankedMemory{}}
	used := 0
	for _, m := range memories {
		n := len(m.Content)
		if used+n <= charBudget {
			out.Memories = append(out.Memories, m)
			used += n
			continue
		}
		if remaining := charBudget - used; remaining >= minExcerpt {
			m.Content = truncate(m.Content, remaining) + "..."
			out.Memories = append(out.Memories, m)
			out.Excerpt = true
			used += remaining
		}
		break
	}
	out.Used = used / charsPerToken
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
