package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
)

// ImportanceThreshold is the minimum salience a pattern candidate needs to survive.
const ImportanceThreshold = 0.5

// salienceRule captures one kind of first-person statement. value names the capture group
// holding the fact; relation, when set, names the group holding a person relation.
type salienceRule struct {
	category   model.Category
	pattern    *regexp.Regexp
	importance float64
	emotional  float64
	temporal   string
	confidence float64
	// verbatim keeps the whole match as the value instead of the capture group.
	verbatim bool
}

const clause = `([^.,!?;]+)`

var salienceRules = []salienceRule{
	{taxonomy.Name, regexp.MustCompile(`(?i)\b(?:my name is|call me|i'?m called|i am called)\s+(\p{L}[\p{L}'-]*(?:\s+(?-i:\p{Lu})[\p{L}'-]*)?)`), 0.95, 0.2, model.TemporalTimeless, 0.95, false},
	{taxonomy.Age, regexp.MustCompile(`(?i)\bi(?:'m| am)\s+(\d{1,3})\s*(?:years old|yo)\b`), 0.7, 0.1, model.TemporalCurrent, 0.9, false},
	{taxonomy.Location, regexp.MustCompile(`(?i)\bi (?:live|am living|'m living|currently live) in\s+` + clause), 0.85, 0.2, model.TemporalCurrent, 0.9, false},
	{taxonomy.Location, regexp.MustCompile(`(?i)\bi (?:just |recently )?moved to\s+` + clause), 0.85, 0.3, model.TemporalCurrent, 0.9, false},
	{taxonomy.Location, regexp.MustCompile(`(?i)\bi(?:'m| am) from\s+` + clause), 0.8, 0.2, model.TemporalTimeless, 0.85, false},
	{taxonomy.Profession, regexp.MustCompile(`(?i)\bi (?:work as|am working as|'m working as)\s+(?:an?\s+)?` + clause), 0.85, 0.2, model.TemporalCurrent, 0.9, false},
	{taxonomy.Profession, regexp.MustCompile(`(?i)\bi(?:'m| am) an?\s+([\p{L} -]*?(?:engineer|developer|teacher|doctor|nurse|designer|writer|lawyer|artist|scientist|programmer|chef|accountant|pilot|architect|researcher))\b`), 0.85, 0.2, model.TemporalCurrent, 0.85, false},
	{taxonomy.Studies, regexp.MustCompile(`(?i)\bi(?:'m| am)? (?:studying|majoring in|study)\s+` + clause), 0.8, 0.2, model.TemporalCurrent, 0.85, false},
	{taxonomy.Language, regexp.MustCompile(`(?i)\bi speak\s+` + clause), 0.7, 0.1, model.TemporalTimeless, 0.85, false},
	{taxonomy.Skills, regexp.MustCompile(`(?i)\bi(?:'m| am) (?:good at|great at|skilled at|proficient in|an expert in|fluent in)\s+` + clause), 0.7, 0.2, model.TemporalCurrent, 0.8, true},
	{taxonomy.Hobby, regexp.MustCompile(`(?i)\bmy hobb(?:y|ies) (?:is|are|include)\s+` + clause), 0.7, 0.4, model.TemporalCurrent, 0.85, false},
	{taxonomy.Hobby, regexp.MustCompile(`(?i)\bi (?:really )?(?:love|like|enjoy) (?:playing|painting|reading|hiking|swimming|cooking|running|drawing|gaming|dancing|singing|writing|cycling|climbing|knitting|gardening)\b[^.,!?;]*`), 0.7, 0.4, model.TemporalCurrent, 0.8, true},
	{taxonomy.Goal, regexp.MustCompile(`(?i)\b(?:i want to|i'd like to|i hope to|my goal is to|i'?m planning to|i plan to|i dream of)\s+` + clause), 0.65, 0.4, model.TemporalFuture, 0.75, true},
	{taxonomy.Preference, regexp.MustCompile(`(?i)\bi (?:really )?(?:love|like|enjoy|prefer|hate|dislike|can't stand|don'?t like)\s+[^.,!?;]+`), 0.6, 0.4, model.TemporalCurrent, 0.8, true},
	{taxonomy.Emotion, regexp.MustCompile(`(?i)\bi(?:'m| am| feel| have been feeling|'ve been feeling)\s+(?:so |really |very )?(?:sad|happy|anxious|stressed|excited|worried|lonely|angry|depressed|overwhelmed|nervous)\b[^.!?]*`), 0.45, 0.8, model.TemporalCurrent, 0.7, true},
}

var relationRule = regexp.MustCompile(`(?i)\bmy (mother|mom|father|dad|brother|sister|son|daughter|wife|husband|uncle|aunt|cousin|grandma|grandpa|grandmother|grandfather|nephew|niece|colleague|coworker|boss|friend|best friend|partner|girlfriend|boyfriend)(?:'s name)? (?:is called|is named|is|named|called)\s+(\p{L}[\p{L}'-]*)`)

var rememberRule = regexp.MustCompile(`(?i)\b(?:remember|note|save|store) that\s+([^.!?]+)`)

var (
	intensifier   = regexp.MustCompile(`(?i)\b(really|very|so much|always|never|extremely|absolutely)\b`)
	emotionalWord = regexp.MustCompile(`(?i)\b(love|hate|afraid|scared|proud|miss|grateful|passionate)\b`)
	clauseBreak   = regexp.MustCompile(`(?i)\s+(?:and|but|because|so|although)\s+`)
	negatedValue  = regexp.MustCompile(`(?i)^(?:not|no|never)\b`)
)

// PatternExtractor finds first-person statements with a fixed rule table and scores their
// salience. Candidates below ImportanceThreshold are dropped.
type PatternExtractor struct{}

func (PatternExtractor) Name() string { return "pattern" }

func (PatternExtractor) Extract(_ context.Context, message string, _ ExtractContext) ([]model.Candidate, error) {
	var out []model.Candidate
	var spans [][2]int
	claim := func(lo, hi int) bool {
		for _, sp := range spans {
			if lo < sp[1] && sp[0] < hi {
				return false
			}
		}
		spans = append(spans, [2]int{lo, hi})
		return true
	}

	boost := 0.0
	if intensifier.MatchString(message) {
		boost = 0.1
	}
	emotional := 0.0
	if emotionalWord.MatchString(message) {
		emotional = 0.2
	}

	if loc := relationRule.FindStringSubmatchIndex(message); loc != nil && claim(loc[0], loc[1]) {
		relation := strings.ToLower(message[loc[2]:loc[3]])
		name := titleCase(message[loc[4]:loc[5]])
		out = append(out, model.Candidate{
			Category:          taxonomy.Normalize(lastWord(relation)),
			Value:             relation + " " + name,
			Confidence:        0.9,
			Importance:        clamp(0.75 + boost),
			EmotionalWeight:   clamp(0.4 + emotional),
			TemporalRelevance: model.TemporalTimeless,
			Entity:            &model.Entity{Name: name, Relation: relation},
			Source:            model.SourceExplicit,
		})
	}

	for _, r := range salienceRules {
		loc := r.pattern.FindStringSubmatchIndex(message)
		if loc == nil {
			continue
		}
		var raw string
		if r.verbatim || len(loc) < 4 || loc[2] < 0 {
			raw = trimFirstPerson(message[loc[0]:loc[1]])
		} else {
			raw = message[loc[2]:loc[3]]
		}
		value := cleanValue(raw)
		if value == "" || negatedValue.MatchString(value) {
			continue
		}
		importance := clamp(r.importance + boost)
		if importance < ImportanceThreshold || !claim(loc[0], valueEnd(message, loc[0], loc[1], value)) {
			continue
		}
		if r.category == taxonomy.Name {
			value = titleCase(value)
		}
		out = append(out, model.Candidate{
			Category:          r.category,
			Value:             value,
			Confidence:        r.confidence,
			Importance:        importance,
			EmotionalWeight:   clamp(r.emotional + emotional),
			TemporalRelevance: r.temporal,
			Source:            model.SourceExplicit,
		})
	}

	// "remember that ..." only adds a fact when no specific rule already covered the clause.
	if loc := rememberRule.FindStringSubmatchIndex(message); loc != nil && claim(loc[2], loc[3]) {
		value := cleanValue(message[loc[2]:loc[3]])
		if value != "" {
			out = append(out, model.Candidate{
				Category:          taxonomy.Resolve("", value, ""),
				Value:             value,
				Confidence:        0.9,
				Importance:        clamp(0.8 + boost),
				EmotionalWeight:   emotional,
				TemporalRelevance: model.TemporalCurrent,
				Source:            model.SourceExplicit,
			})
		}
	}
	return out, nil
}

var fallbackName = regexp.MustCompile(`(?i)\b(?:my name is|call me)\s+(\p{L}[\p{L}'-]*)`)

// FallbackExtractor only recognizes "my name is X" and "call me X".
type FallbackExtractor struct{}

func (FallbackExtractor) Name() string { return "fallback" }

func (FallbackExtractor) Extract(_ context.Context, message string, _ ExtractContext) ([]model.Candidate, error) {
	m := fallbackName.FindStringSubmatch(message)
	if m == nil || negatedValue.MatchString(m[1]) {
		return nil, nil
	}
	return []model.Candidate{{
		Category:          taxonomy.Name,
		Value:             titleCase(m[1]),
		Confidence:        0.8,
		Importance:        0.9,
		TemporalRelevance: model.TemporalTimeless,
		Source:            model.SourceAuto,
	}}, nil
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	if loc := clauseBreak.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = strings.TrimRight(s, " .,!?;:'\"")
	if r := []rune(s); len(r) > 80 {
		s = strings.TrimSpace(string(r[:80]))
	}
	return s
}

// valueEnd returns where value ends inside message[start:end], so a rule whose greedy clause
// ran past a conjunction does not claim the rest of the sentence.
func valueEnd(message string, start, end int, value string) int {
	if i := strings.Index(strings.ToLower(message[start:end]), strings.ToLower(value)); i >= 0 {
		return start + i + len(value)
	}
	return end
}

var firstPerson = regexp.MustCompile(`(?i)^(?:i'm|i am|i've been|i have been|i)\s+`)

func trimFirstPerson(s string) string {
	return firstPerson.ReplaceAllString(strings.TrimSpace(s), "")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func lastWord(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return s
	}
	return f[len(f)-1]
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
