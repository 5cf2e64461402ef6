package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/llm"
	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
)

const extractionPrompt = `You extract durable personal facts a user states about themselves.
Return only JSON: {"memories":[{"category":"","type":"","key":"","value":"","entityName":"","entityRelation":"","confidence":0.0}]}
category is one of: name, location, profession, age, nationality, language, family, colleague,
friend, relationship, preference, hobby, interest, goal, education, studies, skills, emotion,
behavior, general. type is one of: personal, relational, preference, professional, emotional,
behavioral, factual. value must quote words from the message. Return {"memories":[]} when the
message states no fact about the user.`

// LLMExtractor asks a language model for structured facts.
type LLMExtractor struct {
	Completer llm.Completer
}

func (LLMExtractor) Name() string { return "llm" }

func (e LLMExtractor) Extract(ctx context.Context, message string, ec ExtractContext) ([]model.Candidate, error) {
	if e.Completer == nil {
		return nil, nil
	}

	var user strings.Builder
	for _, m := range lastTurns(ec.History, 4) {
		fmt.Fprintf(&user, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&user, "Message: %s", message)

	raw, err := e.Completer.Complete(ctx, llm.Prompt{System: extractionPrompt, User: user.String(), JSON: true})
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}
	return ParseLLMCandidates(raw)
}

// ParseLLMCandidates turns a model response into candidates. Categories are normalized and
// resolved against the value; facts without a value are dropped.
func ParseLLMCandidates(raw string) ([]model.Candidate, error) {
	facts, err := parseFacts(raw)
	if err != nil {
		return nil, err
	}

	out := make([]model.Candidate, 0, len(facts))
	for _, f := range facts {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}
		cat := f.Category
		if n := taxonomy.Normalize(cat); n != taxonomy.General {
			cat = string(n)
		}
		c := model.Candidate{
			Category:   taxonomy.Resolve(cat, value, f.Type),
			Value:      value,
			Confidence: clamp(f.Confidence),
			Importance: 0.6,
			Source:     model.SourceLLM,
		}
		if f.Importance != nil {
			c.Importance = clamp(*f.Importance)
		}
		if f.EntityName != "" || f.EntityRelation != "" {
			c.Entity = &model.Entity{Name: f.EntityName, Relation: strings.ToLower(f.EntityRelation)}
		}
		out = append(out, c)
	}
	return out, nil
}

func lastTurns(h []model.Message, n int) []model.Message {
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}
