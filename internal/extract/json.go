package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no JSON payload can be recovered from a model response.
var ErrNoJSON = errors.New("no JSON payload in response")

// llmFact is one tuple emitted by the LLM extractor.
type llmFact struct {
	Category       string   `json:"category"`
	Type           string   `json:"type"`
	Value          string   `json:"value"`
	EntityName     string   `json:"entityName"`
	EntityRelation string   `json:"entityRelation"`
	Confidence     float64  `json:"confidence"`
	Importance     *float64 `json:"importance"`
}

type llmPayload struct {
	Memories []llmFact `json:"memories"`
}

var (
	codeFence     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	braceBlock    = regexp.MustCompile(`(?s)[\[{].*[\]}]`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// parseFacts decodes the extractor response. The first attempt decodes from the first
// brace; on failure a single regex-based repair (strip fences, isolate the outermost
// block, drop trailing commas) is tried before giving up.
func parseFacts(raw string) ([]llmFact, error) {
	if facts, err := decodeFacts(raw); err == nil {
		return facts, nil
	}

	repaired := raw
	if m := codeFence.FindStringSubmatch(repaired); m != nil {
		repaired = m[1]
	}
	block := braceBlock.FindString(repaired)
	if block == "" {
		return nil, ErrNoJSON
	}
	block = trailingComma.ReplaceAllString(block, "$1")
	facts, err := decodeFacts(block)
	if err != nil {
		return nil, errors.Join(ErrNoJSON, err)
	}
	return facts, nil
}

func decodeFacts(raw string) ([]llmFact, error) {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}
	dec := json.NewDecoder(strings.NewReader(raw[start:]))
	if raw[start] == '[' {
		var facts []llmFact
		if err := dec.Decode(&facts); err != nil {
			return nil, err
		}
		return facts, nil
	}
	var p llmPayload
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return p.Memories, nil
}
