// Package llm is the adapter boundary to text-completion models. Every provider response is
// reduced to one canonical string by NormalizeCompletion before the core sees it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCompletion is returned when a response carries no usable text in any known field.
var ErrEmptyCompletion = errors.New("empty completion")

// Prompt is a single-turn completion request.
type Prompt struct {
	System string
	User   string
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, p Prompt) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

type choice struct {
	Message struct {
		Content          string `json:"content"`
		ReasoningContent string `json:"reasoning_content"`
	} `json:"message"`
	Text string `json:"text"`
}

type completionShape struct {
	Choices       []choice `json:"choices"`
	Content       string   `json:"content"`
	GeneratedText string   `json:"generated_text"`
	Completion    string   `json:"completion"`
}

// NormalizeCompletion extracts the completion text from the response shapes seen across
// providers, in order: message content, reasoning content, legacy choice text,
// generated_text (object or single-element array), completion, top-level content.
func NormalizeCompletion(raw []byte) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var arr []completionShape
		if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
			return "", fmt.Errorf("decode completion: %w", err)
		}
		if len(arr) == 0 {
			return "", ErrEmptyCompletion
		}
		return pick(arr[0])
	}

	var s completionShape
	if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	return pick(s)
}

func pick(s completionShape) (string, error) {
	var candidates []string
	if len(s.Choices) > 0 {
		c := s.Choices[0]
		candidates = append(candidates, c.Message.Content, c.Message.ReasoningContent, c.Text)
	}
	candidates = append(candidates, s.GeneratedText, s.Completion, s.Content)
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c, nil
		}
	}
	return "", ErrEmptyCompletion
}
