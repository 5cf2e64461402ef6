package llm

import (
	"context"
	"fmt"
	"time"
)

// Options selects and configures a provider.
type Options struct {
	Provider string // none | openai | gemini
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// New creates the completer named by opts.Provider. It returns nil, nil when disabled.
func New(ctx context.Context, opts Options) (Completer, error) {
	switch opts.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		return NewOpenAICompleter(opts.BaseURL, opts.APIKey, opts.Model, opts.Timeout), nil
	case "gemini":
		return NewGeminiCompleter(ctx, opts.APIKey, opts.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (valid: none, openai, gemini)", opts.Provider)
	}
}
