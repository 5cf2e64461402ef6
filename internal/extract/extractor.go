package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/neuraplayapp/assistant-core/internal/llm"
	"github.com/neuraplayapp/assistant-core/internal/model"
)

// ExtractContext is the conversation around the message being extracted.
type ExtractContext struct {
	UserID    string
	SessionID string
	History   []model.Message
}

// Extractor is one extraction layer.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, message string, ec ExtractContext) ([]model.Candidate, error)
}

// Chain runs extraction layers in order until one yields a valid candidate.
type Chain struct {
	layers []Extractor
	logger *zap.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the chain's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chain) { c.logger = l }
}

// WithLayers replaces the default layers.
func WithLayers(layers ...Extractor) Option {
	return func(c *Chain) { c.layers = layers }
}

// NewChain builds the default chain: salience patterns, the LLM (when completer is non-nil)
// and the name-only fallback.
func NewChain(completer llm.Completer, opts ...Option) *Chain {
	layers := []Extractor{PatternExtractor{}}
	if completer != nil {
		layers = append(layers, LLMExtractor{Completer: completer})
	}
	layers = append(layers, FallbackExtractor{})

	c := &Chain{layers: layers, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Extract returns validated, keyed candidates for a message. Only store messages and
// affirmative corrections produce candidates. Layer failures degrade to the next layer.
func (c *Chain) Extract(ctx context.Context, message string, ec ExtractContext) []model.Candidate {
	switch Classify(message) {
	case OpStore:
	case OpUpdate:
		if IsNegation(message) {
			return nil
		}
	default:
		return nil
	}

	for _, layer := range c.layers {
		raw, err := layer.Extract(ctx, message, ec)
		if err != nil {
			c.logger.Warn("extraction layer failed",
				zap.String("layer", layer.Name()),
				zap.String("user", ec.UserID),
				zap.Error(err))
			continue
		}
		if out := c.finish(raw, message, layer.Name()); len(out) > 0 {
			c.logger.Debug("extracted candidates",
				zap.String("layer", layer.Name()),
				zap.Int("count", len(out)))
			return out
		}
	}
	return nil
}

// finish validates candidates against the message, fills in keys and drops duplicate keys.
func (c *Chain) finish(raw []model.Candidate, message, layer string) []model.Candidate {
	seen := map[string]bool{}
	var out []model.Candidate
	for _, cand := range raw {
		if !ValidateExtractionInMessage(cand.Value, message) {
			c.logger.Debug("dropping untraceable candidate",
				zap.String("layer", layer),
				zap.String("value", cand.Value))
			continue
		}
		cand.Key = DeriveKey(cand.Category, cand.Value, cand.Entity)
		if seen[cand.Key] {
			continue
		}
		seen[cand.Key] = true
		out = append(out, cand)
	}
	return out
}
