// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/philippgille/chromem-go"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize scales v to unit length in place. A zero vector is left untouched.
func Normalize(v Vector) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}

// ChromemFunc adapts an Embedder to chromem-go. Vectors are normalized so chromem's
// dot-product similarity equals cosine similarity.
func ChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out := make([]float32, len(v))
		copy(out, v)
		Normalize(out)
		return out, nil
	}
}

// Options selects and configures a provider.
type Options struct {
	Provider string // none | hash | ollama | openai | gemini
	Model    string
	BaseURL  string
	APIKey   string
	Dims     int
}

// New creates the embedder named by opts.Provider. It returns nil, nil when embeddings are disabled.
func New(ctx context.Context, opts Options) (Embedder, error) {
	switch opts.Provider {
	case "", "none":
		return nil, nil
	case "hash":
		return NewHashEmbedder(opts.Dims), nil
	case "ollama":
		model := opts.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(opts.BaseURL, model), nil
	case "openai":
		return NewOpenAIEmbedder(opts.BaseURL, opts.APIKey, opts.Model, opts.Dims), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, opts.APIKey, opts.Model, opts.Dims)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: none, hash, ollama, openai, gemini)", opts.Provider)
	}
}
