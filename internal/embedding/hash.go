package embedding

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/textutil"
)

// HashEmbedder is an offline bag-of-words embedder: content words are hashed into a fixed
// number of buckets. It needs no model and is deterministic, so texts sharing words are similar.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hashing embedder. dims defaults to 256.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	v := make(Vector, e.dims)
	for _, w := range textutil.ContentWords(text, 2) {
		w = strings.TrimSuffix(w, "s")
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(e.dims)]++
	}
	Normalize(v)
	return v, nil
}

func (e *HashEmbedder) Dims() int { return e.dims }
