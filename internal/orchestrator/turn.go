package orchestrator

import (
	"context"
	"sync"

	"github.com/neuraplayapp/assistant-core/internal/memory"
	"github.com/neuraplayapp/assistant-core/internal/model"
)

// Turn is everything a handler knows about the request it is handling.
type Turn struct {
	RequestID  string
	Request    model.Request
	Analysis   model.IntentAnalysis
	Decision   model.Decision
	History    []model.Message
	Extraction *memory.IngestResult

	canvas        model.CanvasState
	canvasChanged bool

	recall     func(ctx context.Context) []model.RankedMemory
	recallOnce sync.Once
	memories   []model.RankedMemory
}

// Memories returns the recalled memories for this turn, recalling on first use.
func (t *Turn) Memories(ctx context.Context) []model.RankedMemory {
	t.recallOnce.Do(func() {
		if t.recall != nil {
			t.memories = t.recall(ctx)
		}
	})
	return t.memories
}

// Canvas returns the session's canvas snapshot.
func (t *Turn) Canvas() model.CanvasState { return t.canvas }

// SetCanvas registers a canvas document created or replaced by the handler. It is committed
// with the session after the response.
func (t *Turn) SetCanvas(c model.CanvasState) {
	t.canvas = c
	t.canvasChanged = true
}

// Handler executes one mode.
type Handler interface {
	Handle(ctx context.Context, t *Turn) (*model.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t *Turn) (*model.Response, error)

func (f HandlerFunc) Handle(ctx context.Context, t *Turn) (*model.Response, error) { return f(ctx, t) }
