package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/extract"
	"github.com/neuraplayapp/assistant-core/internal/llm"
	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/retrieval"
)

const chatSystemPrompt = `You are a helpful, warm assistant. Use what you know about the user when it is relevant.
Never claim to remember something that is not listed below.`

// ChatHandler answers with a completion model, personalized with recalled memories. Without
// a model it answers from memory alone.
type ChatHandler struct {
	Completer llm.Completer
	// Budget is the token budget for injected memories.
	Budget int
}

func (h ChatHandler) Handle(ctx context.Context, t *Turn) (*model.Response, error) {
	packed := retrieval.Pack(t.Memories(ctx), h.Budget)

	if h.Completer == nil {
		return &model.Response{Success: true, Text: offlineReply(t, packed)}, nil
	}

	var sys strings.Builder
	sys.WriteString(chatSystemPrompt)
	if len(packed.Memories) > 0 {
		sys.WriteString("\n\nWhat you know about the user:\n")
		for _, m := range packed.Memories {
			fmt.Fprintf(&sys, "- [%s] %s\n", m.Category, m.Content)
		}
	}

	var user strings.Builder
	for _, m := range t.History {
		fmt.Fprintf(&user, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&user, "%s: %s", model.RoleUser, t.Request.Message)

	text, err := h.Completer.Complete(ctx, llm.Prompt{System: sys.String(), User: user.String()})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return &model.Response{Success: true, Text: strings.TrimSpace(text)}, nil
}

// offlineReply acknowledges memory operations and reports recalled facts.
func offlineReply(t *Turn, packed *retrieval.Packed) string {
	if x := t.Extraction; x != nil {
		switch {
		case len(x.Deleted) > 0:
			return "Done. I've forgotten that."
		case len(x.Stored) > 0 && len(x.Retired) > 0:
			return "Thanks, I've updated that."
		case len(x.Stored) > 0:
			return "Got it. I'll remember that."
		case len(x.Retired) > 0:
			return "Understood, I've noted that's no longer true."
		case x.Operation == extract.OpForget:
			return "I couldn't find anything matching that to forget."
		}
	}
	if len(packed.Memories) == 0 {
		return "I don't know anything about that yet."
	}
	var b strings.Builder
	b.WriteString("Here's what I know:")
	for _, m := range packed.Memories {
		fmt.Fprintf(&b, "\n- %s", m.Content)
	}
	return b.String()
}
