package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuraplayapp/assistant-core/internal/llm"
	"github.com/neuraplayapp/assistant-core/internal/model"
)

func TestHeuristic_PrimaryIntent(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"What's the capital of Peru?", model.IntentInformational},
		{"explain photosynthesis", model.IntentInformational},
		{"add a chart showing Q3 sales", model.IntentModification},
		{"write an essay about tides", model.IntentCreation},
		{"first collect the data and then build a report", model.IntentComplexWorkflow},
		{"My name is Ahmed", model.IntentConversational},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			a, err := Heuristic{}.Analyze(context.Background(), tt.msg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.PrimaryIntent)
		})
	}
}

func TestHeuristic_ToolFlags(t *testing.T) {
	ctx := context.Background()
	a, _ := Heuristic{}.Analyze(ctx, "what's the weather in Oslo tomorrow", nil)
	assert.True(t, a.ToolRequests.IsWeather)
	assert.False(t, a.ToolRequests.IsMemory)

	a, _ = Heuristic{}.Analyze(ctx, "search for the latest news on fusion", nil)
	assert.True(t, a.ToolRequests.IsSearch)

	a, _ = Heuristic{}.Analyze(ctx, "draw me a cat", nil)
	assert.True(t, a.ToolRequests.IsImage)

	a, _ = Heuristic{}.Analyze(ctx, "take me to the settings page", nil)
	assert.True(t, a.ToolRequests.IsNavigation)
	assert.True(t, a.ToolRequests.IsSettings)

	a, _ = Heuristic{}.Analyze(ctx, "call me Sam", nil)
	assert.True(t, a.ToolRequests.IsMemory)
	assert.False(t, a.ToolRequests.AnyNonMemory())
}

func TestHeuristic_CanvasAndConfirmation(t *testing.T) {
	ctx := context.Background()
	a, _ := Heuristic{}.Analyze(ctx, "write an essay about tides", nil)
	require.NotNil(t, a.CanvasActivation)
	assert.True(t, a.CanvasActivation.ShouldActivate)

	a, _ = Heuristic{}.Analyze(ctx, "what is an essay", nil)
	assert.Nil(t, a.CanvasActivation)

	a, _ = Heuristic{}.Analyze(ctx, "yes, go ahead", nil)
	assert.True(t, a.ActionConfirmation)
}

func TestLLMClassifier(t *testing.T) {
	ctx := context.Background()
	fake := llm.CompleterFunc(func(_ context.Context, p llm.Prompt) (string, error) {
		assert.True(t, p.JSON)
		assert.Contains(t, p.User, "user: earlier")
		return "```json\n{\"primary_intent\":\"creation\",\"confidence\":0.9,\"tool_requests\":{\"is_image\":true},\"is_canvas_revision\":true}\n```", nil
	})

	a, err := LLMClassifier{Completer: fake}.Analyze(ctx, "draw a fox", []model.Message{{Role: "user", Content: "earlier"}})
	require.NoError(t, err)
	assert.Equal(t, model.IntentCreation, a.PrimaryIntent)
	assert.True(t, a.ToolRequests.IsImage)
	assert.False(t, a.IsCanvasRevision)
	assert.Equal(t, "llm", a.ProcessingMode)
}

func TestLLMClassifier_Errors(t *testing.T) {
	ctx := context.Background()
	cases := map[string]llm.Completer{
		"completer error": llm.CompleterFunc(func(context.Context, llm.Prompt) (string, error) {
			return "", errors.New("timeout")
		}),
		"no json": llm.CompleterFunc(func(context.Context, llm.Prompt) (string, error) {
			return "I think it is a question", nil
		}),
		"unknown intent": llm.CompleterFunc(func(context.Context, llm.Prompt) (string, error) {
			return `{"primary_intent":"dancing"}`, nil
		}),
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LLMClassifier{Completer: c}.Analyze(ctx, "hi", nil)
			assert.Error(t, err)
		})
	}
}
