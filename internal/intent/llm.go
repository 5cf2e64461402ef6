package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/llm"
	"github.com/neuraplayapp/assistant-core/internal/model"
)

const analysisPrompt = `Classify the user's latest message. Return only JSON:
{"primary_intent":"informational|modification|creation|complex_workflow|conversational",
"secondary_intents":[],"confidence":0.0,
"tool_requests":{"is_search":false,"is_weather":false,"is_image":false,"is_navigation":false,"is_settings":false,"is_memory":false},
"canvas_activation":{"should_activate":false,"reason":""},"action_confirmation":false}`

var validIntents = map[string]bool{
	model.IntentInformational:   true,
	model.IntentModification:    true,
	model.IntentCreation:        true,
	model.IntentComplexWorkflow: true,
	model.IntentConversational:  true,
}

// LLMClassifier asks a language model for the analysis.
type LLMClassifier struct {
	Completer llm.Completer
}

var _ Classifier = LLMClassifier{}

func (c LLMClassifier) Analyze(ctx context.Context, message string, history []model.Message) (model.IntentAnalysis, error) {
	var user strings.Builder
	start := 0
	if len(history) > 4 {
		start = len(history) - 4
	}
	for _, m := range history[start:] {
		fmt.Fprintf(&user, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&user, "Message: %s", message)

	raw, err := c.Completer.Complete(ctx, llm.Prompt{System: analysisPrompt, User: user.String(), JSON: true})
	if err != nil {
		return model.IntentAnalysis{}, fmt.Errorf("intent completion: %w", err)
	}

	start = strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return model.IntentAnalysis{}, fmt.Errorf("intent completion: no JSON object in %q", truncate(raw, 80))
	}
	var a model.IntentAnalysis
	if err := json.Unmarshal([]byte(raw[start:end+1]), &a); err != nil {
		return model.IntentAnalysis{}, fmt.Errorf("decode intent: %w", err)
	}
	if !validIntents[a.PrimaryIntent] {
		return model.IntentAnalysis{}, fmt.Errorf("unknown primary intent %q", a.PrimaryIntent)
	}
	// Derived fields belong to the dispatcher.
	a.IsCanvasRevision = false
	a.TargetDocumentID = ""
	a.ProcessingMode = "llm"
	return a, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
