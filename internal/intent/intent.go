// Package intent produces the intent analysis the dispatcher consumes.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/dispatch"
	"github.com/neuraplayapp/assistant-core/internal/model"
)

// Classifier analyzes a message in the context of its conversation.
type Classifier interface {
	Analyze(ctx context.Context, message string, history []model.Message) (model.IntentAnalysis, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, message string, history []model.Message) (model.IntentAnalysis, error)

func (f ClassifierFunc) Analyze(ctx context.Context, message string, history []model.Message) (model.IntentAnalysis, error) {
	return f(ctx, message, history)
}

type intentRule struct {
	intent  string
	pattern *regexp.Regexp
}

// intentRules are evaluated in order; the first match names the primary intent.
var intentRules = []intentRule{
	{model.IntentComplexWorkflow, regexp.MustCompile(`(?i)\b(step by step|and then|after that|first .+ then|multi-?step|workflow|plan out)\b`)},
	{model.IntentModification, regexp.MustCompile(`(?i)\b(edit|change|update|revise|fix|rewrite|rephrase|shorten|expand|add|insert|remove|delete|make it)\b`)},
	{model.IntentCreation, regexp.MustCompile(`(?i)\b(write|create|draft|compose|generate|make|build|design|draw)\b`)},
	{model.IntentInformational, regexp.MustCompile(`(?i)(\?\s*$|^\s*(what|how|why|who|where|when|which|is|are|can|does|do|explain|tell me)\b)`)},
}

var (
	searchTool   = regexp.MustCompile(`(?i)\b(search|look up|google|find (?:out|information|info)|latest news|browse)\b`)
	weatherTool  = regexp.MustCompile(`(?i)\b(weather|forecast|temperature|raining|rain|snow|humidity)\b`)
	imageTool    = regexp.MustCompile(`(?i)\b((?:generate|create|make|draw|paint) (?:an? |me an? )?(?:image|picture|illustration|drawing|logo)|draw)\b`)
	navTool      = regexp.MustCompile(`(?i)\b(go to|navigate to|take me to|open) (?:the )?(page|settings|dashboard|home|profile|library)\b`)
	settingsTool = regexp.MustCompile(`(?i)\b(settings|dark mode|light mode|turn (?:on|off)|enable|disable|notifications|preferences panel)\b`)

	longForm     = regexp.MustCompile(`(?i)\b(essay|document|report|article|story|letter|plan|chart|table|diagram|outline|presentation|code|script)\b`)
	confirmation = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|sure|ok|okay|go ahead|do it|please do|confirm(?:ed)?|sounds good)\b`)
)

// Heuristic is a lexical classifier. It never fails.
type Heuristic struct{}

var _ Classifier = Heuristic{}

// Analyze classifies by keyword tables.
func (Heuristic) Analyze(_ context.Context, message string, _ []model.Message) (model.IntentAnalysis, error) {
	msg := strings.TrimSpace(message)
	a := model.IntentAnalysis{
		PrimaryIntent:  model.IntentConversational,
		ProcessingMode: "heuristic",
		Confidence:     0.4,
	}
	for _, r := range intentRules {
		if r.pattern.MatchString(msg) {
			a.PrimaryIntent = r.intent
			a.Confidence = 0.6
			break
		}
	}
	for _, r := range intentRules {
		if r.intent != a.PrimaryIntent && r.pattern.MatchString(msg) {
			a.SecondaryIntents = append(a.SecondaryIntents, r.intent)
		}
	}

	a.ToolRequests = model.ToolRequests{
		IsSearch:     searchTool.MatchString(msg),
		IsWeather:    weatherTool.MatchString(msg),
		IsImage:      imageTool.MatchString(msg),
		IsNavigation: navTool.MatchString(msg),
		IsSettings:   settingsTool.MatchString(msg),
		IsMemory:     dispatch.DetectMemoryRequest(msg) || dispatch.DetectDeletion(msg),
	}

	if a.PrimaryIntent == model.IntentCreation && longForm.MatchString(msg) {
		a.CanvasActivation = &model.CanvasActivation{
			ShouldActivate: true,
			Reason:         "long-form content requested",
			Confidence:     0.6,
		}
	}
	a.ActionConfirmation = confirmation.MatchString(msg)
	return a, nil
}
