// Package dispatch selects the single execution mode for a request.
//
// The decision is an ordered rule table: the first rule whose predicate holds decides the
// mode and later rules are not evaluated. A vision override is applied afterwards, independent
// of the table.
package dispatch

import (
	"go.uber.org/zap"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

// Rule names, in evaluation order.
const (
	RuleMemoryDeletion   = "memory-deletion"
	RuleCanvasRevision   = "canvas-revision"
	RuleCanvasActivation = "canvas-activation"
	RuleMemoryRequest    = "memory-request"
	RuleToolRequest      = "tool-request"
	RuleDeclaredMode     = "declared-mode"
	RuleDefault          = "default"
)

// Signals are the facts about one request the rules decide on. They are computed once.
type Signals struct {
	Request  model.Request
	Analysis model.IntentAnalysis
	Canvas   model.CanvasState

	Deletion        bool
	MemoryRequest   bool
	ToolRequest     bool
	StyleChange     bool
	ContentAddition bool
	Viewing         bool
	MutationAllowed bool
}

// NewSignals derives the signals of a request.
func NewSignals(req model.Request, analysis model.IntentAnalysis, canvas model.CanvasState) *Signals {
	msg := req.Message
	return &Signals{
		Request:         req,
		Analysis:        analysis,
		Canvas:          canvas,
		Deletion:        DetectDeletion(msg),
		MemoryRequest:   analysis.ToolRequests.IsMemory || DetectMemoryRequest(msg),
		ToolRequest:     analysis.ToolRequests.AnyNonMemory(),
		StyleChange:     DetectStyleChange(msg),
		ContentAddition: DetectContentAddition(msg),
		Viewing:         ViewingCanvas(req.Spatial),
		MutationAllowed: CanvasMutationAllowed(req.Spatial),
	}
}

// Rule is one row of the decision table.
type Rule struct {
	Name string
	When func(s *Signals) bool
	Then func(s *Signals) (model.Mode, model.RoutingHints)
}

// DefaultRules is the decision table in priority order.
var DefaultRules = []Rule{
	{
		Name: RuleMemoryDeletion,
		When: func(s *Signals) bool { return s.Deletion },
		Then: func(s *Signals) (model.Mode, model.RoutingHints) {
			return model.ModeChat, model.RoutingHints{IsMemoryRequest: true}
		},
	},
	{
		Name: RuleCanvasRevision,
		When: func(s *Signals) bool {
			wantsChange := s.Analysis.PrimaryIntent == model.IntentModification ||
				s.ContentAddition || s.StyleChange || s.Analysis.ActionConfirmation
			return s.Canvas.HasDocument && wantsChange && s.Viewing && s.MutationAllowed
		},
		Then: func(s *Signals) (model.Mode, model.RoutingHints) {
			return model.ModeToolCalling, model.RoutingHints{
				IsRevision:       true,
				TargetDocumentID: s.Canvas.DocumentID,
				IsStyleChange:    s.StyleChange,
			}
		},
	},
	{
		Name: RuleCanvasActivation,
		When: func(s *Signals) bool {
			ca := s.Analysis.CanvasActivation
			return ca != nil && ca.ShouldActivate && s.MutationAllowed
		},
		Then: func(s *Signals) (model.Mode, model.RoutingHints) {
			// Questions about the canvas are answered in chat.
			if s.Analysis.PrimaryIntent == model.IntentInformational {
				return model.ModeChat, model.RoutingHints{}
			}
			return model.ModeToolCalling, model.RoutingHints{IsToolRequest: true}
		},
	},
	{
		Name: RuleMemoryRequest,
		When: func(s *Signals) bool { return s.MemoryRequest },
		Then: func(s *Signals) (model.Mode, model.RoutingHints) {
			return model.ModeChat, model.RoutingHints{
				IsMemoryRequest: true,
				IsToolRequest:   s.ToolRequest,
				Hybrid:          s.ToolRequest,
			}
		},
	},
	{
		Name: RuleToolRequest,
		When: func(s *Signals) bool { return s.ToolRequest },
		Then: func(s *Signals) (model.Mode, model.RoutingHints) {
			return model.ModeToolCalling, model.RoutingHints{IsToolRequest: true}
		},
	},
	{
		Name: RuleDeclaredMode,
		When: func(s *Signals) bool { return model.ValidModes[s.Request.DeclaredMode] },
		Then: func(s *Signals) (model.Mode, model.RoutingHints) {
			return s.Request.DeclaredMode, model.RoutingHints{}
		},
	},
	{
		Name: RuleDefault,
		When: func(*Signals) bool { return true },
		Then: func(*Signals) (model.Mode, model.RoutingHints) {
			return model.ModeChat, model.RoutingHints{}
		},
	},
}

// Dispatcher resolves modes with a rule table.
type Dispatcher struct {
	rules  []Rule
	logger *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithRules replaces the decision table.
func WithRules(rules []Rule) Option { return func(d *Dispatcher) { d.rules = rules } }

// New creates a Dispatcher using DefaultRules.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{rules: DefaultRules, logger: zap.NewNop()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Resolve picks the mode for a request. It reads only its arguments. The returned analysis
// is an annotated copy; the caller's analysis is never modified.
func (d *Dispatcher) Resolve(req model.Request, analysis model.IntentAnalysis, canvas model.CanvasState) model.Decision {
	s := NewSignals(req, analysis.Clone(), canvas)

	mode, hints := model.ModeChat, model.RoutingHints{Rule: RuleDefault}
	for _, r := range d.rules {
		if !r.When(s) {
			continue
		}
		mode, hints = r.Then(s)
		hints.Rule = r.Name
		break
	}

	if HasVisualAttachment(req.Attachments) &&
		(req.DeclaredMode == model.ModeVision || DetectVisionIntent(req.Message)) {
		mode = model.ModeVision
		hints.VisionOverride = true
	}

	annotated := s.Analysis
	annotated.IsCanvasRevision = hints.IsRevision
	if hints.IsRevision {
		annotated.TargetDocumentID = hints.TargetDocumentID
	}

	d.logger.Debug("mode resolved",
		zap.String("mode", string(mode)),
		zap.String("rule", hints.Rule),
		zap.Bool("vision_override", hints.VisionOverride),
		zap.Bool("hybrid", hints.Hybrid))
	return model.Decision{Mode: mode, Hints: hints, Analysis: annotated}
}

// Rules returns the names of the decision table in order.
func (d *Dispatcher) Rules() []string {
	names := make([]string, len(d.rules))
	for i, r := range d.rules {
		names[i] = r.Name
	}
	return names
}
