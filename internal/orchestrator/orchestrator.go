// Package orchestrator is the entry point for one user request: safety, analysis, universal
// memory extraction, mode dispatch, handler execution, output safety and context commit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neuraplayapp/assistant-core/internal/dispatch"
	"github.com/neuraplayapp/assistant-core/internal/extract"
	"github.com/neuraplayapp/assistant-core/internal/intent"
	"github.com/neuraplayapp/assistant-core/internal/memory"
	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/retrieval"
	"github.com/neuraplayapp/assistant-core/internal/safety"
	"github.com/neuraplayapp/assistant-core/internal/session"
)

var (
	// ErrNoHandler means the resolved mode has no registered handler.
	ErrNoHandler = errors.New("no handler registered for mode")
	// ErrNoClassifier means no intent classifier is configured.
	ErrNoClassifier = errors.New("no intent classifier configured")
)

// User-visible texts.
const (
	TextNeedMessage = "I need a message to process"
	TextBlocked     = "I can't help with that request."
	TextUnavailable = "I'm sorry, I can't process requests right now."
	apologyPrefix   = "I'm sorry, something went wrong: "
)

// Orchestrator runs the request pipeline. It owns the session store, the handler registry
// and the interest-profile cache; components receive them by reference.
type Orchestrator struct {
	classifier intent.Classifier
	fallback   intent.Classifier
	guard      *safety.Guard
	dispatcher *dispatch.Dispatcher
	memory     *memory.Manager
	retrieval  *retrieval.Engine
	profiles   *retrieval.ProfileCache
	sessions   session.Store
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.RWMutex
	handlers map[model.Mode]Handler
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClassifier sets the intent classifier.
func WithClassifier(c intent.Classifier) Option { return func(o *Orchestrator) { o.classifier = c } }

// WithSafety sets the content-safety checker.
func WithSafety(c safety.Checker) Option {
	return func(o *Orchestrator) { o.guard = safety.NewGuard(c, o.logger) }
}

// WithDispatcher overrides the dispatcher.
func WithDispatcher(d *dispatch.Dispatcher) Option { return func(o *Orchestrator) { o.dispatcher = d } }

// WithMemory enables universal extraction.
func WithMemory(m *memory.Manager) Option { return func(o *Orchestrator) { o.memory = m } }

// WithRetrieval enables recall for handlers.
func WithRetrieval(e *retrieval.Engine) Option { return func(o *Orchestrator) { o.retrieval = e } }

// WithProfiles hands the interest-profile cache to the orchestrator.
func WithProfiles(c *retrieval.ProfileCache) Option { return func(o *Orchestrator) { o.profiles = c } }

// WithSessions sets the session store.
func WithSessions(s session.Store) Option { return func(o *Orchestrator) { o.sessions = s } }

// WithHandler registers a handler for a mode.
func WithHandler(mode model.Mode, h Handler) Option {
	return func(o *Orchestrator) { o.handlers[mode] = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// New creates an Orchestrator. Options apply in order, so WithLogger should come first.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fallback: intent.Heuristic{},
		logger:   zap.NewNop(),
		now:      time.Now,
		handlers: map[model.Mode]Handler{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.guard == nil {
		o.guard = safety.NewGuard(nil, o.logger)
	}
	if o.dispatcher == nil {
		o.dispatcher = dispatch.New(dispatch.WithLogger(o.logger))
	}
	if o.sessions == nil {
		o.sessions = session.NewMemoryStore(0)
	}
	return o
}

// Register adds or replaces the handler for a mode.
func (o *Orchestrator) Register(mode model.Mode, h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[mode] = h
}

func (o *Orchestrator) handler(mode model.Mode) (Handler, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.handlers[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, mode)
	}
	return h, nil
}

// Validate reports configuration errors that would fail every request.
func (o *Orchestrator) Validate() error {
	var errs []error
	if o.classifier == nil {
		errs = append(errs, ErrNoClassifier)
	}
	if _, err := o.handler(model.ModeChat); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Process handles one request. It always returns a well-formed envelope.
func (o *Orchestrator) Process(ctx context.Context, req model.Request) (resp *model.Response) {
	start := o.now()
	reqID := uuid.NewString()
	log := o.logger.With(zap.String("request", reqID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("request panicked", zap.Any("panic", r))
			resp = apology(reqID, fmt.Errorf("%v", r))
		}
		resp.Metadata.RequestID = reqID
		resp.Metadata.ExecutionTime = o.now().Sub(start)
	}()

	if strings.TrimSpace(req.Message) == "" {
		return failure(TextNeedMessage, nil)
	}
	if o.classifier == nil {
		log.Error("configuration error", zap.Error(ErrNoClassifier))
		return failure(TextUnavailable, ErrNoClassifier)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	sess, err := o.sessions.Load(ctx, req.SessionID)
	if err != nil {
		log.Warn("session unavailable", zap.String("session", req.SessionID), zap.Error(err))
		sess = &session.Session{ID: req.SessionID}
	}
	history := req.History
	if len(history) == 0 {
		history = sess.Messages
	}

	// The checker sees a lexical analysis; the full analysis runs only on safe input.
	provisional, _ := o.fallback.Analyze(ctx, req.Message, history)
	if v := o.guard.CheckInput(ctx, req.Message, provisional); !v.Safe {
		log.Info("input blocked", zap.String("risk", v.RiskLevel), zap.String("violation", v.Violation))
		return &model.Response{Success: false, Text: TextBlocked, Metadata: model.ResponseMetadata{Error: "blocked: " + v.RiskLevel}}
	}

	analysis := o.analyze(ctx, log, req.Message, history)
	extraction := o.extract(ctx, log, req, history)
	decision := o.dispatcher.Resolve(req, analysis, sess.Canvas)

	h, err := o.handler(decision.Mode)
	if err != nil {
		log.Error("configuration error", zap.Error(err))
		return failure(TextUnavailable, err)
	}

	turn := &Turn{
		RequestID:  reqID,
		Request:    req,
		Analysis:   decision.Analysis,
		Decision:   decision,
		History:    history,
		Extraction: extraction,
		canvas:     sess.Canvas,
		recall:     o.recaller(log, req, history, analysis),
	}
	// A memory request resolved to tool-calling still gets its recall attached.
	if decision.Mode == model.ModeToolCalling && (decision.Hints.IsMemoryRequest || analysis.ToolRequests.IsMemory) {
		turn.Memories(ctx)
	}

	resp, err = h.Handle(ctx, turn)
	if err != nil {
		log.Error("handler failed", zap.String("mode", string(decision.Mode)), zap.Error(err))
		return apology(reqID, err)
	}
	if resp == nil {
		resp = &model.Response{Success: true}
	}
	resp.Metadata.Mode = decision.Mode

	if decision.Mode == model.ModeChat && decision.Hints.Hybrid {
		resp = o.hybrid(ctx, log, turn, resp)
	}

	if text, sanitized := o.guard.CheckOutput(ctx, resp.Text); sanitized {
		resp.Text = text
		resp.Metadata.Sanitized = true
	}
	if resp.Metadata.ToolsExecuted == 0 {
		resp.Metadata.ToolsExecuted = len(resp.ToolResults)
	}
	resp.Metadata.MemoriesUsed = len(turn.memories)

	o.commit(ctx, log, turn, resp)
	return resp
}

func (o *Orchestrator) analyze(ctx context.Context, log *zap.Logger, message string, history []model.Message) model.IntentAnalysis {
	a, err := o.classifier.Analyze(ctx, message, history)
	if err == nil {
		return a
	}
	log.Warn("classifier failed, using heuristic analysis", zap.Error(err))
	a, _ = o.fallback.Analyze(ctx, message, history)
	return a
}

// extract runs universal extraction. It never fails the request.
func (o *Orchestrator) extract(ctx context.Context, log *zap.Logger, req model.Request, history []model.Message) *memory.IngestResult {
	if o.memory == nil {
		return nil
	}
	res, err := o.memory.Ingest(ctx, memory.IngestParams{
		UserID:    req.MemoryOwner(),
		SessionID: req.SessionID,
		Message:   req.Message,
		History:   history,
	})
	if err != nil {
		log.Warn("extraction skipped", zap.Error(err))
		return nil
	}
	if o.profiles != nil && res.Operation == extract.OpForget && len(res.Deleted) > 0 {
		o.profiles.Invalidate(req.MemoryOwner())
	}
	log.Debug("extraction", zap.Stringer("result", res))
	return res
}

func (o *Orchestrator) recaller(log *zap.Logger, req model.Request, history []model.Message, analysis model.IntentAnalysis) func(context.Context) []model.RankedMemory {
	if o.retrieval == nil {
		return nil
	}
	return func(ctx context.Context) []model.RankedMemory {
		qt := model.QueryChat
		if extract.Classify(req.Message) == extract.OpRecall || analysis.PrimaryIntent == model.IntentInformational {
			qt = model.QueryRecall
		}
		mems, err := o.retrieval.Recall(ctx, retrieval.RecallParams{
			UserID:    req.MemoryOwner(),
			SessionID: req.SessionID,
			Message:   req.Message,
			History:   history,
			Context:   model.SupersessionContext{QueryType: qt, Query: req.Message},
		})
		if err != nil {
			log.Warn("recall failed", zap.Error(err))
			return nil
		}
		return mems
	}
}

// hybrid runs the tool-calling handler after chat and merges both replies.
func (o *Orchestrator) hybrid(ctx context.Context, log *zap.Logger, turn *Turn, chat *model.Response) *model.Response {
	h, err := o.handler(model.ModeToolCalling)
	if err != nil {
		log.Warn("hybrid request without tool handler", zap.Error(err))
		return chat
	}
	tools, err := h.Handle(ctx, turn)
	if err != nil || tools == nil {
		log.Warn("hybrid tool handler failed", zap.Error(err))
		return chat
	}

	merged := *chat
	if t := strings.TrimSpace(tools.Text); t != "" {
		if merged.Text != "" {
			merged.Text += "\n\n"
		}
		merged.Text += t
	}
	merged.ToolResults = append(append([]model.ToolResult(nil), chat.ToolResults...), tools.ToolResults...)
	merged.Metadata.ToolsExecuted = len(merged.ToolResults)
	merged.Metadata.Hybrid = true
	merged.Success = chat.Success || tools.Success
	return &merged
}

// commit records the exchange. Failures are logged only.
func (o *Orchestrator) commit(ctx context.Context, log *zap.Logger, turn *Turn, resp *model.Response) {
	id := turn.Request.SessionID
	err := o.sessions.Commit(ctx, id,
		model.Message{Role: model.RoleUser, Content: turn.Request.Message},
		model.Message{Role: model.RoleAssistant, Content: resp.Text})
	if err != nil {
		log.Warn("context commit failed", zap.String("session", id), zap.Error(err))
	}
	if turn.canvasChanged {
		if err := o.sessions.SetCanvas(ctx, id, turn.canvas); err != nil {
			log.Warn("canvas commit failed", zap.String("session", id), zap.Error(err))
		}
	}
}

func failure(text string, err error) *model.Response {
	resp := &model.Response{Success: false, Text: text}
	if err != nil {
		resp.Metadata.Error = err.Error()
	}
	return resp
}

func apology(reqID string, err error) *model.Response {
	return &model.Response{
		Success:  false,
		Text:     apologyPrefix + err.Error(),
		Metadata: model.ResponseMetadata{RequestID: reqID, Error: err.Error()},
	}
}
