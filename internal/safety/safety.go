// Package safety wraps content-safety checks so that a failing checker never blocks a user.
package safety

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

// Risk levels.
const (
	RiskNone   = "none"
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// InputVerdict is the result of checking a user message.
type InputVerdict struct {
	Safe      bool   `json:"safe"`
	RiskLevel string `json:"risk_level"`
	Violation string `json:"violation,omitempty"`
}

// OutputVerdict is the result of checking a response. Sanitized replaces the text when set.
type OutputVerdict struct {
	Safe      bool   `json:"safe"`
	Sanitized string `json:"sanitized,omitempty"`
}

// Checker is the content-safety contract.
type Checker interface {
	CheckInput(ctx context.Context, message string, analysis model.IntentAnalysis) (InputVerdict, error)
	CheckOutput(ctx context.Context, text string) (OutputVerdict, error)
}

// Permissive allows everything.
type Permissive struct{}

func (Permissive) CheckInput(context.Context, string, model.IntentAnalysis) (InputVerdict, error) {
	return InputVerdict{Safe: true, RiskLevel: RiskNone}, nil
}

func (Permissive) CheckOutput(context.Context, string) (OutputVerdict, error) {
	return OutputVerdict{Safe: true}, nil
}

// Lexical blocks inputs matching its patterns and redacts secrets from outputs.
type Lexical struct {
	Blocked []*regexp.Regexp
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}\b`),
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`),
}

// NewLexical compiles the blocked patterns.
func NewLexical(patterns ...string) (*Lexical, error) {
	l := &Lexical{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile blocked pattern %q: %w", p, err)
		}
		l.Blocked = append(l.Blocked, re)
	}
	return l, nil
}

func (l *Lexical) CheckInput(_ context.Context, message string, _ model.IntentAnalysis) (InputVerdict, error) {
	for _, re := range l.Blocked {
		if re.MatchString(message) {
			return InputVerdict{Safe: false, RiskLevel: RiskHigh, Violation: re.String()}, nil
		}
	}
	return InputVerdict{Safe: true, RiskLevel: RiskNone}, nil
}

func (l *Lexical) CheckOutput(_ context.Context, text string) (OutputVerdict, error) {
	out := text
	for _, re := range secretPatterns {
		out = re.ReplaceAllString(out, "[redacted]")
	}
	if out != text {
		return OutputVerdict{Safe: false, Sanitized: out}, nil
	}
	return OutputVerdict{Safe: true}, nil
}

// Guard calls a Checker and defaults to safe when it errors or panics.
type Guard struct {
	checker Checker
	logger  *zap.Logger
}

// NewGuard wraps c. A nil checker is permissive.
func NewGuard(c Checker, logger *zap.Logger) *Guard {
	if c == nil {
		c = Permissive{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{checker: c, logger: logger}
}

// CheckInput never fails.
func (g *Guard) CheckInput(ctx context.Context, message string, analysis model.IntentAnalysis) (v InputVerdict) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("input safety checker panicked", zap.Any("panic", r))
			v = InputVerdict{Safe: true, RiskLevel: RiskNone}
		}
	}()
	v, err := g.checker.CheckInput(ctx, message, analysis)
	if err != nil {
		g.logger.Warn("input safety check failed, allowing", zap.Error(err))
		return InputVerdict{Safe: true, RiskLevel: RiskNone}
	}
	return v
}

// CheckOutput never fails. It returns the text to send.
func (g *Guard) CheckOutput(ctx context.Context, text string) (out string, sanitized bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("output safety checker panicked", zap.Any("panic", r))
			out, sanitized = text, false
		}
	}()
	v, err := g.checker.CheckOutput(ctx, text)
	if err != nil {
		g.logger.Warn("output safety check failed, allowing", zap.Error(err))
		return text, false
	}
	if !v.Safe && v.Sanitized != "" {
		return v.Sanitized, true
	}
	return text, false
}
