// Package extract turns a raw user message into candidate facts.
//
// A classification step gates everything: only store (and affirmative update) messages
// reach the extractor layers. Layers run in order and a layer is consulted only when the
// previous one produced nothing: salience patterns, then an LLM, then a name-only regex.
package extract

import (
	"regexp"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
	"github.com/neuraplayapp/assistant-core/internal/textutil"
)

// Operation is what a message asks the memory engine to do.
type Operation string

const (
	OpStore     Operation = "store"
	OpRecall    Operation = "recall"
	OpUpdate    Operation = "update"
	OpForget    Operation = "forget"
	OpAmbiguous Operation = "ambiguous"
)

type opRule struct {
	op    Operation
	match func(msg string) bool
}

var (
	forgetVerb   = regexp.MustCompile(`(?i)\b(forget|delete|remove|erase|wipe|clear)\b`)
	forgetObject = regexp.MustCompile(`(?i)\b(memory|memories|about me|my|that i|what i|i told you|everything)\b`)

	negation = regexp.MustCompile(`(?i)(\bmy \w+(?: \w+)? (?:is not|isn't|is no longer|was not|wasn't)\b|\bi(?:'m| am) (?:not|no longer)\b|\bi (?:don'?t|do not) have\b|\bi no longer\b|\bnot anymore\b)`)
	correction = regexp.MustCompile(`(?i)\b(actually|correction|i meant|instead|changed my name|that's wrong|that is wrong)\b`)

	question     = regexp.MustCompile(`\?\s*$`)
	questionLead = regexp.MustCompile(`(?i)^\s*(what|what's|whats|who|where|when|which|how|do you|did i|can you tell|tell me|have i)\b`)

	declaration = regexp.MustCompile(`(?i)\b(my|i am|i'm|i have|i've|i live|i work|i like|i love|i enjoy|i hate|i prefer|i speak|i study|i want|i plan|i feel|i was born|call me|remember that|note that)\b`)

	explicitName = regexp.MustCompile(`(?i)\b(my name is|call me|i'?m called|i am called)\b`)
)

// opRules are evaluated in order; the first match wins.
var opRules = []opRule{
	{OpForget, func(m string) bool { return forgetVerb.MatchString(m) && forgetObject.MatchString(m) }},
	{OpUpdate, func(m string) bool { return negation.MatchString(m) || correction.MatchString(m) }},
	{OpRecall, func(m string) bool { return question.MatchString(m) || questionLead.MatchString(m) }},
	{OpStore, declaration.MatchString},
}

// Classify decides which memory operation a message asks for.
func Classify(message string) Operation {
	m := strings.TrimSpace(message)
	if m == "" {
		return OpAmbiguous
	}
	for _, r := range opRules {
		if r.match(m) {
			return r.op
		}
	}
	return OpAmbiguous
}

// IsNegation reports whether the message denies a fact rather than stating one.
func IsNegation(message string) bool { return negation.MatchString(message) }

// HasExplicitDeclaration reports whether the message contains a first-person name declaration.
func HasExplicitDeclaration(message string) bool { return explicitName.MatchString(message) }

// ForgetTarget describes which records a forget message refers to.
type ForgetTarget struct {
	All      bool
	Category model.Category
	Terms    []string
}

var forgetAll = regexp.MustCompile(`(?i)\b(everything|all (?:of )?(?:my )?(?:memories|data|info|information)|all about me)\b`)

var forgetNoise = map[string]bool{
	"forget": true, "delete": true, "remove": true, "erase": true, "wipe": true, "clear": true,
	"memory": true, "memories": true, "told": true, "said": true, "mentioned": true, "please": true,
}

// TargetOf works out what a forget message wants removed. With no category and no terms
// the target is empty and nothing should be deleted. A whole category is targeted only when
// the message names it; relation words like "uncle" stay terms.
func TargetOf(message string) ForgetTarget {
	if forgetAll.MatchString(message) {
		return ForgetTarget{All: true}
	}
	var t ForgetTarget
	if c, ok := taxonomy.InferFromContent(message); ok {
		t.Category = c
	}
	for _, w := range textutil.ContentWords(message, 2) {
		if forgetNoise[w] || taxonomy.NamesCategory(w) {
			continue
		}
		t.Terms = append(t.Terms, w)
	}
	return t
}

// Negated is the fact a negation message denies.
type Negated struct {
	Category model.Category
	Value    string
}

var negatedForms = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy (\w+) (?:is not|isn't|is no longer|was not|wasn't)\s+([^.,!?;]+)`),
	regexp.MustCompile(`(?i)\bi (?:don'?t|do not) have (?:an? |any )?([^.,!?;]+)`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) (?:not|no longer) (?:an? )?([^.,!?;]+)`),
	regexp.MustCompile(`(?i)\bi no longer ([^.,!?;]+)`),
}

// NegationOf extracts the denied fact from a negation message.
func NegationOf(message string) (Negated, bool) {
	for i, re := range negatedForms {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		if i == 0 {
			return Negated{Category: taxonomy.Normalize(m[1]), Value: strings.TrimSpace(m[2])}, true
		}
		return Negated{Value: strings.TrimSpace(m[1])}, true
	}
	return Negated{}, false
}
