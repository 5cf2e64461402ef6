package dispatch

import (
	"regexp"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

var (
	deletionVerb = regexp.MustCompile(`(?i)\b(delete|forget|remove|clear|wipe|erase)\b`)
	memoryNoun   = regexp.MustCompile(`(?i)\b(memory|memories|about me|what you know)\b`)

	memoryPatterns = []*regexp.Regexp{
		// name statements
		regexp.MustCompile(`(?i)\b(my name is|call me|i'?m called|i am called)\b`),
		// relationship statements
		regexp.MustCompile(`(?i)\bmy (mother|mom|father|dad|brother|sister|son|daughter|wife|husband|partner|uncle|aunt|cousin|grandma|grandpa|friend|best friend|boss|colleague|coworker)(?:'s name)? (is|was)\b`),
		// explicit storage verbs
		regexp.MustCompile(`(?i)\b(remember (?:that|this|me)|don'?t forget|save (?:this|that)|store (?:this|that)|note that|keep in mind)\b`),
		// recall queries
		regexp.MustCompile(`(?i)\b(what do you (?:know|remember) about me|do you remember|what(?:'s| is) my name|who am i|what did i tell you)\b`),
	}

	visionIntent = regexp.MustCompile(`(?i)\b(analy[sz]e|describe|what do you see|what(?:'s| is) (?:in|on) (?:this|the) (?:image|picture|photo|file|document|pdf)|look at|identify|read (?:this|the)|extract (?:the )?text|ocr|explain (?:this|the) (?:image|picture|chart|diagram))\b`)

	styleChange     = regexp.MustCompile(`(?i)\b(make it|change the (?:colou?r|font|style|theme|tone|layout)|bold|italic|font|colou?r|restyle|reformat|more formal|less formal|tone)\b`)
	contentAddition = regexp.MustCompile(`(?i)\b(add|insert|append|include|extend|expand|put in|another (?:section|paragraph|slide|row|column)|a (?:chart|table|graph|section|paragraph|diagram))\b`)
)

// DetectDeletion reports whether a message asks to delete memories. It needs both a deletion
// verb and a memory noun.
func DetectDeletion(message string) bool {
	return deletionVerb.MatchString(message) && memoryNoun.MatchString(message)
}

// DetectMemoryRequest reports whether a message stores or recalls a personal fact.
func DetectMemoryRequest(message string) bool {
	for _, p := range memoryPatterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

// DetectVisionIntent reports whether a message asks to analyze an attachment.
func DetectVisionIntent(message string) bool {
	return visionIntent.MatchString(message)
}

// DetectStyleChange reports whether a message restyles existing content.
func DetectStyleChange(message string) bool {
	return styleChange.MatchString(message)
}

// DetectContentAddition reports whether a message adds to existing content.
func DetectContentAddition(message string) bool {
	return contentAddition.MatchString(message)
}

// ViewingCanvas reports whether the user is looking at the canvas.
func ViewingCanvas(s model.SpatialContext) bool {
	if s.FormFactor == model.FormFactorFullscreen || s.CanvasVisible {
		return true
	}
	page := strings.ToLower(s.CurrentPage)
	return strings.Contains(page, "canvas") || strings.Contains(page, "document")
}

// CanvasMutationAllowed reports whether the form factor permits changing the canvas.
func CanvasMutationAllowed(s model.SpatialContext) bool {
	switch s.FormFactor {
	case model.FormFactorSmall, model.FormFactorMobile:
		return false
	}
	return true
}

// HasVisualAttachment reports whether any attachment is an image or document.
func HasVisualAttachment(atts []model.Attachment) bool {
	for _, a := range atts {
		if a.IsVisual() {
			return true
		}
	}
	return false
}
