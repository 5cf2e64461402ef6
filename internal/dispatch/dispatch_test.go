package dispatch

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

var canvasDoc = model.CanvasState{HasDocument: true, DocumentID: "doc-42"}

func fullscreen(msg string) model.Request {
	return model.Request{
		Message:   msg,
		SessionID: "s1",
		Spatial:   model.SpatialContext{FormFactor: model.FormFactorFullscreen},
	}
}

func TestResolve_NameStatementIsChat(t *testing.T) {
	d := New()
	dec := d.Resolve(model.Request{Message: "My name is Ahmed"}, model.IntentAnalysis{PrimaryIntent: model.IntentConversational}, model.CanvasState{})
	assert.Equal(t, model.ModeChat, dec.Mode)
	assert.Equal(t, RuleMemoryRequest, dec.Hints.Rule)
	assert.True(t, dec.Hints.IsMemoryRequest)
}

func TestResolve_CanvasRevisionFullscreen(t *testing.T) {
	d := New()
	dec := d.Resolve(fullscreen("add a chart showing Q3 sales"), model.IntentAnalysis{PrimaryIntent: model.IntentCreation}, canvasDoc)
	assert.Equal(t, model.ModeToolCalling, dec.Mode)
	assert.Equal(t, RuleCanvasRevision, dec.Hints.Rule)
	assert.True(t, dec.Hints.IsRevision)
	assert.Equal(t, "doc-42", dec.Hints.TargetDocumentID)
	assert.False(t, dec.Hints.IsStyleChange)
	assert.True(t, dec.Analysis.IsCanvasRevision)
	assert.Equal(t, "doc-42", dec.Analysis.TargetDocumentID)
}

func TestResolve_CanvasRevisionDisabledOnMobile(t *testing.T) {
	d := New()
	req := fullscreen("add a chart showing Q3 sales")
	req.Spatial.FormFactor = model.FormFactorMobile
	req.Spatial.CanvasVisible = true
	dec := d.Resolve(req, model.IntentAnalysis{PrimaryIntent: model.IntentModification}, canvasDoc)
	assert.Equal(t, model.ModeChat, dec.Mode)
	assert.False(t, dec.Hints.IsRevision)
}

func TestResolve_StyleChange(t *testing.T) {
	d := New()
	req := model.Request{Message: "make it more formal", Spatial: model.SpatialContext{CurrentPage: "/canvas/doc-42"}}
	dec := d.Resolve(req, model.IntentAnalysis{}, canvasDoc)
	assert.Equal(t, model.ModeToolCalling, dec.Mode)
	assert.True(t, dec.Hints.IsStyleChange)
}

func TestResolve_RevisionNeedsViewing(t *testing.T) {
	d := New()
	req := model.Request{Message: "add a table", Spatial: model.SpatialContext{FormFactor: model.FormFactorSidebar}}
	dec := d.Resolve(req, model.IntentAnalysis{PrimaryIntent: model.IntentModification}, canvasDoc)
	assert.NotEqual(t, RuleCanvasRevision, dec.Hints.Rule)
}

func TestResolve_DeletionAlwaysChat(t *testing.T) {
	verbs := []string{"delete", "forget", "remove", "clear", "wipe", "Delete", "FORGET"}
	templates := []string{
		"%s my memories",
		"please %s everything you know about me",
		"%s that memory and add a chart",
		"can you %s all memories now",
	}
	analysis := model.IntentAnalysis{
		PrimaryIntent:      model.IntentModification,
		ActionConfirmation: true,
		ToolRequests:       model.ToolRequests{IsSearch: true},
		CanvasActivation:   &model.CanvasActivation{ShouldActivate: true},
	}
	d := New()
	for _, v := range verbs {
		for _, tpl := range templates {
			msg := fmt.Sprintf(tpl, v)
			req := fullscreen(msg)
			req.Spatial.CanvasVisible = true
			req.DeclaredMode = model.ModeAgent
			dec := d.Resolve(req, analysis, canvasDoc)
			assert.Equal(t, model.ModeChat, dec.Mode, msg)
			assert.Equal(t, RuleMemoryDeletion, dec.Hints.Rule, msg)
		}
	}
}

func TestResolve_CanvasEditMentioningNameIsRevision(t *testing.T) {
	d := New()
	dec := d.Resolve(fullscreen("remove my name from the header"), model.IntentAnalysis{PrimaryIntent: model.IntentModification}, canvasDoc)
	assert.Equal(t, model.ModeToolCalling, dec.Mode)
	assert.Equal(t, RuleCanvasRevision, dec.Hints.Rule)
	assert.True(t, dec.Hints.IsRevision)
}

func TestResolve_CanvasActivation(t *testing.T) {
	d := New()
	activate := &model.CanvasActivation{ShouldActivate: true}

	dec := d.Resolve(model.Request{Message: "write me an essay on tides"},
		model.IntentAnalysis{PrimaryIntent: model.IntentCreation, CanvasActivation: activate}, model.CanvasState{})
	assert.Equal(t, model.ModeToolCalling, dec.Mode)
	assert.Equal(t, RuleCanvasActivation, dec.Hints.Rule)

	dec = d.Resolve(model.Request{Message: "what is on the canvas"},
		model.IntentAnalysis{PrimaryIntent: model.IntentInformational, CanvasActivation: activate}, model.CanvasState{})
	assert.Equal(t, model.ModeChat, dec.Mode)
	assert.Equal(t, RuleCanvasActivation, dec.Hints.Rule)

	small := model.Request{Message: "write me an essay on tides", Spatial: model.SpatialContext{FormFactor: model.FormFactorSmall}}
	dec = d.Resolve(small, model.IntentAnalysis{PrimaryIntent: model.IntentCreation, CanvasActivation: activate}, model.CanvasState{})
	assert.Equal(t, RuleDefault, dec.Hints.Rule)
}

func TestResolve_MemoryBeforeTools(t *testing.T) {
	d := New()
	dec := d.Resolve(model.Request{Message: "remember that I live in Oslo and check the weather there"},
		model.IntentAnalysis{ToolRequests: model.ToolRequests{IsWeather: true}}, model.CanvasState{})
	assert.Equal(t, model.ModeChat, dec.Mode)
	assert.True(t, dec.Hints.Hybrid)
	assert.True(t, dec.Hints.IsToolRequest)

	dec = d.Resolve(model.Request{Message: "what's the weather in Oslo"},
		model.IntentAnalysis{ToolRequests: model.ToolRequests{IsWeather: true}}, model.CanvasState{})
	assert.Equal(t, model.ModeToolCalling, dec.Mode)
	assert.Equal(t, RuleToolRequest, dec.Hints.Rule)
}

func TestResolve_DeclaredAndDefault(t *testing.T) {
	d := New()
	dec := d.Resolve(model.Request{Message: "teach me fractions", DeclaredMode: model.ModeSocratic}, model.IntentAnalysis{}, model.CanvasState{})
	assert.Equal(t, model.ModeSocratic, dec.Mode)
	assert.Equal(t, RuleDeclaredMode, dec.Hints.Rule)

	dec = d.Resolve(model.Request{Message: "teach me fractions", DeclaredMode: "telepathy"}, model.IntentAnalysis{}, model.CanvasState{})
	assert.Equal(t, model.ModeChat, dec.Mode)
	assert.Equal(t, RuleDefault, dec.Hints.Rule)
}

func TestResolve_VisionOverride(t *testing.T) {
	d := New()
	img := []model.Attachment{{Name: "cat.png", MimeType: "image/png"}}

	dec := d.Resolve(model.Request{Message: "describe this", Attachments: img}, model.IntentAnalysis{}, model.CanvasState{})
	assert.Equal(t, model.ModeVision, dec.Mode)
	assert.True(t, dec.Hints.VisionOverride)

	dec = d.Resolve(model.Request{Message: "thanks!", Attachments: img, DeclaredMode: model.ModeVision}, model.IntentAnalysis{}, model.CanvasState{})
	assert.Equal(t, model.ModeVision, dec.Mode)

	dec = d.Resolve(model.Request{Message: "keep this for later", Attachments: img}, model.IntentAnalysis{}, model.CanvasState{})
	assert.Equal(t, model.ModeChat, dec.Mode)

	txt := []model.Attachment{{Name: "notes.txt", MimeType: "text/plain"}}
	dec = d.Resolve(model.Request{Message: "describe this", Attachments: txt}, model.IntentAnalysis{}, model.CanvasState{})
	assert.Equal(t, model.ModeChat, dec.Mode)
}

func TestResolve_DoesNotMutateAnalysis(t *testing.T) {
	analysis := model.IntentAnalysis{
		PrimaryIntent:    model.IntentModification,
		SecondaryIntents: []string{"edit"},
		CanvasActivation: &model.CanvasActivation{ShouldActivate: true},
	}
	before := analysis.Clone()

	dec := New().Resolve(fullscreen("add a section on risks"), analysis, canvasDoc)
	assert.True(t, dec.Analysis.IsCanvasRevision)

	if diff := cmp.Diff(before, analysis); diff != "" {
		t.Errorf("analysis mutated (-before +after):\n%s", diff)
	}
	dec.Analysis.SecondaryIntents[0] = "changed"
	dec.Analysis.CanvasActivation.ShouldActivate = false
	assert.Equal(t, "edit", analysis.SecondaryIntents[0])
	assert.True(t, analysis.CanvasActivation.ShouldActivate)
}

func TestResolve_Deterministic(t *testing.T) {
	d := New()
	req := fullscreen("add a chart showing Q3 sales")
	a := d.Resolve(req, model.IntentAnalysis{}, canvasDoc)
	b := d.Resolve(req, model.IntentAnalysis{}, canvasDoc)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("decisions differ:\n%s", diff)
	}
}

func TestRulesOrder(t *testing.T) {
	assert.Equal(t, []string{
		RuleMemoryDeletion, RuleCanvasRevision, RuleCanvasActivation,
		RuleMemoryRequest, RuleToolRequest, RuleDeclaredMode, RuleDefault,
	}, New().Rules())
}

func TestDetectors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) bool
		msg  string
		want bool
	}{
		{"deletion", DetectDeletion, "forget everything about me", true},
		{"deletion needs noun", DetectDeletion, "delete the second paragraph", false},
		{"deletion needs verb", DetectDeletion, "what is in my memory", false},
		{"deletion ignores document nouns", DetectDeletion, "remove my name from the header", false},
		{"memory name", DetectMemoryRequest, "call me Sam", true},
		{"memory relation", DetectMemoryRequest, "my sister is a pilot", true},
		{"memory verb", DetectMemoryRequest, "remember that I take the 8am train", true},
		{"memory recall", DetectMemoryRequest, "What do you know about me?", true},
		{"not memory", DetectMemoryRequest, "summarize the quarterly report", false},
		{"vision", DetectVisionIntent, "What do you see?", true},
		{"vision analyze", DetectVisionIntent, "please analyse the receipt", true},
		{"not vision", DetectVisionIntent, "thanks", false},
		{"style", DetectStyleChange, "change the font to serif", true},
		{"addition", DetectContentAddition, "insert a summary at the top", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.msg))
		})
	}
}
