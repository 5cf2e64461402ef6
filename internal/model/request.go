package model

import "time"

// Mode is the single execution pathway chosen for a request.
type Mode string

const (
	ModeChat        Mode = "chat"
	ModeToolCalling Mode = "tool-calling"
	ModeVision      Mode = "vision"
	ModeAgent       Mode = "agent"
	ModeSocratic    Mode = "socratic"
)

// ValidModes are the modes a client may declare.
var ValidModes = map[Mode]bool{
	ModeChat:        true,
	ModeToolCalling: true,
	ModeVision:      true,
	ModeAgent:       true,
	ModeSocratic:    true,
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Form factors of the assistant surface.
const (
	FormFactorFullscreen = "fullscreen"
	FormFactorSidebar    = "sidebar"
	FormFactorSmall      = "small"
	FormFactorMobile     = "mobile"
)

// SpatialContext is the UI state the request was issued from.
type SpatialContext struct {
	CurrentPage   string `json:"current_page,omitempty"`
	CanvasVisible bool   `json:"canvas_visible,omitempty"`
	FormFactor    string `json:"form_factor,omitempty"`
}

// Attachment describes an uploaded file.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size,omitempty"`
}

// IsVisual reports whether the attachment is an image or a document.
func (a Attachment) IsVisual() bool {
	switch {
	case len(a.MimeType) >= 6 && a.MimeType[:6] == "image/":
		return true
	case a.MimeType == "application/pdf":
		return true
	}
	return false
}

// Request is the immutable input for one turn.
type Request struct {
	Message      string         `json:"message"`
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id,omitempty"`
	DeclaredMode Mode           `json:"mode,omitempty"`
	History      []Message      `json:"history,omitempty"`
	Spatial      SpatialContext `json:"spatial,omitempty"`
	Attachments  []Attachment   `json:"attachments,omitempty"`
}

// MemoryOwner returns the identity memories are filed under.
func (r Request) MemoryOwner() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.SessionID
}

// Primary intents produced by the classifier.
const (
	IntentInformational   = "informational"
	IntentModification    = "modification"
	IntentCreation        = "creation"
	IntentComplexWorkflow = "complex_workflow"
	IntentConversational  = "conversational"
)

// ToolRequests is the structured tool-request flag set.
type ToolRequests struct {
	IsSearch     bool `json:"is_search,omitempty"`
	IsWeather    bool `json:"is_weather,omitempty"`
	IsImage      bool `json:"is_image,omitempty"`
	IsNavigation bool `json:"is_navigation,omitempty"`
	IsSettings   bool `json:"is_settings,omitempty"`
	IsMemory     bool `json:"is_memory,omitempty"`
}

// AnyNonMemory reports whether a non-memory tool was requested.
func (t ToolRequests) AnyNonMemory() bool {
	return t.IsSearch || t.IsWeather || t.IsImage || t.IsNavigation || t.IsSettings
}

// CanvasActivation is the classifier's canvas recommendation.
type CanvasActivation struct {
	ShouldActivate bool    `json:"should_activate"`
	Reason         string  `json:"reason,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// IntentAnalysis is the classifier output. The dispatcher only annotates copies.
type IntentAnalysis struct {
	PrimaryIntent      string            `json:"primary_intent"`
	SecondaryIntents   []string          `json:"secondary_intents,omitempty"`
	ProcessingMode     string            `json:"processing_mode,omitempty"`
	Confidence         float64           `json:"confidence"`
	ToolRequests       ToolRequests      `json:"tool_requests"`
	CanvasActivation   *CanvasActivation `json:"canvas_activation,omitempty"`
	ActionConfirmation bool              `json:"action_confirmation,omitempty"`

	// Derived by the dispatcher.
	IsCanvasRevision bool   `json:"is_canvas_revision,omitempty"`
	TargetDocumentID string `json:"target_document_id,omitempty"`
}

// Clone returns a deep copy.
func (a IntentAnalysis) Clone() IntentAnalysis {
	c := a
	if a.SecondaryIntents != nil {
		c.SecondaryIntents = append([]string(nil), a.SecondaryIntents...)
	}
	if a.CanvasActivation != nil {
		ca := *a.CanvasActivation
		c.CanvasActivation = &ca
	}
	return c
}

// CanvasState is the snapshot of canvas elements for a session.
type CanvasState struct {
	HasDocument bool   `json:"has_document"`
	DocumentID  string `json:"document_id,omitempty"`
}

// RoutingHints carry mode-specific routing information.
type RoutingHints struct {
	IsRevision       bool   `json:"is_revision,omitempty"`
	TargetDocumentID string `json:"target_document_id,omitempty"`
	IsStyleChange    bool   `json:"is_style_change,omitempty"`
	IsMemoryRequest  bool   `json:"is_memory_request,omitempty"`
	IsToolRequest    bool   `json:"is_tool_request,omitempty"`
	Hybrid           bool   `json:"hybrid,omitempty"`
	VisionOverride   bool   `json:"vision_override,omitempty"`
	Rule             string `json:"rule"`
}

// Decision is the dispatcher output.
type Decision struct {
	Mode     Mode           `json:"mode"`
	Hints    RoutingHints   `json:"hints"`
	Analysis IntentAnalysis `json:"analysis"`
}

// ToolResult is one executed tool call reported by a handler.
type ToolResult struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
}

// ResponseMetadata describes how a response was produced.
type ResponseMetadata struct {
	RequestID     string        `json:"request_id,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	ToolsExecuted int           `json:"tools_executed"`
	Mode          Mode          `json:"mode,omitempty"`
	Hybrid        bool          `json:"hybrid,omitempty"`
	MemoriesUsed  int           `json:"memories_used,omitempty"`
	Sanitized     bool          `json:"sanitized,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Response is the envelope returned for every request.
type Response struct {
	Success     bool             `json:"success"`
	Text        string           `json:"text"`
	ToolResults []ToolResult     `json:"tool_results,omitempty"`
	Metadata    ResponseMetadata `json:"metadata"`
}
