package ai

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// verdictPayload is the reply shape requested from the model; ai_powered is
// set by the caller, never by the model.
type verdictPayload struct {
	ComplianceStatus   string        `json:"compliance_status"`
	Reasoning          []string      `json:"reasoning"`
	RequiredPermits    []string      `json:"required_permits"`
	RequiredForms      []formPayload `json:"required_forms"`
	SuggestedChecklist []string      `json:"suggested_checklist"`
	LegalAlternatives  []string      `json:"legal_alternatives"`
}

type formPayload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
