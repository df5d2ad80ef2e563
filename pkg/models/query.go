package models

// QueryRequest is the payload accepted by the query endpoints.
type QueryRequest struct {
	Query     string                 `json:"query"`
	SessionID string                 `json:"session_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Entity is one extracted span from a user query.
type Entity struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Attachment references a generated artifact (plot image, data export).
type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// AgentResponse is the response envelope returned by the query endpoints.
type AgentResponse struct {
	Message             string       `json:"message"`
	Code                string       `json:"code,omitempty"`
	ExecutionResult     string       `json:"execution_result,omitempty"`
	CodeType            string       `json:"code_type,omitempty"`
	Attachments         []Attachment `json:"attachments"`
	FollowUpSuggestions []string     `json:"follow_up_suggestions"`
	Intent              string       `json:"intent"`
	Entities            []Entity     `json:"entities"`
	ClarificationNeeded bool         `json:"clarification_needed"`
	Confidence          float64      `json:"confidence"`
	ProcessingTime      float64      `json:"processing_time"`
	SessionID           string       `json:"session_id,omitempty"`
}
