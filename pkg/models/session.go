package models

// Preferences holds per-session display and analysis defaults.
type Preferences struct {
	VisualizationStyle string  `json:"visualization_style"`
	SignificanceLevel  float64 `json:"significance_level"`
	MaxDisplayRows     int     `json:"max_display_rows"`
	PreferredFormat    string  `json:"preferred_format"`
}

// DefaultPreferences returns the preferences applied to new sessions.
func DefaultPreferences() Preferences {
	return Preferences{
		VisualizationStyle: "matplotlib",
		SignificanceLevel:  0.05,
		MaxDisplayRows:     100,
		PreferredFormat:    "csv",
	}
}

// FileContext tracks a file the conversation is currently focused on.
type FileContext struct {
	FilePath       string            `json:"file_path"`
	FileName       string            `json:"file_name"`
	Columns        []string          `json:"columns,omitempty"`
	AppliedFilters map[string]string `json:"applied_filters,omitempty"`
	LastAccessedTS int64             `json:"last_accessed_ts"`
}

// Turn is one completed exchange inside a session.
type Turn struct {
	ID                    string   `json:"turn_id"`
	Session               string   `json:"session"`
	UserQuery             string   `json:"user_query"`
	Intent                string   `json:"intent,omitempty"`
	Entities              []Entity `json:"entities,omitempty"`
	ClarificationNeeded   bool     `json:"clarification_needed,omitempty"`
	ClarificationQuestion string   `json:"clarification_question,omitempty"`
	AIResponse            string   `json:"ai_response,omitempty"`
	CodeGenerated         string   `json:"code_generated,omitempty"`
	ExecutionResult       string   `json:"execution_result,omitempty"`
	TS                    int64    `json:"ts"`
}

// Session is the persisted conversation state. History is stored as
// separate turn records under the session key prefix; Session itself only
// carries the metadata needed to resume a conversation.
type Session struct {
	ID             string                 `json:"id"`
	CreatedTS      int64                  `json:"created_ts"`
	LastActivityTS int64                  `json:"last_activity_ts"`
	CurrentTurn    int                    `json:"current_turn"`
	LastSeq        uint64                 `json:"last_seq,omitempty"`
	FocusedFiles   map[string]FileContext `json:"focused_files,omitempty"`
	GlobalFilters  map[string]string      `json:"global_filters,omitempty"`
	Preferences    Preferences            `json:"preferences"`
	Deleted        bool                   `json:"deleted,omitempty"`
	DeletedTS      int64                  `json:"deleted_ts,omitempty"`
}
