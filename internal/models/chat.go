package models

import "time"

// Message roles stored in conversation history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Intent labels produced by query analysis
const (
	IntentInstallation    = "installation"
	IntentCompatibility   = "compatibility"
	IntentTroubleshooting = "troubleshooting"
	IntentGeneral         = "general"
)

// Message represents a single message in a session
type Message struct {
	ID         int64          `json:"id"`
	SessionID  string         `json:"session_id"`
	Role       string         `json:"role"` // "user", "assistant", "system"
	Content    string         `json:"content"`
	Intent     string         `json:"intent,omitempty"`
	Entities   QueryEntities  `json:"entities,omitempty"`
	SourceURLs []string       `json:"source_urls,omitempty"` // Ordered, deduplicated retrieval origins
	ToolTrace  []ToolTraceRow `json:"tool_trace,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// QueryEntities holds identifiers extracted from a user query
type QueryEntities struct {
	PartNumbers  []string `json:"part_numbers,omitempty"`  // PSxxxxxxx part identifiers
	ModelNumbers []string `json:"model_numbers,omitempty"` // Appliance model identifiers
}

// ToolTraceRow records one tool invocation made while answering a turn
type ToolTraceRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Args     string `json:"args"` // JSON-encoded arguments as sent by the model
	Round    int    `json:"round"`
	Status   string `json:"status"` // "completed", "miss", "error"
	Duration int64  `json:"duration_ms"`
}

// ChatRequest is the request body for POST /api/chat
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"` // Empty starts a new session
	Message   string `json:"message"`
}

// ChatResponse is the assistant reply returned to the frontend
type ChatResponse struct {
	SessionID   string         `json:"session_id"`
	Answer      string         `json:"response"`
	Intent      string         `json:"intent,omitempty"`
	Entities    QueryEntities  `json:"entities,omitempty"`
	InScope     bool           `json:"in_scope"`
	SourcesUsed int            `json:"sources_used"`
	SourceURLs  []string       `json:"source_urls,omitempty"`
	ToolTrace   []ToolTraceRow `json:"tool_trace,omitempty"`
	Rounds      int            `json:"rounds"`
	Incomplete  bool           `json:"incomplete,omitempty"` // Round budget was exhausted
}

// SessionListItem is a summary of a session for listing (no messages)
type SessionListItem struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
