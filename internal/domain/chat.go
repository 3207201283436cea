package domain

import "time"

// Message roles as stored in chat history.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Session represents a chat session owned by an authenticated user.
// Anonymous chats never create one; they are scoped to a single call.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single entry in a session's history. Messages are
// append-only: once written they are never edited or reordered.
type Message struct {
	UID       string     `json:"uid"`
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	Role      string     `json:"role"` // human, ai
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToolCall records a tool invocation the model requested during a turn.
// Only the call metadata is persisted; tool results are transient.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatRequest is the request to send a chat message.
type ChatRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message" binding:"required"`
}

// ChatResponse is the response from a non-streaming chat turn.
type ChatResponse struct {
	SessionID string `json:"sessionId"`
	Response  string `json:"response"`
}

// StreamChunk is one event in a streaming chat turn.
type StreamChunk struct {
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Done      bool   `json:"done,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Stats reports service counters for the admin API.
type Stats struct {
	ContextChunks int `json:"context_chunks"`
	TotalSessions int `json:"total_sessions"`
	TotalMessages int `json:"total_messages"`
}
