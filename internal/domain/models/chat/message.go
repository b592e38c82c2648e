package chat

import (
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Message statuses. "draft" and "streaming" are transient while a reply is
// being generated; "final" and "error" are terminal.
const (
	StatusDraft     = "draft"
	StatusStreaming = "streaming"
	StatusFinal     = "final"
	StatusError     = "error"
)

// Message is one entry in a conversation's ordered log.
//
// ID is the client-generated stable identifier (UUID, unique per conversation);
// the store generates one when a client omits it and returns the generated
// value. ServerID is the store-assigned row id used internally for tool-data
// joins. Seq is assigned by the store at insert time as max(seq)+1 within the
// conversation and defines the total order; it never changes for the lifetime
// of the message.
type Message struct {
	ID             string       `json:"id" db:"id"`
	ServerID       int64        `json:"-" db:"server_id"`
	ConversationID string       `json:"conversation_id" db:"conversation_id"`
	Seq            int          `json:"seq" db:"seq"`
	Role           string       `json:"role" db:"role"`
	Content        Content      `json:"content"`
	ToolCalls      []ToolCall   `json:"tool_calls,omitempty"`
	ToolOutputs    []ToolOutput `json:"tool_outputs,omitempty"`
	Status         string       `json:"status" db:"status"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// IncomingMessage is a message as supplied by a client: the id is optional
// (legacy clients omit it), seq is never client-assigned, and tool metadata
// is present only on assistant/tool messages.
type IncomingMessage struct {
	ID          string       `json:"id,omitempty"`
	Role        string       `json:"role"`
	Content     Content      `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolOutputs []ToolOutput `json:"tool_outputs,omitempty"`
	Status      string       `json:"status,omitempty"`
}

// ValidRole reports whether role is one of the four message roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleTool, RoleSystem:
		return true
	}
	return false
}

// MessageUpdate carries the in-place mutable fields of a message.
// Seq and ID are never updated.
type MessageUpdate struct {
	Content *Content
	Status  *string
}
