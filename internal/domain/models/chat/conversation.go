package chat

import (
	"time"
)

// Conversation is an ordered message log owned by a single user.
// ParentConversationID is set when the conversation was created by a fork:
// editing a message moves the truncated tail into a child conversation so
// the original timeline is preserved.
type Conversation struct {
	ID                   string     `json:"id" db:"id"`
	OwnerID              string     `json:"owner_id" db:"owner_id"`
	ParentConversationID *string    `json:"parent_conversation_id,omitempty" db:"parent_conversation_id"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
