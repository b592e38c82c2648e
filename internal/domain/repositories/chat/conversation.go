package chat

import (
	"context"

	"cadence/internal/domain/models/chat"
)

// ConversationRepository manages conversation records and the per-conversation
// write lock. Ownership checks happen at the boundary (handlers) before the
// sync engine runs; the engine itself operates purely on conversation ids.
type ConversationRepository interface {
	// Create stores a new conversation, filling in CreatedAt/UpdatedAt.
	Create(ctx context.Context, conv *chat.Conversation) error

	// Get loads a conversation by id. Soft-deleted conversations are not
	// returned. Fails with domain.ErrConversationNotFound if absent.
	Get(ctx context.Context, id string) (*chat.Conversation, error)

	// ListByOwner returns the owner's live conversations, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]chat.Conversation, error)

	// SoftDelete marks a conversation deleted without removing rows.
	SoftDelete(ctx context.Context, id, ownerID string) error

	// CheckOwnership reports whether ownerID owns the conversation.
	CheckOwnership(ctx context.Context, id, ownerID string) (bool, error)

	// Lock takes the conversation's row lock for the duration of the ambient
	// transaction, serializing concurrent mutations of the same conversation.
	// Must be called inside ExecTx.
	Lock(ctx context.Context, id string) error

	// Touch bumps the conversation's updated_at.
	Touch(ctx context.Context, id string) error
}
