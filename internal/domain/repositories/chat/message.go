package chat

import (
	"context"

	"cadence/internal/domain/models/chat"
)

// MessageRepository is the durable, ordered per-conversation message log.
//
// Insert assigns seq as max(seq)+1 within the conversation, computed inside
// the same statement as the write so the counter never races. Update never
// touches seq or id. DeleteAfter removes the tail strictly above seq and
// returns the deleted rows (with tool metadata) so callers can fork them.
type MessageRepository interface {
	// Insert stores a message and fills in ServerID, Seq and CreatedAt.
	// Fails with domain.ErrConflict if the id already exists in the conversation.
	Insert(ctx context.Context, msg *chat.Message) error

	// Update mutates content/status of a message in place.
	// Fails with domain.ErrMessageNotFound if absent.
	Update(ctx context.Context, conversationID, id string, upd *chat.MessageUpdate) (*chat.Message, error)

	// UpdateStatus transitions a message's lifecycle status.
	UpdateStatus(ctx context.Context, conversationID, id, status string) error

	// DeleteAfter removes every message with a sequence number strictly
	// greater than seq and returns the deleted rows in seq order.
	// seq=0 clears the conversation.
	DeleteAfter(ctx context.Context, conversationID string, seq int) ([]chat.Message, error)

	// ListAll returns the full log ordered by seq ascending, tool metadata
	// included, in a single pass.
	ListAll(ctx context.Context, conversationID string) ([]chat.Message, error)

	// GetByID loads one message by its client-stable id.
	GetByID(ctx context.Context, id string) (*chat.Message, error)

	// MaxSeq returns the highest sequence number in the conversation,
	// or 0 when empty.
	MaxSeq(ctx context.Context, conversationID string) (int, error)

	// ApplyToolDiff applies a minimal tool-metadata change-set to the
	// message identified by serverID.
	ApplyToolDiff(ctx context.Context, serverID int64, diff *chat.ToolDiff) error
}
