package chat

import (
	"context"

	"cadence/internal/domain/models/chat"
)

// SyncService reconciles a client's message list with the stored log.
//
// Requests carrying an explicit intent (Append, Edit) are validated strictly
// and either apply exactly or fail - no fallback. LegacySync takes a raw
// incoming list, infers the best-effort alignment against the stored tail,
// applies the resulting diff when it is trustworthy, and otherwise falls back
// to clear-and-rewrite. Every mutation runs in one transaction.
type SyncService interface {
	// Append adds messages after an anchor. With no ConversationID a new
	// conversation is created for userID and the messages start at seq 1.
	Append(ctx context.Context, userID string, req *AppendRequest) (*chat.SyncResult, error)

	// Edit replaces a user message's content in place, truncates everything
	// after it, and forks the truncated tail into a new conversation. The
	// message must belong to a conversation owned by userID.
	Edit(ctx context.Context, userID string, req *EditRequest) (*chat.SyncResult, error)

	// LegacySync reconciles a raw incoming list against the stored log.
	LegacySync(ctx context.Context, conversationID string, incoming []chat.IncomingMessage) (*chat.SyncResult, error)
}

// AppendRequest is the explicit append intent envelope.
//
// When ConversationID is set, AfterMessageID/AfterSeq anchor the append and
// serve as the optimistic lock: the stored seq of the anchor must still equal
// AfterSeq at commit time. TruncateAfter first deletes the tail above the
// anchor (the regenerate case); without it the anchor must be the last
// message.
type AppendRequest struct {
	ConversationID string                 `json:"conversation_id,omitempty"`
	AfterMessageID string                 `json:"after_message_id,omitempty"`
	AfterSeq       int                    `json:"after_seq,omitempty"`
	TruncateAfter  bool                   `json:"truncate_after,omitempty"`
	Messages       []chat.IncomingMessage `json:"messages"`
}

// EditRequest is the explicit edit intent envelope. ExpectedSeq is the
// optimistic lock.
type EditRequest struct {
	MessageID   string       `json:"message_id"`
	ExpectedSeq int          `json:"expected_seq"`
	Content     chat.Content `json:"content"`
}

// ConversationService covers conversation lifecycle outside the sync engine.
type ConversationService interface {
	Create(ctx context.Context, userID string) (*chat.Conversation, error)
	Get(ctx context.Context, conversationID, userID string) (*chat.Conversation, error)
	List(ctx context.Context, userID string) ([]chat.Conversation, error)
	Delete(ctx context.Context, conversationID, userID string) error
	ListMessages(ctx context.Context, conversationID, userID string) ([]chat.Message, error)
}
