package sync

import (
	"context"
	"fmt"
	"log/slog"

	chatModels "cadence/internal/domain/models/chat"
	chatRepo "cadence/internal/domain/repositories/chat"
)

// Forker moves a truncated message tail into a new conversation so edit
// history branches instead of being destroyed.
type Forker struct {
	convRepo    chatRepo.ConversationRepository
	messageRepo chatRepo.MessageRepository
	logger      *slog.Logger
}

// NewForker creates a new Forker.
func NewForker(convRepo chatRepo.ConversationRepository, messageRepo chatRepo.MessageRepository, logger *slog.Logger) *Forker {
	return &Forker{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		logger:      logger,
	}
}

// Fork creates a child conversation of original and re-inserts tail into it
// in order, re-sequenced from 1. Ids, content, tool metadata and status are
// preserved. Must run inside the same transaction as the truncation that
// produced tail. Returns the new conversation's id.
func (f *Forker) Fork(ctx context.Context, original *chatModels.Conversation, tail []chatModels.Message) (string, error) {
	fork := &chatModels.Conversation{
		OwnerID:              original.OwnerID,
		ParentConversationID: &original.ID,
	}
	if err := f.convRepo.Create(ctx, fork); err != nil {
		return "", fmt.Errorf("create fork conversation: %w", err)
	}

	// Insert in original seq order; the store re-sequences from 1.
	for i := range tail {
		msg := chatModels.Message{
			ID:             tail[i].ID,
			ConversationID: fork.ID,
			Role:           tail[i].Role,
			Content:        tail[i].Content,
			ToolCalls:      tail[i].ToolCalls,
			ToolOutputs:    tail[i].ToolOutputs,
			Status:         tail[i].Status,
		}
		if err := f.messageRepo.Insert(ctx, &msg); err != nil {
			return "", fmt.Errorf("re-insert forked message %s: %w", msg.ID, err)
		}
	}

	f.logger.Info("conversation forked",
		"original_id", original.ID,
		"fork_id", fork.ID,
		"moved_messages", len(tail),
	)

	return fork.ID, nil
}
