package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"cadence/internal/domain"
	chatModels "cadence/internal/domain/models/chat"
	chatRepo "cadence/internal/domain/repositories/chat"
	chatSvc "cadence/internal/domain/services/chat"
)

// Service implements conversation lifecycle operations. Every operation
// verifies ownership before touching message data; a conversation owned by
// someone else reads as not found rather than forbidden, so ids do not leak.
type Service struct {
	convRepo    chatRepo.ConversationRepository
	messageRepo chatRepo.MessageRepository
	logger      *slog.Logger
}

// NewService creates a new conversation service.
func NewService(convRepo chatRepo.ConversationRepository, messageRepo chatRepo.MessageRepository, logger *slog.Logger) chatSvc.ConversationService {
	return &Service{convRepo: convRepo, messageRepo: messageRepo, logger: logger}
}

// Create starts an empty conversation owned by userID.
func (s *Service) Create(ctx context.Context, userID string) (*chatModels.Conversation, error) {
	conv := &chatModels.Conversation{OwnerID: userID}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}
	s.logger.Info("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// Get returns the conversation if userID owns it.
func (s *Service) Get(ctx context.Context, conversationID, userID string) (*chatModels.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != userID {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrConversationNotFound)
	}
	return conv, nil
}

// List returns the user's live conversations, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]chatModels.Conversation, error) {
	return s.convRepo.ListByOwner(ctx, userID)
}

// Delete soft-deletes the conversation. Message rows stay in place so a
// deleted conversation can be restored by support tooling.
func (s *Service) Delete(ctx context.Context, conversationID, userID string) error {
	if err := s.convRepo.SoftDelete(ctx, conversationID, userID); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", "conversation_id", conversationID)
	return nil
}

// ListMessages returns the conversation's full message log in seq order,
// with tool metadata attached.
func (s *Service) ListMessages(ctx context.Context, conversationID, userID string) ([]chatModels.Message, error) {
	owned, err := s.convRepo.CheckOwnership(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrConversationNotFound)
	}
	return s.messageRepo.ListAll(ctx, conversationID)
}
