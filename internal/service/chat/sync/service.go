package sync

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"cadence/internal/config"
	"cadence/internal/domain"
	chatModels "cadence/internal/domain/models/chat"
	"cadence/internal/domain/repositories"
	chatRepo "cadence/internal/domain/repositories/chat"
	chatSvc "cadence/internal/domain/services/chat"
	"cadence/internal/metrics"
)

// MaxBatchMessages caps how many messages one request may carry.
const MaxBatchMessages = 200

// Service implements the SyncService interface. It is the single decision
// point for message reconciliation: explicit intents validate strictly and
// never fall back, the legacy raw-list path aligns, diffs, and falls back to
// clear-and-rewrite when the alignment cannot be trusted. Every mutation runs
// inside exactly one transaction.
type Service struct {
	convRepo    chatRepo.ConversationRepository
	messageRepo chatRepo.MessageRepository
	txManager   repositories.TransactionManager
	forker      *Forker
	policy      config.SyncPolicy
	logger      *slog.Logger
}

// NewService creates a new sync service.
func NewService(
	convRepo chatRepo.ConversationRepository,
	messageRepo chatRepo.MessageRepository,
	txManager repositories.TransactionManager,
	forker *Forker,
	policy config.SyncPolicy,
	logger *slog.Logger,
) chatSvc.SyncService {
	return &Service{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		txManager:   txManager,
		forker:      forker,
		policy:      policy,
		logger:      logger,
	}
}

// Append validates and applies an explicit append intent. With no
// conversation id a conversation is created for userID and the messages
// start at seq 1; otherwise the anchor must exist, its stored seq must still
// equal AfterSeq, and it must be the last message unless TruncateAfter
// requests tail deletion first.
func (s *Service) Append(ctx context.Context, userID string, req *chatSvc.AppendRequest) (*chatModels.SyncResult, error) {
	if err := s.validateAppendRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var result *chatModels.SyncResult
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		changes := chatModels.NewChangeSet()
		convID := req.ConversationID

		if convID == "" {
			conv := &chatModels.Conversation{OwnerID: userID}
			if err := s.convRepo.Create(ctx, conv); err != nil {
				return err
			}
			convID = conv.ID
		} else {
			if err := s.convRepo.Lock(ctx, convID); err != nil {
				return err
			}

			anchor, err := s.messageRepo.GetByID(ctx, req.AfterMessageID)
			if err != nil {
				return err
			}
			if anchor.ConversationID != convID {
				return fmt.Errorf("message %s not in conversation %s: %w", req.AfterMessageID, convID, domain.ErrMessageNotFound)
			}
			if anchor.Seq != req.AfterSeq {
				return &domain.SeqMismatchError{MessageID: anchor.ID, ExpectedSeq: req.AfterSeq, ActualSeq: anchor.Seq}
			}

			if req.TruncateAfter {
				deleted, err := s.messageRepo.DeleteAfter(ctx, convID, req.AfterSeq)
				if err != nil {
					return err
				}
				for i := range deleted {
					changes.Deleted = append(changes.Deleted, chatModels.Ref(&deleted[i]))
				}
			} else {
				maxSeq, err := s.messageRepo.MaxSeq(ctx, convID)
				if err != nil {
					return err
				}
				if req.AfterSeq != maxSeq {
					return fmt.Errorf("seq %d of %d: %w", req.AfterSeq, maxSeq, domain.ErrNotLastMessage)
				}
			}
		}

		for i := range req.Messages {
			msg := messageFromIncoming(convID, &req.Messages[i])
			if err := s.messageRepo.Insert(ctx, msg); err != nil {
				return err
			}
			changes.Inserted = append(changes.Inserted, chatModels.Ref(msg))
		}

		if err := s.convRepo.Touch(ctx, convID); err != nil {
			return err
		}

		result = &chatModels.SyncResult{ConversationID: convID, Operations: changes}
		return nil
	})
	if err != nil {
		metrics.SyncOperations.WithLabelValues("append", "error").Inc()
		return nil, err
	}

	metrics.SyncOperations.WithLabelValues("append", "ok").Inc()
	metrics.MessagesWritten.WithLabelValues("insert").Add(float64(len(result.Operations.Inserted)))

	s.logger.Info("append applied",
		"conversation_id", result.ConversationID,
		"inserted", len(result.Operations.Inserted),
		"deleted", len(result.Operations.Deleted),
		"truncated", req.TruncateAfter,
	)

	return result, nil
}

// Edit validates and applies an explicit edit intent: the message content is
// replaced in place (seq and id unchanged), everything after it is detached,
// and the detached tail is forked into a child conversation. A message in a
// conversation userID does not own reads as not found.
func (s *Service) Edit(ctx context.Context, userID string, req *chatSvc.EditRequest) (*chatModels.SyncResult, error) {
	if err := s.validateEditRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var result *chatModels.SyncResult
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		// First read locates the conversation; the checks re-run on a
		// second read below, after the conversation lock is held.
		located, err := s.messageRepo.GetByID(ctx, req.MessageID)
		if err != nil {
			return err
		}
		if err := s.convRepo.Lock(ctx, located.ConversationID); err != nil {
			return err
		}

		msg, err := s.messageRepo.GetByID(ctx, req.MessageID)
		if err != nil {
			return err
		}

		conv, err := s.convRepo.Get(ctx, msg.ConversationID)
		if err != nil {
			return err
		}
		if conv.OwnerID != userID {
			return fmt.Errorf("message %s: %w", req.MessageID, domain.ErrMessageNotFound)
		}

		if msg.Role != chatModels.RoleUser {
			return fmt.Errorf("message %s has role %s: %w", msg.ID, msg.Role, domain.ErrEditNotAllowed)
		}
		if msg.Seq != req.ExpectedSeq {
			return &domain.SeqMismatchError{MessageID: msg.ID, ExpectedSeq: req.ExpectedSeq, ActualSeq: msg.Seq}
		}

		content := req.Content
		updated, err := s.messageRepo.Update(ctx, conv.ID, msg.ID, &chatModels.MessageUpdate{Content: &content})
		if err != nil {
			return err
		}

		tail, err := s.messageRepo.DeleteAfter(ctx, conv.ID, msg.Seq)
		if err != nil {
			return err
		}

		changes := chatModels.NewChangeSet()
		changes.Updated = append(changes.Updated, chatModels.Ref(updated))
		for i := range tail {
			changes.Deleted = append(changes.Deleted, chatModels.Ref(&tail[i]))
		}

		var forkID string
		if len(tail) > 0 {
			forkID, err = s.forker.Fork(ctx, conv, tail)
			if err != nil {
				return err
			}
		}

		if err := s.convRepo.Touch(ctx, conv.ID); err != nil {
			return err
		}

		result = &chatModels.SyncResult{
			ConversationID:     conv.ID,
			Operations:         changes,
			ForkConversationID: forkID,
		}
		return nil
	})
	if err != nil {
		metrics.SyncOperations.WithLabelValues("edit", "error").Inc()
		return nil, err
	}

	metrics.SyncOperations.WithLabelValues("edit", "ok").Inc()
	metrics.MessagesWritten.WithLabelValues("update").Inc()

	s.logger.Info("edit applied",
		"conversation_id", result.ConversationID,
		"message_id", req.MessageID,
		"fork_conversation_id", result.ForkConversationID,
		"detached", len(result.Operations.Deleted),
	)

	return result, nil
}

// LegacySync reconciles a raw incoming list against the stored log. The
// alignment and diff are recomputed inside the transaction, after the
// conversation lock is taken, so the classified change-set always applies to
// the exact state it was computed from. Untrusted alignments resolve to
// clear-and-rewrite, never to a client-visible failure.
func (s *Service) LegacySync(ctx context.Context, conversationID string, incoming []chatModels.IncomingMessage) (*chatModels.SyncResult, error) {
	if err := s.validateIncoming(conversationID, incoming); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var result *chatModels.SyncResult
	var outcome string
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.convRepo.Lock(ctx, conversationID); err != nil {
			return err
		}

		existing, err := s.messageRepo.ListAll(ctx, conversationID)
		if err != nil {
			return err
		}

		changes := chatModels.NewChangeSet()
		al := alignSuffix(existing, incoming, s.policy)
		if al.Fallback {
			outcome = "fallback"
			metrics.SyncFallbacks.WithLabelValues(al.Reason).Inc()
			s.logger.Warn("alignment rejected, falling back to clear-and-rewrite",
				"conversation_id", conversationID,
				"reason", al.Reason,
				"existing", len(existing),
				"incoming", len(incoming),
			)
			if err := s.clearAndRewrite(ctx, conversationID, incoming, &changes); err != nil {
				return err
			}
		} else {
			outcome = "diff"
			d := classify(existing, incoming, al)
			if err := s.applyDiff(ctx, conversationID, d, &changes); err != nil {
				return err
			}
		}

		if !changes.Empty() {
			if err := s.convRepo.Touch(ctx, conversationID); err != nil {
				return err
			}
		}

		result = &chatModels.SyncResult{ConversationID: conversationID, Operations: changes}
		return nil
	})
	if err != nil {
		metrics.SyncOperations.WithLabelValues("legacy_sync", "error").Inc()
		return nil, err
	}

	if result.Operations.Empty() {
		outcome = "noop"
	}
	metrics.SyncOperations.WithLabelValues("legacy_sync", outcome).Inc()

	s.logger.Info("legacy sync applied",
		"conversation_id", conversationID,
		"outcome", outcome,
		"inserted", len(result.Operations.Inserted),
		"updated", len(result.Operations.Updated),
		"deleted", len(result.Operations.Deleted),
	)

	return result, nil
}

// applyDiff applies a classified change-set. Updates land first, then tail
// deletion, then inserts, so freshly assigned sequence numbers never count a
// doomed tail.
func (s *Service) applyDiff(ctx context.Context, conversationID string, d *messageDiff, changes *chatModels.ChangeSet) error {
	for _, op := range d.updates {
		if op.content != nil {
			upd := &chatModels.MessageUpdate{Content: op.content}
			if _, err := s.messageRepo.Update(ctx, conversationID, op.existing.ID, upd); err != nil {
				return err
			}
		}
		if !op.toolDiff.Empty() {
			if err := s.messageRepo.ApplyToolDiff(ctx, op.existing.ServerID, op.toolDiff); err != nil {
				return err
			}
		}
		changes.Updated = append(changes.Updated, chatModels.Ref(op.existing))
		metrics.MessagesWritten.WithLabelValues("update").Inc()
	}

	if d.deleteAfterSeq >= 0 {
		deleted, err := s.messageRepo.DeleteAfter(ctx, conversationID, d.deleteAfterSeq)
		if err != nil {
			return err
		}
		for i := range deleted {
			changes.Deleted = append(changes.Deleted, chatModels.Ref(&deleted[i]))
		}
		metrics.MessagesWritten.WithLabelValues("delete").Add(float64(len(deleted)))
	}

	for i := range d.inserts {
		msg := messageFromIncoming(conversationID, &d.inserts[i])
		if err := s.messageRepo.Insert(ctx, msg); err != nil {
			return err
		}
		changes.Inserted = append(changes.Inserted, chatModels.Ref(msg))
		metrics.MessagesWritten.WithLabelValues("insert").Inc()
	}

	return nil
}

// clearAndRewrite discards the conversation's entire log and re-creates it
// from the incoming payload with fresh sequence numbers from 1. It is the
// single unconditional safety net: it cannot fail on alignment ambiguity,
// only on store errors.
func (s *Service) clearAndRewrite(ctx context.Context, conversationID string, incoming []chatModels.IncomingMessage, changes *chatModels.ChangeSet) error {
	deleted, err := s.messageRepo.DeleteAfter(ctx, conversationID, 0)
	if err != nil {
		return err
	}
	for i := range deleted {
		changes.Deleted = append(changes.Deleted, chatModels.Ref(&deleted[i]))
	}

	for i := range incoming {
		msg := messageFromIncoming(conversationID, &incoming[i])
		if err := s.messageRepo.Insert(ctx, msg); err != nil {
			return err
		}
		changes.Inserted = append(changes.Inserted, chatModels.Ref(msg))
	}

	metrics.MessagesWritten.WithLabelValues("rewrite").Add(float64(len(incoming)))
	return nil
}

// messageFromIncoming builds a storable message. The store fills in id (when
// the client omitted one), server id, and seq at insert time.
func messageFromIncoming(conversationID string, in *chatModels.IncomingMessage) *chatModels.Message {
	status := in.Status
	if status == "" {
		status = chatModels.StatusFinal
	}
	return &chatModels.Message{
		ID:             in.ID,
		ConversationID: conversationID,
		Role:           in.Role,
		Content:        in.Content,
		ToolCalls:      in.ToolCalls,
		ToolOutputs:    in.ToolOutputs,
		Status:         status,
	}
}

// Validation

func (s *Service) validateAppendRequest(req *chatSvc.AppendRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Messages, validation.Required, validation.Length(1, MaxBatchMessages)),
		validation.Field(&req.AfterMessageID, validation.Required.When(req.ConversationID != "")),
		validation.Field(&req.AfterSeq, validation.When(req.ConversationID != "", validation.Required, validation.Min(1))),
	)
	if err != nil {
		return err
	}

	if err := validateMessages(req.Messages); err != nil {
		return err
	}
	if req.ConversationID == "" && req.Messages[0].Role != chatModels.RoleUser {
		return fmt.Errorf("first message of a new conversation must have role %q", chatModels.RoleUser)
	}
	return nil
}

func (s *Service) validateEditRequest(req *chatSvc.EditRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.MessageID, validation.Required),
		validation.Field(&req.ExpectedSeq, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return err
	}
	if req.Content.IsZero() {
		return fmt.Errorf("content is required")
	}
	return nil
}

func (s *Service) validateIncoming(conversationID string, incoming []chatModels.IncomingMessage) error {
	if conversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}
	if len(incoming) > MaxBatchMessages {
		return fmt.Errorf("incoming list exceeds %d messages", MaxBatchMessages)
	}
	return validateMessages(incoming)
}

func validateMessages(messages []chatModels.IncomingMessage) error {
	for i := range messages {
		m := &messages[i]
		if !chatModels.ValidRole(m.Role) {
			return fmt.Errorf("messages[%d]: invalid role %q", i, m.Role)
		}
		if m.Content.IsZero() {
			return fmt.Errorf("messages[%d]: content is required", i)
		}
		switch m.Status {
		case "", chatModels.StatusDraft, chatModels.StatusStreaming, chatModels.StatusFinal, chatModels.StatusError:
		default:
			return fmt.Errorf("messages[%d]: invalid status %q", i, m.Status)
		}
		if (len(m.ToolCalls) > 0 || len(m.ToolOutputs) > 0) && m.Role != chatModels.RoleAssistant && m.Role != chatModels.RoleTool {
			return fmt.Errorf("messages[%d]: tool metadata requires role %q or %q", i, chatModels.RoleAssistant, chatModels.RoleTool)
		}
	}
	return nil
}
