package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"cadence/internal/domain"
	chatModels "cadence/internal/domain/models/chat"
	chatRepo "cadence/internal/domain/repositories/chat"
	"cadence/internal/repository/postgres"
)

// PostgresConversationRepository implements the ConversationRepository interface using PostgreSQL.
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewConversationRepository creates a new PostgresConversationRepository.
func NewConversationRepository(config *postgres.RepositoryConfig) chatRepo.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create stores a new conversation.
func (r *PostgresConversationRepository) Create(ctx context.Context, conv *chatModels.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, parent_conversation_id, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING created_at, updated_at
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		conv.ID,
		conv.OwnerID,
		conv.ParentConversationID,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("conversation %s: %w", conv.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create conversation: %w", err)
	}

	return nil
}

// Get loads a live conversation by id.
func (r *PostgresConversationRepository) Get(ctx context.Context, id string) (*chatModels.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, parent_conversation_id, created_at, updated_at, deleted_at
		FROM %s
		WHERE id = $1 AND deleted_at IS NULL
	`, r.tables.Conversations)

	var conv chatModels.Conversation
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.OwnerID,
		&conv.ParentConversationID,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&conv.DeletedAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrConversationNotFound)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return &conv, nil
}

// ListByOwner returns the owner's live conversations, newest first.
func (r *PostgresConversationRepository) ListByOwner(ctx context.Context, ownerID string) ([]chatModels.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, parent_conversation_id, created_at, updated_at, deleted_at
		FROM %s
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []chatModels.Conversation
	for rows.Next() {
		var conv chatModels.Conversation
		err := rows.Scan(
			&conv.ID,
			&conv.OwnerID,
			&conv.ParentConversationID,
			&conv.CreatedAt,
			&conv.UpdatedAt,
			&conv.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	if convs == nil {
		convs = []chatModels.Conversation{}
	}
	return convs, nil
}

// SoftDelete marks a conversation deleted.
func (r *PostgresConversationRepository) SoftDelete(ctx context.Context, id, ownerID string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrConversationNotFound)
	}
	return nil
}

// CheckOwnership reports whether ownerID owns the live conversation.
func (r *PostgresConversationRepository) CheckOwnership(ctx context.Context, id, ownerID string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL)
	`, r.tables.Conversations)

	var owns bool
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, id, ownerID).Scan(&owns); err != nil {
		return false, fmt.Errorf("check ownership: %w", err)
	}
	return owns, nil
}

// Lock takes the conversation's row lock for the duration of the ambient
// transaction. Two mutations of the same conversation serialize here; other
// conversations are unaffected.
func (r *PostgresConversationRepository) Lock(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		SELECT id FROM %s WHERE id = $1 FOR UPDATE
	`, r.tables.Conversations)

	var locked string
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, id).Scan(&locked); err != nil {
		if postgres.IsPgNoRowsError(err) {
			return fmt.Errorf("conversation %s: %w", id, domain.ErrConversationNotFound)
		}
		return fmt.Errorf("lock conversation: %w", err)
	}
	return nil
}

// Touch bumps updated_at.
func (r *PostgresConversationRepository) Touch(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET updated_at = now() WHERE id = $1
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
