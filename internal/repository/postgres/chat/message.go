package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cadence/internal/domain"
	chatModels "cadence/internal/domain/models/chat"
	chatRepo "cadence/internal/domain/repositories/chat"
	"cadence/internal/repository/postgres"
)

// PostgresMessageRepository implements the MessageRepository interface using PostgreSQL.
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new PostgresMessageRepository.
func NewMessageRepository(config *postgres.RepositoryConfig) chatRepo.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// scanner is implemented by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanMessageRow scans a base message row. Tool metadata is loaded separately.
func scanMessageRow(row scanner) (*chatModels.Message, error) {
	var msg chatModels.Message
	var content []byte
	err := row.Scan(
		&msg.ServerID,
		&msg.ID,
		&msg.ConversationID,
		&msg.Seq,
		&msg.Role,
		&content,
		&msg.Status,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &msg.Content); err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
	}
	return &msg, nil
}

const messageColumns = "server_id, id, conversation_id, seq, role, content, status, created_at, updated_at"

// Insert stores a message, assigning seq = max(seq)+1 within the conversation.
// The subselect and the insert run in the same statement, so the sequence
// counter cannot race as long as the caller holds the conversation lock.
func (r *PostgresMessageRepository) Insert(ctx context.Context, msg *chatModels.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = chatModels.StatusFinal
	}

	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, seq, role, content, status, created_at, updated_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(seq), 0) + 1 FROM %s WHERE conversation_id = $2), $3, $4, $5, now(), now())
		RETURNING server_id, seq, created_at, updated_at
	`, r.tables.Messages, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	err = executor.QueryRow(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.Role,
		content,
		msg.Status,
	).Scan(&msg.ServerID, &msg.Seq, &msg.CreatedAt, &msg.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("message %s in conversation %s: %w", msg.ID, msg.ConversationID, domain.ErrConflict)
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("conversation %s: %w", msg.ConversationID, domain.ErrConversationNotFound)
		}
		return fmt.Errorf("insert message: %w", err)
	}

	if len(msg.ToolCalls) > 0 || len(msg.ToolOutputs) > 0 {
		if err := r.insertToolCalls(ctx, msg.ServerID, msg.ToolCalls); err != nil {
			return err
		}
		if err := r.insertToolOutputs(ctx, msg.ServerID, msg.ToolOutputs); err != nil {
			return err
		}
	}

	return nil
}

// Update mutates a message's content and/or status in place. Seq and id are
// never touched. NULL parameters leave the corresponding column unchanged.
func (r *PostgresMessageRepository) Update(ctx context.Context, conversationID, id string, upd *chatModels.MessageUpdate) (*chatModels.Message, error) {
	var content []byte
	if upd.Content != nil {
		var err error
		content, err = json.Marshal(*upd.Content)
		if err != nil {
			return nil, fmt.Errorf("encode content: %w", err)
		}
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = COALESCE($1, content),
		    status = COALESCE($2, status),
		    updated_at = now()
		WHERE conversation_id = $3 AND id = $4
		RETURNING %s
	`, r.tables.Messages, messageColumns)

	executor := postgres.GetExecutor(ctx, r.pool)
	msg, err := scanMessageRow(executor.QueryRow(ctx, query, content, upd.Status, conversationID, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("message %s: %w", id, domain.ErrMessageNotFound)
		}
		return nil, fmt.Errorf("update message: %w", err)
	}

	return msg, nil
}

// UpdateStatus transitions a message's lifecycle status.
func (r *PostgresMessageRepository) UpdateStatus(ctx context.Context, conversationID, id, status string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, updated_at = now()
		WHERE conversation_id = $2 AND id = $3
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, status, conversationID, id)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", id, domain.ErrMessageNotFound)
	}
	return nil
}

// DeleteAfter removes the tail strictly above seq and returns the deleted
// rows in seq order, tool metadata included, so callers can fork them.
func (r *PostgresMessageRepository) DeleteAfter(ctx context.Context, conversationID string, seq int) ([]chatModels.Message, error) {
	executor := postgres.GetExecutor(ctx, r.pool)

	// Load the doomed rows first: tool children cascade on delete, and the
	// forker needs them intact.
	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE conversation_id = $1 AND seq > $2
		ORDER BY seq
	`, messageColumns, r.tables.Messages)

	rows, err := executor.Query(ctx, selectQuery, conversationID, seq)
	if err != nil {
		return nil, fmt.Errorf("select tail: %w", err)
	}
	doomed, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	if len(doomed) == 0 {
		return []chatModels.Message{}, nil
	}

	if err := r.attachToolData(ctx, doomed); err != nil {
		return nil, err
	}

	deleteQuery := fmt.Sprintf(`
		DELETE FROM %s WHERE conversation_id = $1 AND seq > $2
	`, r.tables.Messages)

	if _, err := executor.Exec(ctx, deleteQuery, conversationID, seq); err != nil {
		return nil, fmt.Errorf("delete tail: %w", err)
	}

	return doomed, nil
}

// ListAll returns the conversation's full log ordered by seq ascending.
func (r *PostgresMessageRepository) ListAll(ctx context.Context, conversationID string) ([]chatModels.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE conversation_id = $1
		ORDER BY seq
	`, messageColumns, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachToolData(ctx, messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetByID loads one message by its client-stable id.
func (r *PostgresMessageRepository) GetByID(ctx context.Context, id string) (*chatModels.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, messageColumns, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	msg, err := scanMessageRow(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("message %s: %w", id, domain.ErrMessageNotFound)
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	msgs := []chatModels.Message{*msg}
	if err := r.attachToolData(ctx, msgs); err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// MaxSeq returns the highest sequence number in the conversation, 0 when empty.
func (r *PostgresMessageRepository) MaxSeq(ctx context.Context, conversationID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(seq), 0) FROM %s WHERE conversation_id = $1
	`, r.tables.Messages)

	var maxSeq int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, conversationID).Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return maxSeq, nil
}

func collectMessages(rows pgx.Rows) ([]chatModels.Message, error) {
	defer rows.Close()

	var messages []chatModels.Message
	for rows.Next() {
		msg, err := scanMessageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	if messages == nil {
		messages = []chatModels.Message{}
	}
	return messages, nil
}
