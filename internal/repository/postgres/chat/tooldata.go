package chat

import (
	"context"
	"fmt"

	chatModels "cadence/internal/domain/models/chat"
	"cadence/internal/repository/postgres"
)

// insertToolCalls batch-inserts tool calls for one message.
func (r *PostgresMessageRepository) insertToolCalls(ctx context.Context, serverID int64, calls []chatModels.ToolCall) error {
	if len(calls) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (message_server_id, call_id, call_index, name, input)
		VALUES
	`, r.tables.ToolCalls)

	args := make([]interface{}, 0, len(calls)*5)
	for i, call := range calls {
		if i > 0 {
			query += ","
		}
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", i*5+1, i*5+2, i*5+3, i*5+4, i*5+5)
		args = append(args, serverID, call.CallID, call.CallIndex, call.Name, []byte(call.Input))
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert tool calls: %w", err)
	}
	return nil
}

// insertToolOutputs batch-inserts tool outputs for one message.
func (r *PostgresMessageRepository) insertToolOutputs(ctx context.Context, serverID int64, outputs []chatModels.ToolOutput) error {
	if len(outputs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (message_server_id, call_id, call_index, result, is_error)
		VALUES
	`, r.tables.ToolOutputs)

	args := make([]interface{}, 0, len(outputs)*5)
	for i, out := range outputs {
		if i > 0 {
			query += ","
		}
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", i*5+1, i*5+2, i*5+3, i*5+4, i*5+5)
		args = append(args, serverID, out.CallID, out.CallIndex, []byte(out.Result), out.IsError)
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert tool outputs: %w", err)
	}
	return nil
}

// attachToolData batch-loads tool calls and outputs for the given messages in
// two queries, avoiding N+1 loads on long conversations.
func (r *PostgresMessageRepository) attachToolData(ctx context.Context, messages []chatModels.Message) error {
	if len(messages) == 0 {
		return nil
	}

	serverIDs := make([]int64, len(messages))
	byServerID := make(map[int64]*chatModels.Message, len(messages))
	for i := range messages {
		serverIDs[i] = messages[i].ServerID
		byServerID[messages[i].ServerID] = &messages[i]
	}

	executor := postgres.GetExecutor(ctx, r.pool)

	callsQuery := fmt.Sprintf(`
		SELECT message_server_id, call_id, call_index, name, input
		FROM %s
		WHERE message_server_id = ANY($1)
		ORDER BY message_server_id, call_index
	`, r.tables.ToolCalls)

	rows, err := executor.Query(ctx, callsQuery, serverIDs)
	if err != nil {
		return fmt.Errorf("get tool calls: %w", err)
	}
	for rows.Next() {
		var serverID int64
		var call chatModels.ToolCall
		var input []byte
		if err := rows.Scan(&serverID, &call.CallID, &call.CallIndex, &call.Name, &input); err != nil {
			rows.Close()
			return fmt.Errorf("scan tool call: %w", err)
		}
		call.Input = input
		if msg, ok := byServerID[serverID]; ok {
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tool calls: %w", err)
	}

	outputsQuery := fmt.Sprintf(`
		SELECT message_server_id, call_id, call_index, result, is_error
		FROM %s
		WHERE message_server_id = ANY($1)
		ORDER BY message_server_id, call_index
	`, r.tables.ToolOutputs)

	rows, err = executor.Query(ctx, outputsQuery, serverIDs)
	if err != nil {
		return fmt.Errorf("get tool outputs: %w", err)
	}
	for rows.Next() {
		var serverID int64
		var out chatModels.ToolOutput
		var result []byte
		if err := rows.Scan(&serverID, &out.CallID, &out.CallIndex, &result, &out.IsError); err != nil {
			rows.Close()
			return fmt.Errorf("scan tool output: %w", err)
		}
		out.Result = result
		if msg, ok := byServerID[serverID]; ok {
			msg.ToolOutputs = append(msg.ToolOutputs, out)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tool outputs: %w", err)
	}

	return nil
}

// ApplyToolDiff applies a minimal tool-metadata change-set to one message.
// ReplaceAll drops and rewrites both child tables for the message; otherwise
// the granular insert/update/delete lists are applied as-is.
func (r *PostgresMessageRepository) ApplyToolDiff(ctx context.Context, serverID int64, diff *chatModels.ToolDiff) error {
	if diff.Empty() {
		return nil
	}

	executor := postgres.GetExecutor(ctx, r.pool)

	if diff.ReplaceAll {
		for _, table := range []string{r.tables.ToolCalls, r.tables.ToolOutputs} {
			query := fmt.Sprintf(`DELETE FROM %s WHERE message_server_id = $1`, table)
			if _, err := executor.Exec(ctx, query, serverID); err != nil {
				return fmt.Errorf("clear tool data: %w", err)
			}
		}
		if err := r.insertToolCalls(ctx, serverID, diff.Calls); err != nil {
			return err
		}
		return r.insertToolOutputs(ctx, serverID, diff.Outputs)
	}

	if len(diff.CallIDsToDelete) > 0 {
		query := fmt.Sprintf(`DELETE FROM %s WHERE message_server_id = $1 AND call_id = ANY($2)`, r.tables.ToolCalls)
		if _, err := executor.Exec(ctx, query, serverID, diff.CallIDsToDelete); err != nil {
			return fmt.Errorf("delete tool calls: %w", err)
		}
	}
	for _, call := range diff.CallsToUpdate {
		query := fmt.Sprintf(`
			UPDATE %s SET call_index = $1, name = $2, input = $3
			WHERE message_server_id = $4 AND call_id = $5
		`, r.tables.ToolCalls)
		if _, err := executor.Exec(ctx, query, call.CallIndex, call.Name, []byte(call.Input), serverID, call.CallID); err != nil {
			return fmt.Errorf("update tool call: %w", err)
		}
	}
	if err := r.insertToolCalls(ctx, serverID, diff.CallsToInsert); err != nil {
		return err
	}

	if len(diff.OutputIDsToDelete) > 0 {
		query := fmt.Sprintf(`DELETE FROM %s WHERE message_server_id = $1 AND call_id = ANY($2)`, r.tables.ToolOutputs)
		if _, err := executor.Exec(ctx, query, serverID, diff.OutputIDsToDelete); err != nil {
			return fmt.Errorf("delete tool outputs: %w", err)
		}
	}
	for _, out := range diff.OutputsToUpdate {
		query := fmt.Sprintf(`
			UPDATE %s SET call_index = $1, result = $2, is_error = $3
			WHERE message_server_id = $4 AND call_id = $5
		`, r.tables.ToolOutputs)
		if _, err := executor.Exec(ctx, query, out.CallIndex, []byte(out.Result), out.IsError, serverID, out.CallID); err != nil {
			return fmt.Errorf("update tool output: %w", err)
		}
	}
	return r.insertToolOutputs(ctx, serverID, diff.OutputsToInsert)
}
