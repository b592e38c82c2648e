package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cadence/internal/domain/repositories"
)

// RepositoryConfig holds the shared dependencies of repository implementations.
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds environment-prefixed table names so dev/test/prod share a
// database without sharing rows.
type TableNames struct {
	Conversations string
	Messages      string
	ToolCalls     string
	ToolOutputs   string
}

// NewTableNames creates table names with the given prefix.
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Conversations: fmt.Sprintf("%sconversations", prefix),
		Messages:      fmt.Sprintf("%smessages", prefix),
		ToolCalls:     fmt.Sprintf("%stool_calls", prefix),
		ToolOutputs:   fmt.Sprintf("%stool_outputs", prefix),
	}
}

// CreateConnectionPool creates a pgx connection pool and verifies connectivity.
//
// When the connection targets a transaction pooler (port 6543) the default
// prepared-statement cache breaks ("prepared statement already exists"), so
// cache_describe mode is selected: it still uses the extended protocol (needed
// for JSONB parameter encoding) but caches descriptions, not statements. An
// explicit default_query_exec_mode in the connection string takes precedence.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for transaction pooler", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction from the context when one is open,
// otherwise the pool. Repositories call this on every query so they
// automatically participate in an ambient transaction.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
