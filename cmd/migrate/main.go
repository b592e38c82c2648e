package main

import (
	"context"
	"flag"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"cadence/internal/config"
	"cadence/internal/repository/postgres"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before creating the schema (fresh start)")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: never drop tables in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: --drop-tables is not allowed in the prod environment")
	}

	log.Printf("Setting up schema (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("Tables dropped")
	}

	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("Schema ready")
}

func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
		return err
	}

	createConversations := `
		CREATE TABLE IF NOT EXISTS ` + tables.Conversations + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			owner_id UUID NOT NULL,
			parent_conversation_id UUID REFERENCES ` + tables.Conversations + `(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createConversations); err != nil {
		return err
	}

	createMessages := `
		CREATE TABLE IF NOT EXISTS ` + tables.Messages + ` (
			server_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			id UUID NOT NULL DEFAULT uuid_generate_v4(),
			conversation_id UUID NOT NULL REFERENCES ` + tables.Conversations + `(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content JSONB NOT NULL,
			status TEXT NOT NULL DEFAULT 'final',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(conversation_id, id),
			UNIQUE(conversation_id, seq)
		)
	`
	if _, err := pool.Exec(ctx, createMessages); err != nil {
		return err
	}

	createToolCalls := `
		CREATE TABLE IF NOT EXISTS ` + tables.ToolCalls + ` (
			message_server_id BIGINT NOT NULL REFERENCES ` + tables.Messages + `(server_id) ON DELETE CASCADE,
			call_id TEXT NOT NULL,
			call_index INTEGER NOT NULL,
			name TEXT NOT NULL,
			input JSONB,
			PRIMARY KEY (message_server_id, call_id)
		)
	`
	if _, err := pool.Exec(ctx, createToolCalls); err != nil {
		return err
	}

	createToolOutputs := `
		CREATE TABLE IF NOT EXISTS ` + tables.ToolOutputs + ` (
			message_server_id BIGINT NOT NULL REFERENCES ` + tables.Messages + `(server_id) ON DELETE CASCADE,
			call_id TEXT NOT NULL,
			call_index INTEGER NOT NULL,
			result JSONB,
			is_error BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (message_server_id, call_id)
		)
	`
	if _, err := pool.Exec(ctx, createToolOutputs); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `conversations_owner ON ` + tables.Conversations + `(owner_id) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `messages_conversation_seq ON ` + tables.Messages + `(conversation_id, seq)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `messages_id ON ` + tables.Messages + `(id)`,
	}
	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys).
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.ToolOutputs,
		tables.ToolCalls,
		tables.Messages,
		tables.Conversations,
	}
	for _, table := range tableNames {
		if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS `+table+` CASCADE`); err != nil {
			return err
		}
	}
	return nil
}
