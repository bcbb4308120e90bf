package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/surrealdb/surrealdb.go"
)

// tables lists every table the stores query; SurrealDB v3 errors on
// querying tables that were never defined.
var tables = []string{"user_data"}

// Connect opens a SurrealDB connection, signs in and selects the configured
// namespace and database.
func Connect(ctx context.Context, cfg common.StorageConfig, logger *common.Logger) (*surrealdb.DB, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineTables(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB connected")

	return db, nil
}

func defineTables(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}

func isAlreadyExistsError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
