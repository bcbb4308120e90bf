package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/storage/memory"
	"github.com/bobmcallan/stacker/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendSurrealDB = "surrealdb"
	BackendMemory    = "memory"
)

// NewStorageManager creates a storage manager for the configured backend.
// Supported backends: "surrealdb" (default), "memory".
func NewStorageManager(ctx context.Context, logger *common.Logger, config *common.Config) (*Manager, error) {
	backend := config.Storage.Backend
	if backend == "" {
		backend = BackendSurrealDB
	}

	switch backend {
	case BackendSurrealDB:
		db, err := surrealdb.Connect(ctx, config.Storage, logger)
		if err != nil {
			return nil, err
		}
		store := surrealdb.NewUserStore(db, logger)
		return NewManager(store, logger, func() error {
			return db.Close(context.Background())
		}), nil

	case BackendMemory:
		logger.Warn().Msg("Using in-memory storage; records are lost on exit")
		return NewManager(memory.NewStore(), logger, nil), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: surrealdb, memory)", backend)
	}
}
