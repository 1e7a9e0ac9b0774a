// Package storage picks the Store backend named by the configuration.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/config"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/flatfile"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/lsm"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/postgres"
)

func Open(ctx context.Context, cfg *config.Config) (interfaces.Store, error) {
	switch cfg.Backend {
	case config.BackendFlatFile:
		return flatfile.Open(cfg.DataDir)
	case config.BackendPebble:
		return lsm.Open(filepath.Join(cfg.DataDir, "pebble"))
	case config.BackendMemory:
		return memory.NewMemoryStore(), nil
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
