package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/config"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/flatfile"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/lsm"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/memory"
)

func TestOpenPicksBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, &config.Config{Backend: config.BackendFlatFile, DataDir: dir})
	require.NoError(t, err)
	require.IsType(t, &flatfile.FileStore{}, s)
	_, err = os.Stat(filepath.Join(dir, flatfile.AccountsFile))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, &config.Config{Backend: config.BackendPebble, DataDir: dir})
	require.NoError(t, err)
	require.IsType(t, &lsm.Store{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, &config.Config{Backend: config.BackendMemory})
	require.NoError(t, err)
	require.IsType(t, &memory.MemoryStore{}, s)

	_, err = Open(ctx, &config.Config{Backend: "tape"})
	require.Error(t, err)
}
