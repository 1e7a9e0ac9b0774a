package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var keys = []string{"LEDGER_BACKEND", "LEDGER_DATA_DIR", "DATABASE_URL", "KAFKA_BROKERS", "KAFKA_TOPIC", "LOG_LEVEL"}

// clearEnv unsets every key for the test and restores it afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		prev, had := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if had {
				os.Setenv(key, prev)
			} else {
				os.Unsetenv(key)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, BackendFlatFile, cfg.Backend)
	require.Equal(t, "data", cfg.DataDir)
	require.Equal(t, "transaction_completed", cfg.KafkaTopic)
	require.Empty(t, cfg.Brokers())
	require.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_BACKEND", "Pebble")
	t.Setenv("LEDGER_DATA_DIR", "/var/lib/ledger")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, BackendPebble, cfg.Backend)
	require.Equal(t, "/var/lib/ledger", cfg.DataDir)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	require.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEDGER_BACKEND=memory\nLOG_LEVEL=warn\n"), 0o644))
	// The environment still wins over the file.
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.Backend)
	require.Equal(t, slog.LevelError, cfg.SlogLevel())
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_BACKEND", "postgres")
	_, err := LoadConfig(t.TempDir())
	require.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("LEDGER_BACKEND", "sqlite")
	_, err = LoadConfig(t.TempDir())
	require.ErrorContains(t, err, "unknown LEDGER_BACKEND")
}
