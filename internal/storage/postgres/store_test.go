package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage/storetest"
)

// TestPostgresStore needs a disposable database; every table is truncated.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}

	reset := make(map[string]bool)
	storetest.Run(t, func(t *testing.T, dir string) interfaces.Store {
		ctx := context.Background()
		s, err := Open(ctx, dsn)
		require.NoError(t, err)
		if !reset[dir] {
			_, err = s.db.ExecContext(ctx, `TRUNCATE customer_accounts, customers, transactions, accounts;
				UPDATE ledger_sequence SET last = 0`)
			require.NoError(t, err)
			reset[dir] = true
		}
		return s
	}, true)
}
