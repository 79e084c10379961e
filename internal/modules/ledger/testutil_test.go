package ledger

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory database with the ledger schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, InitSchema(db))

	t.Cleanup(func() { db.Close() })
	return db
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func tx(t *testing.T, date, amount string, entityID int64, counterparty, category string) Transaction {
	t.Helper()
	return Transaction{
		Date:         date,
		Amount:       dec(t, amount),
		EntityID:     entityID,
		Counterparty: counterparty,
		Category:     category,
	}
}
