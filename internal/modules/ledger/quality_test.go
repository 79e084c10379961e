package ledger

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityScan_FlagsOutlier(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	// Tight cluster of ordinary amounts plus one far outlier.
	var txs []Transaction
	for i := 0; i < 20; i++ {
		txs = append(txs, tx(t, fmt.Sprintf("2024-03-%02d", i+1), "-100", 1, "Acme", "rent"))
	}
	txs = append(txs, tx(t, "2024-03-25", "-1000000", 1, "Acme", "rent"))
	_, err := repo.InsertTransactions(txs, "batch-1")
	require.NoError(t, err)

	job := NewQualityScanJob(repo, zerolog.Nop())
	require.NoError(t, job.Run())

	counts, err := repo.QualityCounts(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.AnomalyCount)
}

func TestQualityScan_RefreshesUncategorized(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.InsertTransactions([]Transaction{
		tx(t, "2024-03-01", "100", 1, "Acme", ""),
		tx(t, "2024-03-02", "110", 1, "Acme", "sales"),
		tx(t, "2024-03-03", "90", 1, "Acme", "sales"),
	}, "batch-1")
	require.NoError(t, err)

	job := NewQualityScanJob(repo, zerolog.Nop())
	require.NoError(t, job.Run())

	counts, err := repo.QualityCounts(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.UncategorizedCount)
	assert.Equal(t, 0, counts.AnomalyCount)
}

func TestQualityScan_EmptyBook(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	job := NewQualityScanJob(repo, zerolog.Nop())
	require.NoError(t, job.Run())
}
