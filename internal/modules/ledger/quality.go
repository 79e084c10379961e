package ledger

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/pkg/formulas"
)

// zScoreThreshold marks a transaction anomalous when its amount sits
// more than this many standard deviations from the book's mean.
const zScoreThreshold = 3.0

// QualityScanJob re-derives the is_anomaly and is_uncategorized flags
// over the whole transaction book. Scheduled nightly; the flags feed
// the anomaly risk assessment.
type QualityScanJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewQualityScanJob creates the nightly quality scan job.
func NewQualityScanJob(repo *Repository, log zerolog.Logger) *QualityScanJob {
	return &QualityScanJob{
		repo: repo,
		log:  log.With().Str("job", "quality_scan").Logger(),
	}
}

// Name returns the job name
func (j *QualityScanJob) Name() string {
	return "quality_scan"
}

// Run executes the quality scan
func (j *QualityScanJob) Run() error {
	txs, err := j.repo.GetTransactions(nil)
	if err != nil {
		return fmt.Errorf("quality scan failed to load transactions: %w", err)
	}
	if len(txs) == 0 {
		j.log.Debug().Msg("No transactions to scan")
		return nil
	}

	amounts := make([]decimal.Decimal, len(txs))
	for i, tx := range txs {
		amounts[i] = tx.Amount
	}
	mean, _ := formulas.Mean(amounts).Float64()
	stdDev := formulas.StdDev(amounts)

	flagged := 0
	for _, tx := range txs {
		anomaly := false
		if stdDev > 0 {
			value, _ := tx.Amount.Float64()
			anomaly = math.Abs(value-mean)/stdDev > zScoreThreshold
		}
		uncategorized := strings.TrimSpace(tx.Category) == ""

		if anomaly == tx.IsAnomaly && uncategorized == tx.IsUncategorized {
			continue
		}
		if err := j.repo.UpdateQualityFlags(tx.ID, anomaly, uncategorized); err != nil {
			return fmt.Errorf("quality scan failed to update flags: %w", err)
		}
		flagged++
	}

	j.log.Info().
		Int("scanned", len(txs)).
		Int("updated", flagged).
		Msg("Quality scan completed")
	return nil
}

// UpdateQualityFlags sets the data-quality flags of one transaction.
func (r *Repository) UpdateQualityFlags(id int64, anomaly, uncategorized bool) error {
	_, err := r.db.Exec(
		"UPDATE transactions SET is_anomaly = ?, is_uncategorized = ? WHERE id = ?",
		boolToInt(anomaly), boolToInt(uncategorized), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update quality flags: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
