package forecast

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/internal/modules/ledger"
)

// Gap severity classification by absolute shortfall.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Request describes one forecast invocation.
type Request struct {
	HorizonDays        int     `json:"horizon_days"`
	EntityIDs          []int64 `json:"entity_ids,omitempty"`
	IncludeUncertainty bool    `json:"include_uncertainty"`
}

// Point is one forecasted day. ProjectedBalance is populated by the
// balance projection stage, after the planned-payment overlay.
type Point struct {
	Date             string           `json:"date"` // YYYY-MM-DD
	ForecastedFlow   decimal.Decimal  `json:"forecasted_cf"`
	LowerBound       *decimal.Decimal `json:"lower_bound,omitempty"`
	UpperBound       *decimal.Decimal `json:"upper_bound,omitempty"`
	Confidence       *float64         `json:"confidence,omitempty"`
	ProjectedBalance decimal.Decimal  `json:"projected_balance"`
}

// CashGap is a forecast day whose projected balance is negative.
type CashGap struct {
	Date             string          `json:"date"`
	ProjectedBalance decimal.Decimal `json:"projected_balance"`
	GapAmount        decimal.Decimal `json:"gap_amount"`
	Severity         string          `json:"severity"`
}

// Result is the full forecast output.
type Result struct {
	Points         []Point         `json:"forecast_points"`
	Gaps           []CashGap       `json:"cash_gaps"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	EndBalance     decimal.Decimal `json:"forecasted_balance_end"`
}

// DataSource is the read-only slice of the ledger the forecast consumes.
// Satisfied by *ledger.Repository; tests supply fakes.
type DataSource interface {
	DailyNetFlow(start, end time.Time, entityIDs []int64) ([]ledger.DailyFlow, error)
	CurrentBalance(entityIDs []int64) (decimal.Decimal, error)
	PlannedReceivables(start, end time.Time, entityIDs []int64) (map[string]decimal.Decimal, error)
	PlannedPayables(start, end time.Time, entityIDs []int64) (map[string]decimal.Decimal, error)
}
