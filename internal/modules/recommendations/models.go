package recommendations

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/internal/modules/forecast"
	"github.com/fincast/fincast/internal/modules/ledger"
)

// Recommendation categories, in generation order.
const (
	CategoryCashGap        = "cash_gap"
	CategoryARCollection   = "ar_collection"
	CategoryExpenseControl = "expense_control"
	CategoryConcentration  = "concentration"
)

// Message carries the template id and structured parameters a locale
// catalog renders the human-readable texts from. The computation never
// embeds natural language directly.
type Message struct {
	Template string            `json:"template"`
	Params   map[string]string `json:"params"`
}

// Recommendation is one prioritized, explained action item. Produced
// fresh on every invocation; never persisted.
type Recommendation struct {
	ID             string  `json:"id"`
	Action         string  `json:"action"`
	Basis          string  `json:"basis"`
	ExpectedEffect string  `json:"expected_effect"`
	Risk           string  `json:"risk"`
	Deadline       *string `json:"deadline,omitempty"` // YYYY-MM-DD
	Priority       int     `json:"priority"`           // 1-10
	Category       string  `json:"category"`
	Message        Message `json:"message"`
}

// Result is the ordered recommendation list.
type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	TotalCount      int              `json:"total_count"`
}

// DataSource is the read-only slice of the ledger the generators consume.
// Satisfied by *ledger.Repository.
type DataSource interface {
	PayableTotalsDueBy(start, end time.Time, entityIDs []int64) ([]ledger.PlannedTotal, error)
	ReceivablesAging(entityIDs []int64) ([]ledger.AgingRow, error)
	OutflowTotal(start, end time.Time, entityIDs []int64) (decimal.Decimal, error)
	TopCustomersByRevenue(start, end time.Time, entityIDs []int64, n int) ([]ledger.CustomerRevenue, error)
	TotalRevenue(start, end time.Time, entityIDs []int64) (decimal.Decimal, error)
}

// Forecaster supplies the cash gaps the deferral generator works from.
// Satisfied by *forecast.Engine.
type Forecaster interface {
	Forecast(asOf time.Time, req forecast.Request) (*forecast.Result, error)
}
