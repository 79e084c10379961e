package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one settled cash movement. Amounts are signed:
// positive for money in, negative for money out.
type Transaction struct {
	ID              int64           `json:"id,omitempty"`
	Date            string          `json:"date"` // YYYY-MM-DD
	Amount          decimal.Decimal `json:"amount"`
	EntityID        int64           `json:"entity_id"`
	Counterparty    string          `json:"counterparty"`
	Category        string          `json:"category"`
	IsAnomaly       bool            `json:"is_anomaly"`
	IsUncategorized bool            `json:"is_uncategorized"`
	BatchID         string          `json:"batch_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
}

// Planned document kinds.
const (
	KindReceivable = "receivable"
	KindPayable    = "payable"
)

// PlannedDocument is a confirmed future receivable or payable with a
// known payment date.
type PlannedDocument struct {
	ID           int64           `json:"id,omitempty"`
	Kind         string          `json:"kind"` // receivable | payable
	DueDate      string          `json:"due_date"`
	Amount       decimal.Decimal `json:"amount"` // always positive, kind carries direction
	EntityID     int64           `json:"entity_id"`
	Counterparty string          `json:"counterparty"`
}

// ARAPItem is one open receivable/payable line from the aging snapshot.
type ARAPItem struct {
	ID           int64           `json:"id,omitempty"`
	Type         string          `json:"type"` // AR | AP
	Counterparty string          `json:"counterparty"`
	Amount       decimal.Decimal `json:"amount"`
	OverdueDays  int             `json:"overdue_days"`
	EntityID     int64           `json:"entity_id"`
}

// Sale is a revenue fact used for concentration analysis.
type Sale struct {
	ID           int64           `json:"id,omitempty"`
	DocDate      string          `json:"doc_date"`
	Counterparty string          `json:"counterparty"`
	Revenue      decimal.Decimal `json:"revenue"`
	EntityID     int64           `json:"entity_id"`
}

// DailyFlow is the net cash movement of one calendar day.
type DailyFlow struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// AgingRow is the per-counterparty open receivables breakdown by
// overdue bucket.
type AgingRow struct {
	Counterparty  string          `json:"counterparty"`
	Total         decimal.Decimal `json:"total"`
	Current       decimal.Decimal `json:"current"`
	Overdue1To30  decimal.Decimal `json:"overdue_1_30"`
	Overdue31To60 decimal.Decimal `json:"overdue_31_60"`
	Overdue60Plus decimal.Decimal `json:"overdue_60_plus"`
}

// OverduePast30 returns the part of the row overdue by more than 30 days.
func (r AgingRow) OverduePast30() decimal.Decimal {
	return r.Overdue31To60.Add(r.Overdue60Plus)
}

// QualityCounts summarizes data-quality flags on the transaction set.
type QualityCounts struct {
	AnomalyCount       int     `json:"anomaly_count"`
	UncategorizedCount int     `json:"uncategorized_count"`
	TotalCount         int     `json:"total_count"`
	UncategorizedPct   float64 `json:"uncategorized_percentage"`
}

// CustomerRevenue is a counterparty's revenue total over a period.
type CustomerRevenue struct {
	Counterparty string          `json:"counterparty"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// PlannedTotal is the summed planned-payment amount of one due date.
type PlannedTotal struct {
	DueDate string          `json:"due_date"`
	Total   decimal.Decimal `json:"total"`
}
