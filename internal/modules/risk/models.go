package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/internal/modules/forecast"
	"github.com/fincast/fincast/internal/modules/ledger"
)

// Level is an ordinal risk classification.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Rank returns the ordinal value used to combine levels (low < medium < high).
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	}
	return 0
}

func maxLevel(levels ...Level) Level {
	max := LevelLow
	for _, l := range levels {
		if l.Rank() > max.Rank() {
			max = l
		}
	}
	return max
}

// CashAssessment measures liquidity runway and forecasted gap exposure.
type CashAssessment struct {
	DaysOfCash       float64  `json:"days_of_cash"`
	ProbabilityOfGap float64  `json:"probability_of_gap"`
	RiskLevel        Level    `json:"risk_level"`
	Indicators       []string `json:"indicators"`
}

// CounterpartyAssessment measures receivables health and concentration.
type CounterpartyAssessment struct {
	OverduePercentage float64  `json:"overdue_ar_percentage"`
	ConcentrationTop3 float64  `json:"concentration_top3"`
	RiskLevel         Level    `json:"risk_level"`
	Indicators        []string `json:"indicators"`
}

// AnomalyAssessment measures data-quality signals from ingestion.
type AnomalyAssessment struct {
	AnomalyCount            int      `json:"anomaly_count"`
	UncategorizedPercentage float64  `json:"uncategorized_percentage"`
	RiskLevel               Level    `json:"risk_level"`
	Indicators              []string `json:"indicators"`
}

// ScoreDetails is the numeric breakdown of the three sub-levels.
type ScoreDetails struct {
	CashRiskScore         int `json:"cash_risk_score"`
	CounterpartyRiskScore int `json:"counterparty_risk_score"`
	AnomalyRiskScore      int `json:"anomaly_risk_score"`
}

// Score is the combined risk assessment.
type Score struct {
	OverallRisk      Level                  `json:"overall_risk"`
	CashRisk         CashAssessment         `json:"cash_risk"`
	CounterpartyRisk CounterpartyAssessment `json:"counterparty_risk"`
	AnomalyRisk      AnomalyAssessment      `json:"anomaly_risk"`
	ScoreDetails     ScoreDetails           `json:"score_details"`
}

// DataSource is the read-only slice of the ledger the scorer consumes.
// Satisfied by *ledger.Repository.
type DataSource interface {
	CurrentBalance(entityIDs []int64) (decimal.Decimal, error)
	DailyNetFlow(start, end time.Time, entityIDs []int64) ([]ledger.DailyFlow, error)
	ReceivablesAging(entityIDs []int64) ([]ledger.AgingRow, error)
	QualityCounts(entityIDs []int64) (ledger.QualityCounts, error)
}

// Forecaster runs the forecast pipeline for the gap-probability signal.
// Satisfied by *forecast.Engine.
type Forecaster interface {
	Forecast(asOf time.Time, req forecast.Request) (*forecast.Result, error)
}
