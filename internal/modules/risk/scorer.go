package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/internal/modules/forecast"
	"github.com/fincast/fincast/pkg/formulas"
)

const (
	outflowWindowDays  = 30
	gapForecastHorizon = 30

	// unboundedRunwayDays is the sentinel when there is no outflow to
	// burn the balance down.
	unboundedRunwayDays = 999.0

	daysOfCashHigh   = 7
	daysOfCashMedium = 14
	gapProbHigh      = 0.3
	gapProbMedium    = 0.1

	overduePctHigh      = 30.0
	overduePctMedium    = 15.0
	concentrationHigh   = 70.0
	concentrationMedium = 50.0

	anomalyCountHigh    = 10
	anomalyCountMedium  = 5
	uncategorizedHigh   = 10.0
	uncategorizedMedium = 5.0
)

// Scorer computes the three risk sub-assessments and the combined
// level. Each assessment reads point-in-time aggregates; the cash
// assessment additionally re-runs a 30-day forecast for the gap
// probability signal.
type Scorer struct {
	source     DataSource
	forecaster Forecaster
	log        zerolog.Logger
}

// NewScorer creates a new risk scorer
func NewScorer(source DataSource, forecaster Forecaster, log zerolog.Logger) *Scorer {
	return &Scorer{
		source:     source,
		forecaster: forecaster,
		log:        log.With().Str("component", "risk").Logger(),
	}
}

// Score computes the full risk assessment as of the given date.
func (s *Scorer) Score(asOf time.Time, entityIDs []int64) (*Score, error) {
	cash, err := s.cashRisk(asOf, entityIDs)
	if err != nil {
		return nil, err
	}
	counterparty, err := s.counterpartyRisk(entityIDs)
	if err != nil {
		return nil, err
	}
	anomaly, err := s.anomalyRisk(entityIDs)
	if err != nil {
		return nil, err
	}

	return &Score{
		OverallRisk:      maxLevel(cash.RiskLevel, counterparty.RiskLevel, anomaly.RiskLevel),
		CashRisk:         cash,
		CounterpartyRisk: counterparty,
		AnomalyRisk:      anomaly,
		ScoreDetails: ScoreDetails{
			CashRiskScore:         cash.RiskLevel.Rank(),
			CounterpartyRiskScore: counterparty.RiskLevel.Rank(),
			AnomalyRiskScore:      anomaly.RiskLevel.Rank(),
		},
	}, nil
}

func (s *Scorer) cashRisk(asOf time.Time, entityIDs []int64) (CashAssessment, error) {
	balance, err := s.source.CurrentBalance(entityIDs)
	if err != nil {
		return CashAssessment{}, fmt.Errorf("failed to read current balance: %w", err)
	}

	flows, err := s.source.DailyNetFlow(asOf.AddDate(0, 0, -outflowWindowDays), asOf, entityIDs)
	if err != nil {
		return CashAssessment{}, fmt.Errorf("failed to read daily net flow: %w", err)
	}

	var outflows []decimal.Decimal
	for _, f := range flows {
		if f.Amount.IsNegative() {
			outflows = append(outflows, f.Amount.Abs())
		}
	}
	avgOutflow := formulas.Mean(outflows)

	daysOfCash := unboundedRunwayDays
	if avgOutflow.IsPositive() {
		daysOfCash, _ = balance.Div(avgOutflow).Float64()
	}

	forecastResult, err := s.forecaster.Forecast(asOf, forecast.Request{
		HorizonDays: gapForecastHorizon,
		EntityIDs:   entityIDs,
	})
	if err != nil {
		return CashAssessment{}, fmt.Errorf("failed to run gap forecast: %w", err)
	}
	probabilityOfGap := float64(len(forecastResult.Gaps)) / float64(gapForecastHorizon)

	level := LevelLow
	switch {
	case daysOfCash < daysOfCashHigh || probabilityOfGap > gapProbHigh:
		level = LevelHigh
	case daysOfCash < daysOfCashMedium || probabilityOfGap > gapProbMedium:
		level = LevelMedium
	}

	indicators := []string{}
	if daysOfCash < daysOfCashMedium {
		indicators = append(indicators, fmt.Sprintf("Low cash runway: %.1f days", daysOfCash))
	}
	if probabilityOfGap > gapProbMedium {
		indicators = append(indicators, fmt.Sprintf("High probability of cash gap: %.1f%%", probabilityOfGap*100))
	}
	if balance.IsNegative() {
		indicators = append(indicators, "Negative current balance")
	}

	return CashAssessment{
		DaysOfCash:       daysOfCash,
		ProbabilityOfGap: probabilityOfGap,
		RiskLevel:        level,
		Indicators:       indicators,
	}, nil
}

func (s *Scorer) counterpartyRisk(entityIDs []int64) (CounterpartyAssessment, error) {
	aging, err := s.source.ReceivablesAging(entityIDs)
	if err != nil {
		return CounterpartyAssessment{}, fmt.Errorf("failed to read receivables aging: %w", err)
	}

	totalAR := decimal.Zero
	overdueAR := decimal.Zero
	for _, row := range aging {
		totalAR = totalAR.Add(row.Total)
		overdueAR = overdueAR.Add(row.OverduePast30())
	}

	overduePct := 0.0
	concentration := 0.0
	if totalAR.IsPositive() {
		overduePct, _ = overdueAR.Div(totalAR).Mul(decimal.NewFromInt(100)).Float64()

		sorted := make([]int, len(aging))
		for i := range sorted {
			sorted[i] = i
		}
		sort.Slice(sorted, func(a, b int) bool {
			ra, rb := aging[sorted[a]], aging[sorted[b]]
			if !ra.Total.Equal(rb.Total) {
				return ra.Total.GreaterThan(rb.Total)
			}
			return ra.Counterparty < rb.Counterparty
		})

		top3 := decimal.Zero
		for i, idx := range sorted {
			if i >= 3 {
				break
			}
			top3 = top3.Add(aging[idx].Total)
		}
		concentration, _ = top3.Div(totalAR).Mul(decimal.NewFromInt(100)).Float64()
	}

	level := LevelLow
	switch {
	case overduePct > overduePctHigh || concentration > concentrationHigh:
		level = LevelHigh
	case overduePct > overduePctMedium || concentration > concentrationMedium:
		level = LevelMedium
	}

	indicators := []string{}
	if overduePct > overduePctMedium {
		indicators = append(indicators, fmt.Sprintf("High share of overdue receivables: %.1f%%", overduePct))
	}
	if concentration > concentrationMedium {
		indicators = append(indicators, fmt.Sprintf("High top-3 customer concentration: %.1f%%", concentration))
	}

	return CounterpartyAssessment{
		OverduePercentage: overduePct,
		ConcentrationTop3: concentration,
		RiskLevel:         level,
		Indicators:        indicators,
	}, nil
}

func (s *Scorer) anomalyRisk(entityIDs []int64) (AnomalyAssessment, error) {
	counts, err := s.source.QualityCounts(entityIDs)
	if err != nil {
		return AnomalyAssessment{}, fmt.Errorf("failed to read quality counts: %w", err)
	}

	level := LevelLow
	switch {
	case counts.AnomalyCount > anomalyCountHigh || counts.UncategorizedPct > uncategorizedHigh:
		level = LevelHigh
	case counts.AnomalyCount > anomalyCountMedium || counts.UncategorizedPct > uncategorizedMedium:
		level = LevelMedium
	}

	indicators := []string{}
	if counts.AnomalyCount > anomalyCountMedium {
		indicators = append(indicators, fmt.Sprintf("Anomalous transactions detected: %d", counts.AnomalyCount))
	}
	if counts.UncategorizedPct > uncategorizedMedium {
		indicators = append(indicators, fmt.Sprintf("High share of uncategorized transactions: %.1f%%", counts.UncategorizedPct))
	}

	return AnomalyAssessment{
		AnomalyCount:            counts.AnomalyCount,
		UncategorizedPercentage: counts.UncategorizedPct,
		RiskLevel:               level,
		Indicators:              indicators,
	}, nil
}
