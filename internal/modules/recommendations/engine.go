package recommendations

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/internal/modules/forecast"
)

const (
	gapForecastHorizon = 30
	overdueTopN        = 5
	concentrationTopN  = 3

	expenseGrowthThresholdPct = 20.0
	concentrationThresholdPct = 50.0

	gapDeadlineLeadDays    = 7
	collectionDeadlineDays = 14
	expenseDeadlineDays    = 7
	lookbackDaysRevenue    = 90
)

const dateLayout = "2006-01-02"

// Engine runs the four recommendation generators in fixed order and
// returns one globally prioritized list. The sort is stable, so equal
// priorities keep generation order: gap deferral, collection, expense
// growth, concentration.
type Engine struct {
	source     DataSource
	forecaster Forecaster
	catalog    Catalog
	log        zerolog.Logger
}

// NewEngine creates a new recommendations engine
func NewEngine(source DataSource, forecaster Forecaster, catalog Catalog, log zerolog.Logger) *Engine {
	return &Engine{
		source:     source,
		forecaster: forecaster,
		catalog:    catalog,
		log:        log.With().Str("component", "recommendations").Logger(),
	}
}

// Generate produces the prioritized recommendation list as of the
// given date.
func (e *Engine) Generate(asOf time.Time, entityIDs []int64) (*Result, error) {
	asOf = time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	var recs []Recommendation

	gapRecs, err := e.cashGapRecommendations(asOf, entityIDs)
	if err != nil {
		return nil, err
	}
	recs = append(recs, gapRecs...)

	collectionRecs, err := e.collectionRecommendations(asOf, entityIDs)
	if err != nil {
		return nil, err
	}
	recs = append(recs, collectionRecs...)

	expenseRecs, err := e.expenseGrowthRecommendations(asOf, entityIDs)
	if err != nil {
		return nil, err
	}
	recs = append(recs, expenseRecs...)

	concentrationRecs, err := e.concentrationRecommendations(asOf, entityIDs)
	if err != nil {
		return nil, err
	}
	recs = append(recs, concentrationRecs...)

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority > recs[j].Priority
	})

	return &Result{
		Recommendations: recs,
		TotalCount:      len(recs),
	}, nil
}

// cashGapRecommendations proposes payment deferrals for each
// forecasted gap. The deferrable amount sums the per-day payable
// totals that are individually smaller than the gap; the selected
// totals are not guaranteed to cover the gap (known limitation, kept
// for parity with the documented behavior).
func (e *Engine) cashGapRecommendations(asOf time.Time, entityIDs []int64) ([]Recommendation, error) {
	forecastResult, err := e.forecaster.Forecast(asOf, forecast.Request{
		HorizonDays: gapForecastHorizon,
		EntityIDs:   entityIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run gap forecast: %w", err)
	}

	var recs []Recommendation
	for _, gap := range forecastResult.Gaps {
		gapDate, err := time.Parse(dateLayout, gap.Date)
		if err != nil {
			return nil, fmt.Errorf("malformed gap date %q: %w", gap.Date, err)
		}

		payables, err := e.source.PayableTotalsDueBy(asOf, gapDate, entityIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to read upcoming payables: %w", err)
		}

		upcomingTotal := decimal.Zero
		deferrable := decimal.Zero
		for _, p := range payables {
			upcomingTotal = upcomingTotal.Add(p.Total)
			if p.Total.LessThan(gap.GapAmount) {
				deferrable = deferrable.Add(p.Total)
			}
		}

		priority := 5
		switch gap.Severity {
		case forecast.SeverityHigh:
			priority = 10
		case forecast.SeverityMedium:
			priority = 7
		}

		deadline := gapDate.AddDate(0, 0, -gapDeadlineLeadDays).Format(dateLayout)
		msg := Message{
			Template: TemplateCashGap,
			Params: map[string]string{
				"gap_date":          gap.Date,
				"gap_amount":        gap.GapAmount.StringFixed(0),
				"deferrable_amount": deferrable.StringFixed(0),
				"upcoming_total":    upcomingTotal.StringFixed(0),
			},
		}
		texts := e.catalog.Render(msg)

		recs = append(recs, Recommendation{
			ID:             "cash_gap_" + gap.Date,
			Action:         texts.Action,
			Basis:          texts.Basis,
			ExpectedEffect: texts.ExpectedEffect,
			Risk:           texts.Risk,
			Deadline:       &deadline,
			Priority:       priority,
			Category:       CategoryCashGap,
			Message:        msg,
		})
	}
	return recs, nil
}

// collectionRecommendations targets the largest overdue receivables.
func (e *Engine) collectionRecommendations(asOf time.Time, entityIDs []int64) ([]Recommendation, error) {
	aging, err := e.source.ReceivablesAging(entityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read receivables aging: %w", err)
	}

	type overdueEntry struct {
		counterparty string
		amount       decimal.Decimal
	}
	var overdue []overdueEntry
	for _, row := range aging {
		if amount := row.OverduePast30(); amount.IsPositive() {
			overdue = append(overdue, overdueEntry{row.Counterparty, amount})
		}
	}
	sort.Slice(overdue, func(i, j int) bool {
		if !overdue[i].amount.Equal(overdue[j].amount) {
			return overdue[i].amount.GreaterThan(overdue[j].amount)
		}
		return overdue[i].counterparty < overdue[j].counterparty
	})
	if len(overdue) > overdueTopN {
		overdue = overdue[:overdueTopN]
	}

	deadline := asOf.AddDate(0, 0, collectionDeadlineDays).Format(dateLayout)

	var recs []Recommendation
	for _, entry := range overdue {
		msg := Message{
			Template: TemplateARCollection,
			Params: map[string]string{
				"counterparty":   entry.counterparty,
				"overdue_amount": entry.amount.StringFixed(0),
			},
		}
		texts := e.catalog.Render(msg)
		d := deadline

		recs = append(recs, Recommendation{
			ID:             "ar_collection_" + entry.counterparty,
			Action:         texts.Action,
			Basis:          texts.Basis,
			ExpectedEffect: texts.ExpectedEffect,
			Risk:           texts.Risk,
			Deadline:       &d,
			Priority:       8,
			Category:       CategoryARCollection,
			Message:        msg,
		})
	}
	return recs, nil
}

// expenseGrowthRecommendations compares the current calendar month's
// total outflow to the previous month's.
func (e *Engine) expenseGrowthRecommendations(asOf time.Time, entityIDs []int64) ([]Recommendation, error) {
	currentMonthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevMonthEnd := currentMonthStart.AddDate(0, 0, -1)
	prevMonthStart := time.Date(prevMonthEnd.Year(), prevMonthEnd.Month(), 1, 0, 0, 0, 0, time.UTC)

	currentTotal, err := e.source.OutflowTotal(currentMonthStart, asOf, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read current month outflow: %w", err)
	}
	prevTotal, err := e.source.OutflowTotal(prevMonthStart, prevMonthEnd, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read previous month outflow: %w", err)
	}

	if !prevTotal.IsPositive() {
		return nil, nil
	}
	growthPct, _ := currentTotal.Sub(prevTotal).Div(prevTotal).Mul(decimal.NewFromInt(100)).Float64()
	if growthPct <= expenseGrowthThresholdPct {
		return nil, nil
	}

	deadline := asOf.AddDate(0, 0, expenseDeadlineDays).Format(dateLayout)
	msg := Message{
		Template: TemplateExpenseGrowth,
		Params: map[string]string{
			"growth_pct":     fmt.Sprintf("%.1f", growthPct),
			"current_total":  currentTotal.StringFixed(0),
			"previous_total": prevTotal.StringFixed(0),
		},
	}
	texts := e.catalog.Render(msg)

	return []Recommendation{{
		ID:             "expense_growth",
		Action:         texts.Action,
		Basis:          texts.Basis,
		ExpectedEffect: texts.ExpectedEffect,
		Risk:           texts.Risk,
		Deadline:       &deadline,
		Priority:       6,
		Category:       CategoryExpenseControl,
		Message:        msg,
	}}, nil
}

// concentrationRecommendations flags revenue concentration on the
// top-3 customers over the trailing 90 days.
func (e *Engine) concentrationRecommendations(asOf time.Time, entityIDs []int64) ([]Recommendation, error) {
	start := asOf.AddDate(0, 0, -lookbackDaysRevenue)

	top, err := e.source.TopCustomersByRevenue(start, asOf, entityIDs, concentrationTopN)
	if err != nil {
		return nil, fmt.Errorf("failed to read top customers: %w", err)
	}
	if len(top) == 0 {
		return nil, nil
	}

	grandTotal, err := e.source.TotalRevenue(start, asOf, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read total revenue: %w", err)
	}
	if !grandTotal.IsPositive() {
		return nil, nil
	}

	topTotal := decimal.Zero
	for _, c := range top {
		topTotal = topTotal.Add(c.Revenue)
	}
	concentrationPct, _ := topTotal.Div(grandTotal).Mul(decimal.NewFromInt(100)).Float64()
	if concentrationPct <= concentrationThresholdPct {
		return nil, nil
	}

	msg := Message{
		Template: TemplateConcentration,
		Params: map[string]string{
			"concentration_pct": fmt.Sprintf("%.1f", concentrationPct),
		},
	}
	texts := e.catalog.Render(msg)

	return []Recommendation{{
		ID:             "customer_concentration",
		Action:         texts.Action,
		Basis:          texts.Basis,
		ExpectedEffect: texts.ExpectedEffect,
		Risk:           texts.Risk,
		Priority:       5,
		Category:       CategoryConcentration,
		Message:        msg,
	}}, nil
}
