package recommendations

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincast/fincast/internal/modules/forecast"
	"github.com/fincast/fincast/internal/modules/ledger"
)

type fakeLedger struct {
	payables     []ledger.PlannedTotal
	aging        []ledger.AgingRow
	outflows     map[string]decimal.Decimal // keyed by period start date
	topCustomers []ledger.CustomerRevenue
	totalRevenue decimal.Decimal
}

func (f *fakeLedger) PayableTotalsDueBy(start, end time.Time, entityIDs []int64) ([]ledger.PlannedTotal, error) {
	return f.payables, nil
}

func (f *fakeLedger) ReceivablesAging(entityIDs []int64) ([]ledger.AgingRow, error) {
	return f.aging, nil
}

func (f *fakeLedger) OutflowTotal(start, end time.Time, entityIDs []int64) (decimal.Decimal, error) {
	return f.outflows[start.Format(dateLayout)], nil
}

func (f *fakeLedger) TopCustomersByRevenue(start, end time.Time, entityIDs []int64, n int) ([]ledger.CustomerRevenue, error) {
	if len(f.topCustomers) > n {
		return f.topCustomers[:n], nil
	}
	return f.topCustomers, nil
}

func (f *fakeLedger) TotalRevenue(start, end time.Time, entityIDs []int64) (decimal.Decimal, error) {
	return f.totalRevenue, nil
}

type fakeForecaster struct {
	gaps []forecast.CashGap
}

func (f *fakeForecaster) Forecast(asOf time.Time, req forecast.Request) (*forecast.Result, error) {
	return &forecast.Result{Gaps: f.gaps}, nil
}

var asOf = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func gap(date, amount, severity string) forecast.CashGap {
	a := decimal.RequireFromString(amount)
	return forecast.CashGap{
		Date:             date,
		ProjectedBalance: a.Neg(),
		GapAmount:        a,
		Severity:         severity,
	}
}

func TestGenerate_EmptyBook(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, &fakeForecaster{}, English, zerolog.Nop())

	result, err := engine.Generate(asOf, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Recommendations)
	assert.Equal(t, 0, result.TotalCount)
}

func TestCashGap_DeferrableAmount(t *testing.T) {
	source := &fakeLedger{
		payables: []ledger.PlannedTotal{
			{DueDate: "2024-03-18", Total: decimal.NewFromInt(300)},
			{DueDate: "2024-03-20", Total: decimal.NewFromInt(5000)}, // >= gap, not deferrable
			{DueDate: "2024-03-22", Total: decimal.NewFromInt(400)},
		},
	}
	forecaster := &fakeForecaster{gaps: []forecast.CashGap{
		gap("2024-03-25", "1000", forecast.SeverityLow),
	}}
	engine := NewEngine(source, forecaster, English, zerolog.Nop())

	result, err := engine.Generate(asOf, nil)
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]

	assert.Equal(t, "cash_gap_2024-03-25", rec.ID)
	assert.Equal(t, CategoryCashGap, rec.Category)
	assert.Equal(t, 5, rec.Priority)
	require.NotNil(t, rec.Deadline)
	assert.Equal(t, "2024-03-18", *rec.Deadline) // gap date minus 7

	assert.Equal(t, "700", rec.Message.Params["deferrable_amount"])
	assert.Equal(t, "5700", rec.Message.Params["upcoming_total"])
	assert.Equal(t, "1000", rec.Message.Params["gap_amount"])
	assert.Contains(t, rec.Action, "Defer payments totalling 700")
	assert.Contains(t, rec.Basis, "cash gap of 1000 on 2024-03-25")
}

func TestCashGap_PriorityBySeverity(t *testing.T) {
	forecaster := &fakeForecaster{gaps: []forecast.CashGap{
		gap("2024-03-20", "50000", forecast.SeverityLow),
		gap("2024-03-21", "200000", forecast.SeverityMedium),
		gap("2024-03-22", "600000", forecast.SeverityHigh),
	}}
	engine := NewEngine(&fakeLedger{}, forecaster, English, zerolog.Nop())

	result, err := engine.Generate(asOf, nil)
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 3)
	// Sorted by priority descending: high 10, medium 7, low 5.
	assert.Equal(t, "cash_gap_2024-03-22", result.Recommendations[0].ID)
	assert.Equal(t, 10, result.Recommendations[0].Priority)
	assert.Equal(t, "cash_gap_2024-03-21", result.Recommendations[1].ID)
	assert.Equal(t, 7, result.Recommendations[1].Priority)
	assert.Equal(t, "cash_gap_2024-03-20", result.Recommendations[2].ID)
	assert.Equal(t, 5, result.Recommendations[2].Priority)
}

func agingOverdue(counterparty string, overdue60 int64) ledger.AgingRow {
	amount := decimal.NewFromInt(overdue60)
	return ledger.AgingRow{
		Counterparty:  counterparty,
		Total:         amount,
		Overdue60Plus: amount,
	}
}

func TestCollection_TopFiveLargestOverdue(t *testing.T) {
	source := &fakeLedger{
		aging: []ledger.AgingRow{
			agingOverdue("Acme", 100),
			agingOverdue("Beta", 700),
			agingOverdue("Gamma", 300),
			agingOverdue("Delta", 500),
			agingOverdue("Zeta", 200),
			agingOverdue("Eta", 600),
			// Overdue by at most 30 days: not collectable yet.
			{Counterparty: "Theta", Total: decimal.NewFromInt(9999), Overdue1To30: decimal.NewFromInt(9999)},
		},
	}
	engine := NewEngine(source, &fakeForecaster{}, English, zerolog.Nop())

	result, err := engine.Generate(asOf, nil)
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 5)
	wantOrder := []string{"Beta", "Eta", "Delta", "Gamma", "Zeta"}
	for i, rec := range result.Recommendations {
		assert.Equal(t, "ar_collection_"+wantOrder[i], rec.ID)
		assert.Equal(t, 8, rec.Priority)
		assert.Equal(t, CategoryARCollection, rec.Category)
		require.NotNil(t, rec.Deadline)
		assert.Equal(t, "2024-03-29", *rec.Deadline) // asOf plus 14
	}

	assert.Equal(t, "Beta", result.Recommendations[0].Message.Params["counterparty"])
	assert.Contains(t, result.Recommendations[0].Action, "Accelerate collection of 700 receivable from Beta")
}

func TestExpenseGrowth_AboveThreshold(t *testing.T) {
	source := &fakeLedger{
		outflows: map[string]decimal.Decimal{
			"2024-03-01": decimal.NewFromInt(1300), // current month
			"2024-02-01": decimal.NewFromInt(1000), // previous month
		},
	}
	engine := NewEngine(source, &fakeForecaster{}, English, zerolog.Nop())

	result, err := engine.Generate(asOf, nil)
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]

	assert.Equal(t, "expense_growth", rec.ID)
	assert.Equal(t, 6, rec.Priority)
	assert.Equal(t, CategoryExpenseControl, rec.Category)
	require.NotNil(t, rec.Deadline)
	assert.Equal(t, "2024-03-22", *rec.Deadline) // asOf plus 7
	assert.Equal(t, "30.0", rec.Message.Params["growth_pct"])
	assert.Contains(t, rec.Action, "up 30.0% versus the previous month")
}

func TestExpenseGrowth_Gates(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		previous string
		want     int
	}{
		{"exactly 20 percent stays quiet", "1200", "1000", 0},
		{"just over 20 percent fires", "1201", "1000", 1},
		{"no previous month baseline", "5000", "0", 0},
		{"spend went down", "800", "1000", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeLedger{
				outflows: map[string]decimal.Decimal{
					"2024-03-01": decimal.RequireFromString(tt.current),
					"2024-02-01": decimal.RequireFromString(tt.previous),
				},
			}
			engine := NewEngine(source, &fakeForecaster{}, English, zerolog.Nop())

			result, err := engine.Generate(asOf, nil)
			require.NoError(t, err)
			assert.Len(t, result.Recommendations, tt.want)
		})
	}
}

func TestConcentration_AboveThreshold(t *testing.T) {
	source := &fakeLedger{
		topCustomers: []ledger.CustomerRevenue{
			{Counterparty: "Acme", Revenue: decimal.NewFromInt(300)},
			{Counterparty: "Beta", Revenue: decimal.NewFromInt(200)},
			{Counterparty: "Gamma", Revenue: decimal.NewFromInt(100)},
		},
		totalRevenue: decimal.NewFromInt(1000),
	}
	engine := NewEngine(source, &fakeForecaster{}, English, zerolog.Nop())

	result, err := engine.Generate(asOf, nil)
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]

	assert.Equal(t, "customer_concentration", rec.ID)
	assert.Equal(t, 5, rec.Priority)
	assert.Equal(t, CategoryConcentration, rec.Category)
	assert.Nil(t, rec.Deadline)
	assert.Equal(t, "60.0", rec.Message.Params["concentration_pct"])
}

func TestConcentration_ExactlyAtThresholdStaysQuiet(t *testing.T) {
	source := &fakeLedger{
		topCustomers: []ledger.CustomerRevenue{
			{Counterparty: "Acme", Revenue: decimal.NewFromInt(500)},
		},
		totalRevenue: decimal.NewFromInt(1000),
	}
	engine := NewEngine(source, &fakeForecaster{}, English, zerolog.Nop())

	result, err := engine.Generate(asOf, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Recommendations)
}

func TestGenerate_PriorityOrdering(t *testing.T) {
	// One recommendation from every generator, plus a low-severity gap
	// that ties the concentration priority.
	source := &fakeLedger{
		aging: []ledger.AgingRow{agingOverdue("Acme", 500)},
		outflows: map[string]decimal.Decimal{
			"2024-03-01": decimal.NewFromInt(2000),
			"2024-02-01": decimal.NewFromInt(1000),
		},
		topCustomers: []ledger.CustomerRevenue{
			{Counterparty: "Acme", Revenue: decimal.NewFromInt(900)},
		},
		totalRevenue: decimal.NewFromInt(1000),
	}
	forecaster := &fakeForecaster{gaps: []forecast.CashGap{
		gap("2024-03-20", "200000", forecast.SeverityMedium),
		gap("2024-03-21", "1000", forecast.SeverityLow),
	}}
	engine := NewEngine(source, forecaster, English, zerolog.Nop())

	result, err := engine.Generate(asOf, nil)
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 5)
	wantIDs := []string{
		"ar_collection_Acme",     // 8
		"cash_gap_2024-03-20",    // 7
		"expense_growth",         // 6
		"cash_gap_2024-03-21",    // 5, generated before concentration
		"customer_concentration", // 5
	}
	for i, rec := range result.Recommendations {
		assert.Equal(t, wantIDs[i], rec.ID)
	}

	// Priorities are non-increasing down the list.
	for i := 1; i < len(result.Recommendations); i++ {
		assert.GreaterOrEqual(t, result.Recommendations[i-1].Priority, result.Recommendations[i].Priority)
	}
}

func TestCatalogRender(t *testing.T) {
	texts := English.Render(Message{
		Template: TemplateARCollection,
		Params: map[string]string{
			"counterparty":   "Acme",
			"overdue_amount": "1234",
		},
	})

	assert.Equal(t, "Accelerate collection of 1234 receivable from Acme", texts.Action)
	assert.Equal(t, "Overdue receivable from Acme: 1234 (more than 30 days past due)", texts.Basis)
	assert.Equal(t, "Frees up 1234 and improves liquidity", texts.ExpectedEffect)

	// Unknown template ids degrade to empty texts.
	assert.Equal(t, Texts{}, English.Render(Message{Template: "nonexistent"}))
}
