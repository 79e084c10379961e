package forecast

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincast/fincast/internal/modules/ledger"
)

type fakeSource struct {
	flows       []ledger.DailyFlow
	balance     decimal.Decimal
	receivables map[string]decimal.Decimal
	payables    map[string]decimal.Decimal
}

func (f *fakeSource) DailyNetFlow(start, end time.Time, entityIDs []int64) ([]ledger.DailyFlow, error) {
	return f.flows, nil
}

func (f *fakeSource) CurrentBalance(entityIDs []int64) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeSource) PlannedReceivables(start, end time.Time, entityIDs []int64) (map[string]decimal.Decimal, error) {
	return f.receivables, nil
}

func (f *fakeSource) PlannedPayables(start, end time.Time, entityIDs []int64) (map[string]decimal.Decimal, error) {
	return f.payables, nil
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	require.NoError(t, err)
	return d
}

// identicalFlows builds n consecutive days ending at end, all with the
// same daily amount.
func identicalFlows(t *testing.T, end time.Time, n int, amount string) []ledger.DailyFlow {
	t.Helper()
	flows := make([]ledger.DailyFlow, n)
	for i := 0; i < n; i++ {
		flows[i] = ledger.DailyFlow{
			Date:   end.AddDate(0, 0, i-n+1),
			Amount: decimal.RequireFromString(amount),
		}
	}
	return flows
}

func TestForecast_FlatBaselineNoGaps(t *testing.T) {
	asOf := day(t, "2024-03-31")
	source := &fakeSource{
		flows:   identicalFlows(t, asOf, 10, "-1000"),
		balance: decimal.NewFromInt(5000),
	}
	engine := NewEngine(source, zerolog.Nop())

	result, err := engine.Forecast(asOf, Request{HorizonDays: 5})
	require.NoError(t, err)

	require.Len(t, result.Points, 5)
	wantBalances := []string{"4000", "3000", "2000", "1000", "0"}
	for i, p := range result.Points {
		assert.Equal(t, asOf.AddDate(0, 0, i+1).Format(dateLayout), p.Date)
		assert.True(t, p.ForecastedFlow.Equal(decimal.NewFromInt(-1000)), "point %d flow %s", i, p.ForecastedFlow)
		assert.True(t, p.ProjectedBalance.Equal(decimal.RequireFromString(wantBalances[i])), "point %d balance %s", i, p.ProjectedBalance)
		assert.Nil(t, p.LowerBound)
		assert.Nil(t, p.UpperBound)
		assert.Nil(t, p.Confidence)
	}

	// Zero is not negative: no gap on the last day.
	assert.Empty(t, result.Gaps)
	assert.True(t, result.CurrentBalance.Equal(decimal.NewFromInt(5000)))
	assert.True(t, result.EndBalance.Equal(decimal.Zero))
}

func TestForecast_GapsOnNegativeDays(t *testing.T) {
	asOf := day(t, "2024-03-31")
	source := &fakeSource{
		flows:   identicalFlows(t, asOf, 10, "-1000"),
		balance: decimal.NewFromInt(3000),
	}
	engine := NewEngine(source, zerolog.Nop())

	result, err := engine.Forecast(asOf, Request{HorizonDays: 5})
	require.NoError(t, err)

	require.Len(t, result.Gaps, 2)

	assert.Equal(t, "2024-04-04", result.Gaps[0].Date)
	assert.True(t, result.Gaps[0].GapAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, SeverityLow, result.Gaps[0].Severity)

	assert.Equal(t, "2024-04-05", result.Gaps[1].Date)
	assert.True(t, result.Gaps[1].GapAmount.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, SeverityLow, result.Gaps[1].Severity)
}

func TestForecast_InsufficientHistoryDegenerates(t *testing.T) {
	asOf := day(t, "2024-03-31")
	source := &fakeSource{
		flows:   identicalFlows(t, asOf, 6, "-1000"),
		balance: decimal.NewFromInt(7777),
	}
	engine := NewEngine(source, zerolog.Nop())

	result, err := engine.Forecast(asOf, Request{HorizonDays: 14})
	require.NoError(t, err)

	assert.Empty(t, result.Points)
	assert.Empty(t, result.Gaps)
	assert.True(t, result.CurrentBalance.Equal(decimal.NewFromInt(7777)))
	assert.True(t, result.EndBalance.Equal(decimal.NewFromInt(7777)))
}

func TestForecast_SparseHistoryIsReindexed(t *testing.T) {
	asOf := day(t, "2024-03-31")
	// Two observed days spanning ten calendar days; the eight missing
	// days count as zero-flow history.
	source := &fakeSource{
		flows: []ledger.DailyFlow{
			{Date: day(t, "2024-03-20"), Amount: decimal.NewFromInt(100)},
			{Date: day(t, "2024-03-29"), Amount: decimal.NewFromInt(100)},
		},
		balance: decimal.NewFromInt(1000),
	}
	engine := NewEngine(source, zerolog.Nop())

	result, err := engine.Forecast(asOf, Request{HorizonDays: 3})
	require.NoError(t, err)

	require.Len(t, result.Points, 3)
	// Baseline: mean over the 10-day reindexed span = 200/10.
	assert.True(t, result.Points[0].ForecastedFlow.Equal(decimal.NewFromInt(20)), "flow %s", result.Points[0].ForecastedFlow)
}

func TestForecast_UncertaintyBand(t *testing.T) {
	asOf := day(t, "2024-03-31")
	flows := identicalFlows(t, asOf, 10, "-1000")
	flows[9].Amount = decimal.NewFromInt(1000) // introduce variance
	source := &fakeSource{
		flows:   flows,
		balance: decimal.NewFromInt(5000),
	}
	engine := NewEngine(source, zerolog.Nop())

	result, err := engine.Forecast(asOf, Request{HorizonDays: 2, IncludeUncertainty: true})
	require.NoError(t, err)

	p := result.Points[0]
	require.NotNil(t, p.LowerBound)
	require.NotNil(t, p.UpperBound)
	require.NotNil(t, p.Confidence)
	assert.Equal(t, 0.95, *p.Confidence)
	assert.True(t, p.LowerBound.LessThan(p.ForecastedFlow))
	assert.True(t, p.UpperBound.GreaterThan(p.ForecastedFlow))
}

func TestForecast_NoBandWithoutVolatility(t *testing.T) {
	asOf := day(t, "2024-03-31")
	source := &fakeSource{
		flows:   identicalFlows(t, asOf, 10, "-1000"),
		balance: decimal.NewFromInt(5000),
	}
	engine := NewEngine(source, zerolog.Nop())

	result, err := engine.Forecast(asOf, Request{HorizonDays: 2, IncludeUncertainty: true})
	require.NoError(t, err)

	assert.Nil(t, result.Points[0].LowerBound)
	assert.Nil(t, result.Points[0].UpperBound)
	assert.Nil(t, result.Points[0].Confidence)
}

func TestForecast_PlannedPaymentsOverlay(t *testing.T) {
	asOf := day(t, "2024-03-31")
	source := &fakeSource{
		flows:   identicalFlows(t, asOf, 10, "-1000"),
		balance: decimal.NewFromInt(10000),
		receivables: map[string]decimal.Decimal{
			"2024-04-02": decimal.NewFromInt(500),
		},
		payables: map[string]decimal.Decimal{
			"2024-04-03": decimal.NewFromInt(200),
		},
	}
	engine := NewEngine(source, zerolog.Nop())

	result, err := engine.Forecast(asOf, Request{HorizonDays: 3})
	require.NoError(t, err)

	// Planned documents layer on top of the baseline additively.
	assert.True(t, result.Points[0].ForecastedFlow.Equal(decimal.NewFromInt(-1000)))
	assert.True(t, result.Points[1].ForecastedFlow.Equal(decimal.NewFromInt(-500)))
	assert.True(t, result.Points[2].ForecastedFlow.Equal(decimal.NewFromInt(-1200)))

	// Balances accumulate the overlaid flows.
	assert.True(t, result.Points[2].ProjectedBalance.Equal(decimal.NewFromInt(7300)))
	assert.True(t, result.EndBalance.Equal(decimal.NewFromInt(7300)))
}

func TestForecast_BalanceInvariant(t *testing.T) {
	asOf := day(t, "2024-03-31")
	source := &fakeSource{
		flows:   identicalFlows(t, asOf, 30, "-123.45"),
		balance: decimal.RequireFromString("9876.54"),
		receivables: map[string]decimal.Decimal{
			"2024-04-05": decimal.NewFromInt(1000),
		},
	}
	engine := NewEngine(source, zerolog.Nop())

	result, err := engine.Forecast(asOf, Request{HorizonDays: 10})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, p := range result.Points {
		sum = sum.Add(p.ForecastedFlow)
		assert.True(t, p.ProjectedBalance.Equal(source.balance.Add(sum)))
	}
}

func TestForecast_InvalidHorizon(t *testing.T) {
	engine := NewEngine(&fakeSource{}, zerolog.Nop())

	_, err := engine.Forecast(day(t, "2024-03-31"), Request{HorizonDays: 0})
	assert.Error(t, err)

	_, err = engine.Forecast(day(t, "2024-03-31"), Request{HorizonDays: 91})
	assert.Error(t, err)
}

func TestDetectGaps_SeverityBoundaries(t *testing.T) {
	points := []Point{
		{Date: "2024-04-01", ProjectedBalance: decimal.RequireFromString("-99999.99")},
		{Date: "2024-04-02", ProjectedBalance: decimal.NewFromInt(-100000)},
		{Date: "2024-04-03", ProjectedBalance: decimal.NewFromInt(-499999)},
		{Date: "2024-04-04", ProjectedBalance: decimal.NewFromInt(-500000)},
		{Date: "2024-04-05", ProjectedBalance: decimal.NewFromInt(0)},
		{Date: "2024-04-06", ProjectedBalance: decimal.NewFromInt(1)},
	}

	gaps := detectGaps(points)

	// Thresholds are exclusive upper bounds; zero is not a gap.
	require.Len(t, gaps, 4)
	assert.Equal(t, SeverityLow, gaps[0].Severity)
	assert.Equal(t, SeverityMedium, gaps[1].Severity)
	assert.Equal(t, SeverityMedium, gaps[2].Severity)
	assert.Equal(t, SeverityHigh, gaps[3].Severity)
	assert.True(t, gaps[0].GapAmount.Equal(decimal.RequireFromString("99999.99")))
}
