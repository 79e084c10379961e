package forecast

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fincast/fincast/internal/modules/ledger"
	"github.com/fincast/fincast/pkg/formulas"
)

const (
	// lookbackDays is the trailing window the history is drawn from.
	lookbackDays = 90
	// minHistoryDays is the floor below which the forecast degenerates
	// to an empty result instead of failing.
	minHistoryDays = 7
	// baselineWindow caps how many trailing days feed the baseline.
	baselineWindow = 30
	// MaxHorizonDays bounds the forecast horizon.
	MaxHorizonDays = 90

	zScore95     = 1.96
	confidence95 = 0.95
)

const dateLayout = "2006-01-02"

// Engine produces the cash-flow forecast: historical aggregation, flat
// baseline with optional uncertainty band, planned-payment overlay,
// balance projection and gap detection. Pure given a snapshot - no
// randomness and no clock access beyond the supplied reference date.
type Engine struct {
	source DataSource
	log    zerolog.Logger
}

// NewEngine creates a new forecast engine
func NewEngine(source DataSource, log zerolog.Logger) *Engine {
	return &Engine{
		source: source,
		log:    log.With().Str("component", "forecast").Logger(),
	}
}

// Forecast runs the full pipeline as of the given reference date.
func (e *Engine) Forecast(asOf time.Time, req Request) (*Result, error) {
	if req.HorizonDays < 1 || req.HorizonDays > MaxHorizonDays {
		return nil, fmt.Errorf("horizon_days must be 1-%d, got %d", MaxHorizonDays, req.HorizonDays)
	}
	asOf = truncateToDay(asOf)

	history, err := e.loadHistory(asOf, req.EntityIDs)
	if err != nil {
		return nil, err
	}

	balance, err := e.source.CurrentBalance(req.EntityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read current balance: %w", err)
	}

	// Too little history is a defined degenerate output, not an error.
	if len(history) < minHistoryDays {
		e.log.Debug().Int("history_days", len(history)).Msg("Insufficient history for forecast")
		return &Result{
			Points:         []Point{},
			Gaps:           []CashGap{},
			CurrentBalance: balance,
			EndBalance:     balance,
		}, nil
	}

	points := baselineForecast(history, req.HorizonDays, req.IncludeUncertainty, asOf)

	points, err = e.overlayPlanned(points, asOf, req)
	if err != nil {
		return nil, err
	}

	points = projectBalances(points, balance)
	gaps := detectGaps(points)

	return &Result{
		Points:         points,
		Gaps:           gaps,
		CurrentBalance: balance,
		EndBalance:     points[len(points)-1].ProjectedBalance,
	}, nil
}

// loadHistory pulls the trailing daily net flows and reindexes them
// over the full observed span, zero-filling missing calendar days.
func (e *Engine) loadHistory(asOf time.Time, entityIDs []int64) ([]ledger.DailyFlow, error) {
	start := asOf.AddDate(0, 0, -lookbackDays)
	flows, err := e.source.DailyNetFlow(start, asOf, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily net flow: %w", err)
	}
	return reindexDaily(flows), nil
}

// reindexDaily fills every calendar day between the first and last
// observed date, so the series is contiguous and strictly ascending.
func reindexDaily(flows []ledger.DailyFlow) []ledger.DailyFlow {
	if len(flows) == 0 {
		return nil
	}

	byDate := make(map[string]decimal.Decimal, len(flows))
	for _, f := range flows {
		byDate[f.Date.Format(dateLayout)] = f.Amount
	}

	first := flows[0].Date
	last := flows[len(flows)-1].Date

	var filled []ledger.DailyFlow
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		amount := byDate[day.Format(dateLayout)]
		filled = append(filled, ledger.DailyFlow{Date: day, Amount: amount})
	}
	return filled
}

// baselineForecast projects a flat baseline (mean of the trailing
// window) over the horizon. The flatness is intentional: no trend, no
// seasonality. Volatility uses the sample standard deviation.
func baselineForecast(history []ledger.DailyFlow, horizonDays int, includeUncertainty bool, asOf time.Time) []Point {
	window := history
	if len(window) > baselineWindow {
		window = window[len(window)-baselineWindow:]
	}

	amounts := make([]decimal.Decimal, len(window))
	for i, f := range window {
		amounts[i] = f.Amount
	}
	baseline := formulas.Mean(amounts)
	volatility := formulas.StdDev(amounts)

	var lower, upper *decimal.Decimal
	var confidence *float64
	if includeUncertainty && volatility > 0 {
		band := decimal.NewFromFloat(zScore95 * volatility)
		l := baseline.Sub(band)
		u := baseline.Add(band)
		c := confidence95
		lower, upper, confidence = &l, &u, &c
	}

	points := make([]Point, horizonDays)
	for i := 0; i < horizonDays; i++ {
		points[i] = Point{
			Date:           asOf.AddDate(0, 0, i+1).Format(dateLayout),
			ForecastedFlow: baseline,
			LowerBound:     lower,
			UpperBound:     upper,
			Confidence:     confidence,
		}
	}
	return points
}

// overlayPlanned layers confirmed future receivables and payables on
// top of the statistical baseline, keyed by exact due date.
func (e *Engine) overlayPlanned(points []Point, asOf time.Time, req Request) ([]Point, error) {
	tomorrow := asOf.AddDate(0, 0, 1)
	horizonEnd := asOf.AddDate(0, 0, req.HorizonDays)

	receivables, err := e.source.PlannedReceivables(tomorrow, horizonEnd, req.EntityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read planned receivables: %w", err)
	}
	payables, err := e.source.PlannedPayables(tomorrow, horizonEnd, req.EntityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read planned payables: %w", err)
	}

	out := make([]Point, len(points))
	copy(out, points)
	for i := range out {
		if amount, ok := receivables[out[i].Date]; ok {
			out[i].ForecastedFlow = out[i].ForecastedFlow.Add(amount)
		}
		if amount, ok := payables[out[i].Date]; ok {
			out[i].ForecastedFlow = out[i].ForecastedFlow.Sub(amount)
		}
	}
	return out, nil
}

// projectBalances accumulates the forecasted flows into projected
// balances. Inherently sequential: each day depends on the previous.
func projectBalances(points []Point, currentBalance decimal.Decimal) []Point {
	out := make([]Point, len(points))
	copy(out, points)

	running := currentBalance
	for i := range out {
		running = running.Add(out[i].ForecastedFlow)
		out[i].ProjectedBalance = running
	}
	return out
}

var (
	gapMediumThreshold = decimal.NewFromInt(100000)
	gapHighThreshold   = decimal.NewFromInt(500000)
)

// detectGaps flags days with a negative projected balance, classified
// by shortfall size. Thresholds are exclusive upper bounds: 100000 is
// already medium, 500000 already high.
func detectGaps(points []Point) []CashGap {
	gaps := []CashGap{}
	for _, p := range points {
		if !p.ProjectedBalance.IsNegative() {
			continue
		}
		gapAmount := p.ProjectedBalance.Abs()

		severity := SeverityHigh
		if gapAmount.LessThan(gapMediumThreshold) {
			severity = SeverityLow
		} else if gapAmount.LessThan(gapHighThreshold) {
			severity = SeverityMedium
		}

		gaps = append(gaps, CashGap{
			Date:             p.Date,
			ProjectedBalance: p.ProjectedBalance,
			GapAmount:        gapAmount,
			Severity:         severity,
		})
	}
	return gaps
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
