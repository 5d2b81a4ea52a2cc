package cash_flows

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/fundledger/internal/domain"
)

const (
	// MaxAnnualRate bounds the XIRR search; results beyond it are treated as unusable
	MaxAnnualRate = 10.0

	xirrTolerance  = 1e-9
	xirrIterations = 200
	daysPerYear    = 365.0
)

var (
	// ErrInsufficientFlows is returned when fewer than two flows are given
	ErrInsufficientFlows = errors.New("xirr needs at least two cash flows")
	// ErrNoSignChange is returned when the flows are all outflows or all inflows
	ErrNoSignChange = errors.New("xirr needs both an outflow and an inflow")
	// ErrNoSolution is returned when no rate within the bounds zeroes the net present value
	ErrNoSolution = errors.New("xirr has no solution within bounds")
)

// XIRR returns the annualised internal rate of return of irregular flows, compounding
// on 365-day years from the earliest flow.
func XIRR(flows []Flow) (float64, error) {
	if len(flows) < 2 {
		return 0, ErrInsufficientFlows
	}

	start := flows[0].Date
	for _, f := range flows[1:] {
		if f.Date.Before(start) {
			start = f.Date
		}
	}
	amounts := make([]float64, len(flows))
	years := make([]float64, len(flows))
	for i, f := range flows {
		amounts[i] = f.Amount.InexactFloat64()
		years[i] = math.Round(f.Date.Sub(start).Hours()/24) / daysPerYear
	}
	if floats.Min(amounts) >= 0 || floats.Max(amounts) <= 0 {
		return 0, ErrNoSignChange
	}

	npv := func(rate float64) float64 {
		discounted := make([]float64, len(amounts))
		for i, a := range amounts {
			discounted[i] = a / math.Pow(1+rate, years[i])
		}
		return floats.Sum(discounted)
	}

	// bisection; the bounds must straddle a root
	lo, hi := -0.9999, MaxAnnualRate
	fLo, fHi := npv(lo), npv(hi)
	if fLo == 0 {
		return lo, nil
	}
	if fHi == 0 {
		return hi, nil
	}
	if math.Signbit(fLo) == math.Signbit(fHi) {
		return 0, ErrNoSolution
	}
	for i := 0; i < xirrIterations && hi-lo > xirrTolerance; i++ {
		mid := (lo + hi) / 2
		fMid := npv(mid)
		if fMid == 0 {
			return mid, nil
		}
		if math.Signbit(fMid) == math.Signbit(fLo) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, nil
}

// PeriodReturn is (end - start) / start, or zero for a non-positive start
func PeriodReturn(start, end decimal.Decimal) decimal.Decimal {
	if !start.IsPositive() {
		return decimal.Zero
	}
	return end.Sub(start).Div(start)
}

// Drawdown is the deepest peak-to-trough fall of a series
type Drawdown struct {
	Value      decimal.Decimal `json:"value"`
	PeakDate   time.Time       `json:"peakDate"`
	TroughDate time.Time       `json:"troughDate"`
}

// MaxDrawdown scans the series in order. Value is zero or negative; ok is false with
// fewer than two observations.
func MaxDrawdown(series []domain.PricePoint) (Drawdown, bool) {
	if len(series) < 2 {
		return Drawdown{}, false
	}

	dd := Drawdown{Value: decimal.Zero, PeakDate: series[0].Date, TroughDate: series[0].Date}
	peak := series[0]
	for _, p := range series[1:] {
		if p.Value.GreaterThan(peak.Value) {
			peak = p
			continue
		}
		if !peak.Value.IsPositive() {
			continue
		}
		fall := p.Value.Sub(peak.Value).Div(peak.Value)
		if fall.LessThan(dd.Value) {
			dd = Drawdown{Value: fall, PeakDate: peak.Date, TroughDate: p.Date}
		}
	}
	return dd, true
}
