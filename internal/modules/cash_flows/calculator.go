package cash_flows

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/domain"
)

// Summary is the return picture of the whole portfolio at one point in time
type Summary struct {
	AsOf         time.Time           `json:"asOf"`
	Invested     decimal.Decimal     `json:"invested"`
	Redeemed     decimal.Decimal     `json:"redeemed"`
	MarketValue  decimal.Decimal     `json:"marketValue"`
	NetGain      decimal.Decimal     `json:"netGain"`
	TotalReturn  decimal.Decimal     `json:"totalReturn"`
	XIRR         *float64            `json:"xirr,omitempty"`
	Flows        []Flow              `json:"flows"`
	MaxDrawdowns map[string]Drawdown `json:"maxDrawdowns,omitempty"`
}

// Calculator turns ledger rows and a market value into a Summary
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a calculator
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{log: log.With().Str("component", "cash_flows").Logger()}
}

// Summarize computes invested and redeemed totals, total return and XIRR with marketValue
// as the terminal flow on asOf. series, keyed by asset class, feed the max drawdowns and
// may be nil.
func (c *Calculator) Summarize(rows []domain.Transaction, marketValue decimal.Decimal, asOf time.Time, series map[string][]domain.PricePoint) *Summary {
	flows := FromLedger(rows)

	s := &Summary{
		AsOf:        domain.DateOf(asOf),
		Invested:    decimal.Zero,
		Redeemed:    decimal.Zero,
		MarketValue: marketValue,
		Flows:       flows,
	}
	for _, f := range flows {
		if f.Amount.IsNegative() {
			s.Invested = s.Invested.Add(f.Amount.Neg())
		} else {
			s.Redeemed = s.Redeemed.Add(f.Amount)
		}
	}
	s.NetGain = marketValue.Add(s.Redeemed).Sub(s.Invested)
	s.TotalReturn = PeriodReturn(s.Invested, marketValue.Add(s.Redeemed))

	rate, err := XIRR(WithTerminal(flows, marketValue, asOf))
	switch {
	case err == nil:
		s.XIRR = &rate
	case errors.Is(err, ErrInsufficientFlows), errors.Is(err, ErrNoSignChange):
		c.log.Debug().Err(err).Msg("XIRR not computed")
	default:
		c.log.Warn().Err(err).Int("flows", len(flows)).Msg("XIRR not computed")
	}

	for class, points := range series {
		dd, ok := MaxDrawdown(points)
		if !ok {
			continue
		}
		if s.MaxDrawdowns == nil {
			s.MaxDrawdowns = make(map[string]Drawdown)
		}
		s.MaxDrawdowns[class] = dd
	}
	return s
}
