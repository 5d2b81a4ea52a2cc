// Package portfolio folds the ledger into positions, market values and asset-class weights.
package portfolio

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/domain"
)

// Weights are asset-class weights under both valuation kinds
type Weights struct {
	TotalOfficial decimal.Decimal
	TotalEstimate decimal.Decimal
	Official      map[string]decimal.Decimal
	Estimate      map[string]decimal.Decimal
}

// Deviation is how far an asset class sits from its target weight
type Deviation struct {
	Actual   decimal.Decimal `json:"actual"`
	Target   decimal.Decimal `json:"target"`
	Absolute decimal.Decimal `json:"absolute"`
	Relative decimal.Decimal `json:"relative"`
}

// Aggregator computes positions and weights. All methods are pure functions of their input.
type Aggregator struct {
	classifier Classifier
	log        zerolog.Logger
}

// NewAggregator creates an aggregator
func NewAggregator(classifier Classifier, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		classifier: classifier,
		log:        log.With().Str("service", "aggregator").Logger(),
	}
}

// BuildPositions nets confirmed buys and sells per fund. Skip rows, unconfirmed rows
// and funds whose balance is not positive are left out.
func (a *Aggregator) BuildPositions(rows []domain.Transaction) map[string]*domain.Position {
	shares := make(map[string]decimal.Decimal)
	order := make([]string, 0)
	for _, tx := range rows {
		if !tx.CountsTowardPosition() {
			continue
		}
		if _, seen := shares[tx.FundCode]; !seen {
			order = append(order, tx.FundCode)
		}
		shares[tx.FundCode] = shares[tx.FundCode].Add(tx.SignedShares())
	}

	positions := make(map[string]*domain.Position, len(shares))
	for _, code := range order {
		balance := shares[code]
		if !balance.IsPositive() {
			a.log.Debug().Str("fund_code", code).Str("shares", balance.String()).Msg("Dropping non-positive balance")
			continue
		}
		positions[code] = &domain.Position{
			FundCode:     code,
			Shares:       balance,
			AssetClass:   a.classifier.AssetClass(code),
			FundCategory: a.classifier.Category(code),
		}
	}

	a.log.Debug().Int("positions", len(positions)).Msg("Built positions")
	return positions
}

// ApplyQuotes sets valuations and market values from the resolved quotes. An estimate
// quote also backfills the official valuation from its last-official companion fields.
func (a *Aggregator) ApplyQuotes(positions map[string]*domain.Position, quotes map[string]domain.Quote) {
	for code, pos := range positions {
		q, ok := quotes[code]
		if !ok {
			a.log.Warn().Str("fund_code", code).Msg("No quote for position")
			continue
		}

		switch q.Kind {
		case domain.ValuationOfficial:
			setOfficial(pos, q.Value, q.AsOfDate)
		case domain.ValuationEstimate:
			value := q.Value
			at := q.AsOfTime
			pos.EstimateValuation = &value
			pos.EstimateTime = &at
			pos.MarketValueEstimate = pos.Shares.Mul(value)
			if q.LastOfficialValue.IsPositive() && !q.LastOfficialDate.IsZero() {
				setOfficial(pos, q.LastOfficialValue, q.LastOfficialDate)
			}
		default:
			a.log.Warn().Str("fund_code", code).Str("kind", string(q.Kind)).Msg("Unknown quote kind")
		}
	}
}

func setOfficial(pos *domain.Position, value decimal.Decimal, date time.Time) {
	d := domain.DateOf(date)
	pos.OfficialValuation = &value
	pos.OfficialValuationDate = &d
	pos.MarketValueOfficial = pos.Shares.Mul(value)
}

// RecalcWeights sums market value per asset class under each valuation kind and divides
// by that kind's total. A zero total yields an empty weight map.
func (a *Aggregator) RecalcWeights(positions map[string]*domain.Position) Weights {
	w := Weights{
		Official: make(map[string]decimal.Decimal),
		Estimate: make(map[string]decimal.Decimal),
	}
	officialByClass := make(map[string]decimal.Decimal)
	estimateByClass := make(map[string]decimal.Decimal)

	for _, pos := range positions {
		w.TotalOfficial = w.TotalOfficial.Add(pos.MarketValueOfficial)
		w.TotalEstimate = w.TotalEstimate.Add(pos.MarketValueEstimate)
		officialByClass[pos.AssetClass] = officialByClass[pos.AssetClass].Add(pos.MarketValueOfficial)
		estimateByClass[pos.AssetClass] = estimateByClass[pos.AssetClass].Add(pos.MarketValueEstimate)
	}

	if w.TotalOfficial.IsPositive() {
		for class, v := range officialByClass {
			w.Official[class] = v.Div(w.TotalOfficial)
		}
	}
	if w.TotalEstimate.IsPositive() {
		for class, v := range estimateByClass {
			w.Estimate[class] = v.Div(w.TotalEstimate)
		}
	}

	a.log.Info().
		Str("total_official", w.TotalOfficial.StringFixed(2)).
		Str("total_estimate", w.TotalEstimate.StringFixed(2)).
		Msg("Recalculated weights")
	return w
}

// WeightDeviation compares official weights with targets for every targeted asset class
func WeightDeviation(weights, targets map[string]decimal.Decimal) map[string]Deviation {
	out := make(map[string]Deviation, len(targets))
	for class, target := range targets {
		actual := weights[class]
		diff := actual.Sub(target)
		d := Deviation{
			Actual:   actual,
			Target:   target,
			Absolute: diff.Abs(),
			Relative: decimal.Zero,
		}
		if target.IsPositive() {
			d.Relative = diff.Div(target)
		}
		out[class] = d
	}
	return out
}

// Snapshot assembles a holdings snapshot from positions and weights
func Snapshot(positions map[string]*domain.Position, w Weights, generatedAt time.Time) *domain.HoldingsSnapshot {
	return &domain.HoldingsSnapshot{
		GeneratedAt:        generatedAt,
		TotalValueOfficial: w.TotalOfficial,
		TotalValueEstimate: w.TotalEstimate,
		WeightsOfficial:    w.Official,
		WeightsEstimate:    w.Estimate,
		Positions:          positions,
	}
}
