// Package signals turns asset-class weights and price history into rebalance and
// tactical trade signals, gated by a persisted cooldown per (asset class, signal type).
package signals

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/domain"
)

// DefaultWindow is the number of trailing observations used by the tactical policy
const DefaultWindow = 90

// Priority resolution modes
const (
	ModeDrop     = config.PriorityModeDrop
	ModeAnnotate = config.PriorityModeAnnotate
)

// Cooldowns reports whether an (asset class, signal type) pair is suppressed
type Cooldowns interface {
	IsCooling(assetClass string, signalType domain.SignalType, today time.Time) bool
}

// Thresholds are the trigger levels of both policies
type Thresholds struct {
	Light    decimal.Decimal // absolute deviation
	Strong   decimal.Decimal // relative deviation
	Drawdown decimal.Decimal
	Profit   decimal.Decimal
}

// TacticalInput is the per-asset-class input of the tactical policy
type TacticalInput struct {
	AssetClass    string
	Series        []domain.PricePoint // oldest first
	CurrentWeight decimal.Decimal
	TargetWeight  decimal.Decimal
	Category      domain.FundCategory
}

// History is the trailing valuation series of an asset class's representative fund
type History struct {
	FundCode string
	Category domain.FundCategory
	Series   []domain.PricePoint
}

// EvaluateInput is everything one signal pass needs
type EvaluateInput struct {
	Weights    map[string]decimal.Decimal // official weights
	Targets    map[string]decimal.Decimal
	TotalValue decimal.Decimal
	Histories  map[string]History // keyed by asset class
	Today      time.Time
}

// Engine evaluates the rebalance and tactical policies
type Engine struct {
	thresholds     Thresholds
	tacticalAmount decimal.Decimal
	window         int
	mode           string
	cooldowns      Cooldowns
	log            zerolog.Logger
}

// NewEngine creates an engine from the portfolio config. cooldowns may be nil, in which
// case nothing is ever suppressed.
func NewEngine(cfg *config.PortfolioConfig, cooldowns Cooldowns, log zerolog.Logger) *Engine {
	window := cfg.Tactical.Window
	if window < 2 {
		window = DefaultWindow
	}
	mode := cfg.PriorityMode
	if mode == "" {
		mode = ModeDrop
	}
	return &Engine{
		thresholds: Thresholds{
			Light:    decimal.NewFromFloat(cfg.Thresholds.RebalanceLight),
			Strong:   decimal.NewFromFloat(cfg.Thresholds.RebalanceStrong),
			Drawdown: decimal.NewFromFloat(cfg.Thresholds.TacticalDrawdown),
			Profit:   decimal.NewFromFloat(cfg.Thresholds.TacticalProfit),
		},
		tacticalAmount: decimal.NewFromFloat(cfg.Tactical.Amount),
		window:         window,
		mode:           mode,
		cooldowns:      cooldowns,
		log:            log.With().Str("service", "signals").Logger(),
	}
}

// SetMode switches between ModeDrop and ModeAnnotate
func (e *Engine) SetMode(mode string) {
	e.mode = mode
}

// Window returns the trailing window length
func (e *Engine) Window() int {
	return e.window
}

func (e *Engine) cooling(assetClass string, t domain.SignalType, today time.Time) bool {
	if e.cooldowns == nil || !e.cooldowns.IsCooling(assetClass, t, today) {
		return false
	}
	e.log.Info().Str("asset_class", assetClass).Str("signal_type", string(t)).Msg("Signal suppressed by cooldown")
	return true
}

// RebalanceSignals checks every targeted asset class, strong before light.
// The suggested amount is the value needed to return the class to its target.
func (e *Engine) RebalanceSignals(weights, targets map[string]decimal.Decimal, totalValue decimal.Decimal, today time.Time) []domain.Signal {
	var out []domain.Signal
	day := domain.DateOf(today)

	for _, class := range sortedKeys(targets) {
		target := targets[class]
		actual := weights[class]
		absolute := actual.Sub(target).Abs()
		relative := decimal.Zero
		if target.IsPositive() {
			relative = actual.Sub(target).Div(target).Abs()
		}

		var (
			signalType domain.SignalType
			urgency    domain.Urgency
			reason     string
		)
		switch {
		case relative.GreaterThanOrEqual(e.thresholds.Strong):
			signalType, urgency = domain.SignalRebalanceStrong, domain.UrgencyHigh
			reason = fmt.Sprintf("relative deviation %s%% (threshold %s%%), rebalance to target",
				percent(relative), percent(e.thresholds.Strong))
		case absolute.GreaterThanOrEqual(e.thresholds.Light):
			signalType, urgency = domain.SignalRebalanceLight, domain.UrgencyMedium
			reason = fmt.Sprintf("absolute deviation %s%% (threshold %s%%), adjust toward target",
				percent(absolute), percent(e.thresholds.Light))
		default:
			continue
		}
		if e.cooling(class, signalType, day) {
			continue
		}

		adjust := totalValue.Mul(target.Sub(actual))
		action := domain.ActionSell
		if adjust.IsPositive() {
			action = domain.ActionBuy
		}
		amount := adjust.Abs().Round(2)

		s := domain.Signal{
			SignalType:  signalType,
			AssetClass:  class,
			Action:      action,
			Amount:      &amount,
			Reason:      reason,
			Urgency:     urgency,
			TriggeredAt: day,
		}
		e.log.Info().
			Str("asset_class", class).
			Str("signal_type", string(signalType)).
			Str("amount", amount.StringFixed(2)).
			Msg("Rebalance signal")
		out = append(out, s)
	}
	return out
}

// TrailingDrawdown returns the peak of the last window observations and the drawdown of
// the latest observation from it. ok is false with fewer than two observations or a
// non-positive peak.
func TrailingDrawdown(series []domain.PricePoint, window int) (peak, drawdown decimal.Decimal, ok bool) {
	if window < 2 {
		window = DefaultWindow
	}
	if len(series) > window {
		series = series[len(series)-window:]
	}
	if len(series) < 2 {
		return decimal.Zero, decimal.Zero, false
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value.InexactFloat64()
	}
	peak = series[floats.MaxIdx(values)].Value
	if !peak.IsPositive() {
		return peak, decimal.Zero, false
	}

	last := series[len(series)-1].Value
	return peak, last.Sub(peak).Div(peak), true
}

// TacticalSignal applies the drawdown and profit rules to one asset class
func (e *Engine) TacticalSignal(in TacticalInput, today time.Time) *domain.Signal {
	_, drawdown, ok := TrailingDrawdown(in.Series, e.window)
	if !ok {
		e.log.Debug().Str("asset_class", in.AssetClass).Msg("Not enough history for tactical policy")
		return nil
	}
	day := domain.DateOf(today)
	amount := e.tacticalAmount

	switch {
	case drawdown.LessThanOrEqual(e.thresholds.Drawdown.Neg()) && in.CurrentWeight.LessThanOrEqual(in.TargetWeight):
		if e.cooling(in.AssetClass, domain.SignalTacticalAdd, day) {
			return nil
		}
		s := &domain.Signal{
			SignalType: domain.SignalTacticalAdd,
			AssetClass: in.AssetClass,
			Action:     domain.ActionBuy,
			Amount:     &amount,
			Reason: fmt.Sprintf("%d-observation drawdown %s%% (threshold %s%%) and not overweight, add",
				e.window, percent(drawdown), percent(e.thresholds.Drawdown)),
			Urgency:     domain.UrgencyMedium,
			TriggeredAt: day,
		}
		if in.Category == domain.CategoryCrossBorder {
			s.RiskNote = "cross-border fund: the order prices after the foreign close, so the fill may move away from the trigger level"
		}
		return s

	case drawdown.GreaterThanOrEqual(e.thresholds.Profit) && in.CurrentWeight.GreaterThanOrEqual(in.TargetWeight):
		if e.cooling(in.AssetClass, domain.SignalTacticalReduce, day) {
			return nil
		}
		return &domain.Signal{
			SignalType: domain.SignalTacticalReduce,
			AssetClass: in.AssetClass,
			Action:     domain.ActionSell,
			Amount:     &amount,
			Reason: fmt.Sprintf("%s%% above the %d-observation peak (threshold %s%%) and overweight, trim",
				percent(drawdown), e.window, percent(e.thresholds.Profit)),
			Urgency:     domain.UrgencyLow,
			TriggeredAt: day,
		}
	}
	return nil
}

// Prioritize ranks signals strong > light > tactical and resolves same-asset conflicts.
// In ModeDrop only the best signal per asset class survives; its ConflictWith lists the
// dropped types. In ModeAnnotate every signal is kept and losers point at the winner.
func (e *Engine) Prioritize(signals []domain.Signal) []domain.Signal {
	ranked := append([]domain.Signal(nil), signals...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SignalType.Priority() > ranked[j].SignalType.Priority()
	})

	winners := make(map[string]int)
	out := make([]domain.Signal, 0, len(ranked))
	for _, s := range ranked {
		idx, seen := winners[s.AssetClass]
		if !seen {
			s.IsPrimary = true
			s.ConflictWith = nil
			winners[s.AssetClass] = len(out)
			out = append(out, s)
			continue
		}

		winner := &out[idx]
		winner.ConflictWith = append(winner.ConflictWith, s.SignalType)
		if e.mode == ModeAnnotate {
			s.IsPrimary = false
			s.ConflictWith = []domain.SignalType{winner.SignalType}
			out = append(out, s)
			continue
		}
		e.log.Info().
			Str("asset_class", s.AssetClass).
			Str("kept", string(winner.SignalType)).
			Str("dropped", string(s.SignalType)).
			Msg("Signal conflict, keeping higher priority")
	}
	return out
}

// Evaluate runs both policies for every targeted asset class and prioritizes the result
func (e *Engine) Evaluate(in EvaluateInput) []domain.Signal {
	candidates := e.RebalanceSignals(in.Weights, in.Targets, in.TotalValue, in.Today)

	for _, class := range sortedKeys(in.Targets) {
		h, ok := in.Histories[class]
		if !ok {
			continue
		}
		s := e.TacticalSignal(TacticalInput{
			AssetClass:    class,
			Series:        h.Series,
			CurrentWeight: in.Weights[class],
			TargetWeight:  in.Targets[class],
			Category:      h.Category,
		}, in.Today)
		if s != nil {
			candidates = append(candidates, *s)
		}
	}

	return e.Prioritize(candidates)
}

func percent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(2)
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
