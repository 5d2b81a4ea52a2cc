package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/modules/cash_flows"
	"github.com/aristath/fundledger/internal/modules/ledger"
	"github.com/aristath/fundledger/internal/modules/market_hours"
	"github.com/aristath/fundledger/internal/modules/portfolio"
	"github.com/aristath/fundledger/internal/modules/signals"
)

// Domestic session during which intraday estimates are published
const (
	sessionOpenMinutes  = 9*60 + 30
	sessionCloseMinutes = 15 * 60
)

// Quoter fetches valuations for a fund
type Quoter interface {
	GetOfficialValuation(ctx context.Context, fundCode string) (domain.Quote, error)
	GetIntradayEstimate(ctx context.Context, fundCode string) (domain.Quote, error)
	GetHistory(ctx context.Context, fundCode string, limit int) ([]domain.PricePoint, error)
}

// TradingDayChecker reports domestic trading days
type TradingDayChecker interface {
	IsTradingDay(market market_hours.Market, date time.Time) bool
}

// RefreshObserver receives refresh outcomes, typically a metrics recorder
type RefreshObserver interface {
	ObserveRefresh(duration time.Duration, err error)
	ObserveSignal(signalType domain.SignalType)
}

// RefreshReport is the outcome of one refresh cycle
type RefreshReport struct {
	Snapshot    *domain.HoldingsSnapshot       `json:"snapshot"`
	Deviations  map[string]portfolio.Deviation `json:"deviations"`
	Signals     []domain.Signal                `json:"signals"`
	Performance *cash_flows.Summary            `json:"performance"`
	QuoteErrors map[string]string              `json:"quoteErrors,omitempty"`
	InSession   bool                           `json:"inSession"`
}

// RefreshService runs the ledger → positions → quotes → weights → signals cycle
type RefreshService struct {
	ledger      *ledger.Store
	aggregator  *portfolio.Aggregator
	snapshots   *portfolio.SnapshotRepository
	quotes      Quoter
	engine      *signals.Engine
	cooldowns   *signals.CooldownStore
	performance *cash_flows.Calculator
	portfolio   *config.PortfolioConfig
	calendar    TradingDayChecker
	observer    RefreshObserver
	loc         *time.Location
	log         zerolog.Logger
	now         func() time.Time
}

// NewRefreshService creates a refresh service. observer may be nil.
func NewRefreshService(
	l *ledger.Store,
	aggregator *portfolio.Aggregator,
	snapshots *portfolio.SnapshotRepository,
	quotes Quoter,
	engine *signals.Engine,
	cooldowns *signals.CooldownStore,
	performance *cash_flows.Calculator,
	portfolioCfg *config.PortfolioConfig,
	calendar TradingDayChecker,
	observer RefreshObserver,
	loc *time.Location,
	log zerolog.Logger,
) *RefreshService {
	if loc == nil {
		loc = time.Local
	}
	return &RefreshService{
		ledger:      l,
		aggregator:  aggregator,
		snapshots:   snapshots,
		quotes:      quotes,
		engine:      engine,
		cooldowns:   cooldowns,
		performance: performance,
		portfolio:   portfolioCfg,
		calendar:    calendar,
		observer:    observer,
		loc:         loc,
		log:         log.With().Str("service", "refresh").Logger(),
		now:         time.Now,
	}
}

// SetClock overrides the refresh clock
func (s *RefreshService) SetClock(now func() time.Time) {
	s.now = now
}

// Refresh rebuilds positions from the ledger, values them, persists the snapshot and
// evaluates signals. Only a ledger read failure aborts the cycle.
func (s *RefreshService) Refresh(ctx context.Context) (report *RefreshReport, err error) {
	start := time.Now()
	defer func() {
		if s.observer != nil {
			s.observer.ObserveRefresh(time.Since(start), err)
		}
	}()

	now := s.now().In(s.loc)
	if _, err := s.cooldowns.Load(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to load signal state, using cached cooldowns")
	}

	rows, err := s.ledger.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	positions := s.aggregator.BuildPositions(rows)
	inSession := s.inSession(now)
	quotes, quoteErrors := s.resolveQuotes(ctx, positions, now, inSession)
	s.aggregator.ApplyQuotes(positions, quotes)
	weights := s.aggregator.RecalcWeights(positions)

	snap := portfolio.Snapshot(positions, weights, now)
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.log.Error().Err(err).Msg("Failed to save holdings snapshot")
	}

	targets := s.portfolio.Targets()
	histories := s.histories(ctx)
	found := s.engine.Evaluate(signals.EvaluateInput{
		Weights:    weights.Official,
		Targets:    targets,
		TotalValue: weights.TotalOfficial,
		Histories:  histories,
		Today:      now,
	})
	if s.observer != nil {
		for _, sig := range found {
			s.observer.ObserveSignal(sig.SignalType)
		}
	}

	series := make(map[string][]domain.PricePoint, len(histories))
	for class, h := range histories {
		series[class] = h.Series
	}
	performance := s.performance.Summarize(rows, weights.TotalOfficial, now, series)

	s.log.Info().
		Int("positions", len(positions)).
		Int("signals", len(found)).
		Int("quote_errors", len(quoteErrors)).
		Bool("in_session", inSession).
		Str("total_return", performance.TotalReturn.StringFixed(4)).
		Msg("Refresh complete")

	return &RefreshReport{
		Snapshot:    snap,
		Deviations:  portfolio.WeightDeviation(weights.Official, targets),
		Signals:     found,
		Performance: performance,
		QuoteErrors: quoteErrors,
		InSession:   inSession,
	}, nil
}

// Deviation compares the last snapshot's official weights with the targets
func (s *RefreshService) Deviation(ctx context.Context) (map[string]portfolio.Deviation, error) {
	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		return nil, err
	}
	return portfolio.WeightDeviation(snap.WeightsOfficial, s.portfolio.Targets()), nil
}

// Performance recomputes cash-flow returns against the last snapshot's official value
func (s *RefreshService) Performance(ctx context.Context) (*cash_flows.Summary, error) {
	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.ledger.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("performance: %w", err)
	}
	return s.performance.Summarize(rows, snap.TotalValueOfficial, snap.GeneratedAt.In(s.loc), nil), nil
}

// Holdings returns the last saved snapshot
func (s *RefreshService) Holdings(ctx context.Context) (*domain.HoldingsSnapshot, error) {
	return s.snapshots.Load(ctx)
}

func (s *RefreshService) inSession(now time.Time) bool {
	if s.calendar != nil && !s.calendar.IsTradingDay(market_hours.MarketDomestic, now) {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= sessionOpenMinutes && minutes <= sessionCloseMinutes
}

// resolveQuotes prefers today's official print; during the session it falls back to the
// intraday estimate, which also carries the previous official print.
func (s *RefreshService) resolveQuotes(ctx context.Context, positions map[string]*domain.Position, now time.Time, inSession bool) (map[string]domain.Quote, map[string]string) {
	quotes := make(map[string]domain.Quote, len(positions))
	failures := make(map[string]string)

	for code := range positions {
		official, officialErr := s.quotes.GetOfficialValuation(ctx, code)
		if officialErr == nil && domain.SameDay(official.AsOfDate, now) {
			quotes[code] = official
			continue
		}

		if inSession {
			estimate, err := s.quotes.GetIntradayEstimate(ctx, code)
			if err == nil {
				quotes[code] = estimate
				continue
			}
			s.log.Warn().Err(err).Str("fund_code", code).Msg("Failed to fetch intraday estimate")
		}

		if officialErr != nil {
			s.log.Warn().Err(officialErr).Str("fund_code", code).Msg("Failed to fetch official valuation")
			failures[code] = officialErr.Error()
			continue
		}
		quotes[code] = official
	}
	return quotes, failures
}

// histories fetches the trailing series of each asset class's representative fund
func (s *RefreshService) histories(ctx context.Context) map[string]signals.History {
	out := make(map[string]signals.History)
	for _, ac := range s.portfolio.AssetClasses {
		fund, ok := s.portfolio.RepresentativeFund(ac.Name)
		if !ok {
			continue
		}
		series, err := s.quotes.GetHistory(ctx, fund.Code, s.engine.Window())
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.log.Warn().Err(err).Str("fund_code", fund.Code).Msg("Failed to fetch valuation history")
			}
			continue
		}
		out[ac.Name] = signals.History{
			FundCode: fund.Code,
			Category: domain.FundCategory(fund.Category),
			Series:   series,
		}
	}
	return out
}
