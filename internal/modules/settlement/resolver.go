// Package settlement stamps submissions with their trade day and expected
// valuation and confirmation dates under the T+N rules of each fund category.
package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/modules/market_hours"
)

// MaxAlignmentDays caps the search for a day both markets are open
const MaxAlignmentDays = 10

// CalendarProvider is the part of the market calendar the resolver needs
type CalendarProvider interface {
	IsTradingDay(market market_hours.Market, date time.Time) bool
	IsTradingDayInBoth(date time.Time) bool
	NextTradingDay(market market_hours.Market, date time.Time, skipCurrent bool) (time.Time, error)
}

// Cutoff is the result of comparing a submission against the daily cutoff
type Cutoff struct {
	Flag     domain.CutoffFlag `json:"cutoff"`
	TradeDay time.Time         `json:"trade_day"`
}

// ExpectedDates are the dates the confirmation poller re-checks a pending row on
type ExpectedDates struct {
	Valuation time.Time `json:"expected_valuation_date"`
	Confirm   time.Time `json:"expected_confirm_date"`
}

// Stamp is everything the resolver derives for a new transaction
type Stamp struct {
	Cutoff
	ExpectedDates
	SubmittedAt time.Time           `json:"submitted_at"`
	Category    domain.FundCategory `json:"category"`
}

// Resolver converts submission timestamps into settlement dates
type Resolver struct {
	calendar     CalendarProvider
	loc          *time.Location
	cutoffHour   int
	cutoffMinute int
	log          zerolog.Logger
}

// NewResolver creates a resolver with the cutoff expressed in loc's local time
func NewResolver(calendar CalendarProvider, loc *time.Location, cutoffHour, cutoffMinute int, log zerolog.Logger) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{
		calendar:     calendar,
		loc:          loc,
		cutoffHour:   cutoffHour,
		cutoffMinute: cutoffMinute,
		log:          log.With().Str("service", "settlement").Logger(),
	}
}

// Location returns the timezone the cutoff is evaluated in
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// CheckCutoff classifies submittedAt against the cutoff. Before it the order settles on the
// same day, moved forward to the next domestic trading day when needed. At or after it the
// order settles on the first domestic trading day strictly after the submission day.
//
// A non-nil error wraps domain.ErrCalendarGap and accompanies a usable best-effort result.
func (r *Resolver) CheckCutoff(submittedAt time.Time) (Cutoff, error) {
	local := submittedAt.In(r.loc)
	day := domain.DateOf(local)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), r.cutoffHour, r.cutoffMinute, 0, 0, r.loc)

	if local.Before(cutoff) {
		tradeDay, err := r.calendar.NextTradingDay(market_hours.MarketDomestic, day, false)
		return Cutoff{Flag: domain.PreCutoff, TradeDay: tradeDay}, r.gap(err, "cutoff", day)
	}

	tradeDay, err := r.calendar.NextTradingDay(market_hours.MarketDomestic, day, true)
	return Cutoff{Flag: domain.PostCutoff, TradeDay: tradeDay}, r.gap(err, "cutoff", day)
}

// ResolveExpectedDates derives the expected valuation and confirmation dates for a trade day.
//
// Domestic funds value on the trade day and confirm on the next domestic session.
// Cross-border funds value one domestic session later (the foreign market prices after the
// domestic close) and confirm on trade day + 2, moved forward to the first day both markets
// are open. Unknown categories are logged and resolved as domestic.
func (r *Resolver) ResolveExpectedDates(tradeDay time.Time, category domain.FundCategory) (ExpectedDates, error) {
	day := domain.DateOf(tradeDay)

	switch category {
	case domain.CategoryCrossBorder:
		valuation, vErr := r.calendar.NextTradingDay(market_hours.MarketDomestic, day, true)
		confirm, cErr := r.alignBothMarkets(day.AddDate(0, 0, 2))
		return ExpectedDates{Valuation: valuation, Confirm: confirm}, errors.Join(
			r.gap(vErr, "valuation", day),
			cErr,
		)
	case domain.CategoryDomestic:
	default:
		r.log.Warn().Str("category", string(category)).Msg("Unknown fund category, using domestic rule")
	}

	confirm, err := r.calendar.NextTradingDay(market_hours.MarketDomestic, day, true)
	return ExpectedDates{Valuation: day, Confirm: confirm}, r.gap(err, "confirm", day)
}

// Stamp runs CheckCutoff and ResolveExpectedDates for one submission
func (r *Resolver) Stamp(submittedAt time.Time, category domain.FundCategory) (Stamp, error) {
	cutoff, cutErr := r.CheckCutoff(submittedAt)
	dates, datesErr := r.ResolveExpectedDates(cutoff.TradeDay, category)
	return Stamp{
		Cutoff:        cutoff,
		ExpectedDates: dates,
		SubmittedAt:   submittedAt.In(r.loc),
		Category:      category,
	}, errors.Join(cutErr, datesErr)
}

// alignBothMarkets walks forward from start until both markets trade, falling back to
// the nearest domestic trading day from start when the cap is hit.
func (r *Resolver) alignBothMarkets(start time.Time) (time.Time, error) {
	current := start
	for range MaxAlignmentDays {
		if r.calendar.IsTradingDayInBoth(current) {
			return current, nil
		}
		current = current.AddDate(0, 0, 1)
	}

	fallback, err := r.calendar.NextTradingDay(market_hours.MarketDomestic, start, false)
	r.log.Warn().
		Str("from", domain.FormatDate(start)).
		Str("fallback", domain.FormatDate(fallback)).
		Msg("No day with both markets open, falling back to domestic trading day")
	return fallback, errors.Join(
		fmt.Errorf("%w: no day with both markets open within %d days of %s",
			domain.ErrCalendarGap, MaxAlignmentDays, domain.FormatDate(start)),
		err,
	)
}

func (r *Resolver) gap(err error, step string, day time.Time) error {
	if err == nil {
		return nil
	}
	r.log.Warn().Err(err).Str("step", step).Str("day", domain.FormatDate(day)).Msg("Calendar gap, using best-effort date")
	return err
}
