// Package market_hours answers trading-day questions for the domestic and foreign markets.
package market_hours

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/domain"
)

// Market identifies one of the two calendars
type Market string

const (
	// MarketDomestic is the PRC exchange calendar
	MarketDomestic Market = "domestic"
	// MarketForeign is the US exchange calendar used by cross-border funds
	MarketForeign Market = "foreign"
)

// ParseMarket accepts the market names and their common aliases
func ParseMarket(s string) (Market, error) {
	switch s {
	case "domestic", "cn", "CN":
		return MarketDomestic, nil
	case "foreign", "us", "US":
		return MarketForeign, nil
	}
	return "", fmt.Errorf("%w: unknown market %q", domain.ErrValidation, s)
}

// MaxSearchDays caps NextTradingDay's forward search
const MaxSearchDays = 30

// Calendar determines trading days for both markets. It holds no mutable state
// besides a per-year cache of computed foreign holidays.
type Calendar struct {
	domestic HolidaySource
	log      zerolog.Logger

	mu      sync.RWMutex
	foreign map[int]map[string]string
}

// NewCalendar creates a calendar using src for the domestic market
func NewCalendar(src HolidaySource, log zerolog.Logger) *Calendar {
	if src == nil {
		src = LunarHolidaySource{}
	}
	return &Calendar{
		domestic: src,
		log:      log.With().Str("service", "market_calendar").Logger(),
		foreign:  make(map[int]map[string]string),
	}
}

// IsTradingDay reports whether date is a trading day in market
func (c *Calendar) IsTradingDay(market Market, date time.Time) bool {
	switch market {
	case MarketForeign:
		return c.isForeignTradingDay(date)
	default:
		return c.isDomesticTradingDay(date)
	}
}

// IsTradingDayInBoth reports whether both markets are open on date
func (c *Calendar) IsTradingDayInBoth(date time.Time) bool {
	return c.isDomesticTradingDay(date) && c.isForeignTradingDay(date)
}

func (c *Calendar) isDomesticTradingDay(date time.Time) bool {
	if info, ok := c.domestic.Lookup(date); ok {
		return info.Workday
	}
	return !isWeekend(date)
}

func (c *Calendar) isForeignTradingDay(date time.Time) bool {
	if isWeekend(date) {
		return false
	}
	_, holiday := c.foreignHolidays(date.Year())[date.Format(domain.DateLayout)]
	return !holiday
}

// NextTradingDay returns date itself when it is a trading day and skipCurrent is false,
// otherwise the first trading day after it. The search is capped at MaxSearchDays;
// on exhaustion the last date examined is returned together with an error wrapping
// domain.ErrCalendarGap. Callers keep the date and treat the error as a data-gap warning.
func (c *Calendar) NextTradingDay(market Market, date time.Time, skipCurrent bool) (time.Time, error) {
	day := domain.DateOf(date)
	if !skipCurrent && c.IsTradingDay(market, day) {
		return day, nil
	}

	current := day.AddDate(0, 0, 1)
	for range MaxSearchDays {
		if c.IsTradingDay(market, current) {
			return current, nil
		}
		current = current.AddDate(0, 0, 1)
	}

	c.log.Warn().
		Str("market", string(market)).
		Str("from", domain.FormatDate(day)).
		Str("best_effort", domain.FormatDate(current)).
		Msg("No trading day found within search window")
	return current, fmt.Errorf("%w: no %s trading day within %d days after %s",
		domain.ErrCalendarGap, market, MaxSearchDays, domain.FormatDate(day))
}

// Holidays lists the known closures of market in year, sorted by date.
// For the domestic market this includes weekend make-up workdays (Workday=true).
func (c *Calendar) Holidays(market Market, year int) []Holiday {
	if market == MarketForeign {
		return CalculateForeignHolidays(year)
	}

	var out []Holiday
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() == year; d = d.AddDate(0, 0, 1) {
		info, ok := c.domestic.Lookup(d)
		if !ok {
			continue
		}
		// weekday workdays and weekend rest days are just the plain rule
		if info.Workday == !isWeekend(d) {
			continue
		}
		out = append(out, Holiday{Date: d, Name: info.Name, Workday: info.Workday})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (c *Calendar) foreignHolidays(year int) map[string]string {
	c.mu.RLock()
	set, ok := c.foreign[year]
	c.mu.RUnlock()
	if ok {
		return set
	}

	set = make(map[string]string)
	for _, h := range CalculateForeignHolidays(year) {
		set[h.Date.Format(domain.DateLayout)] = h.Name
	}

	c.mu.Lock()
	c.foreign[year] = set
	c.mu.Unlock()
	return set
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
