package market_hours

import (
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
)

// DayInfo is what a holiday source knows about one date
type DayInfo struct {
	Workday bool
	Name    string
}

// HolidaySource answers whether a date is an official working day.
// ok is false when the source has no entry for the date; the calendar then
// falls back to the plain weekday rule.
type HolidaySource interface {
	Lookup(date time.Time) (info DayInfo, ok bool)
}

// LunarHolidaySource reads the PRC State Council holiday schedule bundled with lunar-go.
// It covers statutory holidays and the weekend make-up workdays around them.
type LunarHolidaySource struct{}

// Lookup returns the official entry for date, if any
func (LunarHolidaySource) Lookup(date time.Time) (DayInfo, bool) {
	h := HolidayUtil.GetHolidayByYmd(date.Year(), int(date.Month()), date.Day())
	if h == nil {
		return DayInfo{}, false
	}
	return DayInfo{Workday: h.IsWork(), Name: h.GetName()}, true
}

// StaticHolidaySource is a fixed table keyed by YYYY-MM-DD, used in tests and
// as an override when the bundled schedule lags a newly announced year.
type StaticHolidaySource map[string]DayInfo

// Lookup returns the table entry for date, if any
func (s StaticHolidaySource) Lookup(date time.Time) (DayInfo, bool) {
	info, ok := s[date.Format("2006-01-02")]
	return info, ok
}

// LayeredHolidaySource consults each source in order and returns the first hit
type LayeredHolidaySource []HolidaySource

// Lookup returns the first source's entry for date
func (l LayeredHolidaySource) Lookup(date time.Time) (DayInfo, bool) {
	for _, src := range l {
		if info, ok := src.Lookup(date); ok {
			return info, true
		}
	}
	return DayInfo{}, false
}
