package market_hours

import "time"

// Holiday is a named non-trading (or, domestically, make-up trading) day
type Holiday struct {
	Date    time.Time `json:"date"`
	Name    string    `json:"name"`
	Workday bool      `json:"workday"` // domestic make-up workday falling on a weekend
}

// findNthWeekday finds the nth occurrence of a weekday in a given month/year
// n: 1 = first, 2 = second, etc.
func findNthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	date := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	daysToAdd := int(weekday - date.Weekday())
	if daysToAdd < 0 {
		daysToAdd += 7
	}
	return date.AddDate(0, 0, daysToAdd+(n-1)*7)
}

// findLastWeekday finds the last occurrence of a weekday in a given month/year
func findLastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	// Day 0 of the next month is the last day of this one
	date := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)

	daysToSubtract := int(date.Weekday() - weekday)
	if daysToSubtract < 0 {
		daysToSubtract += 7
	}
	return date.AddDate(0, 0, -daysToSubtract)
}

// CalculateForeignHolidays returns the US market closures produced by the fixed rule set.
//
// The set is deliberately incomplete: movable feasts (Good Friday), Juneteenth and
// weekend observance shifts are not modelled. Confirm dates around those days can
// land on a closed session; callers flag that through reconciliation, not here.
func CalculateForeignHolidays(year int) []Holiday {
	return []Holiday{
		{Date: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), Name: "New Year's Day"},
		{Date: findNthWeekday(year, time.January, time.Monday, 3), Name: "Martin Luther King Jr. Day"},
		{Date: findNthWeekday(year, time.February, time.Monday, 3), Name: "Presidents' Day"},
		{Date: findLastWeekday(year, time.May, time.Monday), Name: "Memorial Day"},
		{Date: time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC), Name: "Independence Day"},
		{Date: findNthWeekday(year, time.September, time.Monday, 1), Name: "Labor Day"},
		{Date: findNthWeekday(year, time.November, time.Thursday, 4), Name: "Thanksgiving Day"},
		{Date: time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC), Name: "Christmas Day"},
	}
}
