package market_hours

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fundledger/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// nationalDay2024 mirrors the 2024 PRC National Day schedule
func nationalDay2024() StaticHolidaySource {
	src := StaticHolidaySource{
		"2024-09-29": {Workday: true, Name: "National Day"},
		"2024-10-12": {Workday: true, Name: "National Day"},
	}
	for d := 1; d <= 7; d++ {
		src[day(2024, time.October, d).Format("2006-01-02")] = DayInfo{Workday: false, Name: "National Day"}
	}
	return src
}

func TestIsTradingDay_Domestic(t *testing.T) {
	cal := NewCalendar(nationalDay2024(), zerolog.Nop())

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"plain weekday", day(2024, time.September, 27), true},
		{"plain saturday", day(2024, time.September, 28), false},
		{"make-up sunday workday", day(2024, time.September, 29), true},
		{"statutory holiday on weekday", day(2024, time.October, 1), false},
		{"last holiday day", day(2024, time.October, 7), false},
		{"first day back", day(2024, time.October, 8), true},
		{"make-up saturday workday", day(2024, time.October, 12), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsTradingDay(MarketDomestic, tt.date))
		})
	}
}

func TestIsTradingDay_Foreign(t *testing.T) {
	cal := NewCalendar(StaticHolidaySource{}, zerolog.Nop())

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"new year", day(2024, time.January, 1), false},
		{"mlk day", day(2024, time.January, 15), false},
		{"presidents day", day(2024, time.February, 19), false},
		{"memorial day", day(2024, time.May, 27), false},
		{"independence day", day(2024, time.July, 4), false},
		{"labor day", day(2024, time.September, 2), false},
		{"thanksgiving", day(2024, time.November, 28), false},
		{"christmas", day(2024, time.December, 25), false},
		{"regular weekday", day(2024, time.November, 27), true},
		{"weekend", day(2024, time.November, 30), false},
		// Known gaps of the rule set
		{"good friday is not modelled", day(2024, time.March, 29), true},
		{"juneteenth is not modelled", day(2024, time.June, 19), true},
		{"no weekend observance shift", day(2026, time.July, 3), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsTradingDay(MarketForeign, tt.date))
		})
	}
}

func TestIsTradingDay_LunarSource(t *testing.T) {
	cal := NewCalendar(LunarHolidaySource{}, zerolog.Nop())

	assert.False(t, cal.IsTradingDay(MarketDomestic, day(2024, time.October, 1)))
	assert.True(t, cal.IsTradingDay(MarketDomestic, day(2024, time.October, 12)))
	assert.True(t, cal.IsTradingDay(MarketDomestic, day(2024, time.October, 9)))
}

func TestNextTradingDay(t *testing.T) {
	cal := NewCalendar(nationalDay2024(), zerolog.Nop())

	tests := []struct {
		name        string
		market      Market
		date        time.Time
		skipCurrent bool
		want        string
	}{
		{"trading day kept", MarketDomestic, day(2024, time.September, 27), false, "2024-09-27"},
		{"trading day skipped", MarketDomestic, day(2024, time.September, 27), true, "2024-09-29"},
		{"holiday run", MarketDomestic, day(2024, time.September, 30), true, "2024-10-08"},
		{"inside holiday", MarketDomestic, day(2024, time.October, 3), false, "2024-10-08"},
		{"foreign thanksgiving", MarketForeign, day(2024, time.November, 27), true, "2024-11-29"},
		{"foreign weekend", MarketForeign, day(2024, time.November, 30), false, "2024-12-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.NextTradingDay(tt.market, tt.date, tt.skipCurrent)
			require.NoError(t, err)
			assert.Equal(t, tt.want, domain.FormatDate(got))
		})
	}
}

func TestNextTradingDay_TruncatesTimeOfDay(t *testing.T) {
	cal := NewCalendar(StaticHolidaySource{}, zerolog.Nop())
	got, err := cal.NextTradingDay(MarketDomestic, time.Date(2024, time.March, 4, 16, 30, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.March, 4), got)
}

func TestNextTradingDay_CalendarGap(t *testing.T) {
	closed := StaticHolidaySource{}
	start := day(2030, time.January, 1)
	for i := 0; i < 60; i++ {
		closed[start.AddDate(0, 0, i).Format("2006-01-02")] = DayInfo{Workday: false, Name: "missing data"}
	}
	cal := NewCalendar(closed, zerolog.Nop())

	got, err := cal.NextTradingDay(MarketDomestic, start, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCalendarGap)
	assert.Equal(t, start.AddDate(0, 0, MaxSearchDays+1), got, "best-effort date is still returned")
	assert.False(t, cal.IsTradingDay(MarketDomestic, got))
}

func TestHolidays(t *testing.T) {
	cal := NewCalendar(nationalDay2024(), zerolog.Nop())

	foreign := cal.Holidays(MarketForeign, 2024)
	require.Len(t, foreign, 8)
	assert.Equal(t, "Thanksgiving Day", foreign[6].Name)

	domestic := cal.Holidays(MarketDomestic, 2024)
	// Oct 1-4 and Oct 7 are weekdays off; Sep 29 and Oct 12 are weekend workdays
	require.Len(t, domestic, 7)
	assert.Equal(t, "2024-09-29", domain.FormatDate(domestic[0].Date))
	assert.True(t, domestic[0].Workday)
	assert.False(t, domestic[1].Workday)
	assert.Equal(t, "2024-10-12", domain.FormatDate(domestic[6].Date))
}

func TestParseMarket(t *testing.T) {
	m, err := ParseMarket("us")
	require.NoError(t, err)
	assert.Equal(t, MarketForeign, m)

	m, err = ParseMarket("domestic")
	require.NoError(t, err)
	assert.Equal(t, MarketDomestic, m)

	_, err = ParseMarket("tokyo")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
