package cash_flows

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fundledger/internal/domain"
	testingpkg "github.com/aristath/fundledger/internal/testing"
)

func row(typ domain.TransactionType, status domain.TransactionStatus, amount string, day time.Time) domain.Transaction {
	tx := testingpkg.NewTransaction("000051", typ, status, amount, "10")
	tx.TradeDate = day
	return tx
}

func TestFromLedger_ExcludesSkipVoidAndPending(t *testing.T) {
	d := testingpkg.Date
	rows := []domain.Transaction{
		row(domain.TransactionBuy, domain.StatusConfirmed, "1000", d(2024, time.March, 4)),
		row(domain.TransactionSkip, domain.StatusConfirmed, "500", d(2024, time.March, 5)),
		row(domain.TransactionBuy, domain.StatusVoid, "700", d(2024, time.March, 6)),
		row(domain.TransactionBuy, domain.StatusPending, "300", d(2024, time.March, 7)),
		row(domain.TransactionSell, domain.StatusConfirmed, "200", d(2024, time.March, 1)),
	}

	flows := FromLedger(rows)

	require.Len(t, flows, 2)
	assert.Equal(t, "2024-03-01", domain.FormatDate(flows[0].Date))
	assert.True(t, flows[0].Amount.Equal(testingpkg.Dec("200")))
	assert.Equal(t, "2024-03-04", domain.FormatDate(flows[1].Date))
	assert.True(t, flows[1].Amount.Equal(testingpkg.Dec("-1000")))
}

func TestWithTerminal(t *testing.T) {
	flows := []Flow{{Date: testingpkg.Date(2024, time.January, 1), Amount: testingpkg.Dec("-100")}}

	out := WithTerminal(flows, testingpkg.Dec("110"), time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC))
	require.Len(t, out, 2)
	assert.Len(t, flows, 1)
	assert.Equal(t, "2024-06-01", domain.FormatDate(out[1].Date))

	assert.Len(t, WithTerminal(flows, decimal.Zero, time.Now()), 1)
}

func TestXIRR(t *testing.T) {
	d := testingpkg.Date

	t.Run("one year ten percent", func(t *testing.T) {
		rate, err := XIRR([]Flow{
			{Date: d(2023, time.January, 1), Amount: testingpkg.Dec("-1000")},
			{Date: d(2024, time.January, 1), Amount: testingpkg.Dec("1100")},
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.10, rate, 1e-6)
	})

	t.Run("loss", func(t *testing.T) {
		rate, err := XIRR([]Flow{
			{Date: d(2023, time.January, 1), Amount: testingpkg.Dec("-1000")},
			{Date: d(2024, time.January, 1), Amount: testingpkg.Dec("800")},
		})
		require.NoError(t, err)
		assert.InDelta(t, -0.20, rate, 1e-6)
	})

	t.Run("irregular contributions", func(t *testing.T) {
		flows := []Flow{
			{Date: d(2023, time.January, 1), Amount: testingpkg.Dec("-1000")},
			{Date: d(2023, time.July, 1), Amount: testingpkg.Dec("-1000")},
			{Date: d(2024, time.January, 1), Amount: testingpkg.Dec("2150")},
		}
		rate, err := XIRR(flows)
		require.NoError(t, err)

		var npv float64
		for _, f := range flows {
			years := math.Round(f.Date.Sub(flows[0].Date).Hours()/24) / 365
			npv += f.Amount.InexactFloat64() / math.Pow(1+rate, years)
		}
		assert.InDelta(t, 0, npv, 1e-4)
		assert.Greater(t, rate, 0.09)
		assert.Less(t, rate, 0.11)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := XIRR([]Flow{{Date: d(2023, time.January, 1), Amount: testingpkg.Dec("-1")}})
		assert.ErrorIs(t, err, ErrInsufficientFlows)

		_, err = XIRR([]Flow{
			{Date: d(2023, time.January, 1), Amount: testingpkg.Dec("-1")},
			{Date: d(2023, time.June, 1), Amount: testingpkg.Dec("-1")},
		})
		assert.ErrorIs(t, err, ErrNoSignChange)

		// same-day flows have no time value to solve for
		_, err = XIRR([]Flow{
			{Date: d(2023, time.January, 1), Amount: testingpkg.Dec("-100")},
			{Date: d(2023, time.January, 1), Amount: testingpkg.Dec("120")},
		})
		assert.ErrorIs(t, err, ErrNoSolution)
	})
}

func TestPeriodReturn(t *testing.T) {
	assert.Equal(t, "0.25", PeriodReturn(testingpkg.Dec("200"), testingpkg.Dec("250")).String())
	assert.Equal(t, "-0.5", PeriodReturn(testingpkg.Dec("200"), testingpkg.Dec("100")).String())
	assert.True(t, PeriodReturn(decimal.Zero, testingpkg.Dec("100")).IsZero())
}

func TestMaxDrawdown(t *testing.T) {
	d := testingpkg.Date
	series := []domain.PricePoint{
		{Date: d(2024, time.March, 1), Value: testingpkg.Dec("1.0")},
		{Date: d(2024, time.March, 4), Value: testingpkg.Dec("1.2")},
		{Date: d(2024, time.March, 5), Value: testingpkg.Dec("0.9")},
		{Date: d(2024, time.March, 6), Value: testingpkg.Dec("1.3")},
		{Date: d(2024, time.March, 7), Value: testingpkg.Dec("1.1")},
	}

	dd, ok := MaxDrawdown(series)
	require.True(t, ok)
	assert.Equal(t, "-0.25", dd.Value.String())
	assert.Equal(t, "2024-03-04", domain.FormatDate(dd.PeakDate))
	assert.Equal(t, "2024-03-05", domain.FormatDate(dd.TroughDate))

	rising := []domain.PricePoint{
		{Date: d(2024, time.March, 1), Value: testingpkg.Dec("1.0")},
		{Date: d(2024, time.March, 4), Value: testingpkg.Dec("1.1")},
	}
	dd, ok = MaxDrawdown(rising)
	require.True(t, ok)
	assert.True(t, dd.Value.IsZero())

	_, ok = MaxDrawdown(series[:1])
	assert.False(t, ok)
}

func TestCalculator_Summarize(t *testing.T) {
	d := testingpkg.Date
	rows := []domain.Transaction{
		row(domain.TransactionBuy, domain.StatusConfirmed, "1000", d(2023, time.January, 1)),
		row(domain.TransactionSell, domain.StatusConfirmed, "300", d(2023, time.July, 1)),
		row(domain.TransactionSkip, domain.StatusConfirmed, "1000", d(2023, time.August, 1)),
		row(domain.TransactionBuy, domain.StatusVoid, "5000", d(2023, time.September, 1)),
	}
	series := map[string][]domain.PricePoint{
		"equity": {
			{Date: d(2023, time.January, 2), Value: testingpkg.Dec("2")},
			{Date: d(2023, time.January, 3), Value: testingpkg.Dec("1.5")},
		},
		"bond": {{Date: d(2023, time.January, 2), Value: testingpkg.Dec("1")}},
	}

	s := NewCalculator(zerolog.Nop()).Summarize(rows, testingpkg.Dec("900"), d(2024, time.January, 1), series)

	assert.Equal(t, "1000", s.Invested.String())
	assert.Equal(t, "300", s.Redeemed.String())
	assert.Equal(t, "200", s.NetGain.String())
	assert.Equal(t, "0.2", s.TotalReturn.String())
	assert.Len(t, s.Flows, 2)
	require.NotNil(t, s.XIRR)
	assert.Greater(t, *s.XIRR, 0.15)
	assert.Less(t, *s.XIRR, 0.30)

	require.Contains(t, s.MaxDrawdowns, "equity")
	assert.Equal(t, "-0.25", s.MaxDrawdowns["equity"].Value.String())
	assert.NotContains(t, s.MaxDrawdowns, "bond")
}

func TestCalculator_SummarizeEmptyLedger(t *testing.T) {
	s := NewCalculator(zerolog.Nop()).Summarize(nil, decimal.Zero, testingpkg.Date(2024, time.March, 5), nil)

	assert.True(t, s.Invested.IsZero())
	assert.True(t, s.TotalReturn.IsZero())
	assert.Nil(t, s.XIRR)
	assert.Empty(t, s.Flows)
	assert.Nil(t, s.MaxDrawdowns)
}
