package confirmation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fundledger/internal/docstore"
	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/modules/ledger"
	testingpkg "github.com/aristath/fundledger/internal/testing"
)

type fakeQuoter struct {
	quotes map[string]domain.Quote
	calls  map[string]int
}

func (f *fakeQuoter) GetOfficialValuation(_ context.Context, code string) (domain.Quote, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[code]++
	q, ok := f.quotes[code]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

func official(code, value string, date time.Time) domain.Quote {
	return domain.Quote{FundCode: code, Kind: domain.ValuationOfficial, Value: testingpkg.Dec(value), AsOfDate: date}
}

func seedLedger(t *testing.T, txs ...domain.Transaction) *ledger.Store {
	t.Helper()
	m := docstore.NewMutator(docstore.NewMemoryStore(), 5, nil, zerolog.Nop())
	store := ledger.NewStore(m, "data/transactions.csv", time.UTC, zerolog.Nop())
	for _, tx := range txs {
		_, err := store.Append(context.Background(), tx)
		require.NoError(t, err)
	}
	return store
}

func TestDue(t *testing.T) {
	onTime := testingpkg.NewTransaction("000051", domain.TransactionBuy, domain.StatusPending, "100", "0")
	later := testingpkg.NewTransaction("000051", domain.TransactionBuy, domain.StatusPending, "100", "0")
	later.ExpectedConfirmDate = testingpkg.Date(2024, time.March, 20)
	done := testingpkg.NewTransaction("000051", domain.TransactionBuy, domain.StatusConfirmed, "100", "10")

	due := Due([]domain.Transaction{onTime, later, done}, testingpkg.Date(2024, time.March, 5))

	require.Len(t, due, 1)
	assert.Equal(t, onTime.ID, due[0].ID)
}

func TestPoll_ConfirmsWhenValuationPublished(t *testing.T) {
	buy := testingpkg.NewTransaction("000051", domain.TransactionBuy, domain.StatusPending, "1000", "0")
	cross := testingpkg.NewTransaction("050025", domain.TransactionBuy, domain.StatusPending, "500", "0")
	cross.ExpectedValuationDate = testingpkg.Date(2024, time.March, 5)
	store := seedLedger(t, buy, cross)

	quoter := &fakeQuoter{quotes: map[string]domain.Quote{
		"000051": official("000051", "1.2300", testingpkg.Date(2024, time.March, 4)),
		"050025": official("050025", "4.10", testingpkg.Date(2024, time.March, 4)),
	}}
	p := NewPoller(store, quoter, zerolog.Nop())

	confirmed, err := p.Poll(context.Background(), testingpkg.Date(2024, time.March, 5))
	require.NoError(t, err)

	require.Len(t, confirmed, 1)
	assert.Equal(t, buy.ID, confirmed[0].ID)
	assert.Equal(t, "813.01", confirmed[0].Shares.StringFixed(2))

	got, err := store.FindByID(context.Background(), buy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Equal(t, domain.ValuationOfficial, got.ValuationKind)
	require.NotNil(t, got.ConfirmDate)
	assert.Equal(t, "2024-03-04", domain.FormatDate(*got.ConfirmDate))

	stillPending, err := store.FindByID(context.Background(), cross.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stillPending.Status)
}

func TestPoll_KeepsExistingShares(t *testing.T) {
	sell := testingpkg.NewTransaction("000186", domain.TransactionSell, domain.StatusPending, "0", "250")
	store := seedLedger(t, sell)
	quoter := &fakeQuoter{quotes: map[string]domain.Quote{
		"000186": official("000186", "1.01", testingpkg.Date(2024, time.March, 4)),
	}}

	confirmed, err := NewPoller(store, quoter, zerolog.Nop()).Poll(context.Background(), testingpkg.Date(2024, time.March, 6))
	require.NoError(t, err)

	require.Len(t, confirmed, 1)
	assert.Equal(t, "250.00", confirmed[0].Shares.StringFixed(2))
}

func TestPoll_QuoteFailureDoesNotStopOthers(t *testing.T) {
	a := testingpkg.NewTransaction("000051", domain.TransactionBuy, domain.StatusPending, "100", "0")
	b := testingpkg.NewTransaction("000186", domain.TransactionBuy, domain.StatusPending, "100", "0")
	c := testingpkg.NewTransaction("000186", domain.TransactionBuy, domain.StatusPending, "200", "0")
	store := seedLedger(t, a, b, c)
	quoter := &fakeQuoter{quotes: map[string]domain.Quote{
		"000186": official("000186", "1.00", testingpkg.Date(2024, time.March, 4)),
	}}

	confirmed, err := NewPoller(store, quoter, zerolog.Nop()).Poll(context.Background(), testingpkg.Date(2024, time.March, 5))
	require.NoError(t, err)

	assert.Len(t, confirmed, 2)
	assert.Equal(t, 1, quoter.calls["000186"])
	assert.Equal(t, 1, quoter.calls["000051"])
}

func TestPoll_NothingDue(t *testing.T) {
	store := seedLedger(t)
	quoter := &fakeQuoter{}

	confirmed, err := NewPoller(store, quoter, zerolog.Nop()).Poll(context.Background(), testingpkg.Date(2024, time.March, 5))
	require.NoError(t, err)
	assert.Empty(t, confirmed)
	assert.Empty(t, quoter.calls)
}

func TestSharesFor(t *testing.T) {
	assert.Equal(t, "813.01", SharesFor(testingpkg.Dec("1000"), testingpkg.Dec("1.23")).StringFixed(2))
	assert.True(t, SharesFor(testingpkg.Dec("1000"), testingpkg.Dec("0")).IsZero())
}
