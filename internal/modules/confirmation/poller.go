// Package confirmation backfills pending ledger rows once the fund's official valuation
// for the expected valuation date has been published.
package confirmation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/modules/ledger"
)

// OfficialQuoter returns the latest published valuation of a fund
type OfficialQuoter interface {
	GetOfficialValuation(ctx context.Context, fundCode string) (domain.Quote, error)
}

// Ledger is the subset of the ledger store the poller needs
type Ledger interface {
	LoadByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error)
	UpdateMatching(ctx context.Context, predicate ledger.Predicate, mutation ledger.Mutation, description string) ([]domain.Transaction, error)
}

// Poller confirms pending transactions
type Poller struct {
	ledger Ledger
	quotes OfficialQuoter
	log    zerolog.Logger
}

// NewPoller creates a confirmation poller
func NewPoller(l Ledger, quotes OfficialQuoter, log zerolog.Logger) *Poller {
	return &Poller{
		ledger: l,
		quotes: quotes,
		log:    log.With().Str("service", "confirmation").Logger(),
	}
}

// Due returns pending rows whose expected confirm date is on or before today
func Due(rows []domain.Transaction, today time.Time) []domain.Transaction {
	day := domain.DateOf(today)
	var out []domain.Transaction
	for _, tx := range rows {
		if tx.Status != domain.StatusPending || tx.ExpectedConfirmDate.IsZero() {
			continue
		}
		if !domain.DateOf(tx.ExpectedConfirmDate).After(day) {
			out = append(out, tx)
		}
	}
	return out
}

// Poll confirms every due row whose official valuation has caught up with its expected
// valuation date, in a single ledger write. It returns the confirmed rows.
func (p *Poller) Poll(ctx context.Context, today time.Time) ([]domain.Transaction, error) {
	pending, err := p.ledger.LoadByStatus(ctx, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("load pending transactions: %w", err)
	}
	due := Due(pending, today)
	if len(due) == 0 {
		p.log.Debug().Int("pending", len(pending)).Msg("Nothing due for confirmation")
		return nil, nil
	}

	quotes := p.fetchQuotes(ctx, due)
	ready := make(map[string]domain.Quote)
	for _, tx := range due {
		q, ok := quotes[tx.FundCode]
		if !ok {
			continue
		}
		expected := tx.ExpectedValuationDate
		if expected.IsZero() {
			expected = tx.TradeDate
		}
		if domain.FormatDate(q.AsOfDate) < domain.FormatDate(expected) {
			p.log.Info().
				Str("tx_id", tx.ID).
				Str("valuation_date", domain.FormatDate(q.AsOfDate)).
				Str("expected", domain.FormatDate(expected)).
				Msg("Official valuation not published yet")
			continue
		}
		ready[tx.ID] = q
	}
	if len(ready) == 0 {
		return nil, nil
	}

	confirmed, err := p.ledger.UpdateMatching(ctx,
		func(tx domain.Transaction) bool {
			_, ok := ready[tx.ID]
			return ok && tx.Status == domain.StatusPending
		},
		func(tx *domain.Transaction) {
			applyConfirmation(tx, ready[tx.ID])
		},
		fmt.Sprintf("confirm %d transactions", len(ready)),
	)
	if err != nil {
		return nil, fmt.Errorf("confirm transactions: %w", err)
	}

	for _, tx := range confirmed {
		p.log.Info().
			Str("tx_id", tx.ID).
			Str("fund_code", tx.FundCode).
			Str("shares", tx.Shares.StringFixed(2)).
			Msg("Transaction confirmed")
	}
	return confirmed, nil
}

func (p *Poller) fetchQuotes(ctx context.Context, due []domain.Transaction) map[string]domain.Quote {
	codes := make(map[string]struct{})
	for _, tx := range due {
		codes[tx.FundCode] = struct{}{}
	}
	sorted := make([]string, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)

	out := make(map[string]domain.Quote, len(sorted))
	for _, code := range sorted {
		q, err := p.quotes.GetOfficialValuation(ctx, code)
		if err != nil {
			p.log.Warn().Err(err).Str("fund_code", code).Msg("Failed to fetch official valuation")
			continue
		}
		out[code] = q
	}
	return out
}

func applyConfirmation(tx *domain.Transaction, q domain.Quote) {
	date := domain.DateOf(q.AsOfDate)
	tx.Status = domain.StatusConfirmed
	tx.ConfirmDate = &date
	tx.ValuationKind = domain.ValuationOfficial
	if tx.Shares.IsZero() {
		tx.Shares = SharesFor(tx.Amount, q.Value)
	}
}

// SharesFor is the share count an amount buys at value, rounded to cents
func SharesFor(amount, value decimal.Decimal) decimal.Decimal {
	if !value.IsPositive() {
		return decimal.Zero
	}
	return amount.Div(value).Round(2)
}
