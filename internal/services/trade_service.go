// Package services orchestrates the ledger, settlement, portfolio and signal modules
// into the operations exposed over HTTP and run by the scheduler.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/modules/ledger"
	"github.com/aristath/fundledger/internal/modules/settlement"
)

// TradeRequest is a buy or sell submitted by the user
type TradeRequest struct {
	FundCode    string                 `json:"fund_code"`
	Type        domain.TransactionType `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Shares      decimal.Decimal        `json:"shares"`
	SubmittedAt time.Time              `json:"submitted_at"`
}

// TradeService records trades in the ledger with their settlement dates
type TradeService struct {
	ledger    *ledger.Store
	resolver  *settlement.Resolver
	portfolio *config.PortfolioConfig
	log       zerolog.Logger
	now       func() time.Time
}

// NewTradeService creates a trade service
func NewTradeService(l *ledger.Store, resolver *settlement.Resolver, portfolio *config.PortfolioConfig, log zerolog.Logger) *TradeService {
	return &TradeService{
		ledger:    l,
		resolver:  resolver,
		portfolio: portfolio,
		log:       log.With().Str("service", "trade").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the submission clock
func (s *TradeService) SetClock(now func() time.Time) {
	s.now = now
}

// AddTrade validates the request, stamps settlement dates and appends a pending row.
// A calendar gap is logged and the best-effort dates are kept.
func (s *TradeService) AddTrade(ctx context.Context, req TradeRequest) (domain.Transaction, error) {
	categories := s.portfolio.FundCategories()
	category, ok := categories[req.FundCode]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("fund %q is not configured: %w", req.FundCode, domain.ErrValidation)
	}
	if req.Type != domain.TransactionBuy && req.Type != domain.TransactionSell {
		return domain.Transaction{}, fmt.Errorf("trade type must be buy or sell, got %q: %w", req.Type, domain.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("amount must be positive: %w", domain.ErrValidation)
	}
	if req.Shares.IsNegative() {
		return domain.Transaction{}, fmt.Errorf("shares must not be negative: %w", domain.ErrValidation)
	}

	submittedAt := req.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = s.now()
	}

	stamp, err := s.resolver.Stamp(submittedAt, category)
	if err != nil {
		if !errors.Is(err, domain.ErrCalendarGap) {
			return domain.Transaction{}, fmt.Errorf("resolve settlement: %w", err)
		}
		s.log.Warn().Err(err).Str("fund_code", req.FundCode).Msg("Calendar gap, using best-effort dates")
	}

	tx := domain.Transaction{
		TradeDate:             stamp.TradeDay,
		FundCode:              req.FundCode,
		Amount:                req.Amount,
		Shares:                req.Shares,
		Type:                  req.Type,
		Status:                domain.StatusPending,
		ExpectedValuationDate: stamp.Valuation,
		ExpectedConfirmDate:   stamp.Confirm,
		ValuationKind:         domain.ValuationEstimate,
		SubmittedAt:           stamp.SubmittedAt,
		Cutoff:                stamp.Flag,
	}
	id, err := s.ledger.Append(ctx, tx)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.ID = id

	s.log.Info().
		Str("tx_id", id).
		Str("fund_code", tx.FundCode).
		Str("type", string(tx.Type)).
		Str("amount", tx.Amount.StringFixed(2)).
		Str("trade_date", domain.FormatDate(tx.TradeDate)).
		Str("cutoff", string(tx.Cutoff)).
		Msg("Trade recorded")
	return tx, nil
}

// SkipInvestment records a planned recurring investment that was not made
func (s *TradeService) SkipInvestment(ctx context.Context, fundCode string, date time.Time, amount decimal.Decimal) (string, error) {
	if _, ok := s.portfolio.FundClasses()[fundCode]; !ok {
		return "", fmt.Errorf("fund %q is not configured: %w", fundCode, domain.ErrValidation)
	}
	if date.IsZero() {
		date = s.now().In(s.resolver.Location())
	}
	return s.ledger.Skip(ctx, fundCode, date, amount)
}

// DeleteTransaction voids a ledger row
func (s *TradeService) DeleteTransaction(ctx context.Context, id string) error {
	return s.ledger.SoftDelete(ctx, id)
}

// ConfirmShares records the confirmed share count of a pending row by hand
func (s *TradeService) ConfirmShares(ctx context.Context, id string, shares decimal.Decimal, confirmDate time.Time) error {
	if confirmDate.IsZero() {
		confirmDate = s.now().In(s.resolver.Location())
	}
	return s.ledger.Confirm(ctx, id, shares, confirmDate, domain.ValuationOfficial)
}

// ListTransactions returns ledger rows, optionally filtered by status and fund
func (s *TradeService) ListTransactions(ctx context.Context, status domain.TransactionStatus, fundCode string) ([]domain.Transaction, error) {
	rows, err := s.ledger.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(rows))
	for _, tx := range rows {
		if status != "" && tx.Status != status {
			continue
		}
		if fundCode != "" && tx.FundCode != fundCode {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// GetTransaction returns one ledger row
func (s *TradeService) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	return s.ledger.FindByID(ctx, id)
}

// Location returns the market timezone used for dates without a zone
func (s *TradeService) Location() *time.Location {
	return s.resolver.Location()
}
