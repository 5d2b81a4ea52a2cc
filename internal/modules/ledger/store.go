// Package ledger is the transaction ledger: a flat CSV document in a remote versioned
// store, mutated only through compare-and-swap read-modify-write cycles.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/docstore"
	"github.com/aristath/fundledger/internal/domain"
)

// Predicate selects ledger rows
type Predicate func(tx domain.Transaction) bool

// Mutation edits a selected row in place
type Mutation func(tx *domain.Transaction)

// Store is the transaction ledger.
//
// Every mutation re-reads the whole document, recomputes the change from the
// caller's intent and writes it back conditioned on the version read. Two
// writers always contend on the same version token; the conflict retry in
// docstore.Mutator is the only concurrency control.
type Store struct {
	mutator *docstore.Mutator
	path    string
	codec   *Codec
	log     zerolog.Logger
	now     func() time.Time
}

// NewStore creates a ledger stored at path
func NewStore(mutator *docstore.Mutator, path string, loc *time.Location, log zerolog.Logger) *Store {
	return &Store{
		mutator: mutator,
		path:    path,
		codec:   NewCodec(loc),
		log:     log.With().Str("repository", "ledger").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the clock used for ids and audit columns
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Path returns the ledger document path
func (s *Store) Path() string {
	return s.path
}

// LoadTable reads and decodes the ledger. A missing document is an empty ledger.
func (s *Store) LoadTable(ctx context.Context) (*Table, error) {
	doc, err := s.mutator.Store().Read(ctx, s.path)
	if errors.Is(err, domain.ErrNotFound) {
		return &Table{Header: append([]string(nil), Columns...)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	table, err := s.codec.Decode(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	for _, row := range table.Invalid() {
		s.log.Warn().Err(row.Err).Msg("Skipping malformed ledger row")
	}
	return table, nil
}

// LoadAll returns every valid row in file order. Malformed rows are logged and skipped.
func (s *Store) LoadAll(ctx context.Context) ([]domain.Transaction, error) {
	table, err := s.LoadTable(ctx)
	if err != nil {
		return nil, err
	}
	return table.Transactions(), nil
}

// LoadByStatus returns the valid rows with the given status
func (s *Store) LoadByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Transaction
	for _, tx := range all {
		if tx.Status == status {
			out = append(out, tx)
		}
	}
	return out, nil
}

// FindByID returns the row with id, or an error wrapping domain.ErrNotFound
func (s *Store) FindByID(ctx context.Context, id string) (domain.Transaction, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	for _, tx := range all {
		if tx.ID == id {
			return tx, nil
		}
	}
	return domain.Transaction{}, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
}

// Append adds a row and returns its id. An empty id is generated.
func (s *Store) Append(ctx context.Context, tx domain.Transaction) (string, error) {
	now := s.now()
	if tx.ID == "" {
		tx.ID = NewTransactionID(now)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	if err := validateNew(tx); err != nil {
		return "", err
	}

	description := fmt.Sprintf("append %s %s %s", tx.Type, tx.FundCode, tx.ID)
	_, err := s.mutator.Apply(ctx, s.path, description, func(current []byte) ([]byte, error) {
		table, err := s.codec.Decode(current)
		if err != nil {
			return nil, err
		}
		for _, row := range table.Rows {
			if row.Valid() && row.Tx.ID == tx.ID {
				return nil, fmt.Errorf("transaction %s already exists: %w", tx.ID, domain.ErrValidation)
			}
		}
		table.Rows = append(table.Rows, Row{Tx: tx})
		return s.codec.Encode(table)
	})
	if err != nil {
		return "", fmt.Errorf("append transaction: %w", err)
	}
	return tx.ID, nil
}

// UpdateWhere applies mutation to every valid row matching predicate and returns how many
// rows changed. Nothing is written when no row matches.
func (s *Store) UpdateWhere(ctx context.Context, predicate Predicate, mutation Mutation, description string) (int, error) {
	updated, err := s.UpdateMatching(ctx, predicate, mutation, description)
	return len(updated), err
}

// UpdateMatching is UpdateWhere returning the rows as written. On a retried write the
// result reflects the attempt that was accepted.
func (s *Store) UpdateMatching(ctx context.Context, predicate Predicate, mutation Mutation, description string) ([]domain.Transaction, error) {
	var updated []domain.Transaction
	_, err := s.mutator.Apply(ctx, s.path, description, func(current []byte) ([]byte, error) {
		updated = updated[:0]
		table, err := s.codec.Decode(current)
		if err != nil {
			return nil, err
		}
		now := s.now()
		for i := range table.Rows {
			row := &table.Rows[i]
			if !row.Valid() || !predicate(row.Tx) {
				continue
			}
			mutation(&row.Tx)
			row.Tx.UpdatedAt = now
			updated = append(updated, row.Tx)
		}
		if len(updated) == 0 {
			return nil, docstore.ErrUnchanged
		}
		return s.codec.Encode(table)
	})
	if err != nil {
		return nil, fmt.Errorf("update ledger: %w", err)
	}
	return updated, nil
}

// SoftDelete marks a row void. Rows are never physically removed.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	n, err := s.UpdateWhere(ctx,
		func(tx domain.Transaction) bool { return tx.ID == id && tx.Status != domain.StatusVoid },
		func(tx *domain.Transaction) { tx.Status = domain.StatusVoid },
		"void "+id,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.FindByID(ctx, id); err != nil {
			return err
		}
		s.log.Debug().Str("tx_id", id).Msg("Transaction already void")
	}
	return nil
}

// Confirm records the confirmed shares of a pending row
func (s *Store) Confirm(ctx context.Context, id string, shares decimal.Decimal, confirmDate time.Time, kind domain.ValuationKind) error {
	if shares.IsNegative() {
		return fmt.Errorf("shares %s must not be negative: %w", shares, domain.ErrValidation)
	}
	n, err := s.UpdateWhere(ctx,
		func(tx domain.Transaction) bool { return tx.ID == id && tx.Status == domain.StatusPending },
		func(tx *domain.Transaction) {
			d := domain.DateOf(confirmDate)
			tx.Shares = shares
			tx.Status = domain.StatusConfirmed
			tx.ConfirmDate = &d
			tx.ValuationKind = kind
		},
		"confirm "+id,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		existing, err := s.FindByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("transaction %s is %s, not pending: %w", id, existing.Status, domain.ErrValidation)
	}
	return nil
}

// Skip records a planned recurring investment that was deliberately not executed
func (s *Store) Skip(ctx context.Context, fundCode string, date time.Time, amount decimal.Decimal) (string, error) {
	day := domain.DateOf(date)
	return s.Append(ctx, domain.Transaction{
		TradeDate:     day,
		FundCode:      fundCode,
		Amount:        amount,
		Shares:        decimal.Zero,
		Type:          domain.TransactionSkip,
		Status:        domain.StatusSkipped,
		ValuationKind: domain.ValuationEstimate,
	})
}

// NewTransactionID returns tx_<yyyymmdd>_<hhmmss>_<6 hex>
func NewTransactionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("tx_%s_%s", now.Format("20060102_150405"), suffix)
}

func validateNew(tx domain.Transaction) error {
	switch {
	case tx.FundCode == "":
		return fmt.Errorf("fund code is required: %w", domain.ErrValidation)
	case !tx.Type.Valid():
		return fmt.Errorf("unknown transaction type %q: %w", tx.Type, domain.ErrValidation)
	case !tx.Status.Valid():
		return fmt.Errorf("unknown status %q: %w", tx.Status, domain.ErrValidation)
	case tx.Amount.IsNegative():
		return fmt.Errorf("amount %s must not be negative: %w", tx.Amount, domain.ErrValidation)
	case tx.TradeDate.IsZero():
		return fmt.Errorf("trade date is required: %w", domain.ErrValidation)
	}
	return nil
}
