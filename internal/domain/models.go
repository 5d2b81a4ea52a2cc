// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger row
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
	// TransactionSkip marks a planned recurring investment that was deliberately not executed.
	// Skip rows never contribute to positions or cash flows.
	TransactionSkip TransactionType = "skip"
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionBuy, TransactionSell, TransactionSkip:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a ledger row
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusSkipped   TransactionStatus = "skipped"
	// StatusVoid is the soft-delete terminal state. Rows are never physically removed.
	StatusVoid TransactionStatus = "void"
)

// Valid reports whether s is a known status
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusSkipped, StatusVoid:
		return true
	}
	return false
}

// ValuationKind tags whether a value reflects an intraday estimate or an official daily print
type ValuationKind string

const (
	ValuationEstimate ValuationKind = "estimate"
	ValuationOfficial ValuationKind = "official"
)

// CutoffFlag records on which side of the daily cutoff an order was submitted
type CutoffFlag string

const (
	PreCutoff  CutoffFlag = "pre-cutoff"
	PostCutoff CutoffFlag = "post-cutoff"
)

// FundCategory determines which settlement rule applies to a fund
type FundCategory string

const (
	CategoryDomestic FundCategory = "domestic"
	// CategoryCrossBorder funds price in a foreign market after the domestic close (QDII)
	CategoryCrossBorder FundCategory = "cross-border"
)

// UnknownAssetClass is used for funds missing from the fund-to-class configuration
const UnknownAssetClass = "Unknown"

// Transaction is one row of the ledger
type Transaction struct {
	ID                    string            `json:"tx_id"`
	TradeDate             time.Time         `json:"trade_date"`
	FundCode              string            `json:"fund_code"`
	Amount                decimal.Decimal   `json:"amount"` // always non-negative, direction is Type
	Shares                decimal.Decimal   `json:"shares"` // zero until confirmed
	Type                  TransactionType   `json:"type"`
	Status                TransactionStatus `json:"status"`
	ConfirmDate           *time.Time        `json:"confirm_date,omitempty"`
	ExpectedValuationDate time.Time         `json:"expected_valuation_date"`
	ExpectedConfirmDate   time.Time         `json:"expected_confirm_date"`
	ValuationKind         ValuationKind     `json:"valuation_kind"`
	SubmittedAt           time.Time         `json:"submitted_at"`
	Cutoff                CutoffFlag        `json:"cutoff"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// CountsTowardPosition reports whether the row is folded into positions.
// Only confirmed, non-skip rows count.
func (t Transaction) CountsTowardPosition() bool {
	return t.Status == StatusConfirmed && t.Type != TransactionSkip
}

// SignedShares returns +shares for buys and -shares for sells
func (t Transaction) SignedShares() decimal.Decimal {
	switch t.Type {
	case TransactionBuy:
		return t.Shares
	case TransactionSell:
		return t.Shares.Neg()
	}
	return decimal.Zero
}

// Position is a per-fund holding rebuilt from the ledger on every aggregation run
type Position struct {
	FundCode              string           `json:"fundCode"`
	Shares                decimal.Decimal  `json:"shares"`
	AssetClass            string           `json:"assetClass"`
	FundCategory          FundCategory     `json:"fundCategory"`
	OfficialValuation     *decimal.Decimal `json:"officialValuation,omitempty"`
	OfficialValuationDate *time.Time       `json:"officialValuationDate,omitempty"`
	EstimateValuation     *decimal.Decimal `json:"estimateValuation,omitempty"`
	EstimateTime          *time.Time       `json:"estimateTime,omitempty"`
	MarketValueOfficial   decimal.Decimal  `json:"marketValueOfficial"`
	MarketValueEstimate   decimal.Decimal  `json:"marketValueEstimate"`
}

// HoldingsSnapshot is the persisted result of one aggregation run
type HoldingsSnapshot struct {
	GeneratedAt        time.Time                  `json:"generatedAt"`
	TotalValueOfficial decimal.Decimal            `json:"totalValueOfficial"`
	TotalValueEstimate decimal.Decimal            `json:"totalValueEstimate"`
	WeightsOfficial    map[string]decimal.Decimal `json:"weightsOfficial"`
	WeightsEstimate    map[string]decimal.Decimal `json:"weightsEstimate"`
	Positions          map[string]*Position       `json:"positions"`
}

// Quote is a valuation for one fund, either an official daily print or an intraday estimate.
// Estimate quotes always carry the prior official print as context.
type Quote struct {
	FundCode          string          `json:"fund_code"`
	Kind              ValuationKind   `json:"kind"`
	Value             decimal.Decimal `json:"value"`
	AsOfDate          time.Time       `json:"as_of_date"`           // official: valuation date
	AsOfTime          time.Time       `json:"as_of_time,omitempty"` // estimate: estimate timestamp
	LastOfficialValue decimal.Decimal `json:"last_official_value,omitempty"`
	LastOfficialDate  time.Time       `json:"last_official_date,omitempty"`
}

// PricePoint is one observation of a valuation series
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}
