package testing

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/domain"
)

// PortfolioYAML is a two-class portfolio with one cross-border fund
const PortfolioYAML = `
asset_classes:
  - name: equity
    target: 0.75
    funds:
      - code: "000051"
        name: CSI 300 Index
      - code: "050025"
        name: S&P 500 QDII
        category: cross-border
  - name: bond
    target: 0.25
    funds:
      - code: "000186"
        name: Treasury Bond
thresholds:
  rebalance_light: 0.05
  rebalance_strong: 0.20
  tactical_drawdown: 0.10
  tactical_profit: 0.15
`

// NewPortfolioConfig parses PortfolioYAML and panics on error
func NewPortfolioConfig() *config.PortfolioConfig {
	cfg, err := config.ParsePortfolio([]byte(PortfolioYAML))
	if err != nil {
		panic(fmt.Sprintf("fixture portfolio config: %v", err))
	}
	return cfg
}

// Date builds a UTC calendar date
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Dec parses a decimal literal and panics on error
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var txSeq atomic.Int64

// NewTransaction builds a ledger row with sensible defaults for the remaining fields
func NewTransaction(fundCode string, typ domain.TransactionType, status domain.TransactionStatus, amount, shares string) domain.Transaction {
	seq := txSeq.Add(1)
	tradeDate := Date(2024, time.March, 4)
	tx := domain.Transaction{
		ID:                    fmt.Sprintf("tx_20240304_100000_%06d", seq),
		TradeDate:             tradeDate,
		FundCode:              fundCode,
		Amount:                Dec(amount),
		Shares:                Dec(shares),
		Type:                  typ,
		Status:                status,
		ExpectedValuationDate: tradeDate,
		ExpectedConfirmDate:   tradeDate.AddDate(0, 0, 1),
		ValuationKind:         domain.ValuationEstimate,
		SubmittedAt:           tradeDate.Add(10 * time.Hour),
		Cutoff:                domain.PreCutoff,
		CreatedAt:             tradeDate.Add(10 * time.Hour),
		UpdatedAt:             tradeDate.Add(10 * time.Hour),
	}
	if status == domain.StatusConfirmed {
		confirm := tradeDate.AddDate(0, 0, 1)
		tx.ConfirmDate = &confirm
		tx.ValuationKind = domain.ValuationOfficial
	}
	return tx
}
