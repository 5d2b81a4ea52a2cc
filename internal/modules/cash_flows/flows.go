// Package cash_flows derives investor cash flows from the ledger and computes return and
// drawdown figures over them.
package cash_flows

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/domain"
)

// Flow is one dated cash movement seen from the investor: buys are negative,
// redemptions and the terminal market value positive.
type Flow struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// FromLedger builds the cash flows of every confirmed buy or sell, ordered by trade date.
// Pending, void and skip rows never produce a flow.
func FromLedger(rows []domain.Transaction) []Flow {
	flows := make([]Flow, 0, len(rows))
	for _, tx := range rows {
		if !tx.CountsTowardPosition() || !tx.Amount.IsPositive() {
			continue
		}
		amount := tx.Amount
		if tx.Type == domain.TransactionBuy {
			amount = amount.Neg()
		}
		flows = append(flows, Flow{Date: domain.DateOf(tx.TradeDate), Amount: amount})
	}
	sort.SliceStable(flows, func(i, j int) bool { return flows[i].Date.Before(flows[j].Date) })
	return flows
}

// WithTerminal appends the current market value as a final inflow on asOf.
// A non-positive value adds nothing.
func WithTerminal(flows []Flow, marketValue decimal.Decimal, asOf time.Time) []Flow {
	if !marketValue.IsPositive() {
		return flows
	}
	out := make([]Flow, len(flows), len(flows)+1)
	copy(out, flows)
	return append(out, Flow{Date: domain.DateOf(asOf), Amount: marketValue})
}
