package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType identifies the policy that produced a signal
type SignalType string

const (
	SignalRebalanceLight  SignalType = "rebalance_light"
	SignalRebalanceStrong SignalType = "rebalance_strong"
	SignalTacticalAdd     SignalType = "tactical_add"
	SignalTacticalReduce  SignalType = "tactical_reduce"
)

// Priority ranks signal types for conflict resolution: strong > light > tactical
func (t SignalType) Priority() int {
	switch t {
	case SignalRebalanceStrong:
		return 3
	case SignalRebalanceLight:
		return 2
	case SignalTacticalAdd, SignalTacticalReduce:
		return 1
	}
	return 0
}

// IsTactical reports whether the type belongs to the tactical policy
func (t SignalType) IsTactical() bool {
	return t == SignalTacticalAdd || t == SignalTacticalReduce
}

// Action is the suggested trade direction
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Urgency grades how soon a signal should be acted upon
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Signal is a trade recommendation for one asset class. Signals are created fresh on every run.
type Signal struct {
	SignalType   SignalType       `json:"signalType"`
	AssetClass   string           `json:"assetClass"`
	Action       Action           `json:"action"`
	Amount       *decimal.Decimal `json:"amount"`
	Reason       string           `json:"reason"`
	Urgency      Urgency          `json:"urgency"`
	RiskNote     string           `json:"riskNote,omitempty"`
	TriggeredAt  time.Time        `json:"triggeredAt"`
	IsPrimary    bool             `json:"isPrimary"`
	ConflictWith []SignalType     `json:"conflictWith,omitempty"`
}

// CooldownKey builds the "{assetClass}_{signalType}" key used by the cooldown tracker
func CooldownKey(assetClass string, signalType SignalType) string {
	return assetClass + "_" + string(signalType)
}

// CooldownEntry suppresses one (asset class, signal type) pair until CooldownUntil
type CooldownEntry struct {
	TriggeredAt   string `json:"triggeredAt"`
	CooldownUntil string `json:"cooldownUntil"`
	Days          int    `json:"days"`
}

// SignalRecord is one entry of the bounded signal history
type SignalRecord struct {
	Signal
	Executed   bool      `json:"executed"`
	RecordedAt time.Time `json:"recordedAt"`
}
