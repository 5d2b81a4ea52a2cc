package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/modules/signals"
)

// CooldownView is one active cooldown as shown to the user
type CooldownView struct {
	Key string `json:"key"`
	domain.CooldownEntry
	Active bool `json:"active"`
}

// SignalService records acted-on signals and exposes the cooldown state
type SignalService struct {
	cooldowns *signals.CooldownStore
	loc       *time.Location
	log       zerolog.Logger
	now       func() time.Time
}

// NewSignalService creates a signal service
func NewSignalService(cooldowns *signals.CooldownStore, loc *time.Location, log zerolog.Logger) *SignalService {
	if loc == nil {
		loc = time.Local
	}
	return &SignalService{
		cooldowns: cooldowns,
		loc:       loc,
		log:       log.With().Str("service", "signal").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the service clock
func (s *SignalService) SetClock(now func() time.Time) {
	s.now = now
}

// Record appends a signal to the history. An executed signal starts its cooldown.
func (s *SignalService) Record(ctx context.Context, signal domain.Signal, executed bool) error {
	if signal.AssetClass == "" || signal.SignalType.Priority() == 0 {
		return fmt.Errorf("%w: signal needs an asset class and a known type", domain.ErrValidation)
	}
	if signal.TriggeredAt.IsZero() {
		signal.TriggeredAt = s.now().In(s.loc)
	}
	if err := s.cooldowns.Record(ctx, signal, executed, s.now().In(s.loc)); err != nil {
		return err
	}
	s.log.Debug().Str("asset_class", signal.AssetClass).Msg("Signal recorded")
	return nil
}

// Cooldowns lists every tracked cooldown, flagging the ones still suppressing signals
func (s *SignalService) Cooldowns(ctx context.Context) ([]CooldownView, error) {
	state, err := s.cooldowns.Load(ctx)
	if err != nil {
		return nil, err
	}
	today := domain.FormatDate(s.now().In(s.loc))
	out := make([]CooldownView, 0, len(state.CooldownTracker))
	for key, entry := range state.CooldownTracker {
		out = append(out, CooldownView{
			Key:           key,
			CooldownEntry: entry,
			Active:        today < entry.CooldownUntil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// History returns recorded signals, newest first, capped at limit when limit > 0
func (s *SignalService) History(ctx context.Context, limit int) ([]domain.SignalRecord, error) {
	state, err := s.cooldowns.Load(ctx)
	if err != nil {
		return nil, err
	}
	n := len(state.SignalHistory)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.SignalRecord, 0, n)
	for i := len(state.SignalHistory) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, state.SignalHistory[i])
	}
	return out, nil
}
