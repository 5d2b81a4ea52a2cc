package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/docstore"
	"github.com/aristath/fundledger/internal/domain"
)

// MaxHistory bounds the persisted signal history
const MaxHistory = 100

// State is the persisted signal state document
type State struct {
	SignalHistory   []domain.SignalRecord           `json:"signalHistory"`
	CooldownTracker map[string]domain.CooldownEntry `json:"cooldownTracker"`
}

func newState() *State {
	return &State{
		SignalHistory:   []domain.SignalRecord{},
		CooldownTracker: make(map[string]domain.CooldownEntry),
	}
}

// IsCooling reports whether today is before the key's cooldownUntil date
func (s *State) IsCooling(assetClass string, signalType domain.SignalType, today time.Time) bool {
	entry, ok := s.CooldownTracker[domain.CooldownKey(assetClass, signalType)]
	if !ok || entry.CooldownUntil == "" {
		return false
	}
	until, err := domain.ParseDate(entry.CooldownUntil, today.Location())
	if err != nil {
		return false
	}
	return domain.DateOf(today).Before(until)
}

// CooldownStore persists signal history and cooldowns through the document store.
// It caches the last state it read or wrote so IsCooling needs no I/O.
type CooldownStore struct {
	mutator *docstore.Mutator
	path    string
	days    config.CooldownDaysConfig
	log     zerolog.Logger

	mu    sync.RWMutex
	state *State
}

// NewCooldownStore creates a store for the state document at path
func NewCooldownStore(mutator *docstore.Mutator, path string, days config.CooldownDaysConfig, log zerolog.Logger) *CooldownStore {
	return &CooldownStore{
		mutator: mutator,
		path:    path,
		days:    days,
		log:     log.With().Str("repository", "cooldown").Logger(),
		state:   newState(),
	}
}

// Load reads the state document and refreshes the cache. A missing document is an empty state.
func (s *CooldownStore) Load(ctx context.Context) (*State, error) {
	doc, err := s.mutator.Store().Read(ctx, s.path)
	var content []byte
	switch {
	case err == nil:
		content = doc.Content
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("load signal state: %w", err)
	}

	state, err := decodeState(content)
	if err != nil {
		return nil, err
	}
	s.setCache(state)
	return state, nil
}

// IsCooling checks the cached state
func (s *CooldownStore) IsCooling(assetClass string, signalType domain.SignalType, today time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsCooling(assetClass, signalType, today)
}

// CooldownDays returns the cooldown length for a signal type
func (s *CooldownStore) CooldownDays(t domain.SignalType) int {
	switch t {
	case domain.SignalRebalanceStrong:
		return s.days.Strong
	case domain.SignalRebalanceLight:
		return s.days.Light
	}
	return s.days.Tactical
}

// Record appends the signal to the history and, when executed, starts its cooldown
func (s *CooldownStore) Record(ctx context.Context, signal domain.Signal, executed bool, now time.Time) error {
	var written *State
	description := fmt.Sprintf("record %s %s executed=%t", signal.AssetClass, signal.SignalType, executed)

	_, err := s.mutator.Apply(ctx, s.path, description, func(current []byte) ([]byte, error) {
		state, err := decodeState(current)
		if err != nil {
			return nil, err
		}

		state.SignalHistory = append(state.SignalHistory, domain.SignalRecord{
			Signal:     signal,
			Executed:   executed,
			RecordedAt: now,
		})
		if n := len(state.SignalHistory); n > MaxHistory {
			state.SignalHistory = state.SignalHistory[n-MaxHistory:]
		}

		if executed {
			days := s.CooldownDays(signal.SignalType)
			today := domain.DateOf(now)
			state.CooldownTracker[domain.CooldownKey(signal.AssetClass, signal.SignalType)] = domain.CooldownEntry{
				TriggeredAt:   domain.FormatDate(today),
				CooldownUntil: domain.FormatDate(today.AddDate(0, 0, days)),
				Days:          days,
			}
		}

		written = state
		return json.MarshalIndent(state, "", "  ")
	})
	if err != nil {
		return fmt.Errorf("record signal: %w", err)
	}

	s.setCache(written)
	s.log.Info().
		Str("asset_class", signal.AssetClass).
		Str("signal_type", string(signal.SignalType)).
		Bool("executed", executed).
		Msg("Recorded signal")
	return nil
}

func (s *CooldownStore) setCache(state *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func decodeState(content []byte) (*State, error) {
	state := newState()
	if len(content) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(content, state); err != nil {
		return nil, fmt.Errorf("decode signal state: %w", err)
	}
	if state.CooldownTracker == nil {
		state.CooldownTracker = make(map[string]domain.CooldownEntry)
	}
	if state.SignalHistory == nil {
		state.SignalHistory = []domain.SignalRecord{}
	}
	return state, nil
}
