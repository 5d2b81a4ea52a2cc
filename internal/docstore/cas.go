package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/domain"
)

// DefaultRetryBudget is the number of write attempts per mutation
const DefaultRetryBudget = 5

// ErrUnchanged is returned by a MutateFunc to finish without writing
var ErrUnchanged = errors.New("document unchanged")

// MutateFunc recomputes the next document body from the latest one.
// current is nil when the document does not exist yet. It is called once per
// attempt and must derive its result from current only, never from a previous attempt.
type MutateFunc func(current []byte) ([]byte, error)

// WriteObserver is notified of every write attempt outcome
type WriteObserver interface {
	ObserveWrite(path, outcome string)
}

// Write attempt outcomes reported to WriteObserver
const (
	OutcomeAccepted  = "accepted"
	OutcomeConflict  = "conflict"
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
)

// Mutator runs read-modify-write cycles against a Store, retrying on version conflicts
type Mutator struct {
	store    Store
	budget   int
	observer WriteObserver
	log      zerolog.Logger
}

// NewMutator creates a Mutator. A budget below 1 falls back to DefaultRetryBudget.
func NewMutator(store Store, budget int, observer WriteObserver, log zerolog.Logger) *Mutator {
	if budget < 1 {
		budget = DefaultRetryBudget
	}
	return &Mutator{
		store:    store,
		budget:   budget,
		observer: observer,
		log:      log.With().Str("component", "cas").Logger(),
	}
}

// Store returns the underlying document store
func (m *Mutator) Store() Store {
	return m.store
}

// Budget returns the number of attempts per mutation
func (m *Mutator) Budget() int {
	return m.budget
}

// Apply reads path, applies fn and writes the result conditioned on the version read.
// On conflict it re-reads and re-applies fn. It returns the new version token, or
// an error wrapping domain.ErrExhausted once the budget is spent.
func (m *Mutator) Apply(ctx context.Context, path, description string, fn MutateFunc) (string, error) {
	var lastConflict error

	for attempt := 1; attempt <= m.budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var current []byte
		version := ""
		doc, err := m.store.Read(ctx, path)
		switch {
		case err == nil:
			current, version = doc.Content, doc.Version
		case errors.Is(err, domain.ErrNotFound):
			// first write creates the document
		default:
			m.observe(path, OutcomeError)
			return "", fmt.Errorf("read %s: %w", path, err)
		}

		next, err := fn(current)
		if errors.Is(err, ErrUnchanged) {
			return version, nil
		}
		if err != nil {
			return "", err
		}

		marker := NewWriteMarker()
		message := fmt.Sprintf("%s [tx:%s]", description, marker)

		newVersion, err := m.store.Write(ctx, path, next, message, version)
		if err == nil {
			m.observe(path, OutcomeAccepted)
			m.log.Info().
				Str("path", path).
				Str("marker", marker).
				Int("attempt", attempt).
				Msg(description)
			return newVersion, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			m.observe(path, OutcomeError)
			return "", fmt.Errorf("write %s: %w", path, err)
		}

		lastConflict = err
		m.observe(path, OutcomeConflict)
		m.log.Warn().
			Err(err).
			Str("path", path).
			Str("marker", marker).
			Int("attempt", attempt).
			Int("budget", m.budget).
			Msg("Version conflict, re-reading")
	}

	m.observe(path, OutcomeExhausted)
	return "", fmt.Errorf("%s on %s after %d attempts: %w (last: %w)",
		description, path, m.budget, domain.ErrExhausted, lastConflict)
}

func (m *Mutator) observe(path, outcome string) {
	if m.observer != nil {
		m.observer.ObserveWrite(path, outcome)
	}
}

// NewWriteMarker returns the short marker tagged on each write's change message
func NewWriteMarker() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
