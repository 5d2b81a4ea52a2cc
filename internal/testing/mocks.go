// Package testing provides test doubles and fixtures shared across packages.
package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/fundledger/internal/docstore"
	"github.com/aristath/fundledger/internal/domain"
)

// FlakyStore wraps a Store and rejects the next N writes with a version conflict,
// simulating another process writing in between our read and write.
type FlakyStore struct {
	docstore.Store

	mu        sync.Mutex
	conflicts int
	writes    int
	reads     int
}

// NewFlakyStore wraps inner, failing the first conflicts writes
func NewFlakyStore(inner docstore.Store, conflicts int) *FlakyStore {
	return &FlakyStore{Store: inner, conflicts: conflicts}
}

// SetConflicts resets the number of upcoming conflicting writes
func (s *FlakyStore) SetConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

// Read counts and delegates
func (s *FlakyStore) Read(ctx context.Context, path string) (*docstore.Document, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	return s.Store.Read(ctx, path)
}

// Write fails with domain.ErrConflict while conflicts remain, then delegates
func (s *FlakyStore) Write(ctx context.Context, path string, content []byte, message, version string) (string, error) {
	s.mu.Lock()
	s.writes++
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return "", fmt.Errorf("injected conflict on %s: %w", path, domain.ErrConflict)
	}
	s.mu.Unlock()
	return s.Store.Write(ctx, path, content, message, version)
}

// Writes returns the number of write attempts seen
func (s *FlakyStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Reads returns the number of reads seen
func (s *FlakyStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// RacingStore performs a competing write through inner right before each of the
// next N writes, so the caller's version token is genuinely stale.
type RacingStore struct {
	docstore.Store

	mu    sync.Mutex
	races int
	race  func(ctx context.Context, inner docstore.Store, path string) error
}

// NewRacingStore wraps inner; race runs before each of the first races writes
func NewRacingStore(inner docstore.Store, races int, race func(ctx context.Context, inner docstore.Store, path string) error) *RacingStore {
	return &RacingStore{Store: inner, races: races, race: race}
}

// Write lets the competing writer in first while races remain
func (s *RacingStore) Write(ctx context.Context, path string, content []byte, message, version string) (string, error) {
	s.mu.Lock()
	runRace := s.races > 0
	if runRace {
		s.races--
	}
	s.mu.Unlock()

	if runRace {
		if err := s.race(ctx, s.Store, path); err != nil {
			return "", fmt.Errorf("competing write: %w", err)
		}
	}
	return s.Store.Write(ctx, path, content, message, version)
}

// ErrorStore fails every call with err
type ErrorStore struct {
	Err error
}

// Read fails with Err
func (s ErrorStore) Read(context.Context, string) (*docstore.Document, error) {
	return nil, s.Err
}

// Write fails with Err
func (s ErrorStore) Write(context.Context, string, []byte, string, string) (string, error) {
	return "", s.Err
}
