package portfolio

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/docstore"
	"github.com/aristath/fundledger/internal/domain"
)

// SnapshotRepository persists the latest holdings snapshot as a JSON document
type SnapshotRepository struct {
	mutator *docstore.Mutator
	path    string
	log     zerolog.Logger
}

// NewSnapshotRepository creates a repository storing the snapshot at path
func NewSnapshotRepository(mutator *docstore.Mutator, path string, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		mutator: mutator,
		path:    path,
		log:     log.With().Str("repository", "snapshot").Logger(),
	}
}

// Load returns the last saved snapshot. It returns an error wrapping
// domain.ErrNotFound when no refresh has run yet.
func (r *SnapshotRepository) Load(ctx context.Context) (*domain.HoldingsSnapshot, error) {
	doc, err := r.mutator.Store().Read(ctx, r.path)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap domain.HoldingsSnapshot
	if err := json.Unmarshal(doc.Content, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", r.path, err)
	}
	if snap.Positions == nil {
		snap.Positions = make(map[string]*domain.Position)
	}
	return &snap, nil
}

// Save overwrites the stored snapshot
func (r *SnapshotRepository) Save(ctx context.Context, snap *domain.HoldingsSnapshot) error {
	content, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	description := fmt.Sprintf("snapshot %d positions", len(snap.Positions))
	if _, err := r.mutator.Apply(ctx, r.path, description, func([]byte) ([]byte, error) {
		return content, nil
	}); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
