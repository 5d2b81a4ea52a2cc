package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fundledger/internal/domain"
)

func TestMemoryStore_ReadMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Read(context.Background(), "ledger.csv")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_CreateOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v1, err := s.Write(ctx, "ledger.csv", []byte("a"), "create", "")
	require.NoError(t, err)
	assert.Equal(t, ContentVersion([]byte("a")), v1)

	_, err = s.Write(ctx, "ledger.csv", []byte("b"), "create again", "")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMemoryStore_RejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v1, err := s.Write(ctx, "ledger.csv", []byte("a"), "create", "")
	require.NoError(t, err)

	v2, err := s.Write(ctx, "ledger.csv", []byte("b"), "update", v1)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, err = s.Write(ctx, "ledger.csv", []byte("c"), "stale update", v1)
	assert.ErrorIs(t, err, domain.ErrConflict)

	doc, err := s.Read(ctx, "ledger.csv")
	require.NoError(t, err)
	assert.Equal(t, "b", string(doc.Content))
	assert.Equal(t, v2, doc.Version)

	revs := s.Revisions("ledger.csv")
	require.Len(t, revs, 2)
	assert.Equal(t, "update", revs[1].Message)
}

func TestMemoryStore_VersionOnAbsentDocumentConflicts(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Write(context.Background(), "state.json", []byte("{}"), "update", "deadbeef")
	assert.ErrorIs(t, err, domain.ErrConflict)
}
