package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "documents.db"),
		Profile: ProfileLedger,
		Name:    "documents",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	var count int
	err := db.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('documents', 'document_revisions')",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageSize, int64(0))
	assert.Equal(t, "documents", db.Name())
}

func TestBuildConnectionString(t *testing.T) {
	plain := buildConnectionString("/data/documents.db", ProfileLedger)
	assert.True(t, strings.HasPrefix(plain, "/data/documents.db?_pragma=journal_mode(WAL)&"))
	assert.Contains(t, plain, "_pragma=synchronous(FULL)")
	assert.Equal(t, 1, strings.Count(plain, "?"))

	uri := buildConnectionString("file:ledger?mode=memory&cache=shared", ProfileStandard)
	assert.True(t, strings.HasPrefix(uri, "file:ledger?mode=memory&cache=shared&_pragma=journal_mode(WAL)&"))
	assert.Contains(t, uri, "_pragma=synchronous(NORMAL)")
	assert.Equal(t, 1, strings.Count(uri, "?"))
}

func TestNew_InMemoryURIWithQuery(t *testing.T) {
	db, err := New(Config{
		Path: "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared",
		Name: "documents",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	assert.NoError(t, db.HealthCheck(context.Background()))
}
