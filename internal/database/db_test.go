package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "ledger.db"),
		Profile: ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_CreatesFileDatabase(t *testing.T) {
	db := newTestDB(t)

	assert.Equal(t, "ledger", db.Name())
	assert.Equal(t, ProfileLedger, db.Profile())
	assert.True(t, filepath.IsAbs(db.Path()))
	require.NoError(t, db.QuickCheck(context.Background()))
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db, err := New(Config{Path: MemoryPath, Name: "ledger"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestMigrate_CreatesRecordsTable(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	// Running twice must be harmless
	require.NoError(t, db.Migrate())

	_, err := db.Conn().Exec("INSERT INTO records (key, data, updated_at) VALUES ('accounts', '[]', 1)")
	require.NoError(t, err)

	var data string
	require.NoError(t, db.Conn().QueryRow("SELECT data FROM records WHERE key = 'accounts'").Scan(&data))
	assert.Equal(t, "[]", data)
}

func TestMigrate_UnknownDatabase(t *testing.T) {
	db, err := New(Config{Path: MemoryPath, Name: "unknown"})
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db, err := New(Config{Path: MemoryPath, Name: "ledger"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	t.Run("commits on success", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec("INSERT INTO records (key, data, updated_at) VALUES ('a', '1', 1)")
			return err
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM records WHERE key = 'a'").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			if _, err := tx.Exec("INSERT INTO records (key, data, updated_at) VALUES ('b', '1', 1)"); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		var count int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM records WHERE key = 'b'").Scan(&count))
		assert.Equal(t, 0, count)
	})

	t.Run("recovers from panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			panic("unexpected")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")
	})

	t.Run("nil connection", func(t *testing.T) {
		assert.Error(t, WithTransaction(nil, func(tx *sql.Tx) error { return nil }))
	})
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	require.NoError(t, db.HealthCheck(context.Background()))
	require.NoError(t, db.WALCheckpoint(""))
	assert.Error(t, db.WALCheckpoint("BOGUS"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}
