package recordstore

import (
	"database/sql"
	"encoding/json"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE records (key TEXT PRIMARY KEY, data TEXT NOT NULL, updated_at INTEGER NOT NULL);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every :memory: connection is a separate database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

type sample struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// storeFactories runs each contract test against both adapters
func storeFactories(t *testing.T) map[string]func() RawStore {
	return map[string]func() RawStore{
		"sqlite": func() RawStore { return NewSQLiteStore(setupTestDB(t), zerolog.Nop()) },
		"memory": func() RawStore { return NewMemoryStore() },
	}
}

func TestStore_GetMissingKey(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			var out []sample
			found, err := s.Get("accounts", &out)
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, out)

			raw, err := s.GetRaw("accounts")
			require.NoError(t, err)
			assert.Nil(t, raw)
		})
	}
}

func TestStore_SetAndGet(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			in := []sample{{ID: "default", Name: "Default"}, {ID: "a2", Name: "Futu"}}
			require.NoError(t, s.Set("accounts", in))

			var out []sample
			found, err := s.Get("accounts", &out)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, in, out)

			// overwrite replaces the whole document
			require.NoError(t, s.Set("accounts", []sample{{ID: "x"}}))
			_, err = s.Get("accounts", &out)
			require.NoError(t, err)
			assert.Len(t, out, 1)
		})
	}
}

func TestStore_SetManyAndKeys(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			require.NoError(t, s.SetMany(map[string]json.RawMessage{
				"stocks":      json.RawMessage(`[]`),
				"fundRecords": json.RawMessage(`[{"id":"f1"}]`),
			}))

			keys, err := s.Keys()
			require.NoError(t, err)
			assert.Equal(t, []string{"fundRecords", "stocks"}, keys)

			raw, err := s.GetRaw("fundRecords")
			require.NoError(t, err)
			assert.JSONEq(t, `[{"id":"f1"}]`, string(raw))
		})
	}
}

func TestStore_DecodeErrorIsReported(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			require.NoError(t, s.SetRaw("accounts", json.RawMessage(`{"not":"a list"}`)))

			var out []sample
			_, err := s.Get("accounts", &out)
			assert.Error(t, err)
		})
	}
}

func TestMemoryStore_IsolatesCallerBuffers(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte(`[1]`)
	require.NoError(t, s.SetRaw("k", buf))
	buf[1] = '2'

	raw, err := s.GetRaw("k")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(raw))
}
