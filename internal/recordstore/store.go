// Package recordstore persists the tracker's JSON documents (accounts, stocks,
// fund records, account funds, business transactions) under string keys.
package recordstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/ipotracker/internal/database"
	"github.com/aristath/ipotracker/internal/domain"
	"github.com/rs/zerolog"
)

// RawStore is the byte-level view used by migrations and backups.
// GetRaw returns nil, nil for a missing key.
type RawStore interface {
	domain.RecordStore
	GetRaw(key string) (json.RawMessage, error)
	SetRaw(key string, data json.RawMessage) error
	SetMany(values map[string]json.RawMessage) error
}

var (
	_ RawStore = (*SQLiteStore)(nil)
	_ RawStore = (*MemoryStore)(nil)
)

// SQLiteStore keeps each key as a JSON blob in the records table
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteStore creates a store over a database migrated with the ledger schema
func NewSQLiteStore(db *sql.DB, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		log: log.With().Str("repo", "records").Logger(),
	}
}

// Get decodes the document stored under key into dest.
// Returns false, nil if the key doesn't exist.
func (s *SQLiteStore) Get(key string, dest interface{}) (bool, error) {
	raw, err := s.GetRaw(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Set encodes value and upserts it under key
func (s *SQLiteStore) Set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.SetRaw(key, data)
}

// GetRaw returns the stored bytes for key, or nil if missing
func (s *SQLiteStore) GetRaw(key string) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM records WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return json.RawMessage(data), nil
}

// SetRaw upserts pre-encoded bytes under key
func (s *SQLiteStore) SetRaw(key string, data json.RawMessage) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO records (key, data, updated_at) VALUES (?, ?, ?)",
		key, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	s.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("Stored record")
	return nil
}

// SetMany writes several keys in one transaction
func (s *SQLiteStore) SetMany(values map[string]json.RawMessage) error {
	now := time.Now().Unix()
	return database.WithTransaction(s.db, func(tx *sql.Tx) error {
		for key, data := range values {
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO records (key, data, updated_at) VALUES (?, ?, ?)",
				key, string(data), now,
			); err != nil {
				return fmt.Errorf("failed to store %s: %w", key, err)
			}
		}
		return nil
	})
}

// Keys lists every stored key in lexical order
func (s *SQLiteStore) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM records ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}
