package recordstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/rs/zerolog"
)

// KeySchemaVersion holds the number of the last applied migration
const KeySchemaVersion = "meta:schemaVersion"

// KeyQuarantine collects records whose type could not be mapped to a known
// transaction type. They are kept for inspection but never replayed.
const KeyQuarantine = "meta:quarantine"

// Migration upgrades stored documents from Version-1 to Version
type Migration struct {
	Version int
	Name    string
	Up      func(s RawStore) error
}

// Migrations is the ordered list applied by Migrate
var Migrations = []Migration{
	{Version: 1, Name: "backfill_frozen_amount", Up: backfillFrozenAmount},
	{Version: 2, Name: "normalize_datetimes", Up: normalizeDatetimes},
	{Version: 3, Name: "quarantine_unknown_types", Up: quarantineUnknownTypes},
	{Version: 4, Name: "backfill_defaults", Up: backfillDefaults},
	{Version: 5, Name: "normalize_position_times", Up: normalizePositionTimes},
}

// SchemaVersion returns the last applied migration (0 for a fresh store)
func SchemaVersion(s RawStore) (int, error) {
	var version int
	if _, err := s.Get(KeySchemaVersion, &version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Migrate applies every pending migration in order, recording the version
// after each one so a failure resumes at the failed step.
func Migrate(s RawStore, log zerolog.Logger) error {
	log = log.With().Str("component", "record_migrations").Logger()

	current, err := SchemaVersion(s)
	if err != nil {
		return err
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}

		log.Info().Int("version", m.Version).Str("migration", m.Name).Msg("Applying record migration")
		if err := m.Up(s); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if err := s.Set(KeySchemaVersion, m.Version); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", m.Version, err)
		}
		current = m.Version
	}

	return nil
}

type document = map[string]interface{}

func loadList(s RawStore, key string) ([]document, error) {
	raw, err := s.GetRaw(key)
	if err != nil || raw == nil {
		return nil, err
	}
	var list []document
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return list, nil
}

func saveList(s RawStore, key string, list []document) error {
	if list == nil {
		list = []document{}
	}
	return s.Set(key, list)
}

func backfillFrozenAmount(s RawStore) error {
	raw, err := s.GetRaw(domain.KeyAccountFunds)
	if err != nil || raw == nil {
		return err
	}

	var funds map[string]document
	if err := json.Unmarshal(raw, &funds); err != nil {
		return fmt.Errorf("failed to decode %s: %w", domain.KeyAccountFunds, err)
	}

	for accountID, f := range funds {
		if _, ok := f["frozenAmount"]; !ok {
			f["frozenAmount"] = document{string(domain.CurrencyHKD): "0"}
		}
		if _, ok := f["accountId"]; !ok {
			f["accountId"] = accountID
		}
	}

	return s.Set(domain.KeyAccountFunds, funds)
}

// Older records used local "2006-01-02 15:04:05" strings and sometimes lacked
// the derived timestamp. Rewrite both to RFC 3339 / unix milliseconds.
func normalizeDatetimes(s RawStore) error {
	for _, key := range []string{domain.KeyFundRecords, domain.KeyBusinessTransactions} {
		list, err := loadList(s, key)
		if err != nil {
			return err
		}
		if list == nil {
			continue
		}

		for _, rec := range list {
			if err := normalizeTimeFields(rec, "datetime", "businessDate", "createTime", "updateTime"); err != nil {
				return err
			}

			if str, ok := rec["datetime"].(string); ok {
				t, _ := time.Parse(time.RFC3339Nano, str)
				if ts, ok := rec["timestamp"].(float64); !ok || ts == 0 {
					rec["timestamp"] = t.UnixMilli()
				}
			}
		}

		if err := saveList(s, key, list); err != nil {
			return err
		}
	}
	return nil
}

// Positions and accounts kept their times as unix milliseconds or local
// strings too; time.Time cannot decode either.
func normalizePositionTimes(s RawStore) error {
	fields := map[string][]string{
		domain.KeyStocks:   {"createTime", "winningTime", "sellTime", "updateTime"},
		domain.KeyAccounts: {"createTime"},
	}
	for _, key := range []string{domain.KeyStocks, domain.KeyAccounts} {
		list, err := loadList(s, key)
		if err != nil {
			return err
		}
		if list == nil {
			continue
		}

		for _, rec := range list {
			if err := normalizeTimeFields(rec, fields[key]...); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}

		if err := saveList(s, key, list); err != nil {
			return err
		}
	}
	return nil
}

// normalizeTimeFields rewrites each field to RFC 3339. Unix milliseconds and
// the legacy layouts are accepted; zero, null and empty values are dropped.
func normalizeTimeFields(rec document, fields ...string) error {
	for _, field := range fields {
		v, present := rec[field]
		if !present {
			continue
		}
		switch v := v.(type) {
		case float64:
			if v == 0 {
				delete(rec, field)
				continue
			}
			rec[field] = time.UnixMilli(int64(v)).Format(time.RFC3339Nano)
		case string:
			if strings.TrimSpace(v) == "" {
				delete(rec, field)
				continue
			}
			t, err := parseLegacyTime(v)
			if err != nil {
				return fmt.Errorf("record %v field %s: %w", rec["id"], field, err)
			}
			rec[field] = t.Format(time.RFC3339Nano)
		case nil:
			delete(rec, field)
		}
	}
	return nil
}

var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

func parseLegacyTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// Records with a type outside the closed set cannot be replayed. They move to
// the quarantine key so the balance does not change and nothing is lost.
func quarantineUnknownTypes(s RawStore) error {
	var quarantine map[string][]document
	if _, err := s.Get(KeyQuarantine, &quarantine); err != nil {
		return err
	}
	if quarantine == nil {
		quarantine = make(map[string][]document)
	}

	known := map[string]func(string) bool{
		domain.KeyFundRecords: func(t string) bool {
			_, err := domain.ParseCashMovementType(t)
			return err == nil
		},
		domain.KeyBusinessTransactions: func(t string) bool {
			_, err := domain.ParseTransactionType(t)
			return err == nil
		},
	}

	moved := 0
	for key, isKnown := range known {
		list, err := loadList(s, key)
		if err != nil {
			return err
		}
		if list == nil {
			continue
		}

		kept := list[:0]
		for _, rec := range list {
			t, _ := rec["type"].(string)
			if isKnown(t) {
				kept = append(kept, rec)
				continue
			}
			quarantine[key] = append(quarantine[key], rec)
			moved++
		}

		if err := saveList(s, key, kept); err != nil {
			return err
		}
	}

	if moved == 0 {
		return nil
	}
	return s.Set(KeyQuarantine, quarantine)
}

func backfillDefaults(s RawStore) error {
	records, err := loadList(s, domain.KeyFundRecords)
	if err != nil {
		return err
	}
	if records != nil {
		for _, rec := range records {
			if v, _ := rec["status"].(string); v == "" {
				rec["status"] = string(domain.StatusCompleted)
			}
			if v, _ := rec["currency"].(string); v == "" {
				rec["currency"] = string(domain.CurrencyHKD)
			}
		}
		if err := saveList(s, domain.KeyFundRecords, records); err != nil {
			return err
		}
	}

	stocks, err := loadList(s, domain.KeyStocks)
	if err != nil {
		return err
	}
	if stocks != nil {
		for _, rec := range stocks {
			if v, _ := rec["status"].(string); v == "" {
				rec["status"] = string(domain.PositionOngoing)
			}
			if v, _ := rec["boardLot"].(float64); v <= 0 {
				rec["boardLot"] = domain.DefaultBoardLot
			}
			if v, _ := rec["accountId"].(string); v == "" {
				rec["accountId"] = domain.DefaultAccountID
			}
		}
		if err := saveList(s, domain.KeyStocks, stocks); err != nil {
			return err
		}
	}

	return nil
}
