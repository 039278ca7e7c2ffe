// Package reliability provides snapshot backups of the record store and the
// maintenance jobs that keep the ledger database healthy.
package reliability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/aristath/ipotracker/internal/recordstore"
	"github.com/rs/zerolog"
)

const (
	backupNamePrefix = "ipotracker-backup-"
	backupNameSuffix = ".msgpack.gz"
	backupTimeLayout = "2006-01-02-150405"

	minRetention = 1
)

// ErrBackupDisabled is returned by the cloud operations when no object store
// is configured
var ErrBackupDisabled = errors.New("backups are not configured")

// SnapshotStore is the record store view needed to take and restore snapshots
type SnapshotStore interface {
	recordstore.RawStore
	Keys() ([]string, error)
}

// BalanceRecomputer rebuilds the derived account funds after a restore
type BalanceRecomputer interface {
	RecomputeAll() (int, error)
}

// BackupInfo describes one uploaded snapshot
type BackupInfo struct {
	Key       string    `json:"key"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"sizeBytes"`
	AgeDays   int       `json:"ageDays"`
}

// BackupService snapshots every record-store key and ships the archive to an
// object store. Export and Import work without one.
type BackupService struct {
	store     SnapshotStore
	objects   ObjectStore
	ledger    BalanceRecomputer
	prefix    string
	retention int
	log       zerolog.Logger
	now       func() time.Time
	mu        sync.Mutex
}

// NewBackupService creates a backup service. objects may be nil when cloud
// backups are disabled.
func NewBackupService(
	store SnapshotStore,
	objects ObjectStore,
	ledger BalanceRecomputer,
	prefix string,
	retention int,
	log zerolog.Logger,
) *BackupService {
	if retention < minRetention {
		retention = minRetention
	}
	return &BackupService{
		store:     store,
		objects:   objects,
		ledger:    ledger,
		prefix:    prefix,
		retention: retention,
		log:       log.With().Str("service", "backup").Logger(),
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (s *BackupService) SetClock(now func() time.Time) {
	s.now = now
}

// Enabled reports whether an object store is configured
func (s *BackupService) Enabled() bool {
	return s.objects != nil
}

// CreateSnapshot copies every key of the record store
func (s *BackupService) CreateSnapshot() (*Snapshot, error) {
	keys, err := s.store.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list record keys: %w", err)
	}

	records := make(map[string][]byte, len(keys))
	for _, key := range keys {
		raw, err := s.store.GetRaw(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if raw != nil {
			records[key] = raw
		}
	}

	version, err := recordstore.SchemaVersion(s.store)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Format:        snapshotFormat,
		CreatedAt:     s.now().UTC(),
		SchemaVersion: version,
		Records:       records,
		Checksum:      checksum(records),
	}, nil
}

// Export writes a snapshot of the current store to w
func (s *BackupService) Export(w io.Writer) (*Snapshot, error) {
	snap, err := s.CreateSnapshot()
	if err != nil {
		return nil, err
	}
	if err := WriteSnapshot(w, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Import replaces the store contents with the snapshot read from r, migrates
// it to the current schema and rebuilds every account's funds.
//
// Returns the number of accounts recomputed.
func (s *BackupService) Import(r io.Reader) (int, error) {
	snap, err := ReadSnapshot(r)
	if err != nil {
		return 0, err
	}
	return s.Restore(snap)
}

// Restore writes snap into the store. Keys missing from the snapshot are reset
// to empty documents, and the derived account funds are always rebuilt.
func (s *BackupService) Restore(snap *Snapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string]json.RawMessage, len(snap.Records)+6)
	for _, key := range []string{
		domain.KeyAccounts,
		domain.KeyStocks,
		domain.KeyFundRecords,
		domain.KeyBusinessTransactions,
	} {
		values[key] = json.RawMessage("[]")
	}
	for key, raw := range snap.Records {
		values[key] = json.RawMessage(raw)
	}
	values[domain.KeyAccountFunds] = json.RawMessage("{}")
	values[recordstore.KeySchemaVersion] = json.RawMessage(fmt.Sprintf("%d", snap.SchemaVersion))

	if err := s.store.SetMany(values); err != nil {
		return 0, fmt.Errorf("failed to write snapshot records: %w", err)
	}
	if err := recordstore.Migrate(s.store, s.log); err != nil {
		return 0, fmt.Errorf("failed to migrate restored records: %w", err)
	}

	n, err := s.ledger.RecomputeAll()
	if err != nil {
		return 0, fmt.Errorf("failed to recompute restored balances: %w", err)
	}

	s.log.Info().
		Time("snapshot_time", snap.CreatedAt).
		Int("records", len(snap.Records)).
		Int("accounts", n).
		Msg("Snapshot restored")
	return n, nil
}

// CreateAndUploadBackup snapshots the store and uploads it
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) (*BackupInfo, error) {
	if s.objects == nil {
		return nil, ErrBackupDisabled
	}

	startTime := s.now()
	snap, err := s.CreateSnapshot()
	if err != nil {
		return nil, err
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return nil, err
	}

	filename := backupNamePrefix + snap.CreatedAt.Format(backupTimeLayout) + backupNameSuffix
	key := s.prefix + filename
	if err := s.objects.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Str("key", key).
		Int("size_bytes", len(data)).
		Dur("duration", s.now().Sub(startTime)).
		Msg("Backup uploaded")

	return &BackupInfo{
		Key:       key,
		Filename:  filename,
		Timestamp: snap.CreatedAt,
		SizeBytes: int64(len(data)),
	}, nil
}

// ListBackups returns the uploaded backups, newest first. Objects whose name
// does not follow the backup naming scheme are ignored.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	if s.objects == nil {
		return nil, ErrBackupDisabled
	}

	objects, err := s.objects.List(ctx, s.prefix+backupNamePrefix)
	if err != nil {
		return nil, err
	}

	now := s.now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		filename := strings.TrimPrefix(obj.Key, s.prefix)
		ts, ok := parseBackupName(filename)
		if !ok {
			s.log.Warn().Str("key", obj.Key).Msg("Skipping object with unexpected name")
			continue
		}
		backups = append(backups, BackupInfo{
			Key:       obj.Key,
			Filename:  filename,
			Timestamp: ts,
			SizeBytes: obj.Size,
			AgeDays:   int(now.Sub(ts).Hours() / 24),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

func parseBackupName(filename string) (time.Time, bool) {
	if !strings.HasPrefix(filename, backupNamePrefix) || !strings.HasSuffix(filename, backupNameSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(filename, backupNamePrefix), backupNameSuffix)
	ts, err := time.Parse(backupTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// RestoreBackup downloads the named backup and applies it
func (s *BackupService) RestoreBackup(ctx context.Context, filename string) (int, error) {
	if s.objects == nil {
		return 0, ErrBackupDisabled
	}
	if _, ok := parseBackupName(filename); !ok {
		return 0, fmt.Errorf("%w: not a backup file name: %q", domain.ErrInvalidInput, filename)
	}

	data, err := s.objects.Download(ctx, s.prefix+filename)
	if err != nil {
		return 0, err
	}
	return s.Import(bytes.NewReader(data))
}

// RotateOldBackups deletes all but the newest retention backups.
//
// Returns the number of deleted backups.
func (s *BackupService) RotateOldBackups(ctx context.Context) (int, error) {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= s.retention {
		return 0, nil
	}

	deleted := 0
	for _, b := range backups[s.retention:] {
		if err := s.objects.Delete(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().Int("deleted", deleted).Int("kept", s.retention).Msg("Backup rotation complete")
	return deleted, nil
}
