package reliability

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// BackupJob uploads a snapshot and prunes old ones
type BackupJob struct {
	backups *BackupService
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates the scheduled backup job
func NewBackupJob(backups *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		timeout: 5 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Run executes the backup
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	info, err := j.backups.CreateAndUploadBackup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	// Rotation failures leave extra archives behind; the upload still counts
	if _, err := j.backups.RotateOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.log.Info().Str("key", info.Key).Int64("size_bytes", info.SizeBytes).Msg("Scheduled backup complete")
	return nil
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// DiskSpaceJob warns when the data directory's filesystem is filling up
type DiskSpaceJob struct {
	dataDir    string
	minFreeMB  float64
	warnFreeMB float64
	statfs     func(path string, buf *syscall.Statfs_t) error
	log        zerolog.Logger
}

// NewDiskSpaceJob creates the disk space check for dataDir
func NewDiskSpaceJob(dataDir string, log zerolog.Logger) *DiskSpaceJob {
	return &DiskSpaceJob{
		dataDir:    dataDir,
		minFreeMB:  100,
		warnFreeMB: 1024,
		statfs:     syscall.Statfs,
		log:        log.With().Str("job", "disk_space").Logger(),
	}
}

// Run checks free space. Below the minimum it returns an error so the
// scheduler logs a failure; below the warning level it only logs.
func (j *DiskSpaceJob) Run() error {
	stat := syscall.Statfs_t{}
	if err := j.statfs(j.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableMB := float64(stat.Bavail*uint64(stat.Bsize)) / (1 << 20)
	j.log.Debug().Float64("available_mb", availableMB).Msg("Disk space check")

	if availableMB < j.minFreeMB {
		j.log.Error().Float64("available_mb", availableMB).Msg("Insufficient disk space for the ledger")
		return fmt.Errorf("only %.0f MB free in %s", availableMB, j.dataDir)
	}
	if availableMB < j.warnFreeMB {
		j.log.Warn().Float64("available_mb", availableMB).Msg("Disk space running low")
	}
	return nil
}

// Name returns the job name
func (j *DiskSpaceJob) Name() string {
	return "disk_space"
}
