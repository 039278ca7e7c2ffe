package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/aristath/ipotracker/internal/di"
)

const backupTimeout = 5 * time.Minute

// BackupCmd groups cloud backup commands
type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Upload a snapshot now."`
	List    BackupListCmd    `cmd:"" help:"List uploaded backups."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the ledger with an uploaded backup."`
	Rotate  BackupRotateCmd  `cmd:"" help:"Delete backups beyond the retention count."`
}

// BackupCreateCmd uploads a backup
type BackupCreateCmd struct{}

// Run executes the command
func (cmd *BackupCreateCmd) Run(ctx *kong.Context, c *di.Container) error {
	bctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	info, err := c.BackupService.CreateAndUploadBackup(bctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Uploaded %s (%d bytes)\n", info.Key, info.SizeBytes)
	return nil
}

// BackupListCmd lists backups
type BackupListCmd struct{}

// Run executes the command
func (cmd *BackupListCmd) Run(ctx *kong.Context, c *di.Container) error {
	bctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	backups, err := c.BackupService.ListBackups(bctx)
	if err != nil {
		return err
	}

	tw := newTable(ctx.Stdout, "FILENAME", "TAKEN", "SIZE", "AGE (DAYS)")
	for _, b := range backups {
		tw.row(b.Filename, b.Timestamp.Format(time.RFC3339), fmt.Sprint(b.SizeBytes), fmt.Sprint(b.AgeDays))
	}
	return tw.flush()
}

// BackupRestoreCmd restores a backup
type BackupRestoreCmd struct {
	Filename string `arg:"" help:"Backup file name as shown by 'backup list'."`
}

// Run executes the command
func (cmd *BackupRestoreCmd) Run(ctx *kong.Context, c *di.Container) error {
	bctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	n, err := c.BackupService.RestoreBackup(bctx, cmd.Filename)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Restored %s (%d accounts recomputed)\n", cmd.Filename, n)
	return nil
}

// BackupRotateCmd prunes backups
type BackupRotateCmd struct{}

// Run executes the command
func (cmd *BackupRotateCmd) Run(ctx *kong.Context, c *di.Container) error {
	bctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	deleted, err := c.BackupService.RotateOldBackups(bctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Deleted %d old backups\n", deleted)
	return nil
}

// ExportCmd writes a local snapshot
type ExportCmd struct {
	File string `arg:"" help:"Output file (.msgpack.gz)." type:"path"`
}

// Run executes the command
func (cmd *ExportCmd) Run(ctx *kong.Context, c *di.Container) error {
	f, err := os.Create(cmd.File)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", cmd.File, err)
	}

	snap, err := c.BackupService.Export(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Exported %d records to %s\n", len(snap.Records), cmd.File)
	return nil
}

// ImportCmd restores a local snapshot
type ImportCmd struct {
	File string `arg:"" help:"Snapshot archive written by 'export'." type:"existingfile"`
}

// Run executes the command
func (cmd *ImportCmd) Run(ctx *kong.Context, c *di.Container) error {
	f, err := os.Open(cmd.File)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", cmd.File, err)
	}
	defer f.Close()

	n, err := c.BackupService.Import(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Imported %s (%d accounts recomputed)\n", cmd.File, n)
	return nil
}
