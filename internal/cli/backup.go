package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/habitual/internal/backup"
	"github.com/julianstephens/habitual/internal/config"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/session"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Create a manual backup."`
	List    BackupListCmd    `cmd:"" help:"List available backups."`
	Restore BackupRestoreCmd `cmd:"" help:"Restore the database from a backup."`
}

var errBackupDriver = errors.New("backups are only supported for the sqlite driver")

func (c *Context) backupManager() (*backup.Manager, error) {
	if c.Config.Storage.Driver != constants.DriverSQLite {
		return nil, errBackupDriver
	}
	return backup.NewManager(c.Config.Storage.Path, c.Clock, c.Log), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	// opening runs migrations so the copy has the current schema
	if _, err := ctx.Store(context.Background()); err != nil {
		return err
	}

	info, err := mgr.Create(context.Background())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.printf("✓ Backup created: %s\n", filepath.Base(info.Path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.println("No backups found.")
		ctx.printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	ctx.printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), constants.MaxBackups)
	for _, b := range backups {
		ctx.printf("  %s  %s  (%.1f KB)\n", b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), float64(b.Size)/1024.0)
	}
	ctx.printf("\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *BackupRestoreCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}

	path := c.BackupFile
	if !filepath.IsAbs(path) {
		candidate := filepath.Join(mgr.Dir(), path)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", path)
	}

	// a running tui or watch would keep writing to the replaced file
	lock, err := session.AcquireLock(config.Dir(ctx.ConfigPath))
	if err != nil {
		return err
	}
	defer lock.Release()

	if !c.Yes {
		ctx.println("WARNING: This will replace your current database with the backup.")
		ctx.println("A backup of your current database will be created before restoring.")
		ctx.printf("\nRestore from: %s\n", filepath.Base(path))
		ok, err := ctx.confirm("Continue?")
		if err != nil {
			return err
		}
		if !ok {
			ctx.println("Restore cancelled.")
			return nil
		}
	}

	if err := ctx.Close(); err != nil {
		ctx.Log.Warn("Failed to close database before restore", "error", err)
	}

	safety, err := mgr.Restore(context.Background(), path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	if safety.Path != "" {
		ctx.printf("Previous database saved as %s\n", filepath.Base(safety.Path))
	}
	ctx.println("✓ Database restored successfully!")
	return nil
}
