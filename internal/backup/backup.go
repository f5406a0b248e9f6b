// Package backup snapshots and restores the SQLite database file.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/natefinch/atomic"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
)

// Info describes one backup file.
type Info struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Manager handles backup operations for one database file. Backups live in
// a backups directory next to it.
type Manager struct {
	dbPath string
	dir    string
	keep   int
	clock  clockwork.Clock
	log    *log.Logger
}

func NewManager(dbPath string, clock clockwork.Clock, l *log.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), constants.BackupDirName),
		keep:   constants.MaxBackups,
		clock:  clock,
		log:    logger.OrDefault(l).With("component", "backup"),
	}
}

func (m *Manager) Dir() string { return m.dir }

// Create writes a consistent copy of the database and rotates old copies.
func (m *Manager) Create(ctx context.Context) (Info, error) {
	info, err := m.create(ctx)
	if err != nil {
		return Info{}, err
	}
	if err := m.Rotate(); err != nil {
		m.log.Warn("Failed to rotate old backups", "error", err)
	}
	return info, nil
}

func (m *Manager) create(ctx context.Context) (Info, error) {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return Info{}, fmt.Errorf("failed to create backup directory: %w", err)
	}
	if _, err := os.Stat(m.dbPath); err != nil {
		return Info{}, fmt.Errorf("database does not exist: %s", m.dbPath)
	}

	path, ts, err := m.nextPath()
	if err != nil {
		return Info{}, err
	}

	db, err := sqlx.Open("sqlite", m.dbPath)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := verify(ctx, db); err != nil {
		return Info{}, fmt.Errorf("database appears to be corrupted: %w", err)
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return Info{}, fmt.Errorf("failed to back up database: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("backup not written: %w", err)
	}
	m.log.Info("Created backup", "path", path, "bytes", st.Size())
	return Info{Path: path, Timestamp: ts, Size: st.Size()}, nil
}

// nextPath picks a file name for the current time, adding a counter when
// several backups land in the same second.
func (m *Manager) nextPath() (string, time.Time, error) {
	now := m.clock.Now()
	stamp := now.Format(constants.BackupTimestampFormat)
	ts, _ := time.ParseInLocation(constants.BackupTimestampFormat, stamp, now.Location())

	name := constants.BackupFilePrefix + stamp
	for i := 0; i <= 100; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", name, i)
		}
		path := filepath.Join(m.dir, candidate+constants.BackupFileSuffix)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, ts, nil
		}
	}
	return "", time.Time{}, fmt.Errorf("failed to generate unique backup filename")
}

// parseName extracts the timestamp from a backup file name.
func parseName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, constants.BackupFilePrefix) || !strings.HasSuffix(name, constants.BackupFileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, constants.BackupFilePrefix), constants.BackupFileSuffix)

	// YYYYMMDD-HHMMSS with an optional -N counter
	if parts := strings.Split(stamp, "-"); len(parts) == 3 {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return time.Time{}, false
		}
		stamp = parts[0] + "-" + parts[1]
	}
	ts, err := time.ParseInLocation(constants.BackupTimestampFormat, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// List returns all backups, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, ok := parseName(e.Name())
		if !ok {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(m.dir, e.Name()),
			Timestamp: ts,
			Size:      fi.Size(),
		})
	}

	slices.SortFunc(backups, func(a, b Info) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(b.Path, a.Path)
	})
	return backups, nil
}

// Rotate deletes all but the newest backups.
func (m *Manager) Rotate() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	for _, b := range backups[min(m.keep, len(backups)):] {
		if err := os.Remove(b.Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", b.Path, err)
		}
		m.log.Debug("Removed old backup", "path", b.Path)
	}
	return nil
}

// Restore replaces the database with the backup at path. The current
// database is backed up first and returned in Info. No store may have the
// database open while this runs.
func (m *Manager) Restore(ctx context.Context, path string) (Info, error) {
	if _, err := os.Stat(path); err != nil {
		return Info{}, fmt.Errorf("backup file does not exist: %s", path)
	}
	if err := verifyFile(ctx, path); err != nil {
		return Info{}, fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var safety Info
	if _, err := os.Stat(m.dbPath); err == nil {
		safety, err = m.create(ctx)
		if err != nil {
			return Info{}, fmt.Errorf("failed to back up current database before restore: %w", err)
		}
	}

	src, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open backup: %w", err)
	}
	defer src.Close()

	if err := atomic.WriteFile(m.dbPath, src); err != nil {
		return Info{}, fmt.Errorf("failed to restore database: %w", err)
	}
	// stale WAL pages would be replayed over the restored file
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(m.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return Info{}, fmt.Errorf("failed to remove %s: %w", m.dbPath+suffix, err)
		}
	}

	m.log.Info("Restored database", "from", path)
	return safety, nil
}

// verify checks that db holds the habitual schema.
func verify(ctx context.Context, db *sqlx.DB) error {
	var n int
	return db.GetContext(ctx, &n, "SELECT COUNT(*) FROM documents")
}

func verifyFile(ctx context.Context, path string) error {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	return verify(ctx, db)
}
