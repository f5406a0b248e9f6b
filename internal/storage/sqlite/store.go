package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/storage/sqlstore"
	"github.com/julianstephens/habitual/migrations"
)

// Dialect reads JSON fields with json_extract and merges with json_patch.
var Dialect = sqlstore.Dialect{
	Name:        "sqlite",
	Placeholder: sq.Question,
	Field: func(name string) string {
		return fmt.Sprintf("json_extract(data, '$.%s')", name)
	},
	Merge:             "json_patch(data, ?)",
	IsUniqueViolation: isUniqueViolation,
	Capabilities: storage.Capabilities{
		AtomicBatch: true,
		SharedFeed:  true,
	},
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type Options struct {
	// PollInterval is how often other processes' commits are checked for.
	// Zero disables the watcher; only this process's writes reach subscribers.
	PollInterval time.Duration
	Logger       *log.Logger
}

type Store struct {
	*sqlstore.Store
	path string
}

// Open creates or opens the database at path and brings its schema up to date.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := logger.OrDefault(opts.Logger)
	s := &Store{
		Store: sqlstore.New(db, Dialect, l),
		path:  path,
	}

	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	if err := s.Migrate(ctx, goose.DialectSQLite3, subFS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if opts.PollInterval > 0 {
		if err := s.watch(opts.PollInterval, l); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Versions reports the applied and newest embedded schema versions.
func (s *Store) Versions(ctx context.Context) (current, target int64, err error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return 0, 0, err
	}
	return s.SchemaVersions(ctx, goose.DialectSQLite3, subFS)
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// watch polls PRAGMA data_version on a dedicated connection. The value
// changes whenever another connection commits, which covers other processes
// sharing the file.
func (s *Store) watch(interval time.Duration, l *log.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	conn, err := s.DB().Connx(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("open watcher connection: %w", err)
	}

	var last int64
	if err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&last); err != nil {
		cancel()
		conn.Close()
		return fmt.Errorf("read data_version: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			var v int64
			if err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
				if ctx.Err() == nil {
					l.Warn("Change watcher poll failed", "error", err)
				}
				continue
			}
			if v != last {
				last = v
				s.Hub().Publish()
			}
		}
	}()

	s.OnClose(func() error {
		cancel()
		wg.Wait()
		return conn.Close()
	})
	return nil
}
