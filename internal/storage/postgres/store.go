package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	pq "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/storage/sqlstore"
	"github.com/julianstephens/habitual/migrations"
)

// NotifyChannel carries the collection name of every changed document.
const NotifyChannel = "habitual_documents"

// Dialect reads JSON fields with ->> and merges with the jsonb || operator.
var Dialect = sqlstore.Dialect{
	Name:        "postgres",
	Placeholder: sq.Dollar,
	Field: func(name string) string {
		return fmt.Sprintf("data->>'%s'", name)
	},
	Merge:             "data || ?::jsonb",
	IsUniqueViolation: isUniqueViolation,
	Capabilities: storage.Capabilities{
		AtomicBatch: true,
		SharedFeed:  true,
	},
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type Options struct {
	Logger *log.Logger
	// DisableListener skips LISTEN/NOTIFY; only this process's writes reach
	// subscribers.
	DisableListener bool
}

type Store struct {
	*sqlstore.Store
	connStr string
}

func newStore(db *sqlx.DB, connStr string, l *log.Logger) *Store {
	return &Store{
		Store:   sqlstore.New(db, Dialect, l),
		connStr: connStr,
	}
}

// Open connects, creates the application schema, applies migrations and
// subscribes to the change feed.
func Open(ctx context.Context, connStr string, opts Options) (*Store, error) {
	connStr, err := withSearchPath(connStr)
	if err != nil {
		return nil, err
	}
	l := logger.OrDefault(opts.Logger)

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(connStr) {
			return nil, fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := newStore(db, connStr, l)

	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	if err := s.Migrate(ctx, goose.DialectPostgres, subFS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if !opts.DisableListener {
		if err := s.listen(l); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Versions reports the applied and newest embedded schema versions.
func (s *Store) Versions(ctx context.Context) (current, target int64, err error) {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return 0, 0, err
	}
	return s.SchemaVersions(ctx, goose.DialectPostgres, subFS)
}

// listen forwards NOTIFY payloads to the hub. A nil notification means the
// listener reconnected and may have missed events, so every subscription
// refreshes.
func (s *Store) listen(l *log.Logger) error {
	listener := pq.NewListener(s.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.Warn("Change feed connection event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return fmt.Errorf("listen on %s: %w", NotifyChannel, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					s.Hub().Publish()
					continue
				}
				s.Hub().Publish(n.Extra)
			}
		}
	}()

	s.OnClose(func() error {
		cancel()
		wg.Wait()
		return listener.Close()
	})
	return nil
}
