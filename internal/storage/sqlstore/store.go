// Package sqlstore implements storage.Store on a single SQL table of JSON
// documents. Dialects supply the JSON operators.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/storage"
)

const table = "documents"

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	// Field renders an expression reading a top-level string field of data.
	Field func(name string) string
	// Merge is the SET expression for a partial update. It takes the patch
	// as its only placeholder.
	Merge string
	// IsUniqueViolation classifies driver errors from constraint failures.
	IsUniqueViolation func(error) bool
	Capabilities      storage.Capabilities
}

type Store struct {
	db      *sqlx.DB
	dialect Dialect
	hub     *storage.Hub
	log     *log.Logger

	mu      sync.RWMutex
	closed  bool
	closers []func() error
}

type docRow struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func New(db *sqlx.DB, d Dialect, l *log.Logger) *Store {
	l = logger.OrDefault(l).With("store", d.Name)
	return &Store{
		db:      db,
		dialect: d,
		hub:     storage.NewHub(l),
		log:     l,
	}
}

func (s *Store) DB() *sqlx.DB { return s.db }

// Hub exposes the change fan-out so backends can publish external changes.
func (s *Store) Hub() *storage.Hub { return s.hub }

// OnClose registers fn to run during Close, before the database is closed.
// Hooks run in reverse registration order.
func (s *Store) OnClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Migrate applies the goose migrations found in fsys.
func (s *Store) Migrate(ctx context.Context, dialect goose.Dialect, fsys fs.FS) error {
	provider, err := goose.NewProvider(dialect, s.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		s.log.Info("Applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// SchemaVersion returns the newest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context, dialect goose.Dialect, fsys fs.FS) (int64, error) {
	provider, err := goose.NewProvider(dialect, s.db.DB, fsys)
	if err != nil {
		return 0, fmt.Errorf("goose new provider: %w", err)
	}
	return provider.GetDBVersion(ctx)
}

// SchemaVersions reports the applied version and the newest version in fsys.
func (s *Store) SchemaVersions(ctx context.Context, dialect goose.Dialect, fsys fs.FS) (current, target int64, err error) {
	provider, err := goose.NewProvider(dialect, s.db.DB, fsys)
	if err != nil {
		return 0, 0, fmt.Errorf("goose new provider: %w", err)
	}
	return provider.GetVersions(ctx)
}

func (s *Store) Capabilities() storage.Capabilities {
	return s.dialect.Capabilities
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.mu.Unlock()

	s.hub.Close()

	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Store) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(s.dialect.Placeholder)
}

// SelectSQL renders the query used by Query and Subscribe.
func (s *Store) SelectSQL(collection string, filters ...storage.Filter) (string, []any, error) {
	b := s.builder().
		Select("id", "data").
		From(table).
		Where(sq.Eq{"collection": collection}).
		OrderBy("seq")
	for _, f := range filters {
		if err := storage.ValidateField(f.Field); err != nil {
			return "", nil, err
		}
		b = b.Where(sq.Expr(s.dialect.Field(f.Field)+" = ?", f.Value))
	}
	return b.ToSql()
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if s.isClosed() {
		return storage.Document{}, storage.ErrClosed
	}

	query, args, err := s.builder().
		Select("id", "data").
		From(table).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return storage.Document{}, err
	}

	var row docRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return storage.Document{}, storage.ErrNotFound
		}
		return storage.Document{}, err
	}
	return decodeRow(row)
}

func (s *Store) Query(ctx context.Context, collection string, filters ...storage.Filter) ([]storage.Document, error) {
	if s.isClosed() {
		return nil, storage.ErrClosed
	}

	query, args, err := s.SelectSQL(collection, filters...)
	if err != nil {
		return nil, err
	}

	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	docs := make([]storage.Document, 0, len(rows))
	for _, r := range rows {
		d, err := decodeRow(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filters []storage.Filter, onChange func([]storage.Document)) (storage.Unsubscribe, error) {
	if s.isClosed() {
		return nil, storage.ErrClosed
	}
	for _, f := range filters {
		if err := storage.ValidateField(f.Field); err != nil {
			return nil, err
		}
	}
	load := func(ctx context.Context) ([]storage.Document, error) {
		return s.Query(ctx, collection, filters...)
	}
	return s.hub.Subscribe(ctx, collection, load, onChange)
}

func (s *Store) Insert(ctx context.Context, collection string, fields storage.Fields) (string, error) {
	op := storage.InsertOp(collection, "", fields)
	if err := s.BatchWrite(ctx, []storage.Op{op}); err != nil {
		return "", err
	}
	return op.ID, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields storage.Fields) error {
	return s.BatchWrite(ctx, []storage.Op{storage.UpdateOp(collection, id, fields)})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.BatchWrite(ctx, []storage.Op{storage.DeleteOp(collection, id)})
}

// BatchWrite runs every op inside one transaction.
func (s *Store) BatchWrite(ctx context.Context, ops []storage.Op) error {
	if len(ops) == 0 {
		return nil
	}
	if s.isClosed() {
		return storage.ErrClosed
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback()
	}()

	for _, op := range ops {
		if err := s.apply(ctx, tx, op); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return s.classify(fmt.Sprintf("commit batch of %d", len(ops)), err)
	}

	s.hub.Publish(storage.Collections(ops)...)
	return nil
}

func (s *Store) apply(ctx context.Context, ex execer, op storage.Op) error {
	where := fmt.Sprintf("%s %s/%s", op.Kind, op.Collection, op.ID)

	var (
		query string
		args  []any
		err   error
	)
	switch op.Kind {
	case storage.OpInsert:
		data, jerr := json.Marshal(nonNil(op.Fields))
		if jerr != nil {
			return fmt.Errorf("%s: %w", where, jerr)
		}
		query, args, err = s.builder().
			Insert(table).
			Columns("collection", "id", "data").
			Values(op.Collection, op.ID, string(data)).
			ToSql()
	case storage.OpUpdate:
		data, jerr := json.Marshal(nonNil(op.Fields))
		if jerr != nil {
			return fmt.Errorf("%s: %w", where, jerr)
		}
		query, args, err = s.builder().
			Update(table).
			Set("data", sq.Expr(s.dialect.Merge, string(data))).
			Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
			Where(sq.Eq{"collection": op.Collection, "id": op.ID}).
			ToSql()
	case storage.OpDelete:
		query, args, err = s.builder().
			Delete(table).
			Where(sq.Eq{"collection": op.Collection, "id": op.ID}).
			ToSql()
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
	if err != nil {
		return fmt.Errorf("%s: build query: %w", where, err)
	}

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return s.classify(where, err)
	}

	if op.Kind == storage.OpUpdate {
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if n == 0 {
			return fmt.Errorf("%s: %w", where, storage.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) classify(where string, err error) error {
	if s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", where, storage.ErrUniqueViolation)
	}
	return fmt.Errorf("%s: %w", where, err)
}

func decodeRow(r docRow) (storage.Document, error) {
	var fields storage.Fields
	if err := json.Unmarshal([]byte(r.Data), &fields); err != nil {
		return storage.Document{}, fmt.Errorf("decode document %s: %w", r.ID, err)
	}
	return storage.Document{ID: r.ID, Fields: fields}, nil
}

func nonNil(f storage.Fields) storage.Fields {
	if f == nil {
		return storage.Fields{}
	}
	return f
}
