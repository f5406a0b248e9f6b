// Package memory is an in-process document store. It backs tests and the
// "memory" storage driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/habitual/internal/storage"
)

type entry struct {
	fields storage.Fields
	seq    int64
}

type Store struct {
	mu      sync.RWMutex
	data    map[string]map[string]entry
	seq     int64
	indexes []storage.UniqueIndex
	closed  bool

	hub *storage.Hub
}

type Option func(*options)

type options struct {
	indexes []storage.UniqueIndex
	logger  *log.Logger
}

// WithIndexes replaces the default unique indexes.
func WithIndexes(indexes ...storage.UniqueIndex) Option {
	return func(o *options) { o.indexes = indexes }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New(opts ...Option) *Store {
	o := options{indexes: storage.DefaultIndexes}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		data:    make(map[string]map[string]entry),
		indexes: o.indexes,
		hub:     storage.NewHub(o.logger),
	}
}

func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{AtomicBatch: true, SharedFeed: false}
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.Close()
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.Document{}, storage.ErrClosed
	}

	e, ok := s.data[collection][id]
	if !ok {
		return storage.Document{}, storage.ErrNotFound
	}
	return toDocument(id, e)
}

func (s *Store) Query(ctx context.Context, collection string, filters ...storage.Filter) ([]storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}

	type hit struct {
		id string
		e  entry
	}
	var hits []hit
	for id, e := range s.data[collection] {
		if storage.MatchAll(e.fields, filters) {
			hits = append(hits, hit{id, e})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].e.seq < hits[j].e.seq })

	docs := make([]storage.Document, 0, len(hits))
	for _, h := range hits {
		d, err := toDocument(h.id, h.e)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filters []storage.Filter, onChange func([]storage.Document)) (storage.Unsubscribe, error) {
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

// BatchWrite stages every op against copies of the touched collections and
// swaps them in only when all ops and index checks succeed.
func (s *Store) BatchWrite(ctx context.Context, ops []storage.Op) error {
	if len(ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return storage.ErrClosed
	}

	staged := make(map[string]map[string]entry)
	for _, name := range storage.Collections(ops) {
		cp := make(map[string]entry, len(s.data[name]))
		for id, e := range s.data[name] {
			cp[id] = e
		}
		staged[name] = cp
	}

	seq := s.seq
	for _, op := range ops {
		coll := staged[op.Collection]
		switch op.Kind {
		case storage.OpInsert:
			if _, exists := coll[op.ID]; exists {
				s.mu.Unlock()
				return fmt.Errorf("insert %s/%s: %w", op.Collection, op.ID, storage.ErrUniqueViolation)
			}
			fields, err := storage.Normalize(op.Fields)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			seq++
			coll[op.ID] = entry{fields: fields, seq: seq}
		case storage.OpUpdate:
			old, ok := coll[op.ID]
			if !ok {
				s.mu.Unlock()
				return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, storage.ErrNotFound)
			}
			merged := make(storage.Fields, len(old.fields)+len(op.Fields))
			for k, v := range old.fields {
				merged[k] = v
			}
			for k, v := range op.Fields {
				merged[k] = v
			}
			fields, err := storage.Normalize(merged)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			coll[op.ID] = entry{fields: fields, seq: old.seq}
		case storage.OpDelete:
			delete(coll, op.ID)
		default:
			s.mu.Unlock()
			return fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}

	if err := s.checkIndexes(staged); err != nil {
		s.mu.Unlock()
		return err
	}

	for name, coll := range staged {
		s.data[name] = coll
	}
	s.seq = seq
	s.mu.Unlock()

	s.hub.Publish(storage.Collections(ops)...)
	return nil
}

func (s *Store) checkIndexes(staged map[string]map[string]entry) error {
	for _, ix := range s.indexes {
		coll, ok := staged[ix.Collection]
		if !ok {
			continue
		}
		seen := make(map[string]string, len(coll))
		for id, e := range coll {
			key, ok := ix.Key(e.fields)
			if !ok {
				continue
			}
			if other, dup := seen[key]; dup {
				return fmt.Errorf("%s: documents %s and %s: %w", ix.Name, other, id, storage.ErrUniqueViolation)
			}
			seen[key] = id
		}
	}
	return nil
}

func toDocument(id string, e entry) (storage.Document, error) {
	fields, err := storage.Normalize(e.fields)
	if err != nil {
		return storage.Document{}, err
	}
	return storage.Document{ID: id, Fields: fields}, nil
}
