package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a document id does not exist
	ErrNotFound = errors.New("document not found")
	// ErrUniqueViolation is returned when a write would break a unique index
	ErrUniqueViolation = errors.New("unique index violation")
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("store is closed")
)

// Store is an owner-agnostic document store. Collections hold JSON-like
// documents keyed by an opaque id.
type Store interface {
	// Lifecycle
	Capabilities() Capabilities
	Close() error

	// Reads
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// Subscribe delivers the full matching set on attach and again after every
	// change to the collection. Deliveries for one subscription never overlap.
	Subscribe(ctx context.Context, collection string, filters []Filter, onChange func([]Document)) (Unsubscribe, error)

	// Writes
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	// BatchWrite applies every op or none of them.
	BatchWrite(ctx context.Context, ops []Op) error
	// Update merges fields into the document; ErrNotFound if it is missing.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete is idempotent.
	Delete(ctx context.Context, collection, id string) error
}

// Capabilities describes optional guarantees of a Store implementation.
type Capabilities struct {
	// AtomicBatch is true when BatchWrite is all-or-nothing.
	AtomicBatch bool
	// SharedFeed is true when changes made by other processes reach subscribers.
	SharedFeed bool
}

// Unsubscribe detaches a subscription. It blocks until any in-flight
// delivery has returned and is safe to call more than once.
type Unsubscribe func()

// Fields is the body of a document.
type Fields map[string]any

// Document is a stored document with its id.
type Document struct {
	ID     string
	Fields Fields
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	data, err := json.Marshal(d.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Encode converts a value with json tags into document fields.
func Encode(v any) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("document body must be an object: %w", err)
	}
	return f, nil
}

// Normalize returns a deep copy of f holding only JSON value types.
func Normalize(f Fields) (Fields, error) {
	if f == nil {
		return Fields{}, nil
	}
	return Encode(f)
}

// Filter is an equality match on a top-level string field.
type Filter struct {
	Field string
	Value string
}

func Eq(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// Matches reports whether the document body satisfies the filter.
func (f Filter) Matches(fields Fields) bool {
	v, ok := fields[f.Field].(string)
	return ok && v == f.Value
}

// MatchAll reports whether fields satisfies every filter.
func MatchAll(fields Fields, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(fields) {
			return false
		}
	}
	return true
}

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidateField rejects field names that cannot be used in a filter or index.
func ValidateField(name string) error {
	if !fieldName.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}

// OpKind is the type of a batched write
type OpKind int

const (
	OpInsert OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Op is one write in a BatchWrite.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Fields     Fields
}

// InsertOp creates a document. An empty id is filled with NewID.
func InsertOp(collection, id string, fields Fields) Op {
	if id == "" {
		id = NewID()
	}
	return Op{Kind: OpInsert, Collection: collection, ID: id, Fields: fields}
}

// UpdateOp merges fields into an existing document.
func UpdateOp(collection, id string, fields Fields) Op {
	return Op{Kind: OpUpdate, Collection: collection, ID: id, Fields: fields}
}

func DeleteOp(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

// Collections returns the distinct collections touched by ops.
func Collections(ops []Op) []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range ops {
		if !seen[op.Collection] {
			seen[op.Collection] = true
			out = append(out, op.Collection)
		}
	}
	return out
}

// NewID returns a fresh opaque document id.
func NewID() string {
	return uuid.New().String()
}

// UniqueIndex forbids two documents in Collection sharing the same values
// for Fields. Documents missing any of the fields are not indexed.
type UniqueIndex struct {
	Name       string
	Collection string
	Fields     []string
}

// Key returns the index key for fields, or false when a field is absent.
func (ix UniqueIndex) Key(fields Fields) (string, bool) {
	key := ""
	for _, name := range ix.Fields {
		v, ok := fields[name]
		if !ok || v == nil {
			return "", false
		}
		key += fmt.Sprintf("%v\x00", v)
	}
	return key, true
}
