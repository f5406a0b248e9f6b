// Package storetest holds the behaviour every storage.Store must share.
// Backends run it from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/storage"
)

// Factory returns a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) storage.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertGetQuery", func(t *testing.T) { testInsertGetQuery(t, newStore(t)) })
	t.Run("UpdateMerges", func(t *testing.T) { testUpdateMerges(t, newStore(t)) })
	t.Run("DeleteIsIdempotent", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("UniqueIndex", func(t *testing.T) { testUniqueIndex(t, newStore(t)) })
	t.Run("BatchIsAtomic", func(t *testing.T) { testBatchAtomic(t, newStore(t)) })
	t.Run("Subscribe", func(t *testing.T) { testSubscribe(t, newStore(t)) })
	t.Run("Close", func(t *testing.T) { testClose(t, newStore(t)) })
}

func logFields(owner, habit, date string, completed bool) storage.Fields {
	return storage.Fields{
		constants.FieldOwner:     owner,
		constants.FieldHabitID:   habit,
		constants.FieldDate:      date,
		constants.FieldCompleted: completed,
	}
}

func testInsertGetQuery(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	id1, err := s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h1", "2026-10-14", false))
	require.NoError(t, err)
	require.NotEmpty(t, id1)
	_, err = s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h2", "2026-10-14", true))
	require.NoError(t, err)
	_, err = s.Insert(ctx, constants.CollectionLogs, logFields("u2", "h3", "2026-10-14", false))
	require.NoError(t, err)

	doc, err := s.Get(ctx, constants.CollectionLogs, id1)
	require.NoError(t, err)
	assert.Equal(t, id1, doc.ID)
	assert.Equal(t, "h1", doc.Fields[constants.FieldHabitID])
	assert.Equal(t, false, doc.Fields[constants.FieldCompleted])

	_, err = s.Get(ctx, constants.CollectionLogs, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	docs, err := s.Query(ctx, constants.CollectionLogs, storage.Eq(constants.FieldOwner, "u1"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, id1, docs[0].ID, "results keep insertion order")

	docs, err = s.Query(ctx, constants.CollectionLogs,
		storage.Eq(constants.FieldOwner, "u1"),
		storage.Eq(constants.FieldHabitID, "h2"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, true, docs[0].Fields[constants.FieldCompleted])

	docs, err = s.Query(ctx, constants.CollectionHabits)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testUpdateMerges(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	id, err := s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h1", "2026-10-14", false))
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, constants.CollectionLogs, id, storage.Fields{constants.FieldCompleted: true}))

	doc, err := s.Get(ctx, constants.CollectionLogs, id)
	require.NoError(t, err)
	assert.Equal(t, true, doc.Fields[constants.FieldCompleted])
	assert.Equal(t, "h1", doc.Fields[constants.FieldHabitID], "untouched fields survive")

	err = s.Update(ctx, constants.CollectionLogs, "missing", storage.Fields{constants.FieldCompleted: true})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDelete(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	id, err := s.Insert(ctx, constants.CollectionHabits, storage.Fields{constants.FieldOwner: "u1", constants.FieldTitle: "Read"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, constants.CollectionHabits, id))
	require.NoError(t, s.Delete(ctx, constants.CollectionHabits, id))

	_, err = s.Get(ctx, constants.CollectionHabits, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUniqueIndex(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h1", "2026-10-14", false))
	require.NoError(t, err)

	_, err = s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h1", "2026-10-14", true))
	assert.ErrorIs(t, err, storage.ErrUniqueViolation)

	// Different owner, habit or date are all distinct keys.
	_, err = s.Insert(ctx, constants.CollectionLogs, logFields("u2", "h1", "2026-10-14", false))
	assert.NoError(t, err)
	_, err = s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h1", "2026-10-15", false))
	assert.NoError(t, err)

	docs, err := s.Query(ctx, constants.CollectionLogs, storage.Eq(constants.FieldOwner, "u1"))
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func testBatchAtomic(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	existing, err := s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h1", "2026-10-14", false))
	require.NoError(t, err)

	err = s.BatchWrite(ctx, []storage.Op{
		storage.InsertOp(constants.CollectionLogs, "", logFields("u1", "h2", "2026-10-14", false)),
		storage.UpdateOp(constants.CollectionLogs, existing, storage.Fields{constants.FieldCompleted: true}),
		storage.InsertOp(constants.CollectionLogs, "", logFields("u1", "h1", "2026-10-14", false)),
	})
	require.ErrorIs(t, err, storage.ErrUniqueViolation)

	docs, err := s.Query(ctx, constants.CollectionLogs)
	require.NoError(t, err)
	require.Len(t, docs, 1, "failed batch must leave no partial writes")
	assert.Equal(t, false, docs[0].Fields[constants.FieldCompleted])

	habitID := storage.NewID()
	err = s.BatchWrite(ctx, []storage.Op{
		storage.InsertOp(constants.CollectionHabits, habitID, storage.Fields{constants.FieldOwner: "u1"}),
		storage.InsertOp(constants.CollectionLogs, "", logFields("u1", habitID, "2026-10-14", false)),
		storage.DeleteOp(constants.CollectionLogs, existing),
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, constants.CollectionHabits, habitID)
	assert.NoError(t, err, "caller supplied ids are kept")
	docs, err = s.Query(ctx, constants.CollectionLogs)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, habitID, docs[0].Fields[constants.FieldHabitID])

	assert.NoError(t, s.BatchWrite(ctx, nil))
}

func testSubscribe(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h1", "2026-10-14", false))
	require.NoError(t, err)

	var mu sync.Mutex
	var deliveries [][]storage.Document
	unsub, err := s.Subscribe(ctx, constants.CollectionLogs,
		[]storage.Filter{storage.Eq(constants.FieldOwner, "u1")},
		func(docs []storage.Document) {
			mu.Lock()
			deliveries = append(deliveries, docs)
			mu.Unlock()
		})
	require.NoError(t, err)

	latest := func() []storage.Document {
		mu.Lock()
		defer mu.Unlock()
		if len(deliveries) == 0 {
			return nil
		}
		return deliveries[len(deliveries)-1]
	}

	require.Eventually(t, func() bool { return len(latest()) == 1 }, 5*time.Second, 10*time.Millisecond,
		"first attach delivers the current set")

	_, err = s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h2", "2026-10-14", false))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(latest()) == 2 }, 5*time.Second, 10*time.Millisecond)

	// Writes for other owners may wake the subscription but never leak into it.
	_, err = s.Insert(ctx, constants.CollectionLogs, logFields("u2", "h9", "2026-10-14", false))
	require.NoError(t, err)

	unsub()
	unsub()

	mu.Lock()
	count := len(deliveries)
	mu.Unlock()

	_, err = s.Insert(ctx, constants.CollectionLogs, logFields("u1", "h3", "2026-10-14", false))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, count, len(deliveries), "no deliveries after unsubscribe")
	for _, docs := range deliveries {
		for _, d := range docs {
			assert.Equal(t, "u1", d.Fields[constants.FieldOwner])
		}
	}
}

func testClose(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Close())

	_, err := s.Query(ctx, constants.CollectionHabits)
	assert.True(t, errors.Is(err, storage.ErrClosed), "query after close: %v", err)
	_, err = s.Insert(ctx, constants.CollectionHabits, storage.Fields{constants.FieldOwner: "u1"})
	assert.Error(t, err)
}
