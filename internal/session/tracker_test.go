package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/habits"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/storage/memory"
)

type failingStore struct {
	storage.Store
	fail atomic.Bool
}

func (f *failingStore) BatchWrite(ctx context.Context, ops []storage.Op) error {
	if f.fail.Load() {
		return errors.New("disk on fire")
	}
	return f.Store.BatchWrite(ctx, ops)
}

// logFeedStore refuses log subscriptions while down is set.
type logFeedStore struct {
	storage.Store
	down atomic.Bool
}

func (l *logFeedStore) Subscribe(ctx context.Context, collection string, filters []storage.Filter, onChange func([]storage.Document)) (storage.Unsubscribe, error) {
	if collection == constants.CollectionLogs && l.down.Load() {
		return nil, errors.New("feed unavailable")
	}
	return l.Store.Subscribe(ctx, collection, filters, onChange)
}

func logsFor(t *testing.T, store storage.Store, habitID string) []storage.Document {
	t.Helper()
	docs, err := store.Query(context.Background(), constants.CollectionLogs, storage.Eq(constants.FieldHabitID, habitID))
	require.NoError(t, err)
	return docs
}

func allLogged(v View) bool {
	for _, row := range v.Habits {
		if row.LogID == "" {
			return false
		}
	}
	return true
}

func waitView(t *testing.T, ch <-chan View, match func(View) bool) View {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "views closed")
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for view")
			return View{}
		}
	}
}

func startTracker(t *testing.T, cfg Config) (*Tracker, context.CancelFunc) {
	t.Helper()
	tr, err := NewTracker(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return tr, cancel
}

func addHabit(t *testing.T, tr *Tracker, title string, days ...int) models.Habit {
	t.Helper()
	var s models.Schedule
	if len(days) == 0 {
		s = models.EveryDay()
	}
	for _, d := range days {
		s[d] = true
	}
	h, err := tr.Habits().Add(context.Background(), models.HabitInput{Title: title, Schedule: &s})
	require.NoError(t, err)
	return h
}

func TestTrackerReconcilesAndToggles(t *testing.T) {
	store := memory.New()
	// Wednesday
	fc := clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	tr, _ := startTracker(t, Config{Store: store, Owner: "u1", Location: time.UTC, Clock: fc})

	run := addHabit(t, tr, "Run")
	read := addHabit(t, tr, "Read", 0, 2, 4)
	addHabit(t, tr, "Rest", 5, 6)

	// All also carries Rest, which is not due on a Wednesday
	v := waitView(t, tr.Views(), func(v View) bool { return len(v.Habits) == 2 && len(v.All) == 3 })
	assert.Equal(t, "u1", v.Owner)
	assert.Equal(t, "2026-10-14", v.Date)
	assert.Equal(t, 0, v.Rate)

	require.Eventually(t, func() bool {
		docs, err := store.Query(context.Background(), constants.CollectionLogs)
		return err == nil && len(docs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, tr.Toggle(context.Background(), run.ID))
	v = waitView(t, tr.Views(), func(v View) bool { return v.Rate == 50 })
	for _, row := range v.Habits {
		assert.Equal(t, row.Habit.ID == run.ID, row.Completed, row.Habit.Title)
		assert.NotEmpty(t, row.LogID)
	}

	require.NoError(t, tr.Toggle(context.Background(), read.ID))
	waitView(t, tr.Views(), func(v View) bool { return v.Rate == 100 })

	docs, err := store.Query(context.Background(), constants.CollectionLogs)
	require.NoError(t, err)
	assert.Len(t, docs, 2, "toggling must not create extra logs")
}

func TestTrackerRollsOverAtMidnight(t *testing.T) {
	store := memory.New()
	// Tuesday 23:30
	fc := clockwork.NewFakeClockAt(time.Date(2026, 10, 13, 23, 30, 0, 0, time.UTC))
	tr, _ := startTracker(t, Config{Store: store, Owner: "u1", Location: time.UTC, Clock: fc})

	addHabit(t, tr, "Daily")
	addHabit(t, tr, "Wednesdays", 2)

	v := waitView(t, tr.Views(), func(v View) bool { return len(v.Habits) == 1 })
	assert.Equal(t, "2026-10-13", v.Date)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(30 * time.Minute)

	v = waitView(t, tr.Views(), func(v View) bool { return v.Date == "2026-10-14" && len(v.Habits) == 2 })
	assert.Equal(t, 0, v.Rate)

	require.Eventually(t, func() bool {
		docs, err := store.Query(context.Background(), constants.CollectionLogs,
			storage.Eq(constants.FieldDate, "2026-10-14"))
		return err == nil && len(docs) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTrackerKeepsLastViewOnStoreError(t *testing.T) {
	store := &failingStore{Store: memory.New()}
	fc := clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	tr, _ := startTracker(t, Config{Store: store, Owner: "u1", Location: time.UTC, Clock: fc})

	addHabit(t, tr, "Run")
	waitView(t, tr.Views(), func(v View) bool { return len(v.Habits) == 1 })

	store.fail.Store(true)
	addHabit(t, tr, "Read")

	select {
	case v := <-tr.Views():
		assert.Len(t, v.Habits, 1, "no view should reflect an unreconciled state")
	case <-time.After(150 * time.Millisecond):
	}

	store.fail.Store(false)
	addHabit(t, tr, "Write")
	waitView(t, tr.Views(), func(v View) bool { return len(v.Habits) == 3 })
}

func TestTrackerRemoveLeavesNoLogs(t *testing.T) {
	store := memory.New()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	tr, _ := startTracker(t, Config{Store: store, Owner: "u1", Location: time.UTC, Clock: fc})
	ctx := context.Background()

	keep := addHabit(t, tr, "Keep")
	var removed []models.Habit
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		removed = append(removed, addHabit(t, tr, title))
	}
	waitView(t, tr.Views(), func(v View) bool { return len(v.Habits) == 6 && allLogged(v) })
	require.Eventually(t, func() bool {
		docs, err := store.Query(ctx, constants.CollectionLogs)
		return err == nil && len(docs) == 6
	}, 2*time.Second, 10*time.Millisecond)

	for _, h := range removed {
		require.NoError(t, tr.Habits().Remove(ctx, h.ID))
	}
	waitView(t, tr.Views(), func(v View) bool { return len(v.Habits) == 1 })

	// let any late reconcile pass land before checking
	require.NoError(t, tr.Toggle(ctx, keep.ID))
	waitView(t, tr.Views(), func(v View) bool { return v.Rate == 100 })

	for _, h := range removed {
		assert.Empty(t, logsFor(t, store, h.ID), h.Title)
	}
}

func TestTrackerToggleUnknownHabit(t *testing.T) {
	store := memory.New()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	tr, _ := startTracker(t, Config{Store: store, Owner: "u1", Location: time.UTC, Clock: fc})
	ctx := context.Background()

	addHabit(t, tr, "Run")
	waitView(t, tr.Views(), func(v View) bool { return len(v.Habits) == 1 })

	other, err := habits.NewRepository(store, "u2", nil)
	require.NoError(t, err)
	foreign, err := other.Add(ctx, models.HabitInput{Title: "Theirs"})
	require.NoError(t, err)

	for _, id := range []string{"nope", foreign.ID} {
		assert.ErrorIs(t, tr.Toggle(ctx, id), apperrors.ErrNotFound)
		assert.Empty(t, logsFor(t, store, id))
	}
}

func TestTrackerRecoversFromFailedRollover(t *testing.T) {
	store := &logFeedStore{Store: memory.New()}
	// Tuesday 23:30
	fc := clockwork.NewFakeClockAt(time.Date(2026, 10, 13, 23, 30, 0, 0, time.UTC))
	tr, _ := startTracker(t, Config{Store: store, Owner: "u1", Location: time.UTC, Clock: fc})

	addHabit(t, tr, "Daily")
	waitView(t, tr.Views(), func(v View) bool { return len(v.Habits) == 1 && v.Habits[0].LogID != "" })

	store.down.Store(true)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(30 * time.Minute)

	v := waitView(t, tr.Views(), func(v View) bool { return v.Date == "2026-10-14" })
	require.Len(t, v.Habits, 1)
	assert.Empty(t, v.Habits[0].LogID)

	store.down.Store(false)
	addHabit(t, tr, "Another")
	waitView(t, tr.Views(), func(v View) bool {
		return v.Date == "2026-10-14" && len(v.Habits) == 2 && allLogged(v)
	})
	require.Eventually(t, func() bool {
		docs, err := store.Query(context.Background(), constants.CollectionLogs,
			storage.Eq(constants.FieldDate, "2026-10-14"))
		return err == nil && len(docs) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTrackerToggleAfterStop(t *testing.T) {
	store := memory.New()
	tr, err := NewTracker(Config{Store: store, Owner: "u1", Location: time.UTC, Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	assert.ErrorIs(t, tr.Toggle(context.Background(), "h1"), ErrNotRunning)
	_, ok := <-tr.Views()
	assert.False(t, ok, "views should be closed")
}

func TestNewTrackerRequiresOwner(t *testing.T) {
	_, err := NewTracker(Config{Store: memory.New()})
	assert.Error(t, err)
}

func TestMergeCreated(t *testing.T) {
	logs := []models.CompletionLog{{ID: "a", HabitID: "h1"}}
	created := []models.CompletionLog{{ID: "b", HabitID: "h1"}, {ID: "c", HabitID: "h2"}}

	got := mergeCreated(logs, created)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
