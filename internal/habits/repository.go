// Package habits manages a single owner's habit collection and cascades
// habit deletion to the completion logs that reference it.
package habits

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/storage"
)

// Repository is bound to one owner for its whole lifetime.
type Repository struct {
	store storage.Store
	owner string
	log   *log.Logger
	now   func() time.Time
}

func NewRepository(store storage.Store, owner string, l *log.Logger) (*Repository, error) {
	if owner == "" {
		return nil, apperrors.ErrNoOwner
	}
	return &Repository{
		store: store,
		owner: owner,
		log:   logger.OrDefault(l).With("component", "habits", "owner", owner),
		now:   time.Now,
	}, nil
}

func (r *Repository) Owner() string { return r.owner }

func (r *Repository) ownerFilter() []storage.Filter {
	return []storage.Filter{storage.Eq(constants.FieldOwner, r.owner)}
}

// DecodeHabit turns a stored document into a Habit.
func DecodeHabit(d storage.Document) (models.Habit, error) {
	var h models.Habit
	if err := d.Decode(&h); err != nil {
		return models.Habit{}, err
	}
	h.ID = d.ID
	h.Category = models.ParseCategory(string(h.Category))
	return h, nil
}

// Subscribe streams the owner's full habit set, first on attach and again
// after every change. The channel closes when ctx is done.
func (r *Repository) Subscribe(ctx context.Context) (<-chan []models.Habit, error) {
	ch, err := storage.Snapshots(ctx, r.store, constants.CollectionHabits, r.ownerFilter(), DecodeHabit, r.log)
	if err != nil {
		return nil, apperrors.MapStore("subscribe habits", err)
	}
	return ch, nil
}

func (r *Repository) List(ctx context.Context) ([]models.Habit, error) {
	docs, err := r.store.Query(ctx, constants.CollectionHabits, r.ownerFilter()...)
	if err != nil {
		return nil, apperrors.MapStore("list habits", err)
	}
	return storage.DecodeAll(docs, DecodeHabit, r.log), nil
}

// Get returns the habit with id. Habits of other owners are reported as
// not found.
func (r *Repository) Get(ctx context.Context, id string) (models.Habit, error) {
	doc, err := r.store.Get(ctx, constants.CollectionHabits, id)
	if err != nil {
		return models.Habit{}, apperrors.MapStore("get habit", err)
	}
	h, err := DecodeHabit(doc)
	if err != nil {
		return models.Habit{}, fmt.Errorf("get habit %s: %w", id, err)
	}
	if h.Owner != r.owner {
		return models.Habit{}, fmt.Errorf("get habit %s: %w", id, apperrors.ErrNotFound)
	}
	return h, nil
}

func (r *Repository) Add(ctx context.Context, in models.HabitInput) (models.Habit, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Habit{}, apperrors.NewValidationError("title", "cannot be empty")
	}

	schedule := models.EveryDay()
	if in.Schedule != nil {
		schedule = *in.Schedule
	}

	h := models.Habit{
		Owner:     r.owner,
		Title:     title,
		Category:  models.ParseCategory(string(in.Category)),
		Schedule:  schedule,
		Reminder:  in.Reminder,
		CreatedAt: r.now().UTC().Truncate(time.Second),
	}

	fields, err := storage.Encode(h)
	if err != nil {
		return models.Habit{}, fmt.Errorf("encode habit: %w", err)
	}
	id, err := r.store.Insert(ctx, constants.CollectionHabits, fields)
	if err != nil {
		return models.Habit{}, apperrors.MapStore("add habit", err)
	}
	h.ID = id

	r.log.Info("Added habit", "id", id, "title", title)
	return h, nil
}

// Update applies patch to the habit. Concurrent edits are last-write-wins
// per field.
func (r *Repository) Update(ctx context.Context, id string, patch models.HabitPatch) (models.Habit, error) {
	h, err := r.Get(ctx, id)
	if err != nil {
		return models.Habit{}, err
	}
	if patch.IsEmpty() {
		return h, nil
	}

	fields := storage.Fields{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return models.Habit{}, apperrors.NewValidationError("title", "cannot be empty")
		}
		h.Title = title
		fields[constants.FieldTitle] = title
	}
	if patch.Category != nil {
		h.Category = models.ParseCategory(string(*patch.Category))
		fields[constants.FieldCategory] = string(h.Category)
	}
	if patch.Schedule != nil {
		h.Schedule = *patch.Schedule
		fields[constants.FieldSchedule] = h.Schedule[:]
	}
	if patch.Reminder != nil {
		h.Reminder = *patch.Reminder
		fields[constants.FieldReminder] = h.Reminder.String()
	}

	if err := r.store.Update(ctx, constants.CollectionHabits, id, fields); err != nil {
		return models.Habit{}, apperrors.MapStore("update habit", err)
	}

	r.log.Info("Updated habit", "id", id)
	return h, nil
}

func (r *Repository) logsFor(ctx context.Context, habitID string) ([]storage.Document, error) {
	filters := append(r.ownerFilter(), storage.Eq(constants.FieldHabitID, habitID))
	return r.store.Query(ctx, constants.CollectionLogs, filters...)
}

// Remove deletes the habit and every completion log referencing it. On
// stores with atomic batches this is a single write. Otherwise logs are
// deleted first and the habit after; logs that could not be deleted are
// reported as a CleanupWarning and the habit stays deleted.
func (r *Repository) Remove(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	logs, err := r.logsFor(ctx, id)
	if err != nil {
		return apperrors.MapStore("remove habit", err)
	}

	if r.store.Capabilities().AtomicBatch {
		ops := make([]storage.Op, 0, len(logs)+1)
		for _, l := range logs {
			ops = append(ops, storage.DeleteOp(constants.CollectionLogs, l.ID))
		}
		ops = append(ops, storage.DeleteOp(constants.CollectionHabits, id))
		if err := r.store.BatchWrite(ctx, ops); err != nil {
			return apperrors.MapStore("remove habit", err)
		}
		r.log.Info("Removed habit", "id", id, "logs", len(logs))
		r.sweepLogs(ctx, id)
		return nil
	}

	var cleanupErr error
	failed := 0
	for _, l := range logs {
		if err := r.store.Delete(ctx, constants.CollectionLogs, l.ID); err != nil {
			r.log.Warn("Failed to delete completion log", "habit", id, "log", l.ID, "error", err)
			failed++
			cleanupErr = err
		}
	}

	if err := r.store.Delete(ctx, constants.CollectionHabits, id); err != nil {
		return apperrors.MapStore("remove habit", err)
	}
	r.sweepLogs(ctx, id)

	if failed > 0 {
		return &apperrors.CleanupWarning{
			HabitID: id,
			Err:     fmt.Errorf("%d of %d completion logs not deleted: %w", failed, len(logs), cleanupErr),
		}
	}

	r.log.Info("Removed habit", "id", id, "logs", len(logs))
	return nil
}

// sweepLogs deletes logs for id that were written after Remove read them,
// by a writer that saw the habit just before it went away.
func (r *Repository) sweepLogs(ctx context.Context, id string) {
	late, err := r.logsFor(ctx, id)
	if err != nil {
		r.log.Warn("Failed to re-check completion logs", "habit", id, "error", err)
		return
	}
	for _, l := range late {
		if err := r.store.Delete(ctx, constants.CollectionLogs, l.ID); err != nil {
			r.log.Warn("Failed to delete completion log", "habit", id, "log", l.ID, "error", err)
		}
	}
}

// Reset deletes every habit and completion log of the owner in one batch.
func (r *Repository) Reset(ctx context.Context) (int, error) {
	habits, err := r.store.Query(ctx, constants.CollectionHabits, r.ownerFilter()...)
	if err != nil {
		return 0, apperrors.MapStore("reset", err)
	}
	logs, err := r.store.Query(ctx, constants.CollectionLogs, r.ownerFilter()...)
	if err != nil {
		return 0, apperrors.MapStore("reset", err)
	}

	ops := make([]storage.Op, 0, len(habits)+len(logs))
	for _, l := range logs {
		ops = append(ops, storage.DeleteOp(constants.CollectionLogs, l.ID))
	}
	for _, h := range habits {
		ops = append(ops, storage.DeleteOp(constants.CollectionHabits, h.ID))
	}
	if err := r.store.BatchWrite(ctx, ops); err != nil {
		return 0, apperrors.MapStore("reset", err)
	}

	r.log.Info("Reset owner data", "habits", len(habits), "logs", len(logs))
	return len(habits), nil
}
