// Package reconcile keeps exactly one completion log per due habit per day
// and applies completion toggles.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/storage"
)

type Reconciler struct {
	store        storage.Store
	owner        string
	log          *log.Logger
	pruneOrphans bool
}

type Option func(*Reconciler)

// WithPruneOrphans makes Reconcile also delete today's uncompleted logs for
// habits that are no longer due. Completed logs are always kept.
func WithPruneOrphans(enabled bool) Option {
	return func(r *Reconciler) { r.pruneOrphans = enabled }
}

func New(store storage.Store, owner string, l *log.Logger, opts ...Option) (*Reconciler, error) {
	if owner == "" {
		return nil, apperrors.ErrNoOwner
	}
	r := &Reconciler{
		store: store,
		owner: owner,
		log:   logger.OrDefault(l).With("component", "reconcile", "owner", owner),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Reconciler) Owner() string { return r.owner }

// DecodeLog turns a stored document into a CompletionLog.
func DecodeLog(d storage.Document) (models.CompletionLog, error) {
	var l models.CompletionLog
	if err := d.Decode(&l); err != nil {
		return models.CompletionLog{}, err
	}
	l.ID = d.ID
	return l, nil
}

// Missing returns, in due order, the ids of due habits that have no log for
// (owner, today).
func Missing(due []models.Habit, logs []models.CompletionLog, owner, today string) []string {
	have := models.LogsByHabit(logs, owner, today)
	seen := make(map[string]bool, len(due))
	var missing []string
	for _, h := range due {
		if _, ok := have[h.ID]; ok || seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		missing = append(missing, h.ID)
	}
	return missing
}

// Orphans returns today's uncompleted logs whose habit is not in due.
func Orphans(due []models.Habit, logs []models.CompletionLog, owner, today string) []models.CompletionLog {
	dueIDs := make(map[string]bool, len(due))
	for _, h := range due {
		dueIDs[h.ID] = true
	}
	var out []models.CompletionLog
	for _, l := range logs {
		if l.Owner == owner && l.Date == today && !l.Completed && !dueIDs[l.HabitID] {
			out = append(out, l)
		}
	}
	return out
}

func (r *Reconciler) dayFilters(date string) []storage.Filter {
	return []storage.Filter{
		storage.Eq(constants.FieldOwner, r.owner),
		storage.Eq(constants.FieldDate, date),
	}
}

// LogsOn returns the owner's logs dated date.
func (r *Reconciler) LogsOn(ctx context.Context, date string) ([]models.CompletionLog, error) {
	docs, err := r.store.Query(ctx, constants.CollectionLogs, r.dayFilters(date)...)
	if err != nil {
		return nil, apperrors.MapStore("query logs", err)
	}
	return storage.DecodeAll(docs, DecodeLog, r.log), nil
}

// History returns every log of the owner.
func (r *Reconciler) History(ctx context.Context) ([]models.CompletionLog, error) {
	docs, err := r.store.Query(ctx, constants.CollectionLogs, storage.Eq(constants.FieldOwner, r.owner))
	if err != nil {
		return nil, apperrors.MapStore("query history", err)
	}
	return storage.DecodeAll(docs, DecodeLog, r.log), nil
}

// SubscribeDay streams the owner's logs dated date.
func (r *Reconciler) SubscribeDay(ctx context.Context, date string) (<-chan []models.CompletionLog, error) {
	ch, err := storage.Snapshots(ctx, r.store, constants.CollectionLogs, r.dayFilters(date), DecodeLog, r.log)
	if err != nil {
		return nil, apperrors.MapStore("subscribe logs", err)
	}
	return ch, nil
}

// Reconcile creates a log for every due habit that lacks one today, in a
// single atomic batch, and returns the logs it created. Running it again
// with a log set that includes those logs writes nothing.
//
// When the batch hits the uniqueness backstop another writer got there
// first. The log set is re-read and the diff retried once; if that also
// conflicts the pass is abandoned and the next snapshot converges.
func (r *Reconciler) Reconcile(ctx context.Context, today string, due []models.Habit, logs []models.CompletionLog) ([]models.CompletionLog, error) {
	created, err := r.reconcileOnce(ctx, today, due, logs)
	if !errors.Is(err, storage.ErrUniqueViolation) {
		if err != nil {
			return nil, apperrors.MapStore("reconcile", err)
		}
		return created, nil
	}

	r.log.Debug("Reconcile lost a creation race, retrying with fresh logs", "date", today)
	fresh, qerr := r.LogsOn(ctx, today)
	if qerr != nil {
		return nil, qerr
	}
	created, err = r.reconcileOnce(ctx, today, due, fresh)
	if errors.Is(err, storage.ErrUniqueViolation) {
		r.log.Debug("Reconcile conflicted twice, deferring to next snapshot", "date", today)
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.MapStore("reconcile", err)
	}
	return created, nil
}

func (r *Reconciler) reconcileOnce(ctx context.Context, today string, due []models.Habit, logs []models.CompletionLog) ([]models.CompletionLog, error) {
	missing := Missing(due, logs, r.owner, today)
	if len(missing) > 0 {
		// due may come from a habit snapshot older than the log snapshot
		live, err := r.liveHabits(ctx, missing)
		if err != nil {
			return nil, err
		}
		missing = live
	}
	var orphans []models.CompletionLog
	if r.pruneOrphans {
		orphans = Orphans(due, logs, r.owner, today)
	}
	if len(missing) == 0 && len(orphans) == 0 {
		return nil, nil
	}

	ops := make([]storage.Op, 0, len(missing)+len(orphans))
	created := make([]models.CompletionLog, 0, len(missing))
	for _, habitID := range missing {
		l := models.CompletionLog{
			ID:      storage.NewID(),
			Owner:   r.owner,
			HabitID: habitID,
			Date:    today,
		}
		fields, err := storage.Encode(l)
		if err != nil {
			return nil, fmt.Errorf("encode log: %w", err)
		}
		ops = append(ops, storage.InsertOp(constants.CollectionLogs, l.ID, fields))
		created = append(created, l)
	}
	for _, l := range orphans {
		ops = append(ops, storage.DeleteOp(constants.CollectionLogs, l.ID))
	}

	if err := r.store.BatchWrite(ctx, ops); err != nil {
		return nil, err
	}

	r.log.Info("Reconciled logs", "date", today, "created", len(created), "pruned", len(orphans))
	return created, nil
}

// liveHabits drops ids that no longer name one of the owner's habits.
func (r *Reconciler) liveHabits(ctx context.Context, ids []string) ([]string, error) {
	docs, err := r.store.Query(ctx, constants.CollectionHabits, storage.Eq(constants.FieldOwner, r.owner))
	if err != nil {
		return nil, err
	}
	exists := make(map[string]bool, len(docs))
	for _, d := range docs {
		exists[d.ID] = true
	}
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if !exists[id] {
			r.log.Debug("Skipping log for deleted habit", "habit", id)
			continue
		}
		kept = append(kept, id)
	}
	return kept, nil
}

// requireHabit reports ErrNotFound unless habitID is one of the owner's habits.
func (r *Reconciler) requireHabit(ctx context.Context, habitID string) error {
	doc, err := r.store.Get(ctx, constants.CollectionHabits, habitID)
	if err != nil {
		return apperrors.MapStore("toggle", err)
	}
	if owner, _ := doc.Fields[constants.FieldOwner].(string); owner != r.owner {
		return fmt.Errorf("toggle: habit %s: %w", habitID, apperrors.ErrNotFound)
	}
	return nil
}

// Toggle flips today's completion for habitID using logs as the known state.
// If no log is known one is created already completed. Should that insert
// hit the uniqueness backstop, the log that won is re-read and marked
// completed, which is what the user asked for from the absent state.
func (r *Reconciler) Toggle(ctx context.Context, today, habitID string, logs []models.CompletionLog) error {
	if habitID == "" {
		return apperrors.NewValidationError("habit", "id cannot be empty")
	}
	if existing, ok := models.LogsByHabit(logs, r.owner, today)[habitID]; ok {
		return r.setCompleted(ctx, existing.ID, !existing.Completed)
	}
	return r.createCompleted(ctx, today, habitID, true)
}

// ToggleByQuery reads today's logs first, for callers without a live
// subscription.
func (r *Reconciler) ToggleByQuery(ctx context.Context, today, habitID string) error {
	logs, err := r.LogsOn(ctx, today)
	if err != nil {
		return err
	}
	return r.Toggle(ctx, today, habitID, logs)
}

// SetCompleted forces today's completion for habitID to completed.
func (r *Reconciler) SetCompleted(ctx context.Context, today, habitID string, completed bool) error {
	logs, err := r.LogsOn(ctx, today)
	if err != nil {
		return err
	}
	if existing, ok := models.LogsByHabit(logs, r.owner, today)[habitID]; ok {
		if existing.Completed == completed {
			return nil
		}
		return r.setCompleted(ctx, existing.ID, completed)
	}
	return r.createCompleted(ctx, today, habitID, completed)
}

func (r *Reconciler) setCompleted(ctx context.Context, logID string, completed bool) error {
	err := r.store.Update(ctx, constants.CollectionLogs, logID, storage.Fields{constants.FieldCompleted: completed})
	if err != nil {
		return apperrors.MapStore("toggle", err)
	}
	r.log.Debug("Set completion", "log", logID, "completed", completed)
	return nil
}

func (r *Reconciler) createCompleted(ctx context.Context, today, habitID string, completed bool) error {
	if err := r.requireHabit(ctx, habitID); err != nil {
		return err
	}
	fields, err := storage.Encode(models.CompletionLog{
		Owner:     r.owner,
		HabitID:   habitID,
		Date:      today,
		Completed: completed,
	})
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}

	_, err = r.store.Insert(ctx, constants.CollectionLogs, fields)
	if !errors.Is(err, storage.ErrUniqueViolation) {
		return apperrors.MapStore("toggle", err)
	}

	logs, qerr := r.LogsOn(ctx, today)
	if qerr != nil {
		return qerr
	}
	winner, ok := models.LogsByHabit(logs, r.owner, today)[habitID]
	if !ok {
		return apperrors.MapStore("toggle", err)
	}
	if winner.Completed == completed {
		return nil
	}
	return r.setCompleted(ctx, winner.ID, completed)
}
