// Package session runs the reconciliation loop for the signed-in owner.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/habits"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/reconcile"
	"github.com/julianstephens/habitual/internal/rollover"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/utils"
)

// ErrNotRunning is returned by Toggle when the tracker loop is not running.
var ErrNotRunning = errors.New("session is not running")

type Config struct {
	Store        storage.Store
	Owner        string
	Location     *time.Location
	Clock        clockwork.Clock
	Logger       *log.Logger
	PruneOrphans bool
}

type toggleIntent struct {
	habitID string
	reply   chan error
}

// Tracker owns one owner's session. All state lives on the Run goroutine;
// other goroutines talk to it through channels.
type Tracker struct {
	owner string
	loc   *time.Location
	log   *log.Logger

	habits *habits.Repository
	rec    *reconcile.Reconciler
	sched  *rollover.Scheduler

	views   chan View
	intents chan toggleIntent
	done    chan struct{}
}

func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	l := logger.OrDefault(cfg.Logger).With("component", "session", "owner", cfg.Owner)

	repo, err := habits.NewRepository(cfg.Store, cfg.Owner, cfg.Logger)
	if err != nil {
		return nil, err
	}
	rec, err := reconcile.New(cfg.Store, cfg.Owner, cfg.Logger, reconcile.WithPruneOrphans(cfg.PruneOrphans))
	if err != nil {
		return nil, err
	}

	return &Tracker{
		owner:   cfg.Owner,
		loc:     loc,
		log:     l,
		habits:  repo,
		rec:     rec,
		sched:   rollover.New(cfg.Clock, loc),
		views:   make(chan View, 1),
		intents: make(chan toggleIntent),
		done:    make(chan struct{}),
	}, nil
}

func (t *Tracker) Owner() string                     { return t.owner }
func (t *Tracker) Habits() *habits.Repository        { return t.habits }
func (t *Tracker) Reconciler() *reconcile.Reconciler { return t.rec }

// Views delivers the most recent View. Intermediate views may be skipped.
// The channel closes when Run returns.
func (t *Tracker) Views() <-chan View { return t.views }

// Resume re-checks the date, for use after the process was suspended.
func (t *Tracker) Resume() { t.sched.Resume() }

// Toggle flips today's completion of habitID on the loop goroutine and
// returns the write error, if any.
func (t *Tracker) Toggle(ctx context.Context, habitID string) error {
	in := toggleIntent{habitID: habitID, reply: make(chan error, 1)}
	select {
	case t.intents <- in:
	case <-t.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-in.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the session until ctx is done. It may be called once.
func (t *Tracker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	days := make(chan string, 1)

	g.Go(func() error {
		return t.sched.Run(ctx, func(today string) { latest(days, today) })
	})
	g.Go(func() error {
		defer close(t.done)
		defer close(t.views)
		return t.loop(ctx, days)
	})
	return g.Wait()
}

func (t *Tracker) loop(ctx context.Context, days <-chan string) error {
	today := t.sched.Last()

	habitCh, err := t.habits.Subscribe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe habits: %w", err)
	}

	dayCtx, cancelDay := context.WithCancel(ctx)
	defer func() { cancelDay() }()
	logCh, err := t.rec.SubscribeDay(dayCtx, today)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe logs: %w", err)
	}

	var (
		current  []models.Habit
		logs     []models.CompletionLog
		haveHabs bool
		haveLogs bool
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case hs, ok := <-habitCh:
			if !ok {
				return nil
			}
			current, haveHabs = hs, true
			if logCh == nil {
				logCh = t.resubscribe(dayCtx, today)
			}

		case ls, ok := <-logCh:
			if !ok {
				logCh = nil
				continue
			}
			logs, haveLogs = ls, true

		case d := <-days:
			if d == today {
				continue
			}
			t.log.Info("Date rolled over", "from", today, "to", d)
			today = d
			cancelDay()
			dayCtx, cancelDay = context.WithCancel(ctx)
			logs, haveLogs = nil, false
			logCh = t.resubscribe(dayCtx, today)
			if logCh == nil && haveHabs {
				// no logs yet for the new day; show it rather than yesterday
				t.publish(today, current, nil)
			}
			continue

		case in := <-t.intents:
			if logCh == nil {
				logCh = t.resubscribe(dayCtx, today)
			}
			in.reply <- t.toggle(ctx, today, in.habitID, current, haveHabs, logs)
			continue
		}

		if haveHabs && haveLogs {
			logs = t.step(ctx, today, current, logs)
		}
	}
}

// resubscribe attaches to date's logs. It returns nil on failure; the loop
// tries again on its next habit snapshot or toggle.
func (t *Tracker) resubscribe(ctx context.Context, date string) <-chan []models.CompletionLog {
	ch, err := t.rec.SubscribeDay(ctx, date)
	if err != nil {
		if ctx.Err() == nil {
			t.log.Error("Failed to subscribe to logs", "date", date, "error", err)
		}
		return nil
	}
	return ch
}

func (t *Tracker) toggle(ctx context.Context, today, habitID string, current []models.Habit, haveHabs bool, logs []models.CompletionLog) error {
	if haveHabs && !slices.ContainsFunc(current, func(h models.Habit) bool { return h.ID == habitID }) {
		return fmt.Errorf("toggle: habit %s: %w", habitID, apperrors.ErrNotFound)
	}
	return t.rec.Toggle(ctx, today, habitID, logs)
}

func (t *Tracker) publish(today string, all []models.Habit, logs []models.CompletionLog) {
	date, err := utils.ParseDateInLocation(today, t.loc)
	if err != nil {
		t.log.Error("Bad session date", "date", today, "error", err)
		return
	}
	latest(t.views, buildView(t.owner, today, all, utils.DueHabits(all, date), logs))
}

// step reconciles and publishes. On a store error the previous view stays.
func (t *Tracker) step(ctx context.Context, today string, all []models.Habit, logs []models.CompletionLog) []models.CompletionLog {
	date, err := utils.ParseDateInLocation(today, t.loc)
	if err != nil {
		t.log.Error("Bad session date", "date", today, "error", err)
		return logs
	}
	due := utils.DueHabits(all, date)

	created, err := t.rec.Reconcile(ctx, today, due, logs)
	if err != nil {
		if ctx.Err() == nil {
			t.log.Warn("Reconcile failed, keeping last view", "date", today, "error", err)
		}
		return logs
	}
	logs = mergeCreated(logs, created)
	latest(t.views, buildView(t.owner, today, all, due, logs))
	return logs
}
