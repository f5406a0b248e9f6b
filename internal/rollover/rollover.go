// Package rollover signals the change of local calendar date.
package rollover

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/habitual/internal/utils"
)

// Scheduler fires a callback once per local date change. It arms a single
// timer for the next local midnight and re-arms after every wake-up, so a
// missed or early timer only costs one extra check.
type Scheduler struct {
	clock  clockwork.Clock
	loc    *time.Location
	resume chan struct{}

	mu   sync.Mutex
	last string
}

func New(clock clockwork.Clock, loc *time.Location) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		clock:  clock,
		loc:    loc,
		resume: make(chan struct{}, 1),
	}
	s.last = s.Today()
	return s
}

// Today is the current local date key.
func (s *Scheduler) Today() string {
	return utils.DateKey(s.clock.Now(), s.loc)
}

// Last is the date most recently delivered (or observed at construction).
func (s *Scheduler) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Resume asks a running scheduler to re-check the date now. Call it when the
// process returns to the foreground after a suspend.
func (s *Scheduler) Resume() {
	select {
	case s.resume <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done, calling fn with the new date each time the
// local date changes. fn runs on the Run goroutine.
func (s *Scheduler) Run(ctx context.Context, fn func(today string)) error {
	s.check(fn)

	for {
		now := s.clock.Now()
		timer := s.clock.NewTimer(utils.NextMidnight(now, s.loc).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.Chan():
		case <-s.resume:
			timer.Stop()
		}

		s.check(fn)
	}
}

func (s *Scheduler) check(fn func(string)) {
	today := s.Today()

	s.mu.Lock()
	changed := today != s.last
	if changed {
		s.last = today
	}
	s.mu.Unlock()

	if changed {
		fn(today)
	}
}
