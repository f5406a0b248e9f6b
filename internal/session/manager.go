package session

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/identity"
	"github.com/julianstephens/habitual/internal/logger"
)

// Manager follows an identity provider and keeps exactly one Tracker alive
// for whoever is signed in.
type Manager struct {
	cfg      Config
	provider identity.Provider
	log      *log.Logger
	views    chan View

	mu      sync.Mutex
	tracker *Tracker
}

// NewManager takes cfg as a template; Owner is filled in per sign-in.
func NewManager(cfg Config, p identity.Provider) *Manager {
	return &Manager{
		cfg:      cfg,
		provider: p,
		log:      logger.OrDefault(cfg.Logger).With("component", "session"),
		views:    make(chan View, 1),
	}
}

// Views delivers the latest View of the current owner, or the zero View
// after sign-out. It is closed when Run returns.
func (m *Manager) Views() <-chan View { return m.views }

// Current is the running tracker, or nil when nobody is signed in.
func (m *Manager) Current() *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker
}

func (m *Manager) Toggle(ctx context.Context, habitID string) error {
	t := m.Current()
	if t == nil {
		return apperrors.ErrNoOwner
	}
	return t.Toggle(ctx, habitID)
}

func (m *Manager) Resume() {
	if t := m.Current(); t != nil {
		t.Resume()
	}
}

type running struct {
	tracker *Tracker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func (r *running) stop() {
	r.cancel()
	r.wg.Wait()
}

func (m *Manager) Run(ctx context.Context) error {
	defer close(m.views)

	var cur *running
	stop := func() {
		if cur == nil {
			return
		}
		cur.stop()
		cur = nil
		m.mu.Lock()
		m.tracker = nil
		m.mu.Unlock()
	}
	defer stop()

	states := m.provider.Watch(ctx)
	for {
		var st identity.State
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-states:
			if !ok {
				return nil
			}
			st = s
		}

		switch st.Status {
		case identity.Loading:
			continue
		case identity.NoUser:
			if cur != nil {
				m.log.Info("Signed out", "owner", cur.tracker.Owner())
			}
			stop()
			latest(m.views, View{})
		case identity.SignedIn:
			if cur != nil && cur.tracker.Owner() == st.UserID {
				continue
			}
			if cur != nil {
				stop()
				// drop any view of the previous owner still waiting to be read
				latest(m.views, View{})
			}
			next, err := m.start(ctx, st.UserID)
			if err != nil {
				m.log.Error("Failed to start session", "owner", st.UserID, "error", err)
				latest(m.views, View{})
				continue
			}
			cur = next
		}
	}
}

func (m *Manager) start(ctx context.Context, owner string) (*running, error) {
	cfg := m.cfg
	cfg.Owner = owner
	t, err := NewTracker(cfg)
	if err != nil {
		return nil, err
	}

	tctx, cancel := context.WithCancel(ctx)
	r := &running{tracker: t, cancel: cancel}
	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		if err := t.Run(tctx); err != nil {
			m.log.Error("Session stopped", "owner", owner, "error", err)
		}
	}()
	go func() {
		defer r.wg.Done()
		for v := range t.Views() {
			latest(m.views, v)
		}
	}()

	m.mu.Lock()
	m.tracker = t
	m.mu.Unlock()
	m.log.Info("Signed in", "owner", owner)
	return r, nil
}
