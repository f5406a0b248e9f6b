// Package identity resolves which owner the session belongs to.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/habitual/internal/keyring"
	"github.com/julianstephens/habitual/internal/logger"
)

type Status int

const (
	Loading Status = iota
	NoUser
	SignedIn
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case NoUser:
		return "signed out"
	case SignedIn:
		return "signed in"
	}
	return "unknown"
}

// State is one observation of the signed-in user. UserID is empty unless
// Status is SignedIn.
type State struct {
	Status Status
	UserID string
}

func signedIn(id string) State {
	if id == "" {
		return State{Status: NoUser}
	}
	return State{Status: SignedIn, UserID: id}
}

// Provider is the source of identity for a session.
type Provider interface {
	Current(ctx context.Context) (State, error)
	// Watch emits Loading, then the first resolved state, then every change.
	// The channel closes when ctx is done.
	Watch(ctx context.Context) <-chan State
}

// DefaultPollInterval is how often Keyring and Token re-check their source.
const DefaultPollInterval = 5 * time.Second

// Static is a fixed identity.
type Static struct {
	UserID string
}

func (s Static) Current(context.Context) (State, error) {
	return signedIn(s.UserID), nil
}

func (s Static) Watch(ctx context.Context) <-chan State {
	out := make(chan State, 2)
	out <- State{Status: Loading}
	out <- signedIn(s.UserID)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}

// Keyring reads the user id saved by `habitual login` and polls for
// login/logout from other processes.
type Keyring struct {
	Clock    clockwork.Clock
	Interval time.Duration
	Logger   *log.Logger

	get func() (string, error)
}

func NewKeyring(clock clockwork.Clock, interval time.Duration, l *log.Logger) *Keyring {
	return &Keyring{Clock: clock, Interval: interval, Logger: l, get: keyring.GetCurrentUser}
}

func (k *Keyring) Current(context.Context) (State, error) {
	id, err := k.get()
	if errors.Is(err, keyring.ErrNotFound) {
		return State{Status: NoUser}, nil
	}
	if err != nil {
		return State{Status: Loading}, err
	}
	return signedIn(id), nil
}

func (k *Keyring) Watch(ctx context.Context) <-chan State {
	return poll(ctx, k.Clock, k.Interval, logger.OrDefault(k.Logger), k.Current)
}

// poll calls current every interval and emits the result whenever it
// differs from the last emitted state. Errors keep the last state.
func poll(ctx context.Context, clock clockwork.Clock, interval time.Duration, l *log.Logger, current func(context.Context) (State, error)) <-chan State {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	out := make(chan State, 1)
	go func() {
		defer close(out)

		last := State{Status: Loading}
		if !send(ctx, out, last) {
			return
		}

		ticker := clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			st, err := current(ctx)
			switch {
			case err != nil:
				l.Warn("Identity check failed", "error", err)
			case st != last:
				last = st
				if !send(ctx, out, st) {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}
		}
	}()
	return out
}

func send(ctx context.Context, out chan<- State, st State) bool {
	select {
	case out <- st:
		return true
	case <-ctx.Done():
		return false
	}
}
