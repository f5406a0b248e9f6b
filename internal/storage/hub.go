package storage

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/habitual/internal/logger"
)

// Loader runs a subscription's query against the backing store.
type Loader func(ctx context.Context) ([]Document, error)

// Hub fans change notifications out to subscriptions. Each subscription
// re-runs its query on its own goroutine; notifications that arrive while a
// query is running are coalesced into one refresh.
type Hub struct {
	log *log.Logger

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

type subscription struct {
	collection string
	notify     chan struct{}
	cancel     context.CancelFunc
	exited     chan struct{}
}

func NewHub(l *log.Logger) *Hub {
	return &Hub{
		log:  logger.OrDefault(l),
		subs: make(map[*subscription]struct{}),
	}
}

// Subscribe runs load once synchronously so that attach errors reach the
// caller, then delivers that result and every later refresh to onChange.
// The subscription is registered before the first load, so a change racing
// the attach triggers a refresh instead of being lost.
// The returned Unsubscribe must not be called from inside onChange.
func (h *Hub) Subscribe(ctx context.Context, collection string, load Loader, onChange func([]Document)) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		collection: collection,
		notify:     make(chan struct{}, 1),
		cancel:     cancel,
		exited:     make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	initial, err := load(ctx)
	if err != nil {
		h.remove(sub)
		cancel()
		close(sub.exited)
		return nil, err
	}

	go h.run(subCtx, sub, initial, load, onChange)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.cancel()
			<-sub.exited
		})
	}, nil
}

func (h *Hub) run(ctx context.Context, sub *subscription, initial []Document, load Loader, onChange func([]Document)) {
	defer close(sub.exited)
	defer h.remove(sub)

	if ctx.Err() != nil {
		return
	}
	onChange(initial)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.notify:
		}

		docs, err := load(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			h.log.Warn("Subscription refresh failed", "collection", sub.collection, "error", err)
			continue
		}
		onChange(docs)
	}
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Publish wakes every subscription on the given collections, or on all
// collections when none are named.
func (h *Hub) Publish(collections ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if len(collections) > 0 && !contains(collections, sub.collection) {
			continue
		}
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

// Active returns the number of live subscriptions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches every subscription and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.exited
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
