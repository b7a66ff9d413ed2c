package navigation

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// CurrentChanged is raised synchronously at every commit that changes the
// current module. Hosting views swap their displayed content on it.
type CurrentChanged struct {
	Service  string
	Kind     TransitionKind
	Previous *Module // nil on Initialize
	Current  *Module
	Index    int
}

// Navigated is raised once per successful commit, right after CurrentChanged.
type Navigated struct {
	Service      string
	TransitionID string
	Kind         TransitionKind
	From         string
	To           string
	Params       map[string]any
}

// Subscription is the handle for an event handler. Unsubscribe is
// idempotent and safe to call from inside the handler.
type Subscription struct {
	ID     string
	active atomic.Bool
	cancel func()
	once   sync.Once
}

// Unsubscribe detaches the handler.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.active.Store(false)
		s.cancel()
	})
}

// Active reports whether the handler is still attached.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

type handler[E any] struct {
	sub *Subscription
	fn  func(E)
}

// eventBus delivers events to handlers in subscription order.
type eventBus[E any] struct {
	mu       sync.Mutex
	handlers []handler[E]
}

func (b *eventBus[E]) subscribe(fn func(E)) *Subscription {
	sub := &Subscription{ID: uuid.NewString()}
	sub.active.Store(true)
	sub.cancel = func() { b.remove(sub) }

	b.mu.Lock()
	b.handlers = append(b.handlers, handler[E]{sub: sub, fn: fn})
	b.mu.Unlock()
	return sub
}

func (b *eventBus[E]) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.sub == sub {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return
		}
	}
}

// publish calls every active handler. Handler panics are logged, not propagated.
func (b *eventBus[E]) publish(logger *slog.Logger, name string, ev E) {
	b.mu.Lock()
	snapshot := make([]handler[E], len(b.handlers))
	copy(snapshot, b.handlers)
	b.mu.Unlock()

	for _, h := range snapshot {
		if !h.sub.Active() {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event handler panicked", "event", name, "subscription", h.sub.ID, "panic", r)
				}
			}()
			h.fn(ev)
		}()
	}
}

// clear detaches every handler.
func (b *eventBus[E]) clear() {
	b.mu.Lock()
	handlers := b.handlers
	b.handlers = nil
	b.mu.Unlock()

	for _, h := range handlers {
		h.sub.active.Store(false)
	}
}

func (b *eventBus[E]) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}
