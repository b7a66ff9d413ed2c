package navigation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/registry"
)

var ctx = context.Background()

// recorder collects "module:hook" lines across participants.
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) add(id, hook string) {
	r.mu.Lock()
	r.lines = append(r.lines, id+":"+hook)
	r.mu.Unlock()
}

// take returns the lines recorded so far and resets the recorder.
func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.lines
	r.lines = nil
	return out
}

// spy is a participant implementing every synchronous hook.
type spy struct {
	id  string
	rec *recorder

	cancelLeaving  bool
	cancelEntering bool
	panicLeaving   bool
	enteringErr    error
	enteredErr     error
	payload        any

	// started is closed when Entering begins; Entering then waits on release.
	started chan struct{}
	release chan struct{}

	entering *Transition
	disposed atomic.Int32
}

func (p *spy) Hooks() Hooks {
	return Hooks{
		Leaving: func(ctx context.Context, t *Transition) error {
			p.rec.add(p.id, "leaving")
			if p.panicLeaving {
				panic("boom")
			}
			if p.cancelLeaving {
				t.Cancel()
			}
			return nil
		},
		Entering: func(ctx context.Context, t *Transition) error {
			p.rec.add(p.id, "entering")
			p.entering = t
			if p.started != nil {
				close(p.started)
				p.started = nil
			}
			if p.release != nil {
				<-p.release
			}
			if p.cancelEntering {
				t.Cancel()
			}
			if p.payload != nil {
				t.SetPayload(p.payload)
			}
			return p.enteringErr
		},
		Left: func(t *Transition) error {
			p.rec.add(p.id, "left")
			return nil
		},
		Entered: func(t *Transition) error {
			p.rec.add(p.id, "entered")
			return p.enteredErr
		},
		Dispose: func() {
			p.rec.add(p.id, "dispose")
			p.disposed.Inc()
		},
	}
}

// hooked adapts a bare Hooks table into a Participant.
type hooked Hooks

func (h hooked) Hooks() Hooks { return Hooks(h) }

type fixture struct {
	rec     *recorder
	modules *registry.Registry[Participant]
	svc     *Service

	mu    sync.Mutex
	built map[string][]*spy
	tweak map[string]func(*spy)
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	f := &fixture{
		rec:     &recorder{},
		modules: registry.New[Participant](),
		built:   make(map[string][]*spy),
		tweak:   make(map[string]func(*spy)),
	}
	f.svc = NewService(f.modules, opts...)
	t.Cleanup(func() { _ = f.svc.Close() })
	return f
}

// newStarted registers home, list, detail, picker and a cached settings
// module, then initializes on home.
func newStarted(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	f := newFixture(t, opts...)
	for _, id := range []string{"home", "list", "detail", "picker"} {
		f.register(t, id)
	}
	f.register(t, "settings", registry.WithLifetime(registry.LifetimeCached))
	require.NoError(t, f.svc.Initialize(ctx, "home"))
	f.rec.take()
	return f
}

func (f *fixture) register(t *testing.T, id string, opts ...registry.ModuleOption) {
	t.Helper()
	require.NoError(t, f.modules.Register(id, func() (any, Participant, error) {
		p := &spy{id: id, rec: f.rec}
		f.mu.Lock()
		if tw := f.tweak[id]; tw != nil {
			tw(p)
		}
		f.built[id] = append(f.built[id], p)
		f.mu.Unlock()
		return "view:" + id, p, nil
	}, opts...))
}

// on configures every spy built for id from now on.
func (f *fixture) on(id string, tw func(*spy)) {
	f.mu.Lock()
	f.tweak[id] = tw
	f.mu.Unlock()
}

// last returns the most recently built spy for id.
func (f *fixture) last(id string) *spy {
	f.mu.Lock()
	defer f.mu.Unlock()
	built := f.built[id]
	if len(built) == 0 {
		return nil
	}
	return built[len(built)-1]
}

func (f *fixture) builds(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built[id])
}

func (f *fixture) ids() []string {
	var ids []string
	for _, item := range f.svc.History() {
		ids = append(ids, item.ModuleID)
	}
	return ids
}

// navigate runs a chain of successful navigations.
func (f *fixture) navigate(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		res := f.svc.Navigate(ctx, id)
		require.True(t, res.OK(), "navigate %s: %v", id, res.Err)
	}
	f.rec.take()
}

// openModal starts NavigateModal on its own goroutine and waits until the
// modal is committed and the service is idle again.
func (f *fixture) openModal(t *testing.T, c context.Context, id string) <-chan Result {
	t.Helper()
	depth := f.svc.ModalDepth()
	done := make(chan Result, 1)
	go func() { done <- f.svc.NavigateModal(c, id) }()
	require.Eventually(t, func() bool {
		return f.svc.State() == StateReady && f.svc.ModalDepth() == depth+1
	}, time.Second, time.Millisecond)
	f.rec.take()
	return done
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
	var zero T
	return zero
}

type finished struct {
	kind    TransitionKind
	status  Status
	elapsed time.Duration
}

type fakeObserver struct {
	mu       sync.Mutex
	finished []finished
	changes  [][2]int
}

func (o *fakeObserver) TransitionFinished(_ string, kind TransitionKind, res Result, elapsed time.Duration) {
	o.mu.Lock()
	o.finished = append(o.finished, finished{kind: kind, status: res.Status, elapsed: elapsed})
	o.mu.Unlock()
}

func (o *fakeObserver) HistoryChanged(_ string, count, index int) {
	o.mu.Lock()
	o.changes = append(o.changes, [2]int{count, index})
	o.mu.Unlock()
}

// logGate stalls a transition inside logger setup, after its snapshot and
// before its commit. Once armed, the first logger derived with the matching
// kind attribute blocks until open is called.
type logGate struct {
	kind    string
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newLogGate(kind TransitionKind) *logGate {
	return &logGate{
		kind:    kind.String(),
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *logGate) logger() *slog.Logger {
	return slog.New(gatedHandler{Handler: slog.NewTextHandler(io.Discard, nil), gate: g})
}

func (g *logGate) arm() { g.armed.Store(true) }

func (g *logGate) open() { close(g.release) }

// wait blocks until an armed transition is held at the gate.
func (g *logGate) wait(t *testing.T) {
	t.Helper()
	select {
	case <-g.reached:
	case <-time.After(time.Second):
		t.Fatal("transition never reached the gate")
	}
}

type gatedHandler struct {
	slog.Handler
	gate *logGate
}

func (h gatedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	for _, a := range attrs {
		if a.Key == "kind" && a.Value.String() == h.gate.kind && h.gate.armed.CompareAndSwap(true, false) {
			close(h.gate.reached)
			<-h.gate.release
		}
	}
	return gatedHandler{Handler: h.Handler.WithAttrs(attrs), gate: h.gate}
}

func (h gatedHandler) WithGroup(name string) slog.Handler {
	return gatedHandler{Handler: h.Handler.WithGroup(name), gate: h.gate}
}
