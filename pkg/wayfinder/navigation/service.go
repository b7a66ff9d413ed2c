package navigation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/history"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/registry"
)

// DefaultServiceID is used when no id is given to NewService.
const DefaultServiceID = "default"

// State is the lifecycle state of a Service.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateTransitioning
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateTransitioning:
		return "transitioning"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Observer receives a callback for every finished transition request and
// every history commit. The metrics package provides a prometheus one.
type Observer interface {
	TransitionFinished(service string, kind TransitionKind, res Result, elapsed time.Duration)
	HistoryChanged(service string, count, index int)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithID names the service; the Directory and proxy navigators use it.
func WithID(id string) ServiceOption {
	return func(s *Service) {
		if id != "" {
			s.id = id
		}
	}
}

// WithLogger replaces the default internal logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver attaches a transition observer.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

// WithDisposeOnRemove sets the history disposal policy. It defaults to true.
func WithDisposeOnRemove(dispose bool) ServiceOption {
	return func(s *Service) {
		s.disposeOnRemove = dispose
	}
}

// Service owns one navigation history and one module registry and runs the
// transition pipeline between them.
//
// At most one transition is in flight per Service: a navigation call made
// while another is running fails with an InvalidStateError wrapping
// wayfinder.ErrBusy instead of interleaving. A modal navigation counts as in
// flight only until its commit; the wait for ReturnModal happens outside.
type Service struct {
	id              string
	modules         *registry.Registry[Participant]
	logger          *slog.Logger
	observer        Observer
	disposeOnRemove bool

	state atomic.Int32

	mu       sync.RWMutex
	history  *history.History[*Module]
	modals   []*modalWait
	retained []Participant

	// pendingDispose holds modules released by the history under mu.
	pendingDispose []*Module

	currentChanged eventBus[CurrentChanged]
	navigated      eventBus[Navigated]
}

// modalWait is an open modal flow awaiting ReturnModal.
type modalWait struct {
	origin int // history index of the modal origin entry
	done   chan Result
}

// NewService creates an uninitialized service over modules.
func NewService(modules *registry.Registry[Participant], opts ...ServiceOption) *Service {
	if modules == nil {
		modules = registry.New[Participant]()
	}
	s := &Service{
		id:              DefaultServiceID,
		modules:         modules,
		logger:          wayfinder.GetInternalLogger(),
		disposeOnRemove: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("service", s.id)
	return s
}

// ID returns the service identifier.
func (s *Service) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Registry returns the module registry the service resolves against.
func (s *Service) Registry() *registry.Registry[Participant] {
	return s.modules
}

// Initialize seeds the history with initialID as its base entry, runs the
// entered hooks of that participant and makes the service ready. A failing
// entered hook is returned but the service is still initialized.
func (s *Service) Initialize(ctx context.Context, initialID string) error {
	if !s.state.CompareAndSwap(int32(StateUninitialized), int32(StateTransitioning)) {
		st := s.State()
		cause := wayfinder.ErrAlreadyInitialized
		if st == StateDisposed {
			cause = wayfinder.ErrDisposed
		}
		return wayfinder.NewInvalidStateError("initialize", st.String(), cause)
	}

	inst, err := s.modules.Resolve(initialID)
	if err != nil {
		s.state.CompareAndSwap(int32(StateTransitioning), int32(StateUninitialized))
		return err
	}

	s.mu.Lock()
	s.history = history.New(inst,
		history.WithDisposeOnRemove[*Module](s.disposeOnRemove),
		history.WithDisposer(s.disposeModule),
	)
	if s.isRetainedLocked(inst.Participant) {
		s.history.SetRetained(0, true)
	}
	s.mu.Unlock()
	s.modules.Freeze()

	t := newTransition(s.id, KindInitial, nil, inst, navOptions{})
	t.committed = true
	s.logger.Info("navigation service initialized", "transition", t.ID, "module", inst.ID)

	if s.observer != nil {
		s.observer.HistoryChanged(s.id, 1, 0)
	}
	s.publishCommit(t, 0)

	err = s.postCommit(ctx, t)
	if err != nil {
		s.logger.Warn("initial entered hook failed", "transition", t.ID, "error", err)
	}
	s.state.CompareAndSwap(int32(StateTransitioning), int32(StateReady))
	return err
}

// Navigate transitions to the module registered under id.
func (s *Service) Navigate(ctx context.Context, id string, opts ...NavigateOption) Result {
	return s.push(ctx, KindNavigate, id, opts, nil)
}

// NavigateBack moves to the previous history entry, or WithSteps(n) entries back.
func (s *Service) NavigateBack(ctx context.Context, opts ...NavigateOption) Result {
	return s.step(ctx, KindBack, opts)
}

// NavigateForward moves to the next history entry, or WithSteps(n) entries forward.
func (s *Service) NavigateForward(ctx context.Context, opts ...NavigateOption) Result {
	return s.step(ctx, KindForward, opts)
}

// NavigateModal runs a navigation whose committed entry is marked as a modal
// origin, then blocks until a matching ReturnModal, returning
// Success(payload). Cancellation of ctx while waiting yields a Failed result
// with Committed set; the modal entry stays in the history.
func (s *Service) NavigateModal(ctx context.Context, id string, opts ...NavigateOption) Result {
	res, w := s.openModal(ctx, id, opts)
	if w == nil {
		return res
	}

	select {
	case r := <-w.done:
		return r
	case <-ctx.Done():
		if s.dropModal(w) {
			return Result{Status: StatusFailed, Err: ctx.Err(), Committed: true}
		}
		return <-w.done
	}
}

// OpenModal is the non-blocking half of NavigateModal. It returns once the
// modal entry is committed and the service accepts calls again. On success
// the channel delivers exactly one Result: Success(payload) from
// ReturnModal, a Cancelled result wrapping wayfinder.ErrModalAbandoned, or a
// Failed result from Close. On failure the channel is nil.
func (s *Service) OpenModal(ctx context.Context, id string, opts ...NavigateOption) (Result, <-chan Result) {
	res, w := s.openModal(ctx, id, opts)
	if w == nil {
		return res, nil
	}
	return res, w.done
}

// openModal returns a waiter only for a modal that committed cleanly.
func (s *Service) openModal(ctx context.Context, id string, opts []NavigateOption) (Result, *modalWait) {
	w := &modalWait{done: make(chan Result, 1)}
	res := s.push(ctx, KindModal, id, opts, w)
	if !res.Committed {
		return res, nil
	}
	if !res.OK() {
		// A post-commit hook failed; report it now rather than waiting.
		s.dropModal(w)
		return res, nil
	}
	return res, w
}

// ReturnModal closes the innermost open modal flow. The history unwinds to
// the entry preceding the modal origin without running the cancellable
// hooks, and the NavigateModal caller receives Success(payload). The
// returned Result describes the unwind itself.
func (s *Service) ReturnModal(ctx context.Context, payload any, opts ...NavigateOption) Result {
	start := time.Now()
	if err := s.begin("return-modal"); err != nil {
		return s.observe(KindModalReturn, start, Failed(err))
	}
	defer s.end()

	s.mu.RLock()
	if len(s.modals) == 0 {
		s.mu.RUnlock()
		return s.observe(KindModalReturn, start,
			Failed(wayfinder.NewInvalidStateError("return-modal", StateReady.String(), wayfinder.ErrNoModal)))
	}
	w := s.modals[len(s.modals)-1]
	target := w.origin - 1
	steps := s.history.CurrentIndex() - target
	from := s.history.CurrentItem()
	to := s.history.At(target).Item
	s.mu.RUnlock()

	t := newTransition(s.id, KindModalReturn, from, to, collectOptions(opts))
	t.payload = payload

	res := s.transition(ctx, t, true, func() ([]*modalWait, error) {
		// The waiter may have been dropped by its caller since the snapshot.
		if n := len(s.modals); n == 0 || s.modals[n-1] != w {
			return nil, wayfinder.NewInvalidStateError("return-modal", StateTransitioning.String(), wayfinder.ErrNoModal)
		}
		s.history.TryMoveBack(steps)
		s.history.SetModalOrigin(w.origin, false)
		s.modals = s.modals[:len(s.modals)-1]
		return s.abandonModalsLocked(target), nil
	})
	if res.Committed {
		w.done <- Success(payload)
	}
	return s.observe(KindModalReturn, start, res)
}

// ClearHistory drops every entry but the base. If the base isn't current,
// this is a transition to it and runs the full hook pipeline; otherwise the
// redo entries are dropped silently.
func (s *Service) ClearHistory(ctx context.Context, opts ...NavigateOption) Result {
	start := time.Now()
	if err := s.begin("clear"); err != nil {
		return s.observe(KindClear, start, Failed(err))
	}
	defer s.end()

	s.mu.Lock()
	if s.history.Count() == 1 {
		s.mu.Unlock()
		return s.observe(KindClear, start, Result{Status: StatusSuccess})
	}
	if s.history.CurrentIndex() == 0 {
		abandoned := s.abandonModalsLocked(0)
		s.history.Clear()
		s.mu.Unlock()
		s.flushDisposals()
		s.resolveAbandoned(abandoned)
		if s.observer != nil {
			s.observer.HistoryChanged(s.id, 1, 0)
		}
		return s.observe(KindClear, start, Success(nil))
	}
	from := s.history.CurrentItem()
	base := s.history.At(0).Item
	s.mu.Unlock()

	t := newTransition(s.id, KindClear, from, base, collectOptions(opts))
	res := s.transition(ctx, t, false, func() ([]*modalWait, error) {
		abandoned := s.abandonModalsLocked(0)
		s.history.Clear()
		return abandoned, nil
	})
	return s.observe(KindClear, start, res)
}

// Close tears the service down: open modal flows fail with ErrDisposed,
// every history entry is released under the dispose policy, and all event
// subscriptions are detached. It is idempotent.
func (s *Service) Close() error {
	prev := State(s.state.Swap(int32(StateDisposed)))
	if prev == StateDisposed {
		return nil
	}

	s.mu.Lock()
	waiters := s.modals
	s.modals = nil
	if s.history != nil {
		s.history.DisposeAll()
	}
	s.mu.Unlock()
	s.flushDisposals()

	err := wayfinder.NewInvalidStateError("modal", StateDisposed.String(), wayfinder.ErrDisposed)
	for _, w := range waiters {
		w.done <- Result{Status: StatusFailed, Err: err, Committed: true}
	}

	s.currentChanged.clear()
	s.navigated.clear()
	s.logger.Info("navigation service closed", "previous_state", prev.String())
	return nil
}

// OnCurrentChanged subscribes to current-module changes.
func (s *Service) OnCurrentChanged(fn func(CurrentChanged)) *Subscription {
	return s.currentChanged.subscribe(fn)
}

// OnNavigated subscribes to successful commits.
func (s *Service) OnNavigated(fn func(Navigated)) *Subscription {
	return s.navigated.subscribe(fn)
}

// SubscriberCount returns the number of attached event handlers.
func (s *Service) SubscriberCount() int {
	return s.currentChanged.count() + s.navigated.count()
}

// CurrentItem returns the current module, or nil before Initialize.
func (s *Service) CurrentItem() *Module {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return nil
	}
	return s.history.CurrentItem()
}

// CurrentID returns the id of the current module, or "".
func (s *Service) CurrentID() string {
	if m := s.CurrentItem(); m != nil {
		return m.ID
	}
	return ""
}

// CanGoBack reports whether a back navigation has a target.
func (s *Service) CanGoBack() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history != nil && s.history.CurrentIndex() > 0
}

// CanGoForward reports whether a forward navigation has a target.
func (s *Service) CanGoForward() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history != nil && s.history.CurrentIndex() < s.history.Count()-1
}

// ModalDepth returns the number of open modal flows.
func (s *Service) ModalDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.modals)
}

// HistoryItem is a read-only view of one history entry.
type HistoryItem struct {
	Index         int    `json:"index" yaml:"index"`
	ModuleID      string `json:"module_id" yaml:"module_id"`
	IsModalOrigin bool   `json:"is_modal_origin" yaml:"is_modal_origin,omitempty"`
	IsCurrent     bool   `json:"is_current" yaml:"is_current,omitempty"`
	Retained      bool   `json:"retained" yaml:"retained,omitempty"`
	Cached        bool   `json:"cached" yaml:"cached,omitempty"`
}

// History returns a snapshot of the ordered history, or nil before Initialize.
func (s *Service) History() []HistoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return nil
	}

	entries := s.history.Entries()
	current := s.history.CurrentIndex()
	items := make([]HistoryItem, len(entries))
	for i, e := range entries {
		items[i] = HistoryItem{
			Index:         i,
			ModuleID:      e.Item.ID,
			IsModalOrigin: e.IsModalOrigin,
			IsCurrent:     i == current,
			Retained:      e.Retained,
			Cached:        e.Item.Cached(),
		}
	}
	return items
}

// DisposeOnRemove reports the current disposal policy.
func (s *Service) DisposeOnRemove() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return s.disposeOnRemove
	}
	return s.history.DisposeOnRemove()
}

// SetDisposeOnRemove changes the disposal policy for later removals.
func (s *Service) SetDisposeOnRemove(dispose bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposeOnRemove = dispose
	if s.history != nil {
		s.history.SetDisposeOnRemove(dispose)
	}
}

// retain opts p out of (or back into) disposal, both for the entries that
// host it now and for entries committed later. It returns the number of
// entries currently hosting p.
func (s *Service) retain(p Participant, keep bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.retained[:0]
	for _, r := range s.retained {
		if !sameParticipant(r, p) {
			kept = append(kept, r)
		}
	}
	s.retained = kept
	if keep {
		s.retained = append(s.retained, p)
	}

	if s.history == nil {
		return 0
	}
	hosted := 0
	for i, e := range s.history.Entries() {
		if sameParticipant(e.Item.Participant, p) {
			s.history.SetRetained(i, keep)
			hosted++
		}
	}
	return hosted
}

func (s *Service) isRetainedLocked(p Participant) bool {
	for _, r := range s.retained {
		if sameParticipant(r, p) {
			return true
		}
	}
	return false
}
