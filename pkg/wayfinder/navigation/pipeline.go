package navigation

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
)

// begin claims the service for one transition.
func (s *Service) begin(op string) error {
	if s.state.CompareAndSwap(int32(StateReady), int32(StateTransitioning)) {
		return nil
	}

	st := s.State()
	var cause error
	switch st {
	case StateUninitialized:
		cause = wayfinder.ErrNotInitialized
	case StateTransitioning:
		cause = wayfinder.ErrBusy
	default:
		cause = wayfinder.ErrDisposed
	}
	return wayfinder.NewInvalidStateError(op, st.String(), cause)
}

// end releases the claim taken by begin. A concurrent Close wins.
func (s *Service) end() {
	s.state.CompareAndSwap(int32(StateTransitioning), int32(StateReady))
}

// push runs a navigation that appends a freshly resolved module. A non-nil
// w turns it into a modal navigation.
func (s *Service) push(ctx context.Context, kind TransitionKind, id string, opts []NavigateOption, w *modalWait) Result {
	start := time.Now()
	if err := s.begin(kind.String()); err != nil {
		return s.observe(kind, start, Failed(err))
	}
	defer s.end()

	inst, err := s.modules.Resolve(id)
	if err != nil {
		return s.observe(kind, start, Failed(err))
	}

	s.mu.RLock()
	from := s.history.CurrentItem()
	s.mu.RUnlock()

	t := newTransition(s.id, kind, from, inst, collectOptions(opts))
	res := s.transition(ctx, t, false, func() ([]*modalWait, error) {
		abandoned := s.abandonModalsLocked(s.history.CurrentIndex())
		s.history.Push(inst)
		index := s.history.CurrentIndex()
		if s.isRetainedLocked(inst.Participant) {
			s.history.SetRetained(index, true)
		}
		if w != nil {
			w.origin = index
			s.history.SetModalOrigin(index, true)
			s.modals = append(s.modals, w)
		}
		return abandoned, nil
	})
	if !res.Committed {
		s.discard(inst)
	}
	return s.observe(kind, start, res)
}

// step runs a back or forward navigation to an existing history entry.
func (s *Service) step(ctx context.Context, kind TransitionKind, opts []NavigateOption) Result {
	start := time.Now()
	if err := s.begin(kind.String()); err != nil {
		return s.observe(kind, start, Failed(err))
	}
	defer s.end()

	o := collectOptions(opts)
	delta := o.steps
	if kind == KindBack {
		delta = -delta
	}

	s.mu.RLock()
	target := s.history.CurrentIndex() + delta
	if o.steps < 1 || target < 0 || target >= s.history.Count() {
		s.mu.RUnlock()
		err := wayfinder.NewInvalidStateError(kind.String(), StateReady.String(), wayfinder.ErrHistoryBoundary)
		return s.observe(kind, start, Failed(err))
	}
	from := s.history.CurrentItem()
	to := s.history.At(target).Item
	s.mu.RUnlock()

	t := newTransition(s.id, kind, from, to, o)
	res := s.transition(ctx, t, false, func() ([]*modalWait, error) {
		if kind == KindBack {
			s.history.TryMoveBack(o.steps)
			return s.abandonModalsLocked(target), nil
		}
		s.history.TryMoveForward(o.steps)
		return nil, nil
	})
	return s.observe(kind, start, res)
}

// transition runs the hook pipeline around commit. commit is called with
// s.mu held and returns the modal waiters it abandoned. A commit error
// aborts the transition before anything is written.
//
// Nothing is written before commit, so a cancelled or failed pre-commit
// phase leaves the history exactly as it was. Failures after commit are
// reported with Committed set and are not rolled back. Removed modules are
// disposed once every post-commit hook has run.
func (s *Service) transition(ctx context.Context, t *Transition, skipPreCommit bool, commit func() ([]*modalWait, error)) Result {
	logger := s.logger.With("transition", t.ID, "kind", t.Kind.String(), "from", t.FromID(), "to", t.ToID())

	if !skipPreCommit {
		if res, ok := s.preCommit(ctx, t); !ok {
			if res.IsCancelled() {
				logger.Debug("transition cancelled by participant")
			} else {
				logger.Warn("transition failed before commit", "error", res.Err)
			}
			return res
		}
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	s.mu.Lock()
	if s.State() == StateDisposed {
		s.mu.Unlock()
		return Failed(wayfinder.NewInvalidStateError(t.Kind.String(), StateDisposed.String(), wayfinder.ErrDisposed))
	}
	abandoned, err := commit()
	if err != nil {
		s.mu.Unlock()
		logger.Warn("transition rejected at commit", "error", err)
		return Failed(err)
	}
	t.committed = true
	count, index := s.history.Count(), s.history.CurrentIndex()
	s.mu.Unlock()

	s.resolveAbandoned(abandoned)
	if s.observer != nil {
		s.observer.HistoryChanged(s.id, count, index)
	}
	s.publishCommit(t, index)

	err = s.postCommit(ctx, t)
	s.flushDisposals()
	if err != nil {
		logger.Warn("post-commit hook failed", "error", err)
		return Result{Status: StatusFailed, Payload: t.payload, Err: err, Committed: true}
	}

	logger.Debug("transition committed", "index", index, "count", count)
	return Success(t.payload)
}

func (s *Service) preCommit(ctx context.Context, t *Transition) (Result, bool) {
	from, to := hooksOf(t.From), hooksOf(t.To)

	if from.Leaving != nil {
		err := invokeHook("leaving", t.FromID(), func() error { return from.Leaving(ctx, t) })
		if err != nil {
			return Failed(err), false
		}
		if t.cancelled {
			return Cancelled(), false
		}
	}

	if to.Entering != nil {
		err := invokeHook("entering", t.ToID(), func() error { return to.Entering(ctx, t) })
		if err != nil {
			return Failed(err), false
		}
		if t.cancelled {
			return Cancelled(), false
		}
	}

	return Result{}, true
}

// postCommit runs every post-commit hook even if an earlier one failed.
func (s *Service) postCommit(ctx context.Context, t *Transition) error {
	var errs []error
	from, to := hooksOf(t.From), hooksOf(t.To)

	if t.From != nil && from.Left != nil {
		errs = append(errs, invokeHook("left", t.FromID(), func() error { return from.Left(t) }))
	}
	if to.Entered != nil {
		errs = append(errs, invokeHook("entered", t.ToID(), func() error { return to.Entered(t) }))
	}
	if to.EnteredAsync != nil {
		errs = append(errs, invokeHook("entered-async", t.ToID(), func() error { return to.EnteredAsync(ctx, t) }))
	}
	return errors.Join(errs...)
}

func (s *Service) publishCommit(t *Transition, index int) {
	s.currentChanged.publish(s.logger, "current-changed", CurrentChanged{
		Service:  s.id,
		Kind:     t.Kind,
		Previous: t.From,
		Current:  t.To,
		Index:    index,
	})
	s.navigated.publish(s.logger, "navigated", Navigated{
		Service:      s.id,
		TransitionID: t.ID,
		Kind:         t.Kind,
		From:         t.FromID(),
		To:           t.ToID(),
		Params:       t.Params,
	})
}

func (s *Service) observe(kind TransitionKind, start time.Time, res Result) Result {
	if s.observer != nil {
		s.observer.TransitionFinished(s.id, kind, res, time.Since(start))
	}
	return res
}

// abandonModalsLocked detaches every open modal whose origin lies above
// keep and clears its origin flag.
func (s *Service) abandonModalsLocked(keep int) []*modalWait {
	var abandoned []*modalWait
	kept := s.modals[:0]
	for _, w := range s.modals {
		if w.origin > keep {
			s.history.SetModalOrigin(w.origin, false)
			abandoned = append(abandoned, w)
			continue
		}
		kept = append(kept, w)
	}
	s.modals = kept
	return abandoned
}

func (s *Service) resolveAbandoned(waiters []*modalWait) {
	for _, w := range waiters {
		s.logger.Debug("modal navigation abandoned", "origin", w.origin)
		w.done <- Result{Status: StatusCancelled, Err: wayfinder.ErrModalAbandoned, Committed: true}
	}
}

// dropModal detaches w without resolving it. It reports false if w was
// already detached, in which case a result is on its way.
func (s *Service) dropModal(w *modalWait) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, open := range s.modals {
		if open == w {
			s.history.SetModalOrigin(w.origin, false)
			s.modals = append(s.modals[:i], s.modals[i+1:]...)
			return true
		}
	}
	return false
}

// disposeModule is the history's disposer. It runs with s.mu held, so the
// hooks are queued and run by flushDisposals.
func (s *Service) disposeModule(m *Module) {
	if m == nil || m.Cached() || s.isRetainedLocked(m.Participant) {
		return
	}
	s.pendingDispose = append(s.pendingDispose, m)
}

func (s *Service) flushDisposals() {
	s.mu.Lock()
	pending := s.pendingDispose
	s.pendingDispose = nil
	s.mu.Unlock()

	for _, m := range pending {
		s.runDispose(m)
	}
}

// discard releases a freshly resolved module that never made it into the history.
func (s *Service) discard(m *Module) {
	s.mu.RLock()
	skip := !s.history.DisposeOnRemove() || m.Cached() || s.isRetainedLocked(m.Participant)
	s.mu.RUnlock()
	if !skip {
		s.runDispose(m)
	}
}

func (s *Service) runDispose(m *Module) {
	h := hooksOf(m)
	if h.Dispose == nil {
		return
	}
	err := invokeHook("dispose", m.ID, func() error {
		h.Dispose()
		return nil
	})
	if err != nil {
		s.logger.Error("dispose hook failed", "module", m.ID, "error", err)
	}
}
