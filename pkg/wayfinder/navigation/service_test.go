package navigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/registry"
)

var errBoom = errors.New("boom")

func TestInitialize(t *testing.T) {
	f := newFixture(t)
	f.register(t, "home")
	f.register(t, "detail")

	var changed []CurrentChanged
	f.svc.OnCurrentChanged(func(ev CurrentChanged) { changed = append(changed, ev) })

	assert.Equal(t, StateUninitialized, f.svc.State())
	assert.Nil(t, f.svc.CurrentItem())
	assert.Nil(t, f.svc.History())

	require.NoError(t, f.svc.Initialize(ctx, "home"))

	assert.Equal(t, StateReady, f.svc.State())
	assert.Equal(t, "home", f.svc.CurrentID())
	assert.Equal(t, "view:home", f.svc.CurrentItem().View)
	assert.Equal(t, []string{"home:entered"}, f.rec.take())
	assert.True(t, f.modules.Frozen())
	assert.False(t, f.svc.CanGoBack())
	assert.False(t, f.svc.CanGoForward())

	require.Len(t, changed, 1)
	assert.Equal(t, KindInitial, changed[0].Kind)
	assert.Nil(t, changed[0].Previous)
	assert.Equal(t, "home", changed[0].Current.ID)

	err := f.svc.Initialize(ctx, "detail")
	assert.True(t, wayfinder.IsInvalidState(err))
	assert.ErrorIs(t, err, wayfinder.ErrAlreadyInitialized)
	assert.Equal(t, "home", f.svc.CurrentID())
}

func TestInitializeUnknownModule(t *testing.T) {
	f := newFixture(t)
	f.register(t, "home")

	err := f.svc.Initialize(ctx, "hom")
	require.Error(t, err)
	assert.True(t, wayfinder.IsNotFound(err))
	assert.Equal(t, StateUninitialized, f.svc.State())

	require.NoError(t, f.svc.Initialize(ctx, "home"))
}

func TestInitializeEnteredFailureStillReady(t *testing.T) {
	f := newFixture(t)
	f.register(t, "home")
	f.on("home", func(p *spy) { p.enteredErr = errBoom })

	err := f.svc.Initialize(ctx, "home")
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, wayfinder.IsHookFailure(err))
	assert.Equal(t, StateReady, f.svc.State())
}

func TestNavigationBeforeInitialize(t *testing.T) {
	f := newFixture(t)
	f.register(t, "home")

	calls := map[string]func() Result{
		"navigate": func() Result { return f.svc.Navigate(ctx, "home") },
		"back":     func() Result { return f.svc.NavigateBack(ctx) },
		"forward":  func() Result { return f.svc.NavigateForward(ctx) },
		"return":   func() Result { return f.svc.ReturnModal(ctx, nil) },
		"clear":    func() Result { return f.svc.ClearHistory(ctx) },
		"modal":    func() Result { return f.svc.NavigateModal(ctx, "home") },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			res := call()
			assert.Equal(t, StatusFailed, res.Status)
			assert.False(t, res.Committed)
			assert.True(t, wayfinder.IsInvalidState(res.Err))
			assert.ErrorIs(t, res.Err, wayfinder.ErrNotInitialized)
		})
	}
	assert.Zero(t, f.builds("home"))
}

func TestNavigateRunsHooksInOrder(t *testing.T) {
	f := newStarted(t)
	f.on("detail", func(p *spy) { p.payload = "loaded" })

	res := f.svc.Navigate(ctx, "detail")

	require.True(t, res.OK())
	assert.True(t, res.Committed)
	assert.Equal(t, "loaded", res.Payload)
	assert.Equal(t, []string{"home:leaving", "detail:entering", "home:left", "detail:entered"}, f.rec.take())
	assert.Equal(t, "detail", f.svc.CurrentID())
	assert.Equal(t, []string{"home", "detail"}, f.ids())
	assert.True(t, f.svc.CanGoBack())
}

func TestNavigateCancelled(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		want  []string
	}{
		{
			name:  "leaving hook cancels",
			setup: func(f *fixture) { f.last("home").cancelLeaving = true },
			want:  []string{"home:leaving", "detail:dispose"},
		},
		{
			name:  "entering hook cancels",
			setup: func(f *fixture) { f.on("detail", func(p *spy) { p.cancelEntering = true }) },
			want:  []string{"home:leaving", "detail:entering", "detail:dispose"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStarted(t)
			tt.setup(f)
			before := f.svc.History()

			var events int
			f.svc.OnNavigated(func(Navigated) { events++ })

			res := f.svc.Navigate(ctx, "detail")

			assert.True(t, res.IsCancelled())
			assert.False(t, res.Committed)
			assert.ErrorIs(t, res.AsError(), wayfinder.ErrCancelled)
			assert.Equal(t, before, f.svc.History())
			assert.Equal(t, "home", f.svc.CurrentID())
			assert.Equal(t, tt.want, f.rec.take())
			assert.Equal(t, int32(1), f.last("detail").disposed.Load())
			assert.Zero(t, events)
			assert.Equal(t, StateReady, f.svc.State())
		})
	}
}

func TestNavigatePreCommitFailure(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		wantHook string
	}{
		{
			name:     "entering returns error",
			setup:    func(f *fixture) { f.on("detail", func(p *spy) { p.enteringErr = errBoom }) },
			wantHook: "entering",
		},
		{
			name:     "leaving panics",
			setup:    func(f *fixture) { f.last("home").panicLeaving = true },
			wantHook: "leaving",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStarted(t)
			tt.setup(f)
			before := f.svc.History()

			res := f.svc.Navigate(ctx, "detail")

			assert.Equal(t, StatusFailed, res.Status)
			assert.False(t, res.Committed)
			var hookErr *wayfinder.HookError
			require.ErrorAs(t, res.Err, &hookErr)
			assert.Equal(t, tt.wantHook, hookErr.Hook)
			assert.Equal(t, before, f.svc.History())
			assert.Equal(t, "home", f.svc.CurrentID())
			assert.Equal(t, StateReady, f.svc.State())
		})
	}
}

func TestNavigatePostCommitFailureKeepsCommit(t *testing.T) {
	f := newStarted(t)
	f.on("detail", func(p *spy) { p.enteredErr = errBoom })

	var navigated []Navigated
	f.svc.OnNavigated(func(ev Navigated) { navigated = append(navigated, ev) })

	res := f.svc.Navigate(ctx, "detail")

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, res.Committed)
	assert.ErrorIs(t, res.Err, errBoom)
	var hookErr *wayfinder.HookError
	require.ErrorAs(t, res.Err, &hookErr)
	assert.Equal(t, "entered", hookErr.Hook)
	assert.Equal(t, "detail", hookErr.Module)

	assert.Equal(t, "detail", f.svc.CurrentID())
	assert.Equal(t, []string{"home", "detail"}, f.ids())
	assert.Len(t, navigated, 1)
	assert.Zero(t, f.last("detail").disposed.Load())
}

func TestNavigateUnknownModule(t *testing.T) {
	f := newStarted(t)
	before := f.svc.History()

	res := f.svc.Navigate(ctx, "detial")

	assert.Equal(t, StatusFailed, res.Status)
	var nf *wayfinder.NotFoundError
	require.ErrorAs(t, res.Err, &nf)
	assert.Equal(t, "detail", nf.Suggestion)
	assert.Equal(t, before, f.svc.History())
	assert.Empty(t, f.rec.take())
	assert.Equal(t, StateReady, f.svc.State())
}

func TestBackAndForward(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list", "detail")

	res := f.svc.NavigateBack(ctx)
	require.True(t, res.OK())
	assert.Equal(t, "list", f.svc.CurrentID())
	assert.Equal(t, []string{"detail:leaving", "list:entering", "detail:left", "list:entered"}, f.rec.take())
	assert.True(t, f.svc.CanGoForward())
	assert.Equal(t, []string{"home", "list", "detail"}, f.ids())

	require.True(t, f.svc.NavigateForward(ctx).OK())
	assert.Equal(t, "detail", f.svc.CurrentID())
	assert.False(t, f.svc.CanGoForward())

	require.True(t, f.svc.NavigateBack(ctx, WithSteps(2)).OK())
	assert.Equal(t, "home", f.svc.CurrentID())
	assert.Equal(t, 1, f.builds("list"), "back reuses the history entry")
}

func TestBackAndForwardBounds(t *testing.T) {
	tests := []struct {
		name string
		call func(s *Service) Result
	}{
		{name: "back past base", call: func(s *Service) Result { return s.NavigateBack(ctx, WithSteps(3)) }},
		{name: "forward past end", call: func(s *Service) Result { return s.NavigateForward(ctx) }},
		{name: "zero steps", call: func(s *Service) Result { return s.NavigateBack(ctx, WithSteps(0)) }},
		{name: "negative steps", call: func(s *Service) Result { return s.NavigateForward(ctx, WithSteps(-1)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStarted(t)
			f.navigate(t, "list", "detail")
			before := f.svc.History()

			res := tt.call(f.svc)

			assert.Equal(t, StatusFailed, res.Status)
			assert.True(t, wayfinder.IsInvalidState(res.Err))
			assert.ErrorIs(t, res.Err, wayfinder.ErrHistoryBoundary)
			assert.Equal(t, before, f.svc.History())
			assert.Empty(t, f.rec.take(), "no hooks run on a boundary error")
			assert.Equal(t, StateReady, f.svc.State())
		})
	}
}

func TestBackCancelledKeepsPosition(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list")
	f.last("list").cancelLeaving = true

	res := f.svc.NavigateBack(ctx)

	assert.True(t, res.IsCancelled())
	assert.Equal(t, "list", f.svc.CurrentID())
	assert.Zero(t, f.last("list").disposed.Load())
}

func TestPushDisposesRedoEntries(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list", "detail")
	require.True(t, f.svc.NavigateBack(ctx, WithSteps(2)).OK())

	require.True(t, f.svc.Navigate(ctx, "picker").OK())

	assert.Equal(t, []string{"home", "picker"}, f.ids())
	assert.Equal(t, int32(1), f.last("list").disposed.Load())
	assert.Equal(t, int32(1), f.last("detail").disposed.Load())
	assert.Zero(t, f.last("home").disposed.Load())
}

func TestCachedModulesAreNotDisposed(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "settings")
	require.True(t, f.svc.NavigateBack(ctx).OK())
	require.True(t, f.svc.Navigate(ctx, "detail").OK())

	assert.Zero(t, f.last("settings").disposed.Load())

	require.True(t, f.svc.Navigate(ctx, "settings").OK())
	assert.Equal(t, 1, f.builds("settings"))

	items := f.svc.History()
	assert.True(t, items[len(items)-1].Cached)
}

func TestDisposeOnRemoveOff(t *testing.T) {
	f := newStarted(t, WithDisposeOnRemove(false))
	assert.False(t, f.svc.DisposeOnRemove())

	f.navigate(t, "list")
	f.on("detail", func(p *spy) { p.cancelEntering = true })
	require.True(t, f.svc.NavigateBack(ctx).OK())
	require.True(t, f.svc.Navigate(ctx, "detail").IsCancelled())
	f.on("detail", nil)
	require.True(t, f.svc.Navigate(ctx, "picker").OK())

	assert.Zero(t, f.last("list").disposed.Load())
	assert.Zero(t, f.last("detail").disposed.Load())

	f.svc.SetDisposeOnRemove(true)
	require.True(t, f.svc.ClearHistory(ctx).OK())
	assert.Equal(t, int32(1), f.last("picker").disposed.Load())
}

func TestRetainedParticipantSurvivesTruncation(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list")
	list := f.last("list")

	assert.Equal(t, 1, f.svc.retain(list, true))
	assert.True(t, f.svc.History()[1].Retained)

	require.True(t, f.svc.NavigateBack(ctx).OK())
	require.True(t, f.svc.Navigate(ctx, "detail").OK())

	assert.Zero(t, list.disposed.Load())
	assert.Equal(t, []string{"home", "detail"}, f.ids())
}

func TestSingleFlight(t *testing.T) {
	f := newStarted(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.on("detail", func(p *spy) {
		p.started = started
		p.release = release
	})

	done := make(chan Result, 1)
	go func() { done <- f.svc.Navigate(ctx, "detail") }()
	recv(t, (<-chan struct{})(started))
	assert.Equal(t, StateTransitioning, f.svc.State())

	for name, call := range map[string]func() Result{
		"navigate": func() Result { return f.svc.Navigate(ctx, "list") },
		"back":     func() Result { return f.svc.NavigateBack(ctx) },
		"clear":    func() Result { return f.svc.ClearHistory(ctx) },
		"return":   func() Result { return f.svc.ReturnModal(ctx, nil) },
	} {
		res := call()
		assert.Equal(t, StatusFailed, res.Status, name)
		assert.True(t, wayfinder.IsInvalidState(res.Err), name)
		assert.ErrorIs(t, res.Err, wayfinder.ErrBusy, name)
	}
	assert.Zero(t, f.builds("list"))

	close(release)
	res := recv(t, (<-chan Result)(done))
	assert.True(t, res.OK())
	assert.Equal(t, "detail", f.svc.CurrentID())
	assert.Equal(t, StateReady, f.svc.State())
}

func TestContextCancelledBeforeCommit(t *testing.T) {
	f := newStarted(t)
	c, cancel := context.WithCancel(ctx)
	cancel()

	res := f.svc.Navigate(c, "detail")

	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.False(t, res.Committed)
	assert.Equal(t, "home", f.svc.CurrentID())
	assert.Equal(t, int32(1), f.last("detail").disposed.Load())
}

func TestModalRoundTrip(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list")

	done := f.openModal(t, ctx, "picker")

	items := f.svc.History()
	require.Len(t, items, 3)
	assert.Equal(t, "picker", items[2].ModuleID)
	assert.True(t, items[2].IsModalOrigin)
	assert.True(t, items[2].IsCurrent)

	ret := f.svc.ReturnModal(ctx, "picked")
	require.True(t, ret.OK())

	res := recv(t, done)
	assert.True(t, res.OK())
	assert.True(t, res.Committed)
	assert.Equal(t, "picked", res.Payload)

	assert.Equal(t, "list", f.svc.CurrentID())
	assert.Equal(t, []string{"picker:left", "list:entered"}, f.rec.take(), "cancellable hooks are skipped")
	assert.Zero(t, f.svc.ModalDepth())
	assert.False(t, f.svc.History()[2].IsModalOrigin)
	assert.True(t, f.svc.CanGoForward())
}

func TestNestedModals(t *testing.T) {
	f := newStarted(t)

	outer := f.openModal(t, ctx, "list")
	inner := f.openModal(t, ctx, "picker")
	assert.Equal(t, 2, f.svc.ModalDepth())

	require.True(t, f.svc.ReturnModal(ctx, "inner").OK())
	assert.Equal(t, "inner", recv(t, inner).Payload)
	assert.Equal(t, "list", f.svc.CurrentID())
	assert.Equal(t, 1, f.svc.ModalDepth())

	require.True(t, f.svc.ReturnModal(ctx, "outer").OK())
	assert.Equal(t, "outer", recv(t, outer).Payload)
	assert.Equal(t, "home", f.svc.CurrentID())
	assert.Zero(t, f.svc.ModalDepth())
}

func TestOpenModal(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list")

	res, done := f.svc.OpenModal(ctx, "picker")
	require.True(t, res.OK())
	require.NotNil(t, done)
	assert.Equal(t, StateReady, f.svc.State())
	assert.Equal(t, 1, f.svc.ModalDepth())

	require.True(t, f.svc.ReturnModal(ctx, "picked").OK())
	got := recv(t, done)
	assert.Equal(t, "picked", got.Payload)
	assert.Equal(t, "list", f.svc.CurrentID())

	f.on("picker", func(p *spy) { p.cancelEntering = true })
	res, done = f.svc.OpenModal(ctx, "picker")
	assert.True(t, res.IsCancelled())
	assert.Nil(t, done)
}

func TestModalNavigationInsideModal(t *testing.T) {
	f := newStarted(t)
	done := f.openModal(t, ctx, "picker")

	f.navigate(t, "detail")
	assert.Equal(t, 1, f.svc.ModalDepth())

	require.True(t, f.svc.ReturnModal(ctx, 7).OK())
	assert.Equal(t, 7, recv(t, done).Payload)
	assert.Equal(t, "home", f.svc.CurrentID())
}

func TestModalAbandoned(t *testing.T) {
	tests := []struct {
		name string
		call func(s *Service) Result
		want string
	}{
		{name: "back past origin", call: func(s *Service) Result { return s.NavigateBack(ctx) }, want: "list"},
		{name: "clear history", call: func(s *Service) Result { return s.ClearHistory(ctx) }, want: "home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStarted(t)
			f.navigate(t, "list")
			done := f.openModal(t, ctx, "picker")

			require.True(t, tt.call(f.svc).OK())

			res := recv(t, done)
			assert.True(t, res.IsCancelled())
			assert.True(t, res.Committed)
			assert.ErrorIs(t, res.Err, wayfinder.ErrModalAbandoned)
			assert.Equal(t, tt.want, f.svc.CurrentID())
			assert.Zero(t, f.svc.ModalDepth())
			for _, item := range f.svc.History() {
				assert.False(t, item.IsModalOrigin)
			}
		})
	}
}

func TestModalContextCancelledWhileWaiting(t *testing.T) {
	f := newStarted(t)
	c, cancel := context.WithCancel(ctx)
	defer cancel()

	done := f.openModal(t, c, "picker")
	cancel()

	res := recv(t, done)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, res.Committed)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, f.svc.ModalDepth())
	assert.Equal(t, "picker", f.svc.CurrentID())
	assert.False(t, f.svc.History()[1].IsModalOrigin)

	ret := f.svc.ReturnModal(ctx, nil)
	assert.ErrorIs(t, ret.Err, wayfinder.ErrNoModal)
}

func TestModalCancelledByHook(t *testing.T) {
	f := newStarted(t)
	f.on("picker", func(p *spy) { p.cancelEntering = true })

	res := f.svc.NavigateModal(ctx, "picker")

	assert.True(t, res.IsCancelled())
	assert.False(t, res.Committed)
	assert.Zero(t, f.svc.ModalDepth())
}

func TestModalPostCommitFailureDoesNotWait(t *testing.T) {
	f := newStarted(t)
	f.on("picker", func(p *spy) { p.enteredErr = errBoom })

	res := f.svc.NavigateModal(ctx, "picker")

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, res.Committed)
	assert.ErrorIs(t, res.Err, errBoom)
	assert.Zero(t, f.svc.ModalDepth())
	assert.Equal(t, "picker", f.svc.CurrentID())
}

func TestReturnModalWithoutModal(t *testing.T) {
	f := newStarted(t)

	res := f.svc.ReturnModal(ctx, "x")

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, wayfinder.IsInvalidState(res.Err))
	assert.ErrorIs(t, res.Err, wayfinder.ErrNoModal)
	assert.Equal(t, StateReady, f.svc.State())
}

// returnAfterDrop holds ReturnModal between its snapshot of the innermost
// waiter and its commit, cancels that waiter's context meanwhile, and
// returns both outcomes.
func returnAfterDrop(t *testing.T, f *fixture, gate *logGate, cancel context.CancelFunc, waiter <-chan Result) (dropped, returned Result) {
	t.Helper()
	gate.arm()
	ret := async(func() Result { return f.svc.ReturnModal(ctx, "late") })
	gate.wait(t)

	cancel()
	dropped = recv(t, waiter)
	gate.open()
	return dropped, recv(t, ret)
}

func TestReturnModalAfterWaiterDropped(t *testing.T) {
	gate := newLogGate(KindModalReturn)
	f := newStarted(t, WithLogger(gate.logger()))
	c, cancel := context.WithCancel(ctx)
	defer cancel()
	waiter := f.openModal(t, c, "picker")

	dropped, res := returnAfterDrop(t, f, gate, cancel, waiter)

	assert.Equal(t, StatusFailed, dropped.Status)
	assert.ErrorIs(t, dropped.Err, context.Canceled)

	assert.Equal(t, StatusFailed, res.Status)
	assert.False(t, res.Committed)
	assert.ErrorIs(t, res.Err, wayfinder.ErrNoModal)
	assert.Equal(t, StateReady, f.svc.State())
	assert.Zero(t, f.svc.ModalDepth())
	assert.Equal(t, "picker", f.svc.CurrentID())
	assert.Empty(t, f.rec.take())

	closed := make(chan error, 1)
	go func() { closed <- f.svc.Close() }()
	assert.NoError(t, recv(t, closed))
}

func TestReturnModalAfterInnerWaiterDropped(t *testing.T) {
	gate := newLogGate(KindModalReturn)
	f := newStarted(t, WithLogger(gate.logger()))
	outer := f.openModal(t, ctx, "list")
	c, cancel := context.WithCancel(ctx)
	defer cancel()
	inner := f.openModal(t, c, "picker")

	dropped, res := returnAfterDrop(t, f, gate, cancel, inner)

	assert.ErrorIs(t, dropped.Err, context.Canceled)
	assert.False(t, res.Committed)
	assert.ErrorIs(t, res.Err, wayfinder.ErrNoModal)
	assert.Equal(t, 1, f.svc.ModalDepth())
	assert.Equal(t, "picker", f.svc.CurrentID())
	items := f.svc.History()
	require.Len(t, items, 3)
	assert.True(t, items[1].IsModalOrigin)
	assert.False(t, items[2].IsModalOrigin)

	select {
	case got := <-outer:
		t.Fatalf("outer modal resolved early: %v", got.Status)
	default:
	}

	require.True(t, f.svc.ReturnModal(ctx, "outer").OK())
	got := recv(t, outer)
	assert.True(t, got.OK())
	assert.Equal(t, "outer", got.Payload)
	assert.Equal(t, "home", f.svc.CurrentID())
	assert.Zero(t, f.svc.ModalDepth())
}

func TestClearHistory(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list", "detail")

	res := f.svc.ClearHistory(ctx)

	require.True(t, res.OK())
	assert.Equal(t, []string{"home"}, f.ids())
	assert.Equal(t, "home", f.svc.CurrentID())
	assert.Equal(t, []string{
		"detail:leaving", "home:entering",
		"detail:left", "home:entered",
		"list:dispose", "detail:dispose",
	}, f.rec.take())
	assert.Zero(t, f.last("home").disposed.Load())
}

func TestClearHistoryDisposesAfterFailedPostCommit(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list", "detail")
	f.last("home").enteredErr = errBoom

	res := f.svc.ClearHistory(ctx)

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, res.Committed)
	assert.Equal(t, []string{
		"detail:leaving", "home:entering",
		"detail:left", "home:entered",
		"list:dispose", "detail:dispose",
	}, f.rec.take())
	assert.Equal(t, int32(1), f.last("detail").disposed.Load())
}

func TestClearHistoryAtBaseIsSilent(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list")
	require.True(t, f.svc.NavigateBack(ctx).OK())
	f.rec.take()

	var events int
	f.svc.OnNavigated(func(Navigated) { events++ })

	require.True(t, f.svc.ClearHistory(ctx).OK())
	assert.Equal(t, []string{"list:dispose"}, f.rec.take())
	assert.Zero(t, events)
	assert.Equal(t, []string{"home"}, f.ids())

	res := f.svc.ClearHistory(ctx)
	assert.True(t, res.OK())
	assert.False(t, res.Committed)
}

func TestClose(t *testing.T) {
	f := newStarted(t)
	f.navigate(t, "list")
	done := f.openModal(t, ctx, "picker")
	f.svc.OnNavigated(func(Navigated) {})

	require.NoError(t, f.svc.Close())

	res := recv(t, done)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, wayfinder.ErrDisposed)

	assert.Equal(t, StateDisposed, f.svc.State())
	assert.Zero(t, f.svc.SubscriberCount())
	for _, id := range []string{"home", "list", "picker"} {
		assert.Equal(t, int32(1), f.last(id).disposed.Load(), id)
	}

	nav := f.svc.Navigate(ctx, "detail")
	assert.ErrorIs(t, nav.Err, wayfinder.ErrDisposed)
	assert.ErrorIs(t, f.svc.Initialize(ctx, "home"), wayfinder.ErrDisposed)
	assert.NoError(t, f.svc.Close())
}

func TestEvents(t *testing.T) {
	f := newStarted(t)

	var order []string
	var changed CurrentChanged
	var navigated Navigated
	f.svc.OnCurrentChanged(func(ev CurrentChanged) {
		order = append(order, "current-changed")
		changed = ev
	})
	f.svc.OnNavigated(func(ev Navigated) {
		order = append(order, "navigated")
		navigated = ev
	})

	require.True(t, f.svc.Navigate(ctx, "detail", WithParam("id", 3)).OK())

	assert.Equal(t, []string{"current-changed", "navigated"}, order)
	assert.Equal(t, KindNavigate, changed.Kind)
	assert.Equal(t, "home", changed.Previous.ID)
	assert.Equal(t, "detail", changed.Current.ID)
	assert.Equal(t, 1, changed.Index)
	assert.Equal(t, DefaultServiceID, navigated.Service)
	assert.Equal(t, "home", navigated.From)
	assert.Equal(t, "detail", navigated.To)
	assert.Equal(t, 3, navigated.Params["id"])
	assert.NotEmpty(t, navigated.TransitionID)
}

func TestEventUnsubscribeAndPanics(t *testing.T) {
	f := newStarted(t)

	var calls int
	f.svc.OnNavigated(func(Navigated) { panic("handler") })
	sub := f.svc.OnNavigated(func(Navigated) { calls++ })
	require.Equal(t, 2, f.svc.SubscriberCount())

	require.True(t, f.svc.Navigate(ctx, "list").OK())
	assert.Equal(t, 1, calls)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.False(t, sub.Active())
	assert.Equal(t, 1, f.svc.SubscriberCount())

	require.True(t, f.svc.Navigate(ctx, "detail").OK())
	assert.Equal(t, 1, calls)
}

func TestUnsubscribeInsideHandler(t *testing.T) {
	f := newStarted(t)

	var calls int
	var sub *Subscription
	sub = f.svc.OnCurrentChanged(func(CurrentChanged) {
		calls++
		sub.Unsubscribe()
	})

	f.navigate(t, "list", "detail")
	assert.Equal(t, 1, calls)
}

func TestObserver(t *testing.T) {
	obs := &fakeObserver{}
	f := newStarted(t, WithObserver(obs))
	f.on("detail", func(p *spy) { p.cancelEntering = true })

	require.True(t, f.svc.Navigate(ctx, "list").OK())
	require.True(t, f.svc.Navigate(ctx, "detail").IsCancelled())
	require.Equal(t, StatusFailed, f.svc.NavigateForward(ctx).Status)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.finished, 3)
	assert.Equal(t, KindNavigate, obs.finished[0].kind)
	assert.Equal(t, StatusSuccess, obs.finished[0].status)
	assert.Equal(t, StatusCancelled, obs.finished[1].status)
	assert.Equal(t, KindForward, obs.finished[2].kind)
	assert.Equal(t, StatusFailed, obs.finished[2].status)
	assert.Equal(t, [][2]int{{1, 0}, {2, 1}}, obs.changes)
}

func TestEnteredAsyncHook(t *testing.T) {
	f := newFixture(t)
	f.register(t, "home")

	var got context.Context
	require.NoError(t, f.modules.Register("sync", func() (any, Participant, error) {
		return nil, hooked{
			EnteredAsync: func(c context.Context, _ *Transition) error {
				got = c
				return c.Err()
			},
		}, nil
	}))
	require.NoError(t, f.svc.Initialize(ctx, "home"))

	c, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	res := f.svc.Navigate(c, "sync")

	require.True(t, res.OK())
	assert.Equal(t, c, got)
}

func TestNewServiceDefaults(t *testing.T) {
	svc := NewService(nil, WithID("inner"), WithID(""))
	assert.Equal(t, "inner", svc.ID())
	assert.NotNil(t, svc.Registry())
	assert.Equal(t, "transitioning", StateTransitioning.String())
	require.NoError(t, svc.Registry().Register("home", func() (any, Participant, error) {
		return nil, Passive{}, nil
	}, registry.WithLifetime(registry.LifetimeCached)))
	require.NoError(t, svc.Initialize(ctx, "home"))
	assert.Equal(t, "home", svc.CurrentID())
	require.NoError(t, svc.Close())
}

func TestResult(t *testing.T) {
	assert.NoError(t, Success(nil).AsError())
	assert.ErrorIs(t, Cancelled().AsError(), wayfinder.ErrCancelled)
	assert.ErrorIs(t, Failed(errBoom).AsError(), errBoom)
	assert.False(t, Failed(errBoom).Committed)
	assert.Equal(t, "cancelled", StatusCancelled.String())
}
