// Package navigation runs transitions between registered modules.
//
// A Service owns one history and one module registry. Every navigation
// call goes through the same pipeline: the leaving hook of the current
// participant, the entering hook of the target, the commit of the history
// change, the change events, and finally the left and entered hooks.
// Either cancellable hook can decline the transition with t.Cancel(), in
// which case nothing changes.
//
// # Basic Usage
//
//	modules := registry.New[navigation.Participant]()
//	modules.MustRegister("library", func() (any, navigation.Participant, error) {
//	    vm := &LibraryModel{}
//	    return &LibraryView{Model: vm}, vm, nil
//	}, registry.WithLifetime(registry.LifetimeCached))
//	modules.MustRegister("game", func() (any, navigation.Participant, error) {
//	    vm := &GameModel{}
//	    return &GameView{Model: vm}, vm, nil
//	})
//
//	svc := navigation.NewService(modules, navigation.WithID("main"))
//	svc.OnCurrentChanged(func(ev navigation.CurrentChanged) {
//	    host.Show(ev.Current.View)
//	})
//	if err := svc.Initialize(ctx, "library"); err != nil {
//	    return err
//	}
//
//	res := svc.Navigate(ctx, "game", navigation.WithParam("game_id", 42))
//	if !res.OK() {
//	    log.Println(res.AsError())
//	}
//
// # Hooks
//
// Participants declare their hooks through a Hooks table. Only non-nil
// hooks are called:
//
//	func (m *GameModel) Hooks() navigation.Hooks {
//	    return navigation.Hooks{
//	        Entering: func(ctx context.Context, t *navigation.Transition) error {
//	            var p struct {
//	                GameID int `param:"game_id"`
//	            }
//	            return t.Bind(&p)
//	        },
//	        Leaving: func(ctx context.Context, t *navigation.Transition) error {
//	            if m.dirty {
//	                t.Cancel()
//	            }
//	            return nil
//	        },
//	    }
//	}
//
// Errors and panics before commit fail the navigation with the history
// untouched. Errors after commit are reported in a Failed result whose
// Committed field is set; the history change stands.
//
// # Modals
//
// NavigateModal blocks until the modal participant calls ReturnModal, and
// returns the payload it was given. The history unwinds to the entry
// before the modal. Navigating back past a modal, or clearing the history,
// resolves the waiting caller with wayfinder.ErrModalAbandoned.
//
// # Single Flight
//
// A service runs one transition at a time. A call made while another is in
// flight fails at once with an InvalidStateError wrapping wayfinder.ErrBusy.
// Services are independent of one another.
package navigation
