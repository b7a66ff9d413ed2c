package navigation

import (
	"context"
	"fmt"
	"sync"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
)

// Navigator is a participant's handle on a navigation service. Every call
// passes the participant as the sender of the navigation.
//
// A proxy navigator, built with NewProxyNavigator, looks its service up by
// id in a Directory on every call instead of holding it. A failed lookup
// is returned as a Failed result wrapping a NotFoundError.
//
// The navigator never owns the participant or the service. Close detaches
// the event subscriptions taken through it.
type Navigator struct {
	self Participant

	service   *Service
	directory *Directory
	serviceID string

	mu          sync.Mutex
	saveCurrent bool
	subs        []*Subscription
}

// NewNavigator binds self to svc.
func NewNavigator(svc *Service, self Participant) *Navigator {
	return &Navigator{self: self, service: svc, serviceID: svc.ID()}
}

// NewProxyNavigator binds self to whatever service dir holds under
// serviceID at call time.
func NewProxyNavigator(dir *Directory, serviceID string, self Participant) *Navigator {
	return &Navigator{self: self, directory: dir, serviceID: serviceID}
}

// Self returns the participant the navigator speaks for.
func (n *Navigator) Self() Participant {
	return n.self
}

// IsProxy reports whether the service is resolved per call.
func (n *Navigator) IsProxy() bool {
	return n.directory != nil
}

// ServiceID returns the id of the target service.
func (n *Navigator) ServiceID() string {
	return n.serviceID
}

// Service returns the target service, resolving it for proxies.
func (n *Navigator) Service() (*Service, error) {
	if n.directory == nil {
		return n.service, nil
	}
	return n.directory.Resolve(n.serviceID)
}

func (n *Navigator) with(opts []NavigateOption) []NavigateOption {
	return append([]NavigateOption{WithSender(n.self)}, opts...)
}

func (n *Navigator) do(fn func(*Service) Result) Result {
	svc, err := n.Service()
	if err != nil {
		return Failed(err)
	}
	return fn(svc)
}

// Navigate moves the service to the module registered under id.
func (n *Navigator) Navigate(ctx context.Context, id string, opts ...NavigateOption) Result {
	return n.do(func(s *Service) Result {
		return s.Navigate(ctx, id, n.with(opts)...)
	})
}

// NavigateAsync runs Navigate on its own goroutine. The channel receives
// exactly one result and is then closed.
func (n *Navigator) NavigateAsync(ctx context.Context, id string, opts ...NavigateOption) <-chan Result {
	return async(func() Result { return n.Navigate(ctx, id, opts...) })
}

// NavigateModal opens id as a modal and waits for its ReturnModal.
func (n *Navigator) NavigateModal(ctx context.Context, id string, opts ...NavigateOption) Result {
	return n.do(func(s *Service) Result {
		return s.NavigateModal(ctx, id, n.with(opts)...)
	})
}

// NavigateModalAsync runs NavigateModal on its own goroutine.
func (n *Navigator) NavigateModalAsync(ctx context.Context, id string, opts ...NavigateOption) <-chan Result {
	return async(func() Result { return n.NavigateModal(ctx, id, opts...) })
}

// OpenModal opens id as a modal without waiting for its return. See
// Service.OpenModal.
func (n *Navigator) OpenModal(ctx context.Context, id string, opts ...NavigateOption) (Result, <-chan Result) {
	svc, err := n.Service()
	if err != nil {
		return Failed(err), nil
	}
	return svc.OpenModal(ctx, id, n.with(opts)...)
}

// Back navigates to the previous history entry.
func (n *Navigator) Back(ctx context.Context, opts ...NavigateOption) Result {
	return n.do(func(s *Service) Result {
		return s.NavigateBack(ctx, n.with(opts)...)
	})
}

// Forward navigates to the next history entry.
func (n *Navigator) Forward(ctx context.Context, opts ...NavigateOption) Result {
	return n.do(func(s *Service) Result {
		return s.NavigateForward(ctx, n.with(opts)...)
	})
}

// ReturnModal closes the innermost modal with payload.
func (n *Navigator) ReturnModal(ctx context.Context, payload any, opts ...NavigateOption) Result {
	return n.do(func(s *Service) Result {
		return s.ReturnModal(ctx, payload, n.with(opts)...)
	})
}

// ClearHistory drops every history entry but the base.
func (n *Navigator) ClearHistory(ctx context.Context, opts ...NavigateOption) Result {
	return n.do(func(s *Service) Result {
		return s.ClearHistory(ctx, n.with(opts)...)
	})
}

// SetSaveCurrent opts the participant's own history entries out of
// disposal (or back in), including entries it gets later. Entries are
// matched by identity, so the participant must be of a comparable type;
// otherwise ErrNotComparable is returned and nothing changes.
func (n *Navigator) SetSaveCurrent(save bool) error {
	svc, err := n.Service()
	if err != nil {
		return err
	}
	if !identifiable(n.self) {
		return fmt.Errorf("save current: %T: %w", n.self, wayfinder.ErrNotComparable)
	}
	n.mu.Lock()
	n.saveCurrent = save
	n.mu.Unlock()
	svc.retain(n.self, save)
	return nil
}

// SaveCurrent reports the last value given to SetSaveCurrent.
func (n *Navigator) SaveCurrent() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.saveCurrent
}

// OnCurrentChanged subscribes fn on the target service. The subscription
// ends at Close at the latest.
func (n *Navigator) OnCurrentChanged(fn func(CurrentChanged)) (*Subscription, error) {
	svc, err := n.Service()
	if err != nil {
		return nil, err
	}
	return n.track(svc.OnCurrentChanged(fn)), nil
}

// OnNavigated subscribes fn on the target service. The subscription ends
// at Close at the latest.
func (n *Navigator) OnNavigated(fn func(Navigated)) (*Subscription, error) {
	svc, err := n.Service()
	if err != nil {
		return nil, err
	}
	return n.track(svc.OnNavigated(fn)), nil
}

func (n *Navigator) track(sub *Subscription) *Subscription {
	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()
	return sub
}

// Close detaches every subscription taken through the navigator.
func (n *Navigator) Close() {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func async(fn func() Result) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		ch <- fn()
	}()
	return ch
}
