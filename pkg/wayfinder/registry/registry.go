// Package registry maps module identifiers to lazily-constructed pairs of a
// presentable view and a navigation participant.
//
// Registration happens while the owning navigation service is being set up;
// once the service is ready the registry is frozen and further Register
// calls fail with wayfinder.ErrRegistryFrozen.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
)

// Lifetime controls whether a module is built once or on every visit.
type Lifetime int

const (
	// LifetimeFresh builds a new view and participant on every Resolve.
	LifetimeFresh Lifetime = iota
	// LifetimeCached builds once and returns the same instance afterwards.
	// Cached instances are owned by the registry, not by the history.
	LifetimeCached
)

func (l Lifetime) String() string {
	switch l {
	case LifetimeFresh:
		return "fresh"
	case LifetimeCached:
		return "cached"
	default:
		return "unknown"
	}
}

// ErrUnknownLifetime is returned by ParseLifetime.
var ErrUnknownLifetime = errors.New("unknown module lifetime")

// ParseLifetime parses "fresh" or "cached". Empty means fresh.
func ParseLifetime(s string) (Lifetime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fresh":
		return LifetimeFresh, nil
	case "cached":
		return LifetimeCached, nil
	default:
		return LifetimeFresh, fmt.Errorf("%w: %q", ErrUnknownLifetime, s)
	}
}

// Registration errors.
var (
	ErrEmptyID    = errors.New("module id must not be empty")
	ErrNilFactory = errors.New("module factory must not be nil")
)

// Factory builds the view and participant of a module.
type Factory[P any] func() (view any, participant P, err error)

// Instance is one constructed module.
type Instance[P any] struct {
	ID          string
	View        any
	Participant P
	Lifetime    Lifetime
}

// Cached reports whether the registry owns this instance.
func (i *Instance[P]) Cached() bool {
	return i.Lifetime == LifetimeCached
}

type registration[P any] struct {
	factory  Factory[P]
	lifetime Lifetime
	cached   *Instance[P]
}

// Option configures a Registry.
type Option func(*settings)

type settings struct {
	defaultLifetime Lifetime
}

// WithDefaultLifetime sets the lifetime used when Register is not given one.
func WithDefaultLifetime(l Lifetime) Option {
	return func(s *settings) {
		s.defaultLifetime = l
	}
}

// ModuleOption configures a single registration.
type ModuleOption func(*moduleSettings)

type moduleSettings struct {
	lifetime *Lifetime
}

// WithLifetime overrides the registry default for one module.
func WithLifetime(l Lifetime) ModuleOption {
	return func(m *moduleSettings) {
		m.lifetime = &l
	}
}

// Registry holds module registrations keyed by identifier.
type Registry[P any] struct {
	mu       sync.Mutex
	modules  map[string]*registration[P]
	settings settings
	frozen   atomic.Bool
}

// New creates an empty registry.
func New[P any](opts ...Option) *Registry[P] {
	r := &Registry[P]{
		modules: make(map[string]*registration[P]),
	}
	for _, opt := range opts {
		opt(&r.settings)
	}
	return r
}

// Register adds a module. It fails without side effects if id is taken,
// empty, or the registry is frozen.
func (r *Registry[P]) Register(id string, factory Factory[P], opts ...ModuleOption) error {
	if id == "" {
		return ErrEmptyID
	}
	if factory == nil {
		return fmt.Errorf("%w: %q", ErrNilFactory, id)
	}
	if r.frozen.Load() {
		return fmt.Errorf("register %q: %w", id, wayfinder.ErrRegistryFrozen)
	}

	var ms moduleSettings
	for _, opt := range opts {
		opt(&ms)
	}
	lifetime := r.settings.defaultLifetime
	if ms.lifetime != nil {
		lifetime = *ms.lifetime
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[id]; exists {
		return wayfinder.NewDuplicateIDError("module", id)
	}
	r.modules[id] = &registration[P]{factory: factory, lifetime: lifetime}
	return nil
}

// MustRegister is Register for static setup code; it panics on error.
func (r *Registry[P]) MustRegister(id string, factory Factory[P], opts ...ModuleOption) *Registry[P] {
	if err := r.Register(id, factory, opts...); err != nil {
		panic(err)
	}
	return r
}

// Resolve returns an instance of the module registered under id, building
// it if needed. The factory runs with the registry locked and must not call
// back into it.
func (r *Registry[P]) Resolve(id string) (*Instance[P], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.modules[id]
	if !ok {
		return nil, wayfinder.NewNotFoundError("module", id, r.idsLocked())
	}
	if reg.cached != nil {
		return reg.cached, nil
	}

	view, participant, err := reg.factory()
	if err != nil {
		return nil, fmt.Errorf("build module %q: %w", id, err)
	}

	inst := &Instance[P]{
		ID:          id,
		View:        view,
		Participant: participant,
		Lifetime:    reg.lifetime,
	}
	if reg.lifetime == LifetimeCached {
		reg.cached = inst
	}
	return inst, nil
}

// Has reports whether id is registered.
func (r *Registry[P]) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.modules[id]
	return ok
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry[P]) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idsLocked()
}

func (r *Registry[P]) idsLocked() []string {
	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registrations.
func (r *Registry[P]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modules)
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry[P]) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether Register is still allowed.
func (r *Registry[P]) Frozen() bool {
	return r.frozen.Load()
}
