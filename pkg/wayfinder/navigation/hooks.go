package navigation

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/registry"
)

// Participant is anything that can be the origin or target of a transition.
// It declares which lifecycle hooks it takes part in through the table it
// returns; a zero Hooks means it takes part in none.
type Participant interface {
	Hooks() Hooks
}

// Passive can be embedded by participants that need no hooks.
type Passive struct{}

func (Passive) Hooks() Hooks { return Hooks{} }

// Module is a resolved module as held by the history.
type Module = registry.Instance[Participant]

// Hooks is the capability table of a participant. Nil fields are hooks the
// participant does not implement.
type Hooks struct {
	// Leaving runs on the current participant before commit. Calling
	// t.Cancel() aborts the transition with no state change.
	Leaving func(ctx context.Context, t *Transition) error
	// Entering runs on the target participant before commit, after Leaving.
	Entering func(ctx context.Context, t *Transition) error
	// Left runs on the previous participant after commit.
	Left func(t *Transition) error
	// Entered runs on the new participant after commit.
	Entered func(t *Transition) error
	// EnteredAsync runs after Entered and may block on ctx.
	EnteredAsync func(ctx context.Context, t *Transition) error
	// Dispose runs when the history drops a freshly built module.
	Dispose func()
}

// Capability is a bitmask of implemented hooks.
type Capability uint8

const (
	CapLeaving Capability = 1 << iota
	CapEntering
	CapLeft
	CapEntered
	CapEnteredAsync
	CapDispose
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapLeaving, "leaving"},
	{CapEntering, "entering"},
	{CapLeft, "left"},
	{CapEntered, "entered"},
	{CapEnteredAsync, "entered-async"},
	{CapDispose, "dispose"},
}

// Capabilities derives the capability set from the non-nil hooks.
func (h Hooks) Capabilities() Capability {
	var c Capability
	if h.Leaving != nil {
		c |= CapLeaving
	}
	if h.Entering != nil {
		c |= CapEntering
	}
	if h.Left != nil {
		c |= CapLeft
	}
	if h.Entered != nil {
		c |= CapEntered
	}
	if h.EnteredAsync != nil {
		c |= CapEnteredAsync
	}
	if h.Dispose != nil {
		c |= CapDispose
	}
	return c
}

// Has reports whether every capability in other is present.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	var names []string
	for _, cn := range capabilityNames {
		if c.Has(cn.cap) {
			names = append(names, cn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// TransitionKind tells hooks what kind of navigation is running.
type TransitionKind int

const (
	KindInitial TransitionKind = iota
	KindNavigate
	KindBack
	KindForward
	KindModal
	KindModalReturn
	KindClear
)

func (k TransitionKind) String() string {
	switch k {
	case KindInitial:
		return "initial"
	case KindNavigate:
		return "navigate"
	case KindBack:
		return "back"
	case KindForward:
		return "forward"
	case KindModal:
		return "modal"
	case KindModalReturn:
		return "modal-return"
	case KindClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Transition is handed to every hook of one navigation.
type Transition struct {
	ID      string
	Kind    TransitionKind
	Service string
	From    *Module // nil for the initial transition
	To      *Module
	// Sender is the participant that asked for the navigation, if known.
	Sender Participant
	Params map[string]any

	cancelled bool
	committed bool
	payload   any
}

func newTransition(service string, kind TransitionKind, from, to *Module, o navOptions) *Transition {
	return &Transition{
		ID:      uuid.NewString(),
		Kind:    kind,
		Service: service,
		From:    from,
		To:      to,
		Sender:  o.sender,
		Params:  o.params,
	}
}

// Cancel asks the pipeline to abort. It only has an effect before commit.
func (t *Transition) Cancel() {
	if !t.committed {
		t.cancelled = true
	}
}

// Cancelled reports whether a pre-commit hook declined the transition.
func (t *Transition) Cancelled() bool {
	return t.cancelled
}

// Committed reports whether the history mutation already happened.
func (t *Transition) Committed() bool {
	return t.committed
}

// SetPayload sets the value carried by a successful Result.
func (t *Transition) SetPayload(v any) {
	t.payload = v
}

// Payload returns the value set with SetPayload.
func (t *Transition) Payload() any {
	return t.payload
}

// FromID returns the id of the module being left, or "".
func (t *Transition) FromID() string {
	if t.From == nil {
		return ""
	}
	return t.From.ID
}

// ToID returns the id of the module being entered.
func (t *Transition) ToID() string {
	if t.To == nil {
		return ""
	}
	return t.To.ID
}

// Param returns a single navigation parameter.
func (t *Transition) Param(key string) (any, bool) {
	v, ok := t.Params[key]
	return v, ok
}

// Bind decodes the navigation parameters into out, which must be a pointer
// to a struct. Fields map by their `param` tag, with weak type conversion.
func (t *Transition) Bind(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "param",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("bind params: %w", err)
	}
	if err := dec.Decode(t.Params); err != nil {
		return fmt.Errorf("bind params: %w", err)
	}
	return nil
}

func hooksOf(m *Module) Hooks {
	if m == nil || m.Participant == nil {
		return Hooks{}
	}
	return m.Participant.Hooks()
}

// invokeHook runs fn, turning a returned error or a panic into a HookError.
func invokeHook(hook, module string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = wayfinder.NewHookError(hook, module, fmt.Errorf("panic: %v", r))
		}
	}()
	if hookErr := fn(); hookErr != nil {
		return wayfinder.NewHookError(hook, module, hookErr)
	}
	return nil
}

// identifiable reports whether p can be matched by identity. Pointer
// participants always can; a value type built on a func, map or slice
// cannot.
func identifiable(p Participant) bool {
	return p != nil && reflect.TypeOf(p).Comparable()
}

// sameParticipant compares by identity without panicking on uncomparable
// dynamic types.
func sameParticipant(a, b Participant) bool {
	if !identifiable(a) || reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return a == b
}
