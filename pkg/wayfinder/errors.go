package wayfinder

import (
	"errors"
	"fmt"

	"github.com/agnivade/levenshtein"
)

// Sentinel errors for common conditions.
var (
	// ErrCancelled indicates a lifecycle hook declined a transition.
	// This is a normal flow control outcome, not a failure.
	ErrCancelled = errors.New("navigation cancelled by participant")

	// ErrBusy indicates another transition is already in flight on the same service.
	ErrBusy = errors.New("navigation already in progress")

	// ErrNotInitialized indicates a navigation call before Initialize.
	ErrNotInitialized = errors.New("navigation service not initialized")

	// ErrAlreadyInitialized indicates a second call to Initialize.
	ErrAlreadyInitialized = errors.New("navigation service already initialized")

	// ErrHistoryBoundary indicates a back or forward move past either end of the history.
	ErrHistoryBoundary = errors.New("no history entry in that direction")

	// ErrNoModal indicates ReturnModal was called with no modal flow open.
	ErrNoModal = errors.New("no modal navigation in progress")

	// ErrDisposed indicates the service has been torn down.
	ErrDisposed = errors.New("navigation service disposed")

	// ErrRegistryFrozen indicates a registration after the owning service became ready.
	ErrRegistryFrozen = errors.New("module registry is frozen")

	// ErrModalAbandoned indicates a modal flow was navigated away from
	// before it returned a value.
	ErrModalAbandoned = errors.New("modal navigation abandoned")

	// ErrNotComparable indicates a participant whose dynamic type cannot be
	// compared by identity, such as a func, map or slice based type.
	ErrNotComparable = errors.New("participant is not comparable")
)

// suggestionDistance is the largest edit distance still offered as a suggestion.
const suggestionDistance = 3

// NotFoundError reports an unknown module or service identifier.
type NotFoundError struct {
	Kind       string // "module" or "service"
	ID         string
	Suggestion string // closest known identifier, if any
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("wayfinder: %s %q not found (did you mean %q?)", e.Kind, e.ID, e.Suggestion)
	}
	return fmt.Sprintf("wayfinder: %s %q not found", e.Kind, e.ID)
}

// NewNotFoundError creates a NotFoundError. When known identifiers are given,
// the closest one within a small edit distance is attached as a suggestion.
func NewNotFoundError(kind, id string, known []string) *NotFoundError {
	err := &NotFoundError{Kind: kind, ID: id}

	best := suggestionDistance + 1
	for _, candidate := range known {
		d := levenshtein.ComputeDistance(id, candidate)
		if d < best {
			best = d
			err.Suggestion = candidate
		}
	}
	return err
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// DuplicateIDError reports a second registration under the same identifier.
type DuplicateIDError struct {
	Kind string
	ID   string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("wayfinder: %s %q already registered", e.Kind, e.ID)
}

// NewDuplicateIDError creates a DuplicateIDError.
func NewDuplicateIDError(kind, id string) *DuplicateIDError {
	return &DuplicateIDError{Kind: kind, ID: id}
}

// IsDuplicateID checks if an error is a DuplicateIDError.
func IsDuplicateID(err error) bool {
	var dup *DuplicateIDError
	return errors.As(err, &dup)
}

// InvalidStateError represents an operation that is not valid for the
// current service state: navigating before Initialize, a concurrent
// transition, or moving past the history bounds.
type InvalidStateError struct {
	Op    string // Operation that was rejected (e.g., "navigate", "back")
	State string // Service state at the time of the call
	Err   error  // Underlying sentinel
}

func (e *InvalidStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wayfinder: %s in state %s: %v", e.Op, e.State, e.Err)
	}
	return fmt.Sprintf("wayfinder: %s in state %s", e.Op, e.State)
}

func (e *InvalidStateError) Unwrap() error {
	return e.Err
}

// NewInvalidStateError creates a new invalid state error.
func NewInvalidStateError(op, state string, err error) *InvalidStateError {
	return &InvalidStateError{Op: op, State: state, Err: err}
}

// IsInvalidState checks if an error is an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// HookError wraps an error or panic escaping a participant lifecycle hook.
type HookError struct {
	Hook   string // "leaving", "entering", "left", "entered", "dispose"
	Module string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("wayfinder: %s hook of %q failed: %v", e.Hook, e.Module, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// NewHookError creates a new hook error.
func NewHookError(hook, module string, err error) *HookError {
	return &HookError{Hook: hook, Module: module, Err: err}
}

// IsHookFailure checks if an error came out of a lifecycle hook.
func IsHookFailure(err error) bool {
	var he *HookError
	return errors.As(err, &he)
}

// IsCancelled checks if an error indicates a participant declined the transition.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
