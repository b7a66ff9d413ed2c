package navigation

import "github.com/BrandonKowalski/wayfinder/pkg/wayfinder"

// Status is the outcome tag of a navigation request.
type Status int

const (
	StatusSuccess Status = iota
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is returned from every transition request.
//
// Committed reports whether the history was mutated. A Failed result with
// Committed set means a post-commit hook failed: the navigation took effect
// and was not rolled back.
type Result struct {
	Status    Status
	Payload   any
	Err       error
	Committed bool
}

// Success builds a successful result carrying an optional payload.
func Success(payload any) Result {
	return Result{Status: StatusSuccess, Payload: payload, Committed: true}
}

// Cancelled builds the result of a hook declining the transition.
func Cancelled() Result {
	return Result{Status: StatusCancelled}
}

// Failed builds a failed result that left the history untouched.
func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// OK reports success.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// IsCancelled reports a declined transition.
func (r Result) IsCancelled() bool {
	return r.Status == StatusCancelled
}

// AsError folds the result into a Go error: nil on success,
// wayfinder.ErrCancelled when cancelled without a more specific cause.
func (r Result) AsError() error {
	switch r.Status {
	case StatusSuccess:
		return nil
	case StatusCancelled:
		if r.Err != nil {
			return r.Err
		}
		return wayfinder.ErrCancelled
	default:
		return r.Err
	}
}
