package history

// Entry is a single position in the navigation history.
// It owns its item and records whether a modal sub-flow was launched into it.
type Entry[T any] struct {
	Item          T
	IsModalOrigin bool
	// Retained entries are skipped by disposal when they are removed.
	Retained bool
}

// Disposer is implemented by items that release resources when the history
// drops them. Items that don't implement it are simply forgotten.
type Disposer interface {
	Dispose()
}

// Option configures a History at construction.
type Option[T any] func(*History[T])

// WithDisposeOnRemove sets the initial dispose-superseded-items policy.
func WithDisposeOnRemove[T any](dispose bool) Option[T] {
	return func(h *History[T]) {
		h.disposeOnRemove = dispose
	}
}

// WithDisposer replaces the default disposal, which calls Dispose on items
// implementing Disposer.
func WithDisposer[T any](fn func(T)) Option[T] {
	return func(h *History[T]) {
		if fn != nil {
			h.dispose = fn
		}
	}
}

// History is an ordered, indexable sequence of entries with a current
// position. Index 0 is the base entry; it is created with the history and
// is never removed by Clear, so Count is always at least one and
// 0 <= CurrentIndex < Count holds after every call.
//
// History is not safe for concurrent use; its owner serializes access.
type History[T any] struct {
	entries         []Entry[T]
	current         int
	disposeOnRemove bool
	dispose         func(T)
}

// New creates a history seeded with base as its only entry.
func New[T any](base T, opts ...Option[T]) *History[T] {
	h := &History[T]{
		entries: []Entry[T]{{Item: base}},
		dispose: disposeItem[T],
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func disposeItem[T any](item T) {
	if d, ok := any(item).(Disposer); ok {
		d.Dispose()
	}
}

// release disposes e iff the policy is on and the entry wasn't retained.
func (h *History[T]) release(e Entry[T]) {
	if h.disposeOnRemove && !e.Retained {
		h.dispose(e.Item)
	}
}

// Push discards every entry after the current one, then appends item and
// makes it current.
func (h *History[T]) Push(item T) {
	for _, e := range h.entries[h.current+1:] {
		h.release(e)
	}
	clear(h.entries[h.current+1:])
	h.entries = append(h.entries[:h.current+1], Entry[T]{Item: item})
	h.current = len(h.entries) - 1
}

// OverwriteCurrent replaces the current entry in place.
func (h *History[T]) OverwriteCurrent(item T) {
	h.release(h.entries[h.current])
	h.entries[h.current] = Entry[T]{Item: item}
}

// TryMoveBack moves the current position count entries towards the base.
// It reports false, and changes nothing, when that would pass the base.
func (h *History[T]) TryMoveBack(count int) bool {
	if count < 0 || count > h.current {
		return false
	}
	h.current -= count
	return true
}

// TryMoveForward moves the current position count entries towards the end.
// It reports false, and changes nothing, when that would pass the last entry.
func (h *History[T]) TryMoveForward(count int) bool {
	if count < 0 || count > len(h.entries)-1-h.current {
		return false
	}
	h.current += count
	return true
}

// Clear drops every entry except the base and makes the base current.
func (h *History[T]) Clear() {
	for _, e := range h.entries[1:] {
		h.release(e)
	}
	clear(h.entries[1:])
	h.entries = h.entries[:1]
	h.current = 0
}

// DisposeAll releases every entry, base included, under the current policy.
// The entries stay in place; it is meant for teardown of the owner.
func (h *History[T]) DisposeAll() {
	for _, e := range h.entries {
		h.release(e)
	}
}

// Count returns the number of entries.
func (h *History[T]) Count() int {
	return len(h.entries)
}

// CurrentIndex returns the 0-based current position.
func (h *History[T]) CurrentIndex() int {
	return h.current
}

// CurrentItem returns the item at the current position.
func (h *History[T]) CurrentItem() T {
	return h.entries[h.current].Item
}

// At returns a copy of the entry at index i. It panics if i is out of range.
func (h *History[T]) At(i int) Entry[T] {
	return h.entries[i]
}

// Entries returns a copy of the full ordered sequence.
func (h *History[T]) Entries() []Entry[T] {
	out := make([]Entry[T], len(h.entries))
	copy(out, h.entries)
	return out
}

// DisposeOnRemove reports whether removed entries are disposed.
func (h *History[T]) DisposeOnRemove() bool {
	return h.disposeOnRemove
}

// SetDisposeOnRemove changes the disposal policy for later removals. With
// the policy off, removed items are handed back to the caller's care.
func (h *History[T]) SetDisposeOnRemove(dispose bool) {
	h.disposeOnRemove = dispose
}

// SetModalOrigin flags or unflags entry i as a modal origin.
// It reports false if i is out of range.
func (h *History[T]) SetModalOrigin(i int, origin bool) bool {
	if i < 0 || i >= len(h.entries) {
		return false
	}
	h.entries[i].IsModalOrigin = origin
	return true
}

// SetRetained opts entry i in or out of disposal on removal.
// It reports false if i is out of range.
func (h *History[T]) SetRetained(i int, retained bool) bool {
	if i < 0 || i >= len(h.entries) {
		return false
	}
	h.entries[i].Retained = retained
	return true
}
