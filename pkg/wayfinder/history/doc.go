// Package history provides the ordered navigation history used by the
// navigation service.
//
// A History always has a base entry at index 0 and a current position.
// Navigating forward to something new truncates the redo entries, the way a
// browser does:
//
//	h := history.New(home, history.WithDisposeOnRemove[Page](true))
//	h.Push(list)
//	h.Push(detail)
//	h.TryMoveBack(1)  // current is list, detail is redo history
//	h.Push(settings)  // detail is dropped (and disposed)
//
// # Disposal
//
// The history owns its entries. When the dispose policy is on, an entry is
// disposed exactly once at the moment it is removed: truncated by Push,
// replaced by OverwriteCurrent, or dropped by Clear. The base entry is never
// disposed by Clear. Entries marked Retained are never disposed by the
// history; with the policy off, removed items belong to the caller again.
package history
