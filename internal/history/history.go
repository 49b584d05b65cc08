// Package history provides a bounded undo stack of immutable snapshots.
//
// The stack is working-session state owned by whoever drives plan
// mutations; it is never persisted. Callers push a snapshot of the
// pre-operation state before each successful structural change and pop
// to step back.
package history

// DefaultLimit is the number of undo entries retained per plan.
const DefaultLimit = 50

// Stack is a bounded LIFO of snapshots. When the bound is reached, the
// oldest entry is evicted to make room. The zero value is not usable;
// construct with New.
type Stack[T any] struct {
	limit   int
	entries []T
}

// New creates a stack bounded to limit entries. A non-positive limit
// falls back to DefaultLimit.
func New[T any](limit int) *Stack[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack[T]{
		limit:   limit,
		entries: make([]T, 0, limit),
	}
}

// Push adds a snapshot, evicting the oldest entry if the stack is full.
func (s *Stack[T]) Push(entry T) {
	if len(s.entries) >= s.limit {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, entry)
}

// Pop removes and returns the most recent snapshot. The second return
// value is false when the stack is empty.
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	if len(s.entries) == 0 {
		return zero, false
	}
	last := len(s.entries) - 1
	entry := s.entries[last]
	s.entries[last] = zero // release the reference
	s.entries = s.entries[:last]
	return entry, true
}

// Len returns the number of stored snapshots.
func (s *Stack[T]) Len() int {
	return len(s.entries)
}

// Clear discards all snapshots.
func (s *Stack[T]) Clear() {
	var zero T
	for i := range s.entries {
		s.entries[i] = zero
	}
	s.entries = s.entries[:0]
}
