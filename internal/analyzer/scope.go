package analyzer

import (
	"fmt"
	"sort"
)

// The scope stack holds two kinds of frames:
//
//   - Complete frames are pre-populated, immutable, name-sorted arrays.
//     Used for globals and locked-in parameters.
//   - Incomplete frames are pre-declared arrays filled in order as a
//     where/lambda is processed. Before a name is bound, lookup misses the
//     entry and falls through to outer frames, which is how
//     `b where { a = 1, b = a + 1 }` sees `a`.
//
// Lookup searches incomplete frames innermost-first, then complete frames
// innermost-first.

// Entry is a name/value pair in a complete scope.
type Entry[T any] struct {
	Name  string
	Value T
}

type incompleteEntry[T any] struct {
	name  string
	value T
	bound bool
}

// DuplicateError reports a repeated name in a new scope frame.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate name '%s' in scope", e.Name)
}

// ScopeStack resolves names against nested scope frames. The same structure
// binds types during analysis and slots or values elsewhere.
type ScopeStack[T any] struct {
	complete   [][]Entry[T]
	incomplete [][]incompleteEntry[T]
}

// NewScopeStack creates an empty stack.
func NewScopeStack[T any]() *ScopeStack[T] {
	return &ScopeStack[T]{}
}

// PushComplete pushes an immutable frame. Entries are sorted by name here,
// so callers may pass them in any order.
func (s *ScopeStack[T]) PushComplete(entries []Entry[T]) {
	frame := make([]Entry[T], len(entries))
	copy(frame, entries)
	sort.SliceStable(frame, func(i, j int) bool { return frame[i].Name < frame[j].Name })
	s.complete = append(s.complete, frame)
}

// PushIncomplete pushes a frame with the given names declared but unbound.
// Duplicate names are rejected.
func (s *ScopeStack[T]) PushIncomplete(names []string) error {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return &DuplicateError{Name: sorted[i]}
		}
	}
	frame := make([]incompleteEntry[T], len(sorted))
	for i, n := range sorted {
		frame[i] = incompleteEntry[T]{name: n}
	}
	s.incomplete = append(s.incomplete, frame)
	return nil
}

// BindInCurrent fills a declared name in the topmost incomplete frame.
func (s *ScopeStack[T]) BindInCurrent(name string, v T) error {
	if len(s.incomplete) == 0 {
		return fmt.Errorf("no incomplete scope to bind '%s' in", name)
	}
	frame := s.incomplete[len(s.incomplete)-1]
	idx := sort.Search(len(frame), func(i int) bool { return frame[i].name >= name })
	if idx >= len(frame) || frame[idx].name != name {
		return fmt.Errorf("name '%s' not declared in current scope", name)
	}
	if frame[idx].bound {
		return fmt.Errorf("name '%s' already bound in current scope", name)
	}
	frame[idx].value = v
	frame[idx].bound = true
	return nil
}

// PopIncomplete removes the topmost incomplete frame.
func (s *ScopeStack[T]) PopIncomplete() {
	if len(s.incomplete) > 0 {
		s.incomplete = s.incomplete[:len(s.incomplete)-1]
	}
}

// PopComplete removes the topmost complete frame.
func (s *ScopeStack[T]) PopComplete() {
	if len(s.complete) > 0 {
		s.complete = s.complete[:len(s.complete)-1]
	}
}

// Lookup resolves a name, returning false on a miss.
func (s *ScopeStack[T]) Lookup(name string) (T, bool) {
	for i := len(s.incomplete) - 1; i >= 0; i-- {
		frame := s.incomplete[i]
		idx := sort.Search(len(frame), func(j int) bool { return frame[j].name >= name })
		if idx < len(frame) && frame[idx].name == name && frame[idx].bound {
			return frame[idx].value, true
		}
	}
	for i := len(s.complete) - 1; i >= 0; i-- {
		frame := s.complete[i]
		idx := sort.Search(len(frame), func(j int) bool { return frame[j].Name >= name })
		if idx < len(frame) && frame[idx].Name == name {
			return frame[idx].Value, true
		}
	}
	var zero T
	return zero, false
}
