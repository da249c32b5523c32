// Package breakpoint implements the per-path breakpoint store
// (SPEC_FULL.md §4.4): Set/Clear/HasBreakpoint keyed by (path, line), with
// monotonically increasing ids and verification frozen at set-time.
//
// Adapted from the teacher's debugger.BreakpointManager, which keys a
// single global map by instruction address; here breakpoints are grouped
// per source path (an address has no meaning at the source level) and
// verification is checked against a sourcemap.SourceMap instead of being
// always-true.
package breakpoint

import "github.com/tvmdbg/engine/sourcemap"

// Breakpoint is one user-set stop point.
type Breakpoint struct {
	ID       uint32
	Line     uint32
	Verified bool
}

// Store holds breakpoints grouped by source path.
type Store struct {
	byPath map[string][]Breakpoint
	nextID uint32
}

// NewStore creates an empty breakpoint store.
func NewStore() *Store {
	return &Store{byPath: make(map[string][]Breakpoint)}
}

// Set allocates a fresh id, checks verification against sm, appends to
// path's list, and returns the new record. Duplicates on the same line are
// permitted and each gets a distinct id.
func (s *Store) Set(sm *sourcemap.SourceMap, path string, line uint32) Breakpoint {
	bp := Breakpoint{
		ID:       s.nextID,
		Line:     line,
		Verified: sm.IsLineAvailable(path, int(line)),
	}
	s.nextID++
	s.byPath[path] = append(s.byPath[path], bp)
	return bp
}

// Clear replaces path's breakpoint list with an empty one, leaving other
// paths untouched.
func (s *Store) Clear(path string) {
	s.byPath[path] = nil
}

// HasBreakpoint reports whether some (enabled, by construction always
// enabled) breakpoint on path matches line. Duplicates count as one.
func (s *Store) HasBreakpoint(path string, line uint32) bool {
	for _, bp := range s.byPath[path] {
		if bp.Line == line {
			return true
		}
	}
	return false
}

// ForPath returns a copy of path's breakpoint list, insertion order
// preserved.
func (s *Store) ForPath(path string) []Breakpoint {
	list := s.byPath[path]
	out := make([]Breakpoint, len(list))
	copy(out, list)
	return out
}
