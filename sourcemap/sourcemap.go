// Package sourcemap builds and queries the mapping from a DebugInfoIndex to
// a source-level location, and the derived index of lines that are valid
// breakpoint targets (SPEC_FULL.md §3, §4.3). It also loads the compiler's
// debug-info JSON document from disk, the way the teacher's loader package
// turns an on-disk artifact into in-memory symbol/line tables.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// EntryKind is the closed set of source-map entry variants.
type EntryKind int

const (
	// Statement marks an executable source line; it may open a new frame
	// and carries the local-variable names live at that point.
	Statement EntryKind = iota
	// Return marks a function's return point.
	Return
	// Catch marks a catch-unwind point.
	Catch
)

func (k EntryKind) String() string {
	switch k {
	case Statement:
		return "statement"
	case Return:
		return "return"
	case Catch:
		return "catch"
	default:
		return "unknown"
	}
}

// Entry is a single source-map record, keyed externally by DebugInfoIndex.
type Entry struct {
	Kind           EntryKind
	Path           string
	Line           int
	Function       string
	Variables      []string // only meaningful for Statement
	FirstStatement bool     // only meaningful for Statement
}

// GlobalEntry names one slot of the VM's context-register global list.
type GlobalEntry struct {
	Name string
}

// rawLocation is the on-disk shape of one `locations[]` element.
type rawLocation struct {
	File      string   `json:"file"`
	Line      int      `json:"line"`
	Func      string   `json:"func"`
	Ret       bool     `json:"ret"`
	IsCatch   bool     `json:"is_catch"`
	Vars      []string `json:"vars"`
	FirstStmt bool     `json:"first_stmt"`
}

// rawGlobal is the on-disk shape of one `globals[]` element.
type rawGlobal struct {
	Name string `json:"name"`
}

// rawDebugInfo is the top-level compiler debug-info document.
type rawDebugInfo struct {
	Locations []rawLocation `json:"locations"`
	Globals   []rawGlobal   `json:"globals"`
}

// SourceMap is the immutable-after-load mapping from DebugInfoIndex to
// Entry, plus the derived AvailableLines index.
type SourceMap struct {
	entries   []Entry // index == DebugInfoIndex
	available map[string]map[int]struct{}
	paths     []string
	globals   []GlobalEntry
}

// Load reads a compiler debug-info JSON document from path and builds a
// SourceMap. Relative `file` fields are resolved to absolute paths, as the
// engine only ever deals in absolute paths (SPEC_FULL.md §6).
func Load(path string) (*SourceMap, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path supplied by the host at session setup
	if err != nil {
		return nil, fmt.Errorf("sourcemap: read %s: %w", path, err)
	}

	var raw rawDebugInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sourcemap: parse %s: %w", path, err)
	}

	return build(raw)
}

// Parse builds a SourceMap directly from the decoded JSON document, for
// callers (and tests) that already have the debug-info in memory.
func Parse(data []byte) (*SourceMap, error) {
	var raw rawDebugInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sourcemap: parse: %w", err)
	}
	return build(raw)
}

func build(raw rawDebugInfo) (*SourceMap, error) {
	sm := &SourceMap{
		entries:   make([]Entry, len(raw.Locations)),
		available: make(map[string]map[int]struct{}),
	}

	seenPaths := make(map[string]struct{})
	for i, loc := range raw.Locations {
		path := loc.File
		if !filepath.IsAbs(path) {
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("sourcemap: resolve path %q: %w", loc.File, err)
			}
			path = abs
		}

		entry := Entry{Path: path, Line: loc.Line, Function: loc.Func}
		switch {
		case loc.IsCatch:
			entry.Kind = Catch
		case loc.Ret:
			entry.Kind = Return
		default:
			entry.Kind = Statement
			entry.Variables = loc.Vars
			entry.FirstStatement = loc.FirstStmt
		}
		sm.entries[i] = entry

		if _, ok := seenPaths[path]; !ok {
			seenPaths[path] = struct{}{}
			sm.paths = append(sm.paths, path)
		}
		lines, ok := sm.available[path]
		if !ok {
			lines = make(map[int]struct{})
			sm.available[path] = lines
		}
		lines[loc.Line] = struct{}{}
	}

	for _, g := range raw.Globals {
		sm.globals = append(sm.globals, GlobalEntry{Name: g.Name})
	}

	return sm, nil
}

// EntryAt returns the entry for a DebugInfoIndex, or (Entry{}, false) if out
// of range.
func (sm *SourceMap) EntryAt(index int) (Entry, bool) {
	if index < 0 || index >= len(sm.entries) {
		return Entry{}, false
	}
	return sm.entries[index], true
}

// AvailablePaths returns every source path that appears in the map.
func (sm *SourceMap) AvailablePaths() []string {
	out := make([]string, len(sm.paths))
	copy(out, sm.paths)
	return out
}

// AvailableLines returns the sorted set of lines that appear in the map for
// path. Returns nil if the path is unknown.
func (sm *SourceMap) AvailableLines(path string) []int {
	lines, ok := sm.available[path]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(lines))
	for l := range lines {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// IsLineAvailable answers "is this a valid breakpoint line?" in O(1).
func (sm *SourceMap) IsLineAvailable(path string, line int) bool {
	lines, ok := sm.available[path]
	if !ok {
		return false
	}
	_, ok = lines[line]
	return ok
}

// Globals returns the ordered list of global-variable names.
func (sm *SourceMap) Globals() []GlobalEntry {
	out := make([]GlobalEntry, len(sm.globals))
	copy(out, sm.globals)
	return out
}

