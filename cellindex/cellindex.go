// Package cellindex walks a code-cell graph once and records every cell
// reachable from a root, keyed by the uppercase-hex form of its content
// hash. This is the engine's only way of resolving a CodePos back to a
// readable cell during stepping (SPEC_FULL.md §4.1).
package cellindex

import "github.com/tvmdbg/engine/emulator"

// Index maps a cell's uppercase-hex content hash to the cell itself.
type Index struct {
	cells map[string]emulator.Cell
}

// Build walks the graph rooted at root, visiting each referenced child cell
// exactly once (identity = content hash; cycles are impossible because
// cells are content-addressed). Traversal order is immaterial.
func Build(root emulator.Cell) *Index {
	idx := &Index{cells: make(map[string]emulator.Cell)}
	if root == nil {
		return idx
	}

	stack := []emulator.Cell{root}
	for len(stack) > 0 {
		cell := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key := emulator.HashHex(cell.Hash())
		if _, seen := idx.cells[key]; seen {
			continue
		}
		idx.cells[key] = cell

		stack = append(stack, cell.Children()...)
	}

	return idx
}

// Lookup returns the cell for a given hash, or (nil, false) if the hash was
// never observed during Build.
func (idx *Index) Lookup(hash [32]byte) (emulator.Cell, bool) {
	cell, ok := idx.cells[emulator.HashHex(hash)]
	return cell, ok
}

// Len returns the number of distinct cells indexed.
func (idx *Index) Len() int {
	return len(idx.cells)
}
