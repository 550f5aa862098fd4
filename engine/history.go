package engine

// Snapshot is an immutable-by-convention clone of the full engine state:
// the cell array, the formula array, and the dependency graph. Capturing
// one is the basis for both undo/redo (this file) and the per-assignment
// rollback in Engine.Assign.
type Snapshot struct {
	Grid     *Grid
	Formulas []Formula
	Graph    *Graph
}

// capture clones grid/formulas/graph into a fresh, independent Snapshot.
func capture(grid *Grid, formulas []Formula, graph *Graph) Snapshot {
	gridClone := grid.Clone()
	return Snapshot{
		Grid:     gridClone,
		Formulas: append([]Formula(nil), formulas...),
		Graph:    graph.Clone(gridClone),
	}
}

// History is the two-stack undo/redo log described in spec.md §4.6.
// Capacity <= 0 means unbounded (the default for server contexts); the
// interactive CLI bounds it to 5 entries.
type History struct {
	undo, redo []Snapshot
	capacity   int
}

// NewHistory returns a History bounded to capacity entries on the undo
// stack, or unbounded when capacity <= 0.
func NewHistory(capacity int) *History {
	return &History{capacity: capacity}
}

// Push records a pre-image snapshot ahead of a mutating operation and
// clears the redo stack, per spec.md §4.6: "On any non-history
// assignment the engine pushes the pre-image onto the undo stack... and
// clears the redo stack."
func (h *History) Push(s Snapshot) {
	h.undo = append(h.undo, s)
	if h.capacity > 0 && len(h.undo) > h.capacity {
		h.undo = h.undo[len(h.undo)-h.capacity:]
	}
	h.redo = nil
}

// Undo moves the current state onto the redo stack and returns the
// popped undo snapshot to restore, or ok=false if the undo stack is
// empty. current is the state the caller is about to replace.
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	if len(h.undo) == 0 {
		return Snapshot{}, false
	}
	n := len(h.undo) - 1
	prev := h.undo[n]
	h.undo = h.undo[:n]
	h.redo = append(h.redo, current)
	return prev, true
}

// Redo is the symmetric counterpart of Undo.
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	if len(h.redo) == 0 {
		return Snapshot{}, false
	}
	n := len(h.redo) - 1
	next := h.redo[n]
	h.redo = h.redo[:n]
	h.undo = append(h.undo, current)
	return next, true
}
