package engine

// RangeSub records "dependent is a range aggregate over the rectangle
// [Start..End]". Start and End are stored as written; rectBounds
// normalizes them to Start <= End on both axes in the grid's row/col
// space whenever membership is tested. Iteration order across range subscriptions is
// irrelevant to correctness, so they live in a flat slice rather than
// a keyed structure.
type RangeSub struct {
	Start, End int32
	Dependent  int32
}

// Graph holds the two dependency structures spec.md §3 requires: per-cell
// out-edges (source -> set of dependents) and the global list of range
// subscriptions.
type Graph struct {
	out    []map[int32]struct{} // out[source] = set of dependents
	ranges []RangeSub
	grid   *Grid // needed to test range membership by (row, col)
}

// NewGraph allocates an empty graph sized for g's cell count.
func NewGraph(g *Grid) *Graph {
	return &Graph{
		out:  make([]map[int32]struct{}, g.Rows*g.Cols),
		grid: g,
	}
}

// Clone deep-copies the graph for use in a Snapshot. The grid pointer is
// rebound to the grid clone the caller is building alongside it.
func (gr *Graph) Clone(newGrid *Grid) *Graph {
	cp := &Graph{
		out:    make([]map[int32]struct{}, len(gr.out)),
		ranges: append([]RangeSub(nil), gr.ranges...),
		grid:   newGrid,
	}
	for i, deps := range gr.out {
		if deps == nil {
			continue
		}
		cloned := make(map[int32]struct{}, len(deps))
		for d := range deps {
			cloned[d] = struct{}{}
		}
		cp.out[i] = cloned
	}
	return cp
}

// AddEdge installs a directed edge source -> dependent. Idempotent: a
// duplicate add is a no-op so no (source, dependent) pair is ever stored
// twice.
func (gr *Graph) AddEdge(source, dependent int32) {
	if gr.out[source] == nil {
		gr.out[source] = make(map[int32]struct{})
	}
	gr.out[source][dependent] = struct{}{}
}

// DeleteEdge removes a directed edge, if present.
func (gr *Graph) DeleteEdge(source, dependent int32) {
	if deps := gr.out[source]; deps != nil {
		delete(deps, dependent)
	}
}

// Dependents returns the out-edge set of source; the returned slice is a
// fresh copy safe for the caller to range over while mutating the graph.
func (gr *Graph) Dependents(source int32) []int32 {
	deps := gr.out[source]
	if len(deps) == 0 {
		return nil
	}
	out := make([]int32, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	return out
}

// AddRange installs a range subscription.
func (gr *Graph) AddRange(start, end, dependent int32) {
	gr.ranges = append(gr.ranges, RangeSub{Start: start, End: end, Dependent: dependent})
}

// DeleteRangeFor removes every range subscription whose Dependent equals
// dependent.
func (gr *Graph) DeleteRangeFor(dependent int32) {
	kept := gr.ranges[:0]
	for _, rs := range gr.ranges {
		if rs.Dependent != dependent {
			kept = append(kept, rs)
		}
	}
	gr.ranges = kept
}

// rectBounds normalizes a [start, end] pair into inclusive row/col
// bounds, per spec.md §3: "normalized so start <= end in each axis".
func (gr *Graph) rectBounds(start, end int32) (r0, c0, r1, c1 int) {
	sr, sc := gr.grid.RowCol(start)
	er, ec := gr.grid.RowCol(end)
	if sr > er {
		sr, er = er, sr
	}
	if sc > ec {
		sc, ec = ec, sc
	}
	return sr, sc, er, ec
}

// inRect reports whether idx's (row, col) falls inside the rectangle
// bounded by start/end (already normalized per rectBounds).
func (gr *Graph) inRect(idx int32, start, end int32) bool {
	r0, c0, r1, c1 := gr.rectBounds(start, end)
	row, col := gr.grid.RowCol(idx)
	return row >= r0 && row <= r1 && col >= c0 && col <= c1
}

// RangesCovering returns every range subscription whose rectangle
// contains idx — used by the topological walk to find the implicit
// forward edge from a cell to any range aggregate observing it.
func (gr *Graph) RangesCovering(idx int32) []RangeSub {
	var out []RangeSub
	for _, rs := range gr.ranges {
		if gr.inRect(idx, rs.Start, rs.End) {
			out = append(out, rs)
		}
	}
	return out
}

// InstallEdges adds the exact set of edges/range-subscription implied by
// formula f installed at cell self, per the table in spec.md §3.
func (gr *Graph) InstallEdges(self int32, f Formula) {
	if f.isRangeAggregate() {
		gr.AddRange(f.Arg1, f.Arg2, self)
		return
	}
	for _, src := range f.singleCellSources(self) {
		gr.AddEdge(src, self)
	}
}

// UninstallEdges removes the exact set of edges/range-subscription that
// formula f (the cell's *previous* formula) had installed at self. Must
// be called with the old formula before a new one is written, per the
// assignment protocol in spec.md §4.2 step 3.
func (gr *Graph) UninstallEdges(self int32, f Formula) {
	if f.isRangeAggregate() {
		gr.DeleteRangeFor(self)
		return
	}
	for _, src := range f.singleCellSources(self) {
		gr.DeleteEdge(src, self)
	}
}
