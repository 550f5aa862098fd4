package engine

// visitState tracks a cell's progress through one DFS pass, per the
// state machine in spec.md §4.5: unvisited cells are simply absent from
// the map, visiting cells map to false, done cells map to true.
type visitState = bool

const (
	stateVisiting visitState = false
	stateDone     visitState = true
)

// Recompute performs a single topological walk forward from start,
// following out-edges and any range subscription whose rectangle
// contains the cell being visited (spec.md §4.5 point 1). It evaluates
// every reachable cell exactly once, in dependency order, writing the
// result directly into grid.
//
// If the forward walk discovers a cycle, it aborts immediately and
// returns (nil, true) without having evaluated anything — the caller
// (Engine.Assign) is responsible for the rollback described in spec.md
// §4.2 step 6. Cycle detection never needs to fall back to a global
// graph scan: only cells reachable from start can participate in a new
// cycle, since start is the only cell whose formula just changed.
func Recompute(grid *Grid, graph *Graph, formulas []Formula, eval *Evaluator, start int32) (order []int32, cycle bool) {
	state := make(map[int32]visitState)
	var postOrder []int32

	var visit func(n int32) bool
	visit = func(n int32) bool {
		if s, seen := state[n]; seen {
			return s == stateVisiting // re-entering a node still being visited is a cycle
		}
		state[n] = stateVisiting

		for _, dep := range graph.Dependents(n) {
			if visit(dep) {
				return true
			}
		}
		for _, rs := range graph.RangesCovering(n) {
			if visit(rs.Dependent) {
				return true
			}
		}

		state[n] = stateDone
		postOrder = append(postOrder, n)
		return false
	}

	if visit(start) {
		return nil, true
	}

	// postOrder is source-to-sink in reverse; walk it back to front to get
	// topological (sources-before-sinks) order, evaluating each cell as we go.
	order = make([]int32, len(postOrder))
	for i, n := range postOrder {
		order[len(postOrder)-1-i] = n
	}
	for _, n := range order {
		grid.Set(n, eval.Eval(grid, n, formulas[n]))
	}
	return order, false
}
