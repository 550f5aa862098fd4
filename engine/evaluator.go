package engine

import (
	"math"
	"time"
)

// Evaluator computes a cell's new value from its formula record and the
// current values of its sources. It holds no state of its own beyond the
// Clock used for SLEEP, so a single Evaluator is safe to reuse across an
// entire recompute pass.
type Evaluator struct {
	Clock Clock
}

// NewEvaluator returns an Evaluator that sleeps for real.
func NewEvaluator() *Evaluator {
	return &Evaluator{Clock: RealClock{}}
}

// Eval computes the value formula f produces for cell self, reading
// whatever source cells it references from grid. grid must already hold
// up-to-date values for every source — the caller (Recompute) guarantees
// this by walking cells in topological order.
func (e *Evaluator) Eval(grid *Grid, self int32, f Formula) Cell {
	switch f.Op {
	case OpLiteralInt:
		return IntCell(int64(f.Arg1))
	case OpLiteralFloat, OpLiteralString:
		// value already lives in the cell itself; recompute leaves it in place.
		return grid.Get(self)
	case OpCopy:
		src := grid.Get(f.Arg1)
		if !src.Valid {
			return Invalid()
		}
		return src
	case OpCellAddConst:
		return e.binary('+', grid.Get(f.Arg1), IntCell(int64(f.Arg2)))
	case OpCellSubConst:
		return e.binary('-', grid.Get(f.Arg1), IntCell(int64(f.Arg2)))
	case OpCellMulConst:
		return e.binary('*', grid.Get(f.Arg1), IntCell(int64(f.Arg2)))
	case OpCellDivConst:
		return e.binary('/', grid.Get(f.Arg1), IntCell(int64(f.Arg2)))
	case OpCellAddCell:
		return e.binary('+', grid.Get(f.Arg1), grid.Get(f.Arg2))
	case OpCellSubCell:
		return e.binary('-', grid.Get(f.Arg1), grid.Get(f.Arg2))
	case OpCellMulCell:
		return e.binary('*', grid.Get(f.Arg1), grid.Get(f.Arg2))
	case OpCellDivCell:
		return e.binary('/', grid.Get(f.Arg1), grid.Get(f.Arg2))
	case OpConstDivCell:
		return e.binary('/', IntCell(int64(f.Arg1)), grid.Get(f.Arg2))
	case OpRangeMin, OpRangeMax, OpRangeAvg, OpRangeSum, OpRangeStdev:
		return e.evalRange(grid, f)
	case OpSleep:
		return e.evalSleep(grid, self, f)
	}
	return Invalid()
}

// binary evaluates lhs <op> rhs under the typed-arithmetic rules of
// spec.md §4.4: invalid propagates, Int/Float mixes promote to Float,
// String supports only "+" as concatenation, and mixing String with a
// non-String operand is always invalid.
func (e *Evaluator) binary(op byte, lhs, rhs Cell) Cell {
	if !lhs.Valid || !rhs.Valid {
		return Invalid()
	}
	if lhs.Kind == KindString || rhs.Kind == KindString {
		if op == '+' && lhs.Kind == KindString && rhs.Kind == KindString {
			return StringCell(lhs.Str + rhs.Str)
		}
		return Invalid()
	}

	bothInt := lhs.Kind == KindInt && rhs.Kind == KindInt
	if bothInt {
		a, b := lhs.Int, rhs.Int
		switch op {
		case '+':
			return IntCell(a + b)
		case '-':
			return IntCell(a - b)
		case '*':
			return IntCell(a * b)
		case '/':
			if b == 0 {
				return Invalid()
			}
			if a%b == 0 {
				return IntCell(a / b)
			}
			return FloatCell(float64(a) / float64(b))
		}
	}

	a, b := lhs.AsFloat(), rhs.AsFloat()
	switch op {
	case '+':
		return FloatCell(a + b)
	case '-':
		return FloatCell(a - b)
	case '*':
		return FloatCell(a * b)
	case '/':
		if b == 0 {
			return Invalid()
		}
		return FloatCell(a / b)
	}
	return Invalid()
}

// evalRange iterates the normalized rectangle described by f.Arg1/f.Arg2
// and computes the requested aggregate. Any string or invalid cell inside
// the rectangle makes the whole aggregate invalid.
func (e *Evaluator) evalRange(grid *Grid, f Formula) Cell {
	r0, c0, r1, c1 := rectBoundsOf(grid, f.Arg1, f.Arg2)

	var values []float64
	allInt := true
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			cell := grid.Get(grid.Index(r, c))
			if !cell.Valid || cell.Kind == KindString {
				return Invalid()
			}
			if cell.Kind == KindFloat {
				allInt = false
			}
			values = append(values, cell.AsFloat())
		}
	}
	if len(values) == 0 {
		return Invalid()
	}

	switch f.Op {
	case OpRangeMin:
		return numericResult(minOf(values), allInt)
	case OpRangeMax:
		return numericResult(maxOf(values), allInt)
	case OpRangeSum:
		return numericResult(sumOf(values), allInt)
	case OpRangeAvg:
		mean := sumOf(values) / float64(len(values))
		return numericResult(mean, allInt)
	case OpRangeStdev:
		mean := sumOf(values) / float64(len(values))
		var sqDiff float64
		for _, v := range values {
			d := v - mean
			sqDiff += d * d
		}
		stdev := math.Sqrt(sqDiff / float64(len(values)))
		return IntCell(int64(math.Round(stdev)))
	}
	return Invalid()
}

// numericResult returns an Int cell when every source in the aggregate
// was an Int and the computed value itself has no fractional part,
// otherwise a Float cell — matching the typed-variant promotion rule
// used throughout the evaluator.
func numericResult(v float64, allInt bool) Cell {
	if allInt && v == math.Trunc(v) {
		return IntCell(int64(v))
	}
	return FloatCell(v)
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func sumOf(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s
}

// rectBoundsOf normalizes a [start, end] cell-index pair into inclusive
// row/col bounds, independent of a *Graph (the evaluator does not hold
// one).
func rectBoundsOf(grid *Grid, start, end int32) (r0, c0, r1, c1 int) {
	sr, sc := grid.RowCol(start)
	er, ec := grid.RowCol(end)
	if sr > er {
		sr, er = er, sr
	}
	if sc > ec {
		sc, ec = ec, sc
	}
	return sr, sc, er, ec
}

// evalSleep implements spec.md §4.4 tag 14: value is the source cell (or
// the self-stored literal when Arg1 == self); a positive value blocks
// the calling thread for that many seconds before the value is stored, a
// non-positive value stores immediately, and a String-typed value is an
// out-of-type sleep argument and evaluates to invalid.
func (e *Evaluator) evalSleep(grid *Grid, self int32, f Formula) Cell {
	var v Cell
	if f.Arg1 == self {
		v = IntCell(int64(f.Arg2))
	} else {
		src := grid.Get(f.Arg1)
		if !src.Valid {
			return Invalid()
		}
		v = src
	}
	if v.Kind == KindString {
		return Invalid()
	}
	if secs := v.AsFloat(); secs > 0 {
		e.Clock.Sleep(time.Duration(secs * float64(time.Second)))
	}
	return v
}
