package engine

import (
	"strconv"
	"strings"
)

// AssignOutcome classifies the result of a single Assign call for hosts
// that need more than a bare error — the line protocol in spec.md §6
// surfaces a distinct status word for each of these.
type AssignOutcome int

const (
	OutcomeOK AssignOutcome = iota
	OutcomeCircularDependency
	OutcomeInvalidRange
	OutcomeUnrecognizedCommand
	OutcomeParseError
)

// Outcome classifies err the way hosts need to report it, returning
// OutcomeOK for a nil error.
func Outcome(err error) AssignOutcome {
	switch {
	case err == nil:
		return OutcomeOK
	case err == ErrCircularDependency:
		return OutcomeCircularDependency
	case err == ErrInvalidRange || err == ErrOutOfBounds:
		return OutcomeInvalidRange
	case err == ErrUnrecognizedCommand:
		return OutcomeUnrecognizedCommand
	default:
		return OutcomeParseError
	}
}

// Engine composes the grid, the formula array, the dependency graph, and
// the undo/redo history into the single mutable object a host drives.
// None of Engine's methods are safe to call concurrently from more than
// one goroutine at a time — hosts that expose Engine to concurrent
// callers (the HTTP/WebSocket server) must guard it with their own lock,
// per spec.md §7's single-writer discipline.
type Engine struct {
	Grid     *Grid
	Formulas []Formula
	Graph    *Graph
	History  *History
	eval     *Evaluator
}

// NewEngine allocates an engine over a fresh rows x cols grid, wired to a
// real clock and a history bounded to historyCapacity entries (<=0 for
// unbounded).
func NewEngine(rows, cols, historyCapacity int) *Engine {
	grid := NewGrid(rows, cols)
	formulas := make([]Formula, rows*cols)
	for i := range formulas {
		formulas[i] = zeroFormula
	}
	return &Engine{
		Grid:     grid,
		Formulas: formulas,
		Graph:    NewGraph(grid),
		History:  NewHistory(historyCapacity),
		eval:     NewEvaluator(),
	}
}

// Dim returns the engine's grid dimensions.
func (e *Engine) Dim() (rows, cols int) {
	return e.Grid.Rows, e.Grid.Cols
}

// Cell returns the current value of the cell at (row, col).
func (e *Engine) Cell(row, col int) (Cell, error) {
	if !e.Grid.InBounds(row, col) {
		return Cell{}, ErrOutOfBounds
	}
	return e.Grid.Get(e.Grid.Index(row, col)), nil
}

// snapshot captures the engine's current full state.
func (e *Engine) snapshot() Snapshot {
	return capture(e.Grid, e.Formulas, e.Graph)
}

// restore replaces the engine's live state with a snapshot. Formulas is
// copied; the snapshot's Grid and Graph are not copied but become the
// live objects, so later mutations of the engine change them too.
func (e *Engine) restore(s Snapshot) {
	e.Grid = s.Grid
	e.Formulas = append([]Formula(nil), s.Formulas...)
	e.Graph = s.Graph
}

// Assign implements the seven-step assignment protocol of spec.md §4.2:
// parse the target label and classify rhs, snapshot the pre-image for
// undo, uninstall the old formula's edges, write the new formula,
// install the new edges, seed the value of a string or float literal,
// and recompute forward from the target (which evaluates the target
// itself first). A cycle discovered during recompute rolls every one of those
// writes back atomically and returns ErrCircularDependency; any other
// classification failure leaves the engine untouched.
func (e *Engine) Assign(targetLabel, rhs string) error {
	row, col, err := ParseCellLabel(targetLabel)
	if err != nil {
		return newParseError("invalid target cell " + targetLabel)
	}
	if !e.Grid.InBounds(row, col) {
		return ErrOutOfBounds
	}
	target := e.Grid.Index(row, col)

	p, err := classify(e.Grid, target, rhs)
	if err != nil {
		return err
	}

	pre := e.snapshot()
	oldFormula := e.Formulas[target]

	e.Graph.UninstallEdges(target, oldFormula)
	e.Formulas[target] = p.formula
	e.Graph.InstallEdges(target, p.formula)

	// String and float literals live only in the cell, so they are seeded
	// here; every other shape is evaluated by Recompute, which visits the
	// target first, so each assignment evaluates it (and runs a SLEEP)
	// exactly once.
	if p.formula.Op == OpLiteralFloat || p.formula.Op == OpLiteralString {
		e.Grid.Set(target, p.literal)
	}

	if _, cycle := Recompute(e.Grid, e.Graph, e.Formulas, e.eval, target); cycle {
		e.restore(pre)
		return ErrCircularDependency
	}

	e.History.Push(pre)
	return nil
}

// AssignLine is the line-protocol entry point used by the CLI and HTTP
// query hosts: it recognizes the leading "=autofill <column> <length>"
// command of spec.md §4.2, otherwise splits line on the first '=' and
// delegates to Assign, translating the result into the status tag
// spec.md §6 defines for the line protocol. A line with no '=' is an
// unrecognized command.
func (e *Engine) AssignLine(line string) (AssignOutcome, error) {
	if args, ok := cutAutofillArgs(line); ok {
		err := e.autofillLine(args)
		return Outcome(err), err
	}

	i := strings.IndexByte(line, '=')
	if i < 0 {
		return OutcomeUnrecognizedCommand, ErrUnrecognizedCommand
	}
	err := e.Assign(line[:i], line[i+1:])
	return Outcome(err), err
}

const autofillPrefix = "=autofill "

func cutAutofillArgs(line string) (string, bool) {
	if !strings.HasPrefix(line, autofillPrefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(autofillPrefix):]), true
}

// autofillLine parses "<ColumnLabel> <length>" and delegates to Autofill,
// reporting a malformed argument list as an unrecognized command rather
// than a parse error since the command name itself was already matched.
func (e *Engine) autofillLine(args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return ErrUnrecognizedCommand
	}
	length, err := strconv.Atoi(fields[1])
	if err != nil {
		return ErrUnrecognizedCommand
	}
	return e.Autofill(fields[0], length)
}

// Autofill implements the "=autofill" extension of spec.md §4.2, pushing
// a pre-image onto the undo stack exactly like a normal Assign. Autofill
// installs no formulas or edges: each written cell's previous edges are
// removed and its formula record becomes an integer literal, so the
// written cells are plain literals until reassigned. Cells that depend
// on the written cells are not recomputed.
func (e *Engine) Autofill(column string, length int) error {
	pre := e.snapshot()
	if err := Autofill(e.Grid, column, length); err != nil {
		return err
	}
	col, _ := parseColumnLabel(column) // already validated by Autofill
	for r := 4; r < length; r++ {
		idx := e.Grid.Index(r, col)
		e.Graph.UninstallEdges(idx, e.Formulas[idx])
		e.Formulas[idx] = Formula{Op: OpLiteralInt, Arg1: int32(e.Grid.Get(idx).Int)}
	}
	e.History.Push(pre)
	return nil
}

// Undo restores the most recently pushed pre-image, or reports ok=false
// if the undo stack is empty.
func (e *Engine) Undo() bool {
	prev, ok := e.History.Undo(e.snapshot())
	if !ok {
		return false
	}
	e.restore(prev)
	return true
}

// Redo re-applies the most recently undone state, or reports ok=false if
// the redo stack is empty.
func (e *Engine) Redo() bool {
	next, ok := e.History.Redo(e.snapshot())
	if !ok {
		return false
	}
	e.restore(next)
	return true
}
