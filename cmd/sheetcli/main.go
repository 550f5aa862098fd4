// Command sheetcli is the interactive line-protocol front end for the
// formula engine: a bufio-driven REPL implementing the command table of
// spec.md §6 against a single in-process engine.Engine.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/kalesheet/formulasheet/engine"
)

func main() {
	rows := flag.Int("rows", 100, "grid rows")
	cols := flag.Int("cols", 26, "grid columns")
	flag.Parse()

	h := newHost(*rows, *cols)
	if err := h.run(os.Stdin, os.Stdout); err != nil {
		log.Fatalf("sheetcli: %v", err)
	}
}

// viewport tracks the host-only scrolling state described in spec.md
// §4.8: the engine has no notion of what is currently on screen.
type viewport struct {
	topRow, leftCol int
	outputEnabled   bool
}

const scrollStep = 10

func (v *viewport) scroll(dir byte, rows, cols int) {
	switch dir {
	case 'w':
		v.topRow -= scrollStep
	case 's':
		v.topRow += scrollStep
	case 'a':
		v.leftCol -= scrollStep
	case 'd':
		v.leftCol += scrollStep
	}
	v.clamp(rows, cols)
}

func (v *viewport) clamp(rows, cols int) {
	if v.topRow < 0 {
		v.topRow = 0
	}
	if v.topRow > rows-1 {
		v.topRow = rows - 1
	}
	if v.leftCol < 0 {
		v.leftCol = 0
	}
	if v.leftCol > cols-1 {
		v.leftCol = cols - 1
	}
}

// host wires an engine to a terminal: it owns the viewport and the
// raw grid-rendering loop, and never touches engine internals beyond
// the facade's exported methods.
type host struct {
	eng *engine.Engine
	vp  viewport
}

func newHost(rows, cols int) *host {
	h := &host{eng: engine.NewEngine(rows, cols, 5)}
	h.vp.outputEnabled = true
	return h
}

func (h *host) run(in *os.File, out *os.File) error {
	width, height := 80, 24
	if w, hgt, err := term.GetSize(int(out.Fd())); err == nil {
		width, height = w, hgt
	}

	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "formulasheet interactive session. Type q to quit.")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		start := time.Now()
		status := h.dispatch(line)
		elapsed := time.Since(start).Seconds()

		fmt.Fprintf(out, "%.3fs (%s)\n", elapsed, status)
		if status == "quit" {
			return nil
		}
		if h.vp.outputEnabled {
			h.render(out, width, height)
		}
	}
	return scanner.Err()
}

// dispatch executes one line of the command language and returns the
// status word to print, per spec.md §6's (ok)/(circular dependency
// detected)/(invalid range)/(unrecognized command) tags, plus the
// host-only "quit" sentinel that terminates the session.
func (h *host) dispatch(line string) string {
	rows, cols := h.eng.Dim()

	switch {
	case line == "q":
		return "quit"
	case line == "disable_output":
		h.vp.outputEnabled = false
		return "ok"
	case line == "enable_output":
		h.vp.outputEnabled = true
		return "ok"
	case line == "w", line == "a", line == "s", line == "d":
		h.vp.scroll(line[0], rows, cols)
		return "ok"
	case strings.HasPrefix(line, "scroll_to "):
		return h.scrollTo(strings.TrimSpace(strings.TrimPrefix(line, "scroll_to ")), rows, cols)
	case line == "undo":
		if !h.eng.Undo() {
			return "unrecognized command"
		}
		return "ok"
	case line == "redo":
		if !h.eng.Redo() {
			return "unrecognized command"
		}
		return "ok"
	default:
		_, err := h.eng.AssignLine(line)
		return statusWord(err)
	}
}

func (h *host) scrollTo(label string, rows, cols int) string {
	row, col, err := engine.ParseCellLabel(label)
	if err != nil || !h.eng.Grid.InBounds(row, col) {
		return "unrecognized command"
	}
	h.vp.topRow, h.vp.leftCol = row, col
	h.vp.clamp(rows, cols)
	return "ok"
}

func statusWord(err error) string {
	switch engine.Outcome(err) {
	case engine.OutcomeOK:
		return "ok"
	case engine.OutcomeCircularDependency:
		return "circular dependency detected"
	case engine.OutcomeInvalidRange:
		return "invalid range"
	default:
		return "unrecognized command"
	}
}

// render prints the fixed-width table of cells currently inside the
// viewport, sized to fit the terminal's reported width/height.
func (h *host) render(out *os.File, width, height int) {
	rows, cols := h.eng.Dim()
	visibleRows := height - 2
	if visibleRows < 1 {
		visibleRows = 1
	}
	colWidth := 10
	visibleCols := width / colWidth
	if visibleCols < 1 {
		visibleCols = 1
	}

	for r := h.vp.topRow; r < rows && r < h.vp.topRow+visibleRows; r++ {
		var b strings.Builder
		for c := h.vp.leftCol; c < cols && c < h.vp.leftCol+visibleCols; c++ {
			cell, _ := h.eng.Cell(r, c)
			fmt.Fprintf(&b, "%-*s", colWidth, formatCell(cell))
		}
		fmt.Fprintln(out, strings.TrimRight(b.String(), " "))
	}
}

func formatCell(c engine.Cell) string {
	if !c.Valid {
		return "#ERR"
	}
	switch c.Kind {
	case engine.KindInt:
		return strconv.FormatInt(c.Int, 10)
	case engine.KindFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	default:
		return c.Str
	}
}
