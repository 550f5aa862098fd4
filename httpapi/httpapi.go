// Package httpapi is the thin JSON wrapper around engine.Engine
// described in spec.md §6: GET /sheet, POST /update-cell, POST
// /api/query, POST /api/undo, POST /api/redo. Every handler takes the
// shared lock before touching the engine, preserving the single-writer
// discipline spec.md §5 requires.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/kalesheet/formulasheet/engine"
)

// Server holds the single shared engine and the mutex that serializes
// every handler's access to it, grounded on the same
// upgrader/mutex-guarded-state shape the collaboration broker uses.
type Server struct {
	mu  sync.Mutex
	eng *engine.Engine
}

// NewServer wraps an already-constructed engine. Callers share one
// Server (and its Engine) across every HTTP request; the WebSocket
// broker does not use it.
func NewServer(eng *engine.Engine) *Server {
	return &Server{eng: eng}
}

// Routes registers this server's handlers on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/sheet", s.handleSheet)
	mux.HandleFunc("/update-cell", s.handleUpdateCell)
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/undo", s.handleUndo)
	mux.HandleFunc("/api/redo", s.handleRedo)
}

type cellRow struct {
	RowID    int    `json:"row_id"`
	ColumnID int    `json:"column_id"`
	Value    string `json:"value"`
	Formula  int8   `json:"formula"`
	Valid    bool   `json:"valid"`
}

type sheetResponse struct {
	Rows  int       `json:"rows"`
	Cols  int       `json:"cols"`
	Cells []cellRow `json:"cells"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, cols := s.eng.Dim()
	resp := sheetResponse{Rows: rows, Cols: cols}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell, _ := s.eng.Cell(row, col)
			f := s.eng.Formulas[s.eng.Grid.Index(row, col)]
			resp.Cells = append(resp.Cells, cellRow{
				RowID:    row,
				ColumnID: col,
				Value:    displayValue(cell),
				Formula:  int8(f.Op),
				Valid:    cell.Valid,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateCellRequest struct {
	RowID    int    `json:"row_id"`
	ColumnID int    `json:"column_id"`
	Value    string `json:"value"`
}

// handleUpdateCell classifies value: a value starting with '=' is a
// formula (the text after the '=' is assigned), otherwise an int or
// float literal is assigned as is, and anything else is stored as a
// string literal. A value with '=' anywhere but the first position is
// stored as a string literal, not as a formula.
func (s *Server) handleUpdateCell(w http.ResponseWriter, r *http.Request) {
	var req updateCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "malformed request body"})
		return
	}

	target := engine.FormatCellLabel(req.RowID, req.ColumnID)
	rhs := req.Value
	switch {
	case strings.HasPrefix(rhs, "="):
		rhs = rhs[1:]
	case looksNumeric(rhs):
		// bare int/float literal, assign verbatim.
	default:
		rhs = strconv.Quote(rhs)
	}

	s.mu.Lock()
	err := s.eng.Assign(target, rhs)
	s.mu.Unlock()

	if err != nil {
		log.Printf("httpapi: update-cell %s=%s failed: %v", target, rhs, err)
		writeJSON(w, http.StatusOK, apiResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "ok"})
}

func looksNumeric(v string) bool {
	if v == "" {
		return false
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return true
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

type queryRequest struct {
	Line string `json:"line"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "malformed request body"})
		return
	}

	s.mu.Lock()
	_, err := s.eng.AssignLine(req.Line)
	s.mu.Unlock()

	if err != nil {
		writeJSON(w, http.StatusOK, apiResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "ok"})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ok := s.eng.Undo()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, apiResponse{Success: ok, Message: undoRedoMessage(ok)})
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ok := s.eng.Redo()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, apiResponse{Success: ok, Message: undoRedoMessage(ok)})
}

func undoRedoMessage(ok bool) string {
	if ok {
		return "ok"
	}
	return "nothing to do"
}

func displayValue(c engine.Cell) string {
	if !c.Valid {
		return ""
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

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: response encode failed: %v", err)
	}
}
