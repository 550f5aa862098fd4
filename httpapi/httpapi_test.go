package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/kalesheet/formulasheet/engine"
)

func newTestServer() (*Server, *http.ServeMux) {
	srv := NewServer(engine.NewEngine(10, 10, 5))
	mux := http.NewServeMux()
	srv.Routes(mux)
	return srv, mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body interface{}) apiResponse {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp apiResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestUpdateCellAssignsIntLiteral(t *testing.T) {
	_, mux := newTestServer()
	resp := postJSON(t, mux, "/update-cell", updateCellRequest{RowID: 0, ColumnID: 0, Value: "5"})
	if !resp.Success {
		t.Fatalf("update-cell failed: %s", resp.Message)
	}
}

func TestUpdateCellAssignsFormula(t *testing.T) {
	s, mux := newTestServer()
	postJSON(t, mux, "/update-cell", updateCellRequest{RowID: 0, ColumnID: 0, Value: "4"})
	resp := postJSON(t, mux, "/update-cell", updateCellRequest{RowID: 0, ColumnID: 1, Value: "=A1+1"})
	if !resp.Success {
		t.Fatalf("update-cell formula failed: %s", resp.Message)
	}
	got, err := s.eng.Cell(0, 1)
	if err != nil || !got.Valid || got.Int != 5 {
		t.Errorf("B1 = %+v, want int 5", got)
	}
}

func TestUpdateCellCellLikeStringIsLiteral(t *testing.T) {
	s, mux := newTestServer()
	resp := postJSON(t, mux, "/update-cell", updateCellRequest{RowID: 0, ColumnID: 0, Value: "A1"})
	if !resp.Success {
		t.Fatalf("update-cell literal failed: %s", resp.Message)
	}
	got, err := s.eng.Cell(0, 0)
	if err != nil || !got.Valid || got.Kind != engine.KindString || got.Str != "A1" {
		t.Errorf("A1 = %+v, want string literal \"A1\"", got)
	}
}

func TestUpdateCellArithmeticLookingStringIsLiteral(t *testing.T) {
	s, mux := newTestServer()
	resp := postJSON(t, mux, "/update-cell", updateCellRequest{RowID: 0, ColumnID: 0, Value: "5+5"})
	if !resp.Success {
		t.Fatalf("update-cell literal failed: %s", resp.Message)
	}
	got, err := s.eng.Cell(0, 0)
	if err != nil || !got.Valid || got.Kind != engine.KindString || got.Str != "5+5" {
		t.Errorf("A1 = %+v, want string literal \"5+5\"", got)
	}
}

func TestGetSheetReflectsAssignments(t *testing.T) {
	s, mux := newTestServer()
	if err := s.eng.Assign("A1", "7"); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/sheet", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp sheetResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode /sheet response: %v", err)
	}
	if resp.Rows != 10 || resp.Cols != 10 {
		t.Fatalf("dims = %dx%d, want 10x10", resp.Rows, resp.Cols)
	}
	found := false
	for _, c := range resp.Cells {
		if c.RowID == 0 && c.ColumnID == 0 {
			found = true
			if c.Value != "7" || !c.Valid {
				t.Errorf("cell A1 = %+v, want value 7 valid", c)
			}
		}
	}
	if !found {
		t.Fatalf("A1 missing from /sheet response")
	}
}

func TestQueryRunsLineProtocol(t *testing.T) {
	_, mux := newTestServer()
	resp := postJSON(t, mux, "/api/query", queryRequest{Line: "A1=9"})
	if !resp.Success {
		t.Fatalf("query failed: %s", resp.Message)
	}
}

func TestQueryRunsAutofillCommand(t *testing.T) {
	s, mux := newTestServer()
	for i, label := range []string{"A1", "A2", "A3", "A4"} {
		postJSON(t, mux, "/api/query", queryRequest{Line: label + "=" + strconv.Itoa(2 * (i + 1))})
	}
	resp := postJSON(t, mux, "/api/query", queryRequest{Line: "=autofill A 5"})
	if !resp.Success {
		t.Fatalf("autofill query failed: %s", resp.Message)
	}
	got, err := s.eng.Cell(4, 0)
	if err != nil || !got.Valid || got.Int != 10 {
		t.Errorf("A5 = %+v, want int 10", got)
	}
}

func TestQueryCircularDependencyIsReported(t *testing.T) {
	s, mux := newTestServer()
	if err := s.eng.Assign("A1", "A1+1"); err == nil {
		t.Fatalf("expected self-cycle to fail at setup")
	}
	resp := postJSON(t, mux, "/api/query", queryRequest{Line: "A1=A1+1"})
	if resp.Success {
		t.Fatalf("expected circular dependency to fail, got success")
	}
}

func TestUndoRedoEndpoints(t *testing.T) {
	s, mux := newTestServer()
	if err := s.eng.Assign("A1", "1"); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if err := s.eng.Assign("A1", "2"); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	var resp apiResponse
	req := httptest.NewRequest(http.MethodPost, "/api/undo", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode undo response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("undo failed: %s", resp.Message)
	}

	got, err := s.eng.Cell(0, 0)
	if err != nil || !got.Valid || got.Int != 1 {
		t.Errorf("A1 after undo = %+v, want int 1", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/redo", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode redo response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("redo failed: %s", resp.Message)
	}
}
