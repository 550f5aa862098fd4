package collab

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(mux)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + srv.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event failed: %v", err)
	}
	return ev
}

func TestInitBroadcastsClientList(t *testing.T) {
	_, srv := newTestHubServer(t)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	data, _ := json.Marshal(initData{Name: "alice"})
	if err := conn.WriteJSON(event{EventType: "INIT", Data: data}); err != nil {
		t.Fatalf("write INIT failed: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.EventType != "CLIENT_LIST" {
		t.Fatalf("first event = %s, want CLIENT_LIST", ev.EventType)
	}
	var cl clientListData
	if err := json.Unmarshal(ev.Data, &cl); err != nil {
		t.Fatalf("unmarshal CLIENT_LIST: %v", err)
	}
	if len(cl.Clients) != 1 || cl.Clients[0].Name != "alice" {
		t.Errorf("clients = %+v, want [{alice}]", cl.Clients)
	}
}

func TestGridUpdateRelaysNewerTimestampToOtherPeers(t *testing.T) {
	_, srv := newTestHubServer(t)
	defer srv.Close()

	a := dial(t, srv)
	defer a.Close()
	b := dial(t, srv)
	defer b.Close()

	aInit, _ := json.Marshal(initData{Name: "a"})
	a.WriteJSON(event{EventType: "INIT", Data: aInit})
	readEvent(t, a) // a's own CLIENT_LIST, only peer connected so far

	bInit, _ := json.Marshal(initData{Name: "b"})
	b.WriteJSON(event{EventType: "INIT", Data: bInit})
	readEvent(t, a) // updated CLIENT_LIST after b joins
	readEvent(t, b) // b's own first CLIENT_LIST

	update := gridUpdateData{
		Grid: []rowDelta{{
			Idx: 0,
			Columns: []cellDelta{{Idx: 0, Peer: "a", Timestamp: 5, Value: "hello"}},
		}},
		Sender: "a",
	}
	payload, _ := json.Marshal(update)
	if err := a.WriteJSON(event{EventType: "GRID_UPDATE", Data: payload}); err != nil {
		t.Fatalf("write GRID_UPDATE failed: %v", err)
	}

	ev := readEvent(t, b)
	if ev.EventType != "GRID_UPDATE" {
		t.Fatalf("b received %s, want GRID_UPDATE", ev.EventType)
	}
	var got gridUpdateData
	if err := json.Unmarshal(ev.Data, &got); err != nil {
		t.Fatalf("unmarshal GRID_UPDATE: %v", err)
	}
	if len(got.Grid) != 1 || len(got.Grid[0].Columns) != 1 || got.Grid[0].Columns[0].Value != "hello" {
		t.Fatalf("relayed grid = %+v, want one cell with value hello", got.Grid)
	}
}

func TestStaleTimestampIsDropped(t *testing.T) {
	hub := NewHub()
	hub.cells[0] = cellDelta{Idx: 0, Peer: "a", Timestamp: 10, Value: "newer"}

	conn := &websocket.Conn{} // never used for I/O below; only as a distinguishing origin key
	update := gridUpdateData{
		Grid:   []rowDelta{{Idx: 0, Columns: []cellDelta{{Idx: 0, Peer: "b", Timestamp: 3, Value: "older"}}}},
		Sender: "b",
	}
	hub.mergeAndBroadcast(conn, update)

	if hub.cells[0].Value != "newer" {
		t.Errorf("stale update overwrote cell: %+v", hub.cells[0])
	}
}
