// Package collab implements the collaborative delta channel of
// spec.md §6: a WebSocket broker relaying peer presence and per-cell
// last-writer-wins grid updates. It never calls into engine.Engine —
// the merge here is string-valued only, a pure relay over a broker-owned
// parallel grid, matching the Non-goal that the formula engine itself
// has no multi-writer support.
package collab

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// event is the {event_type, data} envelope every peer exchanges.
type event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type initData struct {
	Name string `json:"name"`
}

type clientInfo struct {
	Name string `json:"name"`
}

type clientListData struct {
	Clients []clientInfo `json:"clients"`
}

// cellDelta is one column entry of a GRID_UPDATE row: the last value a
// given peer wrote to that column, stamped with the logical clock value
// it was written at.
type cellDelta struct {
	Idx       int    `json:"idx"`
	Peer      string `json:"peer"`
	Timestamp int64  `json:"timestamp"`
	Value     string `json:"value"`
}

type rowDelta struct {
	Idx     int         `json:"idx"`
	Columns []cellDelta `json:"columns"`
}

type gridUpdateData struct {
	Grid   []rowDelta `json:"grid"`
	Sender string     `json:"sender"`
}

// Hub owns the set of connected peers and the broker's own merged view
// of the grid as last-known display strings plus timestamps, keyed by
// flat cell index.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]string // conn -> peer name
	cells   map[int]cellDelta
}

// NewHub returns an empty broker with no connected peers.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]string),
		cells:   make(map[int]cellDelta),
	}
}

// HandleWebSocket upgrades the connection and runs its receive loop
// until the peer disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("collab: upgrade failed:", err)
		return
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		h.broadcastClientList()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var ev event
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Println("collab: malformed event:", err)
			continue
		}
		h.handleEvent(conn, ev)
	}
}

func (h *Hub) handleEvent(conn *websocket.Conn, ev event) {
	switch ev.EventType {
	case "INIT":
		var d initData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return
		}
		h.mu.Lock()
		h.clients[conn] = d.Name
		h.mu.Unlock()
		h.broadcastClientList()
	case "GRID_UPDATE":
		var d gridUpdateData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return
		}
		h.mergeAndBroadcast(conn, d)
	}
}

// mergeAndBroadcast applies the last-writer-wins rule of spec.md §6 to
// every cell in the incoming update, then relays the (possibly
// narrowed) result to every other connected peer.
func (h *Hub) mergeAndBroadcast(origin *websocket.Conn, d gridUpdateData) {
	h.mu.Lock()
	accepted := make([]rowDelta, 0, len(d.Grid))
	for _, row := range d.Grid {
		var keptCols []cellDelta
		for _, col := range row.Columns {
			local, ok := h.cells[col.Idx]
			if !ok || col.Timestamp > local.Timestamp || (col.Timestamp == local.Timestamp && rand.Intn(2) == 0) {
				h.cells[col.Idx] = col
				keptCols = append(keptCols, col)
			}
		}
		if len(keptCols) > 0 {
			accepted = append(accepted, rowDelta{Idx: row.Idx, Columns: keptCols})
		}
	}
	clients := make(map[*websocket.Conn]struct{}, len(h.clients))
	for c := range h.clients {
		clients[c] = struct{}{}
	}
	h.mu.Unlock()

	if len(accepted) == 0 {
		return
	}
	out := event{EventType: "GRID_UPDATE"}
	payload, err := json.Marshal(gridUpdateData{Grid: accepted, Sender: d.Sender})
	if err != nil {
		log.Println("collab: marshal failed:", err)
		return
	}
	out.Data = payload

	for conn := range clients {
		if conn == origin {
			continue
		}
		h.send(conn, out)
	}
}

func (h *Hub) broadcastClientList() {
	h.mu.Lock()
	list := make([]clientInfo, 0, len(h.clients))
	for _, name := range h.clients {
		list = append(list, clientInfo{Name: name})
	}
	clients := make(map[*websocket.Conn]struct{}, len(h.clients))
	for c := range h.clients {
		clients[c] = struct{}{}
	}
	h.mu.Unlock()

	payload, err := json.Marshal(clientListData{Clients: list})
	if err != nil {
		log.Println("collab: marshal failed:", err)
		return
	}
	out := event{EventType: "CLIENT_LIST", Data: payload}
	for conn := range clients {
		h.send(conn, out)
	}
}

func (h *Hub) send(conn *websocket.Conn, ev event) {
	if err := conn.WriteJSON(ev); err != nil {
		log.Printf("collab: write failed, dropping peer: %v", err)
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}
}
