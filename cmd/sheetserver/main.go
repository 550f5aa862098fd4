// Command sheetserver runs the HTTP JSON API and the collaborative
// WebSocket broker side by side, per spec.md §6, sharing a single
// engine.Engine across every HTTP request and a separate, engine-free
// broker for the collaborative grid-delta channel.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/kalesheet/formulasheet/collab"
	"github.com/kalesheet/formulasheet/engine"
	"github.com/kalesheet/formulasheet/httpapi"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	rows := flag.Int("rows", 100, "grid rows")
	cols := flag.Int("cols", 26, "grid columns")
	flag.Parse()

	eng := engine.NewEngine(*rows, *cols, 0)
	srv := httpapi.NewServer(eng)
	hub := collab.NewHub()

	mux := http.NewServeMux()
	srv.Routes(mux)
	mux.HandleFunc("/ws", hub.HandleWebSocket)

	log.Printf("sheetserver listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("sheetserver: %v", err)
	}
}
