// Package server wires HTTP handlers into a ServeMux for the roomchat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, login, the per-room WebSocket endpoint, the room
// listing, and the test page.
func SetupRoutes(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Health)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("GET /ws/{room}", h.WebSocket)
	mux.HandleFunc("GET /rooms", h.Rooms)
	mux.HandleFunc("GET /test", TestPageHandler)
	return mux
}
