// Package server exposes HTTP handlers, including WebSocket upgrades, login,
// health checks, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// LoginService exchanges user credentials for a bearer token. Implemented
// by the auth collaborator.
type LoginService interface {
	Login(username, password string) (token string, err error)
}

// Handlers bundles the HTTP handlers with their dependencies. The registry
// and the auth collaborators are injected at construction time; there is no
// ambient state.
type Handlers struct {
	registry *Registry
	auth     Authenticator
	login    LoginService
}

// NewHandlers creates the handler set around an explicitly owned registry
// and auth collaborators.
func NewHandlers(registry *Registry, auth Authenticator, login LoginService) *Handlers {
	return &Handlers{registry: registry, auth: auth, login: login}
}

// bearerToken extracts the bearer credential from the access_token cookie,
// falling back to the Authorization header for non-browser clients.
func bearerToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie("access_token"); err == nil {
		if token, ok := strings.CutPrefix(cookie.Value, "Bearer "); ok {
			return strings.TrimSpace(token), true
		}
	}

	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token), true
		}
	}

	return "", false
}

// WebSocket authenticates the caller, upgrades the connection, and runs the
// session until the connection closes. An unauthenticated caller is
// rejected before the upgrade and never reaches the registry.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	if room == "" {
		http.Error(w, "Room name is required.", http.StatusBadRequest)
		return
	}

	session := NewSession(h.registry, h.auth, room)

	token, ok := bearerToken(r)
	if !ok {
		http.Error(w, "Not authenticated.", http.StatusUnauthorized)
		return
	}
	if err := session.Authenticate(token); err != nil {
		http.Error(w, "Could not validate credentials.", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	session.Run(NewClient(conn, r.RemoteAddr))
}

// Login exchanges form credentials for a bearer token. The token is set as
// an httpOnly cookie and echoed in the JSON body for non-browser clients.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data.", http.StatusBadRequest)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	token, err := h.login.Login(username, password)
	if err != nil {
		http.Error(w, "Incorrect username or password.", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "Bearer " + token,
		Path:     "/",
		HttpOnly: true,
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	}); err != nil {
		log.Printf("Error writing login response: %v", err)
	}
}

// Rooms lists the current rooms and their members as JSON.
func (h *Handlers) Rooms(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.registry.Rooms()); err != nil {
		log.Printf("Error writing rooms response: %v", err)
	}
}

// Health provides a simple health check endpoint that returns server status.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Roomchat server is running!")
}
