// Package server runs the per-connection control loop that authenticates a
// caller, registers it with the room registry, relays its messages, and
// unregisters it on termination.
package server

import (
	"errors"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Authenticator resolves a bearer credential to an identity. The server
// treats this as an opaque collaborator call; credential format and expiry
// are its concern alone.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// sessionState tracks where a session is in its lifecycle. Failed is
// terminal and reachable from every non-terminal state.
type sessionState int

const (
	stateConnecting sessionState = iota
	stateAuthenticating
	stateJoined
	stateActive
	stateClosed
	stateFailed
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAuthenticating:
		return "authenticating"
	case stateJoined:
		return "joined"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the per-connection control loop. It owns its Client
// exclusively: the registry only ever holds a non-owning reference.
type Session struct {
	id       string
	room     string
	identity Identity
	client   *Client
	registry *Registry
	auth     Authenticator
	state    sessionState
}

// NewSession creates a session for a connection attempt to room. The
// session starts in the connecting state, before any identity is known.
func NewSession(registry *Registry, auth Authenticator, room string) *Session {
	return &Session{
		id:       uuid.NewString(),
		room:     room,
		registry: registry,
		auth:     auth,
		state:    stateConnecting,
	}
}

// Authenticate asks the auth collaborator to resolve token to an identity
// and binds it to the session. On failure the session enters the failed
// state and must be rejected before it ever reaches the registry.
func (s *Session) Authenticate(token string) error {
	s.state = stateAuthenticating

	identity, err := s.auth.Authenticate(token)
	if err != nil {
		s.state = stateFailed
		log.Printf("Session %s authentication failed for room %q: %v", s.id, s.room, err)
		return err
	}

	s.identity = Identity(identity)
	return nil
}

// Run drives the session from joined through active to termination. It
// blocks until the connection closes and always unregisters on the way
// out. The caller must have authenticated the session first.
func (s *Session) Run(client *Client) {
	s.client = client
	defer s.teardown()

	s.state = stateJoined
	if displaced := s.registry.Join(s.room, s.identity, s.client); displaced != nil {
		log.Printf("Session %s displaced an earlier connection for %s in room %q", s.id, s.identity, s.room)
		displaced.shutdown()
	}

	go s.client.writePump()

	// Welcome the new member first, then tell the rest of the room, in
	// that order. A failed notice never undoes the join.
	if err := s.registry.Unicast(s.room, s.identity, welcomeNotice(s.identity, s.room)); err != nil {
		log.Printf("Session %s welcome unicast failed: %v", s.id, err)
	}
	s.fanOut(joinedNotice(s.identity, s.room))

	s.state = stateActive
	s.readLoop()
}

// readLoop blocks waiting for inbound text frames and relays each one to
// the rest of the room. It returns once the transport reports closure or
// an unrecoverable error, leaving the session in the closed or failed
// state.
func (s *Session) readLoop() {
	s.client.setupRead()

	for {
		_, raw, err := s.client.conn.ReadMessage()
		if err != nil {
			s.state = s.classifyReadError(err)
			return
		}

		if !s.client.allowMessage() {
			continue
		}

		msg := Message{Sender: s.identity, Room: s.room, Text: string(raw)}
		s.fanOut(msg.Wire())
	}
}

// classifyReadError decides whether a read error is a normal disconnect
// (closed) or a protocol violation / unexpected transport error (failed).
// Either way the session terminates without propagating the error beyond
// logging.
func (s *Session) classifyReadError(err error) sessionState {
	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Session %s: message from %s exceeded maximum size of %d bytes",
			s.id, s.client.addr, s.client.maxMessageSize)
		return stateFailed
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Session %s: %s disconnected: %v", s.id, s.identity, err)
		return stateClosed
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Session %s: connection for %s closed: %v", s.id, s.identity, err)
		return stateClosed
	}

	log.Printf("Session %s: unexpected WebSocket error from %s: %v", s.id, s.client.addr, err)
	return stateFailed
}

// fanOut broadcasts text to the rest of the room. Members that fail to
// receive are evicted; their own sessions unwind once their transport
// drops. Eviction is scoped to the connection that failed: if the identity
// rejoined with a fresh connection mid-broadcast, the replacement stays
// registered and only the stale connection is closed. A third party's
// failure never affects this session.
func (s *Session) fanOut(text string) {
	failures := s.registry.Broadcast(s.room, text, s.identity)
	for i := range failures {
		f := &failures[i]
		log.Printf("Session %s: %v; removing member", s.id, f)
		s.registry.evict(f.Room, f.Identity, f.conn)
		f.conn.shutdown()
	}
}

// teardown unregisters the session and notifies the remaining members,
// exactly once, then closes the transport. A session that was displaced by
// a newer connection for the same (room, identity) pair removes nothing
// and stays silent: the identity is still present.
func (s *Session) teardown() {
	if s.state != stateClosed && s.state != stateFailed {
		s.state = stateClosed
	}

	if s.registry.leaveOwned(s.room, s.identity, s.client) {
		s.fanOut(leftNotice(s.identity, s.room))
	}
	s.client.shutdown()
	log.Printf("Session %s for %s in room %q terminated (%s)", s.id, s.identity, s.room, s.state)
}
