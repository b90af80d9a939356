// Package server defines the shared identity, message, and notice payload
// types that are reused across session and registry logic.
package server

import (
	"fmt"
	"strings"
)

// Identity names an authenticated principal. It is bound to exactly one
// connection per room and never changes for the lifetime of that connection.
type Identity string

// Message is a single fan-out payload. It exists only for the duration of
// one broadcast or unicast operation; nothing persists it.
type Message struct {
	Sender Identity
	Room   string
	Text   string
}

// Wire renders the message the way it travels to other room members,
// prefixed with the sending identity.
func (m Message) Wire() string {
	return fmt.Sprintf("%s: %s", m.Sender, m.Text)
}

// welcomeNotice is unicast to a member immediately after it joins.
func welcomeNotice(identity Identity, room string) string {
	return fmt.Sprintf("You (%s) joined room: %s", identity, room)
}

// joinedNotice is broadcast to the rest of the room when a member joins.
func joinedNotice(identity Identity, room string) string {
	return fmt.Sprintf("User %s joined room: %s", identity, room)
}

// leftNotice is broadcast to the remaining members when a member leaves.
func leftNotice(identity Identity, room string) string {
	return fmt.Sprintf("User %s left room: %s", identity, room)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
