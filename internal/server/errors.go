// Package server declares the error values reported by registry operations.
package server

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Unicast when no connection is registered for
// the requested (room, identity) pair. It is reported to the caller and has
// no side effect on the registry.
var ErrNotFound = errors.New("no connection registered for identity in room")

// errClientClosed is returned by deliver when the target connection has
// already been shut down.
var errClientClosed = errors.New("client connection closed")

// errSendBufferFull is returned by deliver when the target connection's
// outgoing buffer is full. The slow member is evicted by the caller.
var errSendBufferFull = errors.New("client send buffer full")

// DeliveryError records one room member that failed to receive a broadcast.
// Failures are isolated per recipient: the broadcast continues to the
// remaining members and the caller decides how to clean up.
type DeliveryError struct {
	Room     string
	Identity Identity
	Err      error

	// conn is the connection the send failed on, so cleanup targets that
	// connection and never a replacement the identity joined with since.
	conn *Client
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s in room %q failed: %v", e.Identity, e.Room, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
