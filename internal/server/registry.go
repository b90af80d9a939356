// Package server coordinates room membership, message fan-out, and
// connection cleanup for the chat system via the Registry type.
package server

import (
	"log"
	"sort"
	"sync"
)

// Registry owns the set of active connections grouped by room. It performs
// join/leave mutation and is the sole place broadcast fan-out originates
// from. All membership mutation and every snapshot read happen under the
// mutex; sends happen outside it, against a point-in-time snapshot, so a
// concurrent join or leave can never corrupt an in-flight broadcast.
//
// The registry holds non-owning references: it may send through a
// connection and drop its reference, but closing the connection is always
// the owning session's responsibility.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Identity]*Client
}

// NewRegistry creates an empty Registry. It is constructed once in main and
// passed to every session handler; there is no ambient instance.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[Identity]*Client),
	}
}

// Join registers conn under (room, identity), overwriting any prior entry
// for that pair. The displaced connection, if any, is returned so the
// caller can close it. Join never blocks on network I/O.
func (r *Registry) Join(room string, identity Identity, conn *Client) (displaced *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[Identity]*Client)
		r.rooms[room] = members
	}

	displaced = members[identity]
	members[identity] = conn

	log.Printf("Identity %s joined room %q. Room members: %d", identity, room, len(members))
	return displaced
}

// Leave removes the entry for (room, identity) if present. It is a no-op,
// not an error, if the entry is absent: disconnects can race with duplicate
// cleanup attempts and must be safe. Empty rooms are pruned.
func (r *Registry) Leave(room string, identity Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(room, identity)
}

// leaveOwned removes the entry for (room, identity) only if it still refers
// to conn, and reports whether it did. A session displaced by a later join
// for the same pair must not remove its replacement on the way out.
func (r *Registry) leaveOwned(room string, identity Identity, conn *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok || members[identity] != conn {
		return false
	}
	r.removeLocked(room, identity)
	return true
}

func (r *Registry) removeLocked(room string, identity Identity) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	if _, ok := members[identity]; !ok {
		return
	}

	delete(members, identity)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	log.Printf("Identity %s left room %q. Room members: %d", identity, room, len(members))
}

// evict removes the entry for (room, identity) only if it still refers to
// conn, and reports whether it did. Used when a delivery failure marks a
// member as dead: the failure belongs to the connection the send was
// attempted on, so a replacement that joined in the meantime is left alone.
func (r *Registry) evict(room string, identity Identity, conn *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok || members[identity] != conn {
		return false
	}
	r.removeLocked(room, identity)
	return true
}

// Unicast sends text to exactly the connection registered at
// (room, identity). It fails with ErrNotFound if no such entry exists; the
// failure is reported to the caller and leaves the registry untouched.
func (r *Registry) Unicast(room string, identity Identity, text string) error {
	r.mu.RLock()
	conn := r.rooms[room][identity]
	r.mu.RUnlock()

	if conn == nil {
		return ErrNotFound
	}
	if err := conn.deliver(text); err != nil {
		return &DeliveryError{Room: room, Identity: identity, Err: err, conn: conn}
	}
	return nil
}

// member pairs an identity with its connection in a broadcast snapshot.
type member struct {
	identity Identity
	conn     *Client
}

// Broadcast sends text to every connection currently registered in room
// except the one at exclude, if given. Membership is snapshotted under the
// lock before any send, so a join or leave that happens mid-broadcast
// cannot affect which members receive this one. A member that fails to
// receive is reported in the returned slice; the failure never aborts
// delivery to the remaining members.
func (r *Registry) Broadcast(room string, text string, exclude Identity) []DeliveryError {
	r.mu.RLock()
	targets := make([]member, 0, len(r.rooms[room]))
	for identity, conn := range r.rooms[room] {
		if identity == exclude {
			continue
		}
		targets = append(targets, member{identity: identity, conn: conn})
	}
	r.mu.RUnlock()

	var failures []DeliveryError
	for _, t := range targets {
		if err := t.conn.deliver(text); err != nil {
			failures = append(failures, DeliveryError{Room: room, Identity: t.identity, Err: err, conn: t.conn})
		}
	}
	return failures
}

// Members returns the identities currently registered in room, sorted.
func (r *Registry) Members(room string) []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Identity, 0, len(r.rooms[room]))
	for identity := range r.rooms[room] {
		members = append(members, identity)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// Rooms returns the current room-to-members listing, sorted for stable
// output.
func (r *Registry) Rooms() map[string][]Identity {
	r.mu.RLock()
	names := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		names = append(names, room)
	}
	r.mu.RUnlock()

	listing := make(map[string][]Identity, len(names))
	for _, room := range names {
		listing[room] = r.Members(room)
	}
	return listing
}

// Shutdown closes every registered connection and clears the registry.
// Sessions unwind through their normal close path once their transport
// drops.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	var conns []*Client
	for _, members := range r.rooms {
		for _, conn := range members {
			conns = append(conns, conn)
		}
	}
	r.rooms = make(map[string]map[Identity]*Client)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.shutdown()
	}
	log.Printf("Closed %d client connections", len(conns))
}
