package server_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/server"
)

// receiveText reads the next queued payload from a client's send channel,
// failing the test if nothing arrives in time.
func receiveText(t *testing.T, c *server.Client) string {
	t.Helper()
	select {
	case payload := <-c.GetSendChan():
		return string(payload)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected a delivered message, got none")
		return ""
	}
}

// expectNoText asserts that no payload is queued for the client.
func expectNoText(t *testing.T, c *server.Client) {
	t.Helper()
	select {
	case payload := <-c.GetSendChan():
		t.Fatalf("expected no message, got %q", string(payload))
	case <-time.After(50 * time.Millisecond):
	}
}

// TestRegistryUnicast verifies that unicast reaches exactly the registered
// connection and that a missing target is reported as ErrNotFound without
// touching the registry.
func TestRegistryUnicast(t *testing.T) {
	req := require.New(t)
	registry := server.NewRegistry()

	alice := server.NewClient(nil, "alice-addr")
	registry.Join("lobby", "alice", alice)

	req.NoError(registry.Unicast("lobby", "alice", "hello"))
	req.Equal("hello", receiveText(t, alice))

	err := registry.Unicast("lobby", "nobody", "hello")
	req.ErrorIs(err, server.ErrNotFound)
	req.Equal([]server.Identity{"alice"}, registry.Members("lobby"))

	// Unknown room behaves the same as an unknown identity.
	req.ErrorIs(registry.Unicast("elsewhere", "alice", "hello"), server.ErrNotFound)
}

// TestRegistryBroadcastExcludesSender verifies the core fan-out contract:
// every member of the room receives the message except the excluded one.
func TestRegistryBroadcastExcludesSender(t *testing.T) {
	req := require.New(t)
	registry := server.NewRegistry()

	alice := server.NewClient(nil, "alice-addr")
	bob := server.NewClient(nil, "bob-addr")
	carol := server.NewClient(nil, "carol-addr")
	registry.Join("lobby", "alice", alice)
	registry.Join("lobby", "bob", bob)
	registry.Join("lobby", "carol", carol)

	failures := registry.Broadcast("lobby", "alice: hi", "alice")
	req.Empty(failures)

	req.Equal("alice: hi", receiveText(t, bob))
	req.Equal("alice: hi", receiveText(t, carol))
	expectNoText(t, alice)
}

// TestRegistryBroadcastAloneDeliversNothing verifies that a broadcast in a
// room whose only member is excluded reaches zero recipients and reports no
// failures.
func TestRegistryBroadcastAloneDeliversNothing(t *testing.T) {
	req := require.New(t)
	registry := server.NewRegistry()

	alice := server.NewClient(nil, "alice-addr")
	registry.Join("lobby", "alice", alice)

	failures := registry.Broadcast("lobby", "notice", "alice")
	req.Empty(failures)
	expectNoText(t, alice)
}

// TestRegistryBroadcastIsRoomScoped verifies that members of other rooms
// never see a broadcast.
func TestRegistryBroadcastIsRoomScoped(t *testing.T) {
	req := require.New(t)
	registry := server.NewRegistry()

	alice := server.NewClient(nil, "alice-addr")
	bob := server.NewClient(nil, "bob-addr")
	registry.Join("lobby", "alice", alice)
	registry.Join("kitchen", "bob", bob)

	failures := registry.Broadcast("lobby", "hi", "")
	req.Empty(failures)

	req.Equal("hi", receiveText(t, alice))
	expectNoText(t, bob)
}

// TestRegistryLeaveIsIdempotent verifies that leaving twice is safe: the
// second call is a no-op, not an error.
func TestRegistryLeaveIsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := server.NewRegistry()

	alice := server.NewClient(nil, "alice-addr")
	registry.Join("lobby", "alice", alice)

	registry.Leave("lobby", "alice")
	req.Empty(registry.Members("lobby"))

	registry.Leave("lobby", "alice")
	req.Empty(registry.Members("lobby"))

	// A left member no longer receives broadcasts.
	failures := registry.Broadcast("lobby", "after leave", "")
	req.Empty(failures)
	expectNoText(t, alice)
}

// TestRegistryJoinReplacesEarlierConnection verifies last-writer-wins
// semantics for a second join under the same (room, identity) pair: the
// displaced connection is handed back to the caller and the replacement
// receives subsequent traffic.
func TestRegistryJoinReplacesEarlierConnection(t *testing.T) {
	req := require.New(t)
	registry := server.NewRegistry()

	first := server.NewClient(nil, "first-addr")
	second := server.NewClient(nil, "second-addr")

	req.Nil(registry.Join("lobby", "alice", first))
	req.Same(first, registry.Join("lobby", "alice", second))

	req.Equal([]server.Identity{"alice"}, registry.Members("lobby"))

	req.NoError(registry.Unicast("lobby", "alice", "hello"))
	req.Equal("hello", receiveText(t, second))
	expectNoText(t, first)
}

// TestRegistryBroadcastReportsFailedMembersOnly verifies per-recipient
// failure isolation: a closed member is reported as a delivery failure
// while the remaining members still receive the message.
func TestRegistryBroadcastReportsFailedMembersOnly(t *testing.T) {
	req := require.New(t)
	registry := server.NewRegistry()

	// Simulate bob's send path having died: register him in a scratch
	// registry and shut it down, which closes his connection while the
	// real registry still references him.
	bob := server.NewClient(nil, "bob-addr")
	scratch := server.NewRegistry()
	scratch.Join("lobby", "bob", bob)
	scratch.Shutdown()

	alice := server.NewClient(nil, "alice-addr")
	registry.Join("lobby", "alice", alice)
	registry.Join("lobby", "bob", bob)

	failures := registry.Broadcast("lobby", "hi", "")
	req.Len(failures, 1)
	req.Equal(server.Identity("bob"), failures[0].Identity)
	req.Equal("lobby", failures[0].Room)

	req.Equal("hi", receiveText(t, alice))
}

// TestRegistryRoomsListing verifies the room listing accessor used by the
// HTTP surface.
func TestRegistryRoomsListing(t *testing.T) {
	req := require.New(t)
	registry := server.NewRegistry()

	registry.Join("lobby", "alice", server.NewClient(nil, "a"))
	registry.Join("lobby", "bob", server.NewClient(nil, "b"))
	registry.Join("kitchen", "carol", server.NewClient(nil, "c"))

	listing := registry.Rooms()
	req.Len(listing, 2)
	req.Equal([]server.Identity{"alice", "bob"}, listing["lobby"])
	req.Equal([]server.Identity{"carol"}, listing["kitchen"])

	// Emptied rooms are pruned from the listing.
	registry.Leave("kitchen", "carol")
	req.NotContains(registry.Rooms(), "kitchen")
}
