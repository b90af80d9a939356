package client_test

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/client"
)

// fakeFrame is one scripted inbound frame for the fake transport.
type fakeFrame struct {
	messageType int
	data        string
}

// fakeConn is a scriptable transport: the test pushes inbound frames and
// observes outbound writes. Close unblocks any pending read with
// net.ErrClosed, the way a closed socket does.
type fakeConn struct {
	mu     sync.Mutex
	writes []string

	inbound   chan fakeFrame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan fakeFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-f.inbound:
		return frame.messageType, []byte(frame.data), nil
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, string(data))
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeConn) writtenFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// fastConfig keeps generated delays negligible so tests run quickly.
func fastConfig(count int) client.Config {
	return client.Config{
		MessageCount: count,
		MinDelay:     0,
		MaxDelay:     time.Millisecond,
		QueueDepth:   16,
	}
}

// TestPumpSendsAllGeneratedMessages verifies that the producer sends
// exactly one text frame per generated message, terminates cleanly after
// the end-of-stream marker, and that the whole pump ends without error
// once the transport closes.
func TestPumpSendsAllGeneratedMessages(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	pump := client.NewPump(conn, fastConfig(5))

	result := make(chan error, 1)
	go func() { result <- pump.Run(context.Background()) }()

	req.Eventually(func() bool { return conn.writeCount() == 5 },
		2*time.Second, 5*time.Millisecond, "producer should send all generated frames")

	// No further frames arrive once the generator's quota is spent.
	time.Sleep(20 * time.Millisecond)
	req.Equal(5, conn.writeCount())

	// Closing the transport lets the consumer finish and ends the run.
	req.NoError(conn.Close())
	select {
	case err := <-result:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not finish after transport close")
	}

	for _, frame := range conn.writtenFrames() {
		req.True(strings.HasPrefix(frame, "Rand: "), "unexpected frame payload %q", frame)
	}
}

// TestPumpDeliversInboundText verifies that text frames flow from the
// transport into the inbound queue in order.
func TestPumpDeliversInboundText(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	pump := client.NewPump(conn, fastConfig(0))

	conn.inbound <- fakeFrame{websocket.TextMessage, "alice: hi"}
	conn.inbound <- fakeFrame{websocket.TextMessage, "User bob joined room: lobby"}

	result := make(chan error, 1)
	go func() { result <- pump.Run(context.Background()) }()

	req.Equal("alice: hi", <-pump.Inbound())
	req.Equal("User bob joined room: lobby", <-pump.Inbound())

	req.NoError(conn.Close())
	req.NoError(<-result)
}

// TestPumpCancellationTearsDownAllTasks verifies the all-or-nothing
// contract: cancelling the scope cuts the generator mid-wait, unblocks the
// consumer's pending read, and closes the transport.
func TestPumpCancellationTearsDownAllTasks(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	pump := client.NewPump(conn, client.Config{
		MessageCount: 100,
		MinDelay:     time.Hour,
		MaxDelay:     time.Hour,
		QueueDepth:   16,
	})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- pump.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after cancellation")
	}
	req.True(conn.isClosed(), "transport must not leak on cancellation")
	req.Zero(conn.writeCount(), "generator was cut before producing anything")
}

// TestPumpTransportCloseCutsGeneratorShort verifies that closing the
// transport tears down the whole trio even while the generator is still
// waiting out its first delay: the consumer's clean close cancels the
// scope, the generator is cut mid-wait, and the run ends without error.
func TestPumpTransportCloseCutsGeneratorShort(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	pump := client.NewPump(conn, client.Config{
		MessageCount: 100,
		MinDelay:     time.Hour,
		MaxDelay:     time.Hour,
		QueueDepth:   16,
	})

	result := make(chan error, 1)
	go func() { result <- pump.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	req.NoError(conn.Close())

	select {
	case err := <-result:
		req.NoError(err, "a remote close is a normal end of stream")
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after transport close")
	}
	req.Zero(conn.writeCount(), "generator was cut before producing anything")
}

// TestPumpFailsOnUnexpectedFrameType verifies that a non-text frame is a
// protocol error: the consumer closes the transport and the failure
// surfaces as the pump's single reported error.
func TestPumpFailsOnUnexpectedFrameType(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	pump := client.NewPump(conn, fastConfig(0))

	conn.inbound <- fakeFrame{websocket.BinaryMessage, "\x00\x01"}

	err := pump.Run(context.Background())
	req.Error(err)
	req.Contains(err.Error(), "unexpected frame type")
	req.True(conn.isClosed(), "transport must be closed after a protocol error")
}
