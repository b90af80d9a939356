// Package client implements the duplex message pump that drives one chat
// connection: a consumer draining inbound frames into a queue, a producer
// draining an outbound queue onto the wire, and a generator synthesizing
// outbound messages on a timer. The three tasks run under a single
// cancellation scope and tear down together.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Conn is the bidirectional text-frame transport the pump drives. It is
// satisfied by *websocket.Conn; tests substitute their own.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// frameKind tags the variants carried on the outbound queue. The end of
// stream marker is a distinct kind, never a sentinel payload value, so it
// can never collide with a real message.
type frameKind int

const (
	frameText frameKind = iota
	frameEndOfStream
)

type frame struct {
	kind frameKind
	text string
}

// errTransportClosed flows through the cancellation scope when the
// transport closes cleanly, so the producer and generator are cut down
// together with the consumer. Run translates it back into a clean result.
var errTransportClosed = errors.New("transport closed")

// Config tunes the pump. The zero value is usable: DefaultConfig fills in
// the reference behavior of ten messages with delays of a few seconds.
type Config struct {
	// MessageCount is how many synthetic messages the generator emits
	// before signalling end of stream.
	MessageCount int

	// MinDelay and MaxDelay bound the randomized pause preceding each
	// generated message.
	MinDelay time.Duration
	MaxDelay time.Duration

	// QueueDepth is the capacity of the inbound and outbound queues.
	QueueDepth int
}

// DefaultConfig returns the reference pump behavior.
func DefaultConfig() Config {
	return Config{
		MessageCount: 10,
		MinDelay:     5 * time.Second,
		MaxDelay:     10 * time.Second,
		QueueDepth:   256,
	}
}

func (c Config) sanitized() Config {
	if c.MessageCount < 0 {
		c.MessageCount = 0
	}
	if c.MinDelay < 0 {
		c.MinDelay = 0
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 256
	}
	return c
}

// Pump owns one connection and the queues coordinating its three tasks.
type Pump struct {
	conn Conn
	cfg  Config

	inbound  chan string
	outbound chan frame

	closeOnce sync.Once
}

// NewPump creates a pump around an already-connected transport.
func NewPump(conn Conn, cfg Config) *Pump {
	cfg = cfg.sanitized()
	return &Pump{
		conn:     conn,
		cfg:      cfg,
		inbound:  make(chan string, cfg.QueueDepth),
		outbound: make(chan frame, cfg.QueueDepth),
	}
}

// Inbound is the queue of received text messages, filled by the consumer
// and drained by the application.
func (p *Pump) Inbound() <-chan string {
	return p.inbound
}

// Run starts the consumer, producer, and generator as siblings under one
// cancellation scope and blocks until all three have finished. If any task
// fails, the others are cancelled immediately and Run reports that first
// failure; partial survival of the trio is not a valid end state. The
// transport is closed before Run returns.
func (p *Pump) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// The consumer suspends in a blocking read that only a transport
	// close can interrupt, so cancellation closes the transport.
	watchdogDone := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			p.closeConn()
		case <-watchdogDone:
		}
	}()

	g.Go(func() error { return p.consumer(gctx) })
	g.Go(func() error { return p.producer(gctx) })
	g.Go(func() error { return p.generator(gctx) })

	err := g.Wait()
	close(watchdogDone)
	p.closeConn()
	if errors.Is(err, errTransportClosed) {
		return nil
	}
	return err
}

func (p *Pump) closeConn() {
	p.closeOnce.Do(func() {
		if err := p.conn.Close(); err != nil {
			log.Printf("Error closing connection: %v", err)
		}
	})
}

// consumer suspends waiting for the next inbound frame and pushes text
// frames onto the inbound queue. A clean transport close terminates it
// without error; a protocol error or unexpected frame type closes the
// transport and fails the pump.
func (p *Pump) consumer(ctx context.Context) error {
	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isCleanClose(err) {
				log.Println("Consumer: transport closed")
				return errTransportClosed
			}
			p.closeConn()
			return fmt.Errorf("consumer: %w", err)
		}

		switch messageType {
		case websocket.TextMessage:
			select {
			case p.inbound <- string(data):
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			p.closeConn()
			return fmt.Errorf("consumer: unexpected frame type %d", messageType)
		}
	}
}

// producer suspends waiting for the next outbound item and sends it as a
// text frame. The end-of-stream marker is a clean shutdown signal, not an
// error.
func (p *Pump) producer(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-p.outbound:
			if f.kind == frameEndOfStream {
				log.Println("Producer: end of stream, closing loop")
				return nil
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, []byte(f.text)); err != nil {
				return fmt.Errorf("producer: %w", err)
			}
		}
	}
}

// generator synthesizes MessageCount messages, each preceded by a
// randomized delay, then pushes the end-of-stream marker.
func (p *Pump) generator(ctx context.Context) error {
	for i := 0; i < p.cfg.MessageCount; i++ {
		delay := p.randomDelay()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		msg := frame{kind: frameText, text: fmt.Sprintf("Rand: %d", delay.Milliseconds())}
		select {
		case p.outbound <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case p.outbound <- frame{kind: frameEndOfStream}:
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Println("Generator: finished")
	return nil
}

func (p *Pump) randomDelay() time.Duration {
	if p.cfg.MaxDelay == p.cfg.MinDelay {
		return p.cfg.MinDelay
	}
	return p.cfg.MinDelay + rand.N(p.cfg.MaxDelay-p.cfg.MinDelay)
}

// isCleanClose reports whether a read error represents the transport being
// closed normally rather than a protocol failure.
func isCleanClose(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
