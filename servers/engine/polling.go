package engine

import (
	"context"
	"sync"

	engineparser "github.com/netpulse-io/socketio/parsers/engine/parser"
	"github.com/netpulse-io/socketio/parsers/engine/packet"
)

// pollingTransport is the server-side HTTP long-polling leg of a session
// (spec.md §3 Transport "polling"). Outgoing packets queue in a FIFO
// buffer; a parked GET drains the buffer (or blocks until the next Send)
// and the response closes, per the Engine.IO polling protocol.
type pollingTransport struct {
	mu      sync.Mutex
	state   State
	outbox  []packet.Packet
	waiting chan struct{} // closed/replaced to wake a parked GET
	inbox   chan packet.Packet
	closeCh chan struct{}
}

func newPollingTransport() *pollingTransport {
	return &pollingTransport{
		state:   StateConnected,
		waiting: make(chan struct{}),
		inbox:   make(chan packet.Packet, 64),
		closeCh: make(chan struct{}),
	}
}

func (t *pollingTransport) Name() string { return "polling" }

func (t *pollingTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Send appends to the FIFO outbox and wakes any parked GET.
func (t *pollingTransport) Send(ctx context.Context, packets ...packet.Packet) error {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.outbox = append(t.outbox, packets...)
	wake := t.waiting
	t.waiting = make(chan struct{})
	t.mu.Unlock()
	close(wake)
	return nil
}

// Drain is called by the GET handler: it returns the buffered packets
// immediately if any exist, otherwise parks until Send wakes it, ctx is
// canceled (adaptive poll timeout, spec.md §4.B), or the transport closes.
func (t *pollingTransport) Drain(ctx context.Context) ([]packet.Packet, error) {
	for {
		t.mu.Lock()
		if len(t.outbox) > 0 {
			out := t.outbox
			t.outbox = nil
			t.mu.Unlock()
			return out, nil
		}
		if t.state == StateClosed {
			t.mu.Unlock()
			return nil, ErrTransportClosed
		}
		wait := t.waiting
		t.mu.Unlock()

		select {
		case <-wait:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.closeCh:
			// loop back: Close() queues a CLOSE packet before closing
			// closeCh, so the outbox check above picks it up first.
			continue
		}
	}
}

// Accept is called by the POST handler with the decoded payload body; each
// packet is pushed onto the receive queue for Receive to pick up.
func (t *pollingTransport) Accept(body string) error {
	packets, err := engineparser.DecodePayload(body)
	if err != nil {
		return ErrInvalidFraming
	}
	return t.AcceptPackets(packets)
}

// AcceptPackets pushes already-framed packets onto the receive queue,
// skipping the DecodePayload step for callers (the POST handler) that
// decoded the body themselves to unfilter MESSAGE payloads first.
func (t *pollingTransport) AcceptPackets(packets []packet.Packet) error {
	for _, p := range packets {
		select {
		case t.inbox <- p:
		case <-t.closeCh:
			return ErrTransportClosed
		}
	}
	return nil
}

func (t *pollingTransport) Receive(ctx context.Context) (packet.Packet, error) {
	select {
	case p := <-t.inbox:
		return p, nil
	case <-ctx.Done():
		return packet.Packet{}, ctx.Err()
	case <-t.closeCh:
		return packet.Packet{}, ErrTransportClosed
	}
}

// Close queues a single CLOSE packet for the next Drain to flush (spec.md
// §4.A/§5: a parked GET gets a CLOSE packet, not a bare empty response),
// then marks the transport closed.
func (t *pollingTransport) Close() error {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return nil
	}
	t.state = StateClosed
	t.outbox = append(t.outbox, packet.New(packet.CLOSE, ""))
	wait := t.waiting
	t.mu.Unlock()

	close(wait)
	close(t.closeCh)
	return nil
}
