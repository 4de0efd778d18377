package engine

import (
	"context"
	"testing"
	"time"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
)

func TestPollingTransportSendThenDrain(t *testing.T) {
	pt := newPollingTransport()
	if err := pt.Send(context.Background(), packet.New(packet.MESSAGE, "hi")); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	packets, err := pt.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if len(packets) != 1 || packets[0].Data != "hi" {
		t.Fatalf("expected one buffered packet, got %+v", packets)
	}
}

func TestPollingTransportDrainParksUntilSend(t *testing.T) {
	pt := newPollingTransport()
	done := make(chan []packet.Packet, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		packets, _ := pt.Drain(ctx)
		done <- packets
	}()

	time.Sleep(50 * time.Millisecond)
	if err := pt.Send(context.Background(), packet.New(packet.MESSAGE, "late")); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	select {
	case packets := <-done:
		if len(packets) != 1 || packets[0].Data != "late" {
			t.Fatalf("expected parked drain to wake with the sent packet, got %+v", packets)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for parked Drain to wake")
	}
}

func TestPollingTransportAcceptFeedsReceive(t *testing.T) {
	pt := newPollingTransport()
	if err := pt.Accept("3:4hi"); err != nil {
		t.Fatalf("Accept error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := pt.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if p.Type != packet.MESSAGE || p.Data != "hi" {
		t.Fatalf("expected MESSAGE 'hi', got %+v", p)
	}
}

func TestPollingTransportCloseFlushesClosePacketToDrain(t *testing.T) {
	pt := newPollingTransport()
	type result struct {
		packets []packet.Packet
		err     error
	}
	done := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		packets, err := pt.Drain(ctx)
		done <- result{packets, err}
	}()

	time.Sleep(50 * time.Millisecond)
	if err := pt.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("expected a flushed CLOSE packet, not an error, got %v", r.err)
		}
		if len(r.packets) != 1 || r.packets[0].Type != packet.CLOSE {
			t.Fatalf("expected a single CLOSE packet, got %+v", r.packets)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Close to unblock Drain")
	}

	// A second Drain after the CLOSE packet has been consumed reports the
	// transport closed.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := pt.Drain(ctx); err != ErrTransportClosed {
		t.Fatalf("expected ErrTransportClosed once the close packet is drained, got %v", err)
	}
}
