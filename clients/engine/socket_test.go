package engine

import (
	"context"
	"testing"
	"time"
)

// TestOpenRotatesTransportIndexOnFailure exercises spec.md §4.F "Transport
// selection": a failed Open advances transportIndex modulo the transports
// list so the next attempt tries a different transport. Both configured
// transports here are unreachable localhost ports, so every Open fails and
// only the rotation bookkeeping is under test.
func TestOpenRotatesTransportIndexOnFailure(t *testing.T) {
	opts := &Options{
		Transports:       []string{"websocket", "polling"},
		HandshakeTimeout: 50 * time.Millisecond,
	}
	s := NewSocket("http://127.0.0.1:1/socket.io/", opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.Open(ctx); err == nil {
		t.Fatal("expected Open against an unreachable host to fail")
	}
	if s.transportIndex != 1 {
		t.Fatalf("expected transportIndex to advance to 1, got %d", s.transportIndex)
	}

	if err := s.Open(ctx); err == nil {
		t.Fatal("expected second Open to fail")
	}
	if s.transportIndex != 0 {
		t.Fatalf("expected transportIndex to wrap to 0, got %d", s.transportIndex)
	}
}

func TestResetTransportIndexRestartsRotation(t *testing.T) {
	s := NewSocket("http://127.0.0.1:1/socket.io/", DefaultOptions())
	s.transportIndex = 1
	s.ResetTransportIndex()
	if s.transportIndex != 0 {
		t.Fatalf("expected transportIndex reset to 0, got %d", s.transportIndex)
	}
}
