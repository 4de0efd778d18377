package socket

import (
	"testing"
	"time"
)

func TestBroadcastOperatorToIsImmutableAcrossChaining(t *testing.T) {
	ns := newTestNamespace()
	base := ns.To("lobby")
	withSecond := base.To("game")

	if base.rooms.Has("game") {
		t.Fatal("To() must return a new operator, not mutate the receiver")
	}
	if !withSecond.rooms.Has("lobby") || !withSecond.rooms.Has("game") {
		t.Fatal("expected chained To() to accumulate rooms")
	}
}

func TestBroadcastOperatorFlagsAreImmutable(t *testing.T) {
	base := newTestNamespace().broadcastOperator()
	volatile := base.Volatile()
	timed := volatile.Timeout(2 * time.Second)

	if base.flags.Volatile {
		t.Fatal("Volatile() must not mutate the receiver's flags")
	}
	if !volatile.flags.Volatile {
		t.Fatal("expected Volatile() to set the flag on the returned operator")
	}
	if volatile.flags.Timeout != nil {
		t.Fatal("Timeout() must not mutate the operator it was called on")
	}
	if timed.flags.Timeout == nil || *timed.flags.Timeout != 2*time.Second {
		t.Fatal("expected Timeout() to set the duration on the returned operator")
	}
	if !timed.flags.Volatile {
		t.Fatal("expected flags to compose: Volatile then Timeout keeps both")
	}
}

func TestBroadcastOperatorEmitRejectsReservedEventName(t *testing.T) {
	op := newTestNamespace().broadcastOperator()
	if err := op.Emit("disconnect", 1); err == nil {
		t.Fatal("expected reserved event name to be rejected")
	}
}

func TestSocketToExcludesSelf(t *testing.T) {
	ns := newTestNamespace()
	sock := registerBareSocket(ns, "s1")
	op := sock.To("lobby")
	if !op.except.Has(Room("s1")) {
		t.Fatal("expected Socket.To to except the socket's own identity room by default")
	}
}

func TestSocketBroadcastTargetsWholeNamespaceExceptSelf(t *testing.T) {
	ns := newTestNamespace()
	sock := registerBareSocket(ns, "s1")
	op := sock.Broadcast()
	if op.rooms.Len() != 0 {
		t.Fatalf("expected Socket.Broadcast to target no specific room, got %v", op.rooms)
	}
	if !op.except.Has(Room("s1")) {
		t.Fatal("expected Socket.Broadcast to except the socket's own identity room")
	}
}
