package redis

import (
	"testing"
	"time"

	"github.com/netpulse-io/socketio/pkg/types"
	"github.com/netpulse-io/socketio/servers/socket"
)

func TestEncodeDecodeOptionsRoundTrip(t *testing.T) {
	timeout := 3 * time.Second
	opts := &socket.BroadcastOptions{
		Rooms:  types.NewSet[socket.Room]("a", "b"),
		Except: types.NewSet[socket.Room]("c"),
		Flags: &socket.BroadcastFlags{
			Volatile: true,
			Timeout:  &timeout,
		},
	}

	back := decodeOptions(encodeOptions(opts))

	if back.Rooms.Len() != 2 || !back.Rooms.Has("a") || !back.Rooms.Has("b") {
		t.Fatalf("expected rooms to round trip, got %v", back.Rooms.Keys())
	}
	if back.Except.Len() != 1 || !back.Except.Has("c") {
		t.Fatalf("expected except to round trip, got %v", back.Except.Keys())
	}
	if !back.Flags.Volatile {
		t.Fatal("expected Volatile flag to round trip")
	}
	if back.Flags.Timeout == nil || *back.Flags.Timeout != timeout {
		t.Fatalf("expected timeout to round trip, got %v", back.Flags.Timeout)
	}
}

func TestEncodeOptionsNilIsZeroValue(t *testing.T) {
	w := encodeOptions(nil)
	if len(w.Rooms) != 0 || len(w.Except) != 0 {
		t.Fatal("expected nil options to encode to empty rooms/except")
	}
}

func TestDefaultOptionsTTLIsTripleHeartbeat(t *testing.T) {
	o := DefaultOptions()
	if o.ttl() != 3*o.HeartbeatInterval {
		t.Fatalf("expected ttl = 3x heartbeat, got %v for interval %v", o.ttl(), o.HeartbeatInterval)
	}
}

func TestOptionsWithDefaultsFillsZeroValues(t *testing.T) {
	o := (&Options{}).withDefaults()
	if o.KeyPrefix != defaultKeyPrefix || o.HeartbeatInterval != defaultHeartbeatInterval || o.RequestsTimeout != defaultRequestsTimeout {
		t.Fatalf("expected zero-value Options to fill in defaults, got %+v", o)
	}
}
