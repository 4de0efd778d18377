package socket

import (
	"testing"

	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
)

func TestEncodeCachedReusesEncodingForIdenticalPackets(t *testing.T) {
	ns := newTestNamespace()
	p := &socketparser.Packet{Type: socketparser.EVENT, Nsp: "/test", Data: []any{"chat", "hi"}}

	first, err := ns.encodeCached(p)
	if err != nil {
		t.Fatalf("encodeCached error: %v", err)
	}
	if ns.msgCache.Len() != 1 {
		t.Fatalf("expected one cache entry after first encode, got %d", ns.msgCache.Len())
	}

	second, err := ns.encodeCached(p)
	if err != nil {
		t.Fatalf("encodeCached error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical encodings, got %q and %q", first, second)
	}
	if ns.msgCache.Len() != 1 {
		t.Fatalf("expected the second lookup to hit the cache, not grow it, got %d entries", ns.msgCache.Len())
	}
}

func TestEncodeCachedDistinguishesByData(t *testing.T) {
	ns := newTestNamespace()
	a := &socketparser.Packet{Type: socketparser.EVENT, Nsp: "/test", Data: []any{"chat", "hi"}}
	b := &socketparser.Packet{Type: socketparser.EVENT, Nsp: "/test", Data: []any{"chat", "bye"}}

	encA, err := ns.encodeCached(a)
	if err != nil {
		t.Fatalf("encodeCached error: %v", err)
	}
	encB, err := ns.encodeCached(b)
	if err != nil {
		t.Fatalf("encodeCached error: %v", err)
	}
	if encA == encB {
		t.Fatal("expected distinct payloads to produce distinct cache entries")
	}
	if ns.msgCache.Len() != 2 {
		t.Fatalf("expected two cache entries, got %d", ns.msgCache.Len())
	}
}

func TestEncodeCachedSkipsAcksAndBinaryPackets(t *testing.T) {
	ns := newTestNamespace()
	id := uint64(1)
	ack := &socketparser.Packet{Type: socketparser.ACK, Nsp: "/test", Id: &id, Data: []any{"ok"}}

	if _, err := ns.encodeCached(ack); err != nil {
		t.Fatalf("encodeCached error: %v", err)
	}
	if ns.msgCache.Len() != 0 {
		t.Fatalf("expected ACK packets to bypass the message cache, got %d entries", ns.msgCache.Len())
	}
}
