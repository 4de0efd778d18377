package parser

import (
	"testing"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
)

func TestEncodeDecodePayloadRoundTrip(t *testing.T) {
	packets := []packet.Packet{
		packet.New(packet.OPEN, `{"sid":"x"}`),
		packet.New(packet.MESSAGE, "hi"),
		packet.New(packet.PING, ""),
	}
	encoded, err := EncodePayload(packets)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}
	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}
	if len(decoded) != len(packets) {
		t.Fatalf("expected %d packets, got %d", len(packets), len(decoded))
	}
	for i := range packets {
		if decoded[i].Type != packets[i].Type || decoded[i].Data != packets[i].Data {
			t.Fatalf("packet %d mismatch: want %+v, got %+v", i, packets[i], decoded[i])
		}
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	encoded, err := EncodePayload(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if encoded != "0:" {
		t.Fatalf(`expected "0:", got %q`, encoded)
	}
	decoded, err := DecodePayload(encoded)
	if err != nil || decoded != nil {
		t.Fatalf("expected empty decode, got %v %v", decoded, err)
	}
}

func TestDecodePayloadNonNumericLength(t *testing.T) {
	if _, err := DecodePayload("x:40"); err != ErrInvalidFraming {
		t.Fatalf("expected ErrInvalidFraming for non-numeric length, got %v", err)
	}
}

func TestDecodePayloadLengthExceedsBuffer(t *testing.T) {
	if _, err := DecodePayload("100:short"); err != ErrInvalidFraming {
		t.Fatalf("expected ErrInvalidFraming, got %v", err)
	}
}
