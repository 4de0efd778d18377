package parser

import "testing"

func TestDecodeConnectDefaultNamespace(t *testing.T) {
	d := NewDecoder()
	p, err := d.Decode("40")
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if p.Type != CONNECT || p.Nsp != "/" {
		t.Fatalf("expected CONNECT on default nsp, got %+v", p)
	}
}

func TestDecodeNamedEvent(t *testing.T) {
	d := NewDecoder()
	p, err := d.Decode(`2["hi",1]`)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if p.Type != EVENT || p.Nsp != "/" {
		t.Fatalf("expected EVENT on default nsp, got %+v", p)
	}
	name, err := EventName(p.Data)
	if err != nil || name != "hi" {
		t.Fatalf("expected event name 'hi', got %q err=%v", name, err)
	}
	arg, err := EventArg(p.Data)
	if err != nil {
		t.Fatalf("EventArg error: %v", err)
	}
	if n, ok := arg.(float64); !ok || n != 1 {
		t.Fatalf("expected arg 1, got %v", arg)
	}
}

func TestDecodeAckPacketWithId(t *testing.T) {
	d := NewDecoder()
	// S4 (spec.md): client POSTs the framed EVENT packet "21[\"q\",0]" with ack id 1.
	p, err := d.Decode(`21["q",0]`)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if p.Type != EVENT {
		t.Fatalf("expected EVENT, got %v", p.Type)
	}
	if p.Id == nil || *p.Id != 1 {
		t.Fatalf("expected ack id 1, got %v", p.Id)
	}
}

func TestDecodeNamespacedPacket(t *testing.T) {
	d := NewDecoder()
	p, err := d.Decode("0/chat,")
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if p.Nsp != "/chat" {
		t.Fatalf("expected nsp /chat, got %q", p.Nsp)
	}
}

func TestDecodeMissingTrailingJSONIsTolerated(t *testing.T) {
	d := NewDecoder()
	p, err := d.Decode("2")
	if err != nil {
		t.Fatalf("expected no error for missing data, got %v", err)
	}
	if p.Data != nil {
		t.Fatalf("expected nil data, got %v", p.Data)
	}
}

func TestDecodeMalformedJSONIsTolerated(t *testing.T) {
	d := NewDecoder()
	p, err := d.Decode(`2{not json`)
	if err != nil {
		t.Fatalf("expected malformed JSON to be tolerated, got error %v", err)
	}
	if p.Data != nil {
		t.Fatalf("expected nil data for malformed JSON, got %v", p.Data)
	}
}

func TestDecodeInvalidTypeDigit(t *testing.T) {
	d := NewDecoder()
	if _, err := d.Decode("9[]"); err == nil {
		t.Fatalf("expected error for invalid type digit")
	}
}

func TestDecodeCacheReturnsIndependentCopies(t *testing.T) {
	d := NewDecoder()
	p1, _ := d.Decode(`2["hi",1]`)
	p2, _ := d.Decode(`2["hi",1]`)
	p1.Id = new(uint64)
	*p1.Id = 99
	if p2.Id != nil {
		t.Fatalf("expected decode cache to hand back independent copies, mutation leaked: %+v", p2)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder()
	id := uint64(7)
	original := &Packet{Type: EVENT, Nsp: "/chat", Id: &id, Data: NewEventData("bye", 2)}
	wire, err := enc.Encode(original)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	d := NewDecoder()
	decoded, err := d.Decode(wire)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if decoded.Type != original.Type || decoded.Nsp != original.Nsp {
		t.Fatalf("round trip mismatch on type/nsp: %+v vs %+v", original, decoded)
	}
	if decoded.Id == nil || *decoded.Id != *original.Id {
		t.Fatalf("round trip mismatch on id: %+v vs %+v", original, decoded)
	}
}

func TestEncodeOmitsDefaultNamespace(t *testing.T) {
	enc := NewEncoder()
	wire, err := enc.Encode(&Packet{Type: CONNECT, Nsp: "/"})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if wire != "0" {
		t.Fatalf(`expected "0", got %q`, wire)
	}
}
