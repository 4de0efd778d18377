package packet

import "testing"

func TestEncodeDecodeRoundTripText(t *testing.T) {
	for _, tt := range []Packet{
		New(OPEN, `{"sid":"abc"}`),
		New(CLOSE, ""),
		New(PING, ""),
		New(PONG, ""),
		New(MESSAGE, "hello world"),
		New(UPGRADE, ""),
		New(NOOP, ""),
	} {
		encoded, err := tt.Encode()
		if err != nil {
			t.Fatalf("Encode(%+v) error: %v", tt, err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", encoded, err)
		}
		if decoded.Type != tt.Type || decoded.Data != tt.Data {
			t.Fatalf("round trip mismatch: want %+v, got %+v", tt, decoded)
		}
	}
}

func TestEncodeDecodeRoundTripBinary(t *testing.T) {
	original := NewBinary(MESSAGE, []byte{0x00, 0x01, 0xff, 0x10})
	encoded, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if encoded[0] != byte(MESSAGE) || encoded[1] != 'b' {
		t.Fatalf("expected base64 binary framing, got %q", encoded)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if !decoded.IsBinary || string(decoded.Binary) != string(original.Binary) {
		t.Fatalf("binary round trip mismatch: got %+v", decoded)
	}
}

func TestDecodeInvalidType(t *testing.T) {
	if _, err := Decode("9payload"); err == nil {
		t.Fatalf("expected error for invalid type digit")
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, err := Decode(""); err == nil {
		t.Fatalf("expected error for empty packet")
	}
}
