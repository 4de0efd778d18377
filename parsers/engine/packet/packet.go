// Package packet defines the Engine.IO packet type and the text/binary
// wire codec for a single packet (spec.md §3 "Engine packet", §4.A "Packet
// codec").
package packet

import "fmt"

// Type is the Engine.IO packet type.
type Type byte

// Engine.IO packet types and their wire digit, per spec.md §3.
const (
	OPEN    Type = '0'
	CLOSE   Type = '1'
	PING    Type = '2'
	PONG    Type = '3'
	MESSAGE Type = '4'
	UPGRADE Type = '5'
	NOOP    Type = '6'
)

func (t Type) String() string {
	switch t {
	case OPEN:
		return "open"
	case CLOSE:
		return "close"
	case PING:
		return "ping"
	case PONG:
		return "pong"
	case MESSAGE:
		return "message"
	case UPGRADE:
		return "upgrade"
	case NOOP:
		return "noop"
	default:
		return "unknown"
	}
}

// IsValid reports whether t is one of the seven defined packet types.
func (t Type) IsValid() bool {
	switch t {
	case OPEN, CLOSE, PING, PONG, MESSAGE, UPGRADE, NOOP:
		return true
	default:
		return false
	}
}

// Packet is a single Engine.IO packet: a type tag plus an optional text or
// binary payload (spec.md §3). Text is carried in Data and binary in
// Binary; IsBinary distinguishes a present-but-empty text payload from
// binary.
type Packet struct {
	Type     Type
	Data     string
	Binary   []byte
	IsBinary bool
}

// New constructs a text (or payload-less) packet.
func New(t Type, data string) Packet {
	return Packet{Type: t, Data: data}
}

// NewBinary constructs a binary-payload packet. Only MESSAGE packets may
// legally carry binary data; callers are responsible for that invariant.
func NewBinary(t Type, data []byte) Packet {
	return Packet{Type: t, Binary: data, IsBinary: true}
}

// Encode renders the packet using the text framing from spec.md §4.A: one
// ASCII digit for the type, followed by the payload. A binary payload is
// rendered as "b" + base64(bytes); callers that can carry true binary
// frames write p.Binary themselves instead of calling Encode.
func (p Packet) Encode() (string, error) {
	if !p.Type.IsValid() {
		return "", fmt.Errorf("%w: %v", ErrInvalidType, p.Type)
	}
	if p.IsBinary {
		return string(byte(p.Type)) + "b" + encodeBase64(p.Binary), nil
	}
	return string(byte(p.Type)) + p.Data, nil
}

// Decode parses the text framing of a single packet.
func Decode(raw string) (Packet, error) {
	if len(raw) == 0 {
		return Packet{}, ErrEmptyPacket
	}
	t := Type(raw[0])
	if !t.IsValid() {
		return Packet{}, fmt.Errorf("%w: %v", ErrInvalidType, t)
	}
	rest := raw[1:]
	if len(rest) > 0 && rest[0] == 'b' {
		data, err := decodeBase64(rest[1:])
		if err != nil {
			return Packet{}, fmt.Errorf("%w: %v", ErrInvalidBinary, err)
		}
		return NewBinary(t, data), nil
	}
	return New(t, rest), nil
}
