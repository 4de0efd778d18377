// Package parser implements the Engine.IO payload framing that lets a
// long-poll response carry more than one packet in a single HTTP body
// (spec.md §4.A "Payload framing for long-poll").
package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
)

// ErrInvalidFraming is returned when a payload's length prefix is
// non-numeric or declares more bytes than remain in the buffer
// (spec.md §7 InvalidFraming).
var ErrInvalidFraming = errors.New("engine.io: invalid payload framing")

// EncodePayload concatenates the text encoding of each packet as
// "<len>:<encoded>". An empty slice of packets encodes to "0:".
func EncodePayload(packets []packet.Packet) (string, error) {
	if len(packets) == 0 {
		return "0:", nil
	}
	var b strings.Builder
	for _, p := range packets {
		encoded, err := p.Encode()
		if err != nil {
			return "", err
		}
		b.WriteString(strconv.Itoa(len(encoded)))
		b.WriteByte(':')
		b.WriteString(encoded)
	}
	return b.String(), nil
}

// DecodePayload splits a framed payload back into its packets.
func DecodePayload(payload string) ([]packet.Packet, error) {
	if payload == "0:" || payload == "" {
		return nil, nil
	}
	var packets []packet.Packet
	for len(payload) > 0 {
		sep := strings.IndexByte(payload, ':')
		if sep < 0 {
			return nil, ErrInvalidFraming
		}
		lengthStr := payload[:sep]
		length, err := strconv.Atoi(lengthStr)
		if err != nil || length < 0 {
			return nil, ErrInvalidFraming
		}
		rest := payload[sep+1:]
		if length > len(rest) {
			return nil, ErrInvalidFraming
		}
		encoded := rest[:length]
		p, err := packet.Decode(encoded)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
		payload = rest[length:]
	}
	return packets, nil
}
