package parser

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Encoder turns a Packet into its wire string.
type Encoder interface {
	Encode(*Packet) (string, error)
}

type encoder struct{}

// NewEncoder returns the default Socket.IO packet encoder.
func NewEncoder() Encoder { return &encoder{} }

// Encode implements the grammar from spec.md §4.C, inverse of Decode: the
// namespace section is omitted when Nsp is "/" or empty.
func (e *encoder) Encode(p *Packet) (string, error) {
	if !p.Type.Valid() {
		return "", ErrInvalidPacketType
	}
	var b strings.Builder
	b.WriteByte('0' + byte(p.Type))

	if (p.Type == BINARY_EVENT || p.Type == BINARY_ACK) && p.Attachments != nil {
		b.WriteString(strconv.FormatUint(*p.Attachments, 10))
		b.WriteByte('-')
	}

	if p.Nsp != "" && p.Nsp != DefaultNamespace {
		b.WriteString(p.Nsp)
		b.WriteByte(',')
	}

	if p.Id != nil {
		b.WriteString(strconv.FormatUint(*p.Id, 10))
	}

	if p.Data != nil {
		encoded, err := json.Marshal(p.Data)
		if err != nil {
			return "", err
		}
		b.Write(encoded)
	}

	return b.String(), nil
}
