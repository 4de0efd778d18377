package parser

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/netpulse-io/socketio/pkg/utils"
)

var (
	ErrInvalidPacketType = errors.New("socket.io: invalid packet type")
	ErrEmptyPacket       = errors.New("socket.io: empty packet")
	ErrIllegalID         = errors.New("socket.io: illegal ack id")
)

// ReservedEvents may not be used as custom event names.
var ReservedEvents = map[string]bool{
	"connect":       true,
	"connect_error": true,
	"disconnect":    true,
	"disconnecting": true,
}

// Decoder turns a wire string into a Packet, memoizing via a bounded LRU
// (spec.md §4.C "decode cache").
type Decoder interface {
	Decode(raw string) (*Packet, error)
}

type decoder struct {
	cache *utils.LRU[string, *Packet]
}

// DefaultDecodeCacheSize is the default decode-cache capacity (spec.md §4.C).
const DefaultDecodeCacheSize = 1000

// NewDecoder returns a Decoder with its own decode cache — an instance
// member, not a process global, so tests start from a clean state
// (spec.md §9 "scoped ownership").
func NewDecoder() Decoder {
	return &decoder{cache: utils.NewLRU[string, *Packet](DefaultDecodeCacheSize)}
}

// Decode parses the packet grammar, reading each optional section in this
// order (the same order Encode writes them):
//
//	packet  ::= type=[0-6]
//	            ( attachments=[0-9]+ '-' )?   // only for BINARY_EVENT/BINARY_ACK
//	            ( '/' nsp=[^,]* ',' )?
//	            ( id=[0-9]+ )?
//	            ( data=<JSON value> )?
//
// A missing trailing JSON value decodes to Data == nil rather than an
// error; malformed JSON likewise decodes to Data == nil rather than
// failing the whole packet.
func (d *decoder) Decode(raw string) (*Packet, error) {
	if cached, ok := d.cache.Get(raw); ok {
		clone := *cached
		return &clone, nil
	}

	p, err := decodePacket(raw)
	if err != nil {
		return nil, err
	}
	d.cache.Put(raw, p)
	clone := *p
	return &clone, nil
}

func decodePacket(raw string) (*Packet, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPacket
	}

	typeDigit := raw[0]
	if typeDigit < '0' || typeDigit > '6' {
		return nil, ErrInvalidPacketType
	}
	p := &Packet{Type: PacketType(typeDigit - '0'), Nsp: DefaultNamespace}
	rest := raw[1:]

	if p.Type == BINARY_EVENT || p.Type == BINARY_ACK {
		if dash := strings.IndexByte(rest, '-'); dash >= 0 {
			if n, err := strconv.ParseUint(rest[:dash], 10, 64); err == nil {
				p.Attachments = &n
				rest = rest[dash+1:]
			}
		}
	}

	if strings.HasPrefix(rest, "/") {
		if comma := strings.IndexByte(rest, ','); comma >= 0 {
			p.Nsp = rest[:comma]
			rest = rest[comma+1:]
		} else {
			// Namespace with no trailing comma and no data/id: consume all of it.
			p.Nsp = rest
			rest = ""
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.ParseUint(rest[:digits], 10, 64)
		if err != nil {
			return nil, ErrIllegalID
		}
		p.Id = &id
		rest = rest[digits:]
	}

	if len(rest) > 0 {
		var data any
		if err := json.Unmarshal([]byte(rest), &data); err == nil {
			p.Data = data
		}
		// malformed trailing JSON: tolerate it, Data stays nil.
	}

	return p, nil
}
