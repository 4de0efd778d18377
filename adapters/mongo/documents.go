package mongo

import (
	"time"

	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/pkg/types"
	"github.com/netpulse-io/socketio/servers/socket"
)

func setOf(rooms []socket.Room) *types.Set[socket.Room] {
	if len(rooms) == 0 {
		return types.NewSet[socket.Room]()
	}
	return types.NewSet(rooms...)
}

// wireFlags/wireOptions mirror adapters/redis's wire-safe projection of
// socket.BroadcastFlags/BroadcastOptions: types.Set's fields are
// unexported, so a cluster-wire representation needs plain slices.
type wireFlags struct {
	Volatile             bool   `bson:"volatile"`
	Local                bool   `bson:"local"`
	Compress             *bool  `bson:"compress,omitempty"`
	TimeoutMs            int64  `bson:"timeoutMs,omitempty"`
	HasTimeout           bool   `bson:"hasTimeout"`
	ExpectSingleResponse bool   `bson:"expectSingleResponse"`
}

func encodeFlags(f *socket.BroadcastFlags) wireFlags {
	if f == nil {
		return wireFlags{}
	}
	w := wireFlags{
		Volatile:             f.Volatile,
		Local:                f.Local,
		Compress:             f.Compress,
		ExpectSingleResponse: f.ExpectSingleResponse,
	}
	if f.Timeout != nil {
		w.HasTimeout = true
		w.TimeoutMs = f.Timeout.Milliseconds()
	}
	return w
}

func decodeFlags(w wireFlags) *socket.BroadcastFlags {
	f := &socket.BroadcastFlags{
		Volatile:             w.Volatile,
		Local:                w.Local,
		Compress:             w.Compress,
		ExpectSingleResponse: w.ExpectSingleResponse,
	}
	if w.HasTimeout {
		d := time.Duration(w.TimeoutMs) * time.Millisecond
		f.Timeout = &d
	}
	return f
}

type wireOptions struct {
	Rooms  []socket.Room `bson:"rooms,omitempty"`
	Except []socket.Room `bson:"except,omitempty"`
	Flags  wireFlags     `bson:"flags"`
}

func encodeOptions(opts *socket.BroadcastOptions) wireOptions {
	if opts == nil {
		return wireOptions{}
	}
	w := wireOptions{Flags: encodeFlags(opts.Flags)}
	if opts.Rooms != nil {
		w.Rooms = opts.Rooms.Keys()
	}
	if opts.Except != nil {
		w.Except = opts.Except.Keys()
	}
	return w
}

func decodeOptions(w wireOptions) *socket.BroadcastOptions {
	return &socket.BroadcastOptions{
		Rooms:  setOf(w.Rooms),
		Except: setOf(w.Except),
		Flags:  decodeFlags(w.Flags),
	}
}

// messageKind distinguishes the three things a document in the messages
// collection can carry (spec.md §4.E "<prefix>_messages (broadcast log)").
type messageKind string

const (
	kindBroadcast      messageKind = "broadcast"
	kindServerSideEmit messageKind = "serverSideEmit"
	kindDisconnect     messageKind = "disconnect"
)

// messageDoc is a document in "<prefix>_messages": the broadcast log every
// node either change-streams or polls, filtered by ServerId != self.
type messageDoc struct {
	ServerId  string               `bson:"serverId"`
	Nsp       string                `bson:"nsp"`
	Kind      messageKind           `bson:"kind"`
	Packet    *socketparser.Packet  `bson:"packet,omitempty"`
	Opts      wireOptions           `bson:"opts,omitempty"`
	Data      []any                 `bson:"data,omitempty"`
	RequestId string                `bson:"requestId,omitempty"`
	Close     bool                  `bson:"close,omitempty"`
	CreatedAt time.Time             `bson:"createdAt"`
}

// responseDoc correlates a ServerSideEmitWithAck reply back to its request.
type responseDoc struct {
	ServerId  string    `bson:"serverId"`
	Nsp       string    `bson:"nsp"`
	RequestId string    `bson:"requestId"`
	Data      []any     `bson:"data,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

// roomDoc is a document in "<prefix>_rooms" keyed "<nsp>:<room>", holding
// the sids this node currently believes are members (spec.md §4.E).
type roomDoc struct {
	Key       string    `bson:"_id"`
	Nsp       string    `bson:"nsp"`
	Room      string    `bson:"room"`
	Sids      []string  `bson:"sids"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// socketDoc is a document in "<prefix>_rooms" keyed "<nsp>:socket:<sid>",
// the inverse index used by DelAll to find every room a departing socket
// was in without a table scan.
type socketDoc struct {
	Key       string    `bson:"_id"`
	Nsp       string    `bson:"nsp"`
	Sid       string    `bson:"sid"`
	Rooms     []string  `bson:"rooms"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// serverDoc is a document in "<prefix>_servers": the heartbeat registry.
type serverDoc struct {
	Key           string    `bson:"_id"`
	Nsp           string    `bson:"nsp"`
	LastHeartbeat time.Time `bson:"lastHeartbeat"`
}
