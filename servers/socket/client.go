package socket

import (
	"context"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
	engine "github.com/netpulse-io/socketio/servers/engine"
)

var clientLog = log.NewLog("socket.io:client")

// client multiplexes one Engine.IO session across every namespace the peer
// has CONNECTed to (spec.md §3 "a physical connection may back several
// Sockets, one per namespace").
type client struct {
	server  *Server
	session *engine.Session
	decoder socketparser.Decoder
	encoder socketparser.Encoder
	nsps    *types.Map[string, *Socket]
}

func newClient(server *Server, session *engine.Session) *client {
	c := &client{
		server:  server,
		session: session,
		decoder: socketparser.NewDecoder(),
		encoder: socketparser.NewEncoder(),
		nsps:    types.NewMap[string, *Socket](),
	}
	session.EventEmitter.On("packet", c.onEnginePacket)
	session.EventEmitter.On("close", c.onClose)
	return c
}

func (c *client) onEnginePacket(args ...any) {
	if len(args) == 0 {
		return
	}
	p, ok := args[0].(packet.Packet)
	if !ok || p.Type != packet.MESSAGE {
		return
	}
	decoded, err := c.decoder.Decode(p.Data)
	if err != nil {
		clientLog.Debugf("client %s sent an undecodable packet: %v", c.session.ID, err)
		return
	}
	c.handle(decoded)
}

func (c *client) handle(p *socketparser.Packet) {
	switch p.Type {
	case socketparser.CONNECT:
		c.connect(p.Nsp, p.Data)
	case socketparser.EVENT, socketparser.BINARY_EVENT:
		if sock, ok := c.socketFor(p.Nsp); ok {
			sock.handleEvent(p)
		}
	case socketparser.ACK, socketparser.BINARY_ACK:
		if sock, ok := c.socketFor(p.Nsp); ok && p.Id != nil {
			args, _ := socketEventArgsFromAck(p.Data)
			sock.handleAck(*p.Id, args)
		}
	case socketparser.DISCONNECT:
		if sock, ok := c.socketFor(p.Nsp); ok {
			sock.Disconnect(false)
			c.nsps.Delete(p.Nsp)
		}
	}
}

func socketEventArgsFromAck(data any) ([]any, error) {
	if arr, ok := data.([]any); ok {
		return arr, nil
	}
	if data == nil {
		return nil, nil
	}
	return []any{data}, nil
}

func (c *client) socketFor(nsp string) (*Socket, bool) {
	if nsp == "" {
		nsp = DefaultNamespaceName
	}
	return c.nsps.Load(nsp)
}

// connect admits a socket into nsp, creating the namespace on demand for
// dynamic namespace patterns (SPEC_FULL.md §C).
func (c *client) connect(nsp string, auth any) {
	if nsp == "" {
		nsp = DefaultNamespaceName
	}
	ns, err := c.server.namespaceFor(nsp)
	if err != nil {
		_ = c.writeRaw(&socketparser.Packet{Type: socketparser.CONNECT_ERROR, Nsp: nsp, Data: map[string]any{"message": err.Error()}})
		return
	}

	sock, err := ns.admit(c.session, Handshake{
		Address: c.session.Handshake.Address,
		Secure:  c.session.Handshake.Secure,
		Issued:  c.session.Handshake.Issued,
		Auth:    auth,
	}, auth)
	if err != nil {
		_ = c.writeRaw(&socketparser.Packet{Type: socketparser.CONNECT_ERROR, Nsp: nsp, Data: map[string]any{"message": err.Error()}})
		return
	}

	c.nsps.Store(nsp, sock)
	_ = c.writeRaw(&socketparser.Packet{Type: socketparser.CONNECT, Nsp: nsp, Data: map[string]any{"sid": sock.ID}})
}

func (c *client) writeRaw(p *socketparser.Packet) error {
	encoded, err := c.encoder.Encode(p)
	if err != nil {
		return err
	}
	return c.sendEncoded(encoded)
}

// sendEncoded writes an already-encoded Socket.IO packet string, bypassing
// this client's own encoder — used when the caller already resolved the
// wire string via a namespace's message cache (spec.md §4.D).
func (c *client) sendEncoded(encoded string) error {
	return c.session.Send(context.Background(), packet.New(packet.MESSAGE, encoded))
}

func (c *client) onClose(...any) {
	for _, sock := range c.nsps.Values() {
		sock.Disconnect(false)
	}
}
