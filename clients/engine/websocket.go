package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
)

// websocketTransport is the client-side WebSocket leg (spec.md §3
// Transport "websocket"): a full-duplex frame stream, one Engine.IO
// packet per frame, mirroring servers/engine's server-side half.
type websocketTransport struct {
	dialer *websocket.Dialer
	uri    string
	opts   *Options

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	inbox   chan packet.Packet
	readErr chan error
	closeCh chan struct{}
}

func newWebsocketTransport(uri string, opts *Options) *websocketTransport {
	return &websocketTransport{
		dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		uri:    uri,
		opts:   opts,
		inbox:  make(chan packet.Packet, 64),
		readErr: make(chan error, 1),
		closeCh: make(chan struct{}),
	}
}

func (t *websocketTransport) Name() string { return "websocket" }

func wsURL(uri string, query url.Values) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	for k, v := range query {
		q[k] = v
	}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open dials <uri>?EIO=4&transport=websocket without a sid, so the server
// runs a fresh handshake over the WebSocket, and reads back the OPEN frame
// the server sends as the first message.
func (t *websocketTransport) Open(ctx context.Context) (HandshakeData, error) {
	target, err := wsURL(t.uri, t.opts.Query)
	if err != nil {
		return HandshakeData{}, err
	}

	hctx, cancel := context.WithTimeout(ctx, t.opts.HandshakeTimeout)
	defer cancel()

	conn, _, err := t.dialer.DialContext(hctx, target, t.opts.ExtraHeaders)
	if err != nil {
		return HandshakeData{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	t.conn = conn

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return HandshakeData{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	p, err := packet.Decode(string(data))
	if err != nil || p.Type != packet.OPEN {
		conn.Close()
		return HandshakeData{}, ErrHandshakeFailed
	}

	var wire handshakeWire
	if err := json.Unmarshal([]byte(p.Data), &wire); err != nil {
		conn.Close()
		return HandshakeData{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	go t.readLoop()

	return HandshakeData{
		Sid:          wire.Sid,
		Upgrades:     wire.Upgrades,
		PingInterval: time.Duration(wire.PingInterval) * time.Millisecond,
		PingTimeout:  time.Duration(wire.PingTimeout) * time.Millisecond,
		MaxPayload:   wire.MaxPayload,
	}, nil
}

func (t *websocketTransport) readLoop() {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case t.readErr <- err:
			default:
			}
			_ = t.Close()
			return
		}

		var p packet.Packet
		if msgType == websocket.BinaryMessage {
			if len(data) == 0 {
				continue
			}
			p = packet.NewBinary(packet.Type(data[0]), data[1:])
		} else {
			p, err = packet.Decode(string(data))
			if err != nil {
				continue
			}
		}

		select {
		case t.inbox <- p:
		case <-t.closeCh:
			return
		}
	}
}

func (t *websocketTransport) Send(ctx context.Context, packets ...packet.Packet) error {
	for _, p := range packets {
		if err := t.writeOne(p); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func (t *websocketTransport) writeOne(p packet.Packet) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if p.IsBinary {
		frame := append([]byte{byte(p.Type)}, p.Binary...)
		return t.conn.WriteMessage(websocket.BinaryMessage, frame)
	}
	encoded, err := p.Encode()
	if err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(encoded))
}

func (t *websocketTransport) Receive(ctx context.Context) (packet.Packet, error) {
	select {
	case p := <-t.inbox:
		return p, nil
	case err := <-t.readErr:
		return packet.Packet{}, err
	case <-ctx.Done():
		return packet.Packet{}, ErrTransportClosed
	case <-t.closeCh:
		return packet.Packet{}, ErrTransportClosed
	}
}

func (t *websocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.closeCh)
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
