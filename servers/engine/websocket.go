package engine

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
)

// websocketTransport is the server-side WebSocket leg of a session
// (spec.md §3 Transport "websocket"): a full-duplex frame stream, one
// Engine.IO packet per frame.
type websocketTransport struct {
	conn     *websocket.Conn
	compress *codec
	encrypt  *codec

	writeMu sync.Mutex
	mu      sync.Mutex
	state   State
	inbox   chan packet.Packet
	readErr chan error
	closeCh chan struct{}
}

func newWebsocketTransport(conn *websocket.Conn, compress, encrypt *codec) *websocketTransport {
	t := &websocketTransport{
		conn:     conn,
		compress: compress,
		encrypt:  encrypt,
		state:    StateConnected,
		inbox:    make(chan packet.Packet, 64),
		readErr:  make(chan error, 1),
		closeCh:  make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *websocketTransport) Name() string { return "websocket" }

func (t *websocketTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
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
			if len(data) == 0 {
				continue
			}
			// Only a MESSAGE packet's payload is filtered (spec.md §6:
			// control packets are never compressed or encrypted); the type
			// digit always stays in the clear so it can be inspected here.
			if packet.Type(data[0]) == packet.MESSAGE {
				payload := data[1:]
				if t.encrypt != nil {
					if plain, derr := t.encrypt.decode(payload); derr == nil {
						payload = plain
					} else if isEncrypted(payload) {
						select {
						case t.readErr <- derr:
						default:
						}
						_ = t.Close()
						return
					}
				}
				if t.compress != nil {
					if plain, derr := t.compress.decode(payload); derr == nil {
						payload = plain
					}
				}
				data = append(data[:1:1], payload...)
			}
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

// Send writes each packet as a distinct WebSocket frame, checking ctx for
// cancellation after every heartbeatBatchSize frames of a large batch
// (spec.md §5).
func (t *websocketTransport) Send(ctx context.Context, packets ...packet.Packet) error {
	for i, p := range packets {
		if err := t.writeOne(p); err != nil {
			return err
		}
		if i%heartbeatBatchSize == heartbeatBatchSize-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
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
	data := []byte(encoded)
	if p.Type == packet.MESSAGE {
		payload := data[1:]
		if t.compress != nil {
			if compressed, cerr := t.compress.encode(payload); cerr == nil {
				payload = compressed
			}
		}
		if t.encrypt != nil {
			if ciphertext, eerr := t.encrypt.encode(payload); eerr == nil {
				payload = ciphertext
			}
		}
		data = append(data[:1:1], payload...)
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *websocketTransport) Receive(ctx context.Context) (packet.Packet, error) {
	select {
	case p := <-t.inbox:
		return p, nil
	case err := <-t.readErr:
		return packet.Packet{}, err
	case <-ctx.Done():
		return packet.Packet{}, ctx.Err()
	case <-t.closeCh:
		return packet.Packet{}, ErrTransportClosed
	}
}

func (t *websocketTransport) Close() error {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return nil
	}
	t.state = StateClosed
	t.mu.Unlock()

	close(t.closeCh)
	return t.conn.Close()
}
