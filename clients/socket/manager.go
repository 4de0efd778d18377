package socket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	clientengine "github.com/netpulse-io/socketio/clients/engine"
	enginepacket "github.com/netpulse-io/socketio/parsers/engine/packet"
	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
	"github.com/netpulse-io/socketio/pkg/utils"
)

var managerLog = log.NewLog("client:manager")

// Manager owns one Engine.IO connection and the set of namespace Sockets
// multiplexed onto it, mirroring the teacher's split between a single
// low-level connection and many per-namespace Sockets (spec.md §4.F).
type Manager struct {
	types.EventEmitter

	uri  string
	opts *ManagerOptions

	engineSocket *clientengine.Socket
	backoff      *utils.Backoff
	encoder      socketparser.Encoder
	decoder      socketparser.Decoder

	mu                sync.Mutex
	sockets           map[string]*Socket
	skipReconnect     bool
	reconnecting      bool
	consecutiveErrors int
	lastErrorAt       time.Time

	closed atomic.Bool
}

// NewManager builds a Manager bound to uri, not yet connected.
func NewManager(uri string, opts *ManagerOptions) *Manager {
	opts = opts.withDefaults()
	m := &Manager{
		EventEmitter: types.NewEventEmitter(),
		uri:          uri,
		opts:         opts,
		engineSocket: clientengine.NewSocket(uri, opts.Engine),
		backoff: utils.NewBackoff(
			utils.WithMin(float64(opts.ReconnectionDelay.Milliseconds())),
			utils.WithMax(float64(opts.ReconnectionDelayMax.Milliseconds())),
			utils.WithJitter(opts.RandomizationFactor),
		),
		encoder: socketparser.NewEncoder(),
		decoder: socketparser.NewDecoder(),
		sockets: make(map[string]*Socket),
	}
	m.engineSocket.On("packet", func(args ...any) { m.onEnginePacket(args...) })
	m.engineSocket.On("close", func(args ...any) { m.onEngineClose(args...) })
	m.engineSocket.On("error", func(args ...any) { m.EventEmitter.Emit("error", args...) })
	return m
}

// Socket returns (creating if necessary) the namespace Socket for nsp, the
// multiplexing point the teacher calls "io(uri).of(nsp)" / one Manager per
// origin shared across namespaces.
func (m *Manager) Socket(nsp string, opts *SocketOptions) *Socket {
	if nsp == "" {
		nsp = "/"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sockets[nsp]; ok {
		return s
	}
	s := newSocket(m, nsp, opts)
	m.sockets[nsp] = s
	return s
}

// Open connects the underlying Engine.IO socket and, on success, sends a
// CONNECT packet for every namespace Socket already registered.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	m.skipReconnect = false
	m.mu.Unlock()

	if err := m.engineSocket.Open(ctx); err != nil {
		m.scheduleReconnect()
		return err
	}
	m.onSuccess()

	m.mu.Lock()
	socks := make([]*Socket, 0, len(m.sockets))
	for _, s := range m.sockets {
		socks = append(socks, s)
	}
	m.mu.Unlock()
	for _, s := range socks {
		s.sendConnect(ctx)
	}
	return nil
}

// onSuccess resets the backoff and error counters (spec.md §4.F
// "onSuccess() resets counters").
func (m *Manager) onSuccess() {
	m.backoff.Reset()
	m.mu.Lock()
	m.consecutiveErrors = 0
	m.reconnecting = false
	m.mu.Unlock()
	m.engineSocket.ResetTransportIndex()
	m.EventEmitter.Emit("open")
}

func (m *Manager) onEnginePacket(args ...any) {
	if len(args) == 0 {
		return
	}
	ep, ok := args[0].(enginepacket.Packet)
	if !ok || ep.Type != enginepacket.MESSAGE {
		return
	}
	p, err := m.decoder.Decode(ep.Data)
	if err != nil {
		managerLog.Debugf("client:manager: dropping undecodable packet: %v", err)
		return
	}
	nsp := p.Nsp
	if nsp == "" {
		nsp = "/"
	}
	m.mu.Lock()
	s, ok := m.sockets[nsp]
	m.mu.Unlock()
	if !ok {
		return
	}
	s.handlePacket(p)
}

func (m *Manager) onEngineClose(args ...any) {
	reason := "transport close"
	if len(args) > 0 {
		if r, ok := args[0].(string); ok {
			reason = r
		}
	}

	m.mu.Lock()
	socks := make([]*Socket, 0, len(m.sockets))
	for _, s := range m.sockets {
		socks = append(socks, s)
	}
	skip := m.skipReconnect
	m.mu.Unlock()

	for _, s := range socks {
		s.onDisconnect(reason)
	}
	m.EventEmitter.Emit("disconnect", reason)

	if skip || !m.opts.Reconnection {
		return
	}
	m.scheduleReconnect()
}

// scheduleReconnect implements spec.md §4.F "Smart reconnection": delay =
// min(base*2^attempts, max) + jitter, except after more than 10
// consecutive errors, where the client waits a full minute from the last
// error instead.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.reconnecting || m.closed.Load() {
		m.mu.Unlock()
		return
	}
	if m.opts.ReconnectionAttempts > 0 && int(m.backoff.Attempts()) >= m.opts.ReconnectionAttempts {
		m.mu.Unlock()
		m.EventEmitter.Emit("reconnect_failed")
		return
	}
	m.reconnecting = true
	m.consecutiveErrors++
	consecutive := m.consecutiveErrors
	lastErr := m.lastErrorAt
	m.lastErrorAt = time.Now()
	m.mu.Unlock()

	var delay time.Duration
	if consecutive > consecutiveErrorsBeforeCooldown {
		elapsed := time.Since(lastErr)
		if elapsed < cooldownPeriod {
			delay = cooldownPeriod - elapsed
		}
	} else {
		delay = time.Duration(m.backoff.Duration()) * time.Millisecond
	}

	m.EventEmitter.Emit("reconnecting", m.backoff.Attempts())

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		<-timer.C

		m.mu.Lock()
		if m.closed.Load() {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.opts.Engine.HandshakeTimeout)
		defer cancel()
		if err := m.Open(ctx); err != nil {
			m.mu.Lock()
			m.reconnecting = false
			m.mu.Unlock()
			m.scheduleReconnect()
		}
	}()
}

// Disconnect closes the connection and suppresses the subsequent
// reconnect schedule (spec.md §4.F "User-initiated disconnect() sets an
// intentional flag").
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.skipReconnect = true
	m.mu.Unlock()
	m.closed.Store(true)
	_ = m.engineSocket.Close()
}

func (m *Manager) send(ctx context.Context, p *socketparser.Packet) error {
	encoded, err := m.encoder.Encode(p)
	if err != nil {
		return err
	}
	return m.engineSocket.Send(ctx, enginepacket.New(enginepacket.MESSAGE, encoded))
}
