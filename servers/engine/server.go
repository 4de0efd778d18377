// Package engine implements the Engine.IO transport server: the HTTP
// handshake/long-poll/WebSocket-upgrade endpoint, per-connection Session,
// and batched heartbeat described in spec.md §3-§6.
package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"

	engineparser "github.com/netpulse-io/socketio/parsers/engine/parser"
	"github.com/netpulse-io/socketio/parsers/engine/packet"
	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
	"github.com/netpulse-io/socketio/pkg/utils"
	"github.com/netpulse-io/socketio/servers/engine/config"
)

var engineLog = log.NewLog("engine:server")

// Server is the Engine.IO HTTP endpoint: it performs the handshake,
// multiplexes long-poll GET/POST pairs and WebSocket upgrades onto
// Sessions, and drives the shared heartbeat loop (spec.md §6).
type Server struct {
	types.EventEmitter

	opts      *config.Options
	upgrader  websocket.Upgrader
	heartbeat *heartbeat
	compress  *codec
	encrypt   *codec

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewServer builds a Server from opts (defaults filled via
// config.DefaultOptions when opts is nil).
func NewServer(opts *config.Options) (*Server, error) {
	if opts == nil {
		opts = config.DefaultOptions()
	}

	compress := compressionCodec(opts.Compression)
	encrypt, err := encryptionCodec(opts.Encryption)
	if err != nil {
		return nil, err
	}

	s := &Server{
		EventEmitter: types.NewEventEmitter(),
		opts:         opts,
		sessions:     make(map[string]*Session),
		compress:     compress,
		encrypt:      encrypt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if opts.CheckOrigin != nil {
					return opts.CheckOrigin(r)
				}
				if opts.Cors == nil {
					return true
				}
				return opts.Cors.OriginAllowed(r.Header.Get("Origin"))
			},
		},
	}
	s.heartbeat = newHeartbeat(opts.PingInterval, opts.PingTimeout)
	go s.heartbeat.run(s.snapshotSessions)
	return s, nil
}

func (s *Server) snapshotSessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Session looks up a live session by sid.
func (s *Server) Session(sid string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sid]
	return sess, ok
}

// ServeHTTP implements spec.md §6's routing table:
//
//	GET  <path>                 -> handshake + first packet for a new sid
//	GET  <path>?sid=...          -> long-poll receive (polling) or upgrade (websocket)
//	POST <path>?sid=...          -> long-poll send
//	OPTIONS <path>                -> CORS preflight
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.opts.AllowCORS {
		s.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	sid := r.URL.Query().Get("sid")
	transportName := r.URL.Query().Get("transport")
	if transportName == "" {
		transportName = "polling"
	}

	switch {
	case sid == "" && r.Method == http.MethodGet:
		s.handshake(w, r, transportName)
	case sid != "" && r.Method == http.MethodGet && transportName == "websocket":
		s.handleUpgrade(w, r, sid)
	case sid != "" && r.Method == http.MethodGet:
		s.handlePollGet(w, r, sid)
	case sid != "" && r.Method == http.MethodPost:
		s.handlePollPost(w, r, sid)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if s.opts.Cors != nil && s.opts.Cors.OriginAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		if s.opts.Cors.Credentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if len(s.opts.Cors.Methods) > 0 {
			w.Header().Set("Access-Control-Allow-Methods", joinComma(s.opts.Cors.Methods))
		}
		if len(s.opts.Cors.Headers) > 0 {
			w.Header().Set("Access-Control-Allow-Headers", joinComma(s.opts.Cors.Headers))
		}
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func (s *Server) handshake(w http.ResponseWriter, r *http.Request, transportName string) {
	if s.opts.MaxConnections > 0 && len(s.snapshotSessions()) >= s.opts.MaxConnections {
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}
	if !s.opts.AllowsTransport(transportName) {
		http.Error(w, "unsupported transport", http.StatusBadRequest)
		return
	}

	sid, err := utils.Base64Id().GenerateId()
	if err != nil {
		http.Error(w, "id generation failed", http.StatusInternalServerError)
		return
	}
	hs := newHandshake(r)

	var t Transport
	if transportName == "websocket" {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		t = newWebsocketTransport(conn, s.compress, s.encrypt)
	} else {
		t = newPollingTransport()
	}

	sess := newSession(sid, hs, t)
	s.mu.Lock()
	s.sessions[sid] = sess
	s.mu.Unlock()
	engineLog.Debugf("handshake sid=%s transport=%s", sid, transportName)

	openPayload, _ := json.Marshal(map[string]any{
		"sid":          sid,
		"upgrades":     s.upgradeCandidates(transportName),
		"pingInterval": s.opts.PingInterval.Milliseconds(),
		"pingTimeout":  s.opts.PingTimeout.Milliseconds(),
		"maxPayload":   s.opts.MaxPacketSize,
	})
	openPacket := packet.New(packet.OPEN, string(openPayload))

	go s.pump(sess)

	if transportName == "websocket" {
		_ = sess.Send(r.Context(), openPacket)
		s.writeEvent(sess, "connect")
		return
	}

	s.respondPoll(w, r, t.(*pollingTransport), []packet.Packet{openPacket})
	s.writeEvent(sess, "connect")
}

func (s *Server) writeEvent(sess *Session, name string) {
	s.EventEmitter.Emit(name, sess)
}

func (s *Server) upgradeCandidates(current string) []string {
	if current == "websocket" {
		return nil
	}
	if s.opts.AllowsTransport("websocket") {
		return []string{"websocket"}
	}
	return nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request, sid string) {
	sess, ok := s.Session(sid)
	if !ok {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	t := newWebsocketTransport(conn, s.compress, s.encrypt)
	_ = sess.Upgrade(t)
	go s.pump(sess)
}

func (s *Server) handlePollGet(w http.ResponseWriter, r *http.Request, sid string) {
	sess, ok := s.Session(sid)
	if !ok {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}
	pt, ok := sess.Transport().(*pollingTransport)
	if !ok {
		http.Error(w, "session is not polling", http.StatusBadRequest)
		return
	}

	timeout := config.AdaptivePollingTimeout(s.opts.PollingTimeout, len(s.snapshotSessions()))
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	packets, err := pt.Drain(ctx)
	if err != nil {
		// Timed out waiting: respond with an empty payload rather than an
		// error so the client immediately re-polls (standard long-poll
		// idle behavior).
		s.respondPoll(w, r, pt, nil)
		return
	}
	s.respondPoll(w, r, pt, packets)
}

// filterOutgoing applies compress-then-encrypt to a MESSAGE packet's
// payload only, leaving the type digit and every control packet
// (OPEN/CLOSE/PING/PONG/UPGRADE/NOOP) in the clear (spec.md §6).
func (s *Server) filterOutgoing(p packet.Packet) packet.Packet {
	if p.Type != packet.MESSAGE || p.IsBinary {
		return p
	}
	data := []byte(p.Data)
	if s.compress != nil {
		if compressed, err := s.compress.encode(data); err == nil {
			data = compressed
		}
	}
	if s.encrypt != nil {
		if ciphertext, err := s.encrypt.encode(data); err == nil {
			data = ciphertext
		}
	}
	p.Data = string(data)
	return p
}

// filterIncoming reverses filterOutgoing for a packet read off the wire.
func (s *Server) filterIncoming(p packet.Packet) (packet.Packet, error) {
	if p.Type != packet.MESSAGE || p.IsBinary {
		return p, nil
	}
	data := []byte(p.Data)
	if s.encrypt != nil {
		if plain, err := s.encrypt.decode(data); err == nil {
			data = plain
		} else if isEncrypted(data) {
			return packet.Packet{}, err
		}
	}
	if s.compress != nil {
		if plain, err := s.compress.decode(data); err == nil {
			data = plain
		}
	}
	p.Data = string(data)
	return p, nil
}

func (s *Server) respondPoll(w http.ResponseWriter, r *http.Request, pt *pollingTransport, packets []packet.Packet) {
	filtered := make([]packet.Packet, len(packets))
	for i, p := range packets {
		filtered[i] = s.filterOutgoing(p)
	}
	payload, err := engineparser.EncodePayload(filtered)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	_, _ = w.Write([]byte(payload))
}

func (s *Server) handlePollPost(w http.ResponseWriter, r *http.Request, sid string) {
	sess, ok := s.Session(sid)
	if !ok {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}
	pt, ok := sess.Transport().(*pollingTransport)
	if !ok {
		http.Error(w, "session is not polling", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.opts.MaxPacketSize))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	packets, err := engineparser.DecodePayload(string(body))
	if err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	unfiltered := make([]packet.Packet, len(packets))
	for i, p := range packets {
		up, err := s.filterIncoming(p)
		if err != nil {
			http.Error(w, "decryption failed", http.StatusBadRequest)
			return
		}
		unfiltered[i] = up
	}
	if err := pt.AcceptPackets(unfiltered); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// pump reads dispatchable packets off sess's transport until it closes,
// translating PING/PONG/CLOSE into session-level behavior and re-emitting
// everything else as a "packet" event for the Socket.IO layer above.
func (s *Server) pump(sess *Session) {
	ctx := context.Background()
	for {
		p, err := sess.Transport().Receive(ctx)
		if err != nil {
			engineLog.Debugf("sid=%s transport closed: %v", sess.ID, err)
			s.removeSession(sess)
			return
		}
		switch p.Type {
		case packet.PONG:
			sess.OnPong()
		case packet.PING:
			// spec.md §4.B: a PING received from the peer is answered with
			// PONG (used by some clients to keep a proxy from idling out
			// the connection); it does not reset our own ping timer.
			_ = sess.Send(ctx, packet.New(packet.PONG, ""))
		case packet.CLOSE:
			_ = sess.Close()
			s.removeSession(sess)
			return
		default:
			sess.EventEmitter.Emit("packet", p)
		}
	}
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	sess.EventEmitter.Emit("close", "transport closed")
}

// Close shuts down the heartbeat loop and every live session.
func (s *Server) Close() error {
	s.heartbeat.Close()

	var result error
	for _, sess := range s.snapshotSessions() {
		if err := sess.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
