package socket

import (
	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
	"github.com/netpulse-io/socketio/pkg/utils"
	engine "github.com/netpulse-io/socketio/servers/engine"
	engineconfig "github.com/netpulse-io/socketio/servers/engine/config"
)

var serverLog = log.NewLog("socket.io:server")

// AdapterFactory builds the Adapter a new Namespace should use (spec.md
// §4.E). Defaults to NewMemoryAdapter; a cluster deployment passes a
// Redis- or Mongo-backed factory instead.
type AdapterFactory func(Namespace) Adapter

// Server is the Socket.IO protocol server: it owns the Engine.IO Server
// beneath it, the namespace registry, and per-connection Client
// multiplexing (spec.md §3 "Server").
type Server struct {
	types.EventEmitter

	engine         *engine.Server
	adapterFactory AdapterFactory

	nsps           *types.Map[string, Namespace]
	parentPatterns *types.Slice[string]
	clients        *types.Map[string, *client]
}

// NewServer wraps an Engine.IO server with the Socket.IO protocol layer.
func NewServer(engineOpts *engineconfig.Options, adapterFactory AdapterFactory) (*Server, error) {
	engineServer, err := engine.NewServer(engineOpts)
	if err != nil {
		return nil, err
	}
	if adapterFactory == nil {
		adapterFactory = func(n Namespace) Adapter { return NewMemoryAdapter(n) }
	}

	s := &Server{
		EventEmitter:   types.NewEventEmitter(),
		engine:         engineServer,
		adapterFactory: adapterFactory,
		nsps:           types.NewMap[string, Namespace](),
		parentPatterns: types.NewSlice[string](),
		clients:        types.NewMap[string, *client](),
	}
	s.engine.EventEmitter.On("connect", s.onEngineConnect)
	s.engine.EventEmitter.On("close", s.onEngineClose)

	s.nsps.Store(DefaultNamespaceName, newNamespace(s, DefaultNamespaceName))
	return s, nil
}

// Engine returns the underlying Engine.IO transport server, the value to
// mount as an http.Handler (spec.md §6).
func (s *Server) Engine() *engine.Server { return s.engine }

func (s *Server) onEngineConnect(args ...any) {
	if len(args) == 0 {
		return
	}
	sess, ok := args[0].(*engine.Session)
	if !ok {
		return
	}
	c := newClient(s, sess)
	s.clients.Store(sess.ID, c)
}

func (s *Server) onEngineClose(...any) {}

// Of returns (creating if necessary) the namespace identified by name,
// supporting dynamic "/orders-*" style patterns registered via OfDynamic
// (spec.md §4.D; SPEC_FULL.md §C "parent/dynamic namespace matching").
func (s *Server) Of(name string) Namespace {
	ns, err := s.namespaceFor(name)
	if err != nil {
		// Of() always succeeds for a static name; only dynamic lookups at
		// connect time can fail to match a registered pattern.
		ns = newNamespace(s, name)
		s.nsps.Store(name, ns)
	}
	return ns
}

// OfDynamic registers a parent namespace pattern ("/rooms-*") whose
// children are created on first connection to a matching namespace name.
func (s *Server) OfDynamic(pattern string) {
	s.parentPatterns.Push(pattern)
}

func (s *Server) namespaceFor(name string) (Namespace, error) {
	if name == "" {
		name = DefaultNamespaceName
	}
	if ns, ok := s.nsps.Load(name); ok {
		return ns, nil
	}
	for _, pattern := range s.parentPatterns.All() {
		if matchesDynamic(pattern, name) {
			ns := newNamespace(s, name)
			s.nsps.Store(name, ns)
			return ns, nil
		}
	}
	return nil, ErrUnknownNamespace
}

func (s *Server) newAdapter(n Namespace) Adapter {
	return s.adapterFactory(n)
}

func (s *Server) generateSocketId() (string, error) {
	return utils.Base64Id().GenerateId()
}

// writePacket encodes p via the recipient's namespace message cache (spec.md
// §4.D: a broadcast packet is encoded once and the wire string reused across
// every recipient) and writes it as a single Engine.IO MESSAGE packet.
func (s *Server) writePacket(sock *Socket, p *socketparser.Packet) error {
	c, ok := s.clients.Load(sock.session.ID)
	if !ok {
		return ErrUnknownNamespace
	}
	encoded, err := sock.nsp.encodeCached(p)
	if err != nil {
		return err
	}
	return c.sendEncoded(encoded)
}

// Close shuts down every namespace's adapter and the underlying Engine.IO
// server.
func (s *Server) Close() error {
	for _, ns := range s.nsps.Values() {
		ns.Adapter().Close()
	}
	return s.engine.Close()
}
