package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	rds "github.com/redis/go-redis/v9"

	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
	"github.com/netpulse-io/socketio/pkg/utils"
	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/servers/socket"
)

var redisLog = log.NewLog("adapter:redis")

func setOf(rooms []socket.Room) *types.Set[socket.Room] {
	if len(rooms) == 0 {
		return types.NewSet[socket.Room]()
	}
	return types.NewSet(rooms...)
}

// Adapter is a cluster-wide realization of socket.Adapter backed by Redis
// pub/sub and TTL-refreshed sets (spec.md §4.E "Redis adapter"). Local
// room/socket bookkeeping and same-process fan-out are delegated to an
// embedded socket.NewMemoryAdapter; this type only adds what crosses the
// process boundary: broadcast propagation, the server registry, and
// best-effort persisted room membership.
type Adapter struct {
	socket.Adapter

	nsp    socket.Namespace
	client *Client
	opts   *Options
	uid    string

	channel         string
	roomChannelBase string
	requestChannel  string
	responseChannel string

	ctx    context.Context
	cancel context.CancelFunc
	subs   []*rds.PubSub

	mu      sync.Mutex
	pending map[string]chan response
}

// New builds a socket.AdapterFactory bound to client/opts, for use with
// socket.NewServer(engineOpts, redis.New(client, opts)).
func New(client *Client, opts *Options) socket.AdapterFactory {
	return func(nsp socket.Namespace) socket.Adapter {
		a, err := NewAdapter(nsp, client, opts)
		if err != nil {
			redisLog.Errorf("failed to build redis adapter for namespace %s: %v", nsp.Name(), err)
			return socket.NewMemoryAdapter(nsp)
		}
		return a
	}
}

// NewAdapter constructs and initializes a Redis-backed Adapter for nsp.
func NewAdapter(nsp socket.Namespace, client *Client, opts *Options) (*Adapter, error) {
	opts = opts.withDefaults()
	uid, err := utils.Base64Id().GenerateId()
	if err != nil {
		return nil, fmt.Errorf("redis adapter: generating server id: %w", err)
	}

	ctx, cancel := context.WithCancel(client.Context)
	a := &Adapter{
		Adapter:         socket.NewMemoryAdapter(nsp),
		nsp:             nsp,
		client:          client,
		opts:            opts,
		uid:             uid,
		channel:         opts.KeyPrefix + ":broadcast:" + nsp.Name() + ":",
		roomChannelBase: opts.KeyPrefix + ":room:" + nsp.Name() + ":",
		requestChannel:  opts.KeyPrefix + ":request:" + nsp.Name() + ":",
		responseChannel: opts.KeyPrefix + ":response:" + nsp.Name() + ":",
		ctx:             ctx,
		cancel:          cancel,
		pending:         make(map[string]chan response),
	}
	a.Init()
	return a, nil
}

// Init subscribes to the global broadcast channel, the per-room pattern
// (closing the gap spec.md §9 calls out in the teacher), the request/
// response channels, and starts the server-registry heartbeat.
func (a *Adapter) Init() {
	a.Adapter.Init()

	broadcastSub := a.client.Raw.Subscribe(a.ctx, a.channel)
	roomSub := a.client.Raw.PSubscribe(a.ctx, a.roomChannelBase+"*")
	reqSub := a.client.Raw.Subscribe(a.ctx, a.requestChannel, a.responseChannel)
	a.subs = []*rds.PubSub{broadcastSub, roomSub, reqSub}

	go a.consume(broadcastSub.Channel(), a.onBroadcast)
	go a.consume(roomSub.Channel(), a.onBroadcast)
	go a.consume(reqSub.Channel(), a.onRequestOrResponse)

	a.registerServer()
	go a.heartbeatLoop()
}

func (a *Adapter) consume(ch <-chan *rds.Message, handle func(channel string, payload []byte)) {
	for {
		select {
		case <-a.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			handle(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (a *Adapter) onBroadcast(channel string, payload []byte) {
	var env broadcastEnvelope
	if err := utils.MsgPack().Decode(payload, &env); err != nil {
		redisLog.Debugf("redis adapter: malformed broadcast envelope on %s: %v", channel, err)
		return
	}
	// Cluster no-loop (spec.md §8 property 6): a message this node
	// published is delivered locally once, at publish time, not again here.
	if env.ServerId == a.uid {
		return
	}
	if env.Packet == nil {
		return
	}
	env.Packet.Nsp = a.nsp.Name()
	a.Adapter.Broadcast(env.Packet, decodeOptions(env.Opts))
}

func (a *Adapter) onRequestOrResponse(channel string, payload []byte) {
	if strings.HasPrefix(channel, a.responseChannel) {
		var resp response
		if err := utils.MsgPack().Decode(payload, &resp); err != nil {
			redisLog.Debugf("redis adapter: malformed response: %v", err)
			return
		}
		a.mu.Lock()
		ch, ok := a.pending[resp.RequestId]
		a.mu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
		return
	}

	var req request
	if err := utils.MsgPack().Decode(payload, &req); err != nil {
		redisLog.Debugf("redis adapter: malformed request: %v", err)
		return
	}
	if req.ServerId == a.uid {
		return
	}
	switch req.Type {
	case requestServerSideEmit:
		if len(req.Data) > 0 {
			if event, ok := req.Data[0].(string); ok {
				a.nsp.EmitReserved(event, req.Data[1:]...)
			}
		}
		if req.RequestId != "" {
			a.publishResponse(req.RequestId, nil)
		}
	case requestRemoteDisconnect:
		a.Adapter.DisconnectSockets(decodeOptions(req.Opts), req.Close)
	}
}

func (a *Adapter) publishResponse(requestId string, data []any) {
	payload, err := utils.MsgPack().Encode(&response{ServerId: a.uid, RequestId: requestId, Data: data})
	if err != nil {
		redisLog.Debugf("redis adapter: encoding response: %v", err)
		return
	}
	if err := a.client.Raw.Publish(a.ctx, a.responseChannel, payload).Err(); err != nil {
		a.client.Emit("error", err)
	}
}

// Broadcast fans out locally (via the embedded memory adapter) and, unless
// the Local flag is set, publishes the envelope for every other node.
func (a *Adapter) Broadcast(p *socketparser.Packet, opts *socket.BroadcastOptions) {
	p.Nsp = a.nsp.Name()
	a.publishBroadcast(p, opts)
	a.Adapter.Broadcast(p, opts)
}

// BroadcastWithAck behaves like Broadcast but also relays the ack-bearing
// packet to other nodes' local sockets; remote acks are not correlated back
// here (RemoteSocket.Emit acks are Non-goals per spec.md §1) but remote
// delivery itself is not, so the packet still needs to cross the cluster.
func (a *Adapter) BroadcastWithAck(p *socketparser.Packet, opts *socket.BroadcastOptions, clientCountCallback func(uint64), ack socket.Ack) {
	p.Nsp = a.nsp.Name()
	a.publishBroadcast(p, opts)
	a.Adapter.BroadcastWithAck(p, opts, clientCountCallback, ack)
}

// publishBroadcast encodes and publishes p unless opts.Flags.Local is set,
// routing single-room broadcasts to the room-specific channel so remote
// nodes that only care about that room can filter without decoding every
// global broadcast (mirrors the teacher's single-room channel routing).
func (a *Adapter) publishBroadcast(p *socketparser.Packet, opts *socket.BroadcastOptions) {
	if opts != nil && opts.Flags != nil && opts.Flags.Local {
		return
	}
	payload, err := utils.MsgPack().Encode(&broadcastEnvelope{
		ServerId: a.uid,
		Packet:   p,
		Opts:     encodeOptions(opts),
	})
	if err != nil {
		redisLog.Debugf("redis adapter: encoding broadcast envelope: %v", err)
		return
	}

	channel := a.channel
	if opts != nil && opts.Rooms != nil && opts.Rooms.Len() == 1 {
		channel = a.roomChannelBase + string(opts.Rooms.Keys()[0]) + ":"
	}
	if err := a.client.Raw.Publish(a.ctx, channel, payload).Err(); err != nil {
		a.client.Emit("error", err)
	}
}

// AddAll joins locally and refreshes the namespace-scoped room/socket sets
// in Redis so other nodes' FetchSockets/room-membership introspection sees
// this node's sockets, with the TTL spec.md §4.E prescribes.
func (a *Adapter) AddAll(id socket.SocketId, rooms *types.Set[socket.Room]) {
	a.Adapter.AddAll(id, rooms)
	if rooms == nil {
		return
	}
	ttl := a.opts.ttl()
	for _, room := range rooms.Keys() {
		pipe := a.client.Raw.Pipeline()
		pipe.SAdd(a.ctx, a.roomSetKey(room), string(id))
		pipe.Expire(a.ctx, a.roomSetKey(room), ttl)
		pipe.SAdd(a.ctx, a.socketSetKey(id), string(room))
		pipe.Expire(a.ctx, a.socketSetKey(id), ttl)
		if _, err := pipe.Exec(a.ctx); err != nil {
			redisLog.Debugf("redis adapter: join write failed for %s/%s: %v", id, room, err)
		}
	}
}

// Del leaves locally and best-effort mirrors the departure in Redis
// (spec.md §4.E "a join/leave write failure is logged and does not abort
// the operation locally").
func (a *Adapter) Del(id socket.SocketId, room socket.Room) {
	a.Adapter.Del(id, room)
	if err := a.client.Raw.SRem(a.ctx, a.roomSetKey(room), string(id)).Err(); err != nil {
		redisLog.Debugf("redis adapter: leave write failed for %s/%s: %v", id, room, err)
	}
	a.client.Raw.SRem(a.ctx, a.socketSetKey(id), string(room))
}

func (a *Adapter) DelAll(id socket.SocketId) {
	rooms := a.Adapter.SocketRooms(id)
	a.Adapter.DelAll(id)
	if rooms == nil {
		a.client.Raw.Del(a.ctx, a.socketSetKey(id))
		return
	}
	for _, room := range rooms.Keys() {
		a.client.Raw.SRem(a.ctx, a.roomSetKey(room), string(id))
	}
	a.client.Raw.Del(a.ctx, a.socketSetKey(id))
}

func (a *Adapter) roomSetKey(room socket.Room) string {
	return a.opts.KeyPrefix + ":rooms:" + a.nsp.Name() + ":" + string(room)
}

func (a *Adapter) socketSetKey(id socket.SocketId) string {
	return a.opts.KeyPrefix + ":sockets:" + a.nsp.Name() + ":" + string(id)
}

// AddSockets and DelSockets apply locally only; they are not relayed to
// other nodes. Cross-node targeted join/leave RPCs (the teacher's
// REMOTE_JOIN/REMOTE_LEAVE) are out of scope for this adapter: spec.md §4.E's
// contract only requires broadcast and registry semantics to cross the
// wire, not arbitrary remote room mutation.
func (a *Adapter) AddSockets(opts *socket.BroadcastOptions, rooms []socket.Room) {
	a.Adapter.AddSockets(opts, rooms)
}

func (a *Adapter) DelSockets(opts *socket.BroadcastOptions, rooms []socket.Room) {
	a.Adapter.DelSockets(opts, rooms)
}

// DisconnectSockets disconnects local matches and, unless Local is set,
// asks every other node to do the same against its own local sockets.
func (a *Adapter) DisconnectSockets(opts *socket.BroadcastOptions, closeConn bool) {
	a.Adapter.DisconnectSockets(opts, closeConn)
	if opts != nil && opts.Flags != nil && opts.Flags.Local {
		return
	}
	payload, err := utils.MsgPack().Encode(&request{
		ServerId: a.uid,
		Type:     requestRemoteDisconnect,
		Opts:     encodeOptions(opts),
		Close:    closeConn,
	})
	if err != nil {
		redisLog.Debugf("redis adapter: encoding disconnect request: %v", err)
		return
	}
	if err := a.client.Raw.Publish(a.ctx, a.requestChannel, payload).Err(); err != nil {
		a.client.Emit("error", err)
	}
}

// ServerSideEmit publishes packet on the request channel for every other
// node's namespace, which re-emits it locally via EmitReserved; if the caller wants
// acknowledgement from every node, use ServerSideEmitWithAck instead.
func (a *Adapter) ServerSideEmit(packet []any) error {
	payload, err := utils.MsgPack().Encode(&request{
		ServerId: a.uid,
		Type:     requestServerSideEmit,
		Data:     packet,
	})
	if err != nil {
		return fmt.Errorf("adapters/redis: encoding server-side-emit: %w", err)
	}
	return a.client.Raw.Publish(a.ctx, a.requestChannel, payload).Err()
}

// ServerSideEmitWithAck publishes packet and waits (up to
// opts.RequestsTimeout) for one response per other known server, returning
// whatever arrived before the deadline along with ErrTimeout if any node
// never answered.
func (a *Adapter) ServerSideEmitWithAck(packet []any) ([]any, error) {
	numOthers := a.ServerCount() - 1
	if numOthers <= 0 {
		return nil, nil
	}

	requestId, err := utils.Base64Id().GenerateId()
	if err != nil {
		return nil, fmt.Errorf("adapters/redis: generating request id: %w", err)
	}
	ch := make(chan response, numOthers)
	a.mu.Lock()
	a.pending[requestId] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, requestId)
		a.mu.Unlock()
	}()

	payload, err := utils.MsgPack().Encode(&request{
		ServerId:  a.uid,
		RequestId: requestId,
		Type:      requestServerSideEmit,
		Data:      packet,
	})
	if err != nil {
		return nil, fmt.Errorf("adapters/redis: encoding server-side-emit: %w", err)
	}
	if err := a.client.Raw.Publish(a.ctx, a.requestChannel, payload).Err(); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(a.opts.RequestsTimeout)
	defer deadline.Stop()
	var out []any
	for i := int64(0); i < numOthers; i++ {
		select {
		case resp := <-ch:
			out = append(out, resp.Data)
		case <-deadline.C:
			return out, ErrTimeout
		}
	}
	return out, nil
}

func (a *Adapter) Close() {
	a.cancel()
	for _, sub := range a.subs {
		sub.Close()
	}
	a.unregisterServer()
	a.Adapter.Close()
}

// ServerCount reports the number of server ids in this namespace's server
// registry set, including this one (1 if the set is empty or unreadable).
func (a *Adapter) ServerCount() int64 {
	ids, err := a.client.Raw.SMembers(a.ctx, a.serverSetKey()).Result()
	if err != nil {
		a.client.Emit("error", err)
		return 1
	}
	if len(ids) == 0 {
		return 1
	}
	return int64(len(ids))
}

func (a *Adapter) serverSetKey() string {
	return a.opts.KeyPrefix + ":servers:" + a.nsp.Name()
}

func (a *Adapter) registerServer() {
	key := a.opts.KeyPrefix + ":server:" + a.nsp.Name() + ":" + a.uid
	if err := a.client.Raw.Set(a.ctx, key, time.Now().Unix(), a.opts.ttl()).Err(); err != nil {
		a.client.Emit("error", err)
		return
	}
	if err := a.client.Raw.SAdd(a.ctx, a.serverSetKey(), a.uid).Err(); err != nil {
		a.client.Emit("error", err)
	}
	a.client.Raw.Expire(a.ctx, a.serverSetKey(), a.opts.ttl())
}

func (a *Adapter) unregisterServer() {
	key := a.opts.KeyPrefix + ":server:" + a.nsp.Name() + ":" + a.uid
	a.client.Raw.Del(context.Background(), key)
	a.client.Raw.SRem(context.Background(), a.serverSetKey(), a.uid)
}

// heartbeatLoop refreshes this node's registry entry every
// HeartbeatInterval until Close cancels the adapter's context (spec.md
// §4.E "TTL ... refreshed on heartbeat").
func (a *Adapter) heartbeatLoop() {
	ticker := time.NewTicker(a.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.registerServer()
		}
	}
}

// ErrTimeout is returned by ServerSideEmitWithAck-style waits that exceed
// opts.RequestsTimeout before every other node has replied.
var ErrTimeout = errors.New("adapters/redis: timed out waiting for cluster responses")
