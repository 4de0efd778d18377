package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
	"github.com/netpulse-io/socketio/pkg/utils"
	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/servers/socket"
)

var mongoLog = log.NewLog("adapter:mongo")

// Adapter is a cluster-wide realization of socket.Adapter backed by
// MongoDB (spec.md §4.E "MongoDB adapter"). Local bookkeeping and
// same-process fan-out are delegated to an embedded socket.NewMemoryAdapter,
// the same structure adapters/redis uses; only what crosses the process
// boundary — the broadcast log, the server registry, and best-effort
// persisted room membership — lives here.
type Adapter struct {
	socket.Adapter

	nsp    socket.Namespace
	client *Client
	opts   *Options
	uid    string

	messages *mongo.Collection
	servers  *mongo.Collection
	rooms    *mongo.Collection

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a socket.AdapterFactory bound to client/opts.
func New(client *Client, opts *Options) socket.AdapterFactory {
	return func(nsp socket.Namespace) socket.Adapter {
		a, err := NewAdapter(nsp, client, opts)
		if err != nil {
			mongoLog.Errorf("failed to build mongo adapter for namespace %s: %v", nsp.Name(), err)
			return socket.NewMemoryAdapter(nsp)
		}
		return a
	}
}

// NewAdapter constructs and initializes a Mongo-backed Adapter for nsp.
func NewAdapter(nsp socket.Namespace, client *Client, opts *Options) (*Adapter, error) {
	opts = opts.withDefaults()
	uid, err := utils.Base64Id().GenerateId()
	if err != nil {
		return nil, fmt.Errorf("mongo adapter: generating server id: %w", err)
	}

	ctx, cancel := context.WithCancel(client.Context)
	a := &Adapter{
		Adapter:  socket.NewMemoryAdapter(nsp),
		nsp:      nsp,
		client:   client,
		opts:     opts,
		uid:      uid,
		messages: client.DB.Collection(opts.messagesCollection()),
		servers:  client.DB.Collection(opts.serversCollection()),
		rooms:    client.DB.Collection(opts.roomsCollection()),
		ctx:      ctx,
		cancel:   cancel,
	}
	if err := a.ensureIndexes(); err != nil {
		cancel()
		return nil, err
	}
	a.Init()
	return a, nil
}

// ensureIndexes creates the TTL indices spec.md §4.E requires: messages
// expire after 60s, server heartbeats after 3x the heartbeat interval.
func (a *Adapter) ensureIndexes() error {
	messageTTLSeconds := int32(messageTTL.Seconds())
	if _, err := a.messages.Indexes().CreateOne(a.ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(messageTTLSeconds),
	}); err != nil {
		return fmt.Errorf("mongo adapter: creating messages TTL index: %w", err)
	}

	serverTTLSeconds := int32(a.opts.ttl().Seconds())
	if _, err := a.servers.Indexes().CreateOne(a.ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "lastHeartbeat", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(serverTTLSeconds),
	}); err != nil {
		return fmt.Errorf("mongo adapter: creating servers TTL index: %w", err)
	}
	return nil
}

// Init registers this server's heartbeat and starts consuming the
// broadcast log, preferring a change stream and falling back to polling
// when the deployment is not a replica set (spec.md §4.E "Subscription").
func (a *Adapter) Init() {
	a.Adapter.Init()
	a.registerServer()
	go a.heartbeatLoop()
	go a.watch()
}

func (a *Adapter) watch() {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
			{Key: "fullDocument.nsp", Value: a.nsp.Name()},
			{Key: "fullDocument.serverId", Value: bson.D{{Key: "$ne", Value: a.uid}}},
		}}},
	}
	stream, err := a.messages.Watch(a.ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		mongoLog.Debugf("mongo adapter: change streams unavailable (%v), falling back to polling", err)
		a.pollLoop()
		return
	}
	defer stream.Close(a.ctx)

	for stream.Next(a.ctx) {
		var event struct {
			FullDocument messageDoc `bson:"fullDocument"`
		}
		if err := stream.Decode(&event); err != nil {
			mongoLog.Debugf("mongo adapter: decoding change event: %v", err)
			continue
		}
		a.handleMessage(event.FullDocument)
	}
}

// pollLoop is the non-replica-set fallback: poll for recent messages every
// PollInterval, de-duplicating by serverId != self and an in-memory
// seen-key set; entries are never removed from that set.
func (a *Adapter) pollLoop() {
	seen := types.NewSet[string]()
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Second)
			cursor, err := a.messages.Find(a.ctx, bson.D{
				{Key: "nsp", Value: a.nsp.Name()},
				{Key: "serverId", Value: bson.D{{Key: "$ne", Value: a.uid}}},
				{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: cutoff}}},
			})
			if err != nil {
				mongoLog.Debugf("mongo adapter: polling messages: %v", err)
				continue
			}
			var docs []messageDoc
			if err := cursor.All(a.ctx, &docs); err != nil {
				mongoLog.Debugf("mongo adapter: decoding polled messages: %v", err)
				continue
			}
			for _, doc := range docs {
				key := doc.ServerId + ":" + doc.RequestId + ":" + doc.CreatedAt.String()
				if seen.Has(key) {
					continue
				}
				seen.Add(key)
				a.handleMessage(doc)
			}
		}
	}
}

func (a *Adapter) handleMessage(doc messageDoc) {
	switch doc.Kind {
	case kindBroadcast:
		if doc.Packet == nil {
			return
		}
		doc.Packet.Nsp = a.nsp.Name()
		a.Adapter.Broadcast(doc.Packet, decodeOptions(doc.Opts))
	case kindDisconnect:
		a.Adapter.DisconnectSockets(decodeOptions(doc.Opts), doc.Close)
	case kindServerSideEmit:
		if len(doc.Data) > 0 {
			if event, ok := doc.Data[0].(string); ok {
				a.nsp.EmitReserved(event, doc.Data[1:]...)
			}
		}
		if doc.RequestId != "" {
			a.publishResponse(doc.RequestId, nil)
		}
	}
}

func (a *Adapter) publishResponse(requestId string, data []any) {
	_, err := a.messages.InsertOne(a.ctx, &responseDoc{
		ServerId:  a.uid,
		Nsp:       a.nsp.Name(),
		RequestId: requestId,
		Data:      data,
		CreatedAt: time.Now(),
	})
	if err != nil {
		mongoLog.Debugf("mongo adapter: publishing response: %v", err)
	}
}

// Broadcast fans out locally and, unless Local is set, logs the envelope
// for other nodes to pick up via the change stream / poll loop.
func (a *Adapter) Broadcast(p *socketparser.Packet, opts *socket.BroadcastOptions) {
	p.Nsp = a.nsp.Name()
	a.logBroadcast(p, opts)
	a.Adapter.Broadcast(p, opts)
}

func (a *Adapter) BroadcastWithAck(p *socketparser.Packet, opts *socket.BroadcastOptions, clientCountCallback func(uint64), ack socket.Ack) {
	p.Nsp = a.nsp.Name()
	a.logBroadcast(p, opts)
	a.Adapter.BroadcastWithAck(p, opts, clientCountCallback, ack)
}

func (a *Adapter) logBroadcast(p *socketparser.Packet, opts *socket.BroadcastOptions) {
	if opts != nil && opts.Flags != nil && opts.Flags.Local {
		return
	}
	_, err := a.messages.InsertOne(a.ctx, &messageDoc{
		ServerId:  a.uid,
		Nsp:       a.nsp.Name(),
		Kind:      kindBroadcast,
		Packet:    p,
		Opts:      encodeOptions(opts),
		CreatedAt: time.Now(),
	})
	if err != nil {
		a.client.Emit("error", err)
	}
}

// AddAll joins locally and mirrors the membership in the rooms collection
// (spec.md §4.E "<prefix>_rooms (room and per-socket documents...)").
func (a *Adapter) AddAll(id socket.SocketId, roomSet *types.Set[socket.Room]) {
	a.Adapter.AddAll(id, roomSet)
	if roomSet == nil {
		return
	}
	now := time.Now()
	for _, room := range roomSet.Keys() {
		roomKey := a.nsp.Name() + ":" + string(room)
		_, err := a.rooms.UpdateOne(a.ctx,
			bson.D{{Key: "_id", Value: roomKey}},
			bson.D{
				{Key: "$addToSet", Value: bson.D{{Key: "sids", Value: string(id)}}},
				{Key: "$set", Value: bson.D{{Key: "nsp", Value: a.nsp.Name()}, {Key: "room", Value: string(room)}, {Key: "updatedAt", Value: now}}},
			},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			mongoLog.Debugf("mongo adapter: join write failed for %s/%s: %v", id, room, err)
		}
	}

	socketKey := a.nsp.Name() + ":socket:" + string(id)
	roomNames := make([]string, 0, roomSet.Len())
	for _, room := range roomSet.Keys() {
		roomNames = append(roomNames, string(room))
	}
	_, err := a.rooms.UpdateOne(a.ctx,
		bson.D{{Key: "_id", Value: socketKey}},
		bson.D{
			{Key: "$addToSet", Value: bson.D{{Key: "rooms", Value: bson.D{{Key: "$each", Value: roomNames}}}}},
			{Key: "$set", Value: bson.D{{Key: "nsp", Value: a.nsp.Name()}, {Key: "sid", Value: string(id)}, {Key: "updatedAt", Value: now}}},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		mongoLog.Debugf("mongo adapter: socket-index write failed for %s: %v", id, err)
	}
}

// Del leaves locally and best-effort mirrors the departure (spec.md §4.E
// "a join/leave write failure is logged and does not abort the operation
// locally").
func (a *Adapter) Del(id socket.SocketId, room socket.Room) {
	a.Adapter.Del(id, room)
	roomKey := a.nsp.Name() + ":" + string(room)
	if _, err := a.rooms.UpdateOne(a.ctx, bson.D{{Key: "_id", Value: roomKey}}, bson.D{{Key: "$pull", Value: bson.D{{Key: "sids", Value: string(id)}}}}); err != nil {
		mongoLog.Debugf("mongo adapter: leave write failed for %s/%s: %v", id, room, err)
	}
	socketKey := a.nsp.Name() + ":socket:" + string(id)
	a.rooms.UpdateOne(a.ctx, bson.D{{Key: "_id", Value: socketKey}}, bson.D{{Key: "$pull", Value: bson.D{{Key: "rooms", Value: string(room)}}}})
}

func (a *Adapter) DelAll(id socket.SocketId) {
	roomSet := a.Adapter.SocketRooms(id)
	a.Adapter.DelAll(id)
	socketKey := a.nsp.Name() + ":socket:" + string(id)
	if roomSet != nil {
		for _, room := range roomSet.Keys() {
			roomKey := a.nsp.Name() + ":" + string(room)
			a.rooms.UpdateOne(a.ctx, bson.D{{Key: "_id", Value: roomKey}}, bson.D{{Key: "$pull", Value: bson.D{{Key: "sids", Value: string(id)}}}})
		}
	}
	a.rooms.DeleteOne(a.ctx, bson.D{{Key: "_id", Value: socketKey}})
}

// AddSockets/DelSockets apply locally only, same simplification
// adapters/redis makes: spec.md §4.E's contract requires broadcast and
// registry state to cross the wire, not arbitrary remote room mutation.
func (a *Adapter) AddSockets(opts *socket.BroadcastOptions, rooms []socket.Room) {
	a.Adapter.AddSockets(opts, rooms)
}

func (a *Adapter) DelSockets(opts *socket.BroadcastOptions, rooms []socket.Room) {
	a.Adapter.DelSockets(opts, rooms)
}

// DisconnectSockets disconnects local matches and, unless Local is set,
// logs a disconnect request for every other node to apply against its own
// local sockets.
func (a *Adapter) DisconnectSockets(opts *socket.BroadcastOptions, closeConn bool) {
	a.Adapter.DisconnectSockets(opts, closeConn)
	if opts != nil && opts.Flags != nil && opts.Flags.Local {
		return
	}
	_, err := a.messages.InsertOne(a.ctx, &messageDoc{
		ServerId:  a.uid,
		Nsp:       a.nsp.Name(),
		Kind:      kindDisconnect,
		Opts:      encodeOptions(opts),
		Close:     closeConn,
		CreatedAt: time.Now(),
	})
	if err != nil {
		a.client.Emit("error", err)
	}
}

// ServerSideEmit logs packet to the message log for every other node's
// namespace to pick up and dispatch via EmitReserved.
func (a *Adapter) ServerSideEmit(packet []any) error {
	_, err := a.messages.InsertOne(a.ctx, &messageDoc{
		ServerId:  a.uid,
		Nsp:       a.nsp.Name(),
		Kind:      kindServerSideEmit,
		Data:      packet,
		CreatedAt: time.Now(),
	})
	return err
}

// ServerSideEmitWithAck logs packet and waits (up to RequestsTimeout) for
// one response document per other known server.
func (a *Adapter) ServerSideEmitWithAck(packet []any) ([]any, error) {
	numOthers := a.ServerCount() - 1
	if numOthers <= 0 {
		return nil, nil
	}

	requestId, err := utils.Base64Id().GenerateId()
	if err != nil {
		return nil, fmt.Errorf("adapters/mongo: generating request id: %w", err)
	}
	ch := make(chan []any, numOthers)

	_, err = a.messages.InsertOne(a.ctx, &messageDoc{
		ServerId:  a.uid,
		Nsp:       a.nsp.Name(),
		Kind:      kindServerSideEmit,
		Data:      packet,
		RequestId: requestId,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	go a.watchResponses(requestId, ch)

	deadline := time.NewTimer(a.opts.RequestsTimeout)
	defer deadline.Stop()
	var out []any
	for i := int64(0); i < numOthers; i++ {
		select {
		case data := <-ch:
			out = append(out, data)
		case <-deadline.C:
			return out, ErrTimeout
		}
	}
	return out, nil
}

// watchResponses polls the messages collection for responseDoc entries
// carrying requestId and feeds them into ch; the same collection doubles
// as a response channel since both request and response documents flow
// through the TTL-bounded message log.
func (a *Adapter) watchResponses(requestId string, ch chan<- []any) {
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()
	seen := types.NewSet[string]()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			cursor, err := a.messages.Find(a.ctx, bson.D{{Key: "requestId", Value: requestId}, {Key: "serverId", Value: bson.D{{Key: "$ne", Value: a.uid}}}})
			if err != nil {
				continue
			}
			var docs []responseDoc
			if err := cursor.All(a.ctx, &docs); err != nil {
				continue
			}
			for _, doc := range docs {
				if seen.Has(doc.ServerId) {
					continue
				}
				seen.Add(doc.ServerId)
				select {
				case ch <- doc.Data:
				default:
				}
			}
		}
	}
}

func (a *Adapter) Close() {
	a.cancel()
	a.unregisterServer()
	a.Adapter.Close()
}

// ServerCount reports the number of live entries in the server registry,
// including this one.
func (a *Adapter) ServerCount() int64 {
	count, err := a.servers.CountDocuments(a.ctx, bson.D{{Key: "nsp", Value: a.nsp.Name()}})
	if err != nil {
		a.client.Emit("error", err)
		return 1
	}
	if count == 0 {
		return 1
	}
	return count
}

func (a *Adapter) registerServer() {
	key := a.nsp.Name() + ":" + a.uid
	_, err := a.servers.UpdateOne(a.ctx,
		bson.D{{Key: "_id", Value: key}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "nsp", Value: a.nsp.Name()}, {Key: "lastHeartbeat", Value: time.Now()}}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		a.client.Emit("error", err)
	}
}

func (a *Adapter) unregisterServer() {
	key := a.nsp.Name() + ":" + a.uid
	a.servers.DeleteOne(context.Background(), bson.D{{Key: "_id", Value: key}})
}

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

// ErrTimeout is returned by ServerSideEmitWithAck when it gives up waiting
// for the rest of the cluster to reply.
var ErrTimeout = errors.New("adapters/mongo: timed out waiting for cluster responses")
