package mongo

import "time"

const (
	defaultKeyPrefix         = "socket.io"
	defaultHeartbeatInterval = 30 * time.Second
	defaultRequestsTimeout   = 5 * time.Second
	defaultPollInterval      = 500 * time.Millisecond
	messageTTL               = 60 * time.Second
)

// Options configures a Mongo-backed Adapter (spec.md §4.E "MongoDB
// adapter").
type Options struct {
	// KeyPrefix names the three collections: "<prefix>_rooms",
	// "<prefix>_messages", "<prefix>_servers".
	KeyPrefix string
	// HeartbeatInterval is this server's own heartbeat period; server
	// registry documents expire after 3x this value. Room/socket documents
	// have no TTL index and do not expire.
	HeartbeatInterval time.Duration
	// RequestsTimeout bounds ServerSideEmitWithAck's wait for replies.
	RequestsTimeout time.Duration
	// PollInterval is the fallback polling period used when the deployment
	// is not a replica set and change streams are unavailable.
	PollInterval time.Duration
}

// DefaultOptions returns the spec.md §4.E defaults.
func DefaultOptions() *Options {
	return &Options{
		KeyPrefix:         defaultKeyPrefix,
		HeartbeatInterval: defaultHeartbeatInterval,
		RequestsTimeout:   defaultRequestsTimeout,
		PollInterval:      defaultPollInterval,
	}
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.KeyPrefix == "" {
		out.KeyPrefix = defaultKeyPrefix
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = defaultHeartbeatInterval
	}
	if out.RequestsTimeout <= 0 {
		out.RequestsTimeout = defaultRequestsTimeout
	}
	if out.PollInterval <= 0 {
		out.PollInterval = defaultPollInterval
	}
	return &out
}

func (o *Options) ttl() time.Duration {
	return 3 * o.HeartbeatInterval
}

func (o *Options) roomsCollection() string    { return o.KeyPrefix + "_rooms" }
func (o *Options) messagesCollection() string { return o.KeyPrefix + "_messages" }
func (o *Options) serversCollection() string  { return o.KeyPrefix + "_servers" }
