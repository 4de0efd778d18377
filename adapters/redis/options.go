package redis

import "time"

const (
	defaultKeyPrefix         = "socket.io"
	defaultHeartbeatInterval = 30 * time.Second
	defaultRequestsTimeout   = 5 * time.Second
)

// Options configures a RedisAdapter. All fields have spec.md §4.E defaults.
type Options struct {
	// KeyPrefix namespaces every Redis key and channel this adapter touches.
	KeyPrefix string
	// HeartbeatInterval is the server's own heartbeat period; TTLs on room,
	// socket, and server-registry keys are 3x this value.
	HeartbeatInterval time.Duration
	// RequestsTimeout bounds how long ServerSideEmitWithAck waits for every
	// other node to reply before giving up on the stragglers.
	RequestsTimeout time.Duration
}

// DefaultOptions returns the spec.md §4.E defaults.
func DefaultOptions() *Options {
	return &Options{
		KeyPrefix:         defaultKeyPrefix,
		HeartbeatInterval: defaultHeartbeatInterval,
		RequestsTimeout:   defaultRequestsTimeout,
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
	return &out
}

func (o *Options) ttl() time.Duration {
	return 3 * o.HeartbeatInterval
}
