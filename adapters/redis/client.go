// Package redis implements the cluster Adapter contract (spec.md §4.E) on
// top of Redis pub/sub and TTL-refreshed sets, grounded on the teacher's
// adapters/redis module.
package redis

import (
	"context"

	rds "github.com/redis/go-redis/v9"
	"github.com/netpulse-io/socketio/pkg/types"
)

// Client wraps a redis.UniversalClient with an EventEmitter so callers can
// observe connection-level errors the way the rest of this repo observes
// transport and session errors ("error" events rather than panics).
type Client struct {
	types.EventEmitter

	Raw     rds.UniversalClient
	Context context.Context
}

// NewClient wraps an already-configured Redis client. ctx governs the
// lifetime of every subscription started by an adapter built on top of it.
func NewClient(ctx context.Context, raw rds.UniversalClient) *Client {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Client{
		EventEmitter: types.NewEventEmitter(),
		Raw:          raw,
		Context:      ctx,
	}
}
