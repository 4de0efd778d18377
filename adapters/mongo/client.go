// Package mongo implements the cluster Adapter contract (spec.md §4.E) on
// top of a TTL-indexed message log and server/room collections in
// MongoDB. The upstream retrieval pack ships only a bare go.mod for the
// teacher's sibling mongo adapter module (no source), so this package is
// grounded on adapters/redis's structure (the sibling adapter module that
// does have code to imitate: wrap a memory adapter, add only what must
// cross the process boundary) plus spec.md §4.E's own prose for the
// MongoDB-specific collection/TTL/change-stream design.
package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/netpulse-io/socketio/pkg/types"
)

// Client wraps a mongo.Database the same way adapters/redis.Client wraps a
// Redis UniversalClient: an EventEmitter for "error" events plus the
// context governing every subscription/change-stream started on top of it.
type Client struct {
	types.EventEmitter

	DB      *mongo.Database
	Context context.Context
}

// NewClient wraps an already-connected database handle.
func NewClient(ctx context.Context, db *mongo.Database) *Client {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Client{
		EventEmitter: types.NewEventEmitter(),
		DB:           db,
		Context:      ctx,
	}
}
