// Package transport defines the contract between the block access layer and
// the remote world store.
package transport

import (
	"context"

	"github.com/iggydv12/voxelink/internal/world"
)

// Ack is the opaque acknowledgement id returned for a durable write.
// Zero means the write was staged but not yet acknowledged.
type Ack uint64

// RegionFetcher reads a whole box in bulk.
type RegionFetcher interface {
	// FetchRegion returns a valid region covering exactly box.
	FetchRegion(ctx context.Context, box world.Box) (world.Region, error)
}

// Transport talks to the remote world store.
//
// Implementations must treat a repeated identical write as idempotent: the
// access layer re-sends placements whose batch failed.
type Transport interface {
	RegionFetcher
	// TransmitWrite places a single block.
	TransmitWrite(ctx context.Context, p world.Placement) (Ack, error)
	// TransmitBatch places many blocks in one request.
	TransmitBatch(ctx context.Context, ps []world.Placement) (Ack, error)
	// FetchRead reads a single block.
	FetchRead(ctx context.Context, c world.Coord) (world.Block, error)
	// SetBuildArea sets the valid coordinate envelope.
	SetBuildArea(ctx context.Context, box world.Box) error
	// BuildArea returns the current coordinate envelope.
	BuildArea(ctx context.Context) (world.Box, error)
}
