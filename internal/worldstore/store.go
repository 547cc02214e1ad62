// Package worldstore defines the BlockStore interface for the authoritative
// world served over the REST API.
package worldstore

import (
	"errors"

	"github.com/iggydv12/voxelink/internal/transport"
	"github.com/iggydv12/voxelink/internal/world"
)

// ErrClosed is returned by operations on a store that is not open.
var ErrClosed = errors.New("world store not open")

// BlockStore is the interface for the single-node authoritative block store.
type BlockStore interface {
	// Init opens/creates the underlying store.
	Init() error
	// Close flushes and closes the store.
	Close() error
	// Get returns the block at c, or the default block if never written.
	Get(c world.Coord) (world.Block, error)
	// Put applies placements atomically and returns one ack per placement.
	Put(ps []world.Placement) ([]transport.Ack, error)
	// Region returns box.Volume() blocks in box.Index order.
	Region(box world.Box) ([]world.Block, error)
	// BuildArea returns the stored build area.
	BuildArea() (world.Box, error)
	// SetBuildArea persists a new build area.
	SetBuildArea(box world.Box) error
	// Truncate deletes all stored blocks.
	Truncate() error
}
