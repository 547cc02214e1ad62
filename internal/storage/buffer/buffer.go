// Package buffer accumulates pending block writes until they are flushed.
package buffer

import (
	"slices"

	"github.com/iggydv12/voxelink/internal/world"
)

// DefaultLimit is the pending count that trips an automatic flush.
const DefaultLimit = 1024

// Buffer holds at most one pending block per coordinate. A later Stage for
// the same coordinate replaces the earlier value in place.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	limit   int
	order   []world.Coord // first-stage order
	pending map[world.Coord]world.Block
}

// New creates a Buffer. A limit below 1 is treated as 1.
func New(limit int) *Buffer {
	return &Buffer{
		limit:   max(limit, 1),
		pending: make(map[world.Coord]world.Block),
	}
}

// Stage records block as the pending value for coord and reports whether the
// pending count has reached the limit.
func (b *Buffer) Stage(coord world.Coord, block world.Block) bool {
	if _, ok := b.pending[coord]; !ok {
		b.order = append(b.order, coord)
	}
	b.pending[coord] = block
	return b.Full()
}

// Restage puts back placements that could not be transmitted. A coordinate
// that has been staged again since the drain keeps its newer value.
func (b *Buffer) Restage(ps ...world.Placement) {
	for _, p := range ps {
		if _, ok := b.pending[p.Coord]; ok {
			continue
		}
		b.order = append(b.order, p.Coord)
		b.pending[p.Coord] = p.Block
	}
}

// Remove drops the pending write for coord, if any.
func (b *Buffer) Remove(coord world.Coord) {
	if _, ok := b.pending[coord]; !ok {
		return
	}
	delete(b.pending, coord)
	if i := slices.Index(b.order, coord); i >= 0 {
		b.order = slices.Delete(b.order, i, i+1)
	}
}

// Drain empties the buffer and returns its contents in first-stage order.
func (b *Buffer) Drain() []world.Placement {
	if len(b.order) == 0 {
		return nil
	}
	out := make([]world.Placement, len(b.order))
	for i, c := range b.order {
		out[i] = world.Placement{Coord: c, Block: b.pending[c]}
	}
	b.order = nil
	b.pending = make(map[world.Coord]world.Block)
	return out
}

// Lookup returns the pending block for coord.
func (b *Buffer) Lookup(coord world.Coord) (world.Block, bool) {
	block, ok := b.pending[coord]
	return block, ok
}

// Coords returns the pending coordinates in first-stage order.
func (b *Buffer) Coords() []world.Coord {
	return append([]world.Coord(nil), b.order...)
}

// Full reports whether the pending count meets the limit.
func (b *Buffer) Full() bool { return len(b.pending) >= b.limit }

// Len returns the pending count.
func (b *Buffer) Len() int { return len(b.pending) }

// Limit returns the auto-flush threshold.
func (b *Buffer) Limit() int { return b.limit }

// SetLimit changes the auto-flush threshold. It never flushes by itself.
func (b *Buffer) SetLimit(n int) { b.limit = max(n, 1) }
