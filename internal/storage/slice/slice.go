// Package slice holds a materialised region of the world together with the
// set of its coordinates that have been written since capture.
package slice

import (
	"context"
	"fmt"

	"github.com/iggydv12/voxelink/internal/transport"
	"github.com/iggydv12/voxelink/internal/world"
)

// Slice is an immutable snapshot of a box, kept palette-compressed. Its
// decay set records which coordinates can no longer be trusted.
type Slice struct {
	region world.Region
	decay  map[world.Coord]struct{}
}

// Materialize fetches box in bulk. On error no Slice is returned.
func Materialize(ctx context.Context, f transport.RegionFetcher, box world.Box) (*Slice, error) {
	r, err := f.FetchRegion(ctx, box)
	if err != nil {
		return nil, err
	}
	if r.Box != box {
		return nil, fmt.Errorf("region %s: got %s", box, r.Box)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &Slice{
		region: r,
		decay:  make(map[world.Coord]struct{}),
	}, nil
}

// Bounds returns the captured box.
func (s *Slice) Bounds() world.Box { return s.region.Box }

// MarkDecayed records that c was written after capture. Coordinates outside
// the bounds are ignored.
func (s *Slice) MarkDecayed(c world.Coord) {
	if s.region.Box.Contains(c) {
		s.decay[c] = struct{}{}
	}
}

// Decayed reports whether c was written after capture.
func (s *Slice) Decayed(c world.Coord) bool {
	_, ok := s.decay[c]
	return ok
}

// DecayedCount returns the size of the decay set.
func (s *Slice) DecayedCount() int { return len(s.decay) }

// Lookup returns the captured block at c if the slice is still
// authoritative for it.
func (s *Slice) Lookup(c world.Coord) (world.Block, bool) {
	if s.Decayed(c) {
		return world.Block{}, false
	}
	return s.region.At(c)
}

// Len returns the number of captured coordinates.
func (s *Slice) Len() int { return len(s.region.Indices) }

// Palette returns the distinct blocks captured.
func (s *Slice) Palette() []world.Block { return s.region.Palette }
