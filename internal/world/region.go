package world

import "fmt"

// Region is a palette-compressed block volume laid out in Box.Index order.
type Region struct {
	Box     Box      `cbor:"1,keyasint"`
	Palette []Block  `cbor:"2,keyasint"`
	Indices []uint32 `cbor:"3,keyasint"`
}

// EncodeRegion palette-compresses blocks laid out over box.
func EncodeRegion(box Box, blocks []Block) Region {
	r := Region{Box: box, Indices: make([]uint32, len(blocks))}
	seen := make(map[Block]uint32)
	for i, b := range blocks {
		r.Indices[i] = r.intern(seen, b)
	}
	return r
}

func (r *Region) intern(seen map[Block]uint32, b Block) uint32 {
	idx, ok := seen[b]
	if !ok {
		idx = uint32(len(r.Palette))
		seen[b] = idx
		r.Palette = append(r.Palette, b)
	}
	return idx
}

// Validate checks that r covers its box and every index hits the palette.
func (r Region) Validate() error {
	if len(r.Indices) != r.Box.Volume() {
		return fmt.Errorf("region %s: %d indices, want %d", r.Box, len(r.Indices), r.Box.Volume())
	}
	for _, idx := range r.Indices {
		if int(idx) >= len(r.Palette) {
			return fmt.Errorf("region %s: palette index %d out of range", r.Box, idx)
		}
	}
	return nil
}

// At returns the block at c. The region must be valid.
func (r Region) At(c Coord) (Block, bool) {
	i := r.Box.Index(c)
	if i < 0 || i >= len(r.Indices) {
		return Block{}, false
	}
	return r.Palette[r.Indices[i]], true
}

// Blocks expands the region.
func (r Region) Blocks() ([]Block, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := make([]Block, len(r.Indices))
	for i, idx := range r.Indices {
		out[i] = r.Palette[idx]
	}
	return out, nil
}

// JoinRegions stitches parts, given in the order Box.Split returns them,
// back into one region over box with a shared palette.
func JoinRegions(box Box, parts []Region) (Region, error) {
	out := Region{Box: box, Indices: make([]uint32, 0, box.Volume())}
	seen := make(map[Block]uint32)
	for _, p := range parts {
		if err := p.Validate(); err != nil {
			return Region{}, err
		}
		remap := make([]uint32, len(p.Palette))
		for i, b := range p.Palette {
			remap[i] = out.intern(seen, b)
		}
		for _, idx := range p.Indices {
			out.Indices = append(out.Indices, remap[idx])
		}
	}
	if len(out.Indices) != box.Volume() {
		return Region{}, fmt.Errorf("region %s: parts cover %d blocks, want %d", box, len(out.Indices), box.Volume())
	}
	return out, nil
}

// Split cuts b into boxes of at most maxVolume blocks whose Index orders,
// concatenated, equal b's own. It cuts along x first, then y, then z.
func (b Box) Split(maxVolume int) []Box {
	maxVolume = max(maxVolume, 1)
	if b.Volume() <= maxVolume {
		return []Box{b}
	}
	s := b.Size()
	var out []Box
	switch {
	case s.Y*s.Z <= maxVolume:
		step := maxVolume / (s.Y * s.Z)
		for x := b.Min.X; x <= b.Max.X; x += step {
			out = append(out, Box{Min: C(x, b.Min.Y, b.Min.Z), Max: C(min(x+step-1, b.Max.X), b.Max.Y, b.Max.Z)})
		}
	case s.Z <= maxVolume:
		step := maxVolume / s.Z
		for x := b.Min.X; x <= b.Max.X; x++ {
			for y := b.Min.Y; y <= b.Max.Y; y += step {
				out = append(out, Box{Min: C(x, y, b.Min.Z), Max: C(x, min(y+step-1, b.Max.Y), b.Max.Z)})
			}
		}
	default:
		for x := b.Min.X; x <= b.Max.X; x++ {
			for y := b.Min.Y; y <= b.Max.Y; y++ {
				for z := b.Min.Z; z <= b.Max.Z; z += maxVolume {
					out = append(out, Box{Min: C(x, y, z), Max: C(x, y, min(z+maxVolume-1, b.Max.Z))})
				}
			}
		}
	}
	return out
}
