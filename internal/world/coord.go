// Package world holds the value types shared by every layer: coordinates,
// boxes, and block values.
package world

import "fmt"

// Coord is an integer position in world space.
type Coord struct {
	X, Y, Z int
}

// C is shorthand for Coord{x, y, z}.
func C(x, y, z int) Coord {
	return Coord{X: x, Y: y, Z: z}
}

// Add returns the component-wise sum.
func (c Coord) Add(o Coord) Coord {
	return Coord{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

func (c Coord) String() string {
	return fmt.Sprintf("%d %d %d", c.X, c.Y, c.Z)
}

// Box is an inclusive axis-aligned volume. Min <= Max on every axis.
type Box struct {
	Min Coord `json:"min" cbor:"1,keyasint"`
	Max Coord `json:"max" cbor:"2,keyasint"`
}

// NewBox builds a normalised box from two arbitrary corners.
func NewBox(a, b Coord) Box {
	return Box{
		Min: Coord{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Coord{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// Size returns the extent along each axis.
func (b Box) Size() Coord {
	return Coord{X: b.Max.X - b.Min.X + 1, Y: b.Max.Y - b.Min.Y + 1, Z: b.Max.Z - b.Min.Z + 1}
}

// Volume returns the number of coordinates inside the box.
func (b Box) Volume() int {
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Contains reports whether c lies inside the box.
func (b Box) Contains(c Coord) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

// ContainsBox reports whether o lies entirely inside the box.
func (b Box) ContainsBox(o Box) bool {
	return b.Contains(o.Min) && b.Contains(o.Max)
}

// Index returns the linear x-major offset of c, or -1 if c is outside.
// Region payloads are laid out in this order.
func (b Box) Index(c Coord) int {
	if !b.Contains(c) {
		return -1
	}
	s := b.Size()
	return ((c.X-b.Min.X)*s.Y+(c.Y-b.Min.Y))*s.Z + (c.Z - b.Min.Z)
}

// Each visits every coordinate in Index order. Returning false stops early.
func (b Box) Each(fn func(Coord) bool) {
	for x := b.Min.X; x <= b.Max.X; x++ {
		for y := b.Min.Y; y <= b.Max.Y; y++ {
			for z := b.Min.Z; z <= b.Max.Z; z++ {
				if !fn(Coord{X: x, Y: y, Z: z}) {
					return
				}
			}
		}
	}
}

func (b Box) String() string {
	return fmt.Sprintf("[%s .. %s]", b.Min, b.Max)
}
