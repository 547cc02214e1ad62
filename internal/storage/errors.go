package storage

import (
	"errors"
	"fmt"

	"github.com/iggydv12/voxelink/internal/world"
)

var (
	// ErrOutOfBounds matches every *OutOfBoundsError.
	ErrOutOfBounds = errors.New("coordinate outside build area")
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport failure")
)

// OutOfBoundsError reports a coordinate outside the build area.
type OutOfBoundsError struct {
	Coord world.Coord
	Area  world.Box
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%s outside build area %s", e.Coord, e.Area)
}

func (e *OutOfBoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// TransportError reports a failed round trip together with what was being
// read or written.
type TransportError struct {
	Op     string
	Coords []world.Coord
	// Block is the attempted value for single-value writes and fills.
	Block *world.Block
	Err   error
}

func (e *TransportError) Error() string {
	var target string
	switch len(e.Coords) {
	case 0:
	case 1:
		target = " " + e.Coords[0].String()
	default:
		target = fmt.Sprintf(" %d coordinates", len(e.Coords))
	}
	if e.Block != nil {
		target += " (" + e.Block.String() + ")"
	}
	return fmt.Sprintf("%s%s: %v", e.Op, target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
