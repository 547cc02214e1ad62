// Package transporttest provides an in-memory Transport for tests.
package transporttest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iggydv12/voxelink/internal/transport"
	"github.com/iggydv12/voxelink/internal/world"
)

// ErrInjected is returned by operations failed through the Fail* hooks.
var ErrInjected = errors.New("injected transport failure")

// Calls counts round trips by kind.
type Calls struct {
	Reads   int
	Regions int
	Writes  int
	Batches int
}

// Fake is a concurrency-safe in-memory world store.
type Fake struct {
	mu      sync.Mutex
	blocks  map[world.Coord]world.Block
	area    world.Box
	seq     transport.Ack
	calls   Calls
	written []world.Placement

	// FailBatch, when set, is consulted before each batch is applied.
	FailBatch func(ps []world.Placement) error
	// FailWrite, when set, is consulted before each single write.
	FailWrite func(p world.Placement) error
	// FailRead, when set, is consulted before each point or region read.
	FailRead func() error
}

// New creates a Fake whose build area is area and whose every coordinate
// reads as air until written.
func New(area world.Box) *Fake {
	return &Fake{
		blocks: make(map[world.Coord]world.Block),
		area:   area,
	}
}

var _ transport.Transport = (*Fake)(nil)

func (f *Fake) TransmitWrite(_ context.Context, p world.Placement) (transport.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Writes++
	if f.FailWrite != nil {
		if err := f.FailWrite(p); err != nil {
			return 0, err
		}
	}
	return f.apply(p), nil
}

func (f *Fake) TransmitBatch(_ context.Context, ps []world.Placement) (transport.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Batches++
	if f.FailBatch != nil {
		if err := f.FailBatch(ps); err != nil {
			return 0, err
		}
	}
	var ack transport.Ack
	for _, p := range ps {
		ack = f.apply(p)
	}
	return ack, nil
}

func (f *Fake) FetchRead(_ context.Context, c world.Coord) (world.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Reads++
	if f.FailRead != nil {
		if err := f.FailRead(); err != nil {
			return world.Block{}, err
		}
	}
	return f.at(c), nil
}

func (f *Fake) FetchRegion(_ context.Context, box world.Box) (world.Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Regions++
	if f.FailRead != nil {
		if err := f.FailRead(); err != nil {
			return world.Region{}, err
		}
	}
	out := make([]world.Block, 0, box.Volume())
	box.Each(func(c world.Coord) bool {
		out = append(out, f.at(c))
		return true
	})
	return world.EncodeRegion(box, out), nil
}

func (f *Fake) SetBuildArea(_ context.Context, box world.Box) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.area = box
	return nil
}

func (f *Fake) BuildArea(context.Context) (world.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.area, nil
}

// Set writes directly into the store without counting a call, simulating
// an edit made by someone else.
func (f *Fake) Set(c world.Coord, b world.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[c] = b
}

// At returns the stored block without counting a call.
func (f *Fake) At(c world.Coord) world.Block {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.at(c)
}

// Calls returns the round-trip counters.
func (f *Fake) Calls() Calls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Written returns every placement applied so far, in application order.
func (f *Fake) Written() []world.Placement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]world.Placement(nil), f.written...)
}

// Reset zeroes the counters and the write log.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = Calls{}
	f.written = nil
}

func (f *Fake) apply(p world.Placement) transport.Ack {
	f.blocks[p.Coord] = p.Block
	f.written = append(f.written, p)
	f.seq++
	return f.seq
}

func (f *Fake) at(c world.Coord) world.Block {
	if b, ok := f.blocks[c]; ok {
		return b
	}
	return world.Air
}

// FailAfter returns a hook that succeeds n times and then fails every call.
func FailAfter[T any](n int) func(T) error {
	var mu sync.Mutex
	calls := 0
	return func(T) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls > n {
			return fmt.Errorf("call %d: %w", calls, ErrInjected)
		}
		return nil
	}
}
