// Package storage provides the Interface facade that decides, per call,
// whether a block comes from the cache, the write buffer, the world slice or
// the network.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iggydv12/voxelink/internal/storage/buffer"
	"github.com/iggydv12/voxelink/internal/storage/cache"
	"github.com/iggydv12/voxelink/internal/storage/slice"
	"github.com/iggydv12/voxelink/internal/transport"
	"github.com/iggydv12/voxelink/internal/world"
)

const (
	DefaultBatchSize        = 4096
	DefaultFlushConcurrency = 2
)

// Config sizes the stores of an Interface.
type Config struct {
	Options
	BufferLimit      int
	CacheMaxSize     int
	BatchSize        int
	FlushConcurrency int
	// BuildArea, when nil, is requested from the transport on first use.
	BuildArea *world.Box
}

// Stats counts where reads were served from and how much was written.
type Stats struct {
	CacheHits    int
	BufferHits   int
	SliceHits    int
	NetworkReads int
	Flushes      int
	Transmitted  int
}

// Interface is the single entry point for block reads and writes.
// It is not safe for concurrent use.
type Interface struct {
	transport        transport.Transport
	cache            *cache.Cache
	buffer           *buffer.Buffer
	slice            *slice.Slice
	area             *world.Box
	defaults         Options
	batchSize        int
	flushConcurrency int
	stats            Stats
	logger           *zap.Logger
}

// New creates an Interface over t.
func New(t transport.Transport, cfg Config, logger *zap.Logger) *Interface {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushConcurrency <= 0 {
		cfg.FlushConcurrency = DefaultFlushConcurrency
	}
	i := &Interface{
		transport:        t,
		cache:            cache.New(cfg.CacheMaxSize),
		buffer:           buffer.New(cfg.BufferLimit),
		defaults:         cfg.Options,
		batchSize:        cfg.BatchSize,
		flushConcurrency: cfg.FlushConcurrency,
		logger:           logger.With(zap.String("session", uuid.NewString())),
	}
	if cfg.BuildArea != nil {
		area := *cfg.BuildArea
		i.area = &area
	}
	return i
}

// SetCaching changes the default caching flag for subsequent calls.
func (i *Interface) SetCaching(on bool) { i.defaults.Caching = on }

// SetBuffering changes the default buffering flag for subsequent calls.
func (i *Interface) SetBuffering(on bool) { i.defaults.Buffering = on }

// Caching returns the default caching flag.
func (i *Interface) Caching() bool { return i.defaults.Caching }

// Buffering returns the default buffering flag.
func (i *Interface) Buffering() bool { return i.defaults.Buffering }

// Cache exposes the block cache for resizing and clearing.
func (i *Interface) Cache() *cache.Cache { return i.cache }

// SetBufferLimit changes the pending count that trips an automatic flush.
func (i *Interface) SetBufferLimit(n int) { i.buffer.SetLimit(n) }

// Pending returns the number of buffered writes.
func (i *Interface) Pending() int { return i.buffer.Len() }

// Slice returns the live world slice, or nil.
func (i *Interface) Slice() *slice.Slice { return i.slice }

// Stats returns a copy of the read/write counters.
func (i *Interface) Stats() Stats { return i.stats }

// options resolves the flags once per operation.
func (i *Interface) options(ctx context.Context) Options {
	if o, ok := OptionsFrom(ctx); ok {
		return o
	}
	return i.defaults
}

// SetBuildArea sets the build area on the remote and locally.
func (i *Interface) SetBuildArea(ctx context.Context, box world.Box) error {
	if err := i.transport.SetBuildArea(ctx, box); err != nil {
		return &TransportError{Op: "setBuildArea", Coords: []world.Coord{box.Min, box.Max}, Err: err}
	}
	i.area = &box
	i.logger.Info("build area set", zap.Stringer("area", box))
	return nil
}

// RequestBuildArea refreshes the build area from the remote.
func (i *Interface) RequestBuildArea(ctx context.Context) (world.Box, error) {
	box, err := i.transport.BuildArea(ctx)
	if err != nil {
		return world.Box{}, &TransportError{Op: "requestBuildArea", Err: err}
	}
	i.area = &box
	return box, nil
}

// BuildArea returns the known build area.
func (i *Interface) BuildArea() (world.Box, bool) {
	if i.area == nil {
		return world.Box{}, false
	}
	return *i.area, true
}

func (i *Interface) buildArea(ctx context.Context) (world.Box, error) {
	if i.area != nil {
		return *i.area, nil
	}
	return i.RequestBuildArea(ctx)
}

func (i *Interface) checkBounds(ctx context.Context, cs ...world.Coord) error {
	area, err := i.buildArea(ctx)
	if err != nil {
		return err
	}
	for _, c := range cs {
		if !area.Contains(c) {
			return &OutOfBoundsError{Coord: c, Area: area}
		}
	}
	return nil
}

// checkBox rejects a box that is not entirely inside the build area.
func (i *Interface) checkBox(ctx context.Context, box world.Box) error {
	area, err := i.buildArea(ctx)
	if err != nil {
		return err
	}
	if area.ContainsBox(box) {
		return nil
	}
	c := box.Max
	if !area.Contains(box.Min) {
		c = box.Min
	}
	return &OutOfBoundsError{Coord: c, Area: area}
}

// SetBlock writes block at c. Buffered writes return a zero Ack unless they
// trip an automatic flush.
func (i *Interface) SetBlock(ctx context.Context, c world.Coord, block world.Block) (transport.Ack, error) {
	opts := i.options(ctx)
	if err := i.checkBounds(ctx, c); err != nil {
		return 0, err
	}

	if opts.Buffering {
		full := i.buffer.Stage(c, block)
		i.recordWrite(opts, c, block)
		if full {
			return i.SendBlocks(ctx)
		}
		return 0, nil
	}

	ack, err := i.transport.TransmitWrite(ctx, world.Placement{Coord: c, Block: block})
	if err != nil {
		return 0, &TransportError{Op: "setBlock", Coords: []world.Coord{c}, Block: &block, Err: err}
	}
	i.stats.Transmitted++
	i.recordWrite(opts, c, block)
	return ack, nil
}

// recordWrite updates the local view after a write was staged or
// acknowledged. Writes made with caching off leave existing cache entries alone.
// An acknowledged direct write supersedes any older pending write for c.
func (i *Interface) recordWrite(opts Options, c world.Coord, block world.Block) {
	if !opts.Buffering {
		i.buffer.Remove(c)
	}
	if opts.Caching {
		i.cache.Put(c, block)
	}
	if i.slice != nil {
		i.slice.MarkDecayed(c)
	}
}

// GetBlock reads the block at c from the cheapest source that is correct:
// cache (when caching), pending write, world slice, then network. With
// caching on, slice and network results are cached.
func (i *Interface) GetBlock(ctx context.Context, c world.Coord) (world.Block, error) {
	opts := i.options(ctx)
	if err := i.checkBounds(ctx, c); err != nil {
		return world.Block{}, err
	}

	if opts.Caching {
		if b, ok := i.cache.Get(c); ok {
			i.stats.CacheHits++
			return b, nil
		}
	}
	if b, ok := i.buffer.Lookup(c); ok {
		i.stats.BufferHits++
		return b, nil
	}
	if i.slice != nil {
		if b, ok := i.slice.Lookup(c); ok {
			i.stats.SliceHits++
			if opts.Caching {
				i.cache.Put(c, b)
			}
			return b, nil
		}
	}

	b, err := i.transport.FetchRead(ctx, c)
	if err != nil {
		return world.Block{}, &TransportError{Op: "getBlock", Coords: []world.Coord{c}, Err: err}
	}
	i.stats.NetworkReads++
	if opts.Caching {
		i.cache.Put(c, b)
	}
	return b, nil
}

// Fill writes block to every coordinate of the inclusive box spanned by a
// and b. The whole box is bounds-checked before anything is written.
func (i *Interface) Fill(ctx context.Context, a, b world.Coord, block world.Block) (transport.Ack, error) {
	opts := i.options(ctx)
	box := world.NewBox(a, b)
	if err := i.checkBox(ctx, box); err != nil {
		return 0, err
	}

	if opts.Buffering {
		var (
			last transport.Ack
			err  error
		)
		box.Each(func(c world.Coord) bool {
			full := i.buffer.Stage(c, block)
			i.recordWrite(opts, c, block)
			if full {
				last, err = i.SendBlocks(ctx)
			}
			return err == nil
		})
		return last, err
	}

	var last transport.Ack
	batch := make([]world.Placement, 0, min(box.Volume(), i.batchSize))
	send := func() error {
		ack, err := i.transport.TransmitBatch(ctx, batch)
		if err != nil {
			return &TransportError{Op: "fill", Coords: placementCoords(batch), Block: &block, Err: err}
		}
		last = max(last, ack)
		i.stats.Transmitted += len(batch)
		for _, p := range batch {
			i.recordWrite(opts, p.Coord, p.Block)
		}
		batch = batch[:0]
		return nil
	}

	var err error
	box.Each(func(c world.Coord) bool {
		batch = append(batch, world.Placement{Coord: c, Block: block})
		if len(batch) == i.batchSize {
			err = send()
		}
		return err == nil
	})
	if err == nil && len(batch) > 0 {
		err = send()
	}
	return last, err
}

// SendBlocks transmits every pending write. Placements of a batch that
// fails are put back into the buffer so the caller can retry. With nothing
// pending it does nothing.
func (i *Interface) SendBlocks(ctx context.Context) (transport.Ack, error) {
	ps := i.buffer.Drain()
	if len(ps) == 0 {
		return 0, nil
	}

	batches := chunk(ps, i.batchSize)
	acks := make([]transport.Ack, len(batches))
	errs := make([]error, len(batches))

	var g errgroup.Group
	g.SetLimit(i.flushConcurrency)
	for n, batch := range batches {
		n, batch := n, batch
		g.Go(func() error {
			acks[n], errs[n] = i.transport.TransmitBatch(ctx, batch)
			return errs[n]
		})
	}
	_ = g.Wait()

	var (
		last   transport.Ack
		failed []world.Placement
	)
	for n, batch := range batches {
		if errs[n] != nil {
			failed = append(failed, batch...)
			continue
		}
		last = max(last, acks[n])
		i.stats.Transmitted += len(batch)
	}
	i.stats.Flushes++

	if len(failed) > 0 {
		i.buffer.Restage(failed...)
		err := errors.Join(errs...)
		i.logger.Warn("flush incomplete, placements re-staged",
			zap.Int("sent", len(ps)-len(failed)),
			zap.Int("restaged", len(failed)),
			zap.Error(err),
		)
		return last, &TransportError{Op: "sendBlocks", Coords: placementCoords(failed), Err: err}
	}

	i.logger.Debug("flushed buffer", zap.Int("placements", len(ps)), zap.Int("batches", len(batches)))
	return last, nil
}

// MaterializeSlice captures box in one round trip and makes it the live
// slice. On failure the previous slice stays live.
func (i *Interface) MaterializeSlice(ctx context.Context, box world.Box) (*slice.Slice, error) {
	if err := i.checkBox(ctx, box); err != nil {
		return nil, err
	}
	s, err := slice.Materialize(ctx, i.transport, box)
	if err != nil {
		return nil, &TransportError{Op: "materializeSlice", Coords: []world.Coord{box.Min, box.Max}, Err: err}
	}
	// Pending writes have not reached the remote, so the captured values
	// at those coordinates are already stale.
	for _, c := range i.buffer.Coords() {
		s.MarkDecayed(c)
	}
	i.slice = s
	i.logger.Info("world slice materialized",
		zap.Stringer("bounds", box),
		zap.Int("blocks", s.Len()),
		zap.Int("decayed", s.DecayedCount()),
	)
	return s, nil
}

// MakeGlobalSlice materialises the whole build area.
func (i *Interface) MakeGlobalSlice(ctx context.Context) (*slice.Slice, error) {
	area, err := i.buildArea(ctx)
	if err != nil {
		return nil, err
	}
	return i.MaterializeSlice(ctx, area)
}

// ReleaseSlice discards the live slice and its decay set.
func (i *Interface) ReleaseSlice() { i.slice = nil }

// Close flushes pending writes.
func (i *Interface) Close(ctx context.Context) error {
	_, err := i.SendBlocks(ctx)
	return err
}

func chunk(ps []world.Placement, size int) [][]world.Placement {
	out := make([][]world.Placement, 0, (len(ps)+size-1)/size)
	for len(ps) > size {
		out = append(out, ps[:size:size])
		ps = ps[size:]
	}
	return append(out, ps)
}

func placementCoords(ps []world.Placement) []world.Coord {
	cs := make([]world.Coord, len(ps))
	for n, p := range ps {
		cs[n] = p.Coord
	}
	return cs
}
