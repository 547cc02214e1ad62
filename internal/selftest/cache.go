package selftest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iggydv12/voxelink/internal/storage"
	"github.com/iggydv12/voxelink/internal/world"
)

// pattern pairs a marker block on layer 0 with the block expected above it.
type pattern struct {
	marker, payload world.Block
}

var (
	patterns = []pattern{
		{world.MustParseBlock("birch_fence"), world.MustParseBlock("stripped_birch_log")},
		{world.MustParseBlock("dark_oak_fence"), world.MustParseBlock("stripped_dark_oak_log")},
	}
	wipeBlock  = world.MustParseBlock("shroomlight")
	floorBlock = world.MustParseBlock("bedrock")
)

// cacheBed is the state of one CacheTest run.
type cacheBed struct {
	r      *Runner
	tester *storage.Interface
	origin world.Coord
	size   int
}

var (
	cachingOn  = storage.Options{Caching: true, Buffering: true}
	cachingOff = storage.Options{Buffering: true}
)

// CacheTest scatters a two-layer pattern, wipes the payload layer, restores
// it from the client cache alone and checks nothing was lost. The cache is
// filled four ways: by setBlock, by getBlock, by a random mix, and by reads
// served from a global world slice.
func (r *Runner) CacheTest(ctx context.Context) error {
	size := r.cfg.Size
	tester := storage.New(r.transport, storage.Config{
		Options:      cachingOff,
		CacheMaxSize: size * size,
	}, r.logger)
	tester.SetBufferLimit(size * size)
	area, err := tester.RequestBuildArea(ctx)
	if err != nil {
		return err
	}
	if s := area.Size(); s.X < size || s.Y < 3 || s.Z < size {
		return fmt.Errorf("build area %s too small for a %dx3x%d test bed", area, size, size)
	}
	bed := &cacheBed{r: r, tester: tester, origin: area.Min, size: size}
	defer tester.ReleaseSlice()

	// preparation
	if err := bed.fillLayers(ctx, 2, 2, floorBlock); err != nil {
		return err
	}
	if err := bed.fillLayers(ctx, 0, 1, world.Air); err != nil {
		return err
	}

	// scatter
	for x := 0; x < size; x++ {
		for z := 0; z < size; z++ {
			if err := bed.place(ctx, x, z); err != nil {
				return err
			}
		}
	}
	if _, err := tester.SendBlocks(ctx); err != nil {
		return err
	}

	runs := []struct {
		name    string
		prepare func(context.Context) error
	}{
		{"cache updated via setBlock", func(context.Context) error { return nil }},
		{"cache updated via getBlock", bed.refillFromReads},
		{"cache updated via random methods", bed.muddleCaching},
		{"cache updated via world slice", bed.refillFromSlice},
	}
	for n, run := range runs {
		r.logger.Info("cache test run", zap.Int("run", n+1), zap.String("mode", run.name))
		if err := run.prepare(ctx); err != nil {
			return fmt.Errorf("run %d: %w", n+1, err)
		}
		if err := bed.wipe(ctx); err != nil {
			return fmt.Errorf("run %d: %w", n+1, err)
		}
		if err := bed.restoreFromCache(ctx); err != nil {
			return fmt.Errorf("run %d: %w", n+1, err)
		}
		if err := bed.checkDiscrepancies(ctx); err != nil {
			return fmt.Errorf("run %d: %w", n+1, err)
		}
		r.logger.Info("no discrepancies found", zap.Int("run", n+1), zap.Any("stats", tester.Stats()))
	}

	// cleanup
	if err := bed.fillLayers(ctx, 0, 1, floorBlock); err != nil {
		return err
	}
	_, err = tester.SendBlocks(ctx)
	return err
}

func (b *cacheBed) at(x, y, z int) world.Coord {
	return b.origin.Add(world.C(x, y, z))
}

func (b *cacheBed) fillLayers(ctx context.Context, y0, y1 int, block world.Block) error {
	ctx = storage.WithOptions(ctx, cachingOff)
	if _, err := b.tester.Fill(ctx, b.at(0, y0, 0), b.at(b.size-1, y1, b.size-1), block); err != nil {
		return err
	}
	_, err := b.tester.SendBlocks(ctx)
	return err
}

// place writes a random pattern at column x, z. Only the payload is cached.
func (b *cacheBed) place(ctx context.Context, x, z int) error {
	p := patterns[b.r.rng.Intn(len(patterns))]
	if _, err := b.tester.SetBlock(storage.WithOptions(ctx, cachingOn), b.at(x, 1, z), p.payload); err != nil {
		return err
	}
	_, err := b.tester.SetBlock(storage.WithOptions(ctx, cachingOff), b.at(x, 0, z), p.marker)
	return err
}

// wipe overwrites the payload layer on the server without touching the cache.
func (b *cacheBed) wipe(ctx context.Context) error {
	return b.fillLayers(ctx, 1, 1, wipeBlock)
}

// restoreFromCache writes every payload back using the value the client
// remembers.
func (b *cacheBed) restoreFromCache(ctx context.Context) error {
	on := storage.WithOptions(ctx, cachingOn)
	misses := 0
	for x := 0; x < b.size; x++ {
		for z := 0; z < b.size; z++ {
			c := b.at(x, 1, z)
			if !b.tester.Cache().Contains(c) {
				misses++
			}
			block, err := b.tester.GetBlock(on, c)
			if err != nil {
				return err
			}
			if _, err := b.tester.SetBlock(on, c, block); err != nil {
				return err
			}
		}
	}
	if misses > 0 {
		b.r.logger.Warn("payloads missing from cache", zap.Int("misses", misses))
	}
	_, err := b.tester.SendBlocks(on)
	return err
}

func (b *cacheBed) checkDiscrepancies(ctx context.Context) error {
	off := storage.WithOptions(ctx, cachingOff)
	for x := 0; x < b.size; x++ {
		for z := 0; z < b.size; z++ {
			payload, err := b.tester.GetBlock(off, b.at(x, 1, z))
			if err != nil {
				return err
			}
			if payload == wipeBlock {
				return &ConsistencyError{Coord: b.at(x, 1, z), Got: payload, Reason: "block was no longer in memory"}
			}
			marker, err := b.tester.GetBlock(off, b.at(x, 0, z))
			if err != nil {
				return err
			}
			want, ok := payloadFor(marker)
			if !ok {
				return &ConsistencyError{Coord: b.at(x, 0, z), Got: marker, Reason: "unexpected marker"}
			}
			if payload != want {
				return &ConsistencyError{Coord: b.at(x, 1, z), Want: want, Got: payload, Reason: "cache test failed"}
			}
		}
	}
	return nil
}

// refillFromReads clears the cache and refills it through getBlock.
func (b *cacheBed) refillFromReads(ctx context.Context) error {
	b.tester.Cache().Clear()
	on := storage.WithOptions(ctx, cachingOn)
	for x := 0; x < b.size; x++ {
		for z := 0; z < b.size; z++ {
			if _, err := b.tester.GetBlock(on, b.at(x, 1, z)); err != nil {
				return err
			}
		}
	}
	return nil
}

// muddleCaching randomly rewrites or re-reads columns with caching on.
func (b *cacheBed) muddleCaching(ctx context.Context) error {
	on := storage.WithOptions(ctx, cachingOn)
	for j := 0; j < 4*b.size; j++ {
		x, z := b.r.rng.Intn(b.size), b.r.rng.Intn(b.size)
		if b.r.rng.Intn(2) == 0 {
			if err := b.place(ctx, x, z); err != nil {
				return err
			}
			if _, err := b.tester.SendBlocks(ctx); err != nil {
				return err
			}
			continue
		}
		if _, err := b.tester.GetBlock(on, b.at(x, 1, z)); err != nil {
			return err
		}
	}
	return nil
}

// refillFromSlice rewrites columns with caching off, drops the cache and
// refills it from a slice of the whole build area.
func (b *cacheBed) refillFromSlice(ctx context.Context) error {
	off := storage.WithOptions(ctx, cachingOff)
	for j := 0; j < 4*b.size; j++ {
		x, z := b.r.rng.Intn(b.size), b.r.rng.Intn(b.size)
		if b.r.rng.Intn(2) == 0 {
			p := patterns[b.r.rng.Intn(len(patterns))]
			if _, err := b.tester.SetBlock(off, b.at(x, 1, z), p.payload); err != nil {
				return err
			}
			if _, err := b.tester.SetBlock(off, b.at(x, 0, z), p.marker); err != nil {
				return err
			}
			if _, err := b.tester.SendBlocks(off); err != nil {
				return err
			}
			continue
		}
		if _, err := b.tester.GetBlock(off, b.at(x, 1, z)); err != nil {
			return err
		}
	}

	b.tester.Cache().Clear()
	s, err := b.tester.MakeGlobalSlice(ctx)
	if err != nil {
		return err
	}
	before := b.tester.Stats().NetworkReads
	if err := b.refillFromReads(ctx); err != nil {
		return err
	}
	if reads := b.tester.Stats().NetworkReads - before; reads > 0 {
		b.r.logger.Warn("slice did not serve every read", zap.Int("networkReads", reads), zap.Int("decayed", s.DecayedCount()))
	}
	return nil
}

func payloadFor(marker world.Block) (world.Block, bool) {
	for _, p := range patterns {
		if p.marker == marker {
			return p.payload, true
		}
	}
	return world.Block{}, false
}
