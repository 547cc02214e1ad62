package selftest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iggydv12/voxelink/internal/lookup"
	"github.com/iggydv12/voxelink/internal/selftest"
	"github.com/iggydv12/voxelink/internal/storage"
	"github.com/iggydv12/voxelink/internal/transport/transporttest"
	"github.com/iggydv12/voxelink/internal/world"
)

var area = world.NewBox(world.C(0, 0, 0), world.C(15, 15, 15))

func newRunner(t *testing.T, fake *transporttest.Fake, cfg selftest.Config) *selftest.Runner {
	t.Helper()
	cat, err := lookup.Default()
	require.NoError(t, err)
	if cfg.Size == 0 {
		cfg.Size = 8
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	return selftest.NewRunner(fake, cat, cfg, zaptest.NewLogger(t))
}

func TestSuitePasses(t *testing.T) {
	fake := transporttest.New(area)
	rep, err := newRunner(t, fake, selftest.Config{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Tests)
	assert.True(t, rep.Passed(), "failures: %v", rep.Failures)

	// the test bed is left as bedrock
	for _, c := range []world.Coord{world.C(0, 0, 0), world.C(7, 1, 7), world.C(3, 2, 5)} {
		assert.Equal(t, world.MustParseBlock("bedrock"), fake.At(c), c.String())
	}
	assert.Equal(t, world.Air, fake.At(world.C(8, 1, 8)))
}

func TestSuitePassesOffOrigin(t *testing.T) {
	box := world.NewBox(world.C(-20, 60, 100), world.C(-10, 70, 110))
	fake := transporttest.New(area)
	rep, err := newRunner(t, fake, selftest.Config{Size: 6, Seed: 7, BuildArea: &box}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed(), "failures: %v", rep.Failures)
	assert.Equal(t, world.MustParseBlock("bedrock"), fake.At(world.C(-15, 61, 105)))
}

func TestCacheTestSurvivesEveryRun(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 99} {
		fake := transporttest.New(area)
		r := newRunner(t, fake, selftest.Config{Size: 5, Seed: seed})
		assert.NoError(t, r.CacheTest(context.Background()), "seed %d", seed)
	}
}

func TestCacheTestBuildAreaTooSmall(t *testing.T) {
	fake := transporttest.New(world.NewBox(world.C(0, 0, 0), world.C(3, 3, 3)))
	err := newRunner(t, fake, selftest.Config{Size: 8}).CacheTest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestCacheTestTransportFailure(t *testing.T) {
	fake := transporttest.New(area)
	fake.FailBatch = transporttest.FailAfter[[]world.Placement](3)

	rep, err := newRunner(t, fake, selftest.Config{}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "cache", rep.Failures[0].Test)
	assert.True(t, errors.Is(rep.Failures[0].Err, storage.ErrTransport))
	assert.True(t, errors.Is(rep.Failures[0].Err, transporttest.ErrInjected))
}

func TestVerifyPaletteDuplicates(t *testing.T) {
	cat, err := lookup.Parse([]byte("version: test\npalette:\n  a: [stone, minecraft:stone, dirt]\n"))
	require.NoError(t, err)
	fake := transporttest.New(area)
	r := selftest.NewRunner(fake, cat, selftest.Config{Seed: 1}, zaptest.NewLogger(t))

	err = r.VerifyPalette(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1/3")
	assert.Contains(t, err.Error(), "version test")
	assert.Equal(t, world.Air, fake.At(world.C(0, 0, 0)))
}

func TestVerifyPaletteWriteFailure(t *testing.T) {
	cat, err := lookup.Parse([]byte("palette:\n  a: [stone, dirt, glass]\n"))
	require.NoError(t, err)
	fake := transporttest.New(area)
	fake.FailWrite = func(p world.Placement) error {
		if p.Block.BaseName() == "dirt" {
			return transporttest.ErrInjected
		}
		return nil
	}
	r := selftest.NewRunner(fake, cat, selftest.Config{Seed: 1}, zaptest.NewLogger(t))

	err = r.VerifyPalette(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1/3")
}

func TestConsistencyError(t *testing.T) {
	err := &selftest.ConsistencyError{
		Coord:  world.C(1, 2, 3),
		Want:   world.MustParseBlock("stripped_birch_log"),
		Got:    world.MustParseBlock("shroomlight"),
		Reason: "cache test failed",
	}
	assert.Equal(t, "cache test failed at 1 2 3: want minecraft:stripped_birch_log, got minecraft:shroomlight", err.Error())

	err = &selftest.ConsistencyError{Coord: world.C(0, 1, 0), Got: world.MustParseBlock("shroomlight"), Reason: "block was no longer in memory"}
	assert.Equal(t, "block was no longer in memory at 0 1 0 (got minecraft:shroomlight)", err.Error())
}
