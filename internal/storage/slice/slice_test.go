package slice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iggydv12/voxelink/internal/storage/slice"
	"github.com/iggydv12/voxelink/internal/transport/transporttest"
	"github.com/iggydv12/voxelink/internal/world"
)

var (
	area  = world.NewBox(world.C(0, 0, 0), world.C(15, 15, 15))
	stone = world.MustParseBlock("stone")
)

func TestMaterializeOneRoundTrip(t *testing.T) {
	f := transporttest.New(area)
	f.Set(world.C(1, 2, 3), stone)

	box := world.NewBox(world.C(0, 0, 0), world.C(3, 3, 3))
	s, err := slice.Materialize(context.Background(), f, box)
	require.NoError(t, err)

	assert.Equal(t, 1, f.Calls().Regions)
	assert.Equal(t, box.Volume(), s.Len())
	assert.Equal(t, box, s.Bounds())
	assert.ElementsMatch(t, []world.Block{world.Air, stone}, s.Palette())

	got, ok := s.Lookup(world.C(1, 2, 3))
	require.True(t, ok)
	assert.Equal(t, stone, got)

	got, ok = s.Lookup(world.C(0, 0, 0))
	require.True(t, ok)
	assert.Equal(t, world.Air, got)
	assert.Equal(t, 0, f.Calls().Reads)
}

func TestLookupOutsideBounds(t *testing.T) {
	f := transporttest.New(area)
	s, err := slice.Materialize(context.Background(), f, world.NewBox(world.C(0, 0, 0), world.C(1, 1, 1)))
	require.NoError(t, err)

	_, ok := s.Lookup(world.C(2, 0, 0))
	assert.False(t, ok)
}

func TestDecayedIsNotAuthoritative(t *testing.T) {
	f := transporttest.New(area)
	s, err := slice.Materialize(context.Background(), f, world.NewBox(world.C(0, 0, 0), world.C(1, 1, 1)))
	require.NoError(t, err)

	s.MarkDecayed(world.C(1, 1, 1))
	s.MarkDecayed(world.C(9, 9, 9))

	_, ok := s.Lookup(world.C(1, 1, 1))
	assert.False(t, ok)
	assert.True(t, s.Decayed(world.C(1, 1, 1)))
	assert.Equal(t, 1, s.DecayedCount())

	_, ok = s.Lookup(world.C(0, 0, 0))
	assert.True(t, ok)
}

func TestMaterializeFailure(t *testing.T) {
	f := transporttest.New(area)
	f.FailRead = func() error { return transporttest.ErrInjected }

	s, err := slice.Materialize(context.Background(), f, area)
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, transporttest.ErrInjected))
}

type shortFetcher struct{}

func (shortFetcher) FetchRegion(_ context.Context, box world.Box) (world.Region, error) {
	return world.Region{Box: box, Palette: []world.Block{world.Air}, Indices: []uint32{0}}, nil
}

type shiftedFetcher struct{}

func (shiftedFetcher) FetchRegion(_ context.Context, box world.Box) (world.Region, error) {
	box.Min.X++
	box.Max.X++
	return world.EncodeRegion(box, make([]world.Block, box.Volume())), nil
}

func TestMaterializeRejectsShortRegion(t *testing.T) {
	s, err := slice.Materialize(context.Background(), shortFetcher{}, world.NewBox(world.C(0, 0, 0), world.C(1, 0, 0)))
	assert.Nil(t, s)
	assert.Error(t, err)
}

func TestMaterializeRejectsWrongBox(t *testing.T) {
	s, err := slice.Materialize(context.Background(), shiftedFetcher{}, world.NewBox(world.C(0, 0, 0), world.C(1, 0, 0)))
	assert.Nil(t, s)
	assert.Error(t, err)
}
