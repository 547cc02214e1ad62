package worldstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iggydv12/voxelink/internal/transport"
	"github.com/iggydv12/voxelink/internal/world"
	"github.com/iggydv12/voxelink/internal/worldstore"
)

var defaultArea = world.NewBox(world.C(0, 0, 0), world.C(255, 255, 255))

func setupPebble(t *testing.T) (*worldstore.PebbleStore, string) {
	t.Helper()
	dir := t.TempDir() + "/test-pebble"
	s := worldstore.NewPebbleStore(dir, world.Air, defaultArea, zap.NewNop())
	require.NoError(t, s.Init())
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func TestPebblePutGet(t *testing.T) {
	s, _ := setupPebble(t)
	chest := world.MustParseBlock("chest[facing=east]{Items:[]}")

	acks, err := s.Put([]world.Placement{
		{Coord: world.C(1, 2, 3), Block: chest},
		{Coord: world.C(-4, 0, 9), Block: world.MustParseBlock("stone")},
	})
	require.NoError(t, err)
	assert.Equal(t, []transport.Ack{1, 2}, acks)

	got, err := s.Get(world.C(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, chest, got)

	got, err = s.Get(world.C(7, 7, 7))
	require.NoError(t, err)
	assert.Equal(t, world.Air, got)
}

func TestPebbleOverwrite(t *testing.T) {
	s, _ := setupPebble(t)
	c := world.C(0, 0, 0)
	_, err := s.Put([]world.Placement{{Coord: c, Block: world.MustParseBlock("stone")}})
	require.NoError(t, err)
	_, err = s.Put([]world.Placement{{Coord: c, Block: world.MustParseBlock("dirt")}})
	require.NoError(t, err)

	got, err := s.Get(c)
	require.NoError(t, err)
	assert.Equal(t, "minecraft:dirt", got.Name)
}

func TestPebbleRegionOrder(t *testing.T) {
	s, _ := setupPebble(t)
	box := world.NewBox(world.C(-1, 0, -1), world.C(1, 1, 1))
	glass := world.MustParseBlock("glass")

	var ps []world.Placement
	box.Each(func(c world.Coord) bool {
		if (c.X+c.Y+c.Z)%2 == 0 {
			ps = append(ps, world.Placement{Coord: c, Block: glass})
		}
		return true
	})
	// Outside the box on every side, must not leak into the region.
	ps = append(ps,
		world.Placement{Coord: world.C(0, 0, 2), Block: glass},
		world.Placement{Coord: world.C(0, 2, 0), Block: glass},
		world.Placement{Coord: world.C(2, 0, 0), Block: glass},
	)
	_, err := s.Put(ps)
	require.NoError(t, err)

	region, err := s.Region(box)
	require.NoError(t, err)
	require.Len(t, region, box.Volume())
	box.Each(func(c world.Coord) bool {
		want := world.Air
		if (c.X+c.Y+c.Z)%2 == 0 {
			want = glass
		}
		assert.Equal(t, want, region[box.Index(c)], "coord %s", c)
		return true
	})
}

func TestPebbleSeqSurvivesReopen(t *testing.T) {
	s, dir := setupPebble(t)
	_, err := s.Put([]world.Placement{{Coord: world.C(0, 0, 0), Block: world.Air}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2 := worldstore.NewPebbleStore(dir, world.Air, defaultArea, zap.NewNop())
	require.NoError(t, s2.Init())
	defer s2.Close()
	acks, err := s2.Put([]world.Placement{{Coord: world.C(0, 0, 0), Block: world.Air}})
	require.NoError(t, err)
	assert.Equal(t, []transport.Ack{2}, acks)
}

func TestPebbleBuildArea(t *testing.T) {
	s, _ := setupPebble(t)
	got, err := s.BuildArea()
	require.NoError(t, err)
	assert.Equal(t, defaultArea, got)

	box := world.NewBox(world.C(10, 0, 10), world.C(20, 64, 20))
	require.NoError(t, s.SetBuildArea(box))
	got, err = s.BuildArea()
	require.NoError(t, err)
	assert.Equal(t, box, got)
}

func TestPebbleTruncate(t *testing.T) {
	s, _ := setupPebble(t)
	_, err := s.Put([]world.Placement{{Coord: world.C(3, 3, 3), Block: world.MustParseBlock("stone")}})
	require.NoError(t, err)
	require.NoError(t, s.Truncate())

	got, err := s.Get(world.C(3, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, world.Air, got)
}

func TestPebbleClosed(t *testing.T) {
	s := worldstore.NewPebbleStore(t.TempDir(), world.Air, defaultArea, zap.NewNop())
	_, err := s.Get(world.C(0, 0, 0))
	assert.ErrorIs(t, err, worldstore.ErrClosed)
}
