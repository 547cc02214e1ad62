package wire_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iggydv12/voxelink/internal/api/wire"
	"github.com/iggydv12/voxelink/internal/world"
)

func TestParsePlacement(t *testing.T) {
	p, err := wire.ParsePlacement(" -4 70 2147483647 oak_stairs[facing=north] ")
	require.NoError(t, err)
	assert.Equal(t, world.C(-4, 70, math.MaxInt32), p.Coord)
	assert.Equal(t, world.MustParseBlock("oak_stairs[facing=north]"), p.Block)

	back, err := wire.ParsePlacement(wire.FormatPlacement(p))
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestParsePlacementRejects(t *testing.T) {
	for _, line := range []string{
		"1 2 stone",
		"a 2 3 stone",
		"4294967296 0 0 stone",
		"0 -2147483649 0 stone",
		"0 0 99999999999999999999 stone",
	} {
		_, err := wire.ParsePlacement(line)
		assert.Error(t, err, line)
	}
}

func TestCheckCoord(t *testing.T) {
	assert.NoError(t, wire.CheckCoord(world.C(math.MinInt32, 0, math.MaxInt32)))
	assert.Error(t, wire.CheckCoord(world.C(math.MaxInt32+1, 0, 0)))
	assert.Error(t, wire.CheckCoord(world.C(0, math.MinInt32-1, 0)))
}

func TestBuildAreaBox(t *testing.T) {
	box := world.NewBox(world.C(5, 0, -3), world.C(-1, 9, 3))
	assert.Equal(t, box, wire.FromBox(box).Box())
	assert.Equal(t, world.C(-1, 0, -3), wire.FromBox(box).Box().Min)
}
