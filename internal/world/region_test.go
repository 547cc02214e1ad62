package world_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iggydv12/voxelink/internal/world"
)

func coordsOf(b world.Box) []world.Coord {
	var out []world.Coord
	b.Each(func(c world.Coord) bool {
		out = append(out, c)
		return true
	})
	return out
}

func TestBoxSplitKeepsIndexOrder(t *testing.T) {
	box := world.NewBox(world.C(-2, 0, 3), world.C(3, 4, 9))
	for _, limit := range []int{box.Volume(), 100, 35, 34, 7, 3, 1} {
		t.Run(fmt.Sprint(limit), func(t *testing.T) {
			parts := box.Split(limit)
			var got []world.Coord
			for _, p := range parts {
				assert.LessOrEqual(t, p.Volume(), limit)
				assert.True(t, box.ContainsBox(p), "part %s", p)
				got = append(got, coordsOf(p)...)
			}
			assert.Equal(t, coordsOf(box), got)
		})
	}
}

func TestBoxSplitSmallBox(t *testing.T) {
	box := world.NewBox(world.C(0, 0, 0), world.C(1, 1, 1))
	assert.Equal(t, []world.Box{box}, box.Split(1<<22))
}

func TestJoinRegions(t *testing.T) {
	stone, dirt, glass := world.MustParseBlock("stone"), world.MustParseBlock("dirt"), world.MustParseBlock("glass")
	palette := []world.Block{stone, dirt, glass, world.Air}

	box := world.NewBox(world.C(0, 0, 0), world.C(4, 3, 2))
	blocks := make([]world.Block, box.Volume())
	for i := range blocks {
		blocks[i] = palette[(i*7)%len(palette)]
	}

	var parts []world.Region
	for _, p := range box.Split(5) {
		sub := make([]world.Block, 0, p.Volume())
		p.Each(func(c world.Coord) bool {
			sub = append(sub, blocks[box.Index(c)])
			return true
		})
		parts = append(parts, world.EncodeRegion(p, sub))
	}

	joined, err := world.JoinRegions(box, parts)
	require.NoError(t, err)
	assert.Len(t, joined.Palette, len(palette))
	got, err := joined.Blocks()
	require.NoError(t, err)
	assert.Equal(t, blocks, got)

	b, ok := joined.At(world.C(4, 3, 2))
	require.True(t, ok)
	assert.Equal(t, blocks[box.Volume()-1], b)
	_, ok = joined.At(world.C(5, 0, 0))
	assert.False(t, ok)
}

func TestJoinRegionsShort(t *testing.T) {
	box := world.NewBox(world.C(0, 0, 0), world.C(1, 0, 0))
	part := world.EncodeRegion(world.NewBox(world.C(0, 0, 0), world.C(0, 0, 0)), []world.Block{world.Air})
	_, err := world.JoinRegions(box, []world.Region{part})
	assert.Error(t, err)
}

func TestRegionValidate(t *testing.T) {
	box := world.NewBox(world.C(0, 0, 0), world.C(1, 0, 0))
	assert.Error(t, world.Region{Box: box, Palette: []world.Block{world.Air}, Indices: []uint32{0}}.Validate())
	assert.Error(t, world.Region{Box: box, Palette: []world.Block{world.Air}, Indices: []uint32{0, 1}}.Validate())
	assert.NoError(t, world.Region{Box: box, Palette: []world.Block{world.Air}, Indices: []uint32{0, 0}}.Validate())
}
