package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iggydv12/voxelink/internal/storage/cache"
	"github.com/iggydv12/voxelink/internal/world"
)

var stone = world.MustParseBlock("stone")

func TestPutGet(t *testing.T) {
	c := cache.New(4)
	c.Put(world.C(1, 2, 3), stone)

	got, ok := c.Get(world.C(1, 2, 3))
	require.True(t, ok)
	assert.Equal(t, stone, got)

	_, ok = c.Get(world.C(3, 2, 1))
	assert.False(t, ok)
}

func TestEvictionBound(t *testing.T) {
	const maxSize, extra = 16, 5
	c := cache.New(maxSize)
	for i := 0; i < maxSize+extra; i++ {
		c.Put(world.C(i, 0, 0), stone)
		assert.LessOrEqual(t, c.Len(), maxSize)
	}

	assert.Equal(t, maxSize, c.Len())
	for i := 0; i < maxSize+extra; i++ {
		assert.Equal(t, i >= extra, c.Contains(world.C(i, 0, 0)), "coord %d", i)
	}
}

func TestRePutRefreshesRecency(t *testing.T) {
	c := cache.New(3)
	c.Put(world.C(0, 0, 0), stone)
	c.Put(world.C(1, 0, 0), stone)
	c.Put(world.C(2, 0, 0), stone)

	dirt := world.MustParseBlock("dirt")
	c.Put(world.C(0, 0, 0), dirt)
	c.Put(world.C(3, 0, 0), stone)

	assert.False(t, c.Contains(world.C(1, 0, 0)))
	got, ok := c.Get(world.C(0, 0, 0))
	require.True(t, ok)
	assert.Equal(t, dirt, got)
	assert.Equal(t, []world.Coord{world.C(2, 0, 0), world.C(0, 0, 0), world.C(3, 0, 0)}, c.Keys())
}

func TestGetDoesNotRefresh(t *testing.T) {
	c := cache.New(2)
	c.Put(world.C(0, 0, 0), stone)
	c.Put(world.C(1, 0, 0), stone)
	c.Get(world.C(0, 0, 0))
	c.Put(world.C(2, 0, 0), stone)

	assert.False(t, c.Contains(world.C(0, 0, 0)))
	assert.True(t, c.Contains(world.C(1, 0, 0)))
}

func TestSetMaxSizeShrinks(t *testing.T) {
	c := cache.New(10)
	for i := 0; i < 10; i++ {
		c.Put(world.C(i, 0, 0), stone)
	}
	c.SetMaxSize(4)
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 4, c.MaxSize())
	assert.Equal(t, []world.Coord{world.C(6, 0, 0), world.C(7, 0, 0), world.C(8, 0, 0), world.C(9, 0, 0)}, c.Keys())

	c.SetMaxSize(8)
	c.Put(world.C(10, 0, 0), stone)
	assert.Equal(t, 5, c.Len())
}

func TestZeroSizeHoldsNothing(t *testing.T) {
	c := cache.New(0)
	c.Put(world.C(0, 0, 0), stone)
	assert.Equal(t, 0, c.Len())

	c = cache.New(-3)
	assert.Equal(t, 0, c.MaxSize())
}

func TestClear(t *testing.T) {
	c := cache.New(8)
	c.Put(world.C(0, 0, 0), stone)
	c.Put(world.C(1, 0, 0), stone)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
	assert.False(t, c.Contains(world.C(0, 0, 0)))

	c.Put(world.C(5, 5, 5), stone)
	assert.Equal(t, 1, c.Len())
}

func TestShrinkToZeroThenGrow(t *testing.T) {
	c := cache.New(4)
	c.Put(world.C(0, 0, 0), stone)
	c.SetMaxSize(0)
	assert.Equal(t, 0, c.Len())
	c.Put(world.C(1, 0, 0), stone)
	assert.Equal(t, 0, c.Len())

	c.SetMaxSize(2)
	c.Put(world.C(1, 0, 0), stone)
	c.Put(world.C(2, 0, 0), stone)
	c.Put(world.C(3, 0, 0), stone)
	assert.Equal(t, []world.Coord{world.C(2, 0, 0), world.C(3, 0, 0)}, c.Keys())
}
