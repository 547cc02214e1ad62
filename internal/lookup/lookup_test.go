package lookup_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iggydv12/voxelink/internal/lookup"
	"github.com/iggydv12/voxelink/internal/world"
)

func TestDefaultCatalogue(t *testing.T) {
	c, err := lookup.Default()
	require.NoError(t, err)

	assert.True(t, c.Known(world.MustParseBlock("shroomlight")))
	assert.True(t, c.Known(world.MustParseBlock("minecraft:birch_fence[east=true]")))
	assert.True(t, c.Known(world.Air))
	assert.False(t, c.Known(world.MustParseBlock("diamond_block")))
	assert.Contains(t, c.All(), "bedrock")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.yaml")
	require.NoError(t, os.WriteFile(path, []byte("palette:\n  b: [stone, stone]\n  a: [dirt]\ntransparent: [air]\n"), 0o644))

	c, err := lookup.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dirt", "stone", "stone", "air"}, c.All())
}

func TestParseRejectsBadEntry(t *testing.T) {
	_, err := lookup.Parse([]byte("palette:\n  x: [\"Not Valid\"]\n"))
	assert.Error(t, err)
}
