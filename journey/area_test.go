package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeAreaEmptyBitmap(t *testing.T) {
	bm := NewBitmap()
	assert.Equal(t, 0.0, ComputeArea(bm, nil))
}

func TestComputeAreaPositiveForVisitedCell(t *testing.T) {
	bm := NewBitmap()
	bm.AddLine(10, 10, 10, 10, nil)
	assert.Greater(t, ComputeArea(bm, nil), 0.0)
}

func TestComputeAreaMemoReusesCachedTile(t *testing.T) {
	bm := NewBitmap()
	bm.AddLine(10, 10, 10.01, 10.01, nil)

	memo := make(map[TileKey]float64)
	first := ComputeArea(bm, memo)
	require := assert.New(t)
	require.Greater(len(memo), 0)

	// Mutate the bitmap directly without touching memo; a memoized call
	// must still return the stale (pre-mutation) total for the cached tile.
	for tk := range bm.Tiles {
		// Mark the cell at the tile's centre, which lies inside tile tk.
		lng, lat := TileXYToLngLat(2*int64(tk.X)+1, 2*int64(tk.Y)+1, MapWidthOffset+1)
		bm.AddLine(lng, lat, lng, lat, nil)
		break
	}
	second := ComputeArea(bm, memo)
	assert.Equal(t, first, second)
}

func TestAreaSquareMetersFloorsAndClampsNegative(t *testing.T) {
	assert.Equal(t, uint64(0), AreaSquareMeters(-5))
	assert.Equal(t, uint64(0), AreaSquareMeters(0))
	assert.Equal(t, uint64(3), AreaSquareMeters(3.9))
}
