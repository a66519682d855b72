package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPixelsCoordinatesEmptyBitmapYieldsNothing(t *testing.T) {
	bm := NewBitmap()
	pixels := GetPixelsCoordinates(0, 0, bm, 0, 0, 9, 8)
	assert.Empty(t, pixels)
}

func TestGetPixelsCoordinatesAtTileZoomMatchesVisitedBit(t *testing.T) {
	bm := NewBitmap()
	bm.AddLine(0, 0, 0, 0, nil)

	tileX, tileY := LngLatToTileXY(0, 0, tileZoom)
	pixels := GetPixelsCoordinates(0, 0, bm, tileX, tileY, tileZoom, 8)
	assert.NotEmpty(t, pixels)
}

func TestGetPixelsCoordinatesZoomedOutViewCoversMultipleTiles(t *testing.T) {
	bm := NewBitmap()
	bm.AddLine(0, 0, 0, 0, nil)
	bm.AddLine(10, 10, 10, 10, nil)

	tileX, tileY := LngLatToTileXY(0, 0, tileZoom-1)
	pixels := GetPixelsCoordinates(0, 0, bm, tileX, tileY, tileZoom-1, 8)
	assert.NotEmpty(t, pixels)
}
