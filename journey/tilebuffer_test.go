package journey

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTileBufferRejectsInvalidParams(t *testing.T) {
	bm := NewBitmap()
	_, err := NewTileBuffer(bm, 0, 0, 9, 0, 1, 8)
	assert.ErrorIs(t, err, ErrInvalidTileRange)

	_, err = NewTileBuffer(bm, 0, 0, 9, 1, 1, 5)
	assert.ErrorIs(t, err, ErrInvalidTileRange)

	_, err = NewTileBuffer(bm, 0, -1, 9, 1, 1, 8)
	assert.ErrorIs(t, err, ErrInvalidTileRange)

	_, err = NewTileBuffer(bm, 0, 0, 30, 1, 1, 8)
	assert.ErrorIs(t, err, ErrInvalidTileRange)
}

func TestNewTileBufferContainsPaintedPixel(t *testing.T) {
	bm := NewBitmap()
	const zoom = int16(ZRef)
	bm.AddLine(0, 0, 0, 0, nil)

	tileX, tileY := LngLatToTileXY(0, 0, int(zoom-AllOffset))
	tb, err := NewTileBuffer(bm, tileX, tileY, zoom-AllOffset, 1, 1, 8)
	require.NoError(t, err)
	require.Len(t, tb.TileData, 1)
	assert.NotEmpty(t, tb.TileData[0])
}

func TestTileBufferContainsTileWrapsX(t *testing.T) {
	tb := &TileBuffer{X: 0, Y: 0, Z: 4, Width: 2, Height: 2}
	assert.True(t, tb.ContainsTile(0, 0))
	assert.True(t, tb.ContainsTile(16, 0)) // wraps modulo 2^4
	assert.False(t, tb.ContainsTile(5, 0))
}

func TestTileBufferCalculateTileIndex(t *testing.T) {
	tb := &TileBuffer{X: 10, Y: 20, Width: 5, Height: 5}
	assert.Equal(t, 0, tb.CalculateTileIndex(10, 20))
	assert.Equal(t, 6, tb.CalculateTileIndex(11, 21))
}

func TestTileBufferEncodeDecodeRoundTrip(t *testing.T) {
	bm := NewBitmap()
	bm.AddLine(0, 0, 0, 0, nil)
	const zoom = int16(ZRef)
	tileX, tileY := LngLatToTileXY(0, 0, int(zoom-AllOffset))
	tb, err := NewTileBuffer(bm, tileX, tileY, zoom-AllOffset, 1, 1, 8)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeTileBuffer(&buf, tb))
	got, err := DecodeTileBuffer(&buf)
	require.NoError(t, err)

	assert.Equal(t, tb.X, got.X)
	assert.Equal(t, tb.Y, got.Y)
	assert.Equal(t, tb.Z, got.Z)
	assert.Equal(t, tb.Width, got.Width)
	assert.Equal(t, tb.Height, got.Height)
	assert.Equal(t, tb.BufferSizePower, got.BufferSizePower)
	assert.Equal(t, tb.TileData, got.TileData)
}
