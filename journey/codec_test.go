package journey

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeBitmapRoundTrip(t *testing.T) {
	bm := NewBitmap()
	bm.AddLine(-120, 30, 120, -30, nil)
	bm.AddLine(179.9, 10, -179.9, 10, nil)

	var buf bytes.Buffer
	require.NoError(t, SerializeData(&buf, BitmapData{Bitmap: bm}))

	data, err := DeserializeData(&buf)
	require.NoError(t, err)
	bd, ok := data.(BitmapData)
	require.True(t, ok)

	assert.Equal(t, len(bm.Tiles), len(bd.Bitmap.Tiles))
	for tk, tile := range bm.Tiles {
		otherTile, ok := bd.Bitmap.Tiles[tk]
		require.True(t, ok)
		assert.Equal(t, len(tile.Blocks), len(otherTile.Blocks))
		for bk, block := range tile.Blocks {
			otherBlock, ok := otherTile.Blocks[bk]
			require.True(t, ok)
			assert.Equal(t, block.Data, otherBlock.Data)
		}
	}
}

func TestSerializeDeserializeVectorRoundTrip(t *testing.T) {
	v := Vector{TrackSegments: []TrackSegment{
		{TrackPoints: []TrackPoint{
			NewTrackPoint(10.5, 20.25),
			NewTrackPoint(10.6, 20.3),
		}},
		{TrackPoints: []TrackPoint{
			NewTrackPoint(-5, -5),
		}},
	}}

	var buf bytes.Buffer
	require.NoError(t, SerializeData(&buf, VectorData{Vector: v}))

	data, err := DeserializeData(&buf)
	require.NoError(t, err)
	vd, ok := data.(VectorData)
	require.True(t, ok)
	require.Len(t, vd.Vector.TrackSegments, 2)
	require.Len(t, vd.Vector.TrackSegments[0].TrackPoints, 2)
	assert.InDelta(t, 10.5, vd.Vector.TrackSegments[0].TrackPoints[0].Latitude(), 1e-9)
	assert.InDelta(t, 20.25, vd.Vector.TrackSegments[0].TrackPoints[0].Longitude(), 1e-9)
}

func TestDeserializeDataBadMagic(t *testing.T) {
	_, err := DeserializeData(bytes.NewReader([]byte("XX")))
	assert.ErrorIs(t, err, ErrBadMagicHeader)
}

func TestSerializeDeserializeEmptyBitmap(t *testing.T) {
	bm := NewBitmap()
	var buf bytes.Buffer
	require.NoError(t, SerializeData(&buf, BitmapData{Bitmap: bm}))

	data, err := DeserializeData(&buf)
	require.NoError(t, err)
	bd := data.(BitmapData)
	assert.True(t, bd.Bitmap.IsEmpty())
}
