package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockSetAndIsVisited(t *testing.T) {
	b := NewBlock()
	assert.True(t, b.IsEmpty())
	b.setPoint(3, 5, true)
	assert.True(t, b.IsVisited(3, 5))
	assert.False(t, b.IsVisited(3, 6))
	assert.False(t, b.IsEmpty())
	b.setPoint(3, 5, false)
	assert.True(t, b.IsEmpty())
}

func TestBitmapAddLineMarksCellsAndReportsTiles(t *testing.T) {
	bm := NewBitmap()
	var touched []TileKey
	bm.AddLine(0, 0, 1, 1, func(tk TileKey) {
		touched = append(touched, tk)
	})
	assert.NotEmpty(t, touched)
	assert.False(t, bm.IsEmpty())
}

func TestBitmapAddLineZeroLength(t *testing.T) {
	bm := NewBitmap()
	var touched []TileKey
	bm.AddLine(10, 10, 10, 10, func(tk TileKey) {
		touched = append(touched, tk)
	})
	assert.Len(t, touched, 1)
	assert.False(t, bm.IsEmpty())
}

func TestBitmapAddLineAntimeridian(t *testing.T) {
	bm := NewBitmap()
	bm.AddLine(179.9, 10, -179.9, 10, nil)
	assert.False(t, bm.IsEmpty())
}

func TestBitmapMergeUnion(t *testing.T) {
	a := NewBitmap()
	a.AddLine(0, 0, 1, 1, nil)
	b := NewBitmap()
	b.AddLine(10, 10, 11, 11, nil)

	aTiles := len(a.Tiles)
	bTiles := len(b.Tiles)
	a.Merge(b)
	assert.GreaterOrEqual(t, len(a.Tiles), aTiles)
	assert.GreaterOrEqual(t, len(a.Tiles), bTiles)
}

func TestBitmapDifferencePrunesEmpty(t *testing.T) {
	a := NewBitmap()
	a.AddLine(0, 0, 0, 0, nil)
	b := a.Clone()

	a.Difference(b)
	assert.True(t, a.IsEmpty())
}

func TestBitmapIntersectionKeepsOnlyShared(t *testing.T) {
	a := NewBitmap()
	a.AddLine(0, 0, 0, 0, nil)
	a.AddLine(20, 20, 20, 20, nil)

	b := NewBitmap()
	b.AddLine(0, 0, 0, 0, nil)

	a.Intersection(b)
	assert.False(t, a.IsEmpty())
	for tk := range a.Tiles {
		_, ok := b.Tiles[tk]
		assert.True(t, ok)
	}
}

func TestBitmapCloneIsIndependent(t *testing.T) {
	a := NewBitmap()
	a.AddLine(0, 0, 1, 1, nil)
	clone := a.Clone()

	clone.AddLine(50, 50, 51, 51, nil)
	assert.NotEqual(t, len(a.Tiles), len(clone.Tiles))
}

func TestSetAlgebraIdentities(t *testing.T) {
	a := NewBitmap()
	a.AddLine(-30, -30, 40, 45, nil)
	b := a.Clone()

	// a MINUS a is empty.
	diff := a.Clone()
	diff.Difference(a)
	assert.True(t, diff.IsEmpty())

	// a INTERSECT a == a.
	inter := a.Clone()
	inter.Intersection(a)
	require.Equal(t, len(a.Tiles), len(inter.Tiles))

	// a MERGE empty == a.
	merged := a.Clone()
	merged.Merge(NewBitmap())
	assert.Equal(t, len(b.Tiles), len(merged.Tiles))
}
