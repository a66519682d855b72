package journey

import "math"

// EarthRadiusMeters is the sphere radius used by the spherical-cap area
// approximation.
const EarthRadiusMeters = 6371000.0

const combinedZoom = BitmapWidthOffset + TileWidthOffset + MapWidthOffset // == ZRef

// ComputeArea sums the spherical-cap area of every visited bit cell in bm,
// in square meters. If memo is non-nil, it is used as a per-tile cache:
// entries present in memo are reused instead of recomputed, and any tile
// computed fresh is written back into memo. Callers invalidate a tile's
// memo entry (by deleting the key) when that tile changes, so a later call
// only recomputes the touched tiles.
func ComputeArea(bm *Bitmap, memo map[TileKey]float64) float64 {
	var total float64
	for tileKey, tile := range bm.Tiles {
		if memo != nil {
			if cached, ok := memo[tileKey]; ok {
				total += cached
				continue
			}
		}
		contribution := tileArea(tileKey, tile)
		if memo != nil {
			memo[tileKey] = contribution
		}
		total += contribution
	}
	return total
}

func tileArea(tileKey TileKey, tile *Tile) float64 {
	var total float64
	for blockKey, block := range tile.Blocks {
		for by := 0; by < BitmapWidth; by++ {
			for bx := 0; bx < BitmapWidth; bx++ {
				if !block.IsVisited(uint8(bx), uint8(by)) {
					continue
				}
				x1 := TileWidth*BitmapWidth*int64(tileKey.X) + BitmapWidth*int64(blockKey.X) + int64(bx)
				y1 := TileWidth*BitmapWidth*int64(tileKey.Y) + BitmapWidth*int64(blockKey.Y) + int64(by)
				x2, y2 := x1+1, y1+1

				lng1, lat1 := TileXYToLngLat(x1, y1, combinedZoom)
				lng2, lat2 := TileXYToLngLat(x2, y2, combinedZoom)

				width := EarthRadiusMeters * toRadians(math.Abs(lng2-lng1)) * math.Cos(toRadians(lat1))
				height := EarthRadiusMeters * toRadians(math.Abs(lat2-lat1))
				total += width * height
			}
		}
	}
	return total
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180.0 }

// AreaSquareMeters rounds down a ComputeArea result to an unsigned integer,
// the representation the renderer's current_area cache uses.
func AreaSquareMeters(area float64) uint64 {
	if area <= 0 {
		return 0
	}
	return uint64(math.Floor(area))
}
