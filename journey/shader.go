package journey

// tileZoom is the zoom level at which one Tile equals one slippy-map tile
// (TileWidthOffset + BitmapWidthOffset bits of resolution inside it).
const tileZoom = 9

// GetPixelsCoordinates performs the multi-resolution walk that turns one
// viewport tile request (view_x, view_y at the given zoom) into the list of
// pixel coordinates, relative to (startX, startY), that should be painted
// into a buffer_size_power-sided output tile. The returned list may contain
// duplicate coordinates; callers should treat it as a multiset or
// deduplicate.
func GetPixelsCoordinates(startX, startY int64, bm *Bitmap, viewX, viewY int64, zoom, bufferSizePower int16) [][2]int64 {
	var pixels [][2]int64

	zoomDiffViewToTile := zoom - tileZoom

	var tileX, tileY int64
	if zoomDiffViewToTile > 0 {
		tileX = viewX >> uint(zoomDiffViewToTile)
		tileY = viewY >> uint(zoomDiffViewToTile)
	} else {
		tileX = viewX << uint(-zoomDiffViewToTile)
		tileY = viewY << uint(-zoomDiffViewToTile)
	}

	span := int64(1) << uint(max16(-zoomDiffViewToTile, 0))
	for i := int64(0); i < span; i++ {
		for j := int64(0); j < span; j++ {
			tile, ok := bm.Tiles[TileKey{uint16(tileX + i), uint16(tileY + j)}]
			if !ok {
				continue
			}

			zoomFactor := max16(zoomDiffViewToTile, 0)
			var subTileXIdx, subTileYIdx int64
			if zoomFactor > 0 {
				mask := (int64(1) << uint(zoomFactor)) - 1
				subTileXIdx, subTileYIdx = viewX&mask, viewY&mask
			}

			tileWidthPower := zoomDiffViewToTile + bufferSizePower

			var x0, y0 int64
			if tileWidthPower > 0 {
				x0, y0 = i<<uint(tileWidthPower), j<<uint(tileWidthPower)
			} else {
				x0, y0 = i>>uint(-tileWidthPower), j>>uint(-tileWidthPower)
			}

			addTilePixels(&pixels, tile,
				startX+x0, startY+y0,
				subTileXIdx, subTileYIdx,
				zoomFactor,
				min16(tileWidthPower, bufferSizePower),
				bufferSizePower)
		}
	}

	return pixels
}

func addTilePixels(pixels *[][2]int64, tile *Tile, startX, startY, subTileXIdx, subTileYIdx int64, zoomFactor, sizePower, bufferSizePower int16) {
	if sizePower <= 0 {
		// The tile occupies at most one pixel; no need to visit blocks.
		*pixels = append(*pixels, [2]int64{startX, startY})
		return
	}

	blockNumPower := int16(TileWidthOffset) - zoomFactor
	var blockStartX, blockStartY int64
	if blockNumPower >= 0 {
		blockStartX, blockStartY = subTileXIdx<<uint(blockNumPower), subTileYIdx<<uint(blockNumPower)
	} else {
		blockStartX, blockStartY = subTileXIdx>>uint(-blockNumPower), subTileYIdx>>uint(-blockNumPower)
	}

	blockZoomFactor := max16(-blockNumPower, 0)
	var subBlockXIdx, subBlockYIdx int64
	if blockZoomFactor > 0 {
		mask := (int64(1) << uint(blockZoomFactor)) - 1
		subBlockXIdx, subBlockYIdx = subTileXIdx&mask, subTileYIdx&mask
	}
	blockWidthPower := sizePower - blockNumPower

	span := int64(1) << uint(max16(blockNumPower, 0))
	for i := int64(0); i < span; i++ {
		for j := int64(0); j < span; j++ {
			block, ok := tile.Blocks[BlockKey{uint8(blockStartX + i), uint8(blockStartY + j)}]
			if !ok {
				continue
			}
			var offsetX, offsetY int64
			if blockWidthPower >= 0 {
				offsetX, offsetY = i<<uint(blockWidthPower), j<<uint(blockWidthPower)
			} else {
				offsetX, offsetY = i>>uint(-blockWidthPower), j>>uint(-blockWidthPower)
			}
			addBlockPixels(pixels, block,
				startX+offsetX, startY+offsetY,
				subBlockXIdx, subBlockYIdx,
				blockZoomFactor,
				min16(blockWidthPower, bufferSizePower))
		}
	}
}

func addBlockPixels(pixels *[][2]int64, block *Block, startX, startY, subBlockXIdx, subBlockYIdx int64, zoomFactor, sizePower int16) {
	if sizePower <= 0 {
		*pixels = append(*pixels, [2]int64{startX, startY})
		return
	}

	dotNumPower := int16(BitmapWidthOffset) - zoomFactor
	var dotStartX, dotStartY int64
	if dotNumPower >= 0 {
		dotStartX, dotStartY = subBlockXIdx<<uint(dotNumPower), subBlockYIdx<<uint(dotNumPower)
	} else {
		dotStartX, dotStartY = subBlockXIdx>>uint(-dotNumPower), subBlockYIdx>>uint(-dotNumPower)
	}

	blockDotWidthPower := sizePower - (int16(BitmapWidthOffset) - zoomFactor)
	blockDotWidth := int64(1) << uint(max16(blockDotWidthPower, 0))

	span := int64(1) << uint(max16(dotNumPower, 0))
	for i := int64(0); i < span; i++ {
		for j := int64(0); j < span; j++ {
			dotX, dotY := dotStartX+i, dotStartY+j
			if !block.IsVisited(uint8(dotX), uint8(dotY)) {
				continue
			}
			var offsetX, offsetY int64
			if blockDotWidthPower >= 0 {
				offsetX, offsetY = i<<uint(blockDotWidthPower), j<<uint(blockDotWidthPower)
			} else {
				offsetX, offsetY = i>>uint(-blockDotWidthPower), j>>uint(-blockDotWidthPower)
			}
			addRectPixels(pixels, startX+offsetX, startY+offsetY, blockDotWidth, blockDotWidth)
		}
	}
}

func addRectPixels(pixels *[][2]int64, x, y, w, h int64) {
	for i := x; i < x+w; i++ {
		for j := y; j < y+h; j++ {
			*pixels = append(*pixels, [2]int64{i, j})
		}
	}
}

func max16(a, b int16) int16 {
	if a > b {
		return a
	}
	return b
}

func min16(a, b int16) int16 {
	if a < b {
		return a
	}
	return b
}
