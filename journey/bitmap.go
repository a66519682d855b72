package journey

// BlockSize is the packed byte size of a single Block: BitmapWidth x
// BitmapWidth bits.
const BlockSize = BitmapWidth * BitmapWidth / 8

// BlockKey addresses a Block within a Tile.
type BlockKey struct {
	X, Y uint8
}

// TileKey addresses a Tile within a Bitmap.
type TileKey struct {
	X, Y uint16
}

// Block is a 64x64 bit grid packed into 512 bytes. Bit layout: byte at
// offset x/8 + y*8, bit position 7-(x%8) (MSB-first within byte, row-major
// over y). The row stride (8 bytes) is hard-coded to BitmapWidth=64; do not
// generalize this without revisiting the index arithmetic.
type Block struct {
	Data [BlockSize]byte
}

// NewBlock returns an all-zero block.
func NewBlock() *Block {
	return &Block{}
}

// IsEmpty reports whether every bit is unset.
func (b *Block) IsEmpty() bool {
	for _, v := range b.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// IsVisited reports whether bit (x, y) is set.
func (b *Block) IsVisited(x, y uint8) bool {
	bitOffset := 7 - (x % 8)
	i := int(x / 8)
	j := int(y)
	return b.Data[i+j*8]&(1<<bitOffset) != 0
}

func (b *Block) setPoint(x, y uint8, val bool) {
	bitOffset := 7 - (x % 8)
	i := int(x / 8)
	j := int(y)
	if val {
		b.Data[i+j*8] |= 1 << bitOffset
	} else {
		b.Data[i+j*8] &^= 1 << bitOffset
	}
}

// addLine is a modified Bresenham walk that continues an error term handed
// down from the tile level, so a line is pixel-identical no matter where
// block boundaries fall. Returns the updated (x, y, p) with x and y in
// block-local coordinates; the caller translates them back.
func (b *Block) addLine(x, y, e, p, dx0, dy0 int64, xaxis, quadrants13 bool) (int64, int64, int64) {
	b.setPoint(uint8(x), uint8(y), true)
	if xaxis {
		for x < e {
			x++
			if p < 0 {
				p += 2 * dy0
			} else {
				if quadrants13 {
					y++
				} else {
					y--
				}
				p += 2 * (dy0 - dx0)
			}
			if x >= BitmapWidth || y < 0 || y >= BitmapWidth {
				break
			}
			b.setPoint(uint8(x), uint8(y), true)
		}
	} else {
		for y < e {
			y++
			if p <= 0 {
				p += 2 * dx0
			} else {
				if quadrants13 {
					x++
				} else {
					x--
				}
				p += 2 * (dx0 - dy0)
			}
			if y >= BitmapWidth || x < 0 || x >= BitmapWidth {
				break
			}
			b.setPoint(uint8(x), uint8(y), true)
		}
	}
	return x, y, p
}

// Tile maps block coordinates to Blocks. Absence means all-zero; every
// stored Block is non-empty once a top-level operation completes.
type Tile struct {
	Blocks map[BlockKey]*Block
}

// NewTile returns an empty tile.
func NewTile() *Tile {
	return &Tile{Blocks: make(map[BlockKey]*Block)}
}

func (t *Tile) addLine(x, y, e, p, dx0, dy0 int64, xaxis, quadrants13 bool) (int64, int64, int64) {
	if xaxis {
		for x < e {
			if x>>BitmapWidthOffset >= TileWidth || y>>BitmapWidthOffset < 0 || y>>BitmapWidthOffset >= TileWidth {
				break
			}
			blockX := x >> BitmapWidthOffset
			blockY := y >> BitmapWidthOffset
			key := BlockKey{uint8(blockX), uint8(blockY)}
			block, ok := t.Blocks[key]
			if !ok {
				block = NewBlock()
				t.Blocks[key] = block
			}
			x, y, p = block.addLine(
				x-(blockX<<BitmapWidthOffset),
				y-(blockY<<BitmapWidthOffset),
				e-(blockX<<BitmapWidthOffset),
				p, dx0, dy0, xaxis, quadrants13)
			x += blockX << BitmapWidthOffset
			y += blockY << BitmapWidthOffset
		}
	} else {
		for y < e {
			if y>>BitmapWidthOffset >= TileWidth || x>>BitmapWidthOffset < 0 || x>>BitmapWidthOffset >= TileWidth {
				break
			}
			blockX := x >> BitmapWidthOffset
			blockY := y >> BitmapWidthOffset
			key := BlockKey{uint8(blockX), uint8(blockY)}
			block, ok := t.Blocks[key]
			if !ok {
				block = NewBlock()
				t.Blocks[key] = block
			}
			x, y, p = block.addLine(
				x-(blockX<<BitmapWidthOffset),
				y-(blockY<<BitmapWidthOffset),
				e-(blockY<<BitmapWidthOffset),
				p, dx0, dy0, xaxis, quadrants13)
			x += blockX << BitmapWidthOffset
			y += blockY << BitmapWidthOffset
		}
	}
	return x, y, p
}

// Bitmap maps tile coordinates to Tiles. This is the JourneyBitmap: every
// stored Tile has at least one Block, tile_x < 512, tile_y < 512.
type Bitmap struct {
	Tiles map[TileKey]*Tile
}

// NewBitmap returns an empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{Tiles: make(map[TileKey]*Tile)}
}

// IsEmpty reports whether the bitmap has no tiles.
func (bm *Bitmap) IsEmpty() bool {
	return len(bm.Tiles) == 0
}

func (bm *Bitmap) tileAt(x, y int64) *Tile {
	key := TileKey{uint16(x % MapWidth), uint16(y)}
	tile, ok := bm.Tiles[key]
	if !ok {
		tile = NewTile()
		bm.Tiles[key] = tile
	}
	return tile
}

// AddLine rasterizes a line from (startLng, startLat) to (endLng, endLat),
// handling the antimeridian and carrying the Bresenham error term through
// tile and block boundaries so the line is identical regardless of where
// those boundaries fall. tileChanged, if non-nil, is invoked once for every
// tile touched by the line (including a zero-length line's single point).
func (bm *Bitmap) AddLine(startLng, startLat, endLng, endLat float64, tileChanged func(TileKey)) {
	const zoom = ALL_OFFSET_PLUS_MAP_WIDTH_OFFSET
	x0, y0 := LngLatToTileXY(startLng, startLat, zoom)
	x1, y1 := LngLatToTileXY(endLng, endLat, zoom)
	xHalf, _ := LngLatToTileXY(0, 0, zoom)

	if x1-x0 > xHalf {
		x0 += 2 * xHalf
	} else if x0-x1 > xHalf {
		x1 += 2 * xHalf
	}

	if x0 == x1 && y0 == y1 {
		// Degenerate zero-length line: the hierarchical walk below never
		// enters its loop body for x0 == x1 (dx0 == dy0 == 0 puts it on
		// the X-axis-dominant path with xe == x0), so the single point is
		// marked directly here instead.
		tileX, tileY := x0>>AllOffset, y0>>AllOffset
		localX, localY := x0-(tileX<<AllOffset), y0-(tileY<<AllOffset)
		blockX, blockY := localX>>BitmapWidthOffset, localY>>BitmapWidthOffset
		bitX, bitY := localX-(blockX<<BitmapWidthOffset), localY-(blockY<<BitmapWidthOffset)

		tile := bm.tileAt(tileX, tileY)
		block := tile.blockAt(blockX, blockY)
		block.setPoint(uint8(bitX), uint8(bitY), true)
		if tileChanged != nil {
			tileChanged(TileKey{uint16(tileX % MapWidth), uint16(tileY)})
		}
		return
	}

	dx := x1 - x0
	dy := y1 - y0
	dx0 := abs64(dx)
	dy0 := abs64(dy)
	px := 2*dy0 - dx0
	py := 2*dx0 - dy0

	if dy0 <= dx0 {
		// X-axis dominant.
		var x, y, xe int64
		if dx >= 0 {
			x, y, xe = x0, y0, x1
		} else {
			x, y, xe = x1, y1, x0
		}
		quadrants13 := (dx < 0 && dy < 0) || (dx > 0 && dy > 0)
		for x < xe {
			tileX, tileY := x>>AllOffset, y>>AllOffset
			tile := bm.tileAt(tileX, tileY)
			if tileChanged != nil {
				tileChanged(TileKey{uint16(tileX % MapWidth), uint16(tileY)})
			}
			x, y, px = tile.addLine(
				x-(tileX<<AllOffset),
				y-(tileY<<AllOffset),
				xe-(tileX<<AllOffset),
				px, dx0, dy0, true, quadrants13)
			x += tileX << AllOffset
			y += tileY << AllOffset
		}
	} else {
		// Y-axis dominant.
		var x, y, ye int64
		if dy >= 0 {
			x, y, ye = x0, y0, y1
		} else {
			x, y, ye = x1, y1, y0
		}
		quadrants13 := (dx < 0 && dy < 0) || (dx > 0 && dy > 0)
		for y < ye {
			tileX, tileY := x>>AllOffset, y>>AllOffset
			tile := bm.tileAt(tileX, tileY)
			if tileChanged != nil {
				tileChanged(TileKey{uint16(tileX % MapWidth), uint16(tileY)})
			}
			x, y, py = tile.addLine(
				x-(tileX<<AllOffset),
				y-(tileY<<AllOffset),
				ye-(tileY<<AllOffset),
				py, dx0, dy0, false, quadrants13)
			x += tileX << AllOffset
			y += tileY << AllOffset
		}
	}
}

// blockAt returns (creating if needed) the block at local block coordinates.
func (t *Tile) blockAt(blockX, blockY int64) *Block {
	key := BlockKey{uint8(blockX), uint8(blockY)}
	block, ok := t.Blocks[key]
	if !ok {
		block = NewBlock()
		t.Blocks[key] = block
	}
	return block
}

// Merge unions other into bm (bitwise OR per block). Tiles/blocks absent
// from bm are adopted directly from other; no pruning is required since a
// union never empties a block.
func (bm *Bitmap) Merge(other *Bitmap) {
	for key, otherTile := range other.Tiles {
		tile, ok := bm.Tiles[key]
		if !ok {
			bm.Tiles[key] = otherTile
			continue
		}
		for bkey, otherBlock := range otherTile.Blocks {
			block, ok := tile.Blocks[bkey]
			if !ok {
				tile.Blocks[bkey] = otherBlock
				continue
			}
			for i := range otherBlock.Data {
				block.Data[i] |= otherBlock.Data[i]
			}
		}
	}
}

// Difference removes every bit set in other from bm (AND-NOT), pruning any
// block or tile that becomes empty.
func (bm *Bitmap) Difference(other *Bitmap) {
	for tkey, otherTile := range other.Tiles {
		tile, ok := bm.Tiles[tkey]
		if !ok {
			continue
		}
		for bkey, otherBlock := range otherTile.Blocks {
			block, ok := tile.Blocks[bkey]
			if !ok {
				continue
			}
			for i := range otherBlock.Data {
				block.Data[i] &= ^otherBlock.Data[i]
			}
			if block.IsEmpty() {
				delete(tile.Blocks, bkey)
			}
		}
		if len(tile.Blocks) == 0 {
			delete(bm.Tiles, tkey)
		}
	}
}

// Intersection retains only tiles/blocks present in both bm and other,
// AND-ing their data and pruning anything that becomes empty.
func (bm *Bitmap) Intersection(other *Bitmap) {
	for tkey, tile := range bm.Tiles {
		otherTile, ok := other.Tiles[tkey]
		if !ok {
			delete(bm.Tiles, tkey)
			continue
		}
		for bkey, block := range tile.Blocks {
			otherBlock, ok := otherTile.Blocks[bkey]
			if !ok {
				delete(tile.Blocks, bkey)
				continue
			}
			for i := range otherBlock.Data {
				block.Data[i] &= otherBlock.Data[i]
			}
			if block.IsEmpty() {
				delete(tile.Blocks, bkey)
			}
		}
		if len(tile.Blocks) == 0 {
			delete(bm.Tiles, tkey)
		}
	}
}

// Clone returns a deep copy of bm.
func (bm *Bitmap) Clone() *Bitmap {
	out := NewBitmap()
	for tkey, tile := range bm.Tiles {
		outTile := NewTile()
		for bkey, block := range tile.Blocks {
			cp := *block
			outTile.Blocks[bkey] = &cp
		}
		out.Tiles[tkey] = outTile
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ALL_OFFSET_PLUS_MAP_WIDTH_OFFSET is the zoom at which endpoints are
// projected before rasterization: ALL_OFFSET + MAP_WIDTH_OFFSET == ZRef.
const ALL_OFFSET_PLUS_MAP_WIDTH_OFFSET = AllOffset + MapWidthOffset
