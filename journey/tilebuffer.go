package journey

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// ErrInvalidTileRange is returned by NewTileBuffer when its parameters fall
// outside the bounds in the glossary (width/height, zoom, buffer size).
var ErrInvalidTileRange = fmt.Errorf("journey: invalid tile range parameters")

// TileBuffer describes a contiguous rectangle of Width x Height tiles at
// zoom Z, each rendered at 2^BufferSizePower pixels per side. TileData is
// indexed by CalculateTileIndex and holds, for each tile, the list of
// painted pixel coordinates within that tile's own buffer_size_power-sided
// square.
type TileBuffer struct {
	X, Y            int64
	Z               int16
	Width, Height   int64
	BufferSizePower int16
	TileData        [][][2]int64
}

// ContainsTile reports whether (tileX, tileY) falls inside this buffer's
// range. tileX wraps modulo 2^Z; tileY does not — a caller passing a
// negative tileY will silently miss, matching the upstream behavior this
// rewrite preserves intentionally (see DESIGN.md Open Question #1).
func (tb *TileBuffer) ContainsTile(tileX, tileY int64) bool {
	zoomCoefficient := int64(1) << uint(tb.Z)
	wrappedX := ((tileX % zoomCoefficient) + zoomCoefficient) % zoomCoefficient
	return wrappedX >= tb.X && wrappedX < tb.X+tb.Width && tileY >= tb.Y && tileY < tb.Y+tb.Height
}

// CalculateTileIndex maps a tile coordinate within range to its TileData
// slot, using the unrounded tileX (the caller is responsible for wrapping
// only to look up bitmap tiles, not for indexing this buffer).
func (tb *TileBuffer) CalculateTileIndex(tileX, tileY int64) int {
	return int((tileY-tb.Y)*tb.Width + (tileX - tb.X))
}

// NewTileBuffer validates parameters and extracts a TileBuffer covering
// [x, x+width) x [y, y+height) tiles at zoom z from bm.
func NewTileBuffer(bm *Bitmap, x, y int64, z int16, width, height int64, bufferSizePower int16) (*TileBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d height=%d", ErrInvalidTileRange, width, height)
	}
	if width > 20 || height > 20 {
		return nil, fmt.Errorf("%w: dimensions too large: width=%d height=%d (max 20x20)", ErrInvalidTileRange, width, height)
	}
	if z < 0 || z > 25 {
		return nil, fmt.Errorf("%w: invalid zoom level %d (must be 0-25)", ErrInvalidTileRange, z)
	}
	if bufferSizePower < 6 || bufferSizePower > 11 {
		return nil, fmt.Errorf("%w: invalid buffer_size_power %d (must be 6-11)", ErrInvalidTileRange, bufferSizePower)
	}
	zoomCoefficient := int64(1) << uint(z)
	if y < 0 || y >= zoomCoefficient {
		return nil, fmt.Errorf("%w: invalid y coordinate %d (must be 0-%d)", ErrInvalidTileRange, y, zoomCoefficient-1)
	}

	tb := &TileBuffer{
		X: x, Y: y, Z: z,
		Width: width, Height: height,
		BufferSizePower: bufferSizePower,
		TileData:        make([][][2]int64, width*height),
	}

	for tileY := y; tileY < y+height; tileY++ {
		for tileX := x; tileX < x+width; tileX++ {
			tileXRounded := ((tileX % zoomCoefficient) + zoomCoefficient) % zoomCoefficient

			rawPixels := GetPixelsCoordinates(0, 0, bm, tileXRounded, tileY, z, bufferSizePower)

			idx := tb.CalculateTileIndex(tileX, tileY)
			if idx < 0 || idx >= len(tb.TileData) {
				return nil, fmt.Errorf("%w: index out of bounds %d", ErrInvalidTileRange, idx)
			}

			limit := int64(1) << uint(bufferSizePower)
			pixels := tb.TileData[idx]
			for _, p := range rawPixels {
				if p[0] >= 0 && p[0] < limit && p[1] >= 0 && p[1] < limit {
					pixels = append(pixels, p)
				}
			}
			tb.TileData[idx] = pixels
		}
	}

	return tb, nil
}

// EncodeTileBuffer writes tb's binary wire form: fixed little-endian scalar
// header fields, then one varuint-length-prefixed run of varint-packed
// (x, y) pairs per TileData entry, in index order — the on-wire layout
// spec.md §4.4 leaves to the implementation's choice, grounded on codec.go's
// own varuint-framing idiom.
func EncodeTileBuffer(w io.Writer, tb *TileBuffer) error {
	var hdr [34]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(tb.X))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(tb.Y))
	binary.LittleEndian.PutUint16(hdr[16:18], uint16(tb.Z))
	binary.LittleEndian.PutUint64(hdr[18:26], uint64(tb.Width))
	binary.LittleEndian.PutUint64(hdr[26:34], uint64(tb.Height))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	var bsp [2]byte
	binary.LittleEndian.PutUint16(bsp[:], uint16(tb.BufferSizePower))
	if _, err := w.Write(bsp[:]); err != nil {
		return err
	}

	var buf [binary.MaxVarintLen64]byte
	writeUvarint := func(x uint64) error {
		n := binary.PutUvarint(buf[:], x)
		_, err := w.Write(buf[:n])
		return err
	}
	for _, pixels := range tb.TileData {
		if err := writeUvarint(uint64(len(pixels))); err != nil {
			return err
		}
		for _, p := range pixels {
			if err := writeUvarint(uint64(p[0])); err != nil {
				return err
			}
			if err := writeUvarint(uint64(p[1])); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeTileBuffer is the inverse of EncodeTileBuffer.
func DecodeTileBuffer(r io.Reader) (*TileBuffer, error) {
	br := bufio.NewReader(r)
	var hdr [34]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, err
	}
	tb := &TileBuffer{
		X:      int64(binary.LittleEndian.Uint64(hdr[0:8])),
		Y:      int64(binary.LittleEndian.Uint64(hdr[8:16])),
		Z:      int16(binary.LittleEndian.Uint16(hdr[16:18])),
		Width:  int64(binary.LittleEndian.Uint64(hdr[18:26])),
		Height: int64(binary.LittleEndian.Uint64(hdr[26:34])),
	}
	var bsp [2]byte
	if _, err := io.ReadFull(br, bsp[:]); err != nil {
		return nil, err
	}
	tb.BufferSizePower = int16(binary.LittleEndian.Uint16(bsp[:]))

	count := tb.Width * tb.Height
	tb.TileData = make([][][2]int64, count)
	for i := int64(0); i < count; i++ {
		n, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		pixels := make([][2]int64, 0, n)
		for j := uint64(0); j < n; j++ {
			px, err := binary.ReadUvarint(br)
			if err != nil {
				return nil, err
			}
			py, err := binary.ReadUvarint(br)
			if err != nil {
				return nil, err
			}
			pixels = append(pixels, [2]int64{int64(px), int64(py)})
		}
		tb.TileData[i] = pixels
	}
	return tb, nil
}
