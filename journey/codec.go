package journey

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Magic headers identifying the two on-disk payload shapes.
var (
	magicVector = [2]byte{'V', '0'}
	magicBitmap = [2]byte{'B', '0'}
)

// ErrBadMagicHeader is returned when a decode sees neither magic header.
var ErrBadMagicHeader = errors.New("journey: bad magic header")

// ErrTypeMismatch is returned when a Header's declared Type doesn't match
// the payload it is paired with.
var ErrTypeMismatch = errors.New("journey: header/data type mismatch")

const zstdCompressLevel = 3

func newEncoder(w io.Writer) (*zstd.Encoder, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(zstdCompressLevel)))
}

func newDecoder(r io.Reader) (*zstd.Decoder, error) {
	return zstd.NewReader(r)
}

// SerializeData dispatches on data.Type() and writes the magic-tagged,
// zstd-compressed encoding described in the on-disk journey data format.
func SerializeData(w io.Writer, data Data) error {
	switch d := data.(type) {
	case VectorData:
		return serializeVector(w, d.Vector)
	case BitmapData:
		return serializeBitmap(w, d.Bitmap)
	default:
		return fmt.Errorf("journey: unknown data variant %T", data)
	}
}

// DeserializeData reads a magic-tagged payload and returns the matching
// Data variant.
func DeserializeData(r io.Reader) (Data, error) {
	var magic [2]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	switch magic {
	case magicVector:
		v, err := deserializeVectorBody(r)
		if err != nil {
			return nil, err
		}
		return VectorData{Vector: v}, nil
	case magicBitmap:
		b, err := deserializeBitmapBody(r)
		if err != nil {
			return nil, err
		}
		return BitmapData{Bitmap: b}, nil
	default:
		return nil, ErrBadMagicHeader
	}
}

func serializeVector(w io.Writer, v Vector) error {
	if _, err := w.Write(magicVector[:]); err != nil {
		return err
	}
	zw, err := newEncoder(w)
	if err != nil {
		return err
	}
	defer zw.Close()

	var buf [binary.MaxVarintLen64]byte
	writeUvarint := func(x uint64) error {
		n := binary.PutUvarint(buf[:], x)
		_, err := zw.Write(buf[:n])
		return err
	}

	if err := writeUvarint(uint64(len(v.TrackSegments))); err != nil {
		return err
	}
	var f8 [8]byte
	for _, seg := range v.TrackSegments {
		if err := writeUvarint(uint64(len(seg.TrackPoints))); err != nil {
			return err
		}
		for _, p := range seg.TrackPoints {
			binary.BigEndian.PutUint64(f8[:], math.Float64bits(p.Latitude()))
			if _, err := zw.Write(f8[:]); err != nil {
				return err
			}
			binary.BigEndian.PutUint64(f8[:], math.Float64bits(p.Longitude()))
			if _, err := zw.Write(f8[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

func deserializeVectorBody(r io.Reader) (Vector, error) {
	zr, err := newDecoder(r)
	if err != nil {
		return Vector{}, err
	}
	defer zr.Close()
	br := bufio.NewReader(zr)

	numSegments, err := binary.ReadUvarint(br)
	if err != nil {
		return Vector{}, err
	}
	v := Vector{TrackSegments: make([]TrackSegment, 0, numSegments)}
	var f8 [8]byte
	for i := uint64(0); i < numSegments; i++ {
		numPoints, err := binary.ReadUvarint(br)
		if err != nil {
			return Vector{}, err
		}
		seg := TrackSegment{TrackPoints: make([]TrackPoint, 0, numPoints)}
		for j := uint64(0); j < numPoints; j++ {
			if _, err := io.ReadFull(br, f8[:]); err != nil {
				return Vector{}, err
			}
			lat := math.Float64frombits(binary.BigEndian.Uint64(f8[:]))
			if _, err := io.ReadFull(br, f8[:]); err != nil {
				return Vector{}, err
			}
			lng := math.Float64frombits(binary.BigEndian.Uint64(f8[:]))
			seg.TrackPoints = append(seg.TrackPoints, NewTrackPoint(lat, lng))
		}
		v.TrackSegments = append(v.TrackSegments, seg)
	}
	return v, nil
}

// blockKeyToIndex and indexToBlockKey implement the composite block index
// used both inside the per-tile block-key bitmap and for block ordering on
// disk: index = blockX*TileWidth + blockY.
func blockKeyToIndex(k BlockKey) int {
	return int(k.X)*TileWidth + int(k.Y)
}

func indexToBlockKey(i int) BlockKey {
	return BlockKey{uint8(i / TileWidth), uint8(i % TileWidth)}
}

const blockKeyBitmapSize = TileWidth * TileWidth / 8 // 2048 bytes

func serializeBitmap(w io.Writer, bm *Bitmap) error {
	if _, err := w.Write(magicBitmap[:]); err != nil {
		return err
	}
	var buf [binary.MaxVarintLen64]byte
	writeUvarint := func(w io.Writer, x uint64) error {
		n := binary.PutUvarint(buf[:], x)
		_, err := w.Write(buf[:n])
		return err
	}

	if err := writeUvarint(w, uint64(len(bm.Tiles))); err != nil {
		return err
	}

	keys := make([]TileKey, 0, len(bm.Tiles))
	for k := range bm.Tiles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})

	var u16 [2]byte
	for _, key := range keys {
		tile := bm.Tiles[key]
		binary.BigEndian.PutUint16(u16[:], key.X)
		if _, err := w.Write(u16[:]); err != nil {
			return err
		}
		binary.BigEndian.PutUint16(u16[:], key.Y)
		if _, err := w.Write(u16[:]); err != nil {
			return err
		}

		var compressed bytes.Buffer
		zw, err := newEncoder(&compressed)
		if err != nil {
			return err
		}

		// Block-key bitmap: bit `offset` of byte `byteIndex`, LSB-first,
		// corresponds to composite index byteIndex*8+offset. This bit
		// ordering is intentionally the reverse of the in-block bit
		// layout (MSB-first) and must be preserved exactly or existing
		// on-disk data becomes unreadable.
		blockKeyBitmap := make([]byte, blockKeyBitmapSize)
		blockKeys := make([]BlockKey, 0, len(tile.Blocks))
		for bk := range tile.Blocks {
			blockKeys = append(blockKeys, bk)
			idx := blockKeyToIndex(bk)
			blockKeyBitmap[idx/8] |= 1 << uint(idx%8)
		}
		sort.Slice(blockKeys, func(i, j int) bool {
			return blockKeyToIndex(blockKeys[i]) < blockKeyToIndex(blockKeys[j])
		})
		if _, err := zw.Write(blockKeyBitmap); err != nil {
			return err
		}
		for _, bk := range blockKeys {
			if _, err := zw.Write(tile.Blocks[bk].Data[:]); err != nil {
				return err
			}
		}
		if err := zw.Close(); err != nil {
			return err
		}

		if err := writeUvarint(w, uint64(compressed.Len())); err != nil {
			return err
		}
		if _, err := w.Write(compressed.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func deserializeBitmapBody(r io.Reader) (*Bitmap, error) {
	br := bufio.NewReader(r)
	tileCount, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	bm := NewBitmap()
	var u16 [2]byte
	for i := uint64(0); i < tileCount; i++ {
		if _, err := io.ReadFull(br, u16[:]); err != nil {
			return nil, err
		}
		x := binary.BigEndian.Uint16(u16[:])
		if _, err := io.ReadFull(br, u16[:]); err != nil {
			return nil, err
		}
		y := binary.BigEndian.Uint16(u16[:])

		tileDataLen, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		tileReader := io.LimitReader(br, int64(tileDataLen))
		tile, err := deserializeTile(tileReader)
		if err != nil {
			return nil, err
		}
		// Drain any unread bytes so the outer reader stays aligned, per
		// the declared length enabling tile-granular seeking without a
		// full bitmap deserialization.
		if _, err := io.Copy(io.Discard, tileReader); err != nil {
			return nil, err
		}
		bm.Tiles[TileKey{x, y}] = tile
	}
	return bm, nil
}

func deserializeTile(r io.Reader) (*Tile, error) {
	zr, err := newDecoder(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	blockKeyBitmap := make([]byte, blockKeyBitmapSize)
	if _, err := io.ReadFull(zr, blockKeyBitmap); err != nil {
		return nil, err
	}

	tile := NewTile()
	for idx := 0; idx < TileWidth*TileWidth; idx++ {
		if blockKeyBitmap[idx/8]&(1<<uint(idx%8)) == 0 {
			continue
		}
		block := NewBlock()
		if _, err := io.ReadFull(zr, block.Data[:]); err != nil {
			return nil, err
		}
		tile.Blocks[indexToBlockKey(idx)] = block
	}
	return tile, nil
}
