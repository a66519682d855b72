package journey

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Renderer owns a Bitmap and a monotonically increasing (wrapping) version
// counter, bumped on every mutation, plus a memoized area and a per-tile
// area memo passed through to ComputeArea. Reads (GetTileBuffer,
// GetLatestBitmapIfChanged) take a read lock; mutations (Update, Replace)
// and GetCurrentArea, which fills the area memos, take a write lock — a
// reader-writer split pulled down
// from the would-be server renderer registry described in spec.md §5, since
// the server itself is out of scope here.
type Renderer struct {
	mu            sync.RWMutex
	bitmap        *Bitmap
	tileAreaCache map[TileKey]float64
	version       uint64
	currentArea   *uint64
}

// NewRenderer wraps bm (taking ownership of it) in a fresh Renderer at
// version 0.
func NewRenderer(bm *Bitmap) *Renderer {
	if bm == nil {
		bm = NewBitmap()
	}
	return &Renderer{
		bitmap:        bm,
		tileAreaCache: make(map[TileKey]float64),
	}
}

// Update calls f with a mutable view of the bitmap and a tileChanged
// callback; f should invoke tileChanged for every tile it touches. After f
// returns, the renderer invalidates the area memo for each notified tile,
// bumps the version, and clears the cached current area.
func (r *Renderer) Update(f func(bm *Bitmap, tileChanged func(TileKey))) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []TileKey
	f(r.bitmap, func(tk TileKey) {
		changed = append(changed, tk)
	})
	for _, tk := range changed {
		delete(r.tileAreaCache, tk)
	}
	r.reset()
}

// Replace swaps in a new bitmap wholesale, clearing the area memo.
func (r *Renderer) Replace(bm *Bitmap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bitmap = bm
	r.tileAreaCache = make(map[TileKey]float64)
	r.reset()
}

func (r *Renderer) reset() {
	r.version++
	r.currentArea = nil
}

// GetCurrentVersion returns the raw version counter.
func (r *Renderer) GetCurrentVersion() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// GetVersionString returns the version counter as lowercase hex.
func (r *Renderer) GetVersionString() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("%x", r.version)
}

// ParseVersionString parses a (possibly quoted) hex version string.
func ParseVersionString(s string) (uint64, bool) {
	cleaned := strings.Trim(s, "\"")
	v, err := strconv.ParseUint(cleaned, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// GetLatestBitmapIfChanged returns the current bitmap and version string
// unless clientVersion parses to the current version, in which case it
// returns (nil, "", false) as a not-modified signal.
func (r *Renderer) GetLatestBitmapIfChanged(clientVersion *string) (*Bitmap, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if clientVersion != nil {
		if v, ok := ParseVersionString(*clientVersion); ok && v == r.version {
			return nil, "", false
		}
	}
	return r.bitmap, fmt.Sprintf("%x", r.version), true
}

// PeekLatestBitmap returns the current bitmap without any version check.
func (r *Renderer) PeekLatestBitmap() *Bitmap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bitmap
}

// GetCurrentArea returns the memoized total area in square meters,
// recomputing (and caching) it if the memo was cleared by a prior Update or
// Replace.
func (r *Renderer) GetCurrentArea() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentArea == nil {
		v := AreaSquareMeters(ComputeArea(r.bitmap, r.tileAreaCache))
		r.currentArea = &v
	}
	return *r.currentArea
}

// GetTileBuffer extracts a TileBuffer for the given range; see
// NewTileBuffer for parameter bounds.
func (r *Renderer) GetTileBuffer(x, y int64, z int16, width, height int64, bufferSizePower int16) (*TileBuffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return NewTileBuffer(r.bitmap, x, y, z, width, height, bufferSizePower)
}
