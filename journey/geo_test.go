package journey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLngLatTileXYRoundTrip(t *testing.T) {
	const zoom = 10
	lng, lat := 13.4, 52.5
	x, y := LngLatToTileXY(lng, lat, zoom)
	backLng, backLat := TileXYToLngLat(x, y, zoom)

	// One tile's worth of slack at this zoom.
	tileDegrees := 360.0 / float64(int64(1)<<zoom)
	assert.InDelta(t, lng, backLng, tileDegrees)
	assert.InDelta(t, lat, backLat, tileDegrees)
}

func TestDateToDaysEpoch(t *testing.T) {
	assert.Equal(t, int64(0), DateToDays(1970, time.January, 1))
	assert.Equal(t, int64(1), DateToDays(1970, time.January, 2))
}

func TestDaysToDateRoundTrip(t *testing.T) {
	days := DateToDays(2026, time.July, 31)
	y, m, d := DaysToDate(days)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.July, m)
	assert.Equal(t, 31, d)
}
