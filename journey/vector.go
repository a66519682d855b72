package journey

import "github.com/paulmach/orb"

// TrackPoint is a single recorded fix, stored as an orb.Point ([lng, lat]).
type TrackPoint struct {
	orb.Point
}

// NewTrackPoint builds a TrackPoint from latitude/longitude.
func NewTrackPoint(lat, lng float64) TrackPoint {
	return TrackPoint{orb.Point{lng, lat}}
}

// Longitude returns the point's longitude.
func (p TrackPoint) Longitude() float64 { return p.Point[0] }

// Latitude returns the point's latitude.
func (p TrackPoint) Latitude() float64 { return p.Point[1] }

// TrackSegment is an ordered run of points recorded without a break.
type TrackSegment struct {
	TrackPoints []TrackPoint
}

// Vector is an ordered sequence of track segments: an alternative journey
// payload to Bitmap, and the rasterizer's input.
type Vector struct {
	TrackSegments []TrackSegment
}
