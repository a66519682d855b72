package journey

import (
	"math"
	"time"
)

// HaversineDistanceMeters returns the great-circle distance between two
// lat/lng points, matching gps_processor.rs's RawData::haversine_distance
// (R = 6371e3 meters).
func HaversineDistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const r = 6371e3
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return r * c
}

type furthestPointTracker struct {
	latMin, latMax, lonMin, lonMax float64
}

func newFurthestPointTracker(p TrackPoint) *furthestPointTracker {
	return &furthestPointTracker{
		latMin: p.Latitude(), latMax: p.Latitude(),
		lonMin: p.Longitude(), lonMax: p.Longitude(),
	}
}

func (f *furthestPointTracker) update(p TrackPoint) {
	f.latMin = math.Min(f.latMin, p.Latitude())
	f.latMax = math.Max(f.latMax, p.Latitude())
	f.lonMin = math.Min(f.lonMin, p.Longitude())
	f.lonMax = math.Max(f.lonMax, p.Longitude())
}

func (f *furthestPointTracker) distanceMeters() float64 {
	return HaversineDistanceMeters(f.latMin, f.lonMin, f.latMax, f.lonMax)
}

// JourneyDatePicker tracks, for each local calendar day, the bounding box
// of observed points, and picks the most recent day whose diagonal
// distance is at least half of the largest such distance across all days
// — see the glossary entry "Journey date".
type JourneyDatePicker struct {
	trackers map[civilDate]*furthestPointTracker
	minTime  *time.Time
	maxTime  *time.Time
}

// civilDate is a local calendar date (no location needed beyond what
// time.Time.In already carries).
type civilDate struct {
	year  int
	month time.Month
	day   int
}

func toCivilDate(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

// NewJourneyDatePicker returns an empty picker.
func NewJourneyDatePicker() *JourneyDatePicker {
	return &JourneyDatePicker{trackers: make(map[civilDate]*furthestPointTracker)}
}

// AddPoint records a point observed at the given local time.
func (p *JourneyDatePicker) AddPoint(t time.Time, point TrackPoint) {
	date := toCivilDate(t)
	if tr, ok := p.trackers[date]; ok {
		tr.update(point)
	} else {
		p.trackers[date] = newFurthestPointTracker(point)
	}
	if p.minTime == nil || t.Before(*p.minTime) {
		tCopy := t
		p.minTime = &tCopy
	}
	if p.maxTime == nil || t.After(*p.maxTime) {
		tCopy := t
		p.maxTime = &tCopy
	}
}

// PickJourneyDate returns the days-since-epoch of the chosen date, or false
// if no point was ever added.
func (p *JourneyDatePicker) PickJourneyDate() (int64, bool) {
	var maxDistance float64
	type dd struct {
		date civilDate
		dist float64
	}
	distances := make([]dd, 0, len(p.trackers))
	for date, tr := range p.trackers {
		dist := tr.distanceMeters()
		if dist > maxDistance {
			maxDistance = dist
		}
		distances = append(distances, dd{date, dist})
	}

	var best civilDate
	found := false
	for _, d := range distances {
		if d.dist < maxDistance/2 {
			continue
		}
		if !found || civilDateAfter(d.date, best) {
			best = d.date
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return DateToDays(best.year, best.month, best.day), true
}

func civilDateAfter(a, b civilDate) bool {
	if a.year != b.year {
		return a.year > b.year
	}
	if a.month != b.month {
		return a.month > b.month
	}
	return a.day > b.day
}

// MinTime returns the earliest time recorded, if any.
func (p *JourneyDatePicker) MinTime() *time.Time { return p.minTime }

// MaxTime returns the latest time recorded, if any.
func (p *JourneyDatePicker) MaxTime() *time.Time { return p.maxTime }
