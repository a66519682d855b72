package store

import (
	"fmt"

	"github.com/memolanes/kernel/journey"
)

// knownJourneyKinds enumerates the closed part of journey.Kind (Default,
// Flight) that LayerAll recurses into. KindCustom journeys are reachable
// only through their own explicit LayerKind cache, matching
// merged_journey_builder.rs's handling of the open-ended Custom variant:
// "All" only ever meant the two built-in kinds.
var knownJourneyKinds = []journey.Kind{journey.KindDefault{}, journey.KindFlight{}}

// AddVectorToBitmap rasterizes every consecutive point pair of v into bm,
// per merged_journey_builder.rs's add_journey_vector_to_journey_bitmap. A
// segment of a single point has no "next" point to pair with, so (per that
// function's prevIdx := max(i-1, 0) handling of i==0) it draws a zero-length
// line from the point to itself, marking exactly one cell rather than
// rendering nothing.
func AddVectorToBitmap(bm *journey.Bitmap, v journey.Vector) {
	for _, seg := range v.TrackSegments {
		if len(seg.TrackPoints) == 1 {
			p := seg.TrackPoints[0]
			bm.AddLine(p.Longitude(), p.Latitude(), p.Longitude(), p.Latitude(), nil)
			continue
		}
		for i := 0; i+1 < len(seg.TrackPoints); i++ {
			a, b := seg.TrackPoints[i], seg.TrackPoints[i+1]
			bm.AddLine(a.Longitude(), a.Latitude(), b.Longitude(), b.Latitude(), nil)
		}
	}
}

// addJourneyDataToBitmap folds one journey's payload into bm: a bitmap
// payload is merged in directly, a vector payload is rasterized.
func addJourneyDataToBitmap(bm *journey.Bitmap, data journey.Data) {
	switch d := data.(type) {
	case journey.BitmapData:
		bm.Merge(d.Bitmap)
	case journey.VectorData:
		AddVectorToBitmap(bm, d.Vector)
	}
}

// getRangeInternal iterates headers in [from, to] (optionally filtered to
// kind), merging bitmap journeys and rasterizing vector journeys into a
// freshly built bitmap.
func getRangeInternal(txn *Txn, from, to *int64, kind journey.Kind) (*journey.Bitmap, error) {
	headers, err := txn.QueryJourneys(from, to)
	if err != nil {
		return nil, err
	}
	result := journey.NewBitmap()
	for _, h := range headers {
		if kind != nil && !journey.KindsEqual(h.Kind, kind) {
			continue
		}
		data, ok, err := txn.GetJourneyData(h.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		addJourneyDataToBitmap(result, data)
	}
	return result, nil
}

// GetRange is the public form of getRangeInternal: every finalized journey
// in [from, to], optionally restricted to kind, merged into one bitmap. It
// bypasses the cache store entirely (used for ad hoc range queries, not the
// cached "all finalized journeys of a layer" view).
func GetRange(txn *Txn, from, to *int64, kind journey.Kind) (*journey.Bitmap, error) {
	return getRangeInternal(txn, from, to, kind)
}

// GetAllFinalizedJourneys resolves layerKind's cached merged bitmap,
// computing (and caching) it on a miss: a LayerKind computes directly from
// matching journeys, while LayerAll recurses into every known kind and
// merges their results.
func GetAllFinalizedJourneys(txn *Txn, cache *CacheStore, layerKind CacheLayerKind) (*journey.Bitmap, error) {
	switch lk := layerKind.(type) {
	case LayerKind:
		return cache.GetFullJourneyCacheOrCompute(lk, func() (*journey.Bitmap, error) {
			return getRangeInternal(txn, nil, nil, lk.Kind)
		})
	case LayerAll:
		return cache.GetFullJourneyCacheOrCompute(lk, func() (*journey.Bitmap, error) {
			result := journey.NewBitmap()
			for _, k := range knownJourneyKinds {
				bm, err := GetAllFinalizedJourneys(txn, cache, LayerKind{Kind: k})
				if err != nil {
					return nil, err
				}
				result.Merge(bm)
			}
			return result, nil
		})
	default:
		return nil, fmt.Errorf("store: unknown layer kind %T", layerKind)
	}
}

// GetLatestIncludingOngoing starts from layerKind's cached layer (or an
// empty bitmap if layerKind is nil), optionally merges in the current
// ongoing journey's rasterization, and returns a bitmap the caller owns
// outright (a clone of the cached one, since the cache entry itself must
// not be mutated by callers). Because this only reads the primary store,
// it asserts the txn's Action is still ActionNone before returning.
func GetLatestIncludingOngoing(txn *Txn, cache *CacheStore, layerKind CacheLayerKind, includeOngoing bool) (*journey.Bitmap, error) {
	var base *journey.Bitmap
	if layerKind == nil {
		base = journey.NewBitmap()
	} else {
		var err error
		base, err = GetAllFinalizedJourneys(txn, cache, layerKind)
		if err != nil {
			return nil, err
		}
	}
	result := base.Clone()

	if includeOngoing {
		ongoing, ok, err := txn.GetOngoingJourney()
		if err != nil {
			return nil, err
		}
		if ok {
			AddVectorToBitmap(result, ongoing.Vector)
		}
	}

	if !isActionNone(txn.Action) {
		return nil, fmt.Errorf("store: GetLatestIncludingOngoing is read-only but txn.Action is %v", txn.Action)
	}
	return result, nil
}
