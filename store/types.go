// Package store implements the primary journey store, the derived cache
// store, and the façade that coordinates them.
package store

import (
	"time"

	"github.com/memolanes/kernel/journey"
)

// CacheLayerKind identifies a cached merged bitmap: either the union of all
// finalized journeys ("All"), or all journeys of one journey.Kind.
type CacheLayerKind interface {
	// Encoded is the stable, injective string used as the cache table's
	// primary key.
	Encoded() string
}

// LayerAll is the composite cache of every finalized journey.
type LayerAll struct{}

func (LayerAll) Encoded() string { return "all" }

// LayerKind caches journeys of a single journey.Kind.
type LayerKind struct {
	Kind journey.Kind
}

func (l LayerKind) Encoded() string { return "kind:" + l.Kind.Encoded() }

// OngoingJourney is the materialized form of the unfinalized point log.
type OngoingJourney struct {
	Start, End time.Time
	Vector     journey.Vector
}

// TxnAction is the side-channel a Txn sets to tell the façade what cache
// repair is needed after commit.
type TxnAction interface {
	isTxnAction()
}

// ActionNone means no cache repair is needed.
type ActionNone struct{}

func (ActionNone) isTxnAction() {}

// ActionCompleteRebuilt means every cached layer must be cleared and
// recomputed on next read (e.g. after a full rebuild/import).
type ActionCompleteRebuilt struct{}

func (ActionCompleteRebuilt) isTxnAction() {}

// ActionMerge means the listed journeys were newly inserted; the façade
// should delete the "All" cache and merge the new journeys' data into any
// existing per-kind caches.
type ActionMerge struct {
	JourneyIDs []string
}

func (ActionMerge) isTxnAction() {}

// BulkJourneyEntry is one journey to insert via Facade.BulkInsertJourneys,
// e.g. when importing an archive's worth of journeys in one pass.
type BulkJourneyEntry struct {
	Header journey.Header
	Data   journey.Data
}

// ProcessResult classifies one recorded GPS fix for ongoing-log
// segmentation.
type ProcessResult int8

const (
	ProcessIgnore     ProcessResult = -1
	ProcessAppend     ProcessResult = 0
	ProcessNewSegment ProcessResult = 1
)
