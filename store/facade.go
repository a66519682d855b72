package store

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/memolanes/kernel/journey"
)

// Facade is the single entry point that owns both the primary store and
// the cache store behind one mutex, routes transactions, invalidates and
// rebuilds cached layers on commit, and produces the bitmaps the map
// renderer consumes — spec.md §4.8/§4.9.
type Facade struct {
	mu sync.Mutex

	primary *PrimaryStore
	cache   *CacheStore
	rawData *RawDataRecorder
	logger  *log.Logger
	metrics *metrics

	callbacksMu sync.Mutex
	callbacks   []func()
}

// NewFacade opens (creating if absent) main.db under supportDir and
// cache.db under cacheDir, restores the persisted raw-data-mode toggle, and
// returns a ready Facade.
func NewFacade(supportDir, cacheDir string, logger *log.Logger) (*Facade, error) {
	if logger == nil {
		logger = defaultLogger()
	}
	if err := os.MkdirAll(supportDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating support dir: %w", err)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating cache dir: %w", err)
	}

	primary, err := OpenPrimaryStore(filepath.Join(supportDir, "main.db"), logger)
	if err != nil {
		return nil, err
	}
	cacheStore, err := OpenCacheStore(filepath.Join(cacheDir, "cache.db"), logger)
	if err != nil {
		primary.Close()
		return nil, err
	}

	m := newMetrics(logger)
	cacheStore.attachMetrics(m)

	rawData := NewRawDataRecorder(filepath.Join(supportDir, "raw_data"))
	if v, ok, err := primary.getSetting("raw_data_mode"); err == nil && ok {
		rawData.SetEnabled(v == "1")
	}

	return &Facade{
		primary: primary,
		cache:   cacheStore,
		rawData: rawData,
		logger:  logger,
		metrics: m,
	}, nil
}

// Close releases both stores and the raw-data recorder.
func (fa *Facade) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	note(fa.rawData.Close())
	note(fa.primary.Close())
	note(fa.cache.Close())
	return firstErr
}

// OnFinalizedJourneyChanged registers cb to be invoked, outside all locks,
// after a WithTxn commit whose Action was not ActionNone. cb must be
// reentrancy-safe with the façade, since it may itself call back into
// WithTxn.
func (fa *Facade) OnFinalizedJourneyChanged(cb func()) {
	fa.callbacksMu.Lock()
	defer fa.callbacksMu.Unlock()
	fa.callbacks = append(fa.callbacks, cb)
}

func (fa *Facade) fireFinalizedJourneyChanged() {
	fa.callbacksMu.Lock()
	cbs := append([]func(){}, fa.callbacks...)
	fa.callbacksMu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// WithTxn runs fn inside a primary-store transaction. If fn succeeds, the
// façade inspects the committed txn's Action and repairs caches
// accordingly while still holding its lock, then — after releasing the
// lock — fires any finalized-journey-changed callbacks. A failed cache
// repair is logged, not returned: the primary-store commit has already
// succeeded, and a stale/partial cache can always be cleared and
// recomputed on next read (spec.md §7).
func (fa *Facade) WithTxn(fn func(*Txn) error) error {
	start := time.Now()
	fa.mu.Lock()

	var action TxnAction = ActionNone{}
	err := fa.primary.WithTxn(func(txn *Txn) error {
		if e := fn(txn); e != nil {
			return e
		}
		action = txn.Action
		return nil
	})
	fa.metrics.observeTxn(actionName(action), err, time.Since(start))

	if err != nil {
		fa.mu.Unlock()
		return err
	}

	fa.repairCache(action)
	fa.mu.Unlock()

	if !isActionNone(action) {
		fa.fireFinalizedJourneyChanged()
	}
	return nil
}

func (fa *Facade) repairCache(action TxnAction) {
	switch a := action.(type) {
	case ActionNone:
		return
	case ActionCompleteRebuilt:
		if err := fa.cache.ClearAllCache(); err != nil {
			fa.logger.Printf("store: cache repair (complete rebuild) failed: %v", err)
		}
	case ActionMerge:
		if err := fa.cache.DeleteFullJourneyCache(LayerAll{}); err != nil {
			fa.logger.Printf("store: cache repair (invalidate All) failed: %v", err)
		}
		if err := fa.mergeIntoKindCaches(a.JourneyIDs); err != nil {
			fa.logger.Printf("store: cache repair (merge into kind caches) failed: %v", err)
		}
	default:
		fa.logger.Printf("store: cache repair: unknown action %T", action)
	}
}

// mergeIntoKindCaches reads the listed journeys (a fresh, short read-only
// transaction — the enclosing WithTxn's transaction has already committed
// by this point) and, for each kind among them that has an existing cache
// entry, merges that kind's newly-inserted journeys into it directly
// rather than recomputing from scratch.
func (fa *Facade) mergeIntoKindCaches(journeyIDs []string) error {
	byKind := make(map[string][]journey.Data)
	kindByKey := make(map[string]journey.Kind)

	err := fa.primary.WithTxn(func(txn *Txn) error {
		for _, id := range journeyIDs {
			header, data, ok, err := txn.GetJourney(id)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			key := header.Kind.Encoded()
			byKind[key] = append(byKind[key], data)
			kindByKey[key] = header.Kind
		}
		return nil
	})
	if err != nil {
		return err
	}

	for key, datas := range byKind {
		layer := LayerKind{Kind: kindByKey[key]}
		_, err := fa.cache.UpdateFullJourneyCacheIfExists(layer, func(bm *journey.Bitmap) {
			for _, d := range datas {
				addJourneyDataToBitmap(bm, d)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GetLatestBitmapForMainMapRenderer resolves layerKind's layer (nil means
// no finalized-journey layer at all, just whatever ongoing data follows)
// via the merged journey builder, optionally merging in the current
// ongoing journey, and returns a bitmap the caller owns outright — the
// value a Renderer would Replace() itself with.
func (fa *Facade) GetLatestBitmapForMainMapRenderer(layerKind CacheLayerKind, includeOngoing bool) (*journey.Bitmap, error) {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	var result *journey.Bitmap
	err := fa.primary.WithTxn(func(txn *Txn) error {
		bm, err := GetLatestIncludingOngoing(txn, fa.cache, layerKind, includeOngoing)
		if err != nil {
			return err
		}
		result = bm
		return nil
	})
	return result, err
}

// AppendGPSPoint appends one fix to the ongoing log and, if raw data mode
// is enabled, to the raw-data CSV recorder. A recorder failure is logged,
// not returned, since it is a debugging aid and must never block ingestion
// of the primary ongoing-log write that already succeeded.
func (fa *Facade) AppendGPSPoint(t time.Time, lat, lng float64, result ProcessResult) error {
	if err := fa.WithTxn(func(txn *Txn) error {
		return txn.AppendOngoingPoint(t.Unix(), lat, lng, result)
	}); err != nil {
		return err
	}
	if err := fa.rawData.Record(t, lat, lng, result); err != nil {
		fa.logger.Printf("store: raw data recorder: %v", err)
	}
	return nil
}

// BulkInsertJourneys inserts entries in a single primary-store transaction
// and repairs caches once for the whole batch, the way an archive importer
// would load a section's worth of journeys. Progress is reported through
// progressbar.Default, the same bar-per-pass idiom convert.go's
// ConvertMbtiles uses for its tile passes, repurposed here for a count of
// journeys instead of tiles; pass showProgress=false (tests, headless
// ingestion) to skip it entirely.
func (fa *Facade) BulkInsertJourneys(entries []BulkJourneyEntry, showProgress bool) error {
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(entries)))
	}
	ids := make([]string, 0, len(entries))
	return fa.WithTxn(func(txn *Txn) error {
		for _, e := range entries {
			if err := txn.InsertJourney(e.Header, e.Data); err != nil {
				return err
			}
			ids = append(ids, e.Header.ID)
			if bar != nil {
				bar.Add(1)
			}
		}
		txn.Action = ActionMerge{JourneyIDs: ids}
		return nil
	})
}

// SetRawDataMode toggles the raw-data recorder and persists the toggle so
// it survives restarts.
func (fa *Facade) SetRawDataMode(enabled bool) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	value := "0"
	if enabled {
		value = "1"
	}
	if err := fa.primary.setSetting("raw_data_mode", value); err != nil {
		return err
	}
	fa.rawData.SetEnabled(enabled)
	return nil
}

// RawDataMode reports whether raw data recording is currently enabled.
func (fa *Facade) RawDataMode() bool {
	return fa.rawData.Enabled()
}

// MainState is the process-wide singleton spec.md's Design Notes require:
// the storage façade plus the renderer it feeds. A real server handle
// would sit alongside these, but the server itself is out of scope here.
type MainState struct {
	Facade   *Facade
	Renderer *journey.Renderer
}

var (
	mainStateMu   sync.Mutex
	mainState     *MainState
	mainStateInit bool
)

// InitMainState initializes the process-wide MainState once. A second call
// is an idempotent no-op that logs a warning instead of erroring, per
// spec.md's Design Notes ("subsequent init calls must be idempotent
// no-ops with a warning") — preserved here as an explicit function rather
// than a hidden package-init side effect, but the singleton contract
// itself is kept for callers that rely on it.
func InitMainState(supportDir, cacheDir string, logger *log.Logger) (*MainState, error) {
	mainStateMu.Lock()
	defer mainStateMu.Unlock()
	if logger == nil {
		logger = defaultLogger()
	}
	if mainStateInit {
		logger.Println("store: InitMainState called again; ignoring, MainState is already initialized")
		return mainState, nil
	}

	facade, err := NewFacade(supportDir, cacheDir, logger)
	if err != nil {
		return nil, err
	}
	bm, err := facade.GetLatestBitmapForMainMapRenderer(LayerAll{}, true)
	if err != nil {
		facade.Close()
		return nil, err
	}

	mainState = &MainState{Facade: facade, Renderer: journey.NewRenderer(bm)}
	mainStateInit = true
	return mainState, nil
}

// CurrentMainState returns the singleton set up by a prior InitMainState
// call, or nil if none has succeeded yet.
func CurrentMainState() *MainState {
	mainStateMu.Lock()
	defer mainStateMu.Unlock()
	return mainState
}
