package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memolanes/kernel/journey"
)

func openTestFacade(t *testing.T) *Facade {
	t.Helper()
	dir := t.TempDir()
	fa, err := NewFacade(filepath.Join(dir, "support"), filepath.Join(dir, "cache"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { fa.Close() })
	return fa
}

func TestBulkInsertJourneysSetsMergeActionAndClearsAllCache(t *testing.T) {
	fa := openTestFacade(t)

	// Warm the "All" cache so we can observe it getting invalidated.
	bm, err := fa.GetLatestBitmapForMainMapRenderer(LayerAll{}, false)
	require.NoError(t, err)
	assert.True(t, bm.IsEmpty())

	entries := []BulkJourneyEntry{
		{
			Header: journey.Header{ID: "bulk-1", Revision: "rev0001", Type: journey.TypeBitmap, Kind: journey.KindDefault{}},
			Data:   journey.BitmapData{Bitmap: func() *journey.Bitmap { b := journey.NewBitmap(); b.AddLine(0, 0, 1, 1, nil); return b }()},
		},
		{
			Header: journey.Header{ID: "bulk-2", Revision: "rev0002", Type: journey.TypeBitmap, Kind: journey.KindFlight{}},
			Data:   journey.BitmapData{Bitmap: func() *journey.Bitmap { b := journey.NewBitmap(); b.AddLine(2, 2, 3, 3, nil); return b }()},
		},
	}
	require.NoError(t, fa.BulkInsertJourneys(entries, false))

	got, err := fa.GetLatestBitmapForMainMapRenderer(LayerAll{}, false)
	require.NoError(t, err)
	assert.False(t, got.IsEmpty())

	require.NoError(t, fa.primary.WithTxn(func(txn *Txn) error {
		headers, err := txn.QueryJourneys(nil, nil)
		require.NoError(t, err)
		assert.Len(t, headers, 2)
		return nil
	}))
}

func TestFacadeFiresFinalizedJourneyChangedOutsideLock(t *testing.T) {
	fa := openTestFacade(t)

	fired := make(chan struct{}, 1)
	fa.OnFinalizedJourneyChanged(func() {
		// Must be able to re-enter the façade from within the callback
		// without deadlocking, since it runs after locks are released.
		_, err := fa.GetLatestBitmapForMainMapRenderer(LayerAll{}, false)
		assert.NoError(t, err)
		fired <- struct{}{}
	})

	require.NoError(t, fa.WithTxn(func(txn *Txn) error {
		return txn.AppendOngoingPoint(0, 0, 0, ProcessAppend)
	}))
	select {
	case <-fired:
		t.Fatal("callback fired for a txn with ActionNone")
	default:
	}

	require.NoError(t, fa.BulkInsertJourneys([]BulkJourneyEntry{
		{
			Header: journey.Header{ID: "bulk-3", Revision: "rev0003", Type: journey.TypeBitmap, Kind: journey.KindDefault{}},
			Data:   journey.BitmapData{Bitmap: journey.NewBitmap()},
		},
	}, false))
	<-fired
}

func TestFacadeRawDataModeTogglePersists(t *testing.T) {
	fa := openTestFacade(t)
	assert.False(t, fa.RawDataMode())
	require.NoError(t, fa.SetRawDataMode(true))
	assert.True(t, fa.RawDataMode())

	v, ok, err := fa.primary.getSetting("raw_data_mode")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)
}
