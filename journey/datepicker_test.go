package journey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJourneyDatePickerNoPoints(t *testing.T) {
	p := NewJourneyDatePicker()
	_, ok := p.PickJourneyDate()
	assert.False(t, ok)
	assert.Nil(t, p.MinTime())
	assert.Nil(t, p.MaxTime())
}

func TestJourneyDatePickerPicksMostRecentDayWithComparableSpread(t *testing.T) {
	p := NewJourneyDatePicker()

	day1 := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)

	// Day 1: a wide spread.
	p.AddPoint(day1, NewTrackPoint(0, 0))
	p.AddPoint(day1, NewTrackPoint(1, 1))

	// Day 2: a comparable spread (more than half of day1's), later date.
	p.AddPoint(day2, NewTrackPoint(0, 0))
	p.AddPoint(day2, NewTrackPoint(0.9, 0.9))

	days, ok := p.PickJourneyDate()
	require.True(t, ok)
	wantYear, wantMonth, wantDay := day2.Date()
	assert.Equal(t, DateToDays(wantYear, wantMonth, wantDay), days)
}

func TestJourneyDatePickerIgnoresNarrowDay(t *testing.T) {
	p := NewJourneyDatePicker()

	day1 := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)

	// Day 1: large spread.
	p.AddPoint(day1, NewTrackPoint(0, 0))
	p.AddPoint(day1, NewTrackPoint(5, 5))

	// Day 2: tiny spread, well under half of day1's distance.
	p.AddPoint(day2, NewTrackPoint(0, 0))
	p.AddPoint(day2, NewTrackPoint(0.001, 0.001))

	days, ok := p.PickJourneyDate()
	require.True(t, ok)
	wantYear, wantMonth, wantDay := day1.Date()
	assert.Equal(t, DateToDays(wantYear, wantMonth, wantDay), days)
}

func TestJourneyDatePickerTracksMinMaxTime(t *testing.T) {
	p := NewJourneyDatePicker()
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	p.AddPoint(late, NewTrackPoint(0, 0))
	p.AddPoint(early, NewTrackPoint(0, 0))

	require.NotNil(t, p.MinTime())
	require.NotNil(t, p.MaxTime())
	assert.True(t, p.MinTime().Equal(early))
	assert.True(t, p.MaxTime().Equal(late))
}

func TestHaversineDistanceMetersZeroForSamePoint(t *testing.T) {
	assert.Equal(t, 0.0, HaversineDistanceMeters(10, 20, 10, 20))
	assert.Greater(t, HaversineDistanceMeters(0, 0, 1, 1), 0.0)
}
