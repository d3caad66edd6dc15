package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
)

func TestSlopeEngineUpdateCardSlopes(t *testing.T) {
	ctx := context.Background()

	prices := &fakePriceRepo{}
	// Daily trend observations rising 0.5/day, anchored well in the past so
	// the computed windows prove they hang off the latest observation date
	// rather than the wall clock.
	for n := 0; n <= 30; n++ {
		prices.add(1, day(n), 10+0.5*float64(n))
	}

	slopes := newFakeSlopeRepo()
	engine := NewSlopeEngine(prices, slopes, []int{2, 7, 30})

	created, updated, err := engine.UpdateCardSlopes(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, 0, updated)

	rows, err := slopes.GetByCard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.InDelta(t, 0.5, row.Slope, 1e-9, "interval %d", row.IntervalDays)
		assert.InDelta(t, 25.0, row.FinalPrice, 1e-9, "interval %d", row.IntervalDays)
	}

	assert.InDelta(t, 24.0, rows[0].InitialPrice, 1e-9)
	assert.InDelta(t, 100*(25.0-24.0)/24.0, rows[0].PercentChange, 1e-9)

	assert.InDelta(t, 21.5, rows[1].InitialPrice, 1e-9)
	assert.InDelta(t, 100*(25.0-21.5)/21.5, rows[1].PercentChange, 1e-9)

	assert.InDelta(t, 10.0, rows[2].InitialPrice, 1e-9)
	assert.InDelta(t, 150.0, rows[2].PercentChange, 1e-9)
}

func TestSlopeEngineUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()

	prices := &fakePriceRepo{}
	for n := 0; n <= 30; n++ {
		prices.add(1, day(n), 10+0.5*float64(n))
	}

	slopes := newFakeSlopeRepo()
	engine := NewSlopeEngine(prices, slopes, []int{2, 7, 30})

	_, _, err := engine.UpdateCardSlopes(ctx, []int64{1})
	require.NoError(t, err)
	first, err := slopes.GetByCard(ctx, 1)
	require.NoError(t, err)

	created, updated, err := engine.UpdateCardSlopes(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 3, updated)

	second, err := slopes.GetByCard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].IntervalDays, second[i].IntervalDays)
		assert.InDelta(t, first[i].Slope, second[i].Slope, 1e-9)
		assert.InDelta(t, first[i].PercentChange, second[i].PercentChange, 1e-9)
		assert.InDelta(t, first[i].InitialPrice, second[i].InitialPrice, 1e-9)
		assert.InDelta(t, first[i].FinalPrice, second[i].FinalPrice, 1e-9)
	}
}

func TestSlopeEngineSkipsSparseIntervals(t *testing.T) {
	ctx := context.Background()

	prices := &fakePriceRepo{}
	// Two observations five days apart: the 2-day window holds only the
	// latest point, so only the 7 and 30 day intervals produce rows.
	prices.add(2, day(25), 12)
	prices.add(2, day(30), 18)

	slopes := newFakeSlopeRepo()
	engine := NewSlopeEngine(prices, slopes, []int{2, 7, 30})

	created, updated, err := engine.UpdateCardSlopes(ctx, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 0, updated)

	rows, err := slopes.GetByCard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 7, rows[0].IntervalDays)
	assert.Equal(t, 30, rows[1].IntervalDays)
	for _, row := range rows {
		assert.InDelta(t, 12.0, row.InitialPrice, 1e-9)
		assert.InDelta(t, 18.0, row.FinalPrice, 1e-9)
		assert.InDelta(t, 50.0, row.PercentChange, 1e-9)
	}
}

func TestSlopeEngineNoObservations(t *testing.T) {
	ctx := context.Background()

	engine := NewSlopeEngine(&fakePriceRepo{}, newFakeSlopeRepo(), nil)

	created, updated, err := engine.UpdateCardSlopes(ctx, []int64{99})
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 0, updated)
}

func TestSlopeEnginePurgesRowsForCardsWithoutObservations(t *testing.T) {
	ctx := context.Background()

	prices := &fakePriceRepo{}
	prices.add(1, day(29), 10)
	prices.add(1, day(30), 12)

	slopes := newFakeSlopeRepo()
	_, _, err := slopes.Upsert(ctx, []*models.PriceSlope{
		{CMID: 2, IntervalDays: 7, Slope: 1, PercentChange: 50, InitialPrice: 2, FinalPrice: 3},
		{CMID: 2, IntervalDays: 30, Slope: 1, PercentChange: 80, InitialPrice: 2, FinalPrice: 3.6},
	})
	require.NoError(t, err)

	engine := NewSlopeEngine(prices, slopes, []int{7, 30})

	// Card 2 lost all its price rows; its derived rows must go with them
	_, _, err = engine.UpdateCardSlopes(ctx, []int64{1, 2})
	require.NoError(t, err)

	gone, err := slopes.GetByCard(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := slopes.GetByCard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, kept, 2)
}
