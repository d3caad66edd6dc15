package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/repositories"
)

const slopeChunkSize = 1000

// SlopeEngine maintains the derived per-card slope rows, one per tracked
// interval, anchored at each card's latest observation date.
type SlopeEngine struct {
	prices    repositories.PriceRepository
	slopes    repositories.SlopeRepository
	metric    models.PriceMetric
	intervals []int
}

func NewSlopeEngine(prices repositories.PriceRepository, slopes repositories.SlopeRepository, intervals []int) *SlopeEngine {
	if len(intervals) == 0 {
		intervals = config.SlopeIntervals()
	}
	return &SlopeEngine{
		prices:    prices,
		slopes:    slopes,
		metric:    models.MetricTrend,
		intervals: intervals,
	}
}

// UpdateCardSlopes recomputes slopes for a card set and upserts the results.
// Cards whose interval window holds fewer than two observations keep their
// existing row for that interval; cards with no observations at all have
// their derived rows purged. Returns (created, updated) counts.
func (e *SlopeEngine) UpdateCardSlopes(ctx context.Context, cardIDs []int64) (int, int, error) {
	start := time.Now()
	created := 0
	updated := 0
	purged := 0

	maxInterval := 0
	for _, interval := range e.intervals {
		if interval > maxInterval {
			maxInterval = interval
		}
	}

	for i := 0; i < len(cardIDs); i += slopeChunkSize {
		end := i + slopeChunkSize
		if end > len(cardIDs) {
			end = len(cardIDs)
		}
		chunk := cardIDs[i:end]

		latestDates, err := e.prices.LatestDates(ctx, chunk, e.metric)
		if err != nil {
			return created, updated, fmt.Errorf("failed to fetch latest dates: %w", err)
		}

		// Cards with no observations left cannot keep derived rows around
		var stale []int64
		for _, cmID := range chunk {
			if _, ok := latestDates[cmID]; !ok {
				stale = append(stale, cmID)
			}
		}
		if len(stale) > 0 {
			n, err := e.slopes.DeleteByCards(ctx, stale)
			if err != nil {
				return created, updated, fmt.Errorf("failed to purge stale slopes: %w", err)
			}
			purged += n
		}

		if len(latestDates) == 0 {
			continue
		}

		// One bulk series fetch covers every interval window in the chunk
		var earliest time.Time
		for _, latest := range latestDates {
			cutoff := latest.AddDate(0, 0, -maxInterval)
			if earliest.IsZero() || cutoff.Before(earliest) {
				earliest = cutoff
			}
		}

		series, err := e.prices.GetSeriesForCards(ctx, chunk, e.metric, earliest)
		if err != nil {
			return created, updated, fmt.Errorf("failed to fetch price series: %w", err)
		}

		var upserts []*models.PriceSlope
		for _, cmID := range chunk {
			latest, ok := latestDates[cmID]
			if !ok {
				continue
			}
			points := series[cmID]

			for _, interval := range e.intervals {
				windowStart := latest.AddDate(0, 0, -interval)
				window := pointsInWindow(points, windowStart, latest)
				if len(window) < 2 {
					continue
				}

				initial := window[0].Value
				final := window[len(window)-1].Value

				upserts = append(upserts, &models.PriceSlope{
					CMID:          cmID,
					IntervalDays:  interval,
					Slope:         Slope(window),
					PercentChange: PercentChange(initial, final),
					InitialPrice:  initial,
					FinalPrice:    final,
					Active:        true,
				})
			}
		}

		chunkCreated, chunkUpdated, err := e.slopes.Upsert(ctx, upserts)
		if err != nil {
			return created, updated, fmt.Errorf("failed to upsert slopes: %w", err)
		}
		created += chunkCreated
		updated += chunkUpdated
	}

	slog.Info("Card slopes updated",
		slog.String("type", "ingest"),
		slog.Int("cards", len(cardIDs)),
		slog.Int("created", created),
		slog.Int("updated", updated),
		slog.Int("purged", purged),
		slog.Duration("took", time.Since(start)),
	)

	return created, updated, nil
}

// pointsInWindow returns the points with start <= date <= end, relying on the
// input being ordered ascending by date.
func pointsInWindow(points []models.SeriesPoint, start, end time.Time) []models.SeriesPoint {
	var window []models.SeriesPoint
	for _, p := range points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		window = append(window, p)
	}
	return window
}
