package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/uptrace/bun"
)

type SlopeRepository interface {
	Upsert(ctx context.Context, slopes []*models.PriceSlope) (created int, updated int, err error)
	TopByPercentChange(ctx context.Context, intervalDays int, limit int) ([]*models.PriceSlope, error)
	GetByCard(ctx context.Context, cmID int64) ([]*models.PriceSlope, error)
	DeleteByCards(ctx context.Context, cmIDs []int64) (int, error)
}

type slopeRepository struct {
	db *bun.DB
}

func NewSlopeRepository(db *bun.DB) SlopeRepository {
	return &slopeRepository{db: db}
}

// Upsert writes slope rows keyed by (cm_id, interval_days). Existing pairs are
// updated in place so each card carries at most one row per interval.
func (r *slopeRepository) Upsert(ctx context.Context, slopes []*models.PriceSlope) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	if len(slopes) == 0 {
		return 0, 0, nil
	}

	now := time.Now()
	created := 0
	updated := 0

	for i := 0; i < len(slopes); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(slopes) {
			end = len(slopes)
		}
		batch := slopes[i:end]

		ids := make([]int64, 0, len(batch))
		for _, slope := range batch {
			ids = append(ids, slope.CMID)
		}

		// Count pre-existing pairs so created/updated can be reported separately
		type pairRow struct {
			CMID         int64 `bun:"cm_id"`
			IntervalDays int   `bun:"interval_days"`
		}
		var existing []pairRow
		err := r.db.NewSelect().
			Model((*models.PriceSlope)(nil)).
			Column("cm_id", "interval_days").
			Where("cm_id IN (?)", bun.In(ids)).
			Scan(ctx, &existing)
		if err != nil {
			return created, updated, fmt.Errorf("failed to fetch existing slopes: %w", err)
		}

		existingPairs := make(map[[2]int64]struct{}, len(existing))
		for _, pair := range existing {
			existingPairs[[2]int64{pair.CMID, int64(pair.IntervalDays)}] = struct{}{}
		}

		for _, slope := range batch {
			slope.UpdatedAt = now
			if _, ok := existingPairs[[2]int64{slope.CMID, int64(slope.IntervalDays)}]; ok {
				updated++
			} else {
				slope.CreatedAt = now
				created++
			}
		}

		_, err = r.db.NewInsert().
			Model(&batch).
			On("CONFLICT (cm_id, interval_days) DO UPDATE").
			Set("slope = EXCLUDED.slope").
			Set("percent_change = EXCLUDED.percent_change").
			Set("initial_price = EXCLUDED.initial_price").
			Set("final_price = EXCLUDED.final_price").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return created, updated, err
		}
	}

	return created, updated, nil
}

func (r *slopeRepository) TopByPercentChange(ctx context.Context, intervalDays int, limit int) ([]*models.PriceSlope, error) {
	ctx, cancel := context.WithTimeout(ctx, config.StatsQueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = config.DefaultRankingLimit
	}

	// Fallers stay visible; positivity is an option at the ranking layer
	var slopes []*models.PriceSlope
	err := r.db.NewSelect().
		Model(&slopes).
		Where("interval_days = ?", intervalDays).
		Order("percent_change DESC").
		Limit(limit).
		Scan(ctx)

	return slopes, err
}

func (r *slopeRepository) GetByCard(ctx context.Context, cmID int64) ([]*models.PriceSlope, error) {
	ctx, cancel := context.WithTimeout(ctx, config.StatsQueryTimeout)
	defer cancel()

	var slopes []*models.PriceSlope
	err := r.db.NewSelect().
		Model(&slopes).
		Where("cm_id = ?", cmID).
		Order("interval_days ASC").
		Scan(ctx)

	return slopes, err
}

func (r *slopeRepository) DeleteByCards(ctx context.Context, cmIDs []int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	if len(cmIDs) == 0 {
		return 0, nil
	}

	total := 0
	for i := 0; i < len(cmIDs); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(cmIDs) {
			end = len(cmIDs)
		}

		res, err := r.db.NewDelete().
			Model((*models.PriceSlope)(nil)).
			Where("cm_id IN (?)", bun.In(cmIDs[i:end])).
			Exec(ctx)
		if err != nil {
			return total, err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += int(affected)
	}

	return total, nil
}
