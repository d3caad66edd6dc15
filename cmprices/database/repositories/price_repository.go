package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	lru "github.com/hashicorp/golang-lru"
	"github.com/uptrace/bun"
)

// cachedLatest is an LRU entry for the most recent value of a (card, metric) pair.
type cachedLatest struct {
	value     *float64
	date      time.Time
	timestamp time.Time
}

type PriceRepository interface {
	BulkCreate(ctx context.Context, prices []*models.CardPrice) (int, error)
	ExistingCardIDs(ctx context.Context, catalogDate time.Time) (map[int64]struct{}, error)
	LatestCatalogDate(ctx context.Context) (time.Time, error)
	CardIDsForCatalogDate(ctx context.Context, catalogDate time.Time) ([]int64, error)
	GetSeries(ctx context.Context, cmID int64, metric models.PriceMetric, days int) ([]models.SeriesPoint, error)
	GetSeriesForCards(ctx context.Context, cmIDs []int64, metric models.PriceMetric, since time.Time) (map[int64][]models.SeriesPoint, error)
	LatestDates(ctx context.Context, cmIDs []int64, metric models.PriceMetric) (map[int64]time.Time, error)
	GetRecentPoints(ctx context.Context, cmID int64, metric models.PriceMetric, window int) ([]models.RawPoint, error)
	GetRecentPointsForCards(ctx context.Context, cmIDs []int64, metric models.PriceMetric, window int) (map[int64][]models.RawPoint, error)
	LatestPrice(ctx context.Context, cmID int64, metric models.PriceMetric) (*float64, time.Time, error)
}

type priceRepository struct {
	db    *bun.DB
	cache *lru.Cache
}

func NewPriceRepository(db *bun.DB) PriceRepository {
	cache, _ := lru.New(config.CacheSize)
	return &priceRepository{
		db:    db,
		cache: cache,
	}
}

// BulkCreate inserts price rows in batches, skipping rows whose
// (catalog_date, cm_id) pair already exists. Returns the number actually
// written.
func (r *priceRepository) BulkCreate(ctx context.Context, prices []*models.CardPrice) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	if len(prices) == 0 {
		return 0, nil
	}

	now := time.Now()
	totalCreated := 0

	for i := 0; i < len(prices); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(prices) {
			end = len(prices)
		}
		batch := prices[i:end]

		for _, price := range batch {
			price.CreatedAt = now
		}

		res, err := r.db.NewInsert().
			Model(&batch).
			On("CONFLICT (catalog_date, cm_id) DO NOTHING").
			Exec(ctx)

		if err != nil {
			return totalCreated, err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return totalCreated, err
		}

		totalCreated += int(affected)
	}

	return totalCreated, nil
}

// ExistingCardIDs returns the set of cards that already have a price row for
// the given catalog date.
func (r *priceRepository) ExistingCardIDs(ctx context.Context, catalogDate time.Time) (map[int64]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	var ids []int64
	err := r.db.NewSelect().
		Model((*models.CardPrice)(nil)).
		Column("cm_id").
		Where("catalog_date = ?", catalogDate).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing price card ids: %w", err)
	}

	existing := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		existing[id] = struct{}{}
	}

	return existing, nil
}

func (r *priceRepository) LatestCatalogDate(ctx context.Context) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	var date time.Time
	err := r.db.NewSelect().
		Model((*models.CardPrice)(nil)).
		ColumnExpr("MAX(catalog_date)").
		Scan(ctx, &date)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	return date, nil
}

func (r *priceRepository) CardIDsForCatalogDate(ctx context.Context, catalogDate time.Time) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	var ids []int64
	err := r.db.NewSelect().
		Model((*models.CardPrice)(nil)).
		Column("cm_id").
		Where("catalog_date = ?", catalogDate).
		Order("cm_id ASC").
		Scan(ctx, &ids)

	return ids, err
}

// GetSeries returns the non-null observations for one card and metric over the
// trailing number of days, oldest first.
func (r *priceRepository) GetSeries(ctx context.Context, cmID int64, metric models.PriceMetric, days int) ([]models.SeriesPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, config.StatsQueryTimeout)
	defer cancel()

	col := metric.Column()

	var points []models.SeriesPoint
	err := r.db.NewSelect().
		Model((*models.CardPrice)(nil)).
		ColumnExpr("catalog_date").
		ColumnExpr("? AS value", bun.Ident(col)).
		Where("cm_id = ?", cmID).
		Where("? IS NOT NULL", bun.Ident(col)).
		Where("catalog_date >= CURRENT_DATE - ?::interval", fmt.Sprintf("%d days", days)).
		Order("catalog_date ASC").
		Scan(ctx, &points)

	return points, err
}

// GetSeriesForCards bulk-loads non-null observations since a cutoff date for
// many cards at once, oldest first per card.
func (r *priceRepository) GetSeriesForCards(ctx context.Context, cmIDs []int64, metric models.PriceMetric, since time.Time) (map[int64][]models.SeriesPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	result := make(map[int64][]models.SeriesPoint, len(cmIDs))
	if len(cmIDs) == 0 {
		return result, nil
	}

	col := metric.Column()

	type seriesRow struct {
		CMID  int64     `bun:"cm_id"`
		Date  time.Time `bun:"catalog_date"`
		Value float64   `bun:"value"`
	}

	for i := 0; i < len(cmIDs); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(cmIDs) {
			end = len(cmIDs)
		}

		var rows []seriesRow
		err := r.db.NewSelect().
			Model((*models.CardPrice)(nil)).
			ColumnExpr("cm_id").
			ColumnExpr("catalog_date").
			ColumnExpr("? AS value", bun.Ident(col)).
			Where("cm_id IN (?)", bun.In(cmIDs[i:end])).
			Where("? IS NOT NULL", bun.Ident(col)).
			Where("catalog_date >= ?", since).
			Order("cm_id ASC", "catalog_date ASC").
			Scan(ctx, &rows)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch price series: %w", err)
		}

		for _, row := range rows {
			result[row.CMID] = append(result[row.CMID], models.SeriesPoint{
				Date:  row.Date,
				Value: row.Value,
			})
		}
	}

	return result, nil
}

// LatestDates returns, per card, the most recent catalog date carrying a
// non-null value for the metric.
func (r *priceRepository) LatestDates(ctx context.Context, cmIDs []int64, metric models.PriceMetric) (map[int64]time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	result := make(map[int64]time.Time, len(cmIDs))
	if len(cmIDs) == 0 {
		return result, nil
	}

	col := metric.Column()

	type latestRow struct {
		CMID int64     `bun:"cm_id"`
		Date time.Time `bun:"latest_date"`
	}

	for i := 0; i < len(cmIDs); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(cmIDs) {
			end = len(cmIDs)
		}

		var rows []latestRow
		err := r.db.NewSelect().
			Model((*models.CardPrice)(nil)).
			ColumnExpr("cm_id").
			ColumnExpr("MAX(catalog_date) AS latest_date").
			Where("cm_id IN (?)", bun.In(cmIDs[i:end])).
			Where("? IS NOT NULL", bun.Ident(col)).
			Group("cm_id").
			Scan(ctx, &rows)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch latest price dates: %w", err)
		}

		for _, row := range rows {
			result[row.CMID] = row.Date
		}
	}

	return result, nil
}

// GetRecentPoints returns the last N observation slots for one card, most
// recent first. Null metric values are kept so callers can require a fully
// populated window.
func (r *priceRepository) GetRecentPoints(ctx context.Context, cmID int64, metric models.PriceMetric, window int) ([]models.RawPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, config.StatsQueryTimeout)
	defer cancel()

	col := metric.Column()

	var points []models.RawPoint
	err := r.db.NewSelect().
		Model((*models.CardPrice)(nil)).
		ColumnExpr("catalog_date").
		ColumnExpr("? AS value", bun.Ident(col)).
		Where("cm_id = ?", cmID).
		Order("catalog_date DESC").
		Limit(window).
		Scan(ctx, &points)

	return points, err
}

// GetRecentPointsForCards bulk-loads the last N observation slots per card
// using a window function, most recent first per card.
func (r *priceRepository) GetRecentPointsForCards(ctx context.Context, cmIDs []int64, metric models.PriceMetric, window int) (map[int64][]models.RawPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	result := make(map[int64][]models.RawPoint, len(cmIDs))
	if len(cmIDs) == 0 {
		return result, nil
	}

	col := metric.Column()

	type recentRow struct {
		CMID  int64     `bun:"cm_id"`
		Date  time.Time `bun:"catalog_date"`
		Value *float64  `bun:"value"`
	}

	for i := 0; i < len(cmIDs); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(cmIDs) {
			end = len(cmIDs)
		}

		var rows []recentRow
		err := r.db.NewSelect().
			ColumnExpr("ranked.cm_id").
			ColumnExpr("ranked.catalog_date").
			ColumnExpr("ranked.value").
			TableExpr("(?) AS ranked",
				r.db.NewSelect().
					Model((*models.CardPrice)(nil)).
					ColumnExpr("cm_id").
					ColumnExpr("catalog_date").
					ColumnExpr("? AS value", bun.Ident(col)).
					ColumnExpr("ROW_NUMBER() OVER (PARTITION BY cm_id ORDER BY catalog_date DESC) AS rn").
					Where("cm_id IN (?)", bun.In(cmIDs[i:end])),
			).
			Where("ranked.rn <= ?", window).
			OrderExpr("ranked.cm_id ASC, ranked.catalog_date DESC").
			Scan(ctx, &rows)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch recent price points: %w", err)
		}

		for _, row := range rows {
			result[row.CMID] = append(result[row.CMID], models.RawPoint{
				Date:  row.Date,
				Value: row.Value,
			})
		}
	}

	return result, nil
}

// LatestPrice returns the most recent non-null value for a (card, metric)
// pair, backed by a short-lived LRU cache.
func (r *priceRepository) LatestPrice(ctx context.Context, cmID int64, metric models.PriceMetric) (*float64, time.Time, error) {
	cacheKey := fmt.Sprintf("latest:%d:%s", cmID, metric.Column())
	if cached, ok := r.cache.Get(cacheKey); ok {
		entry := cached.(cachedLatest)
		if time.Since(entry.timestamp) < config.PriceCacheExpiration {
			return entry.value, entry.date, nil
		}
		r.cache.Remove(cacheKey)
	}

	ctx, cancel := context.WithTimeout(ctx, config.StatsQueryTimeout)
	defer cancel()

	col := metric.Column()

	var point models.SeriesPoint
	err := r.db.NewSelect().
		Model((*models.CardPrice)(nil)).
		ColumnExpr("catalog_date").
		ColumnExpr("? AS value", bun.Ident(col)).
		Where("cm_id = ?", cmID).
		Where("? IS NOT NULL", bun.Ident(col)).
		Order("catalog_date DESC").
		Limit(1).
		Scan(ctx, &point)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}

	value := point.Value
	r.cache.Add(cacheKey, cachedLatest{
		value:     &value,
		date:      point.Date,
		timestamp: time.Now(),
	})

	return &value, point.Date, nil
}
