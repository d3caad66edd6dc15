package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CardPrice is one price-guide snapshot entry for one card on one catalog
// date. Every metric is independently nullable; rows are immutable once
// written. At most one row exists per (catalog_date, cm_id), enforced by a
// unique index and ON CONFLICT DO NOTHING inserts.
type CardPrice struct {
	bun.BaseModel `bun:"table:card_prices,alias:cp"`

	ID          int64     `bun:"id,pk,autoincrement"`
	CMID        int64     `bun:"cm_id,notnull"`
	CatalogDate time.Time `bun:"catalog_date,notnull"`

	Avg   *float64 `bun:"avg"`
	Low   *float64 `bun:"low"`
	Trend *float64 `bun:"trend"`
	Avg1  *float64 `bun:"avg1"`
	Avg7  *float64 `bun:"avg7"`
	Avg30 *float64 `bun:"avg30"`

	AvgFoil   *float64 `bun:"avg_foil"`
	LowFoil   *float64 `bun:"low_foil"`
	TrendFoil *float64 `bun:"trend_foil"`
	Avg1Foil  *float64 `bun:"avg1_foil"`
	Avg7Foil  *float64 `bun:"avg7_foil"`
	Avg30Foil *float64 `bun:"avg30_foil"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	Active    bool      `bun:"active,notnull,default:true"`
}

// SeriesPoint is one non-null observation of a single metric, used by the
// trend estimator and the slope engine.
type SeriesPoint struct {
	Date  time.Time `bun:"catalog_date"`
	Value float64   `bun:"value"`
}

// RawPoint is one observation that may be null, used by spike detection
// where a null inside the window disqualifies the card.
type RawPoint struct {
	Date  time.Time `bun:"catalog_date"`
	Value *float64  `bun:"value"`
}
