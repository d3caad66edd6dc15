package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PriceSlope is a derived trend record for one card over one trailing
// interval. Exactly one row exists per (cm_id, interval_days); recomputation
// overwrites the previous value.
type PriceSlope struct {
	bun.BaseModel `bun:"table:price_slopes,alias:psl"`

	ID            int64   `bun:"id,pk,autoincrement"`
	CMID          int64   `bun:"cm_id,notnull"`
	IntervalDays  int     `bun:"interval_days,notnull"`
	Slope         float64 `bun:"slope,notnull"`
	PercentChange float64 `bun:"percent_change,notnull"`
	InitialPrice  float64 `bun:"initial_price,notnull"`
	FinalPrice    float64 `bun:"final_price,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
	Active    bool      `bun:"active,notnull,default:true"`
}
