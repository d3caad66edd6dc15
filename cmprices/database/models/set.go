package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Set is a Cardmarket expansion. Rows are created lazily by the set scraper
// (an external collaborator); cards keep a plain expansion_id reference so a
// card survives its set going missing upstream.
type Set struct {
	bun.BaseModel `bun:"table:sets,alias:s"`

	ExpansionID int64     `bun:"expansion_id,pk"`
	Name        string    `bun:"name,notnull"`
	URL         string    `bun:"url,nullzero"`
	Code        string    `bun:"code,nullzero"`
	Type        string    `bun:"type,nullzero"`
	ReleaseDate time.Time `bun:"release_date,nullzero"`
	IsFoilOnly  bool      `bun:"is_foil_only,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
	Active    bool      `bun:"active,notnull,default:true"`
}
