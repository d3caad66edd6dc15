package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Card is one Cardmarket single. The primary key is the external catalog id
// (idProduct), so snapshots can address cards without a local id mapping.
type Card struct {
	bun.BaseModel `bun:"table:cards,alias:c"`

	CMID        int64     `bun:"cm_id,pk"`
	Name        string    `bun:"name"`
	CategoryID  int64     `bun:"category_id,notnull,default:1"`
	ExpansionID int64     `bun:"expansion_id,nullzero"`
	MetacardID  int64     `bun:"metacard_id,nullzero"`
	CMDateAdded time.Time `bun:"cm_date_added,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
	Active    bool      `bun:"active,notnull,default:true"`
}

// FieldsDiffer reports whether any of the upstream-owned fields changed.
// Used by product ingestion to avoid no-op bulk updates.
func (c *Card) FieldsDiffer(other *Card) bool {
	return c.Name != other.Name ||
		c.ExpansionID != other.ExpansionID ||
		c.CategoryID != other.CategoryID ||
		c.MetacardID != other.MetacardID ||
		!c.CMDateAdded.Equal(other.CMDateAdded)
}
