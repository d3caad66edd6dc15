package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CatalogType int16

const (
	CatalogProducts CatalogType = 1
	CatalogPrices   CatalogType = 2
)

func (t CatalogType) String() string {
	switch t {
	case CatalogProducts:
		return "products"
	case CatalogPrices:
		return "prices"
	default:
		return "unknown"
	}
}

// Catalog is the ingestion ledger: one row per distinct snapshot content that
// was processed. The (md5sum, catalog_type) pair is unique; rows are
// append-only and never mutated.
type Catalog struct {
	bun.BaseModel `bun:"table:catalogs,alias:cat"`

	ID          int64       `bun:"id,pk,autoincrement"`
	CatalogDate time.Time   `bun:"catalog_date,notnull"`
	CatalogType CatalogType `bun:"catalog_type,notnull"`
	MD5Sum      string      `bun:"md5sum,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	Active    bool      `bun:"active,notnull,default:true"`
}
