package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/uptrace/bun"
)

type CatalogRepository interface {
	Create(ctx context.Context, catalog *models.Catalog) error
	GetByFingerprint(ctx context.Context, md5sum string, catalogType models.CatalogType) (*models.Catalog, error)
	GetLatest(ctx context.Context, catalogType models.CatalogType) (*models.Catalog, error)
	GetAll(ctx context.Context, catalogType models.CatalogType) ([]*models.Catalog, error)
}

type catalogRepository struct {
	db *bun.DB
}

func NewCatalogRepository(db *bun.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) Create(ctx context.Context, catalog *models.Catalog) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	catalog.CreatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(catalog).
		Exec(ctx)

	return err
}

// GetByFingerprint returns the ledger row matching a content fingerprint, or
// (nil, nil) when the catalog has never been ingested.
func (r *catalogRepository) GetByFingerprint(ctx context.Context, md5sum string, catalogType models.CatalogType) (*models.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	catalog := new(models.Catalog)
	err := r.db.NewSelect().
		Model(catalog).
		Where("md5sum = ?", md5sum).
		Where("catalog_type = ?", catalogType).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return catalog, nil
}

func (r *catalogRepository) GetLatest(ctx context.Context, catalogType models.CatalogType) (*models.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	catalog := new(models.Catalog)
	err := r.db.NewSelect().
		Model(catalog).
		Where("catalog_type = ?", catalogType).
		Order("catalog_date DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return catalog, nil
}

func (r *catalogRepository) GetAll(ctx context.Context, catalogType models.CatalogType) ([]*models.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	var catalogs []*models.Catalog
	err := r.db.NewSelect().
		Model(&catalogs).
		Where("catalog_type = ?", catalogType).
		Order("catalog_date ASC").
		Scan(ctx)

	return catalogs, err
}
