package repositories

import (
	"context"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/uptrace/bun"
)

type SetRepository interface {
	Create(ctx context.Context, set *models.Set) error
	GetByIDs(ctx context.Context, expansionIDs []int64) (map[int64]*models.Set, error)
	GetAll(ctx context.Context) ([]*models.Set, error)
	GetByCodes(ctx context.Context, codes []string) ([]*models.Set, error)
}

type setRepository struct {
	db *bun.DB
}

func NewSetRepository(db *bun.DB) SetRepository {
	return &setRepository{db: db}
}

func (r *setRepository) Create(ctx context.Context, set *models.Set) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	set.CreatedAt = time.Now()
	set.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(set).
		On("CONFLICT (expansion_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("url = EXCLUDED.url").
		Set("code = EXCLUDED.code").
		Set("type = EXCLUDED.type").
		Set("release_date = EXCLUDED.release_date").
		Set("is_foil_only = EXCLUDED.is_foil_only").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

func (r *setRepository) GetByIDs(ctx context.Context, expansionIDs []int64) (map[int64]*models.Set, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	result := make(map[int64]*models.Set, len(expansionIDs))
	if len(expansionIDs) == 0 {
		return result, nil
	}

	var sets []*models.Set
	err := r.db.NewSelect().
		Model(&sets).
		Where("expansion_id IN (?)", bun.In(expansionIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	for _, set := range sets {
		result[set.ExpansionID] = set
	}

	return result, nil
}

func (r *setRepository) GetAll(ctx context.Context) ([]*models.Set, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	var sets []*models.Set
	err := r.db.NewSelect().
		Model(&sets).
		Order("expansion_id ASC").
		Scan(ctx)

	return sets, err
}

func (r *setRepository) GetByCodes(ctx context.Context, codes []string) ([]*models.Set, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	if len(codes) == 0 {
		return nil, nil
	}

	var sets []*models.Set
	err := r.db.NewSelect().
		Model(&sets).
		Where("code IN (?)", bun.In(codes)).
		Order("expansion_id ASC").
		Scan(ctx)

	return sets, err
}
