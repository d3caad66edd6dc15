package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/uptrace/bun"
)

const (
	maxBatchSize = 1000
)

type CardRepository interface {
	Create(ctx context.Context, card *models.Card) error
	GetByID(ctx context.Context, cmID int64) (*models.Card, error)
	GetByIDs(ctx context.Context, cmIDs []int64) (map[int64]*models.Card, error)
	GetAll(ctx context.Context) ([]*models.Card, error)
	GetIDsByExpansions(ctx context.Context, expansionIDs []int64) ([]int64, error)
	Update(ctx context.Context, card *models.Card) error
	BulkCreate(ctx context.Context, cards []*models.Card) (int, error)
	BulkUpdate(ctx context.Context, cards []*models.Card) (int, error)
	Count(ctx context.Context) (int64, error)
}

type cardRepository struct {
	db *bun.DB
}

func NewCardRepository(db *bun.DB) CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) Create(ctx context.Context, card *models.Card) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	card.CreatedAt = time.Now()
	card.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(card).
		Exec(ctx)

	return err
}

func (r *cardRepository) GetByID(ctx context.Context, cmID int64) (*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	card := new(models.Card)
	err := r.db.NewSelect().
		Model(card).
		Where("cm_id = ?", cmID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no card found with id %d", cmID)
		}
		return nil, err
	}

	return card, nil
}

// GetByIDs loads cards in bulk, keyed by cm_id. Missing IDs are simply absent
// from the returned map.
func (r *cardRepository) GetByIDs(ctx context.Context, cmIDs []int64) (map[int64]*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	result := make(map[int64]*models.Card, len(cmIDs))
	if len(cmIDs) == 0 {
		return result, nil
	}

	for i := 0; i < len(cmIDs); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(cmIDs) {
			end = len(cmIDs)
		}

		var cards []*models.Card
		err := r.db.NewSelect().
			Model(&cards).
			Where("cm_id IN (?)", bun.In(cmIDs[i:end])).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch cards: %w", err)
		}

		for _, card := range cards {
			result[card.CMID] = card
		}
	}

	return result, nil
}

func (r *cardRepository) GetAll(ctx context.Context) ([]*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	var cards []*models.Card
	err := r.db.NewSelect().
		Model(&cards).
		Order("cm_id ASC").
		Scan(ctx)

	return cards, err
}

func (r *cardRepository) GetIDsByExpansions(ctx context.Context, expansionIDs []int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	if len(expansionIDs) == 0 {
		return nil, nil
	}

	var ids []int64
	err := r.db.NewSelect().
		Model((*models.Card)(nil)).
		Column("cm_id").
		Where("expansion_id IN (?)", bun.In(expansionIDs)).
		Order("cm_id ASC").
		Scan(ctx, &ids)

	return ids, err
}

func (r *cardRepository) Update(ctx context.Context, card *models.Card) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	card.UpdatedAt = time.Now()

	_, err := r.db.NewUpdate().
		Model(card).
		WherePK().
		Exec(ctx)

	return err
}

func (r *cardRepository) BulkCreate(ctx context.Context, cards []*models.Card) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	if len(cards) == 0 {
		return 0, nil
	}

	now := time.Now()
	totalCreated := 0

	// Process in batches to avoid overwhelming the database
	for i := 0; i < len(cards); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(cards) {
			end = len(cards)
		}
		batch := cards[i:end]

		for _, card := range batch {
			card.CreatedAt = now
			card.UpdatedAt = now
		}

		res, err := r.db.NewInsert().
			Model(&batch).
			On("CONFLICT (cm_id) DO NOTHING").
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

func (r *cardRepository) BulkUpdate(ctx context.Context, cards []*models.Card) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, config.IngestQueryTimeout)
	defer cancel()

	if len(cards) == 0 {
		return 0, nil
	}

	now := time.Now()
	totalUpdated := 0

	for i := 0; i < len(cards); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(cards) {
			end = len(cards)
		}
		batch := cards[i:end]

		for _, card := range batch {
			card.UpdatedAt = now
		}

		res, err := r.db.NewUpdate().
			Model(&batch).
			Column("name", "expansion_id", "category_id", "metacard_id", "cm_date_added", "updated_at").
			Bulk().
			Exec(ctx)

		if err != nil {
			return totalUpdated, err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return totalUpdated, err
		}

		totalUpdated += int(affected)
	}

	return totalUpdated, nil
}

func (r *cardRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	count, err := r.db.NewSelect().
		Model((*models.Card)(nil)).
		Count(ctx)

	return int64(count), err
}
