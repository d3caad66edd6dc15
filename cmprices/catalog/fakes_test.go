package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
)

// In-memory repository fakes backing the ingestion tests.

type fakeCatalogRepo struct {
	entries []*models.Catalog
}

func (f *fakeCatalogRepo) Create(_ context.Context, catalog *models.Catalog) error {
	f.entries = append(f.entries, catalog)
	return nil
}

func (f *fakeCatalogRepo) GetByFingerprint(_ context.Context, md5sum string, catalogType models.CatalogType) (*models.Catalog, error) {
	for _, e := range f.entries {
		if e.MD5Sum == md5sum && e.CatalogType == catalogType {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalogRepo) GetLatest(_ context.Context, catalogType models.CatalogType) (*models.Catalog, error) {
	var latest *models.Catalog
	for _, e := range f.entries {
		if e.CatalogType != catalogType {
			continue
		}
		if latest == nil || e.CatalogDate.After(latest.CatalogDate) {
			latest = e
		}
	}
	return latest, nil
}

func (f *fakeCatalogRepo) GetAll(_ context.Context, catalogType models.CatalogType) ([]*models.Catalog, error) {
	var entries []*models.Catalog
	for _, e := range f.entries {
		if e.CatalogType == catalogType {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type fakeCardRepo struct {
	cards map[int64]*models.Card
}

func newFakeCardRepo(cards ...*models.Card) *fakeCardRepo {
	f := &fakeCardRepo{cards: make(map[int64]*models.Card)}
	for _, c := range cards {
		f.cards[c.CMID] = c
	}
	return f
}

func (f *fakeCardRepo) Create(_ context.Context, card *models.Card) error {
	f.cards[card.CMID] = card
	return nil
}

func (f *fakeCardRepo) GetByID(_ context.Context, cmID int64) (*models.Card, error) {
	card, ok := f.cards[cmID]
	if !ok {
		return nil, fmt.Errorf("no card found with id %d", cmID)
	}
	return card, nil
}

func (f *fakeCardRepo) GetByIDs(_ context.Context, cmIDs []int64) (map[int64]*models.Card, error) {
	result := make(map[int64]*models.Card)
	for _, id := range cmIDs {
		if card, ok := f.cards[id]; ok {
			result[id] = card
		}
	}
	return result, nil
}

func (f *fakeCardRepo) GetAll(context.Context) ([]*models.Card, error) {
	var cards []*models.Card
	for _, c := range f.cards {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].CMID < cards[j].CMID })
	return cards, nil
}

func (f *fakeCardRepo) GetIDsByExpansions(_ context.Context, expansionIDs []int64) ([]int64, error) {
	wanted := make(map[int64]struct{}, len(expansionIDs))
	for _, id := range expansionIDs {
		wanted[id] = struct{}{}
	}
	var ids []int64
	for _, c := range f.cards {
		if _, ok := wanted[c.ExpansionID]; ok {
			ids = append(ids, c.CMID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeCardRepo) Update(_ context.Context, card *models.Card) error {
	f.cards[card.CMID] = card
	return nil
}

func (f *fakeCardRepo) BulkCreate(_ context.Context, cards []*models.Card) (int, error) {
	created := 0
	for _, c := range cards {
		if _, ok := f.cards[c.CMID]; !ok {
			f.cards[c.CMID] = c
			created++
		}
	}
	return created, nil
}

func (f *fakeCardRepo) BulkUpdate(_ context.Context, cards []*models.Card) (int, error) {
	for _, c := range cards {
		f.cards[c.CMID] = c
	}
	return len(cards), nil
}

func (f *fakeCardRepo) Count(context.Context) (int64, error) {
	return int64(len(f.cards)), nil
}

type fakePriceRepo struct {
	rows []*models.CardPrice
}

func (f *fakePriceRepo) BulkCreate(_ context.Context, prices []*models.CardPrice) (int, error) {
	created := 0
	for _, p := range prices {
		exists := false
		for _, row := range f.rows {
			if row.CMID == p.CMID && row.CatalogDate.Equal(p.CatalogDate) {
				exists = true
				break
			}
		}
		if !exists {
			f.rows = append(f.rows, p)
			created++
		}
	}
	return created, nil
}

func (f *fakePriceRepo) ExistingCardIDs(_ context.Context, catalogDate time.Time) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{})
	for _, row := range f.rows {
		if row.CatalogDate.Equal(catalogDate) {
			existing[row.CMID] = struct{}{}
		}
	}
	return existing, nil
}

func (f *fakePriceRepo) LatestCatalogDate(context.Context) (time.Time, error) {
	var latest time.Time
	for _, row := range f.rows {
		if row.CatalogDate.After(latest) {
			latest = row.CatalogDate
		}
	}
	return latest, nil
}

func (f *fakePriceRepo) CardIDsForCatalogDate(_ context.Context, catalogDate time.Time) ([]int64, error) {
	var ids []int64
	for _, row := range f.rows {
		if row.CatalogDate.Equal(catalogDate) {
			ids = append(ids, row.CMID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakePriceRepo) GetSeries(context.Context, int64, models.PriceMetric, int) ([]models.SeriesPoint, error) {
	return nil, nil
}

func (f *fakePriceRepo) GetSeriesForCards(context.Context, []int64, models.PriceMetric, time.Time) (map[int64][]models.SeriesPoint, error) {
	return nil, nil
}

func (f *fakePriceRepo) LatestDates(context.Context, []int64, models.PriceMetric) (map[int64]time.Time, error) {
	return nil, nil
}

func (f *fakePriceRepo) GetRecentPoints(context.Context, int64, models.PriceMetric, int) ([]models.RawPoint, error) {
	return nil, nil
}

func (f *fakePriceRepo) GetRecentPointsForCards(context.Context, []int64, models.PriceMetric, int) (map[int64][]models.RawPoint, error) {
	return nil, nil
}

func (f *fakePriceRepo) LatestPrice(context.Context, int64, models.PriceMetric) (*float64, time.Time, error) {
	return nil, time.Time{}, nil
}
