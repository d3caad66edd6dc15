package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
)

// In-memory repository fakes backing the engine tests.

type fakePriceRepo struct {
	rows []*models.CardPrice
}

func (f *fakePriceRepo) add(cmID int64, date time.Time, trend float64) {
	v := trend
	f.rows = append(f.rows, &models.CardPrice{
		CMID:        cmID,
		CatalogDate: date,
		Avg:         &v,
		Low:         &v,
		Avg1:        &v,
		Trend:       &v,
	})
}

func (f *fakePriceRepo) addValues(cmID int64, date time.Time, avg, avg1, low, trend *float64) {
	f.rows = append(f.rows, &models.CardPrice{
		CMID:        cmID,
		CatalogDate: date,
		Avg:         avg,
		Avg1:        avg1,
		Low:         low,
		Trend:       trend,
	})
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

func (f *fakePriceRepo) GetSeries(_ context.Context, cmID int64, metric models.PriceMetric, days int) ([]models.SeriesPoint, error) {
	since := time.Now().AddDate(0, 0, -days)
	var points []models.SeriesPoint
	for _, row := range f.rows {
		if row.CMID != cmID || row.CatalogDate.Before(since) {
			continue
		}
		if v := metric.Value(row); v != nil {
			points = append(points, models.SeriesPoint{Date: row.CatalogDate, Value: *v})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

func (f *fakePriceRepo) GetSeriesForCards(_ context.Context, cmIDs []int64, metric models.PriceMetric, since time.Time) (map[int64][]models.SeriesPoint, error) {
	wanted := make(map[int64]struct{}, len(cmIDs))
	for _, id := range cmIDs {
		wanted[id] = struct{}{}
	}
	result := make(map[int64][]models.SeriesPoint)
	for _, row := range f.rows {
		if _, ok := wanted[row.CMID]; !ok || row.CatalogDate.Before(since) {
			continue
		}
		if v := metric.Value(row); v != nil {
			result[row.CMID] = append(result[row.CMID], models.SeriesPoint{Date: row.CatalogDate, Value: *v})
		}
	}
	for id := range result {
		points := result[id]
		sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		result[id] = points
	}
	return result, nil
}

func (f *fakePriceRepo) LatestDates(_ context.Context, cmIDs []int64, metric models.PriceMetric) (map[int64]time.Time, error) {
	wanted := make(map[int64]struct{}, len(cmIDs))
	for _, id := range cmIDs {
		wanted[id] = struct{}{}
	}
	result := make(map[int64]time.Time)
	for _, row := range f.rows {
		if _, ok := wanted[row.CMID]; !ok || metric.Value(row) == nil {
			continue
		}
		if row.CatalogDate.After(result[row.CMID]) {
			result[row.CMID] = row.CatalogDate
		}
	}
	return result, nil
}

func (f *fakePriceRepo) GetRecentPoints(ctx context.Context, cmID int64, metric models.PriceMetric, window int) ([]models.RawPoint, error) {
	byCard, err := f.GetRecentPointsForCards(ctx, []int64{cmID}, metric, window)
	if err != nil {
		return nil, err
	}
	return byCard[cmID], nil
}

func (f *fakePriceRepo) GetRecentPointsForCards(_ context.Context, cmIDs []int64, metric models.PriceMetric, window int) (map[int64][]models.RawPoint, error) {
	result := make(map[int64][]models.RawPoint)
	for _, id := range cmIDs {
		var rows []*models.CardPrice
		for _, row := range f.rows {
			if row.CMID == id {
				rows = append(rows, row)
			}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].CatalogDate.After(rows[j].CatalogDate) })
		if len(rows) > window {
			rows = rows[:window]
		}
		for _, row := range rows {
			result[id] = append(result[id], models.RawPoint{Date: row.CatalogDate, Value: metric.Value(row)})
		}
	}
	return result, nil
}

func (f *fakePriceRepo) LatestPrice(ctx context.Context, cmID int64, metric models.PriceMetric) (*float64, time.Time, error) {
	points, err := f.GetRecentPoints(ctx, cmID, metric, 1)
	if err != nil || len(points) == 0 {
		return nil, time.Time{}, err
	}
	return points[0].Value, points[0].Date, nil
}

type slopeKey struct {
	cmID     int64
	interval int
}

type fakeSlopeRepo struct {
	data map[slopeKey]*models.PriceSlope
}

func newFakeSlopeRepo() *fakeSlopeRepo {
	return &fakeSlopeRepo{data: make(map[slopeKey]*models.PriceSlope)}
}

func (f *fakeSlopeRepo) Upsert(_ context.Context, slopes []*models.PriceSlope) (int, int, error) {
	created, updated := 0, 0
	for _, s := range slopes {
		key := slopeKey{s.CMID, s.IntervalDays}
		if _, ok := f.data[key]; ok {
			updated++
		} else {
			created++
		}
		clone := *s
		f.data[key] = &clone
	}
	return created, updated, nil
}

func (f *fakeSlopeRepo) TopByPercentChange(_ context.Context, intervalDays int, limit int) ([]*models.PriceSlope, error) {
	var slopes []*models.PriceSlope
	for _, s := range f.data {
		if s.IntervalDays == intervalDays {
			slopes = append(slopes, s)
		}
	}
	sort.Slice(slopes, func(i, j int) bool { return slopes[i].PercentChange > slopes[j].PercentChange })
	if len(slopes) > limit {
		slopes = slopes[:limit]
	}
	return slopes, nil
}

func (f *fakeSlopeRepo) GetByCard(_ context.Context, cmID int64) ([]*models.PriceSlope, error) {
	var slopes []*models.PriceSlope
	for _, s := range f.data {
		if s.CMID == cmID {
			slopes = append(slopes, s)
		}
	}
	sort.Slice(slopes, func(i, j int) bool { return slopes[i].IntervalDays < slopes[j].IntervalDays })
	return slopes, nil
}

func (f *fakeSlopeRepo) DeleteByCards(_ context.Context, cmIDs []int64) (int, error) {
	deleted := 0
	for _, id := range cmIDs {
		for key := range f.data {
			if key.cmID == id {
				delete(f.data, key)
				deleted++
			}
		}
	}
	return deleted, nil
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

type fakeSetRepo struct {
	sets map[int64]*models.Set
}

func newFakeSetRepo(sets ...*models.Set) *fakeSetRepo {
	f := &fakeSetRepo{sets: make(map[int64]*models.Set)}
	for _, s := range sets {
		f.sets[s.ExpansionID] = s
	}
	return f
}

func (f *fakeSetRepo) Create(_ context.Context, set *models.Set) error {
	f.sets[set.ExpansionID] = set
	return nil
}

func (f *fakeSetRepo) GetByIDs(_ context.Context, expansionIDs []int64) (map[int64]*models.Set, error) {
	result := make(map[int64]*models.Set)
	for _, id := range expansionIDs {
		if set, ok := f.sets[id]; ok {
			result[id] = set
		}
	}
	return result, nil
}

func (f *fakeSetRepo) GetAll(context.Context) ([]*models.Set, error) {
	var sets []*models.Set
	for _, s := range f.sets {
		sets = append(sets, s)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].ExpansionID < sets[j].ExpansionID })
	return sets, nil
}

func (f *fakeSetRepo) GetByCodes(_ context.Context, codes []string) ([]*models.Set, error) {
	wanted := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		wanted[code] = struct{}{}
	}
	var sets []*models.Set
	for _, s := range f.sets {
		if _, ok := wanted[s.Code]; ok {
			sets = append(sets, s)
		}
	}
	return sets, nil
}
