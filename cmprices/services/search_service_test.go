package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
)

// stubCardRepo serves a fixed card list; only GetAll matters for search.
type stubCardRepo struct {
	cards []*models.Card
}

func (s *stubCardRepo) Create(context.Context, *models.Card) error { return nil }

func (s *stubCardRepo) GetByID(context.Context, int64) (*models.Card, error) { return nil, nil }

func (s *stubCardRepo) GetByIDs(context.Context, []int64) (map[int64]*models.Card, error) {
	return nil, nil
}

func (s *stubCardRepo) GetAll(context.Context) ([]*models.Card, error) {
	cards := make([]*models.Card, len(s.cards))
	copy(cards, s.cards)
	sort.Slice(cards, func(i, j int) bool { return cards[i].CMID < cards[j].CMID })
	return cards, nil
}

func (s *stubCardRepo) GetIDsByExpansions(context.Context, []int64) ([]int64, error) {
	return nil, nil
}

func (s *stubCardRepo) Update(context.Context, *models.Card) error { return nil }

func (s *stubCardRepo) BulkCreate(context.Context, []*models.Card) (int, error) { return 0, nil }

func (s *stubCardRepo) BulkUpdate(context.Context, []*models.Card) (int, error) { return 0, nil }

func (s *stubCardRepo) Count(context.Context) (int64, error) { return int64(len(s.cards)), nil }

// stubPriceRepo serves canned latest trend prices keyed by card id.
type stubPriceRepo struct {
	latest map[int64]float64
}

func (s *stubPriceRepo) BulkCreate(context.Context, []*models.CardPrice) (int, error) {
	return 0, nil
}

func (s *stubPriceRepo) ExistingCardIDs(context.Context, time.Time) (map[int64]struct{}, error) {
	return nil, nil
}

func (s *stubPriceRepo) LatestCatalogDate(context.Context) (time.Time, error) {
	return time.Time{}, nil
}

func (s *stubPriceRepo) CardIDsForCatalogDate(context.Context, time.Time) ([]int64, error) {
	return nil, nil
}

func (s *stubPriceRepo) GetSeries(context.Context, int64, models.PriceMetric, int) ([]models.SeriesPoint, error) {
	return nil, nil
}

func (s *stubPriceRepo) GetSeriesForCards(context.Context, []int64, models.PriceMetric, time.Time) (map[int64][]models.SeriesPoint, error) {
	return nil, nil
}

func (s *stubPriceRepo) LatestDates(context.Context, []int64, models.PriceMetric) (map[int64]time.Time, error) {
	return nil, nil
}

func (s *stubPriceRepo) GetRecentPoints(context.Context, int64, models.PriceMetric, int) ([]models.RawPoint, error) {
	return nil, nil
}

func (s *stubPriceRepo) GetRecentPointsForCards(context.Context, []int64, models.PriceMetric, int) (map[int64][]models.RawPoint, error) {
	return nil, nil
}

func (s *stubPriceRepo) LatestPrice(_ context.Context, cmID int64, _ models.PriceMetric) (*float64, time.Time, error) {
	v, ok := s.latest[cmID]
	if !ok {
		return nil, time.Time{}, nil
	}
	return &v, time.Now(), nil
}

// stubSlopeRepo serves canned slope rows keyed by card id.
type stubSlopeRepo struct {
	rows map[int64][]*models.PriceSlope
}

func (s *stubSlopeRepo) Upsert(context.Context, []*models.PriceSlope) (int, int, error) {
	return 0, 0, nil
}

func (s *stubSlopeRepo) TopByPercentChange(context.Context, int, int) ([]*models.PriceSlope, error) {
	return nil, nil
}

func (s *stubSlopeRepo) GetByCard(_ context.Context, cmID int64) ([]*models.PriceSlope, error) {
	return s.rows[cmID], nil
}

func (s *stubSlopeRepo) DeleteByCards(context.Context, []int64) (int, error) { return 0, nil }

func searchFixture() *CardSearchService {
	cards := &stubCardRepo{cards: []*models.Card{
		{CMID: 1, Name: "Lightning Bolt"},
		{CMID: 2, Name: "Lightning Helix"},
		{CMID: 3, Name: "Bolt Bend"},
		{CMID: 4, Name: "Counterspell"},
	}}
	prices := &stubPriceRepo{latest: map[int64]float64{1: 4.5, 2: 0.4}}
	slopes := &stubSlopeRepo{rows: map[int64][]*models.PriceSlope{
		1: {
			{CMID: 1, IntervalDays: 2, PercentChange: 3},
			{CMID: 1, IntervalDays: 7, PercentChange: 12.5},
		},
	}}
	return NewCardSearchService(cards, prices, slopes)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	svc := searchFixture()

	results, err := svc.Search(ctx, "lightning bolt", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].Card.CMID)

	require.NotNil(t, results[0].LatestTrend)
	assert.InDelta(t, 4.5, *results[0].LatestTrend, 1e-9)
	require.NotNil(t, results[0].WeekChange)
	assert.InDelta(t, 12.5, *results[0].WeekChange, 1e-9)
}

func TestSearchNormalizesQuery(t *testing.T) {
	ctx := context.Background()
	svc := searchFixture()

	results, err := svc.Search(ctx, "  LIGHTNING   bolt ", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].Card.CMID)
}

func TestSearchWithoutPriceHistory(t *testing.T) {
	ctx := context.Background()
	svc := searchFixture()

	results, err := svc.Search(ctx, "counterspell", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(4), results[0].Card.CMID)
	assert.Nil(t, results[0].LatestTrend)
	assert.Nil(t, results[0].WeekChange)
}

func TestSearchHonorsLimit(t *testing.T) {
	ctx := context.Background()
	svc := searchFixture()

	results, err := svc.Search(ctx, "l", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchNoCards(t *testing.T) {
	ctx := context.Background()
	svc := NewCardSearchService(&stubCardRepo{}, &stubPriceRepo{}, &stubSlopeRepo{})

	results, err := svc.Search(ctx, "lightning", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
