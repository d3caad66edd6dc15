package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/repositories"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Mover is one row of a top-movers ranking.
type Mover struct {
	CMID           int64
	Name           string
	SetCode        string
	PercentChange  float64
	SlopePerDay    float64
	InitialPrice   float64
	FinalPrice     float64
	AbsoluteChange float64
}

// RisingCard is a card whose price rose monotonically across every screened
// metric. Score is the mean percent increase across those metrics.
type RisingCard struct {
	CMID  int64
	Name  string
	Score float64
}

// TopMoversOptions tunes a ranking query.
type TopMoversOptions struct {
	Limit           int
	MinCurrentPrice float64
	RequirePositive bool
}

// RankerConfig carries the screening thresholds, passed in explicitly rather
// than read from globals.
type RankerConfig struct {
	TrendFloor  float64
	MinPercent  float64
	Concurrency int64
}

// Ranker serves ranked queries over the precomputed slope rows and the raw
// price series.
type Ranker struct {
	cards  repositories.CardRepository
	sets   repositories.SetRepository
	prices repositories.PriceRepository
	slopes repositories.SlopeRepository
	cfg    RankerConfig
}

func NewRanker(cards repositories.CardRepository, sets repositories.SetRepository, prices repositories.PriceRepository, slopes repositories.SlopeRepository, cfg RankerConfig) *Ranker {
	if cfg.TrendFloor == 0 {
		cfg.TrendFloor = config.RisingTrendFloor
	}
	if cfg.MinPercent == 0 {
		cfg.MinPercent = config.RisingMinPercent
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.WorkerPoolSize
	}
	return &Ranker{
		cards:  cards,
		sets:   sets,
		prices: prices,
		slopes: slopes,
		cfg:    cfg,
	}
}

// TopMovers ranks cards by percent change over one interval. Candidates come
// from the precomputed slope rows ordered by percent_change, but the realized
// first/last prices are recomputed from the raw series so stale or
// sign-flipped rows are filtered out rather than served.
func (r *Ranker) TopMovers(ctx context.Context, intervalDays int, metric models.PriceMetric, opts TopMoversOptions) ([]Mover, error) {
	if opts.Limit <= 0 {
		opts.Limit = config.DefaultRankingLimit
	}

	candidates, err := r.slopes.TopByPercentChange(ctx, intervalDays, config.RankingOversampleMult)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slope candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	cmIDs := make([]int64, 0, len(candidates))
	for _, slope := range candidates {
		cmIDs = append(cmIDs, slope.CMID)
	}

	latestDates, err := r.prices.LatestDates(ctx, cmIDs, metric)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest dates: %w", err)
	}

	var earliest time.Time
	for _, latest := range latestDates {
		cutoff := latest.AddDate(0, 0, -intervalDays)
		if earliest.IsZero() || cutoff.Before(earliest) {
			earliest = cutoff
		}
	}

	series, err := r.prices.GetSeriesForCards(ctx, cmIDs, metric, earliest)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price series: %w", err)
	}

	cards, err := r.cards.GetByIDs(ctx, cmIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cards: %w", err)
	}

	setCodes, err := r.resolveSetCodes(ctx, cards)
	if err != nil {
		return nil, err
	}

	var movers []Mover
	for _, candidate := range candidates {
		if len(movers) >= opts.Limit {
			break
		}

		latest, ok := latestDates[candidate.CMID]
		if !ok {
			continue
		}
		window := pointsInWindow(series[candidate.CMID], latest.AddDate(0, 0, -intervalDays), latest)
		if len(window) < 2 {
			continue
		}

		initial := window[0].Value
		final := window[len(window)-1].Value
		percent := PercentChange(initial, final)

		if opts.MinCurrentPrice > 0 && final < opts.MinCurrentPrice {
			continue
		}
		if opts.RequirePositive && percent <= 0 {
			continue
		}

		mover := Mover{
			CMID:           candidate.CMID,
			PercentChange:  percent,
			SlopePerDay:    Slope(window),
			InitialPrice:   initial,
			FinalPrice:     final,
			AbsoluteChange: final - initial,
		}
		if card, ok := cards[candidate.CMID]; ok {
			mover.Name = card.Name
			mover.SetCode = setCodes[card.ExpansionID]
		}
		movers = append(movers, mover)
	}

	return movers, nil
}

func (r *Ranker) resolveSetCodes(ctx context.Context, cards map[int64]*models.Card) (map[int64]string, error) {
	expansionSet := make(map[int64]struct{})
	for _, card := range cards {
		if card.ExpansionID != 0 {
			expansionSet[card.ExpansionID] = struct{}{}
		}
	}
	expansionIDs := make([]int64, 0, len(expansionSet))
	for id := range expansionSet {
		expansionIDs = append(expansionIDs, id)
	}

	sets, err := r.sets.GetByIDs(ctx, expansionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sets: %w", err)
	}

	codes := make(map[int64]string, len(sets))
	for id, set := range sets {
		codes[id] = set.Code
	}
	return codes, nil
}

// risingMetrics are the fields a card must rise on to count as rising.
var risingMetrics = []models.PriceMetric{
	models.MetricAvg,
	models.MetricAvg1,
	models.MetricLow,
	models.MetricTrend,
}

// RisingCards screens a card set for monotone risers over the trailing days.
// A card scores only when every metric rises monotonically by at least the
// minimum percentage and its latest trend price clears the floor. The series
// are bulk-fetched up front; the per-card scoring fans out across a bounded
// worker pool and produces the same output as a sequential pass.
func (r *Ranker) RisingCards(ctx context.Context, cardIDs []int64, days int) ([]RisingCard, error) {
	if len(cardIDs) == 0 {
		return nil, nil
	}

	since := time.Now().AddDate(0, 0, -days)

	seriesByMetric := make(map[models.PriceMetric]map[int64][]models.SeriesPoint, len(risingMetrics))
	for _, metric := range risingMetrics {
		series, err := r.prices.GetSeriesForCards(ctx, cardIDs, metric, since)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s series: %w", metric, err)
		}
		seriesByMetric[metric] = series
	}

	scores := make([]float64, len(cardIDs))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(r.cfg.Concurrency)

	for i, cmID := range cardIDs {
		i, cmID := i, cmID
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			scores[i] = r.scoreCard(cmID, seriesByMetric)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var risers []RisingCard
	risingIDs := make([]int64, 0)
	for i, cmID := range cardIDs {
		if scores[i] > 0 {
			risers = append(risers, RisingCard{CMID: cmID, Score: scores[i]})
			risingIDs = append(risingIDs, cmID)
		}
	}

	cards, err := r.cards.GetByIDs(ctx, risingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rising cards: %w", err)
	}
	for i := range risers {
		if card, ok := cards[risers[i].CMID]; ok {
			risers[i].Name = card.Name
		}
	}

	sort.Slice(risers, func(i, j int) bool {
		if risers[i].Score != risers[j].Score {
			return risers[i].Score > risers[j].Score
		}
		return risers[i].CMID < risers[j].CMID
	})

	return risers, nil
}

// scoreCard is pure: it only reads the prefetched series maps.
func (r *Ranker) scoreCard(cmID int64, seriesByMetric map[models.PriceMetric]map[int64][]models.SeriesPoint) float64 {
	trendSeries := seriesByMetric[models.MetricTrend][cmID]
	if len(trendSeries) == 0 {
		return 0
	}
	if trendSeries[len(trendSeries)-1].Value < r.cfg.TrendFloor {
		return 0
	}

	total := 0.0
	for _, metric := range risingMetrics {
		increase := monotonicIncrease(seriesByMetric[metric][cmID])
		if increase < r.cfg.MinPercent {
			return 0
		}
		total += increase
	}

	return total / float64(len(risingMetrics))
}

// monotonicIncrease returns the percent increase over a series, or 0 when the
// series ever falls or does not end above its start.
func monotonicIncrease(points []models.SeriesPoint) float64 {
	if len(points) < 2 || points[0].Value >= points[len(points)-1].Value {
		return 0
	}
	for i := 1; i < len(points); i++ {
		if points[i].Value < points[i-1].Value {
			return 0
		}
	}
	return PercentChange(points[0].Value, points[len(points)-1].Value)
}
