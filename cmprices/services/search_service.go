package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/repositories"
	"github.com/sahilm/fuzzy"
)

// CardSearchItems implements fuzzy.Source for card name searching
type CardSearchItems []CardSearchItem

type CardSearchItem struct {
	Card *models.Card
	Name string
}

func (items CardSearchItems) Len() int {
	return len(items)
}

func (items CardSearchItems) String(i int) string {
	return items[i].Name
}

// SearchResult is one match with its current market context: the latest trend
// price and the 7-day percent change from the derived slope rows, either nil
// when the card has no price history yet.
type SearchResult struct {
	Card        *models.Card
	LatestTrend *float64
	WeekChange  *float64
}

// CardSearchService resolves free-form card name queries against the card
// table using fuzzy matching, for CLI lookups.
type CardSearchService struct {
	cards  repositories.CardRepository
	prices repositories.PriceRepository
	slopes repositories.SlopeRepository
}

func NewCardSearchService(cards repositories.CardRepository, prices repositories.PriceRepository, slopes repositories.SlopeRepository) *CardSearchService {
	return &CardSearchService{
		cards:  cards,
		prices: prices,
		slopes: slopes,
	}
}

// Search returns the best matches for a query, sorted by relevance.
func (s *CardSearchService) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	all, err := s.cards.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards for search: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	items := make(CardSearchItems, len(all))
	for i, card := range all {
		items[i] = CardSearchItem{
			Card: card,
			Name: normalizeName(card.Name),
		}
	}

	matches := fuzzy.FindFrom(normalizeName(query), items)

	results := make([]SearchResult, 0, limit)
	for _, match := range matches {
		result, err := s.enrich(ctx, items[match.Index].Card)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
		if len(results) >= limit {
			break
		}
	}

	return results, nil
}

func (s *CardSearchService) enrich(ctx context.Context, card *models.Card) (SearchResult, error) {
	result := SearchResult{Card: card}

	latest, _, err := s.prices.LatestPrice(ctx, card.CMID, models.MetricTrend)
	if err != nil {
		return result, fmt.Errorf("failed to look up latest price for %d: %w", card.CMID, err)
	}
	result.LatestTrend = latest

	slopes, err := s.slopes.GetByCard(ctx, card.CMID)
	if err != nil {
		return result, fmt.Errorf("failed to look up slopes for %d: %w", card.CMID, err)
	}
	for _, slope := range slopes {
		if slope.IntervalDays == config.SlopeIntervalMedium {
			change := slope.PercentChange
			result.WeekChange = &change
			break
		}
	}

	return result, nil
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
