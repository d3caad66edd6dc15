package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/repositories"
)

// ProductIngestResult reports one product list ingestion.
type ProductIngestResult struct {
	CatalogDate time.Time
	Created     int
	Updated     int
}

// ProductIngestor parses product list snapshots and maintains the card table.
type ProductIngestor struct {
	cards repositories.CardRepository
	dedup *Deduplicator
}

func NewProductIngestor(cards repositories.CardRepository, dedup *Deduplicator) *ProductIngestor {
	return &ProductIngestor{
		cards: cards,
		dedup: dedup,
	}
}

// Ingest processes one raw product list snapshot. New cards are inserted;
// existing cards are updated only when an upstream field actually changed.
func (p *ProductIngestor) Ingest(ctx context.Context, raw []byte, force bool) (*ProductIngestResult, error) {
	start := time.Now()

	md5sum := Fingerprint(raw)
	ledgered, err := p.dedup.Check(ctx, md5sum, models.CatalogProducts, force)
	if err != nil {
		return nil, err
	}

	var payload productsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ParseError{Reason: "malformed product list JSON", Err: err}
	}
	if payload.CreatedAt == "" {
		return nil, &ParseError{Reason: "missing createdAt"}
	}
	catalogDate, err := parseCatalogDate(payload.CreatedAt)
	if err != nil {
		return nil, &ParseError{Reason: "unparsable createdAt", Err: err}
	}

	cmIDs := make([]int64, 0, len(payload.Products))
	for _, entry := range payload.Products {
		cmIDs = append(cmIDs, entry.IDProduct)
	}

	existingCards, err := p.cards.GetByIDs(ctx, cmIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cards: %w", err)
	}

	var insertCards []*models.Card
	var updateCards []*models.Card

	for _, entry := range payload.Products {
		card := &models.Card{
			CMID:        entry.IDProduct,
			Name:        entry.Name,
			CategoryID:  entry.IDCategory,
			ExpansionID: entry.IDExpansion,
			MetacardID:  entry.IDMetacard,
			Active:      true,
		}
		if entry.DateAdded != "" {
			dateAdded, err := parseDateAdded(entry.DateAdded)
			if err != nil {
				return nil, &ParseError{
					Reason: fmt.Sprintf("unparsable dateAdded for product %d", entry.IDProduct),
					Err:    err,
				}
			}
			card.CMDateAdded = dateAdded
		}

		existing, ok := existingCards[entry.IDProduct]
		if !ok {
			insertCards = append(insertCards, card)
			continue
		}

		// Expansion ids of freshly added cards have been seen to change the
		// next day; diff before writing to avoid no-op updates.
		if existing.FieldsDiffer(card) {
			card.CreatedAt = existing.CreatedAt
			updateCards = append(updateCards, card)
		}
	}

	result := &ProductIngestResult{CatalogDate: catalogDate}

	created, err := p.cards.BulkCreate(ctx, insertCards)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk create cards: %w", err)
	}
	result.Created = created

	updated, err := p.cards.BulkUpdate(ctx, updateCards)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk update cards: %w", err)
	}
	result.Updated = updated

	// Ledger only after the card writes landed, so a storage failure leaves
	// the fingerprint free for a retry
	if !ledgered {
		if err := p.dedup.Record(ctx, md5sum, models.CatalogProducts, catalogDate); err != nil {
			return nil, err
		}
	}

	slog.Info("Product list ingested",
		slog.String("type", "ingest"),
		slog.Time("catalog_date", catalogDate),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Duration("took", time.Since(start)),
	)

	return result, nil
}
