package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/repositories"
)

// PriceIngestResult reports one price guide ingestion. Created reflects rows
// actually persisted after conflict resolution, not candidates.
type PriceIngestResult struct {
	CatalogDate     time.Time
	Attempted       int
	Created         int
	SkippedExisting int
	UnknownCards    int
	UnknownSample   []int64
}

// PriceIngestor parses price guide snapshots and persists one price row per
// known card for the snapshot's catalog date.
type PriceIngestor struct {
	cards  repositories.CardRepository
	prices repositories.PriceRepository
	dedup  *Deduplicator
}

func NewPriceIngestor(cards repositories.CardRepository, prices repositories.PriceRepository, dedup *Deduplicator) *PriceIngestor {
	return &PriceIngestor{
		cards:  cards,
		prices: prices,
		dedup:  dedup,
	}
}

// Ingest processes one raw price guide snapshot. Re-ingesting identical bytes
// returns ErrAlreadyProcessed unless force is set; forced runs insert any
// price rows still missing but never duplicate the ledger entry.
func (p *PriceIngestor) Ingest(ctx context.Context, raw []byte, force bool) (*PriceIngestResult, error) {
	start := time.Now()

	md5sum := Fingerprint(raw)
	ledgered, err := p.dedup.Check(ctx, md5sum, models.CatalogPrices, force)
	if err != nil {
		return nil, err
	}

	var payload priceGuidePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ParseError{Reason: "malformed price guide JSON", Err: err}
	}
	if payload.Version != config.PriceGuideVersion {
		return nil, &ParseError{
			Reason: fmt.Sprintf("version %d", payload.Version),
			Err:    ErrUnsupportedVersion,
		}
	}
	if payload.CreatedAt == "" {
		return nil, &ParseError{Reason: "missing createdAt"}
	}
	catalogDate, err := parseCatalogDate(payload.CreatedAt)
	if err != nil {
		return nil, &ParseError{Reason: "unparsable createdAt", Err: err}
	}

	// Bulk resolve referenced cards and rows already present for this date
	cmIDs := make([]int64, 0, len(payload.PriceGuides))
	for _, entry := range payload.PriceGuides {
		cmIDs = append(cmIDs, entry.IDProduct)
	}

	knownCards, err := p.cards.GetByIDs(ctx, cmIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cards: %w", err)
	}

	existing, err := p.prices.ExistingCardIDs(ctx, catalogDate)
	if err != nil {
		return nil, err
	}

	result := &PriceIngestResult{CatalogDate: catalogDate}
	unknownSet := make(map[int64]struct{})
	seen := make(map[int64]struct{}, len(payload.PriceGuides))
	insert := make([]*models.CardPrice, 0, len(payload.PriceGuides))

	for _, entry := range payload.PriceGuides {
		cmID := entry.IDProduct

		if _, ok := knownCards[cmID]; !ok {
			unknownSet[cmID] = struct{}{}
			continue
		}
		if _, ok := existing[cmID]; ok {
			result.SkippedExisting++
			continue
		}
		if _, ok := seen[cmID]; ok {
			continue
		}
		seen[cmID] = struct{}{}

		insert = append(insert, &models.CardPrice{
			CMID:        cmID,
			CatalogDate: catalogDate,
			Avg:         entry.Avg,
			Low:         entry.Low,
			Trend:       entry.Trend,
			Avg1:        entry.Avg1,
			Avg7:        entry.Avg7,
			Avg30:       entry.Avg30,
			AvgFoil:     entry.AvgFoil,
			LowFoil:     entry.LowFoil,
			TrendFoil:   entry.TrendFoil,
			Avg1Foil:    entry.Avg1Foil,
			Avg7Foil:    entry.Avg7Foil,
			Avg30Foil:   entry.Avg30Foil,
			Active:      true,
		})
	}

	result.Attempted = len(insert)
	result.UnknownCards = len(unknownSet)
	for cmID := range unknownSet {
		if len(result.UnknownSample) >= config.UnknownCardSampleSize {
			break
		}
		result.UnknownSample = append(result.UnknownSample, cmID)
	}

	created, err := p.prices.BulkCreate(ctx, insert)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk create prices: %w", err)
	}
	result.Created = created

	// Ledger only after the rows landed, so a storage failure leaves the
	// fingerprint free for the retry driver's next attempt
	if !ledgered {
		if err := p.dedup.Record(ctx, md5sum, models.CatalogPrices, catalogDate); err != nil {
			return nil, err
		}
	}

	if result.UnknownCards > 0 {
		slog.Warn("Prices referenced unknown cards",
			slog.String("type", "ingest"),
			slog.Int("count", result.UnknownCards),
			slog.Any("sample", result.UnknownSample),
		)
	}

	slog.Info("Price guide ingested",
		slog.String("type", "ingest"),
		slog.Time("catalog_date", catalogDate),
		slog.Int("attempted", result.Attempted),
		slog.Int("created", result.Created),
		slog.Int("skipped_existing", result.SkippedExisting),
		slog.Duration("took", time.Since(start)),
	)

	return result, nil
}
