package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/repositories"
)

// SpikeConfig tunes spike detection. Window is the number of most recent
// observations inspected, between 2 and 30.
type SpikeConfig struct {
	Window            int
	AcceleratingRatio float64
	MinPercent        float64
	MinAbsolute       float64
	PriceFloor        float64
	Metric            models.PriceMetric
}

// Spike is one detected accelerating price increase.
type Spike struct {
	CMID          int64
	Name          string
	Current       float64
	RecentDelta   float64
	WindowDelta   float64
	PercentChange float64
}

// SpikeDetector screens cards for short-window accelerating price increases.
type SpikeDetector struct {
	cards  repositories.CardRepository
	prices repositories.PriceRepository
	cfg    SpikeConfig
}

func NewSpikeDetector(cards repositories.CardRepository, prices repositories.PriceRepository, cfg SpikeConfig) (*SpikeDetector, error) {
	if cfg.Window < 2 || cfg.Window > 30 {
		return nil, fmt.Errorf("spike window must be between 2 and 30, got %d", cfg.Window)
	}
	if cfg.AcceleratingRatio <= 0 {
		cfg.AcceleratingRatio = 1.0
	}
	return &SpikeDetector{
		cards:  cards,
		prices: prices,
		cfg:    cfg,
	}, nil
}

// DetectSpikes inspects the last W observation slots per card. A card
// qualifies only when all W slots exist with non-null values, the most recent
// delta accelerates over the prior one, and the configured percentage,
// absolute and floor thresholds are met. Output is sorted descending by
// absolute price difference across the window.
func (d *SpikeDetector) DetectSpikes(ctx context.Context, cardIDs []int64) ([]Spike, error) {
	points, err := d.prices.GetRecentPointsForCards(ctx, cardIDs, d.cfg.Metric, d.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent points: %w", err)
	}

	var spikes []Spike
	for _, cmID := range cardIDs {
		if spike, ok := d.inspect(cmID, points[cmID]); ok {
			spikes = append(spikes, spike)
		}
	}

	sort.Slice(spikes, func(i, j int) bool {
		if spikes[i].WindowDelta != spikes[j].WindowDelta {
			return spikes[i].WindowDelta > spikes[j].WindowDelta
		}
		return spikes[i].CMID < spikes[j].CMID
	})

	spikeIDs := make([]int64, 0, len(spikes))
	for _, s := range spikes {
		spikeIDs = append(spikeIDs, s.CMID)
	}
	cards, err := d.cards.GetByIDs(ctx, spikeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve spiking cards: %w", err)
	}
	for i := range spikes {
		if card, ok := cards[spikes[i].CMID]; ok {
			spikes[i].Name = card.Name
		}
	}

	return spikes, nil
}

// inspect runs the spike criteria against one card's window, observations
// ordered most recent first.
func (d *SpikeDetector) inspect(cmID int64, window []models.RawPoint) (Spike, bool) {
	// Every slot must exist and carry a value, otherwise the card is excluded
	if len(window) != d.cfg.Window {
		return Spike{}, false
	}
	values := make([]float64, len(window))
	for i, p := range window {
		if p.Value == nil {
			return Spike{}, false
		}
		values[i] = *p.Value
	}

	current := values[0]
	recentDelta := values[0] - values[1]
	windowDelta := values[0] - values[len(values)-1]

	// Acceleration needs three observations; a two-slot window only checks
	// the magnitude thresholds
	if len(values) >= 3 {
		priorDelta := values[1] - values[2]
		if recentDelta < d.cfg.AcceleratingRatio*priorDelta {
			return Spike{}, false
		}
	}

	percent := PercentChange(values[1], values[0])
	if percent < d.cfg.MinPercent {
		return Spike{}, false
	}
	if windowDelta < d.cfg.MinAbsolute {
		return Spike{}, false
	}
	if current < d.cfg.PriceFloor {
		return Spike{}, false
	}

	return Spike{
		CMID:          cmID,
		Current:       current,
		RecentDelta:   recentDelta,
		WindowDelta:   windowDelta,
		PercentChange: percent,
	}, true
}
