package catalog

import "time"

// Price guide snapshot payload. Foil metrics use hyphenated keys upstream.
type priceGuidePayload struct {
	Version     int               `json:"version"`
	CreatedAt   string            `json:"createdAt"`
	PriceGuides []priceGuideEntry `json:"priceGuides"`
}

type priceGuideEntry struct {
	IDProduct int64    `json:"idProduct"`
	Avg       *float64 `json:"avg"`
	Low       *float64 `json:"low"`
	Trend     *float64 `json:"trend"`
	Avg1      *float64 `json:"avg1"`
	Avg7      *float64 `json:"avg7"`
	Avg30     *float64 `json:"avg30"`
	AvgFoil   *float64 `json:"avg-foil"`
	LowFoil   *float64 `json:"low-foil"`
	TrendFoil *float64 `json:"trend-foil"`
	Avg1Foil  *float64 `json:"avg1-foil"`
	Avg7Foil  *float64 `json:"avg7-foil"`
	Avg30Foil *float64 `json:"avg30-foil"`
}

// Product list snapshot payload.
type productsPayload struct {
	CreatedAt string         `json:"createdAt"`
	Products  []productEntry `json:"products"`
}

type productEntry struct {
	IDProduct   int64  `json:"idProduct"`
	Name        string `json:"name"`
	IDCategory  int64  `json:"idCategory"`
	IDExpansion int64  `json:"idExpansion"`
	IDMetacard  int64  `json:"idMetacard"`
	DateAdded   string `json:"dateAdded"`
}

// Snapshots stamp createdAt with a numeric offset, not always RFC 3339.
var catalogDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

func parseCatalogDate(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range catalogDateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Product dateAdded values are local to the marketplace operator's timezone.
var sourceTZ = loadSourceTZ()

func loadSourceTZ() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseDateAdded(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04:05", raw, sourceTZ)
}
