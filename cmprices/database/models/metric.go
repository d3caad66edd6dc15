package models

import "fmt"

// PriceMetric selects one of the price-guide columns. Metric selection is an
// enum mapped to typed accessors, never a column name built from user input.
type PriceMetric int

const (
	MetricAvg PriceMetric = iota
	MetricLow
	MetricTrend
	MetricAvg1
	MetricAvg7
	MetricAvg30
	MetricAvgFoil
	MetricLowFoil
	MetricTrendFoil
	MetricAvg1Foil
	MetricAvg7Foil
	MetricAvg30Foil
)

var metricColumns = map[PriceMetric]string{
	MetricAvg:       "avg",
	MetricLow:       "low",
	MetricTrend:     "trend",
	MetricAvg1:      "avg1",
	MetricAvg7:      "avg7",
	MetricAvg30:     "avg30",
	MetricAvgFoil:   "avg_foil",
	MetricLowFoil:   "low_foil",
	MetricTrendFoil: "trend_foil",
	MetricAvg1Foil:  "avg1_foil",
	MetricAvg7Foil:  "avg7_foil",
	MetricAvg30Foil: "avg30_foil",
}

// Column returns the card_prices column backing the metric.
func (m PriceMetric) Column() string {
	col, ok := metricColumns[m]
	if !ok {
		return "trend"
	}
	return col
}

func (m PriceMetric) String() string {
	return m.Column()
}

// ParseMetric maps a column name (e.g. "trend", "avg_foil") back to a metric.
func ParseMetric(s string) (PriceMetric, error) {
	for m, col := range metricColumns {
		if col == s {
			return m, nil
		}
	}
	return MetricTrend, fmt.Errorf("unknown price metric: %q", s)
}

// Value returns the metric's value on a price row, nil when unset.
func (m PriceMetric) Value(p *CardPrice) *float64 {
	switch m {
	case MetricAvg:
		return p.Avg
	case MetricLow:
		return p.Low
	case MetricTrend:
		return p.Trend
	case MetricAvg1:
		return p.Avg1
	case MetricAvg7:
		return p.Avg7
	case MetricAvg30:
		return p.Avg30
	case MetricAvgFoil:
		return p.AvgFoil
	case MetricLowFoil:
		return p.LowFoil
	case MetricTrendFoil:
		return p.TrendFoil
	case MetricAvg1Foil:
		return p.Avg1Foil
	case MetricAvg7Foil:
		return p.Avg7Foil
	case MetricAvg30Foil:
		return p.Avg30Foil
	default:
		return nil
	}
}
