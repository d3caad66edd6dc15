package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetricRoundTrip(t *testing.T) {
	for metric, col := range metricColumns {
		parsed, err := ParseMetric(col)
		require.NoError(t, err, col)
		assert.Equal(t, metric, parsed)
		assert.Equal(t, col, parsed.Column())
	}
}

func TestParseMetricUnknown(t *testing.T) {
	_, err := ParseMetric("avg; DROP TABLE card_prices")
	assert.Error(t, err)

	_, err = ParseMetric("")
	assert.Error(t, err)
}

func TestMetricColumnFallback(t *testing.T) {
	assert.Equal(t, "trend", PriceMetric(999).Column())
}

func TestMetricValue(t *testing.T) {
	trend := 4.5
	foil := 9.1
	price := &CardPrice{Trend: &trend, AvgFoil: &foil}

	require.NotNil(t, MetricTrend.Value(price))
	assert.Equal(t, trend, *MetricTrend.Value(price))

	require.NotNil(t, MetricAvgFoil.Value(price))
	assert.Equal(t, foil, *MetricAvgFoil.Value(price))

	assert.Nil(t, MetricLow.Value(price))
	assert.Nil(t, PriceMetric(999).Value(price))
}

func TestCardFieldsDiffer(t *testing.T) {
	base := &Card{CMID: 1, Name: "Alpha Dragon", CategoryID: 1, ExpansionID: 10, MetacardID: 100}

	same := *base
	assert.False(t, base.FieldsDiffer(&same))

	moved := *base
	moved.ExpansionID = 11
	assert.True(t, base.FieldsDiffer(&moved))

	renamed := *base
	renamed.Name = "Alpha Dragon (V.2)"
	assert.True(t, base.FieldsDiffer(&renamed))
}
