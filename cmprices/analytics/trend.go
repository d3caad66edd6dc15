package analytics

import "github.com/ellavondegurechaff/cmprices/cmprices/database/models"

const secondsPerDay = 86400.0

// Slope returns the ordinary-least-squares slope of value against elapsed
// time, in price units per day. Time is measured in fractional days since the
// first observation, so samples need not be evenly spaced. Fewer than two
// observations, or zero variance in time, yield 0.
func Slope(points []models.SeriesPoint) float64 {
	n := len(points)
	if n <= 1 {
		return 0
	}

	first := points[0].Date
	var sumT, sumV, sumTV, sumTT float64
	for _, p := range points {
		t := p.Date.Sub(first).Seconds() / secondsPerDay
		sumT += t
		sumV += p.Value
		sumTV += t * p.Value
		sumTT += t * t
	}

	denominator := float64(n)*sumTT - sumT*sumT
	if denominator == 0 {
		return 0
	}
	return (float64(n)*sumTV - sumT*sumV) / denominator
}

// PercentChange returns the percent change from initial to final, defined as
// 0 when the initial value is 0.
func PercentChange(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial * 100
}
