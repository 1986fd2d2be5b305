// Package level provides decibel conversions and small summary statistics
// over measurement sample sets (noise-floor readings, acoustic delays,
// per-point stimulus powers).
package level

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds order statistics over a sample set.
type Summary struct {
	Count int
	Min   float64
	Avg   float64
	Max   float64
}

// Summarize computes min/avg/max over values. An empty input yields a
// zero Summary with Count 0.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	return Summary{
		Count: len(values),
		Min:   floats.Min(values),
		Avg:   stat.Mean(values, nil),
		Max:   floats.Max(values),
	}
}

// PowerDB converts a linear power ratio to decibels: 10 * log10(p).
// Returns -Inf for non-positive values.
func PowerDB(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(p)
}

// AmplitudeDB converts a linear amplitude ratio to decibels: 20 * log10(a).
// Returns -Inf for non-positive values.
func AmplitudeDB(a float64) float64 {
	if a <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(a)
}

// FromDB converts decibels back to a linear amplitude ratio: 10^(db/20).
func FromDB(db float64) float64 {
	return math.Pow(10, db/20)
}

// SpreadDB returns the ratio between the largest and smallest of the given
// linear powers, expressed in dB. It reports how stable a repeated power
// measurement is; 0 dB means all samples are identical.
// Returns +Inf when the smallest power is non-positive, 0 for fewer than
// 2 samples.
func SpreadDB(powers []float64) float64 {
	if len(powers) < 2 {
		return 0
	}
	min := floats.Min(powers)
	max := floats.Max(powers)
	if min <= 0 {
		if max <= 0 {
			return 0
		}
		return math.Inf(1)
	}
	return 10 * math.Log10(max/min)
}
