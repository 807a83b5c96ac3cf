// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"math"
	"sort"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// medianAbsDeviation is the median of absolute deviations from the median.
func medianAbsDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := median(xs)
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - m)
	}
	return median(devs)
}

// robustZScores uses the modified z-score 0.6745*(x-median)/MAD, which is
// not dragged around by the outliers it is looking for. Returns nil when
// MAD is zero.
func robustZScores(xs []float64) []float64 {
	mad := medianAbsDeviation(xs)
	if mad == 0 {
		return nil
	}
	m := median(xs)
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = 0.6745 * (x - m) / mad
	}
	return out
}
