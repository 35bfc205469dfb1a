package plot

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	defaultLowPercentile  = 0.01
	defaultHighPercentile = 0.99
)

// Bounds is the intensity range mapped onto the colour scale.
type Bounds struct {
	Min  float64 // Low percentile intensity
	Max  float64 // High percentile intensity
	Mean float64 // Mean of all finite intensities
}

// PercentileBounds computes the low and high empirical quantiles of the finite
// values. A flat or empty input yields a unit-wide range so that colour
// mapping never divides by zero.
func PercentileBounds(values []float64, low, high float64) Bounds {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return Bounds{Min: 0, Max: 1, Mean: 0.5}
	}
	sort.Float64s(sorted)

	b := Bounds{
		Min:  stat.Quantile(low, stat.Empirical, sorted, nil),
		Max:  stat.Quantile(high, stat.Empirical, sorted, nil),
		Mean: stat.Mean(sorted, nil),
	}
	if b.Max <= b.Min {
		b.Min -= 0.5
		b.Max = b.Min + 1
	}
	return b
}
