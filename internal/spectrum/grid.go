package spectrum

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Axis names as written to FITS CTYPE cards.
const (
	AxisFrequency = "FREQ"
	AxisChannel   = "CHANNEL"
	AxisTime      = "TIME"
)

// ErrShape is returned when grid dimensions and axes disagree.
var ErrShape = errors.New("grid shape mismatch")

// Axis is a linear axis: the i-th (0-based) value is Start + i*Step.
type Axis struct {
	Name  string  `json:"name"`  // FREQ, CHANNEL or TIME
	Unit  string  `json:"unit"`  // Hz, s or empty for channel indices
	Start float64 `json:"start"` // Value of the first element
	Step  float64 `json:"step"`  // Increment between consecutive elements
	Len   int     `json:"len"`   // Number of elements
}

// Value returns the axis value at index i.
func (a Axis) Value(i int) float64 {
	return a.Start + float64(i)*a.Step
}

// Values returns every axis value.
func (a Axis) Values() []float64 {
	values := make([]float64, a.Len)
	for i := range values {
		values[i] = a.Value(i)
	}
	return values
}

// End returns the value of the last element, or Start for an empty axis.
func (a Axis) End() float64 {
	if a.Len == 0 {
		return a.Start
	}
	return a.Value(a.Len - 1)
}

// Grid is an immutable sweeps x channels intensity grid. Rows are sweeps in
// time order, columns are frequency bins. The time axis is expressed in
// seconds relative to Epoch.
type Grid struct {
	sweeps   int
	channels int
	values   []float64

	frequency Axis
	time      Axis
	epoch     time.Time
}

// NewGrid creates a grid and takes ownership of values, which must be laid
// out row-major (sweep after sweep).
func NewGrid(values []float64, frequency, tm Axis, epoch time.Time) (*Grid, error) {
	sweeps, channels := tm.Len, frequency.Len
	if sweeps <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: %d sweeps x %d channels", ErrShape, sweeps, channels)
	}
	if len(values) != sweeps*channels {
		return nil, fmt.Errorf("%w: %d values for %d sweeps x %d channels", ErrShape, len(values), sweeps, channels)
	}

	return &Grid{
		sweeps:    sweeps,
		channels:  channels,
		values:    values,
		frequency: frequency,
		time:      tm,
		epoch:     epoch.UTC(),
	}, nil
}

// Dims returns the number of sweeps (rows) and channels (columns).
func (g *Grid) Dims() (sweeps, channels int) {
	return g.sweeps, g.channels
}

// At returns the intensity of the given sweep and channel.
func (g *Grid) At(sweep, channel int) float64 {
	return g.values[sweep*g.channels+channel]
}

// Row returns a copy of a single sweep.
func (g *Grid) Row(sweep int) []float64 {
	row := make([]float64, g.channels)
	copy(row, g.values[sweep*g.channels:(sweep+1)*g.channels])
	return row
}

// Values returns a row-major copy of all intensities.
func (g *Grid) Values() []float64 {
	values := make([]float64, len(g.values))
	copy(values, g.values)
	return values
}

// FrequencyAxis returns the frequency (column) axis.
func (g *Grid) FrequencyAxis() Axis {
	return g.frequency
}

// TimeAxis returns the time (row) axis in seconds relative to Epoch.
func (g *Grid) TimeAxis() Axis {
	return g.time
}

// Epoch returns the timestamp of time axis value zero.
func (g *Grid) Epoch() time.Time {
	return g.epoch
}

// Time returns the timestamp of a sweep.
func (g *Grid) Time(sweep int) time.Time {
	return g.epoch.Add(time.Duration(math.Round(g.time.Value(sweep) * float64(time.Second))))
}

// Integral reports whether every intensity is a finite integer that fits an
// int32, which allows an integer-backed lossless encoding.
func (g *Grid) Integral() bool {
	for _, v := range g.values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return false
		}
	}
	return true
}

// NonFinite returns the number of NaN or infinite intensities.
func (g *Grid) NonFinite() int {
	var n int
	for _, v := range g.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			n++
		}
	}
	return n
}
