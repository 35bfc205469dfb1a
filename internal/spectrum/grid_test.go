package spectrum_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
)

func TestNewGrid(t *testing.T) {
	epoch := time.Date(2024, 4, 8, 18, 0, 0, 0, time.UTC)
	freq := spectrum.Axis{Name: spectrum.AxisFrequency, Unit: "Hz", Start: 15e6, Step: 1e6, Len: 3}
	tm := spectrum.Axis{Name: spectrum.AxisTime, Unit: "s", Start: 0, Step: 0.5, Len: 2}

	values := []float64{1, 2, 3, 4, 5, 6}
	g, err := spectrum.NewGrid(values, freq, tm, epoch)
	require.NoError(t, err)

	sweeps, channels := g.Dims()
	assert.Equal(t, 2, sweeps)
	assert.Equal(t, 3, channels)
	assert.Equal(t, 6.0, g.At(1, 2))
	assert.Equal(t, []float64{4, 5, 6}, g.Row(1))
	assert.Equal(t, epoch.Add(500*time.Millisecond), g.Time(1))
	assert.Equal(t, []float64{15e6, 16e6, 17e6}, g.FrequencyAxis().Values())
	assert.Equal(t, 17e6, g.FrequencyAxis().End())
	assert.True(t, g.Integral())
	assert.Zero(t, g.NonFinite())

	// Copies must not alias the grid.
	row := g.Row(0)
	row[0] = 100
	all := g.Values()
	all[1] = 100
	assert.Equal(t, 1.0, g.At(0, 0))
	assert.Equal(t, 2.0, g.At(0, 1))
}

func TestNewGrid_ShapeMismatch(t *testing.T) {
	freq := spectrum.Axis{Name: spectrum.AxisChannel, Step: 1, Len: 3}
	tm := spectrum.Axis{Name: spectrum.AxisTime, Unit: "s", Step: 1, Len: 2}

	testCases := []struct {
		name   string
		values []float64
		freq   spectrum.Axis
		tm     spectrum.Axis
	}{
		{"too few values", []float64{1, 2, 3}, freq, tm},
		{"no channels", nil, spectrum.Axis{Len: 0}, tm},
		{"no sweeps", nil, freq, spectrum.Axis{Len: 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := spectrum.NewGrid(tc.values, tc.freq, tc.tm, time.Time{})
			require.ErrorIs(t, err, spectrum.ErrShape)
		})
	}
}

func TestGrid_Integral(t *testing.T) {
	freq := spectrum.Axis{Name: spectrum.AxisChannel, Step: 1, Len: 2}
	tm := spectrum.Axis{Name: spectrum.AxisTime, Unit: "s", Step: 1, Len: 1}

	g, err := spectrum.NewGrid([]float64{1.5, 2}, freq, tm, time.Time{})
	require.NoError(t, err)
	assert.False(t, g.Integral())

	g, err = spectrum.NewGrid([]float64{math.NaN(), math.Inf(1)}, freq, tm, time.Time{})
	require.NoError(t, err)
	assert.False(t, g.Integral())
	assert.Equal(t, 2, g.NonFinite())
}
