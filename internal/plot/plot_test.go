package plot_test

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/plot"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
)

func testGrid(t *testing.T, sweeps, channels int) *spectrum.Grid {
	t.Helper()

	values := make([]float64, sweeps*channels)
	for i := range values {
		values[i] = float64(i % 97)
	}
	g, err := spectrum.NewGrid(values,
		spectrum.Axis{Name: spectrum.AxisFrequency, Unit: "Hz", Start: 15e6, Step: 72e6 / float64(channels-1), Len: channels},
		spectrum.Axis{Name: spectrum.AxisTime, Unit: "s", Step: 2, Len: sweeps},
		time.Date(2024, 4, 8, 18, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return g
}

func TestPercentileBounds(t *testing.T) {
	values := make([]float64, 101)
	for i := range values {
		values[i] = float64(i)
	}
	values = append(values, math.NaN(), math.Inf(1))

	b := plot.PercentileBounds(values, 0.1, 0.9)
	assert.InDelta(t, 10, b.Min, 1)
	assert.InDelta(t, 90, b.Max, 1)
	assert.InDelta(t, 50, b.Mean, 1e-9)

	flat := plot.PercentileBounds([]float64{3, 3, 3}, 0.01, 0.99)
	assert.Less(t, flat.Min, flat.Max)

	empty := plot.PercentileBounds([]float64{math.NaN()}, 0.01, 0.99)
	assert.Equal(t, plot.Bounds{Min: 0, Max: 1, Mean: 0.5}, empty)
}

func TestColorMapper(t *testing.T) {
	cm := plot.NewColorMapper(plot.ViridisTheme, plot.Bounds{Min: 0, Max: 100})

	low, high := cm.Color(0), cm.Color(100)
	assert.NotEqual(t, low, high)
	assert.Equal(t, low, cm.Color(-50), "values below the range clamp to the low colour")
	assert.Equal(t, high, cm.Color(1e9), "values above the range clamp to the high colour")

	// viridis starts dark purple and ends yellow
	assert.Greater(t, low.B, low.G)
	assert.Greater(t, high.R, high.B)
	assert.Equal(t, uint8(0xff), cm.Color(math.NaN()).A)
}

func TestParseColorTheme(t *testing.T) {
	theme, err := plot.ParseColorTheme("")
	require.NoError(t, err)
	assert.Equal(t, plot.ViridisTheme, theme)

	theme, err = plot.ParseColorTheme("thermal")
	require.NoError(t, err)
	assert.Equal(t, plot.ThermalTheme, theme)

	_, err = plot.ParseColorTheme("rainbow")
	require.Error(t, err)
}

func TestNewRenderer_Invalid(t *testing.T) {
	_, err := plot.NewRenderer(plot.RenderConfig{ColorTheme: "rainbow"})
	require.Error(t, err)

	_, err = plot.NewRenderer(plot.RenderConfig{LowPercentile: 0.9, HighPercentile: 0.1})
	require.Error(t, err)
}

func TestRenderFile(t *testing.T) {
	r, err := plot.NewRenderer(plot.RenderConfig{MinWidth: 200, MinHeight: 100})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "sweep.sps.png")
	require.NoError(t, r.RenderFile(dest, testGrid(t, 50, 20), "sweep.sps"))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)

	// 200x100 plot area plus the default borders
	assert.Equal(t, 200+96+96, img.Bounds().Dx())
	assert.Equal(t, 100+36+72, img.Bounds().Dy())
}

func TestRender_LargeGridKeepsNativeSize(t *testing.T) {
	r, err := plot.NewRenderer(plot.RenderConfig{MinWidth: 10, MinHeight: 10})
	require.NoError(t, err)

	img, err := r.Render(testGrid(t, 300, 120), "")
	require.NoError(t, err)
	assert.Equal(t, 300+96+96, img.Bounds().Dx())
	assert.Equal(t, 120+36+72, img.Bounds().Dy())
}
