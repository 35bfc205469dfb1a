// Package plot renders sweep grids as annotated spectrogram images.
package plot

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"time"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
)

const (
	defaultFontSize  = 10.0
	defaultMinWidth  = 800
	defaultMinHeight = 400

	defaultTopBorder    = 36
	defaultLeftBorder   = 96
	defaultBottomBorder = 72
	defaultRightBorder  = 96

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

// BorderConfig defines the white space around the spectrogram.
type BorderConfig struct {
	Top    int // Title
	Left   int // Frequency scale
	Bottom int // Time scale and information bar
	Right  int // Colour bar
}

// RenderConfig holds visualisation options. Zero values select defaults.
type RenderConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location

	FontSize   float64
	ColorTheme ColorTheme

	// Intensity percentiles mapped to the ends of the colour scale.
	LowPercentile  float64
	HighPercentile float64

	// Grids smaller than this are scaled up with nearest-neighbour sampling.
	MinWidth  int
	MinHeight int

	BorderConfig BorderConfig
}

// Renderer draws spectrograms: time runs left to right, frequency bottom to
// top. It keeps no per-render state and is safe for concurrent use.
type Renderer struct {
	config RenderConfig
}

// NewRenderer creates a renderer, filling zero config values with defaults.
func NewRenderer(config RenderConfig) (*Renderer, error) {
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}
	if config.ColorTheme == "" {
		config.ColorTheme = ViridisTheme
	}
	if _, ok := themes[config.ColorTheme]; !ok {
		return nil, fmt.Errorf("unknown colour theme %q", config.ColorTheme)
	}
	if config.LowPercentile == 0 && config.HighPercentile == 0 {
		config.LowPercentile, config.HighPercentile = defaultLowPercentile, defaultHighPercentile
	}
	if config.LowPercentile < 0 || config.HighPercentile > 1 || config.LowPercentile >= config.HighPercentile {
		return nil, fmt.Errorf("invalid percentiles %v..%v", config.LowPercentile, config.HighPercentile)
	}
	if config.MinWidth == 0 {
		config.MinWidth = defaultMinWidth
	}
	if config.MinHeight == 0 {
		config.MinHeight = defaultMinHeight
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &Renderer{config: config}, nil
}

// Render draws grid with the given title.
func (r *Renderer) Render(grid *spectrum.Grid, title string) (*image.RGBA, error) {
	sweeps, channels := grid.Dims()
	width, height := max(sweeps, r.config.MinWidth), max(channels, r.config.MinHeight)

	b := r.config.BorderConfig
	img := image.NewRGBA(image.Rect(0, 0, width+b.Left+b.Right, height+b.Top+b.Bottom))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(b.Left, b.Top, b.Left+width, b.Top+height)

	bounds := PercentileBounds(grid.Values(), r.config.LowPercentile, r.config.HighPercentile)
	cm := NewColorMapper(r.config.ColorTheme, bounds)

	ann, err := newAnnotator(r.config)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, area, grid, cm, bounds, title); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	renderGrid(img, area, grid, cm)

	return img, nil
}

// RenderFile renders grid into a PNG at dest, atomically.
func (r *Renderer) RenderFile(dest string, grid *spectrum.Grid, title string) error {
	img, err := r.Render(grid, title)
	if err != nil {
		return err
	}

	return fsutil.WriteFile(dest, 0o644, func(w io.Writer) error {
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encoding png: %w", err)
		}
		return nil
	})
}

// renderGrid fills area with nearest-neighbour samples of grid. Column x is a
// sweep, row y a channel counted from the bottom edge.
func renderGrid(img *image.RGBA, area image.Rectangle, grid *spectrum.Grid, cm *ColorMapper) {
	sweeps, channels := grid.Dims()
	width, height := area.Dx(), area.Dy()

	for x := 0; x < width; x++ {
		sweep := x * sweeps / width
		for y := 0; y < height; y++ {
			channel := (height - 1 - y) * channels / height
			img.SetRGBA(area.Min.X+x, area.Min.Y+y, cm.Color(grid.At(sweep, channel)))
		}
	}
}
