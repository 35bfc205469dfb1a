package plot

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme names a colour scale for intensities.
type ColorTheme string

const (
	ViridisTheme   ColorTheme = "viridis"   // Dark purple to yellow, perceptually uniform
	ClassicTheme   ColorTheme = "classic"   // Blue to red
	GrayscaleTheme ColorTheme = "grayscale" // Black to white
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	DefaultColorMapSize = 256
)

var themes = map[ColorTheme]func(float64) color.Color{
	ViridisTheme:   gradient(viridisStops),
	ClassicTheme:   classic,
	GrayscaleTheme: grayscale,
	ThermalTheme:   gradient(thermalStops),
	MarineTheme:    marine,
}

// ParseColorTheme validates a theme name. The empty string selects viridis.
func ParseColorTheme(s string) (ColorTheme, error) {
	if s == "" {
		return ViridisTheme, nil
	}
	if _, ok := themes[ColorTheme(s)]; !ok {
		return "", fmt.Errorf("unknown colour theme %q", s)
	}
	return ColorTheme(s), nil
}

// noDataColor marks non-finite intensities.
var noDataColor = color.RGBA{A: 0xff}

// ColorMapper maps intensities onto a pre-computed colour table.
type ColorMapper struct {
	colorMap []color.RGBA
	bounds   Bounds
	perIndex float64
}

// NewColorMapper builds a mapper for theme over bounds.
func NewColorMapper(theme ColorTheme, bounds Bounds) *ColorMapper {
	fn, ok := themes[theme]
	if !ok {
		fn = themes[ViridisTheme]
	}

	cm := &ColorMapper{
		colorMap: make([]color.RGBA, DefaultColorMapSize),
		bounds:   bounds,
		perIndex: (bounds.Max - bounds.Min) / float64(DefaultColorMapSize-1),
	}
	for i := range cm.colorMap {
		cm.colorMap[i] = color.RGBAModel.Convert(fn(float64(i) / float64(DefaultColorMapSize-1))).(color.RGBA)
	}
	return cm
}

// Color returns the colour of an intensity, clamped to the bounds.
func (cm *ColorMapper) Color(v float64) color.RGBA {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return noDataColor
	}

	v = math.Max(cm.bounds.Min, math.Min(v, cm.bounds.Max))
	index := int((v - cm.bounds.Min) / cm.perIndex)
	if index < 0 {
		index = 0
	} else if index >= len(cm.colorMap) {
		index = len(cm.colorMap) - 1
	}
	return cm.colorMap[index]
}

// Fraction returns the colour at a normalised position in [0,1].
func (cm *ColorMapper) Fraction(f float64) color.RGBA {
	return cm.Color(cm.bounds.Min + f*(cm.bounds.Max-cm.bounds.Min))
}

var viridisStops = []string{
	"#440154", "#482878", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

var thermalStops = []string{"#000000", "#ff0000", "#ffff00", "#ffffff"}

// gradient interpolates evenly spaced stops in CIE L*a*b*.
func gradient(stops []string) func(float64) color.Color {
	colors := make([]colorful.Color, len(stops))
	for i, s := range stops {
		c, err := colorful.Hex(s)
		if err != nil {
			panic(fmt.Sprintf("invalid colour stop %q: %v", s, err))
		}
		colors[i] = c
	}

	return func(f float64) color.Color {
		f = math.Max(0, math.Min(1, f))
		pos := f * float64(len(colors)-1)
		i := int(pos)
		if i >= len(colors)-1 {
			return colors[len(colors)-1].Clamped()
		}
		return colors[i].BlendLab(colors[i+1], pos-float64(i)).Clamped()
	}
}

func classic(f float64) color.Color {
	return colorful.Hsv(240-f*240, 0.9+f*0.1, math.Pow(f, 0.7))
}

func grayscale(f float64) color.Color {
	v := math.Pow(f, 0.7)
	return colorful.Color{R: v, G: v, B: v}
}

func marine(f float64) color.Color {
	return colorful.Hsv(240-f*60, 1.0-f*0.8, 0.3+math.Pow(f, 0.6)*0.7)
}
