package plot

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
)

const (
	dpi             = 96.0
	tickMarkLength  = 5
	pixelsPerLabel  = 60.0
	maxTicks        = 1000
	colorBarWidth   = 16
	colorBarPadding = 12
)

type annotator struct {
	context  *freetype.Context
	config   RenderConfig
	fontFace font.Face
}

func newAnnotator(config RenderConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, grid *spectrum.Grid, cm *ColorMapper, bounds Bounds, title string) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawTitle(area, title); err != nil {
		return fmt.Errorf("drawing title: %w", err)
	}
	if err := a.drawFrequencyScale(img, area, grid.FrequencyAxis()); err != nil {
		return fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := a.drawTimeScale(img, area, grid); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawColorBar(img, area, cm, bounds); err != nil {
		return fmt.Errorf("drawing colour bar: %w", err)
	}
	if err := a.drawInfoBar(img, area, grid, bounds); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawString(s string, x, y int) error {
	_, err := a.context.DrawString(s, freetype.Pt(x, y))
	return err
}

func (a *annotator) drawTitle(area image.Rectangle, title string) error {
	if title == "" {
		return nil
	}
	width := font.MeasureString(a.fontFace, title).Round()
	x := area.Min.X + (area.Dx()-width)/2
	y := area.Min.Y - a.fontHeight()/2
	return a.drawString(title, x, y)
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, area image.Rectangle, axis spectrum.Axis) error {
	lo, hi := axis.Start, axis.End()
	if hi < lo {
		lo, hi = hi, lo
	}
	descent := a.fontFace.Metrics().Descent.Round()

	for _, v := range niceTicks(lo, hi, area.Dy()) {
		ratio := 0.0
		if hi > lo {
			ratio = (v - lo) / (hi - lo)
		}
		y := area.Max.Y - 1 - int(ratio*float64(area.Dy()-1))

		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := formatAxisValue(v, axis.Unit)
		width := font.MeasureString(a.fontFace, label).Round()
		if err := a.drawString(label, area.Min.X-tickMarkLength-3-width, y+a.fontHeight()/2-descent); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, area image.Rectangle, grid *spectrum.Grid) error {
	sweeps, _ := grid.Dims()
	start, end := grid.Time(0), grid.Time(sweeps-1)
	duration := end.Sub(start)
	step := niceTimeStep(duration)

	y := area.Max.Y + tickMarkLength + a.fontHeight()

	first := start.Truncate(step)
	if first.Before(start) {
		first = first.Add(step)
	}
	for t := first; !t.After(end); t = t.Add(step) {
		ratio := 0.0
		if duration > 0 {
			ratio = float64(t.Sub(start)) / float64(duration)
		}
		x := area.Min.X + int(ratio*float64(area.Dx()-1))

		for ty := area.Max.Y; ty < area.Max.Y+tickMarkLength; ty++ {
			img.Set(x, ty, color.Black)
		}

		label := t.In(a.config.Location).Format(a.config.TimeFormat)
		width := font.MeasureString(a.fontFace, label).Round()
		if err := a.drawString(label, x-width/2, y); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawColorBar(img *image.RGBA, area image.Rectangle, cm *ColorMapper, bounds Bounds) error {
	x0 := area.Max.X + colorBarPadding
	height := area.Dy()

	for y := 0; y < height; y++ {
		c := cm.Fraction(float64(height-1-y) / float64(max(height-1, 1)))
		for x := x0; x < x0+colorBarWidth; x++ {
			img.SetRGBA(x, area.Min.Y+y, c)
		}
	}

	labelX := x0 + colorBarWidth + 4
	if err := a.drawString(humanize.FtoaWithDigits(bounds.Max, 2), labelX, area.Min.Y+a.fontHeight()); err != nil {
		return err
	}
	return a.drawString(humanize.FtoaWithDigits(bounds.Min, 2), labelX, area.Max.Y)
}

func (a *annotator) drawInfoBar(img *image.RGBA, area image.Rectangle, grid *spectrum.Grid, bounds Bounds) error {
	sweeps, channels := grid.Dims()
	axis := grid.FrequencyAxis()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Time: %s - %s",
		grid.Time(0).In(a.config.Location).Format(a.config.DatetimeFormat),
		grid.Time(sweeps-1).In(a.config.Location).Format(a.config.DatetimeFormat))
	fmt.Fprintf(&sb, "; Band: %s - %s", formatAxisValue(axis.Start, axis.Unit), formatAxisValue(axis.End(), axis.Unit))
	fmt.Fprintf(&sb, "; %s sweeps x %s channels", humanize.Comma(int64(sweeps)), humanize.Comma(int64(channels)))
	fmt.Fprintf(&sb, "; mean %s", humanize.FtoaWithDigits(bounds.Mean, 2))

	descent := a.fontFace.Metrics().Descent.Round()
	y := img.Bounds().Max.Y - (a.config.BorderConfig.Bottom-tickMarkLength-a.fontHeight())/2 + a.fontHeight()/2 - descent
	return a.drawString(sb.String(), area.Min.X, y)
}

func formatAxisValue(v float64, unit string) string {
	if unit == "Hz" {
		return humanize.SIWithDigits(v, 2, "Hz")
	}
	return humanize.FtoaWithDigits(v, 2)
}

// niceTicks returns tick values on a 1-2-5 progression that fit roughly one
// label every pixelsPerLabel pixels.
func niceTicks(lo, hi float64, pixels int) []float64 {
	if !(hi > lo) {
		return []float64{lo}
	}

	target := (hi - lo) / math.Max(1, float64(pixels)/pixelsPerLabel)
	magnitude := math.Pow(10, math.Floor(math.Log10(target)))

	step := 10 * magnitude
	for _, m := range []float64{1, 2, 5} {
		if m*magnitude >= target {
			step = m * magnitude
			break
		}
	}

	if step <= 0 || math.IsInf(step, 0) || math.IsNaN(step) {
		return []float64{lo}
	}

	// Ticks are computed by index: near the float64 precision limit
	// v+step can equal v.
	first := math.Ceil(lo/step) * step
	n := math.Min(math.Floor((hi-first)/step+1e-9), maxTicks)

	var ticks []float64
	for i := 0; i <= int(n); i++ {
		v := first + float64(i)*step
		if len(ticks) > 0 && v <= ticks[len(ticks)-1] {
			continue
		}
		ticks = append(ticks, v)
	}
	return ticks
}

func niceTimeStep(duration time.Duration) time.Duration {
	rough := duration / 8

	intervals := []time.Duration{
		time.Second,
		5 * time.Second,
		10 * time.Second,
		30 * time.Second,
		time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		15 * time.Minute,
		30 * time.Minute,
		time.Hour,
		2 * time.Hour,
		4 * time.Hour,
	}
	for _, interval := range intervals {
		if rough <= interval {
			return interval
		}
	}
	return 6 * time.Hour
}
