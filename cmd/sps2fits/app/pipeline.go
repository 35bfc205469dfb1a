package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/export"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fits"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/plot"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/sps"
)

// Error kinds used in logs and the run ledger.
const (
	KindMalformedHeader   = "malformed_header"
	KindTruncatedData     = "truncated_data"
	KindEncodingError     = "encoding_error"
	KindDestinationExists = "destination_exists"
	KindIOError           = "io_error"
	KindUnknown           = "unknown"
)

// Classify maps a conversion error to its kind.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, sps.ErrMalformedHeader):
		return KindMalformedHeader
	case errors.Is(err, sps.ErrTruncatedData):
		return KindTruncatedData
	case errors.Is(err, fits.ErrEncoding):
		return KindEncodingError
	case errors.Is(err, fits.ErrDestinationExists):
		return KindDestinationExists
	case fsutil.IsIOError(err):
		return KindIOError
	default:
		return KindUnknown
	}
}

// ErrTargetIsDirectory is returned when a directory sits where an output
// would be written.
var ErrTargetIsDirectory = errors.New("target is a directory")

// Result is the outcome of converting one file.
type Result struct {
	Path     string
	Outputs  []string
	Sweeps   int
	Channels int
	Bytes    int64
	Duration time.Duration
	Warnings []error
	Err      error
}

// Converter runs the per-file pipeline: read, encode, export, plot. It holds
// no per-file state and is safe for concurrent use.
type Converter struct {
	destination string
	readOpts    []sps.Option
	fitsOpts    fits.Options
	exporters   []export.Exporter

	renderer *plot.Renderer
	show     bool

	logger *slog.Logger
}

// NewConverter builds a converter from the configuration.
func NewConverter(config *Config, logger *slog.Logger) (*Converter, error) {
	c := &Converter{
		destination: config.Output.Destination,
		fitsOpts:    config.FITSOptions(),
		show:        config.Plot.Show,
		logger:      logger.With(slog.String("component", "converter")),
	}

	c.readOpts = append(c.readOpts, sps.WithScale(config.Transform.Scale, config.Transform.Offset))
	if config.Transform.FrequencyLow != nil && config.Transform.FrequencyHigh != nil {
		c.readOpts = append(c.readOpts, sps.WithFrequencyRange(*config.Transform.FrequencyLow, *config.Transform.FrequencyHigh))
	}

	if config.Output.NPY {
		c.exporters = append(c.exporters, export.NPY{})
	}
	if config.Output.CSV {
		c.exporters = append(c.exporters, export.CSV{Header: config.Output.CSVHeader})
	}

	if config.Plotting() {
		theme, err := plot.ParseColorTheme(string(config.Plot.Theme))
		if err != nil {
			return nil, err
		}
		loc, err := time.LoadLocation(config.Plot.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("loading time zone: %w", err)
		}
		if c.renderer, err = plot.NewRenderer(plot.RenderConfig{ColorTheme: theme, Location: loc}); err != nil {
			return nil, fmt.Errorf("creating spectrum renderer: %w", err)
		}
	}

	return c, nil
}

// Convert runs the whole pipeline for path. Outputs are staged next to the
// destination and moved into place once every one of them has been written,
// so a failed file leaves existing outputs as they were. Plot problems are
// returned as warnings.
func (c *Converter) Convert(ctx context.Context, path string) (res Result) {
	start := time.Now()
	res.Path = path
	defer func() {
		res.Duration = time.Since(start)
	}()

	f, err := sps.ReadFile(path, c.readOpts...)
	if err != nil {
		res.Err = err
		return res
	}
	res.Sweeps, res.Channels = f.Grid.Dims()

	stem := c.stem(path)
	dest := stem + fits.Extension
	targets := []string{dest}
	for _, e := range c.exporters {
		targets = append(targets, stem+e.Extension())
	}
	if err = c.checkTargets(targets); err != nil {
		res.Err = err
		return res
	}

	stage, err := os.MkdirTemp(c.destination, ".sps2fits-*")
	if err != nil {
		res.Err = fsutil.NewIOError("mkdir", c.destination, err)
		return res
	}
	defer func() {
		if err := os.RemoveAll(stage); err != nil {
			c.logger.Warn("failed to remove staging directory", slog.String("path", stage), slog.String("error", err.Error()))
		}
	}()
	staged := filepath.Join(stage, filepath.Base(stem))

	opts := c.fitsOpts
	opts.Scale, opts.Offset = f.Scale, f.Offset
	if err = fits.WriteFile(staged+fits.Extension, f.Header, f.Grid, opts); err != nil {
		res.Err = fmt.Errorf("encoding %s: %w", dest, err)
		return res
	}

	for _, e := range c.exporters {
		if err = export.WriteFile(staged+e.Extension(), e, f.Grid); err != nil {
			res.Err = fmt.Errorf("exporting %s: %w", stem+e.Extension(), err)
			return res
		}
	}

	if err = c.commit(stage, targets); err != nil {
		res.Err = err
		return res
	}
	res.Outputs = targets

	for _, out := range res.Outputs {
		if st, err := os.Stat(out); err == nil {
			res.Bytes += st.Size()
		}
	}

	if c.renderer != nil {
		res.Warnings = c.plot(ctx, stem, dest, f)
	}

	return res
}

// stem is the destination path of path's outputs without an extension.
func (c *Converter) stem(path string) string {
	return filepath.Join(c.destination, fsutil.Stem(path))
}

// checkTargets fails before anything is written when a target cannot be
// replaced: it is a directory, or it exists and overwriting is disabled.
func (c *Converter) checkTargets(targets []string) error {
	for _, target := range targets {
		st, err := os.Stat(target)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case err != nil:
			return fsutil.NewIOError("stat", target, err)
		case st.IsDir():
			return fsutil.NewIOError("replace", target, ErrTargetIsDirectory)
		case !c.fitsOpts.Overwrite:
			return fmt.Errorf("%w: %s", fits.ErrDestinationExists, target)
		}
	}
	return nil
}

// commit moves the staged outputs onto targets. If a move fails the
// outputs already moved are removed again.
func (c *Converter) commit(stage string, targets []string) error {
	for i, target := range targets {
		if err := os.Rename(filepath.Join(stage, filepath.Base(target)), target); err != nil {
			c.removeOutputs(targets[:i])
			return fsutil.NewIOError("rename", target, err)
		}
	}
	return nil
}

func (c *Converter) plot(ctx context.Context, stem, fitsPath string, f *sps.File) []error {
	var warnings []error
	var images []string

	title := fmt.Sprintf("%s %s", filepath.Base(stem), f.Header.Name)

	srcImage := stem + ".sps.png"
	if err := c.renderer.RenderFile(srcImage, f.Grid, title+" (SPS)"); err != nil {
		warnings = append(warnings, fmt.Errorf("plotting source grid: %w", err))
	} else {
		images = append(images, srcImage)
	}

	product, err := fits.ReadFile(fitsPath)
	if err != nil {
		warnings = append(warnings, fmt.Errorf("reading back %s: %w", fitsPath, err))
	} else {
		fitsImage := stem + ".fits.png"
		if err = c.renderer.RenderFile(fitsImage, product.Grid, title+" (FITS)"); err != nil {
			warnings = append(warnings, fmt.Errorf("plotting FITS grid: %w", err))
		} else {
			images = append(images, fitsImage)
		}
	}

	if c.show && len(images) > 0 {
		if err = plot.Show(ctx, images...); err != nil {
			warnings = append(warnings, fmt.Errorf("showing plots: %w", err))
		}
	}

	return warnings
}

func (c *Converter) removeOutputs(outputs []string) {
	for _, out := range outputs {
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to remove partial output", slog.String("path", out), slog.String("error", err.Error()))
		}
	}
}
