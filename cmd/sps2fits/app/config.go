package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fits"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/plot"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/settings"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/storage"
)

const defaultPattern = "*.sps"

// Config represents the converter configuration. It is read from an
// optional YAML file; flags given on the command line override it.
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Transform TransformConfig `yaml:"transform"`
	Plot      PlotConfig      `yaml:"plot"`
	Storage   storage.Config  `yaml:"storage"`

	ConfigFile string `yaml:"-"`

	// Report the ledger instead of converting.
	History bool `yaml:"-"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel settings.LogLevel `yaml:"logLevel"`
	Workers  int               `yaml:"workers"`
}

// InputConfig selects the SPS files to convert.
type InputConfig struct {
	Source    string `yaml:"source"`    // File or directory
	Pattern   string `yaml:"pattern"`   // Case-insensitive glob applied to file names
	Recursive bool   `yaml:"recursive"` // Descend into subdirectories
}

// OutputConfig controls the files written for each input.
type OutputConfig struct {
	Destination string  `yaml:"destination"`
	Overwrite   bool    `yaml:"overwrite"`
	NPY         bool    `yaml:"npy"`
	CSV         bool    `yaml:"csv"`
	CSVHeader   bool    `yaml:"csvHeader"`
	NonFinite   string  `yaml:"nonFinite"` // error or sentinel
	Sentinel    float64 `yaml:"sentinel"`
}

// TransformConfig maps raw samples to intensities and channels to
// frequencies.
type TransformConfig struct {
	Scale         float64  `yaml:"scale"`
	Offset        float64  `yaml:"offset"`
	FrequencyLow  *float64 `yaml:"frequencyLow"`  // Hz of the first channel
	FrequencyHigh *float64 `yaml:"frequencyHigh"` // Hz of the last channel
}

// PlotConfig controls spectrogram rendering.
type PlotConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Show     bool            `yaml:"show"`
	Theme    plot.ColorTheme `yaml:"theme"`
	TimeZone string          `yaml:"timeZone"`
}

func NewConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: settings.LogLevel(slog.LevelInfo),
			Workers:  runtime.GOMAXPROCS(0),
		},
		Input: InputConfig{
			Pattern: defaultPattern,
		},
		Output: OutputConfig{
			Destination: ".",
			Overwrite:   true,
			NonFinite:   fits.NonFiniteError.String(),
		},
		Transform: TransformConfig{
			Scale: 1,
		},
		Plot: PlotConfig{
			Theme:    plot.ViridisTheme,
			TimeZone: "UTC",
		},
		Storage: storage.Config{
			Driver: storage.DriverSqlite,
		},
	}
}

// NewConfigFromArgs parses the command line arguments (without the program
// name). When -c names a YAML file, it is loaded first and only flags that
// were explicitly given override its values.
func NewConfigFromArgs(name string, args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs, visit := c.flagSet(name, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.ConfigFile != "" {
		if err := settings.LoadYAML(c.ConfigFile, c); err != nil {
			return nil, err
		}

		// Parse again so that defaults come from the file and explicit
		// flags win.
		fs, visit = c.flagSet(name, output)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}
	visit()

	if fs.NArg() > 0 && c.Input.Source == "" {
		c.Input.Source = fs.Arg(0)
	}

	if err := c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}

func (c *Config) flagSet(name string, output io.Writer) (*flag.FlagSet, func()) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	var freqLow, freqHigh float64
	if c.Transform.FrequencyLow != nil {
		freqLow = *c.Transform.FrequencyLow
	}
	if c.Transform.FrequencyHigh != nil {
		freqHigh = *c.Transform.FrequencyHigh
	}

	fs.StringVar(&c.ConfigFile, "c", c.ConfigFile, "Path to the YAML configuration file")
	fs.Var(&c.Settings.LogLevel, "log-level", "Log level [debug, info, warn, error]")
	fs.IntVar(&c.Settings.Workers, "workers", c.Settings.Workers, "Number of files converted in parallel")

	fs.StringVar(&c.Input.Source, "s", c.Input.Source, "Source SPS file or directory (shorthand)")
	fs.StringVar(&c.Input.Source, "source", c.Input.Source, "Source SPS file or directory")
	fs.StringVar(&c.Input.Pattern, "pattern", c.Input.Pattern, "Case-insensitive file name pattern used for directories")
	fs.BoolVar(&c.Input.Recursive, "recursive", c.Input.Recursive, "Search source directory recursively")

	fs.StringVar(&c.Output.Destination, "d", c.Output.Destination, "Destination directory (shorthand)")
	fs.StringVar(&c.Output.Destination, "destination", c.Output.Destination, "Destination directory")
	fs.BoolVar(&c.Output.Overwrite, "overwrite", c.Output.Overwrite, "Overwrite existing outputs")
	fs.BoolVar(&c.Output.NPY, "npy", c.Output.NPY, "Also export a .npy array")
	fs.BoolVar(&c.Output.CSV, "csv", c.Output.CSV, "Also export a .csv table")
	fs.BoolVar(&c.Output.CSVHeader, "csv-header", c.Output.CSVHeader, "Write channel frequencies as the first CSV row")
	fs.StringVar(&c.Output.NonFinite, "non-finite", c.Output.NonFinite, "Handling of NaN and Inf intensities [error, sentinel]")
	fs.Float64Var(&c.Output.Sentinel, "sentinel", c.Output.Sentinel, "Value stored in place of non-finite intensities")

	fs.Float64Var(&c.Transform.Scale, "scale", c.Transform.Scale, "Intensity scale applied to raw samples")
	fs.Float64Var(&c.Transform.Offset, "offset", c.Transform.Offset, "Intensity offset applied to raw samples")
	fs.Float64Var(&freqLow, "freq-low", freqLow, "Frequency of the first channel in Hz (format nn.n)")
	fs.Float64Var(&freqHigh, "freq-high", freqHigh, "Frequency of the last channel in Hz (format nn.n)")

	fs.BoolVar(&c.Plot.Enabled, "plot", c.Plot.Enabled, "Render spectrogram images")
	fs.BoolVar(&c.Plot.Show, "show", c.Plot.Show, "Render spectrogram images and open them")
	fs.StringVar((*string)(&c.Plot.Theme), "theme", string(c.Plot.Theme), "Colour theme [viridis, classic, grayscale, thermal, marine]")

	fs.StringVar(&c.Storage.Path, "ledger", c.Storage.Path, "Path to the SQLite run ledger")
	fs.BoolVar(&c.History, "history", c.History, "List the runs recorded in the ledger and exit")

	visit := func() {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "freq-low":
				c.Transform.FrequencyLow = &freqLow
			case "freq-high":
				c.Transform.FrequencyHigh = &freqHigh
			}
		})
	}

	return fs, visit
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	var err error
	switch {
	case c.History && !c.Storage.Enabled():
		err = errors.New("history needs a ledger")
	case c.Input.Source == "" && !c.History:
		err = errors.New("source is required")
	case c.Output.Destination == "":
		err = errors.New("destination is required")
	case c.Settings.Workers < 1:
		err = fmt.Errorf("workers must be at least 1: %d given", c.Settings.Workers)
	case c.Transform.Scale == 0 || math.IsNaN(c.Transform.Scale) || math.IsInf(c.Transform.Scale, 0):
		err = fmt.Errorf("scale must be a finite non-zero number: %v given", c.Transform.Scale)
	case math.IsNaN(c.Transform.Offset) || math.IsInf(c.Transform.Offset, 0):
		err = fmt.Errorf("offset must be finite: %v given", c.Transform.Offset)
	case (c.Transform.FrequencyLow == nil) != (c.Transform.FrequencyHigh == nil):
		err = errors.New("frequency low and high must be given together")
	case c.Transform.FrequencyLow != nil && *c.Transform.FrequencyHigh < *c.Transform.FrequencyLow:
		err = fmt.Errorf("frequency high must not be below low: %0.2f < %0.2f", *c.Transform.FrequencyHigh, *c.Transform.FrequencyLow)
	}
	if err != nil {
		return err
	}

	if _, err = filepath.Match(c.Input.Pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", c.Input.Pattern, err)
	}
	if _, err = fits.ParseNonFinitePolicy(c.Output.NonFinite); err != nil {
		return err
	}
	if _, err = plot.ParseColorTheme(string(c.Plot.Theme)); err != nil {
		return err
	}
	if _, err = time.LoadLocation(c.Plot.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Plot.TimeZone, err)
	}
	if c.Storage.Enabled() {
		switch c.Storage.Driver {
		case storage.DriverSqlite, storage.DriverMySQL:
		default:
			return fmt.Errorf("unsupported ledger driver %q", c.Storage.Driver)
		}
	}

	return nil
}

// FITSOptions returns the encoder options.
func (c *Config) FITSOptions() fits.Options {
	policy, _ := fits.ParseNonFinitePolicy(c.Output.NonFinite)

	opts := fits.DefaultOptions()
	opts.Overwrite = c.Output.Overwrite
	opts.NonFinite = policy
	opts.Sentinel = c.Output.Sentinel
	return opts
}

// Plotting reports whether images are rendered.
func (c *Config) Plotting() bool {
	return c.Plot.Enabled || c.Plot.Show
}
