package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/dropbox"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/settings"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/storage"
)

const (
	// TokenEnv names the variable holding the Dropbox access token.
	TokenEnv = "DBX_TOKEN"

	defaultEnvFile = ".env"
)

// ErrMissingToken is returned when no access token is configured.
var ErrMissingToken = errors.New("dropbox token not found, set " + TokenEnv)

// Config represents the sync configuration. It is read from an optional
// YAML file; flags given on the command line override it.
type Config struct {
	Settings Settings       `yaml:"settings"`
	Sync     SyncConfig     `yaml:"sync"`
	Storage  storage.Config `yaml:"storage"`

	ConfigFile string `yaml:"-"`
	Token      string `yaml:"-"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel settings.LogLevel `yaml:"logLevel"`
	Log      bool              `yaml:"log"`     // When false only errors are logged
	EnvFile  string            `yaml:"envFile"` // Dotenv file holding DBX_TOKEN
}

// SyncConfig controls what is downloaded and where.
type SyncConfig struct {
	Path        string             `yaml:"path"` // Local destination directory
	Root        string             `yaml:"root"` // Remote folder, "" is the app root
	Probability float64            `yaml:"probability"`
	Manifest    bool               `yaml:"out"`
	Flat        bool               `yaml:"flat"`
	DryRun      bool               `yaml:"dryRun"`
	Include     settings.CommaList `yaml:"include"`
	Exclude     settings.CommaList `yaml:"exclude"`
}

func NewConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: settings.LogLevel(slog.LevelInfo),
			Log:      true,
			EnvFile:  defaultEnvFile,
		},
		Sync: SyncConfig{
			Probability: 1,
		},
		Storage: storage.Config{
			Driver: storage.DriverSqlite,
		},
	}
}

// NewConfigFromArgs parses the command line arguments (without the program
// name), loads the optional YAML file and the dotenv file, and resolves the
// access token.
func NewConfigFromArgs(name string, args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs, visited := c.flagSet(name, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.ConfigFile != "" {
		if err := settings.LoadYAML(c.ConfigFile, c); err != nil {
			return nil, err
		}

		// Parse again so that defaults come from the file and explicit
		// flags win.
		fs, visited = c.flagSet(name, output)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	if err := c.loadToken(visited("env")); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}

func (c *Config) flagSet(name string, output io.Writer) (*flag.FlagSet, func(string) bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&c.ConfigFile, "c", c.ConfigFile, "Path to the YAML configuration file")
	fs.Var(&c.Settings.LogLevel, "log-level", "Log level [debug, info, warn, error]")
	fs.BoolVar(&c.Settings.Log, "log", c.Settings.Log, "Log progress, otherwise only errors")
	fs.StringVar(&c.Settings.EnvFile, "env", c.Settings.EnvFile, "Dotenv file holding "+TokenEnv)

	fs.StringVar(&c.Sync.Path, "path", c.Sync.Path, "Local destination directory")
	fs.StringVar(&c.Sync.Root, "root", c.Sync.Root, "Remote folder to mirror, empty for the root")
	fs.Float64Var(&c.Sync.Probability, "probability", c.Sync.Probability, "Probability of downloading each missing file (0 to 1)")
	fs.BoolVar(&c.Sync.Manifest, "out", c.Sync.Manifest, "Write a dbx_<date>.out manifest into the destination")
	fs.BoolVar(&c.Sync.Flat, "flat", c.Sync.Flat, "Download every file into the destination root")
	fs.BoolVar(&c.Sync.DryRun, "dry-run", c.Sync.DryRun, "Report what would be downloaded without writing")
	fs.Var(&c.Sync.Include, "include", "Comma separated extensions to download, excludes all others")
	fs.Var(&c.Sync.Exclude, "exclude", "Comma separated extensions to skip")

	fs.StringVar(&c.Storage.Path, "ledger", c.Storage.Path, "Path to the SQLite run ledger")

	visited := func(name string) bool {
		var found bool
		fs.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}

	return fs, visited
}

// loadToken reads the dotenv file into the environment and takes the token
// from it. A missing default dotenv file is not an error.
func (c *Config) loadToken(explicit bool) error {
	if c.Settings.EnvFile != "" {
		err := godotenv.Load(c.Settings.EnvFile)
		if err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
			return fmt.Errorf("loading %s: %w", c.Settings.EnvFile, err)
		}
	}

	c.Token = strings.TrimSpace(os.Getenv(TokenEnv))
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.Sync.Path == "" {
		return errors.New("path is required")
	}
	if st, err := os.Stat(c.Sync.Path); err != nil || !st.IsDir() {
		return fmt.Errorf("destination folder %s not found", c.Sync.Path)
	}
	if err := dropbox.ValidateProbability(c.Sync.Probability); err != nil {
		return err
	}
	if len(c.Sync.Include) > 0 && len(c.Sync.Exclude) > 0 {
		return dropbox.ErrIncludeExclude
	}
	if c.Sync.Root != "" && !strings.HasPrefix(c.Sync.Root, "/") {
		return fmt.Errorf("remote root must start with /: %q", c.Sync.Root)
	}
	return nil
}

// Filters returns the file filters in the order they are applied.
func (c *Config) Filters() ([]dropbox.Filterer, error) {
	ext, err := dropbox.NewExtensionFilter(c.Sync.Include, c.Sync.Exclude)
	if err != nil {
		return nil, err
	}
	return []dropbox.Filterer{
		&dropbox.SampleFilter{Probability: c.Sync.Probability},
		ext,
	}, nil
}
