package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/storage"
)

const toolName = "sps2fits"

// ErrNoInput is returned when the source selects no files.
var ErrNoInput = errors.New("no input files")

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	if config.History {
		return History(ctx, config.Storage, logger)
	}

	paths, err := Discover(config.Input)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(config.Output.Destination, 0o755); err != nil {
		return fsutil.NewIOError("mkdir", config.Output.Destination, err)
	}

	converter, err := NewConverter(config, logger)
	if err != nil {
		return err
	}

	options := []func(*Batch){WithWorkers(config.Settings.Workers)}

	var run *storage.Run
	if config.Storage.Enabled() {
		var store storage.Store
		if store, run, err = startRun(ctx, config); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, store.Close())
		}()
		defer func() {
			if fErr := store.FinishRun(context.Background(), run); fErr != nil {
				err = errors.Join(err, fmt.Errorf("finishing run: %w", fErr))
			}
		}()

		options = append(options, WithLedger(store, run))
		logger.Info("recording run", slog.String("run", run.ID.String()), slog.String("driver", config.Storage.Driver))
	}

	logger.Info("converting files",
		slog.Int("files", len(paths)),
		slog.Int("workers", config.Settings.Workers),
		slog.String("source", config.Input.Source),
		slog.String("destination", config.Output.Destination))

	summary := NewBatch(converter, logger, options...).Run(ctx, paths)

	logger.Info("conversion completed",
		slog.Group("stats",
			slog.Int("succeeded", summary.Succeeded),
			slog.Int("failed", summary.Failed),
			slog.Int("warnings", summary.Warnings)))

	if run != nil {
		run.Succeeded, run.Failed = summary.Succeeded, summary.Failed
	}

	return summary.Err()
}

// History logs the runs recorded in the ledger.
func History(ctx context.Context, config storage.Config, logger *slog.Logger) (err error) {
	store, err := storage.Open(config)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	return storage.Report(ctx, store, logger)
}

func startRun(ctx context.Context, config *Config) (storage.Store, *storage.Run, error) {
	store, err := storage.Open(config.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("opening ledger: %w", err)
	}

	run, err := store.StartRun(ctx, toolName, config.Input.Source, config.Output.Destination)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("starting run: %w", err), store.Close())
	}

	return store, run, nil
}

// Discover resolves the source to a sorted list of SPS files. A file source
// is returned as is; a directory is matched against the case-insensitive
// pattern, recursively when asked.
func Discover(input InputConfig) ([]string, error) {
	st, err := os.Stat(input.Source)
	if err != nil {
		return nil, fsutil.NewIOError("stat", input.Source, err)
	}
	if !st.IsDir() {
		return []string{input.Source}, nil
	}

	pattern := strings.ToLower(input.Pattern)
	if pattern == "" {
		pattern = defaultPattern
	}

	var paths []string
	err = filepath.WalkDir(input.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != input.Source && !input.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ok, err := filepath.Match(pattern, strings.ToLower(d.Name()))
		if err != nil {
			return err
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fsutil.NewIOError("walk", input.Source, err)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: nothing matches %q in %s", ErrNoInput, input.Pattern, input.Source)
	}

	slices.Sort(paths)
	return paths, nil
}
