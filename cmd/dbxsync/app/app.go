package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/dropbox"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/storage"
)

const (
	toolName = "dbxsync"

	KindIOError      = "io_error"
	KindDropboxError = "dropbox_error"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	client := dropbox.NewClient(config.Token, dropbox.WithClientLogger(logger))
	return runSync(ctx, client, config, logger)
}

func runSync(ctx context.Context, client dropbox.Client, config *Config, logger *slog.Logger) (err error) {
	filters, err := config.Filters()
	if err != nil {
		return err
	}

	options := []dropbox.Option{dropbox.WithLogger(logger)}

	var run *storage.Run
	var stats dropbox.Stats
	if config.Storage.Enabled() {
		var store storage.Store
		if store, err = storage.Open(config.Storage); err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer func() {
			err = errors.Join(err, store.Close())
		}()

		if run, err = store.StartRun(ctx, toolName, remoteRoot(config.Sync.Root), config.Sync.Path); err != nil {
			return fmt.Errorf("starting run: %w", err)
		}
		defer func() {
			run.Succeeded, run.Failed = stats.Downloaded, stats.Failed
			if fErr := store.FinishRun(context.Background(), run); fErr != nil {
				err = errors.Join(err, fmt.Errorf("finishing run: %w", fErr))
			}
		}()

		options = append(options, dropbox.WithReporter(ledgerReporter(ctx, store, run, logger)))
		logger.Info("recording run", slog.String("run", run.ID.String()), slog.String("driver", config.Storage.Driver))
	}

	syncer := dropbox.NewSyncer(client, dropbox.Options{
		Root:        config.Sync.Root,
		Destination: config.Sync.Path,
		Flat:        config.Sync.Flat,
		DryRun:      config.Sync.DryRun,
		Manifest:    config.Sync.Manifest,
		Filters:     filters,
	}, options...)

	stats, err = syncer.Run(ctx)
	if err != nil {
		return fmt.Errorf("syncing %s: %w", remoteRoot(config.Sync.Root), err)
	}

	if stats.Failed > 0 {
		logger.Warn("some entries failed to sync",
			slog.Int("failed", stats.Failed),
			slog.String("downloaded", humanize.Comma(int64(stats.Downloaded))))
	}

	return nil
}

func ledgerReporter(ctx context.Context, store storage.Store, run *storage.Run, logger *slog.Logger) func(dropbox.Report) {
	return func(r dropbox.Report) {
		item := &storage.Item{
			RunID:     run.ID,
			Path:      r.Entry.Path,
			Status:    status(r),
			Bytes:     r.Bytes,
			Duration:  r.Duration,
			Timestamp: time.Now().UTC(),
		}
		if r.LocalPath != "" && r.Action != dropbox.ActionFail {
			item.Outputs = []string{r.LocalPath}
		}
		if r.Err != nil {
			item.ErrorKind = KindDropboxError
			if fsutil.IsIOError(r.Err) {
				item.ErrorKind = KindIOError
			}
			item.Message = r.Err.Error()
		}

		if err := store.RecordItem(ctx, item); err != nil {
			logger.Error(fmt.Sprintf("recording %s: %s", r.Entry.Path, err))
		}
	}
}

func status(r dropbox.Report) string {
	switch {
	case r.Action == dropbox.ActionFail:
		return storage.StatusFailed
	case r.Action == dropbox.ActionSkip:
		return storage.StatusSkipped
	case r.DryRun:
		return storage.StatusDryRun
	default:
		return storage.StatusOK
	}
}

func remoteRoot(root string) string {
	if root == "" {
		return "/"
	}
	return root
}
