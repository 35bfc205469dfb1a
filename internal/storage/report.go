package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Report logs every run in store, oldest first, followed by the failed
// items of the most recent run.
func Report(ctx context.Context, store Store, logger *slog.Logger) error {
	runs, err := store.Runs(ctx)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		logger.Info("ledger is empty")
		return nil
	}

	for _, run := range runs {
		attrs := []any{
			slog.String("run", run.ID.String()),
			slog.String("tool", run.Tool),
			slog.Time("start", run.StartTime),
			slog.String("source", run.Source),
			slog.String("destination", run.Destination),
			slog.Int("succeeded", run.Succeeded),
			slog.Int("failed", run.Failed),
		}
		if run.EndTime != nil {
			attrs = append(attrs, slog.Duration("took", run.EndTime.Sub(run.StartTime)))
		} else {
			attrs = append(attrs, slog.Bool("unfinished", true))
		}
		logger.Info("run", attrs...)
	}

	last := runs[len(runs)-1]
	items, err := store.Items(ctx, last.ID)
	if err != nil {
		return fmt.Errorf("listing items of run %s: %w", last.ID, err)
	}
	for _, item := range items {
		if item.Status != StatusFailed {
			continue
		}
		logger.Warn("failed item",
			slog.String("run", last.ID.String()),
			slog.String("path", item.Path),
			slog.String("kind", item.ErrorKind),
			slog.String("error", item.Message))
	}

	return nil
}
