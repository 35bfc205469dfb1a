package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fits"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/storage"
)

// ErrOutputCollision is returned for a file whose outputs would replace
// those of an earlier file in the same batch, such as a/x.sps and b/x.sps in
// a recursive run, or x.SPS and x.sps on a case-insensitive file system.
var ErrOutputCollision = fmt.Errorf("output collision: %w", fits.ErrDestinationExists)

// Summary aggregates the results of a batch.
type Summary struct {
	Succeeded int
	Failed    int
	Warnings  int
	Errors    []error

	// Set when the batch stopped before dispatching every file.
	Interrupted error
}

// Err returns the joined per-file errors, or nil when every file converted.
func (s *Summary) Err() error {
	var err error
	if s.Failed > 0 {
		err = fmt.Errorf("%d of %d files failed: %w", s.Failed, s.Failed+s.Succeeded, errors.Join(s.Errors...))
	}
	return errors.Join(err, s.Interrupted)
}

// WithWorkers sets the number of files converted concurrently.
func WithWorkers(n int) func(*Batch) {
	return func(b *Batch) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithLedger records every result against run in store.
func WithLedger(store storage.Store, run *storage.Run) func(*Batch) {
	return func(b *Batch) {
		b.store = store
		b.run = run
	}
}

// Batch converts files with a bounded pool of workers. Each worker owns a
// file's whole pipeline; results are collected by a single goroutine.
type Batch struct {
	converter *Converter
	workers   int

	logger *slog.Logger
	store  storage.Store
	run    *storage.Run

	wg sync.WaitGroup
}

// NewBatch creates a new Batch
func NewBatch(converter *Converter, logger *slog.Logger, options ...func(*Batch)) *Batch {
	b := Batch{
		converter: converter,
		workers:   1,
		logger:    logger,
	}

	for _, option := range options {
		option(&b)
	}

	return &b
}

// Run converts paths and returns once every dispatched file has finished.
// Cancelling ctx stops dispatching; files already in flight complete.
func (b *Batch) Run(ctx context.Context, paths []string) *Summary {
	jobs := make(chan string)
	results := make(chan Result, b.workers)
	summary := &Summary{}
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		b.handleResults(results, summary)
	}()

	for range b.workers {
		b.wg.Add(1)
		go b.convert(jobs, results)
	}

	claimed := make(map[string]string, len(paths))
	for _, path := range paths {
		key := strings.ToLower(b.converter.stem(path))
		if first, ok := claimed[key]; ok {
			results <- Result{Path: path, Err: fmt.Errorf("%w: outputs of %s", ErrOutputCollision, first)}
			continue
		}
		claimed[key] = path

		if !b.dispatch(ctx, jobs, path) {
			b.logger.Warn("conversion interrupted, waiting for files in progress")
			summary.Interrupted = ctx.Err()
			break
		}
	}
	close(jobs)

	b.wg.Wait()
	close(results)
	<-collected

	return summary
}

func (b *Batch) dispatch(ctx context.Context, jobs chan<- string, path string) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case jobs <- path:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *Batch) convert(jobs <-chan string, results chan<- Result) {
	defer b.wg.Done()

	for path := range jobs {
		// A file in flight is never cancelled.
		results <- b.converter.Convert(context.Background(), path)
	}
}

func (b *Batch) handleResults(results <-chan Result, summary *Summary) {
	for res := range results {
		for _, w := range res.Warnings {
			b.logger.Warn(w.Error(), slog.String("file", res.Path))
		}
		summary.Warnings += len(res.Warnings)

		if res.Err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Errorf("%s: %w", res.Path, res.Err))
			b.logger.Error("conversion failed",
				slog.String("file", res.Path),
				slog.String("kind", Classify(res.Err)),
				slog.String("error", res.Err.Error()))
		} else {
			summary.Succeeded++
			b.logger.Info("converted",
				slog.String("file", res.Path),
				slog.Int("sweeps", res.Sweeps),
				slog.Int("channels", res.Channels),
				slog.String("size", humanize.Bytes(uint64(res.Bytes))),
				slog.Duration("took", res.Duration))
		}

		if err := b.record(res); err != nil {
			b.logger.Error(err.Error())
		}
	}
}

func (b *Batch) record(res Result) error {
	if b.store == nil {
		return nil
	}

	item := &storage.Item{
		RunID:     b.run.ID,
		Path:      res.Path,
		Status:    storage.StatusOK,
		Sweeps:    res.Sweeps,
		Channels:  res.Channels,
		Outputs:   res.Outputs,
		Bytes:     res.Bytes,
		Duration:  res.Duration,
		Timestamp: time.Now().UTC(),
	}
	if res.Err != nil {
		item.Status = storage.StatusFailed
		item.ErrorKind = Classify(res.Err)
		item.Message = res.Err.Error()
	}

	if err := b.store.RecordItem(context.Background(), item); err != nil {
		return fmt.Errorf("recording %s: %w", res.Path, err)
	}
	return nil
}
