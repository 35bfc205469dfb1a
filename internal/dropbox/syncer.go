package dropbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
)

// ErrListRoot is returned when the remote root folder cannot be listed.
var ErrListRoot = errors.New("listing remote root")

// Action is what the syncer did with an entry.
type Action string

const (
	ActionCreateFolder Action = "create-folder"
	ActionDownload     Action = "download"
	ActionSkip         Action = "skip"
	ActionFail         Action = "fail"
)

// Report describes the outcome for a single entry.
type Report struct {
	Entry     Entry
	Action    Action
	LocalPath string
	DryRun    bool
	Bytes     int64
	Duration  time.Duration
	Err       error
}

// Stats summarises a run.
type Stats struct {
	Folders    int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Options controls a sync run.
type Options struct {
	Root        string // Remote folder to mirror, "" for the root
	Destination string
	Flat        bool
	DryRun      bool
	Manifest    bool
	Filters     []Filterer
}

// Syncer downloads remote files that are missing locally. It is sequential
// and not safe for concurrent runs.
type Syncer struct {
	client Client
	opts   Options
	logger *slog.Logger
	report func(Report)
	now    func() time.Time

	local    Inventory
	manifest Manifest
	stats    Stats
}

// Option customises a Syncer.
type Option func(*Syncer)

// WithLogger sets the syncer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger.With(slog.String("component", "dropbox-sync"))
	}
}

// WithReporter registers fn to receive every entry outcome.
func WithReporter(fn func(Report)) Option {
	return func(s *Syncer) {
		s.report = fn
	}
}

// WithClock overrides the clock used to name the manifest.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// NewSyncer creates a syncer for client.
func NewSyncer(client Client, opts Options, options ...Option) *Syncer {
	s := &Syncer{
		client: client,
		opts:   opts,
		logger: discardLogger(),
		report: func(Report) {},
		now:    time.Now,
	}
	s.opts.Root = strings.TrimSuffix(opts.Root, "/")
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Run walks the remote tree from the root. Only failure to inventory the
// destination, list the remote root or write the manifest is fatal; other
// entry errors are logged and counted.
func (s *Syncer) Run(ctx context.Context) (Stats, error) {
	st, err := os.Stat(s.opts.Destination)
	if err != nil {
		return Stats{}, fsutil.NewIOError("stat", s.opts.Destination, err)
	}
	if !st.IsDir() {
		return Stats{}, fsutil.NewIOError("stat", s.opts.Destination, fmt.Errorf("not a directory"))
	}

	if s.local, err = BuildInventory(s.opts.Destination, s.opts.Flat); err != nil {
		return Stats{}, err
	}

	s.logger.Info("starting sync",
		slog.String("destination", s.opts.Destination),
		slog.Int("localEntries", len(s.local)),
		slog.Bool("flat", s.opts.Flat),
		slog.Bool("dryRun", s.opts.DryRun))

	if err = s.syncFolder(ctx, s.opts.Root, 0); err != nil {
		return s.stats, err
	}

	if s.opts.Manifest {
		dest := ManifestPath(s.opts.Destination, s.now())
		if err = s.manifest.WriteFile(dest); err != nil {
			return s.stats, fmt.Errorf("writing manifest: %w", err)
		}
		s.logger.Info("manifest written", slog.String("path", dest))
	}

	s.logger.Info("sync completed",
		slog.Group("stats",
			slog.Int("folders", s.stats.Folders),
			slog.Int("downloaded", s.stats.Downloaded),
			slog.Int("skipped", s.stats.Skipped),
			slog.Int("failed", s.stats.Failed),
			slog.String("bytes", humanize.Bytes(uint64(s.stats.Bytes)))))

	return s.stats, nil
}

// Manifest returns the manifest accumulated so far.
func (s *Syncer) Manifest() string {
	return s.manifest.String()
}

func (s *Syncer) syncFolder(ctx context.Context, remotePath string, depth int) error {
	entries, err := s.client.ListFolder(ctx, remotePath)
	if err != nil {
		if depth == 0 {
			return fmt.Errorf("%w: %w", ErrListRoot, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.fail(Report{Entry: Entry{Path: remotePath, Folder: true}, Err: err})
		return nil
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.Folder {
			s.syncSubfolder(e, depth)
			if err := s.syncFolder(ctx, e.Path, depth+1); err != nil {
				return err
			}
			continue
		}

		s.syncFile(ctx, e, depth)
	}
	return nil
}

func (s *Syncer) syncSubfolder(e Entry, depth int) {
	key := folderKey(s.relPath(e))
	if s.opts.Flat || s.local.Has(key) {
		return
	}

	local := s.localPath(e)
	if !s.opts.DryRun {
		if err := os.MkdirAll(local, 0o755); err != nil {
			s.fail(Report{Entry: e, LocalPath: local, Err: fsutil.NewIOError("mkdir", local, err)})
			return
		}
	}

	s.local.Add(key)
	s.manifest.Folder(e.Name, depth)
	s.stats.Folders++

	s.logger.Info("created folder", slog.String("name", e.Name), slog.String("path", local), slog.Bool("dryRun", s.opts.DryRun))
	s.report(Report{Entry: e, Action: ActionCreateFolder, LocalPath: local, DryRun: s.opts.DryRun})
}

func (s *Syncer) syncFile(ctx context.Context, e Entry, depth int) {
	key := remoteFileKey(e.Name, s.relPath(e), s.opts.Flat)
	if s.local.Has(key) {
		return
	}

	if ShouldIgnore(e, s.opts.Filters) {
		s.stats.Skipped++
		s.logger.Debug("skipped file", slog.String("path", e.Path))
		s.report(Report{Entry: e, Action: ActionSkip})
		return
	}

	local := s.localPath(e)
	start := time.Now()

	var written int64
	if !s.opts.DryRun {
		var err error
		if written, err = s.download(ctx, e, local); err != nil {
			s.fail(Report{Entry: e, LocalPath: local, Err: err})
			return
		}
	}

	s.local.Add(key)
	s.manifest.File(e.Name, depth)
	s.stats.Downloaded++
	s.stats.Bytes += written

	s.logger.Info("downloaded file",
		slog.String("name", e.Name),
		slog.String("path", local),
		slog.String("size", humanize.Bytes(e.Size)),
		slog.Bool("dryRun", s.opts.DryRun))
	s.report(Report{Entry: e, Action: ActionDownload, LocalPath: local, DryRun: s.opts.DryRun, Bytes: written, Duration: time.Since(start)})
}

func (s *Syncer) download(ctx context.Context, e Entry, local string) (written int64, err error) {
	content, err := s.client.Download(ctx, e.Path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cErr := content.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing download of %q: %w", e.Path, cErr)
		}
	}()

	if err = os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return 0, fsutil.NewIOError("mkdir", filepath.Dir(local), err)
	}

	err = fsutil.WriteFile(local, 0o644, func(w io.Writer) error {
		n, err := io.Copy(w, content)
		written = n
		if err != nil {
			return fmt.Errorf("reading %q: %w", e.Path, err)
		}
		return nil
	})
	return written, err
}

func (s *Syncer) localPath(e Entry) string {
	if s.opts.Flat && !e.Folder {
		return filepath.Join(s.opts.Destination, e.Name)
	}
	return filepath.Join(s.opts.Destination, filepath.FromSlash(strings.Trim(s.relPath(e), "/")))
}

// relPath returns the entry path relative to the synced root. Dropbox paths
// are case-insensitive.
func (s *Syncer) relPath(e Entry) string {
	root := s.opts.Root
	if len(e.Path) >= len(root) && strings.EqualFold(e.Path[:len(root)], root) {
		return e.Path[len(root):]
	}
	return e.Path
}

func (s *Syncer) fail(r Report) {
	r.Action = ActionFail
	s.stats.Failed++
	s.logger.Error("sync entry failed", slog.String("path", r.Entry.Path), slog.String("error", r.Err.Error()))
	s.report(r)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
