package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/dropbox"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/storage"
)

type fakeClient struct {
	folders map[string][]dropbox.Entry
	content map[string]string
	listErr error
}

func (c *fakeClient) ListFolder(_ context.Context, path string) ([]dropbox.Entry, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.folders[path], nil
}

func (c *fakeClient) Download(_ context.Context, path string) (io.ReadCloser, error) {
	content, ok := c.content[path]
	if !ok {
		return nil, errors.New("path/not_found")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		folders: map[string][]dropbox.Entry{
			"": {
				{Name: "2024", Path: "/2024", Folder: true},
				{Name: "a.sps", Path: "/a.sps", Size: 3},
				{Name: "notes.txt", Path: "/notes.txt", Size: 2},
				{Name: "lost.sps", Path: "/lost.sps", Size: 1},
			},
			"/2024": {
				{Name: "b.sps", Path: "/2024/b.sps", Size: 1},
			},
		},
		content: map[string]string{
			"/a.sps":      "AAA",
			"/notes.txt":  "NN",
			"/2024/b.sps": "B",
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func syncConfig(t *testing.T) *Config {
	t.Helper()

	c := NewConfig()
	c.Token = "token"
	c.Sync.Path = t.TempDir()
	c.Sync.Include = []string{"sps"}
	c.Storage.Path = filepath.Join(t.TempDir(), "ledger.db")
	require.NoError(t, c.Validate())
	return c
}

func TestRunSync_Ledger(t *testing.T) {
	ctx := context.Background()
	config := syncConfig(t)

	require.NoError(t, runSync(ctx, newFakeClient(), config, discardLogger()))

	assert.FileExists(t, filepath.Join(config.Sync.Path, "a.sps"))
	assert.FileExists(t, filepath.Join(config.Sync.Path, "2024", "b.sps"))
	assert.NoFileExists(t, filepath.Join(config.Sync.Path, "notes.txt"))

	store := storage.NewSqliteStore(config.Storage.Path)
	t.Cleanup(func() { _ = store.Close() })

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, toolName, runs[0].Tool)
	assert.Equal(t, "/", runs[0].Source)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Equal(t, 1, runs[0].Failed)

	items, err := store.Items(ctx, runs[0].ID)
	require.NoError(t, err)

	statuses := map[string]string{}
	for _, item := range items {
		statuses[item.Path] = item.Status
		if item.Path == "/lost.sps" {
			assert.Equal(t, KindDropboxError, item.ErrorKind)
			assert.Contains(t, item.Message, "not_found")
		}
	}
	assert.Equal(t, map[string]string{
		"/2024":       storage.StatusOK,
		"/2024/b.sps": storage.StatusOK,
		"/a.sps":      storage.StatusOK,
		"/notes.txt":  storage.StatusSkipped,
		"/lost.sps":   storage.StatusFailed,
	}, statuses)
}

func TestRunSync_DryRun(t *testing.T) {
	ctx := context.Background()
	config := syncConfig(t)
	config.Sync.DryRun = true
	config.Sync.Manifest = true
	config.Storage.Path = ""

	require.NoError(t, runSync(ctx, newFakeClient(), config, discardLogger()))

	entries, err := os.ReadDir(config.Sync.Path)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the manifest is written")
	assert.True(t, strings.HasPrefix(entries[0].Name(), "dbx_"))

	b, err := os.ReadFile(filepath.Join(config.Sync.Path, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "+d:2024\n+f:\tb.sps\n+f:a.sps\n+f:lost.sps\n", string(b))
}

func TestRunSync_RootListFailure(t *testing.T) {
	client := newFakeClient()
	client.listErr = errors.New("invalid_access_token")

	err := runSync(context.Background(), client, syncConfig(t), discardLogger())
	require.ErrorIs(t, err, dropbox.ErrListRoot)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, storage.StatusFailed, status(dropbox.Report{Action: dropbox.ActionFail}))
	assert.Equal(t, storage.StatusSkipped, status(dropbox.Report{Action: dropbox.ActionSkip}))
	assert.Equal(t, storage.StatusDryRun, status(dropbox.Report{Action: dropbox.ActionDownload, DryRun: true}))
	assert.Equal(t, storage.StatusOK, status(dropbox.Report{Action: dropbox.ActionCreateFolder}))
}
