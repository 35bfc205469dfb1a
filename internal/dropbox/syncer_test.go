package dropbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var manifestDay = time.Date(2024, 4, 8, 12, 0, 0, 0, time.UTC)

func sampleTree() map[string]string {
	return map[string]string{
		"/a.sps":         "AAA",
		"/b.txt":         "BB",
		"/2024/c.sps":    "C",
		"/2024/04/d.sps": "DDDD",
	}
}

func runSync(t *testing.T, client Client, opts Options, extra ...Option) (Stats, []Report, error) {
	t.Helper()

	var reports []Report
	options := append([]Option{
		WithClock(func() time.Time { return manifestDay }),
		WithReporter(func(r Report) { reports = append(reports, r) }),
	}, extra...)

	stats, err := NewSyncer(client, opts, options...).Run(context.Background())
	return stats, reports, err
}

func readFile(t *testing.T, elem ...string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(elem...))
	require.NoError(t, err)
	return string(b)
}

func TestSyncer_Mirrored(t *testing.T) {
	dest := t.TempDir()
	client := newFakeClient(sampleTree())

	stats, reports, err := runSync(t, client, Options{Destination: dest, Manifest: true})
	require.NoError(t, err)

	assert.Equal(t, Stats{Folders: 2, Downloaded: 4, Bytes: 10}, stats)
	assert.Len(t, reports, 6)

	assert.Equal(t, "AAA", readFile(t, dest, "a.sps"))
	assert.Equal(t, "BB", readFile(t, dest, "b.txt"))
	assert.Equal(t, "C", readFile(t, dest, "2024", "c.sps"))
	assert.Equal(t, "DDDD", readFile(t, dest, "2024", "04", "d.sps"))

	want := "+d:2024\n" +
		"+d:\t04\n" +
		"+f:\t\td.sps\n" +
		"+f:\tc.sps\n" +
		"+f:a.sps\n" +
		"+f:b.txt\n"
	assert.Equal(t, want, readFile(t, ManifestPath(dest, manifestDay)))
	assert.Equal(t, filepath.Join(dest, "dbx_2024-04-08.out"), ManifestPath(dest, manifestDay))
}

func TestSyncer_Flat(t *testing.T) {
	dest := t.TempDir()
	client := newFakeClient(sampleTree())

	stats, _, err := runSync(t, client, Options{Destination: dest, Flat: true, Manifest: true})
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Folders)
	assert.Equal(t, 4, stats.Downloaded)

	assert.Equal(t, "DDDD", readFile(t, dest, "d.sps"))
	assert.Equal(t, "C", readFile(t, dest, "c.sps"))
	assert.NoDirExists(t, filepath.Join(dest, "2024"))

	want := "+f:\t\td.sps\n" +
		"+f:\tc.sps\n" +
		"+f:a.sps\n" +
		"+f:b.txt\n"
	assert.Equal(t, want, readFile(t, ManifestPath(dest, manifestDay)))
}

func TestSyncer_FlatDuplicateNamesDownloadOnce(t *testing.T) {
	dest := t.TempDir()
	client := newFakeClient(map[string]string{
		"/x/dup.sps": "first",
		"/y/dup.sps": "second",
	})

	stats, _, err := runSync(t, client, Options{Destination: dest, Flat: true})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, []string{"/x/dup.sps"}, client.downloads)
	assert.Equal(t, "first", readFile(t, dest, "dup.sps"))
}

func TestSyncer_SkipsExisting(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a.sps"), []byte("local"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dest, "2024"), 0o755))

	client := newFakeClient(sampleTree())

	stats, _, err := runSync(t, client, Options{Destination: dest, Manifest: true})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Folders)
	assert.Equal(t, 3, stats.Downloaded)
	assert.Equal(t, "local", readFile(t, dest, "a.sps"), "existing files are never overwritten")
	assert.NotContains(t, client.downloads, "/a.sps")

	want := "+d:\t04\n" +
		"+f:\t\td.sps\n" +
		"+f:\tc.sps\n" +
		"+f:b.txt\n"
	assert.Equal(t, want, readFile(t, ManifestPath(dest, manifestDay)))
}

func TestSyncer_SecondRunIsNoop(t *testing.T) {
	dest := t.TempDir()
	client := newFakeClient(sampleTree())

	_, _, err := runSync(t, client, Options{Destination: dest})
	require.NoError(t, err)

	stats, reports, err := runSync(t, client, Options{Destination: dest})
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Empty(t, reports)
}

func TestSyncer_ExtensionFilter(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
	}{
		{name: "include", include: []string{"SPS"}, want: []string{"a.sps"}},
		{name: "exclude", exclude: []string{".sps"}, want: []string{"b.txt"}},
		{name: "none", want: []string{"a.sps", "b.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := t.TempDir()
			client := newFakeClient(map[string]string{"/a.sps": "A", "/b.txt": "B"})

			filter, err := NewExtensionFilter(tt.include, tt.exclude)
			require.NoError(t, err)

			stats, _, err := runSync(t, client, Options{Destination: dest, Filters: []Filterer{filter}})
			require.NoError(t, err)

			assert.Equal(t, len(tt.want), stats.Downloaded)
			assert.Equal(t, 2-len(tt.want), stats.Skipped)
			for _, name := range tt.want {
				assert.FileExists(t, filepath.Join(dest, name))
			}
		})
	}
}

func TestSyncer_Probability(t *testing.T) {
	half := func() float64 { return 0.5 }

	t.Run("zero skips everything", func(t *testing.T) {
		dest := t.TempDir()
		stats, _, err := runSync(t, newFakeClient(sampleTree()), Options{
			Destination: dest,
			Filters:     []Filterer{&SampleFilter{Probability: 0, Rand: half}},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Downloaded)
		assert.Equal(t, 4, stats.Skipped)
		assert.Equal(t, 2, stats.Folders, "folders are not sampled")
	})

	t.Run("one keeps everything", func(t *testing.T) {
		dest := t.TempDir()
		stats, _, err := runSync(t, newFakeClient(sampleTree()), Options{
			Destination: dest,
			Filters:     []Filterer{&SampleFilter{Probability: 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Downloaded)
		assert.Equal(t, 0, stats.Skipped)
	})

	t.Run("draw equal to probability keeps", func(t *testing.T) {
		dest := t.TempDir()
		stats, _, err := runSync(t, newFakeClient(sampleTree()), Options{
			Destination: dest,
			Filters:     []Filterer{&SampleFilter{Probability: 0.5, Rand: half}},
		})
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Downloaded)
	})
}

func TestSyncer_DryRun(t *testing.T) {
	dest := t.TempDir()
	client := newFakeClient(sampleTree())

	stats, reports, err := runSync(t, client, Options{Destination: dest, DryRun: true, Manifest: true})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Folders)
	assert.Equal(t, 4, stats.Downloaded)
	assert.Zero(t, stats.Bytes)
	assert.Empty(t, client.downloads)

	for _, r := range reports {
		assert.True(t, r.DryRun)
	}

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dbx_2024-04-08.out", entries[0].Name())
}

func TestSyncer_ManifestDisabled(t *testing.T) {
	dest := t.TempDir()

	s := NewSyncer(newFakeClient(sampleTree()), Options{Destination: dest}, WithClock(func() time.Time { return manifestDay }))
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, ManifestPath(dest, manifestDay))
	assert.Contains(t, s.Manifest(), "+f:a.sps\n")
}

func TestSyncer_RootListFailureIsFatal(t *testing.T) {
	client := newFakeClient(sampleTree())
	client.listErr[""] = errors.New("expired_access_token")

	_, _, err := runSync(t, client, Options{Destination: t.TempDir()})
	require.ErrorIs(t, err, ErrListRoot)
	assert.ErrorContains(t, err, "expired_access_token")
}

func TestSyncer_SubfolderFailureContinues(t *testing.T) {
	dest := t.TempDir()
	client := newFakeClient(sampleTree())
	client.listErr["/2024"] = errors.New("too_many_requests")

	stats, reports, err := runSync(t, client, Options{Destination: dest})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Downloaded)
	assert.FileExists(t, filepath.Join(dest, "a.sps"))
	assert.FileExists(t, filepath.Join(dest, "b.txt"))

	var failed []Report
	for _, r := range reports {
		if r.Action == ActionFail {
			failed = append(failed, r)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "/2024", failed[0].Entry.Path)
}

func TestSyncer_DownloadFailureContinues(t *testing.T) {
	dest := t.TempDir()
	client := newFakeClient(sampleTree())
	client.downErr["/b.txt"] = errors.New("restricted_content")

	stats, _, err := runSync(t, client, Options{Destination: dest, Manifest: true})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Downloaded)
	assert.NoFileExists(t, filepath.Join(dest, "b.txt"))
	assert.NotContains(t, readFile(t, ManifestPath(dest, manifestDay)), "b.txt")
}

func TestSyncer_MissingDestination(t *testing.T) {
	_, _, err := runSync(t, newFakeClient(sampleTree()), Options{Destination: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestSyncer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSyncer(newFakeClient(sampleTree()), Options{Destination: t.TempDir()}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSyncer_Root(t *testing.T) {
	dest := t.TempDir()
	client := newFakeClient(sampleTree())

	stats, _, err := runSync(t, client, Options{Root: "/2024/", Destination: dest, Manifest: true})
	require.NoError(t, err)

	assert.Equal(t, Stats{Folders: 1, Downloaded: 2, Bytes: 5}, stats)
	assert.Equal(t, "C", readFile(t, dest, "c.sps"))
	assert.Equal(t, "DDDD", readFile(t, dest, "04", "d.sps"))
	assert.Equal(t, "+d:04\n+f:\td.sps\n+f:c.sps\n", readFile(t, ManifestPath(dest, manifestDay)))
}
