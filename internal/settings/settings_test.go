package settings_test

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/settings"
)

func TestLogLevel(t *testing.T) {
	var l settings.LogLevel
	require.NoError(t, l.Set("DEBUG"))
	assert.Equal(t, slog.LevelDebug, l.Level())
	assert.Equal(t, "debug", l.String())

	require.NoError(t, yaml.Unmarshal([]byte("warn"), &l))
	assert.Equal(t, slog.LevelWarn, l.Level())

	assert.Error(t, l.Set("loud"))
}

func TestLogLevel_Flag(t *testing.T) {
	var l settings.LogLevel
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&l, "log-level", "")
	require.NoError(t, fs.Parse([]string{"-log-level", "error"}))
	assert.Equal(t, slog.LevelError, l.Level())
}

func TestCommaList(t *testing.T) {
	var c settings.CommaList
	require.NoError(t, c.Set(" sps, .fits ,,txt"))
	assert.Equal(t, settings.CommaList{"sps", ".fits", "txt"}, c)
	assert.Equal(t, "sps,.fits,txt", c.String())

	var doc struct {
		A settings.CommaList `yaml:"a"`
		B settings.CommaList `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: sps,txt\nb: [sps, 'fits,npy']\n"), &doc))
	assert.Equal(t, settings.CommaList{"sps", "txt"}, doc.A)
	assert.Equal(t, settings.CommaList{"sps", "fits", "npy"}, doc.B)

	assert.Error(t, yaml.Unmarshal([]byte("a: {x: 1}\n"), &doc))
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: debug\n"), 0o644))

	var v struct {
		Level settings.LogLevel `yaml:"level"`
	}
	require.NoError(t, settings.LoadYAML(path, &v))
	assert.Equal(t, slog.LevelDebug, v.Level.Level())

	require.NoError(t, os.WriteFile(path, []byte("levle: debug\n"), 0o644))
	assert.Error(t, settings.LoadYAML(path, &v), "unknown keys are rejected")

	assert.Error(t, settings.LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"), &v))
}
