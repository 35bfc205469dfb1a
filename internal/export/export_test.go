package export_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/export"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
)

func grid(t *testing.T) *spectrum.Grid {
	t.Helper()

	g, err := spectrum.NewGrid(
		[]float64{1, 2.5, 3, 4, 5, 6.25},
		spectrum.Axis{Name: spectrum.AxisFrequency, Unit: "Hz", Start: 1e6, Step: 5e5, Len: 3},
		spectrum.Axis{Name: spectrum.AxisTime, Unit: "s", Step: 1, Len: 2},
		time.Date(2024, 4, 8, 18, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return g
}

func TestNPY(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sweep"+export.NPY{}.Extension())
	require.NoError(t, export.WriteFile(dest, export.NPY{}, grid(t)))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()

	var m mat.Dense
	require.NoError(t, npyio.Read(f, &m))

	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, []float64{4, 5, 6.25}, m.RawRowView(1))
}

func TestCSV(t *testing.T) {
	testCases := []struct {
		name string
		csv  export.CSV
		want [][]string
	}{
		{
			name: "plain",
			csv:  export.CSV{},
			want: [][]string{{"1", "2.5", "3"}, {"4", "5", "6.25"}},
		},
		{
			name: "with header",
			csv:  export.CSV{Header: true},
			want: [][]string{{"1e+06", "1.5e+06", "2e+06"}, {"1", "2.5", "3"}, {"4", "5", "6.25"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "sweep"+tc.csv.Extension())
			require.NoError(t, export.WriteFile(dest, tc.csv, grid(t)))

			f, err := os.Open(dest)
			require.NoError(t, err)
			defer f.Close()

			records, err := csv.NewReader(f).ReadAll()
			require.NoError(t, err)
			assert.Equal(t, tc.want, records)
		})
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "missing", "sweep.csv")

	err := export.WriteFile(dest, export.CSV{}, grid(t))
	require.Error(t, err)
	assert.True(t, fsutil.IsIOError(err))
}
