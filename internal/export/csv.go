package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
)

// CSV writes one row per sweep. With Header set, the first row holds the
// frequency (or channel index) of every column.
type CSV struct {
	Header bool
}

func (CSV) Extension() string {
	return ".csv"
}

func (c CSV) Export(w io.Writer, grid *spectrum.Grid) error {
	cw := csv.NewWriter(w)

	sweeps, channels := grid.Dims()
	record := make([]string, channels)

	if c.Header {
		for j, f := range grid.FrequencyAxis().Values() {
			record[j] = formatFloat(f)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv header: %w", err)
		}
	}

	for i := 0; i < sweeps; i++ {
		for j, v := range grid.Row(i) {
			record[j] = formatFloat(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
