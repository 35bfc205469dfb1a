// Package export writes sweep grids in formats other tools load directly.
package export

import (
	"io"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
)

// Exporter encodes a grid into a single file format.
type Exporter interface {
	// Extension is the file name suffix, including the dot.
	Extension() string
	Export(w io.Writer, grid *spectrum.Grid) error
}

// WriteFile exports grid into dest atomically.
func WriteFile(dest string, e Exporter, grid *spectrum.Grid) error {
	return fsutil.WriteFile(dest, 0o644, func(w io.Writer) error {
		return e.Export(w, grid)
	})
}
