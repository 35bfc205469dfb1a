package export

import (
	"fmt"
	"io"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
)

// NPY writes the grid as a sweeps x channels float64 NumPy array.
type NPY struct{}

func (NPY) Extension() string {
	return ".npy"
}

func (NPY) Export(w io.Writer, grid *spectrum.Grid) error {
	if err := npyio.Write(w, Dense(grid)); err != nil {
		return fmt.Errorf("writing npy: %w", err)
	}
	return nil
}

// Dense returns the grid as a sweeps x channels matrix.
func Dense(grid *spectrum.Grid) *mat.Dense {
	sweeps, channels := grid.Dims()
	return mat.NewDense(sweeps, channels, grid.Values())
}
