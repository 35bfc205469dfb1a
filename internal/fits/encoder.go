// Package fits maps SPS sweep grids onto single-HDU FITS images and reads
// them back.
package fits

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/astrogo/fitsio"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/sps"
)

// Extension of the produced files.
const Extension = ".fits"

// BITPIX values the encoder produces.
const (
	BitpixInt32   = 32
	BitpixFloat64 = -64
)

var (
	// ErrEncoding is returned when a grid cannot be represented, or a file
	// cannot be decoded back into a grid.
	ErrEncoding = errors.New("encoding error")

	// ErrDestinationExists is returned when the destination exists and
	// overwriting is disabled.
	ErrDestinationExists = errors.New("destination exists")
)

// NonFinitePolicy decides what happens to NaN and infinite intensities.
type NonFinitePolicy int

const (
	// NonFiniteError rejects grids with non-finite intensities.
	NonFiniteError NonFinitePolicy = iota

	// NonFiniteSentinel replaces them with Options.Sentinel.
	NonFiniteSentinel
)

func (p NonFinitePolicy) String() string {
	switch p {
	case NonFiniteError:
		return "error"
	case NonFiniteSentinel:
		return "sentinel"
	default:
		return fmt.Sprintf("NonFinitePolicy(%d)", int(p))
	}
}

// ParseNonFinitePolicy parses "error" or "sentinel".
func ParseNonFinitePolicy(s string) (NonFinitePolicy, error) {
	switch s {
	case "error", "":
		return NonFiniteError, nil
	case "sentinel":
		return NonFiniteSentinel, nil
	default:
		return 0, fmt.Errorf("unknown non-finite policy %q", s)
	}
}

// Options controls encoding.
type Options struct {
	Overwrite bool
	NonFinite NonFinitePolicy
	Sentinel  float64

	// Raw sample transform used to build the grid. Recorded only.
	Scale  float64
	Offset float64
}

// DefaultOptions overwrite existing files, reject non-finite intensities and
// record the identity transform.
func DefaultOptions() Options {
	return Options{
		Overwrite: true,
		NonFinite: NonFiniteError,
		Scale:     1,
	}
}

// WriteFile encodes into dest atomically. On failure dest is left as it was.
func WriteFile(dest string, hdr *sps.Header, grid *spectrum.Grid, opts Options) error {
	if !opts.Overwrite && fsutil.Exists(dest) {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}

	return fsutil.WriteFile(dest, 0o644, func(w io.Writer) error {
		return Encode(w, hdr, grid, opts)
	})
}

// Encode writes grid as the primary HDU of a FITS file: NAXIS1 is the
// frequency axis, NAXIS2 the time axis. The output depends only on its
// inputs, so repeated encodes are byte-identical.
func Encode(w io.Writer, hdr *sps.Header, grid *spectrum.Grid, opts Options) (err error) {
	values, sentinel, err := prepare(grid, opts)
	if err != nil {
		return err
	}

	sweeps, channels := grid.Dims()
	bitpix := BitpixFloat64
	if integral(values) {
		bitpix = BitpixInt32
	}

	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("creating fits: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing fits: %w", closeErr)
		}
	}()

	img := fitsio.NewImage(bitpix, []int{channels, sweeps})
	defer img.Close()

	if err := img.Header().Append(cards(hdr, grid, opts, sentinel)...); err != nil {
		return fmt.Errorf("%w: appending cards: %w", ErrEncoding, err)
	}

	switch bitpix {
	case BitpixInt32:
		data := make([]int32, len(values))
		for i, v := range values {
			data[i] = int32(v)
		}
		err = img.Write(data)
	default:
		err = img.Write(values)
	}
	if err != nil {
		return fmt.Errorf("%w: writing image: %w", ErrEncoding, err)
	}

	if err := f.Write(img); err != nil {
		return fmt.Errorf("writing hdu: %w", err)
	}
	return nil
}

// prepare applies the non-finite policy and returns the values to encode.
func prepare(grid *spectrum.Grid, opts Options) ([]float64, bool, error) {
	values := grid.Values()

	n := grid.NonFinite()
	if n == 0 {
		return values, false, nil
	}

	switch opts.NonFinite {
	case NonFiniteSentinel:
		if math.IsNaN(opts.Sentinel) || math.IsInf(opts.Sentinel, 0) {
			return nil, false, fmt.Errorf("%w: sentinel %v is not finite", ErrEncoding, opts.Sentinel)
		}
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				values[i] = opts.Sentinel
			}
		}
		return values, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %d non-finite intensities", ErrEncoding, n)
	}
}

func integral(values []float64) bool {
	for _, v := range values {
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return false
		}
	}
	return true
}

func cards(hdr *sps.Header, grid *spectrum.Grid, opts Options, sentinel bool) []fitsio.Card {
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}

	sweeps, _ := grid.Dims()
	cs := []fitsio.Card{
		{Name: keyObject, Value: object},
		{Name: keyUnit, Value: unit},
	}
	cs = append(cs, axisCards(1, grid.FrequencyAxis())...)
	cs = append(cs, axisCards(2, grid.TimeAxis())...)
	cs = append(cs,
		fitsio.Card{Name: keyDateObs, Value: formatDate(grid.Time(0)), Comment: "first sweep"},
		fitsio.Card{Name: keyDateEnd, Value: formatDate(grid.Time(sweeps - 1)), Comment: "last sweep"},
		fitsio.Card{Name: keyTimeSys, Value: timeSys},
		fitsio.Card{Name: keyVersion, Value: fitsString(hdr.Version), Comment: "SPS format version"},
		fitsio.Card{Name: keySource, Value: fitsString(hdr.Source)},
		fitsio.Card{Name: keyAuthor, Value: fitsString(hdr.Author)},
		fitsio.Card{Name: keyName, Value: fitsString(hdr.Name)},
		fitsio.Card{Name: keyLocation, Value: fitsString(hdr.Location)},
		fitsio.Card{Name: keyLat, Value: hdr.Latitude, Comment: "deg"},
		fitsio.Card{Name: keyLong, Value: hdr.Longitude, Comment: "deg"},
		fitsio.Card{Name: keyChartMax, Value: hdr.ChartMax},
		fitsio.Card{Name: keyChartMin, Value: hdr.ChartMin},
		fitsio.Card{Name: keyTimeZone, Value: int(hdr.TimeZone), Comment: "hours"},
		fitsio.Card{Name: keyStart, Value: hdr.Start, Comment: "OLE date"},
		fitsio.Card{Name: keyEnd, Value: hdr.End, Comment: "OLE date"},
		fitsio.Card{Name: keyScale, Value: scale, Comment: "intensity = RAWOFFS + RAWSCALE * raw"},
		fitsio.Card{Name: keyOffset, Value: opts.Offset},
	)
	if sentinel {
		cs = append(cs, fitsio.Card{Name: keySentinel, Value: opts.Sentinel, Comment: "replaces non-finite"})
	}
	cs = append(cs, fitsio.Card{Name: keyComment, Comment: comment})

	return cs
}

func axisCards(n int, a spectrum.Axis) []fitsio.Card {
	cs := []fitsio.Card{{Name: axisKey("CTYPE", n), Value: fitsString(a.Name)}}
	if a.Unit != "" {
		cs = append(cs, fitsio.Card{Name: axisKey("CUNIT", n), Value: fitsString(a.Unit)})
	}
	return append(cs,
		fitsio.Card{Name: axisKey("CRPIX", n), Value: 1.0},
		fitsio.Card{Name: axisKey("CRVAL", n), Value: a.Start},
		fitsio.Card{Name: axisKey("CDELT", n), Value: a.Step},
	)
}
