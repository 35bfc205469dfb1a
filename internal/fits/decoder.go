package fits

import (
	"fmt"
	"io"
	"os"

	"github.com/astrogo/fitsio"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/sps"
)

// Product is a FITS file decoded back into its grid and SPS metadata.
type Product struct {
	Header *sps.Header
	Grid   *spectrum.Grid
	Bitpix int

	Scale  float64
	Offset float64

	// Set when non-finite intensities were replaced on encode.
	Sentinel    float64
	HasSentinel bool
}

// ReadFile decodes the FITS file at path.
func ReadFile(path string) (_ *Product, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fsutil.NewIOError("open", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fsutil.NewIOError("close", path, closeErr)
		}
	}()

	return Decode(f)
}

// Decode rebuilds the grid and both axes from the primary HDU alone.
func Decode(r io.Reader) (_ *Product, err error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening fits: %w", ErrEncoding, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing fits: %w", closeErr)
		}
	}()

	if len(f.HDUs()) == 0 {
		return nil, fmt.Errorf("%w: no hdu", ErrEncoding)
	}

	img, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%w: primary hdu is not an image", ErrEncoding)
	}

	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) != 2 || axes[0] <= 0 || axes[1] <= 0 {
		return nil, fmt.Errorf("%w: want a 2-D image, got axes %v", ErrEncoding, axes)
	}
	channels, sweeps := axes[0], axes[1]

	values, err := readValues(img, hdr.Bitpix(), channels*sweeps)
	if err != nil {
		return nil, err
	}

	freq, err := readAxis(hdr, 1, channels)
	if err != nil {
		return nil, err
	}
	tm, err := readAxis(hdr, 2, sweeps)
	if err != nil {
		return nil, err
	}

	dateObs, err := requireString(hdr, keyDateObs)
	if err != nil {
		return nil, err
	}
	epoch, err := parseDate(dateObs)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrEncoding, keyDateObs, err)
	}

	grid, err := spectrum.NewGrid(values, freq, tm, epoch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	p := &Product{
		Header: readHeader(hdr, channels),
		Grid:   grid,
		Bitpix: hdr.Bitpix(),
		Scale:  1,
	}
	if v, ok := cardFloat(hdr, keyScale); ok {
		p.Scale = v
	}
	if v, ok := cardFloat(hdr, keyOffset); ok {
		p.Offset = v
	}
	p.Sentinel, p.HasSentinel = cardFloat(hdr, keySentinel)

	return p, nil
}

func readValues(img fitsio.Image, bitpix, n int) ([]float64, error) {
	values := make([]float64, n)

	switch bitpix {
	case BitpixInt32:
		data := make([]int32, n)
		if err := img.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: reading image: %w", ErrEncoding, err)
		}
		if len(data) != n {
			return nil, fmt.Errorf("%w: read %d pixels, want %d", ErrEncoding, len(data), n)
		}
		for i, v := range data {
			values[i] = float64(v)
		}
	case BitpixFloat64:
		if err := img.Read(&values); err != nil {
			return nil, fmt.Errorf("%w: reading image: %w", ErrEncoding, err)
		}
		if len(values) != n {
			return nil, fmt.Errorf("%w: read %d pixels, want %d", ErrEncoding, len(values), n)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported BITPIX %d", ErrEncoding, bitpix)
	}

	return values, nil
}

func readAxis(hdr *fitsio.Header, n, length int) (spectrum.Axis, error) {
	name, err := requireString(hdr, axisKey("CTYPE", n))
	if err != nil {
		return spectrum.Axis{}, err
	}
	crval, err := requireFloat(hdr, axisKey("CRVAL", n))
	if err != nil {
		return spectrum.Axis{}, err
	}
	cdelt, err := requireFloat(hdr, axisKey("CDELT", n))
	if err != nil {
		return spectrum.Axis{}, err
	}
	crpix, ok := cardFloat(hdr, axisKey("CRPIX", n))
	if !ok {
		crpix = 1
	}
	u, _ := cardString(hdr, axisKey("CUNIT", n))

	return spectrum.Axis{
		Name:  name,
		Unit:  u,
		Start: crval + (1-crpix)*cdelt,
		Step:  cdelt,
		Len:   length,
	}, nil
}

// readHeader recovers the SPS metadata cards. Missing cards stay zero.
func readHeader(hdr *fitsio.Header, channels int) *sps.Header {
	h := &sps.Header{Channels: int16(channels)}

	h.Version, _ = cardString(hdr, keyVersion)
	h.Source, _ = cardString(hdr, keySource)
	h.Author, _ = cardString(hdr, keyAuthor)
	h.Name, _ = cardString(hdr, keyName)
	h.Location, _ = cardString(hdr, keyLocation)
	h.Latitude, _ = cardFloat(hdr, keyLat)
	h.Longitude, _ = cardFloat(hdr, keyLong)
	h.ChartMax, _ = cardFloat(hdr, keyChartMax)
	h.ChartMin, _ = cardFloat(hdr, keyChartMin)
	h.Start, _ = cardFloat(hdr, keyStart)
	h.End, _ = cardFloat(hdr, keyEnd)
	if tz, ok := cardFloat(hdr, keyTimeZone); ok {
		h.TimeZone = int16(tz)
	}

	return h
}
