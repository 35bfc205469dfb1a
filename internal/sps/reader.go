package sps

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/spectrum"
)

// File is a fully decoded SPS file.
type File struct {
	Header *Header
	Notes  Notes
	Grid   *spectrum.Grid

	// Transform applied to raw samples while building Grid.
	Scale  float64
	Offset float64

	// Whether the payload ended with an empty end-of-file delimiter.
	TrailingMarker bool
}

// Option customises decoding.
type Option func(*options)

type options struct {
	scale    float64
	offset   float64
	low      float64
	high     float64
	hasRange bool
}

// WithScale sets the linear transform intensity = offset + scale*raw. The
// default is the identity.
func WithScale(scale, offset float64) Option {
	return func(o *options) {
		o.scale = scale
		o.offset = offset
	}
}

// WithFrequencyRange sets the frequencies (Hz) of the first and last channel,
// overriding LOWF/HIGHF from the notes.
func WithFrequencyRange(low, high float64) Option {
	return func(o *options) {
		o.low = low
		o.high = high
		o.hasRange = true
	}
}

// ReadFile opens and decodes the SPS file at path.
func ReadFile(path string, opts ...Option) (_ *File, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fsutil.NewIOError("open", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fsutil.NewIOError("close", path, closeErr)
		}
	}()

	st, err := f.Stat()
	if err != nil {
		return nil, fsutil.NewIOError("stat", path, err)
	}

	return Decode(f, st.Size(), opts...)
}

// Decode reads an SPS file of the given total size from r. Nothing is
// returned until the whole payload is validated and the grid is built.
func Decode(r io.Reader, size int64, opts ...Option) (*File, error) {
	o := options{scale: 1}
	for _, opt := range opts {
		opt(&o)
	}

	if size < HeaderSize {
		return nil, fmt.Errorf("%w: file is %d bytes, header needs %d", ErrTruncatedData, size, HeaderSize)
	}

	br := bufio.NewReader(r)

	b := make([]byte, HeaderSize)
	if _, err := io.ReadFull(br, b); err != nil {
		return nil, readError("reading header", err)
	}

	hdr := &Header{}
	if err := hdr.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	if err := hdr.Validate(); err != nil {
		return nil, err
	}

	dataOffset := int64(HeaderSize) + int64(hdr.NoteLength)
	if dataOffset > size {
		return nil, fmt.Errorf("%w: notes end at byte %d of %d", ErrTruncatedData, dataOffset, size)
	}

	noteBytes := make([]byte, hdr.NoteLength)
	if _, err := io.ReadFull(br, noteBytes); err != nil {
		return nil, readError("reading notes", err)
	}

	payload := size - dataOffset
	if payload%SampleSize != 0 {
		return nil, fmt.Errorf("%w: odd trailing byte in %d byte payload", ErrTruncatedData, payload)
	}

	raw, marker, err := readSweeps(br, int(hdr.Channels), payload/SampleSize)
	if err != nil {
		return nil, err
	}

	notes := ParseNotes(string(noteBytes))

	grid, err := buildGrid(hdr, notes, raw, o)
	if err != nil {
		return nil, err
	}

	return &File{
		Header:         hdr,
		Notes:          notes,
		Grid:           grid,
		Scale:          o.scale,
		Offset:         o.offset,
		TrailingMarker: marker,
	}, nil
}

// readSweeps reads count big-endian samples and splits them on delimiters.
// It returns the samples of all complete sweeps concatenated, and whether a
// single empty end-of-file delimiter was seen.
func readSweeps(r io.Reader, channels int, count int64) ([]uint16, bool, error) {
	var (
		samples []uint16
		current int
		sweeps  int
		marker  bool
		buf     [SampleSize]byte
	)

	// A full sweep takes channels+1 words; this is an upper bound.
	samples = make([]uint16, 0, count/int64(channels+1)*int64(channels))

	for i := int64(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, false, readError("reading payload", err)
		}

		v := binary.BigEndian.Uint16(buf[:])
		if v != Delimiter {
			if current == channels {
				return nil, false, fmt.Errorf("%w: sweep %d is longer than %d channels", ErrMalformedHeader, sweeps, channels)
			}
			samples = append(samples, v)
			current++
			continue
		}

		switch {
		case current == channels:
			sweeps++
			current = 0
		case current == 0 && i == count-1:
			marker = sweeps > 0
		default:
			return nil, false, fmt.Errorf("%w: sweep %d has %d samples, want %d", ErrMalformedHeader, sweeps, current, channels)
		}
	}

	if current != 0 {
		return nil, false, fmt.Errorf("%w: payload ends inside sweep %d (%d of %d samples)", ErrTruncatedData, sweeps, current, channels)
	}
	if sweeps == 0 {
		return nil, false, fmt.Errorf("%w: no sweeps", ErrTruncatedData)
	}

	return samples, marker, nil
}

func buildGrid(hdr *Header, notes Notes, raw []uint16, o options) (*spectrum.Grid, error) {
	channels := int(hdr.Channels)
	sweeps := len(raw) / channels

	values := make([]float64, len(raw))
	for i, v := range raw {
		values[i] = o.offset + o.scale*float64(v)
	}

	freq := spectrum.Axis{Name: spectrum.AxisChannel, Start: 0, Step: 1, Len: channels}

	low, high, ok := o.low, o.high, o.hasRange
	if !ok {
		low, high, ok = notes.FrequencyRange()
	}
	if ok {
		freq = spectrum.Axis{Name: spectrum.AxisFrequency, Unit: "Hz", Start: low, Len: channels}
		if channels > 1 {
			freq.Step = (high - low) / float64(channels-1)
		}
	}

	tm := spectrum.Axis{Name: spectrum.AxisTime, Unit: "s", Start: 0, Len: sweeps}
	if sweeps > 1 {
		tm.Step = (hdr.End - hdr.Start) * 86400 / float64(sweeps-1)
	}

	grid, err := spectrum.NewGrid(values, freq, tm, hdr.StartTime())
	if err != nil {
		return nil, fmt.Errorf("building grid: %w", err)
	}
	return grid, nil
}

func readError(op string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %w", ErrTruncatedData, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
