package sps

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// HeaderSize is the fixed size of the SPS header in bytes. The notes
	// block follows it immediately.
	HeaderSize = 156

	// SampleSize is the width of one encoded intensity sample in bytes.
	SampleSize = 2

	// Delimiter terminates every sweep in the payload.
	Delimiter uint16 = 0xFEFE
)

var (
	// ErrMalformedHeader is returned when the header (or a sweep length it
	// governs) is structurally invalid.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrTruncatedData is returned when the file ends before the declared
	// content does.
	ErrTruncatedData = errors.New("truncated data")
)

// oleEpoch is day zero of OLE automation dates.
var oleEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Header is the fixed 156-byte SPS header.
type Header struct {
	Version    string  // Format version, 10 bytes
	Start      float64 // First sweep, OLE automation date
	End        float64 // Last sweep, OLE automation date
	Latitude   float64 // Site latitude, degrees
	Longitude  float64 // Site longitude, degrees
	ChartMax   float64 // Display upper bound used by the recorder
	ChartMin   float64 // Display lower bound used by the recorder
	TimeZone   int16   // Recorder time zone offset, hours
	Source     string  // Receiver identifier, 10 bytes
	Author     string  // Observer, 20 bytes
	Name       string  // Observatory name, 20 bytes
	Location   string  // Observatory location, 40 bytes
	Channels   int16   // Samples per sweep
	NoteLength int32   // Length of the notes block in bytes
}

// field widths of the string fields
const (
	versionLen  = 10
	sourceLen   = 10
	authorLen   = 20
	nameLen     = 20
	locationLen = 40
)

// StartTime returns Start as a UTC timestamp.
func (h *Header) StartTime() time.Time {
	return FromOLE(h.Start)
}

// EndTime returns End as a UTC timestamp.
func (h *Header) EndTime() time.Time {
	return FromOLE(h.End)
}

// Validate checks the invariants that do not depend on the payload.
func (h *Header) Validate() error {
	if h.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrMalformedHeader, h.Channels)
	}
	if h.NoteLength < 0 {
		return fmt.Errorf("%w: note length %d", ErrMalformedHeader, h.NoteLength)
	}
	if !finite(h.Start) || !finite(h.End) {
		return fmt.Errorf("%w: non-finite timestamps", ErrMalformedHeader)
	}
	if h.End < h.Start {
		return fmt.Errorf("%w: end %v before start %v", ErrMalformedHeader, h.End, h.Start)
	}
	return nil
}

// MarshalBinary encodes the header into its 156-byte form. String fields
// longer than their slot are cut, shorter ones are padded with spaces.
func (h *Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)

	putString(b[0:10], h.Version)
	binary.LittleEndian.PutUint64(b[10:18], math.Float64bits(h.Start))
	binary.LittleEndian.PutUint64(b[18:26], math.Float64bits(h.End))
	binary.LittleEndian.PutUint64(b[26:34], math.Float64bits(h.Latitude))
	binary.LittleEndian.PutUint64(b[34:42], math.Float64bits(h.Longitude))
	binary.LittleEndian.PutUint64(b[42:50], math.Float64bits(h.ChartMax))
	binary.LittleEndian.PutUint64(b[50:58], math.Float64bits(h.ChartMin))
	binary.LittleEndian.PutUint16(b[58:60], uint16(h.TimeZone))
	putString(b[60:70], h.Source)
	putString(b[70:90], h.Author)
	putString(b[90:110], h.Name)
	putString(b[110:150], h.Location)
	binary.LittleEndian.PutUint16(b[150:152], uint16(h.Channels))
	binary.LittleEndian.PutUint32(b[152:156], uint32(h.NoteLength))

	return b, nil
}

// UnmarshalBinary decodes a 156-byte header. It does not validate it.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: header is %d bytes, want %d", ErrTruncatedData, len(b), HeaderSize)
	}

	h.Version = getString(b[0 : 0+versionLen])
	h.Start = math.Float64frombits(binary.LittleEndian.Uint64(b[10:18]))
	h.End = math.Float64frombits(binary.LittleEndian.Uint64(b[18:26]))
	h.Latitude = math.Float64frombits(binary.LittleEndian.Uint64(b[26:34]))
	h.Longitude = math.Float64frombits(binary.LittleEndian.Uint64(b[34:42]))
	h.ChartMax = math.Float64frombits(binary.LittleEndian.Uint64(b[42:50]))
	h.ChartMin = math.Float64frombits(binary.LittleEndian.Uint64(b[50:58]))
	h.TimeZone = int16(binary.LittleEndian.Uint16(b[58:60]))
	h.Source = getString(b[60 : 60+sourceLen])
	h.Author = getString(b[70 : 70+authorLen])
	h.Name = getString(b[90 : 90+nameLen])
	h.Location = getString(b[110 : 110+locationLen])
	h.Channels = int16(binary.LittleEndian.Uint16(b[150:152]))
	h.NoteLength = int32(binary.LittleEndian.Uint32(b[152:156]))

	return nil
}

// FromOLE converts an OLE automation date (days since 1899-12-30, fraction
// is the time of day) to a UTC timestamp with microsecond resolution.
func FromOLE(days float64) time.Time {
	us := math.Round(days * 86400e6)
	return oleEpoch.Add(time.Duration(us) * time.Microsecond)
}

// ToOLE converts a timestamp to an OLE automation date.
func ToOLE(t time.Time) float64 {
	return float64(t.Sub(oleEpoch)/time.Microsecond) / 86400e6
}

func putString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = ' '
	}
}

func getString(b []byte) string {
	return string(bytes.TrimRight(b, " \x00"))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
