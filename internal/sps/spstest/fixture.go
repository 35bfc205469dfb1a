// Package spstest builds SPS fixtures for tests.
package spstest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/sps"
)

// Notes used by Header fixtures: a 15-87 MHz sweep.
const Notes = "*SWEEP*LOWF=15000000*HIGHF=87000000*"

// Header returns a well-formed header for the given channel count, spanning
// ten minutes from 2024-04-08 18:00 UTC.
func Header(channels int) *sps.Header {
	return &sps.Header{
		Version:   "RSS 2.1",
		Start:     45390.75,
		End:       45390.75 + 10.0/1440,
		Latitude:  42.28,
		Longitude: -83.74,
		ChartMax:  4095,
		ChartMin:  0,
		TimeZone:  -4,
		Source:    "FSX-6",
		Author:    "Heliophysics MDP",
		Name:      "Ann Arbor",
		Location:  "University of Michigan",
		Channels:  int16(channels),
	}
}

// Sweeps returns n sweeps of channels samples with distinct values.
func Sweeps(n, channels int) [][]uint16 {
	sweeps := make([][]uint16, n)
	for i := range sweeps {
		sweeps[i] = make([]uint16, channels)
		for j := range sweeps[i] {
			sweeps[i][j] = uint16((i*channels + j*7) % 4096)
		}
	}
	return sweeps
}

// Encode returns the encoded bytes of a fixture file.
func Encode(t testing.TB, hdr *sps.Header, notes string, sweeps [][]uint16) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := sps.Encode(&buf, hdr, notes, sweeps); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes a fixture of n sweeps and channels samples to dir/name
// and returns its path.
func WriteFile(t testing.TB, dir, name string, n, channels int) string {
	t.Helper()

	return WriteBytes(t, dir, name, Encode(t, Header(channels), Notes, Sweeps(n, channels)))
}

// WriteBytes writes b to dir/name and returns its path.
func WriteBytes(t testing.TB, dir, name string, b []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}
