package sps

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Encode writes a complete SPS file: the header with NoteLength set from
// notes, the notes, then every sweep followed by Delimiter. Sweeps are
// written as given; Encode does not check them against hdr.Channels.
func Encode(w io.Writer, hdr *Header, notes string, sweeps [][]uint16) error {
	h := *hdr
	h.NoteLength = int32(len(notes))

	b, err := h.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(b); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := bw.WriteString(notes); err != nil {
		return fmt.Errorf("writing notes: %w", err)
	}

	var word [SampleSize]byte
	for _, sweep := range sweeps {
		for _, v := range sweep {
			binary.BigEndian.PutUint16(word[:], v)
			if _, err := bw.Write(word[:]); err != nil {
				return fmt.Errorf("writing payload: %w", err)
			}
		}
		binary.BigEndian.PutUint16(word[:], Delimiter)
		if _, err := bw.Write(word[:]); err != nil {
			return fmt.Errorf("writing payload: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}
	return nil
}
