package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fullWriter struct{}

func (fullWriter) Write([]byte) (int, error) {
	return 0, syscall.ENOSPC
}

func TestWriteBuffered_WriteFailure(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, 64<<10)

	err := writeBuffered(fullWriter{}, "/out/sweep.fits", func(w io.Writer) error {
		if _, err := w.Write(payload); err != nil {
			// Encoders do not always wrap what the writer returned.
			return fmt.Errorf("writing hdu: %v", err)
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsIOError(err))
	assert.ErrorIs(t, err, syscall.ENOSPC)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.Equal(t, "/out/sweep.fits", ioErr.Path)
}

func TestWriteBuffered_FlushFailure(t *testing.T) {
	err := writeBuffered(fullWriter{}, "/out/sweep.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "small")
		return err
	})
	require.Error(t, err)
	assert.True(t, IsIOError(err))
	assert.ErrorIs(t, err, syscall.ENOSPC)
}

func TestWriteBuffered_FnError(t *testing.T) {
	boom := errors.New("boom")
	var buf bytes.Buffer

	err := writeBuffered(&buf, "/out/sweep.npy", func(io.Writer) error {
		return boom
	})
	assert.Same(t, boom, err)
	assert.False(t, IsIOError(err))
}
