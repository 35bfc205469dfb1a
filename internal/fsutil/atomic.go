package fsutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// IOError is returned for any filesystem failure while producing an output
// file. It keeps the operation and path so that batch reports stay readable.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError wraps err, returning nil for a nil err.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// IsIOError reports whether err carries an *IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

// Exists reports whether path exists. Errors other than "not exist" are
// treated as existing so that callers never clobber something they cannot
// inspect.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// WriteFile writes dest atomically: the content produced by fn goes into a
// temporary file in the same directory, which is renamed over dest only when
// fn, the flush and the close all succeed. On any failure the temporary file
// is removed and dest is left untouched.
func WriteFile(dest string, perm os.FileMode, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(dest)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return NewIOError("create", dest, err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = writeBuffered(tmp, dest, fn); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return NewIOError("sync", dest, err)
	}
	if err = tmp.Close(); err != nil {
		return NewIOError("close", dest, err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return NewIOError("chmod", dest, err)
	}
	if err = os.Rename(tmpName, dest); err != nil {
		return NewIOError("rename", dest, err)
	}

	return nil
}

// writeBuffered runs fn against a buffered w. Once a write to w has failed
// the failure is reported as an *IOError, whatever fn made of it.
func writeBuffered(w io.Writer, dest string, fn func(w io.Writer) error) error {
	rw := &recordingWriter{w: w}
	bw := bufio.NewWriter(rw)
	if err := fn(bw); err != nil {
		if rw.err != nil {
			return NewIOError("write", dest, rw.err)
		}
		return err
	}
	if err := bw.Flush(); err != nil {
		return NewIOError("write", dest, err)
	}
	return nil
}

// recordingWriter keeps the first error returned by w.
type recordingWriter struct {
	w   io.Writer
	err error
}

func (r *recordingWriter) Write(p []byte) (int, error) {
	n, err := r.w.Write(p)
	if err != nil && r.err == nil {
		r.err = err
	}
	return n, err
}

// Stem returns the file name without directory and without its last extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
