package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File writes lines to a local path or to a stream.
type File struct {
	*lineWriter
	closer io.Closer // nil for streams the File doesn't own
	path   string    // empty for streams
}

// OpenFile creates (or truncates) path and writes to it, compressing
// according to the extension. Missing parent directories are created. The
// path "-" selects stdout.
func OpenFile(path string) (*File, error) {
	if path == "-" {
		return NewStream(os.Stdout, None)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	lw, err := newLineWriter(f, CompressionFor(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{lineWriter: lw, closer: f, path: path}, nil
}

// NewStream writes to w without taking ownership of it.
func NewStream(w io.Writer, c Compression) (*File, error) {
	lw, err := newLineWriter(w, c)
	if err != nil {
		return nil, err
	}
	return &File{lineWriter: lw}, nil
}

// Close implements Sink.
func (f *File) Close() error {
	err := f.finish()
	if f.closer != nil {
		err = errors.Join(err, f.closer.Close())
		f.closer = nil
	}
	return err
}

// Abort implements Sink. A file the File created is removed, so a stopped
// run leaves no truncated output behind. Streams keep what was written.
func (f *File) Abort() error {
	if f.closer == nil {
		// Flush what the stream has so far; it can't be taken back.
		return f.finish()
	}
	f.discard()
	err := f.closer.Close()
	f.closer = nil
	if rmErr := os.Remove(f.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}
