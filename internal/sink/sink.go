// Package sink provides destinations for generated identifiers: local files
// (optionally compressed), object storage, and Redis lists.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// A Sink accepts identifiers in emission order. Close flushes anything
// buffered and commits the output. Abort releases the sink without
// committing, for runs that stop early. A Sink must not be used after
// either.
type Sink interface {
	WriteLine(line string) error
	Close() error
	Abort() error
}

// Compression is inferred from an output name's extension.
type Compression string

const (
	None Compression = ""
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
)

// CompressionFor returns the compression implied by name.
func CompressionFor(name string) Compression {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return Gzip
	case strings.HasSuffix(name, ".zst"):
		return Zstd
	default:
		return None
	}
}

// lineWriter writes newline-terminated lines through an optional compressor
// into w.
type lineWriter struct {
	buf  *bufio.Writer
	enc  io.WriteCloser // nil when uncompressed
	done bool
}

func newLineWriter(w io.Writer, c Compression) (*lineWriter, error) {
	lw := &lineWriter{}
	switch c {
	case None:
		lw.buf = bufio.NewWriterSize(w, 64*1024)
	case Gzip:
		lw.enc = gzip.NewWriter(w)
		lw.buf = bufio.NewWriterSize(lw.enc, 64*1024)
	case Zstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		lw.enc = enc
		lw.buf = bufio.NewWriterSize(enc, 64*1024)
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
	return lw, nil
}

func (lw *lineWriter) WriteLine(line string) error {
	if _, err := lw.buf.WriteString(line); err != nil {
		return err
	}
	return lw.buf.WriteByte('\n')
}

// finish flushes buffered lines and terminates the compressed stream. It
// doesn't close the underlying writer.
func (lw *lineWriter) finish() error {
	if lw.done {
		return nil
	}
	lw.done = true
	if err := lw.buf.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if lw.enc != nil {
		if err := lw.enc.Close(); err != nil {
			return fmt.Errorf("close compressor: %w", err)
		}
	}
	return nil
}

// discard abandons buffered lines. The compressor is still closed to release
// its resources; whatever it writes is thrown away with the output.
func (lw *lineWriter) discard() {
	if lw.done {
		return
	}
	lw.done = true
	if lw.enc != nil {
		_ = lw.enc.Close()
	}
}
