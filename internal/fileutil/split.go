package fileutil

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// SplitWriter writes a stream across numbered part files. Every part except
// the last holds exactly MaxSize bytes; a write crossing a boundary is cut
// there and continues in the next part.
type SplitWriter struct {
	name    func(part int) string
	maxSize int64

	file    *os.File
	buf     *bufio.Writer
	part    int
	size    int64
	parts   []string
	written int64
}

// NewSplitWriter creates the first part immediately. name maps a zero-based
// part index to a file path.
func NewSplitWriter(name func(part int) string, maxSize int64) (*SplitWriter, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("split writer: invalid part size %d", maxSize)
	}
	w := &SplitWriter{name: name, maxSize: maxSize}
	if err := w.open(0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *SplitWriter) Write(p []byte) (int, error) {
	if w.file == nil {
		return 0, os.ErrClosed
	}
	var n int
	for len(p) > 0 {
		// Rotate only once more data arrives so no empty trailing part is made.
		if w.size == w.maxSize {
			if err := w.rotate(); err != nil {
				return n, err
			}
		}
		chunk := p[:min(int64(len(p)), w.maxSize-w.size)]
		m, err := w.buf.Write(chunk)
		n += m
		w.size += int64(m)
		w.written += int64(m)
		if err != nil {
			return n, err
		}
		p = p[m:]
	}
	return n, nil
}

// Parts lists the files written so far, in order.
func (w *SplitWriter) Parts() []string {
	return append([]string(nil), w.parts...)
}

// Written is the total number of bytes accepted.
func (w *SplitWriter) Written() int64 {
	return w.written
}

func (w *SplitWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.closeCurrent()
	w.file = nil
	return err
}

// Abort closes the writer and removes every part it created.
func (w *SplitWriter) Abort() error {
	closeErr := w.Close()
	var errs []error
	if closeErr != nil {
		errs = append(errs, closeErr)
	}
	for _, part := range w.parts {
		if err := os.Remove(part); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *SplitWriter) rotate() error {
	if err := w.closeCurrent(); err != nil {
		return err
	}
	return w.open(w.part + 1)
}

func (w *SplitWriter) open(part int) error {
	path := w.name(part)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.buf = bufio.NewWriterSize(f, copyBufferSize)
	w.part = part
	w.size = 0
	w.parts = append(w.parts, path)
	return nil
}

func (w *SplitWriter) closeCurrent() error {
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
