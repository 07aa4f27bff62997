// Package tail reads the lines appended to a file since a known offset.
package tail

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
)

// DefaultMaxBatchBytes bounds how much one read consumes.
const DefaultMaxBatchBytes = 4 << 20

// Line is one complete line without its terminator. End is the file
// offset just past the terminating newline.
type Line struct {
	Text []byte
	End  int64
}

// Batch is the result of one incremental read.
type Batch struct {
	lines []Line

	// Offset is the new high-water mark: the end of the last complete
	// line consumed. A trailing fragment without a newline is left for
	// the next read.
	Offset int64

	// More is set when the read stopped at the byte cap with complete
	// lines still unread.
	More bool

	// Truncated is set when the file was shorter than the previous offset
	// or had been replaced, and reading restarted from the beginning.
	Truncated bool

	// File identifies the file generation that was read. Pass it back on
	// the next call so a replaced file is noticed even when it has already
	// grown past the old offset. Nil when the batch came from ReadFrom.
	File os.FileInfo
}

// Lines yields the batch lines in file order.
func (b *Batch) Lines() iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for _, l := range b.lines {
			if !yield(l) {
				return
			}
		}
	}
}

// Len returns the number of lines in the batch.
func (b *Batch) Len() int {
	return len(b.lines)
}

// ReadNewLines opens path and reads the complete lines written after offset.
// prev is the File of the previous batch, or nil on the first read.
func ReadNewLines(path string, prev os.FileInfo, offset, maxBytes int64) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	replaced := prev != nil && !os.SameFile(prev, info)
	if replaced {
		offset = 0
	}
	b, err := ReadFrom(f, info.Size(), offset, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	b.File = info
	if replaced {
		b.Truncated = true
	}
	return b, nil
}

// Size reports the current length of the file at path.
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadFrom reads complete lines from r between offset and size. Only the
// first size bytes are considered so bytes appended during the read wait
// for the next call. Empty lines are consumed but not returned.
func ReadFrom(r io.ReaderAt, size, offset, maxBytes int64) (*Batch, error) {
	if offset < 0 {
		return nil, errors.New("negative offset")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBatchBytes
	}

	b := &Batch{Offset: offset}
	if size < offset {
		b.Truncated = true
		b.Offset = 0
	}
	if size == b.Offset {
		return b, nil
	}

	start := b.Offset
	br := bufio.NewReader(io.NewSectionReader(r, start, size-start))
	for {
		raw, err := br.ReadBytes('\n')
		if err == io.EOF {
			// No terminator yet; the writer is mid-append.
			break
		}
		if err != nil {
			return nil, err
		}
		b.Offset += int64(len(raw))

		text := bytes.TrimRight(raw, "\r\n")
		if len(bytes.TrimSpace(text)) > 0 {
			b.lines = append(b.lines, Line{Text: text, End: b.Offset})
		}

		if b.Offset-start >= maxBytes {
			b.More = b.Offset < size
			break
		}
	}
	return b, nil
}
