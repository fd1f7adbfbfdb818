// Package objcopy turns compiled object files into flat binaries, the way
// `objcopy -O binary` does, without leaving the process.
package objcopy

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrCorruptObjectFile is returned for sections without a name or
	// without readable content.
	ErrCorruptObjectFile = errors.New("corrupt object file")
	// ErrLayoutOverflow is returned when a section end or a gap does not
	// fit in the address space.
	ErrLayoutOverflow = errors.New("section layout overflows")
)

// UnsupportedCompressionError is returned for a codec the extractor does
// not know.
type UnsupportedCompressionError struct {
	Format  Compression
	Section string
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("section %q: unsupported compression %s", e.Section, e.Format)
}

// DecompressionError is returned when a section does not decompress to
// exactly its declared size.
type DecompressionError struct {
	Section string
	Err     error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("decompressing section %q: %v", e.Section, e.Err)
}

func (e *DecompressionError) Unwrap() error {
	return e.Err
}

// OverlappingSectionsError is returned when a loadable section starts
// before the previous one ends.
type OverlappingSectionsError struct {
	Section string
	End     uint64
	Next    string
	NextAt  uint64
}

func (e *OverlappingSectionsError) Error() string {
	return fmt.Sprintf("section %q ends at %#x, after %q starts at %#x", e.Section, e.End, e.Next, e.NextAt)
}

// SectionWriteError is a sink failure while writing a section.
type SectionWriteError struct {
	Section string
	Err     error
}

func (e *SectionWriteError) Error() string {
	return fmt.Sprintf("writing section %q: %v", e.Section, e.Err)
}

func (e *SectionWriteError) Unwrap() error {
	return e.Err
}

const padChunk = 4096

// Extract writes the sections selected by keep to w in address order.
// Gaps between consecutive sections are filled with pad so that the output
// mirrors the memory layout starting at the lowest selected address.
// It returns the number of bytes written.
//
// A section is decompressed completely before anything of it is written,
// so a section that fails to decompress contributes nothing to w.
func Extract(w io.Writer, sections []*Section, keep func(*Section) bool, pad byte) (int64, error) {
	var selected []*Section
	for _, s := range sections {
		if keep(s) {
			selected = append(selected, s)
		}
	}
	// overlapping input is a precondition violation and caught below
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Addr < selected[j].Addr
	})

	var (
		total  int64
		padBuf []byte
	)
	for i, s := range selected {
		if s.Name == "" {
			return total, errors.Wrapf(ErrCorruptObjectFile, "loadable section at %#x has no name", s.Addr)
		}

		data, err := decompressSection(s)
		if err != nil {
			return total, err
		}

		end := s.Addr + s.Size
		if end < s.Addr {
			return total, errors.Wrapf(ErrLayoutOverflow, "section %q", s.Name)
		}

		var padding uint64
		if i+1 < len(selected) {
			next := selected[i+1]
			if next.Addr < end {
				return total, &OverlappingSectionsError{Section: s.Name, End: end, Next: next.Name, NextAt: next.Addr}
			}
			padding = next.Addr - end
		}

		written := uint64(len(data)) + padding
		if written < padding || written > math.MaxInt64-uint64(total) {
			return total, errors.Wrapf(ErrLayoutOverflow, "section %q", s.Name)
		}

		log.Debugf("objcopy: %s at %#x, %d bytes, %s, %d bytes padding", s.Name, s.Addr, len(data), s.Compression, padding)

		n, err := w.Write(data)
		total += int64(n)
		if err != nil {
			return total, &SectionWriteError{Section: s.Name, Err: err}
		}

		if padding > 0 && padBuf == nil {
			padBuf = bytes.Repeat([]byte{pad}, padChunk)
		}
		for padding > 0 {
			chunk := padBuf
			if padding < uint64(len(chunk)) {
				chunk = chunk[:padding]
			}
			n, err := w.Write(chunk)
			total += int64(n)
			if err != nil {
				return total, &SectionWriteError{Section: s.Name, Err: err}
			}
			padding -= uint64(n)
		}
	}
	return total, nil
}
