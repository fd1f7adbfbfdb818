package objcopy

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// decompressSection returns the in-memory bytes of s.
func decompressSection(s *Section) ([]byte, error) {
	switch s.Compression {
	case CompressionNone, CompressionZlib, CompressionZstd:
	default:
		return nil, &UnsupportedCompressionError{Format: s.Compression, Section: s.Name}
	}
	if s.Size > math.MaxInt64 {
		return nil, errors.Wrapf(ErrLayoutOverflow, "section %q declares %d bytes", s.Name, s.Size)
	}

	raw, err := s.Content()
	if err != nil {
		return nil, err
	}

	var data []byte
	switch s.Compression {
	case CompressionNone:
		if uint64(len(raw)) != s.Size {
			return nil, errors.Wrapf(ErrCorruptObjectFile, "section %q holds %d bytes, declares %d", s.Name, len(raw), s.Size)
		}
		return raw, nil
	case CompressionZlib:
		data, err = inflate(raw, s.Size)
	case CompressionZstd:
		data, err = unzstd(raw, s.Size)
	}
	if err != nil {
		return nil, &DecompressionError{Section: s.Name, Err: err}
	}
	return data, nil
}

// minZstdWindow lets frames written with the encoder's default window
// through even when the section itself is small.
const minZstdWindow = 8 << 20

func inflate(payload []byte, size uint64) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readExactly(r, size)
}

func unzstd(payload []byte, size uint64) ([]byte, error) {
	limit := size
	if limit < minZstdWindow {
		limit = minZstdWindow
	}
	dec, err := zstd.NewReader(bytes.NewReader(payload),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(limit))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return readExactly(dec, size)
}

// readExactly reads a decompressed stream that must hold size bytes. The
// output grows as data arrives rather than trusting the declared size.
func readExactly(r io.Reader, size uint64) ([]byte, error) {
	var out bytes.Buffer
	n, err := io.CopyN(&out, r, int64(size))
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("decompressed to %d bytes, expected %d", n, size)
		}
		return nil, err
	}
	// reading past the declared size verifies the checksum and catches
	// streams that are longer than announced
	var extra [1]byte
	switch m, err := r.Read(extra[:]); {
	case m > 0:
		return nil, fmt.Errorf("decompressed to more than the expected %d bytes", size)
	case err != nil && err != io.EOF:
		return nil, err
	}
	return out.Bytes(), nil
}
