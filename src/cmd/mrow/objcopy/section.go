package objcopy

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Compression identifies the codec a section's content is stored with.
// The values match the ELF ch_type field.
type Compression uint32

// Supported codecs.
const (
	CompressionNone Compression = 0
	CompressionZlib Compression = Compression(elf.COMPRESS_ZLIB)
	CompressionZstd Compression = Compression(elf.COMPRESS_ZSTD)
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("unknown(%d)", uint32(c))
}

// Section is a region of an object file as seen by the extractor.
type Section struct {
	Name string
	// Addr is the virtual address the section is loaded at.
	Addr uint64
	// Size is the size of the section in memory, after decompression.
	Size  uint64
	Type  elf.SectionType
	Flags elf.SectionFlag
	// Compression is the codec of the stored content.
	Compression Compression

	content    io.ReaderAt
	contentLen int64
}

// NewSection returns an uncompressed section holding data.
func NewSection(name string, addr uint64, typ elf.SectionType, flags elf.SectionFlag, data []byte) *Section {
	return &Section{
		Name:       name,
		Addr:       addr,
		Size:       uint64(len(data)),
		Type:       typ,
		Flags:      flags,
		content:    bytes.NewReader(data),
		contentLen: int64(len(data)),
	}
}

// NewCompressedSection returns a section whose content is payload
// compressed with c, decompressing to size bytes.
func NewCompressedSection(name string, addr uint64, typ elf.SectionType, flags elf.SectionFlag, c Compression, size uint64, payload []byte) *Section {
	s := NewSection(name, addr, typ, flags|elf.SHF_COMPRESSED, payload)
	s.Size = size
	s.Compression = c
	return s
}

// Content returns the stored bytes of the section, still compressed if the
// section is.
func (s *Section) Content() ([]byte, error) {
	if s.content == nil {
		return nil, errors.Wrapf(ErrCorruptObjectFile, "section %q has no content", s.Name)
	}
	buf := make([]byte, s.contentLen)
	if n, err := s.content.ReadAt(buf, 0); n != len(buf) {
		return nil, errors.Wrapf(ErrCorruptObjectFile, "reading section %q: %v", s.Name, err)
	}
	return buf, nil
}

// Loadable selects the sections that occupy memory at run time and have
// bytes in the file: allocated sections other than NOBITS ones.
func Loadable(s *Section) bool {
	return s.Flags&elf.SHF_ALLOC != 0 && s.Type != elf.SHT_NOBITS
}
