package objcopy

import (
	"debug/elf"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Object is a parsed ELF object file.
type Object struct {
	file   *elf.File
	r      io.ReaderAt
	closer io.Closer
}

// Open opens and parses the ELF file at path.
func Open(path string) (*Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	o, err := NewObject(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	o.closer = f
	return o, nil
}

// NewObject parses an ELF file from r.
func NewObject(r io.ReaderAt) (*Object, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptObjectFile, err.Error())
	}
	return &Object{file: f, r: r}, nil
}

// Close releases the underlying file if the object was opened by Open.
func (o *Object) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// Sections returns every section of the object except the null section,
// in file order.
func (o *Object) Sections() ([]*Section, error) {
	var out []*Section
	for _, es := range o.file.Sections {
		if es.Type == elf.SHT_NULL {
			continue
		}
		s := &Section{
			Name:  es.Name,
			Addr:  es.Addr,
			Size:  es.Size,
			Type:  es.Type,
			Flags: es.Flags,
		}
		switch {
		case es.Type == elf.SHT_NOBITS:
			// nothing stored in the file
		case es.Flags&elf.SHF_COMPRESSED == 0:
			s.content = io.NewSectionReader(o.r, int64(es.Offset), int64(es.FileSize))
			s.contentLen = int64(es.FileSize)
		default:
			if err := o.compressedContent(es, s); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// compressedContent reads the compression header of es. debug/elf hides
// the codec of compressed sections, so it is decoded here.
func (o *Object) compressedContent(es *elf.Section, s *Section) error {
	var (
		hdrLen  int
		chType  uint32
		chSize  uint64
		byteOrd = o.file.ByteOrder
	)
	switch o.file.Class {
	case elf.ELFCLASS32:
		hdrLen = binary.Size(elf.Chdr32{})
	case elf.ELFCLASS64:
		hdrLen = binary.Size(elf.Chdr64{})
	default:
		return errors.Wrapf(ErrCorruptObjectFile, "unknown ELF class %v", o.file.Class)
	}
	if es.FileSize < uint64(hdrLen) {
		return errors.Wrapf(ErrCorruptObjectFile, "compressed section %q is shorter than its header", es.Name)
	}

	hdr := make([]byte, hdrLen)
	if _, err := o.r.ReadAt(hdr, int64(es.Offset)); err != nil {
		return errors.Wrapf(ErrCorruptObjectFile, "reading compression header of %q: %v", es.Name, err)
	}
	chType = byteOrd.Uint32(hdr[0:4])
	if o.file.Class == elf.ELFCLASS32 {
		chSize = uint64(byteOrd.Uint32(hdr[4:8]))
	} else {
		chSize = byteOrd.Uint64(hdr[8:16])
	}

	s.Compression = Compression(chType)
	s.Size = chSize
	s.content = io.NewSectionReader(o.r, int64(es.Offset)+int64(hdrLen), int64(es.FileSize)-int64(hdrLen))
	s.contentLen = int64(es.FileSize) - int64(hdrLen)
	return nil
}

// Extract writes the loadable sections of the object to w, see Extract.
func (o *Object) Extract(w io.Writer, pad byte) (int64, error) {
	sections, err := o.Sections()
	if err != nil {
		return 0, err
	}
	return Extract(w, sections, Loadable, pad)
}
