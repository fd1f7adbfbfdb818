package objcopy

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawSection struct {
	name  string
	typ   elf.SectionType
	flags elf.SectionFlag
	addr  uint32
	// data is the stored content, including any compression header
	data []byte
	// size overrides len(data) for NOBITS sections
	size uint32
}

// buildELF32 lays out a little endian i386 executable with the given
// sections followed by .shstrtab and the section header table.
func buildELF32(t *testing.T, sections []rawSection) []byte {
	t.Helper()

	const ehsize = 52
	const shentsize = 40

	shstrtab := []byte{0}
	nameOff := func(name string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(append(shstrtab, name...), 0)
		return off
	}

	var body bytes.Buffer
	headers := []elf.Section32{{}}
	for _, s := range sections {
		off := uint32(ehsize + body.Len())
		size := uint32(len(s.data))
		if s.typ == elf.SHT_NOBITS {
			size = s.size
		} else {
			body.Write(s.data)
		}
		headers = append(headers, elf.Section32{
			Name:      nameOff(s.name),
			Type:      uint32(s.typ),
			Flags:     uint32(s.flags),
			Addr:      s.addr,
			Off:       off,
			Size:      size,
			Addralign: 1,
		})
	}
	strName := nameOff(".shstrtab")
	headers = append(headers, elf.Section32{
		Name:      strName,
		Type:      uint32(elf.SHT_STRTAB),
		Off:       uint32(ehsize + body.Len()),
		Size:      uint32(len(shstrtab)),
		Addralign: 1,
	})
	body.Write(shstrtab)
	for body.Len()%4 != 0 {
		body.WriteByte(0)
	}

	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_386),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     uint32(ehsize + body.Len()),
		Ehsize:    ehsize,
		Shentsize: shentsize,
		Shnum:     uint16(len(headers)),
		Shstrndx:  uint16(len(headers) - 1),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var out bytes.Buffer
	require.NoError(t, binary.Write(&out, binary.LittleEndian, hdr))
	out.Write(body.Bytes())
	require.NoError(t, binary.Write(&out, binary.LittleEndian, headers))
	return out.Bytes()
}

func compressed32(t *testing.T, codec Compression, size int, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, elf.Chdr32{
		Type:      uint32(codec),
		Size:      uint32(size),
		Addralign: 1,
	}))
	buf.Write(payload)
	return buf.Bytes()
}

func TestObjectExtract(t *testing.T) {
	text := []byte{0xfa, 0x31, 0xc0, 0x8e, 0xd8, 0xeb, 0xfe}
	rodata := bytes.Repeat([]byte("boot"), 40)
	data := []byte{9, 9, 9, 9}

	image := buildELF32(t, []rawSection{
		{name: ".text", typ: elf.SHT_PROGBITS, flags: exec, addr: 0x7e00, data: text},
		{name: ".rodata", typ: elf.SHT_PROGBITS, flags: alloc | elf.SHF_COMPRESSED, addr: 0x7e10,
			data: compressed32(t, CompressionZlib, len(rodata), zlibCompress(t, rodata))},
		{name: ".data", typ: elf.SHT_PROGBITS, flags: alloc | elf.SHF_WRITE | elf.SHF_COMPRESSED, addr: 0x7e10 + uint32(len(rodata)),
			data: compressed32(t, CompressionZstd, len(data), zstdCompress(t, data))},
		{name: ".bss", typ: elf.SHT_NOBITS, flags: alloc | elf.SHF_WRITE, addr: 0x8000, size: 0x200},
		{name: ".comment", typ: elf.SHT_PROGBITS, data: []byte("rustc version 1.80.0\x00")},
	})

	obj, err := NewObject(bytes.NewReader(image))
	require.NoError(t, err)
	defer obj.Close()

	sections, err := obj.Sections()
	require.NoError(t, err)
	require.Len(t, sections, 6)
	assert.Equal(t, ".rodata", sections[1].Name)
	assert.Equal(t, CompressionZlib, sections[1].Compression)
	assert.Equal(t, uint64(len(rodata)), sections[1].Size)
	assert.Equal(t, CompressionZstd, sections[2].Compression)

	var out bytes.Buffer
	n, err := obj.Extract(&out, 0)
	require.NoError(t, err)

	want := append([]byte{}, text...)
	want = append(want, make([]byte, 0x10-len(text))...)
	want = append(want, rodata...)
	want = append(want, data...)
	assert.Equal(t, want, out.Bytes())
	assert.Equal(t, int64(len(want)), n)
}

func TestObjectUnsupportedCodec(t *testing.T) {
	image := buildELF32(t, []rawSection{
		{name: ".text", typ: elf.SHT_PROGBITS, flags: exec | elf.SHF_COMPRESSED, addr: 0x7e00,
			data: compressed32(t, Compression(0x42), 4, []byte{1, 2, 3, 4})},
	})
	obj, err := NewObject(bytes.NewReader(image))
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = obj.Extract(&out, 0)
	var e *UnsupportedCompressionError
	require.True(t, errors.As(err, &e), "got %v", err)
	assert.Equal(t, Compression(0x42), e.Format)
	assert.Zero(t, out.Len())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stage-1")
	require.NoError(t, os.WriteFile(path, buildELF32(t, []rawSection{
		{name: ".text", typ: elf.SHT_PROGBITS, flags: exec, addr: 0x7c00, data: []byte{0xeb, 0xfe}},
	}), 0o644))

	obj, err := Open(path)
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = obj.Extract(&out, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xeb, 0xfe}, out.Bytes())
	require.NoError(t, obj.Close())

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("#!/bin/sh\n"), 0o644))
	_, err = Open(garbage)
	assert.True(t, errors.Is(err, ErrCorruptObjectFile), "got %v", err)

	_, err = Open(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestExternal(t *testing.T) {
	e := External{
		Command:      "llvm-objcopy",
		Input:        "in.elf",
		InputFormat:  "elf32-i386",
		Output:       "out.bin",
		OutputFormat: "binary",
	}
	cmd := e.Cmd()
	assert.Equal(t, "llvm-objcopy", cmd.Path)
	assert.Equal(t, []string{"-I", "elf32-i386", "-O", "binary", "in.elf", "out.bin"}, cmd.Args)

	// cp takes the same trailing input and output operands
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.WriteFile(in, []byte("flat"), 0o644))
	got, err := External{Command: "cp", Input: in, Output: filepath.Join(dir, "out")}.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("flat"), got)

	err = External{Command: "false"}.Exec(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "returned with status")
}
