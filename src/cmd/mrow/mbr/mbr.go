// Package mbr describes the legacy Master Boot Record as fixed-offset byte
// records.
//
// None of the multi-byte fields after the bootstrap code are naturally
// aligned, so every accessor reads and writes little-endian values at
// explicit byte offsets instead of relying on the host struct layout.
package mbr

import (
	"encoding/binary"
	"fmt"
)

const (
	// SectorSize is the size of a disk sector and of the MBR itself.
	SectorSize = 512
	// BootSignature is the value firmware expects in the last two bytes.
	BootSignature = 0xAA55

	// PartitionTableSize is the size of the four entry partition table.
	PartitionTableSize = entryLen * partitionTableLen

	bootstrapLen      = 440
	uniqueIDOff       = bootstrapLen
	reservedOff       = uniqueIDOff + 4
	partitionTableOff = reservedOff + 2
	bootSignatureOff  = partitionTableOff + PartitionTableSize
	entryLen          = 16
	partitionTableLen = 4
)

// partition table entry offsets
const (
	entryFlagsOff     = 0
	entryStartCHSOff  = 1
	entryKindOff      = 4
	entryEndCHSOff    = 5
	entryStartLBAOff  = 8
	entrySectorLenOff = 12
)

// FlagBootable marks a partition entry as active.
const FlagBootable = 0x80

// PartitionTableEntry is a 16 byte partition table record.
type PartitionTableEntry [entryLen]byte

// PartitionTable is the four contiguous entries of an MBR, without padding.
type PartitionTable [PartitionTableSize]byte

// MasterBootRecord is the 512 byte first sector of a disk.
type MasterBootRecord [SectorSize]byte

// FromBytes returns a MasterBootRecord view over the first sector of b.
// Writes through the view modify b.
func FromBytes(b []byte) (*MasterBootRecord, error) {
	if len(b) < SectorSize {
		return nil, fmt.Errorf("master boot record needs %d bytes, got %d", SectorSize, len(b))
	}
	return (*MasterBootRecord)(b[:SectorSize]), nil
}

// Flags returns the raw flag byte.
func (e *PartitionTableEntry) Flags() uint8 {
	return e[entryFlagsOff]
}

// SetFlags overwrites the raw flag byte.
func (e *PartitionTableEntry) SetFlags(flags uint8) {
	e[entryFlagsOff] = flags
}

// IsBootable reports whether the high bit of the flag byte is set.
func (e *PartitionTableEntry) IsBootable() bool {
	return e[entryFlagsOff]&FlagBootable != 0
}

// SetBootable sets or clears the bootable bit, leaving the other flag bits alone.
func (e *PartitionTableEntry) SetBootable(bootable bool) {
	if bootable {
		e[entryFlagsOff] |= FlagBootable
	} else {
		e[entryFlagsOff] &^= FlagBootable
	}
}

// StartCHS returns the raw start cylinder-head-sector bytes.
func (e *PartitionTableEntry) StartCHS() [3]byte {
	return [3]byte(e[entryStartCHSOff : entryStartCHSOff+3])
}

// EndCHS returns the raw end cylinder-head-sector bytes.
func (e *PartitionTableEntry) EndCHS() [3]byte {
	return [3]byte(e[entryEndCHSOff : entryEndCHSOff+3])
}

// Kind returns the partition type byte.
func (e *PartitionTableEntry) Kind() uint8 {
	return e[entryKindOff]
}

// SetKind sets the partition type byte.
func (e *PartitionTableEntry) SetKind(kind uint8) {
	e[entryKindOff] = kind
}

// StartLBA returns the logical block address of the first sector.
func (e *PartitionTableEntry) StartLBA() uint32 {
	return binary.LittleEndian.Uint32(e[entryStartLBAOff:])
}

// SetStartLBA sets the logical block address of the first sector.
func (e *PartitionTableEntry) SetStartLBA(lba uint32) {
	binary.LittleEndian.PutUint32(e[entryStartLBAOff:], lba)
}

// SectorLen returns the length of the partition in sectors.
func (e *PartitionTableEntry) SectorLen() uint32 {
	return binary.LittleEndian.Uint32(e[entrySectorLenOff:])
}

// SetSectorLen sets the length of the partition in sectors.
func (e *PartitionTableEntry) SetSectorLen(n uint32) {
	binary.LittleEndian.PutUint32(e[entrySectorLenOff:], n)
}

// Entry returns a view of the idx'th entry.
func (t *PartitionTable) Entry(idx int) *PartitionTableEntry {
	if idx < 0 || idx >= partitionTableLen {
		panic(fmt.Sprintf("invalid partition table index %d", idx))
	}
	return (*PartitionTableEntry)(t[idx*entryLen : (idx+1)*entryLen])
}

// Bootstrap returns the 440 bytes of boot code.
func (m *MasterBootRecord) Bootstrap() []byte {
	return m[:bootstrapLen]
}

// UniqueID returns the optional disk signature.
func (m *MasterBootRecord) UniqueID() uint32 {
	return binary.LittleEndian.Uint32(m[uniqueIDOff:])
}

// SetUniqueID sets the optional disk signature.
func (m *MasterBootRecord) SetUniqueID(id uint32) {
	binary.LittleEndian.PutUint32(m[uniqueIDOff:], id)
}

// Reserved returns the two bytes between the disk signature and the table.
func (m *MasterBootRecord) Reserved() uint16 {
	return binary.LittleEndian.Uint16(m[reservedOff:])
}

// SetReserved sets the reserved field.
func (m *MasterBootRecord) SetReserved(v uint16) {
	binary.LittleEndian.PutUint16(m[reservedOff:], v)
}

// PartitionTable returns a view of the partition table.
func (m *MasterBootRecord) PartitionTable() *PartitionTable {
	return (*PartitionTable)(m[partitionTableOff:bootSignatureOff])
}

// Entry returns a view of the idx'th partition table entry.
func (m *MasterBootRecord) Entry(idx int) *PartitionTableEntry {
	return m.PartitionTable().Entry(idx)
}

// Signature returns the boot signature.
func (m *MasterBootRecord) Signature() uint16 {
	return binary.LittleEndian.Uint16(m[bootSignatureOff:])
}

// SetSignature sets the boot signature.
func (m *MasterBootRecord) SetSignature(sig uint16) {
	binary.LittleEndian.PutUint16(m[bootSignatureOff:], sig)
}

// HasBootSignature reports whether the record ends with 0xAA55.
func (m *MasterBootRecord) HasBootSignature() bool {
	return m.Signature() == BootSignature
}
