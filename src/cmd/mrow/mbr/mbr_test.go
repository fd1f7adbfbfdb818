package mbr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutOffsets(t *testing.T) {
	buf := make([]byte, SectorSize)
	rec, err := FromBytes(buf)
	require.NoError(t, err)

	rec.SetUniqueID(0x11223344)
	rec.SetReserved(0x5566)
	rec.SetSignature(BootSignature)
	e := rec.Entry(0)
	e.SetStartLBA(0xA1A2A3A4)
	e.SetSectorLen(0xB1B2B3B4)
	rec.Entry(3).SetKind(0x83)

	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, buf[440:444])
	assert.Equal(t, []byte{0x66, 0x55}, buf[444:446])
	assert.Equal(t, []byte{0xA4, 0xA3, 0xA2, 0xA1}, buf[446+8:446+12])
	assert.Equal(t, []byte{0xB4, 0xB3, 0xB2, 0xB1}, buf[446+12:446+16])
	assert.Equal(t, byte(0x83), buf[446+3*16+4])
	assert.Equal(t, []byte{0x55, 0xAA}, buf[510:512])
	assert.True(t, rec.HasBootSignature())
}

func TestUnalignedReads(t *testing.T) {
	buf := make([]byte, SectorSize)
	buf[446] = 0x80
	buf[446+8] = 1
	buf[446+12] = 2
	buf[446+16+12] = 0xff
	buf[446+16+13] = 0xff

	rec, err := FromBytes(buf)
	require.NoError(t, err)

	assert.True(t, rec.Entry(0).IsBootable())
	assert.Equal(t, uint32(1), rec.Entry(0).StartLBA())
	assert.Equal(t, uint32(2), rec.Entry(0).SectorLen())
	assert.False(t, rec.Entry(1).IsBootable())
	assert.Equal(t, uint32(0xffff), rec.Entry(1).SectorLen())
}

func TestBootableFlag(t *testing.T) {
	tests := []struct {
		name  string
		flags uint8
		want  bool
	}{
		{"zero", 0x00, false},
		{"high bit", 0x80, true},
		{"high bit with others", 0xff, true},
		{"low bits only", 0x7f, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e PartitionTableEntry
			e.SetFlags(tt.flags)
			assert.Equal(t, tt.want, e.IsBootable())
		})
	}

	var e PartitionTableEntry
	e.SetFlags(0x01)
	e.SetBootable(true)
	assert.Equal(t, uint8(0x81), e.Flags())
	e.SetBootable(false)
	assert.Equal(t, uint8(0x01), e.Flags())
}

func TestCHSPreserved(t *testing.T) {
	var e PartitionTableEntry
	copy(e[:], []byte{0, 1, 2, 3, 0x0c, 4, 5, 6})
	e.SetStartLBA(9)
	e.SetSectorLen(10)

	assert.Equal(t, [3]byte{1, 2, 3}, e.StartCHS())
	assert.Equal(t, [3]byte{4, 5, 6}, e.EndCHS())
	assert.Equal(t, uint8(0x0c), e.Kind())
}

func TestFromBytesTooShort(t *testing.T) {
	_, err := FromBytes(make([]byte, SectorSize-1))
	assert.Error(t, err)
}

func TestFromBytesAliases(t *testing.T) {
	buf := make([]byte, 2*SectorSize)
	rec, err := FromBytes(buf)
	require.NoError(t, err)

	rec.Bootstrap()[0] = 0xEB
	assert.Equal(t, byte(0xEB), buf[0])
	assert.Equal(t, make([]byte, SectorSize), buf[SectorSize:])
}

func TestEntryIndexPanics(t *testing.T) {
	var rec MasterBootRecord
	assert.Panics(t, func() { rec.Entry(4) })
	assert.Panics(t, func() { rec.Entry(-1) })
}
