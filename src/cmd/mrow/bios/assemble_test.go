package bios

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mrow-os/mrow/src/cmd/mrow/mbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage1Fixture() []byte {
	b := bytes.Repeat([]byte{0x90}, mbr.SectorSize)
	b[510], b[511] = 0x55, 0xaa
	return b
}

func TestAssemble(t *testing.T) {
	stage1 := stage1Fixture()
	orig := append([]byte{}, stage1...)
	stage2 := bytes.Repeat([]byte{0xcc}, 1024)

	image, err := Assemble(stage1, stage2)
	require.NoError(t, err)
	require.Len(t, image, 1536)
	assert.Equal(t, orig, stage1, "stage 1 must not be modified")
	assert.Equal(t, stage2, image[512:])

	rec, err := mbr.FromBytes(image)
	require.NoError(t, err)
	e := rec.Entry(0)
	assert.True(t, e.IsBootable())
	assert.Equal(t, uint32(1), e.StartLBA())
	assert.Equal(t, uint32(2), e.SectorLen())
	assert.True(t, rec.HasBootSignature())
	// only the first partition entry changes
	assert.Equal(t, orig[:446], image[:446])
	assert.Equal(t, orig[462:512], image[462:512])
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name   string
		stage1 []byte
		stage2 []byte
		check  func(t *testing.T, err error)
	}{
		{
			name:   "empty stage 2",
			stage1: stage1Fixture(),
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrEmptyStage2), "got %v", err)
			},
		},
		{
			name:   "empty stage 2 wins over bad stage 1",
			stage1: []byte{1},
			stage2: []byte{},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrEmptyStage2), "got %v", err)
			},
		},
		{
			name:   "513 bytes",
			stage1: stage1Fixture(),
			stage2: make([]byte, 513),
			check: func(t *testing.T, err error) {
				var e *UnalignedStage2SizeError
				require.True(t, errors.As(err, &e), "got %v", err)
				assert.Equal(t, 513, e.Len)
			},
		},
		{
			name:   "short stage 1",
			stage1: make([]byte, 446),
			stage2: make([]byte, 512),
			check: func(t *testing.T, err error) {
				var e *InvalidStage1SizeError
				require.True(t, errors.As(err, &e), "got %v", err)
				assert.Equal(t, 446, e.Len)
			},
		},
		{
			name:   "long stage 1",
			stage1: make([]byte, 1024),
			stage2: make([]byte, 512),
			check: func(t *testing.T, err error) {
				var e *InvalidStage1SizeError
				require.True(t, errors.As(err, &e), "got %v", err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := append([]byte{}, tt.stage1...)
			image, err := Assemble(tt.stage1, tt.stage2)
			require.Error(t, err)
			assert.Nil(t, image)
			assert.Equal(t, orig, tt.stage1)
			tt.check(t, err)
		})
	}
}

func TestStage2Sectors(t *testing.T) {
	tests := []struct {
		len  int
		want uint32
		ok   bool
	}{
		{0, 0, false},
		{1, 0, false},
		{511, 0, false},
		{512, 1, true},
		{513, 0, false},
		{1024, 2, true},
		{64 * 1024, 128, true},
	}
	for _, tt := range tests {
		got, err := Stage2Sectors(make([]byte, tt.len))
		if !tt.ok {
			assert.Error(t, err, "len %d", tt.len)
			continue
		}
		require.NoError(t, err, "len %d", tt.len)
		assert.Equal(t, tt.want, got, "len %d", tt.len)
	}
}

func TestPatchBootEntryOverwrites(t *testing.T) {
	var rec mbr.MasterBootRecord
	rec.Entry(0).SetFlags(0x01)
	rec.Entry(1).SetSectorLen(99)

	PatchBootEntry(&rec, 7)
	PatchBootEntry(&rec, 3)

	e := rec.Entry(0)
	assert.Equal(t, uint32(3), e.SectorLen())
	assert.Equal(t, uint32(1), e.StartLBA())
	assert.Equal(t, uint8(0x81), e.Flags())
	assert.Equal(t, uint32(99), rec.Entry(1).SectorLen())
}
