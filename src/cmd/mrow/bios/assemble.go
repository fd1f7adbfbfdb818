// Package bios assembles legacy BIOS boot images from two compiled stages:
// a one sector stage 1 holding the MBR and the stage 2 it loads from the
// sectors following it.
package bios

import (
	"fmt"
	"math"

	"github.com/mrow-os/mrow/src/cmd/mrow/mbr"
	"github.com/pkg/errors"
)

// ErrEmptyStage2 is returned when stage 2 has no bytes.
var ErrEmptyStage2 = errors.New("stage 2 is empty")

// UnalignedStage2SizeError is returned when stage 2 does not fill whole
// sectors.
type UnalignedStage2SizeError struct {
	Len int
}

func (e *UnalignedStage2SizeError) Error() string {
	return fmt.Sprintf("stage 2 is %d bytes, not a multiple of %d", e.Len, mbr.SectorSize)
}

// Stage2TooLargeError is returned when the sector count of stage 2 does
// not fit the partition table.
type Stage2TooLargeError struct {
	Sectors uint64
}

func (e *Stage2TooLargeError) Error() string {
	return fmt.Sprintf("stage 2 spans %d sectors, more than a partition entry can describe", e.Sectors)
}

// InvalidStage1SizeError is returned when stage 1 is not exactly one
// sector.
type InvalidStage1SizeError struct {
	Len int
}

func (e *InvalidStage1SizeError) Error() string {
	return fmt.Sprintf("stage 1 is %d bytes, must be exactly %d", e.Len, mbr.SectorSize)
}

// Stage2Sectors validates stage 2 and returns its length in sectors.
func Stage2Sectors(stage2 []byte) (uint32, error) {
	n := len(stage2)
	if n == 0 {
		return 0, ErrEmptyStage2
	}
	if n%mbr.SectorSize != 0 {
		return 0, &UnalignedStage2SizeError{Len: n}
	}
	sectors := uint64(n / mbr.SectorSize)
	if sectors > math.MaxUint32 {
		return 0, &Stage2TooLargeError{Sectors: sectors}
	}
	return uint32(sectors), nil
}

// PatchBootEntry points the first partition entry at the stage 2 sectors
// that follow the MBR and marks it bootable. Earlier values are replaced.
func PatchBootEntry(rec *mbr.MasterBootRecord, sectors uint32) {
	e := rec.Entry(0)
	e.SetBootable(true)
	e.SetStartLBA(1)
	e.SetSectorLen(sectors)
}

// Assemble returns a new image made of stage 1, with its boot entry
// patched, followed by stage 2. Neither input is modified.
func Assemble(stage1, stage2 []byte) ([]byte, error) {
	sectors, err := Stage2Sectors(stage2)
	if err != nil {
		return nil, err
	}
	if len(stage1) != mbr.SectorSize {
		return nil, &InvalidStage1SizeError{Len: len(stage1)}
	}

	image := make([]byte, len(stage1)+len(stage2))
	copy(image, stage1)
	rec, err := mbr.FromBytes(image)
	if err != nil {
		return nil, err
	}
	PatchBootEntry(rec, sectors)
	copy(image[len(stage1):], stage2)
	return image, nil
}
