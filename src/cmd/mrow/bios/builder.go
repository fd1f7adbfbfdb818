package bios

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	gzip "github.com/klauspost/pgzip"
	"github.com/mrow-os/mrow/src/cmd/mrow/buildvar"
	"github.com/mrow-os/mrow/src/cmd/mrow/environ"
	"github.com/mrow-os/mrow/src/cmd/mrow/mbr"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ImageName is the file name of the assembled image in the build directory.
const ImageName = "bios-boot.bin"

// StageError tags a failure with the stage it happened in.
type StageError struct {
	Stage int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Builder builds both stages concurrently and assembles them.
type Builder struct {
	Stages StageBuilder
	Stage1 Stage
	Stage2 Stage
	// Logs are duplicated for every stage.
	Logs environ.LogFiles
	// RandomDiskSignature stamps a fresh disk signature into the MBR.
	RandomDiskSignature bool
}

// NewBuilder returns a builder compiling the stage packages with t.
func NewBuilder(t *Toolchain, stage1, stage2 string, logs environ.LogFiles) *Builder {
	return &Builder{
		Stages: t,
		Stage1: Stage{Index: 1, Package: stage1},
		Stage2: Stage{Index: 2, Package: stage2},
		Logs:   logs,
	}
}

// stage2Hint returns the stage 2 sector count stage 1 is compiled with,
// from its compiler environment or else from ours.
func (b *Builder) stage2Hint() (uint16, error) {
	if v, ok := b.Stage1.Env[buildvar.Stage2Size]; ok {
		n, err := buildvar.ParseUint16(v)
		if err != nil {
			return 0, errors.Wrap(err, buildvar.Stage2Size)
		}
		return n, nil
	}
	n, _, err := buildvar.LookupUint16(buildvar.Stage2Size)
	return n, err
}

// Build compiles both stages and returns the assembled image. Every stage
// is waited for. If any stage fails the error is a *multierror.Error of
// *StageError values and no image is returned.
func (b *Builder) Build(ctx context.Context) ([]byte, error) {
	hint, err := b.stage2Hint()
	if err != nil {
		return nil, err
	}

	stages := []Stage{b.Stage1, b.Stage2}
	var (
		wg      sync.WaitGroup
		outputs = make([][]byte, len(stages))
		errs    = make([]error, len(stages))
	)
	for i, st := range stages {
		wg.Add(1)
		go func(i int, st Stage) {
			defer wg.Done()
			logs, err := b.Logs.Dup()
			if err != nil {
				errs[i] = err
				return
			}
			defer logs.Close()
			outputs[i], errs[i] = b.Stages.BuildStage(ctx, st, logs)
		}(i, st)
	}
	wg.Wait()

	var result *multierror.Error
	for i, err := range errs {
		if err != nil {
			result = multierror.Append(result, &StageError{Stage: stages[i].Index, Err: err})
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	stage1, stage2 := outputs[0], outputs[1]
	image, err := Assemble(stage1, stage2)
	if err != nil {
		return nil, err
	}
	sectors := uint32(len(stage2) / mbr.SectorSize)
	if hint != 0 && uint32(hint) != sectors {
		log.Warnf("stage 1 was built for %d stage 2 sectors, stage 2 has %d", hint, sectors)
	}

	rec, err := mbr.FromBytes(image)
	if err != nil {
		return nil, err
	}
	if b.RandomDiskSignature {
		id := uuid.New()
		rec.SetUniqueID(binary.LittleEndian.Uint32(id[:4]))
	}
	if !rec.HasBootSignature() {
		log.Warnf("stage 1 ends in %#04x instead of the boot signature %#04x", rec.Signature(), mbr.BootSignature)
	}

	log.Infof("Assembled %s image, stage 2 spans %d sectors", units.HumanSize(float64(len(image))), sectors)
	return image, nil
}

// BuildAndSave builds the image and writes it to the build directory,
// along with a gzip copy when compress is set. It returns the paths
// written.
func (b *Builder) BuildAndSave(ctx context.Context, env *environ.Env, compress bool) ([]string, error) {
	image, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	return Save(image, env.BuildPath(ImageName, ""), compress)
}

// Save writes image to path, and to path.gz when compress is set.
func Save(image []byte, path string, compress bool) ([]string, error) {
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return nil, errors.Wrap(err, "writing image")
	}
	log.Infof("Wrote %s", path)
	written := []string{path}
	if !compress {
		return written, nil
	}

	gzPath := path + ".gz"
	f, err := os.Create(gzPath)
	if err != nil {
		return written, errors.Wrap(err, "creating compressed image")
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(image); err != nil {
		return written, errors.Wrap(err, "compressing image")
	}
	if err := zw.Close(); err != nil {
		return written, errors.Wrap(err, "compressing image")
	}
	if err := f.Close(); err != nil {
		return written, errors.Wrap(err, "writing compressed image")
	}
	if st, err := os.Stat(gzPath); err == nil {
		log.Infof("Wrote %s (%s)", gzPath, units.HumanSize(float64(st.Size())))
	}
	return append(written, gzPath), nil
}
