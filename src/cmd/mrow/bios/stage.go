package bios

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mrow-os/mrow/src/cmd/mrow/cargo"
	"github.com/mrow-os/mrow/src/cmd/mrow/environ"
	"github.com/mrow-os/mrow/src/cmd/mrow/objcopy"
	"github.com/mrow-os/mrow/src/cmd/mrow/runner"
	log "github.com/sirupsen/logrus"
)

// Default build-std settings for the freestanding stages.
var (
	DefaultBuildStd         = []string{"core", "compiler_builtins"}
	DefaultBuildStdFeatures = []string{"compiler-builtins-mem"}
)

// Stage is one program of the boot image.
type Stage struct {
	// Index is 1 or 2.
	Index   int
	Package string
	// Env is passed to the compiler of this stage.
	Env map[string]string
}

func (s Stage) String() string {
	return fmt.Sprintf("stage %d", s.Index)
}

// StageBuilder compiles a stage and returns its flat binary.
type StageBuilder interface {
	BuildStage(ctx context.Context, stage Stage, logs environ.LogFiles) ([]byte, error)
}

// ToolchainBuildFailedError is returned when the compiler exits
// unsuccessfully.
type ToolchainBuildFailedError struct {
	Stage  string
	Status runner.ExitStatus
}

func (e *ToolchainBuildFailedError) Error() string {
	return fmt.Sprintf("building %s failed: %v", e.Stage, e.Status)
}

// Toolchain builds stages with cargo and copies the loadable sections out
// of the resulting ELF files.
type Toolchain struct {
	Env *environ.Env
	// Target is the target triple or specification file of both stages.
	Target            string
	Profile           string
	Features          []string
	NoDefaultFeatures bool
	AdditionalArgs    []string
	BuildStd          []string
	BuildStdFeatures  []string
	// ExternalObjcopy uses the llvm-objcopy of the sysroot instead of the
	// built in extractor.
	ExternalObjcopy bool
}

// Cargo returns the compiler invocation for stage.
func (t *Toolchain) Cargo(stage Stage) cargo.Build {
	return cargo.Build{
		Command:           t.Env.Cargo,
		Package:           stage.Package,
		Target:            t.Target,
		Profile:           t.Profile,
		Features:          t.Features,
		NoDefaultFeatures: t.NoDefaultFeatures,
		AdditionalArgs:    t.AdditionalArgs,
		Env:               stage.Env,
		Dir:               t.Env.WorkspaceRoot,
		BuildStd:          t.BuildStd,
		BuildStdFeatures:  t.BuildStdFeatures,
	}
}

// BuildStage implements StageBuilder.
func (t *Toolchain) BuildStage(ctx context.Context, stage Stage, logs environ.LogFiles) ([]byte, error) {
	b := t.Cargo(stage)
	stdout, stderr := logs.Writers()

	log.Infof("Building %s (%s)", stage, stage.Package)
	status, err := b.Run(ctx, nil, stdout, stderr)
	if err != nil {
		return nil, err
	}
	if !status.Success() {
		return nil, &ToolchainBuildFailedError{Stage: stage.String(), Status: status}
	}

	path := t.Env.TargetPath(b.TargetName(), t.Profile, stage.Package)
	if t.ExternalObjcopy {
		return objcopy.External{
			Command:      t.Env.Objcopy,
			Input:        path,
			Output:       t.Env.BuildPath(stage.Package, "bin"),
			OutputFormat: "binary",
		}.Run(ctx, stdout, stderr)
	}

	obj, err := objcopy.Open(path)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	var buf bytes.Buffer
	n, err := obj.Extract(&buf, 0)
	if err != nil {
		return nil, err
	}
	log.Debugf("%s: %d bytes from %s", stage, n, path)
	return buf.Bytes(), nil
}
