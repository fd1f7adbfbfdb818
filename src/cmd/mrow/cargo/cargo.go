// Package cargo builds compiler invocations for freestanding stages.
package cargo

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mrow-os/mrow/src/cmd/mrow/runner"
	log "github.com/sirupsen/logrus"
)

// BuildStdCrates lists every crate accepted by -Z build-std.
var BuildStdCrates = []string{"std", "core", "alloc", "proc_macro", "panic_unwind", "compiler_builtins"}

// Build describes one `cargo build` of a single package.
type Build struct {
	// Command is the cargo executable.
	Command string
	Package string
	// Target is a target triple or the path to a target specification.
	Target  string
	Profile string
	// Features are passed as a single comma separated --features value.
	Features          []string
	NoDefaultFeatures bool
	AdditionalArgs    []string
	// Env holds variables set for the compiler in addition to the
	// inherited environment.
	Env map[string]string
	// Dir is the working directory, the current one if empty.
	Dir string

	BuildStd         []string
	BuildStdFeatures []string
}

// Args returns the argument list, unstable -Z flags first.
func (b Build) Args() []string {
	var args []string
	if len(b.BuildStd) > 0 {
		args = append(args, "-Z", "build-std="+strings.Join(b.BuildStd, ","))
	}
	if len(b.BuildStdFeatures) > 0 {
		args = append(args, "-Z", "build-std-features="+strings.Join(b.BuildStdFeatures, ","))
	}
	args = append(args, "build", "--package", b.Package)
	if b.Target != "" {
		args = append(args, "--target", b.Target)
	}
	if b.Profile != "" {
		args = append(args, "--profile", b.Profile)
	}
	if len(b.Features) > 0 {
		args = append(args, "--features", strings.Join(b.Features, ","))
	}
	if b.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	return append(args, b.AdditionalArgs...)
}

// Cmd returns the process to run. Environment entries are sorted so the
// invocation is stable.
func (b Build) Cmd() runner.Cmd {
	keys := make([]string, 0, len(b.Env))
	for k := range b.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, b.Env[k]))
	}
	return runner.Cmd{Path: b.Command, Args: b.Args(), Env: env, Dir: b.Dir}
}

// Run executes the build. A failing build is reported through the status,
// the error covers spawn and stream failures only.
func (b Build) Run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) (runner.ExitStatus, error) {
	log.Debugf("cargo: building %s for %s (%s)", b.Package, b.TargetName(), ProfileDir(b.Profile))
	return runner.Run(ctx, b.Cmd(), stdin, stdout, stderr)
}

// TargetName is the directory cargo uses for the target: the file stem of
// a target specification path, or the triple itself.
func (b Build) TargetName() string {
	if strings.HasSuffix(b.Target, ".json") {
		return strings.TrimSuffix(filepath.Base(b.Target), ".json")
	}
	return b.Target
}

// ProfileDir maps a profile name to its output directory.
func ProfileDir(profile string) string {
	switch profile {
	case "", "dev", "test":
		return "debug"
	case "bench":
		return "release"
	}
	return profile
}
