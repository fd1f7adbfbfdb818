// Package environ discovers the rust toolchain and cargo workspace a boot
// image is built from.
package environ

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/mrow-os/mrow/src/cmd/mrow/cargo"
	"github.com/mrow-os/mrow/src/cmd/mrow/runner"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Package is a member of the cargo workspace.
type Package struct {
	Name         string `yaml:"name" json:"name"`
	ID           string `yaml:"id" json:"id"`
	ManifestPath string `yaml:"manifest" json:"manifest_path"`
}

// Env is the discovered build environment. It is not modified after Load.
type Env struct {
	WorkspaceRoot string    `yaml:"workspace"`
	TargetDir     string    `yaml:"target_dir"`
	BuildDir      string    `yaml:"build_dir"`
	HostTarget    string    `yaml:"host"`
	Sysroot       string    `yaml:"sysroot"`
	Cargo         string    `yaml:"cargo"`
	RustLib       string    `yaml:"rustlib"`
	Objcopy       string    `yaml:"objcopy"`
	Packages      []Package `yaml:"packages"`
}

// Options control discovery.
type Options struct {
	// Rustc is the compiler driver used to find the sysroot, "rustc" if
	// empty.
	Rustc string
	// Dir is where cargo looks for the workspace, the current directory
	// if empty.
	Dir string
	// BuildDir overrides <workspace>/build.
	BuildDir string
	// Stderr receives the diagnostics of the discovery commands.
	Stderr io.Writer
}

type metadata struct {
	WorkspaceRoot   string    `json:"workspace_root"`
	TargetDirectory string    `json:"target_directory"`
	Packages        []Package `json:"packages"`
}

// Load queries rustc and cargo for the environment.
func Load(ctx context.Context, opts Options) (*Env, error) {
	rustc := opts.Rustc
	if rustc == "" {
		rustc = "rustc"
	}

	var host, sysroot string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := output(gctx, runner.Cmd{Path: rustc, Args: []string{"-vV"}, Dir: opts.Dir}, opts.Stderr)
		if err != nil {
			return err
		}
		host, err = parseHost(out)
		return err
	})
	g.Go(func() error {
		out, err := output(gctx, runner.Cmd{Path: rustc, Args: []string{"--print", "sysroot"}, Dir: opts.Dir}, opts.Stderr)
		if err != nil {
			return err
		}
		sysroot = strings.TrimSpace(string(out))
		if sysroot == "" {
			return errors.New("rustc printed an empty sysroot")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "querying rustc")
	}

	e := &Env{
		HostTarget: host,
		Sysroot:    sysroot,
		Cargo:      filepath.Join(sysroot, "bin", "cargo"),
		RustLib:    filepath.Join(sysroot, "lib", "rustlib", host),
	}
	e.Objcopy = filepath.Join(e.RustLib, "bin", "llvm-objcopy")

	out, err := output(ctx, runner.Cmd{
		Path: e.Cargo,
		Args: []string{"metadata", "--no-deps", "--format-version", "1"},
		Dir:  opts.Dir,
	}, opts.Stderr)
	if err != nil {
		return nil, errors.Wrap(err, "querying cargo")
	}
	var md metadata
	if err := json.Unmarshal(out, &md); err != nil {
		return nil, errors.Wrap(err, "parsing cargo metadata")
	}
	if md.WorkspaceRoot == "" || md.TargetDirectory == "" {
		return nil, errors.New("cargo metadata lacks the workspace root or target directory")
	}
	e.WorkspaceRoot = md.WorkspaceRoot
	e.TargetDir = md.TargetDirectory
	e.Packages = md.Packages

	e.BuildDir = opts.BuildDir
	if e.BuildDir == "" {
		e.BuildDir = filepath.Join(e.WorkspaceRoot, "build")
	}

	log.Debugf("environment: host %s, sysroot %s, workspace %s", e.HostTarget, e.Sysroot, e.WorkspaceRoot)
	return e, nil
}

func output(ctx context.Context, c runner.Cmd, stderr io.Writer) ([]byte, error) {
	out, status, err := runner.Output(ctx, c, nil, stderr)
	if err != nil {
		return nil, err
	}
	if !status.Success() {
		return nil, errors.Errorf("%s returned with status %v", c, status)
	}
	return out, nil
}

func parseHost(verbose []byte) (string, error) {
	s := bufio.NewScanner(bytes.NewReader(verbose))
	for s.Scan() {
		if host, ok := strings.CutPrefix(s.Text(), "host:"); ok {
			if host = strings.TrimSpace(host); host != "" {
				return host, nil
			}
		}
	}
	return "", errors.New("no host target in rustc version output")
}

// Package returns the workspace member called name.
func (e *Env) Package(name string) (Package, bool) {
	for _, p := range e.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}

// TargetPath returns the path of file in the output directory of a target
// and profile.
func (e *Env) TargetPath(target, profile, file string) string {
	return filepath.Join(e.TargetDir, target, cargo.ProfileDir(profile), file)
}

// BuildPath returns the path of an output in the build directory. ext is
// appended with a dot unless empty.
func (e *Env) BuildPath(name, ext string) string {
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(e.BuildDir, name)
}
