package objcopy

import (
	"context"
	"io"
	"os"

	"github.com/mrow-os/mrow/src/cmd/mrow/runner"
	"github.com/pkg/errors"
)

// External drives an objcopy binary from the toolchain instead of
// extracting in process.
type External struct {
	// Command is the objcopy executable, usually llvm-objcopy from the
	// rust sysroot.
	Command      string
	Input        string
	InputFormat  string
	Output       string
	OutputFormat string
}

// Cmd returns the invocation without running it.
func (e External) Cmd() runner.Cmd {
	var args []string
	if e.InputFormat != "" {
		args = append(args, "-I", e.InputFormat)
	}
	if e.OutputFormat != "" {
		args = append(args, "-O", e.OutputFormat)
	}
	args = append(args, e.Input, e.Output)
	return runner.Cmd{Path: e.Command, Args: args}
}

// Exec runs the objcopy binary, forwarding its output to stdout and stderr.
func (e External) Exec(ctx context.Context, stdout, stderr io.Writer) error {
	status, err := runner.Run(ctx, e.Cmd(), nil, stdout, stderr)
	if err != nil {
		return err
	}
	if !status.Success() {
		return errors.Errorf("%s returned with status %v", e.Command, status)
	}
	return nil
}

// Run executes objcopy and returns the content of the output file.
func (e External) Run(ctx context.Context, stdout, stderr io.Writer) ([]byte, error) {
	if err := e.Exec(ctx, stdout, stderr); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(e.Output)
	if err != nil {
		return nil, errors.Wrap(err, "reading objcopy output")
	}
	return b, nil
}
