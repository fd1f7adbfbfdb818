// Package runner executes external programs with three concurrently
// serviced I/O streams.
//
// Unlike exec.Cmd.Run, a failing stream never stops the others: every copy
// and the process wait run to completion and all of their errors are
// returned together.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Stream names one of the standard streams of a child process.
type Stream string

// The three streams wired by Run.
const (
	Stdin  Stream = "stdin"
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Flusher is implemented by sinks that buffer writes.
type Flusher interface {
	Flush() error
}

// Cmd describes a process to start.
type Cmd struct {
	// Path is the program to run, looked up in PATH if it has no separator.
	Path string
	Args []string
	// Env holds KEY=VALUE pairs added on top of the current environment.
	Env []string
	// Dir is the working directory, the current one if empty.
	Dir string
}

func (c Cmd) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// ExitStatus is the way a process terminated.
type ExitStatus struct {
	// Code is the exit code, or -1 if the process was killed by a signal.
	Code int
	desc string
}

// Success reports whether the process exited with code 0.
func (s ExitStatus) Success() bool {
	return s.Code == 0
}

func (s ExitStatus) String() string {
	if s.desc != "" {
		return s.desc
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// SpawnError is returned when the process could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// StreamError is an I/O failure on one of the process streams.
type StreamError struct {
	Stream Stream
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("copying %s: %v", e.Stream, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Run starts c and copies stdin into the process while copying its output
// into stdout and stderr. A nil stdin connects the process to the null
// device; nil sinks discard output.
//
// Run returns after the process exited and all three copies finished. If
// the process could not be started the error is a *SpawnError and the
// status is meaningless. Otherwise the status is always valid and the error,
// if any, is a *multierror.Error holding every stream failure. A non-zero
// exit status is not an error.
//
// The child's stdin is closed when it exits, so a stdin source that keeps
// producing data fails on its next write. A source blocked in Read, such
// as a terminal, still holds Run until that Read returns.
func Run(ctx context.Context, c Cmd, stdin io.Reader, stdout, stderr io.Writer) (ExitStatus, error) {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Dir = c.Dir

	p, err := newPipes(cmd, stdin != nil)
	if err != nil {
		return ExitStatus{}, &SpawnError{Path: c.Path, Err: err}
	}

	log.Debugf("Executing: %v", cmd.Args)

	if err := cmd.Start(); err != nil {
		p.closeAll()
		return ExitStatus{}, &SpawnError{Path: c.Path, Err: err}
	}
	// the child holds its own copies now
	p.closeChildEnds()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
		status ExitStatus
	)
	collect := func(err error) {
		mu.Lock()
		result = multierror.Append(result, err)
		mu.Unlock()
	}

	var in *inputPipe
	if p.stdin != nil {
		in = &inputPipe{f: p.stdin}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := copyIn(in, stdin); err != nil {
				collect(&StreamError{Stream: Stdin, Err: err})
			}
		}()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		for _, err := range copyOut(stdout, p.stdout) {
			collect(&StreamError{Stream: Stdout, Err: err})
		}
	}()
	go func() {
		defer wg.Done()
		for _, err := range copyOut(stderr, p.stderr) {
			collect(&StreamError{Stream: Stderr, Err: err})
		}
	}()
	go func() {
		defer wg.Done()
		err := cmd.Wait()
		if in != nil {
			_ = in.Close()
		}
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			collect(errors.Wrap(err, "waiting for child"))
		}
		if cmd.ProcessState != nil {
			status = ExitStatus{Code: cmd.ProcessState.ExitCode(), desc: cmd.ProcessState.String()}
		}
	}()

	wg.Wait()

	log.Debugf("Executing: %v...%s", cmd.Args, status)

	return status, result.ErrorOrNil()
}

// Output runs c and returns everything it wrote to its standard output.
func Output(ctx context.Context, c Cmd, stdin io.Reader, stderr io.Writer) ([]byte, ExitStatus, error) {
	var out bytes.Buffer
	status, err := Run(ctx, c, stdin, &out, stderr)
	return out.Bytes(), status, err
}

type pipes struct {
	// parent ends
	stdin, stdout, stderr *os.File
	// child ends
	childStdin, childStdout, childStderr *os.File
}

func newPipes(cmd *exec.Cmd, withStdin bool) (*pipes, error) {
	p := &pipes{}
	var err error
	if withStdin {
		if p.childStdin, p.stdin, err = os.Pipe(); err != nil {
			return nil, err
		}
		cmd.Stdin = p.childStdin
	}
	if p.stdout, p.childStdout, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	if p.stderr, p.childStderr, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	cmd.Stdout = p.childStdout
	cmd.Stderr = p.childStderr
	return p, nil
}

func (p *pipes) closeChildEnds() {
	for _, f := range []*os.File{p.childStdin, p.childStdout, p.childStderr} {
		if f != nil {
			_ = f.Close()
		}
	}
}

func (p *pipes) closeAll() {
	p.closeChildEnds()
	for _, f := range []*os.File{p.stdin, p.stdout, p.stderr} {
		if f != nil {
			_ = f.Close()
		}
	}
}

// inputPipe is the parent end of the child's stdin. It is closed once,
// by whichever of the copy and the process wait finishes first.
type inputPipe struct {
	f    *os.File
	once sync.Once
	err  error
}

func (p *inputPipe) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

func (p *inputPipe) Close() error {
	p.once.Do(func() { p.err = p.f.Close() })
	return p.err
}

// copyIn feeds the process and closes its stdin so it sees end of file.
func copyIn(dst io.WriteCloser, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}

// copyOut moves a process output stream into its sink. Once the sink fails
// the rest of the stream is drained so the child never blocks on a full pipe.
func copyOut(dst io.Writer, src *os.File) []error {
	var errs []error
	if _, err := io.Copy(dst, src); err != nil {
		errs = append(errs, err)
		_, _ = io.Copy(io.Discard, src)
	}
	if f, ok := dst.(Flusher); ok {
		if err := f.Flush(); err != nil {
			errs = append(errs, errors.Wrap(err, "flushing writer"))
		}
	}
	_ = src.Close()
	return errs
}
