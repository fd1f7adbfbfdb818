package environ

import (
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/mrow-os/mrow/src/cmd/mrow/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// LogFiles are the sinks for the output of every compiler and tool run.
type LogFiles struct {
	Stdout *os.File
	Stderr *os.File
}

// Dup returns independent handles on the same log files. Unset files stay
// unset.
func (l LogFiles) Dup() (LogFiles, error) {
	var d LogFiles
	var err error
	if l.Stdout != nil {
		if d.Stdout, err = util.Dup(l.Stdout); err != nil {
			return LogFiles{}, err
		}
	}
	if l.Stderr != nil {
		if d.Stderr, err = util.Dup(l.Stderr); err != nil {
			_ = d.Close()
			return LogFiles{}, err
		}
	}
	return d, nil
}

// Writers returns the files as sinks, nil for unset ones.
func (l LogFiles) Writers() (stdout, stderr io.Writer) {
	if l.Stdout != nil {
		stdout = l.Stdout
	}
	if l.Stderr != nil {
		stderr = l.Stderr
	}
	return stdout, stderr
}

// Close closes both files.
func (l LogFiles) Close() error {
	var result *multierror.Error
	for _, f := range []*os.File{l.Stdout, l.Stderr} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Session holds the build directory for one build.
type Session struct {
	Logs LogFiles
	lock *util.FileLock
}

// Close closes the logs and releases the build directory.
func (s *Session) Close() error {
	var result *multierror.Error
	if err := s.Logs.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.lock.Unlock(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// LockPath is the file guarding the build directory against concurrent
// builds. It lives next to the directory so a reset does not remove it.
func (e *Env) LockPath() string {
	return e.BuildDir + ".lock"
}

// SetupBuild changes into the workspace root and prepares the build
// directory, emptying it first if reset is set. The log files are opened
// for appending. The directory stays locked until the session is closed.
func (e *Env) SetupBuild(reset bool) (*Session, error) {
	if err := os.Chdir(e.WorkspaceRoot); err != nil {
		return nil, errors.Wrap(err, "entering workspace")
	}

	lock, err := util.Lock(e.LockPath())
	if err != nil {
		return nil, errors.Wrapf(err, "locking %s", e.BuildDir)
	}

	if reset {
		log.Debugf("Removing %s", e.BuildDir)
		if err := os.RemoveAll(e.BuildDir); err != nil {
			_ = lock.Unlock()
			return nil, errors.Wrap(err, "resetting build directory")
		}
	}
	if err := os.MkdirAll(e.BuildDir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, errors.Wrap(err, "creating build directory")
	}

	var logs LogFiles
	var g errgroup.Group
	g.Go(func() (err error) {
		logs.Stdout, err = openLog(e.BuildPath("stdout", "log"))
		return err
	})
	g.Go(func() (err error) {
		logs.Stderr, err = openLog(e.BuildPath("stderr", "log"))
		return err
	})
	if err := g.Wait(); err != nil {
		_ = logs.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return &Session{Logs: logs, lock: lock}, nil
}

func openLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening log")
	}
	return f, nil
}
