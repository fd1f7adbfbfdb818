package util

import (
	"errors"
	"os"
)

// ErrLockUnsupported is returned by CheckLock where build directory locks
// cannot be queried.
var ErrLockUnsupported = errors.New("build directory locks are not supported on this platform")

// FileLock is an exclusive lock on a file, held until Unlock.
type FileLock struct {
	file *os.File
}
