//go:build !unix

package util

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Lock creates the lock file beside the build directory but cannot lock it,
// so concurrent builds into the same directory are not excluded here.
func Lock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "creating build directory lock %s", path)
	}
	log.Warnf("Cannot lock %s: %v", path, ErrLockUnsupported)
	return &FileLock{file: f}, nil
}

// Unlock closes the lock file.
func (l *FileLock) Unlock() error {
	return l.file.Close()
}

// CheckLock always fails with ErrLockUnsupported once the lock file exists.
func CheckLock(path string) (locked bool, holderPID int, err error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, 0, nil
	}
	return false, 0, errors.Wrap(ErrLockUnsupported, path)
}
