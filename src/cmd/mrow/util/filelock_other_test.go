//go:build !unix

package util

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.lock")

	locked, _, err := CheckLock(path)
	require.NoError(t, err)
	assert.False(t, locked, "a missing file is not locked")

	l, err := Lock(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	_, _, err = CheckLock(path)
	assert.True(t, errors.Is(err, ErrLockUnsupported), "got %v", err)
	assert.ErrorContains(t, err, "build.lock")
	require.NoError(t, l.Unlock())
}
