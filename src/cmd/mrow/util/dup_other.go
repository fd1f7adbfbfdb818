//go:build !unix

package util

import (
	"fmt"
	"os"
)

// Dup reopens the file behind f for appending.
func Dup(f *os.File) (*os.File, error) {
	d, err := os.OpenFile(f.Name(), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, fmt.Errorf("reopen %s: %w", f.Name(), err)
	}
	return d, nil
}
