//go:build !windows

package util

import "github.com/xyproto/env/v2"

// HomeDir get the home directory for the user based on the HOME environment variable.
func HomeDir() string {
	return env.Str("HOME")
}
