package util

import "github.com/xyproto/env/v2"

// HomeDir return the home directory based on the USERPROFILE environment variable.
func HomeDir() string {
	return env.Str("USERPROFILE")
}
