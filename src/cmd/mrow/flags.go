package main

import "github.com/xyproto/env/v2"

// flagOverEnvVarOverDefaultString is a string flag whose value falls back
// to an environment variable and then to a default.
type flagOverEnvVarOverDefaultString struct {
	value  string
	def    string
	envVar string
}

func (f *flagOverEnvVarOverDefaultString) String() string {
	switch {
	case f.value != "":
		return f.value
	case f.envVar != "" && env.Str(f.envVar) != "":
		return env.Str(f.envVar)
	default:
		return f.def
	}
}

func (f *flagOverEnvVarOverDefaultString) Set(value string) error {
	f.value = value
	return nil
}

func (f *flagOverEnvVarOverDefaultString) Type() string {
	return "string"
}
