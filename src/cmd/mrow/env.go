package main

import (
	"errors"
	"fmt"

	"github.com/mrow-os/mrow/src/cmd/mrow/environ"
	"github.com/mrow-os/mrow/src/cmd/mrow/util"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

func envCmd() *cobra.Command {
	var (
		buildDir = flagOverEnvVarOverDefaultString{envVar: envVarBuildDir}
		rustc    = flagOverEnvVarOverDefaultString{def: "rustc", envVar: envVarRustc}
	)
	cmd := &cobra.Command{
		Use:   "env",
		Short: "print the discovered build environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := environ.Load(cmd.Context(), environ.Options{
				Rustc:    rustc.String(),
				BuildDir: buildDir.String(),
				Stderr:   cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(e)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(b); err != nil {
				return err
			}

			locked, pid, err := util.CheckLock(e.LockPath())
			switch {
			case errors.Is(err, util.ErrLockUnsupported):
				fmt.Fprintln(out, "# build directory lock state unknown")
				return nil
			case err != nil:
				return err
			}
			if locked {
				fmt.Fprintf(out, "# build directory locked by pid %d\n", pid)
			}
			return nil
		},
	}
	cmd.Flags().Var(&buildDir, "build-dir", fmt.Sprintf("Directory for the image and logs, overrides env var %s", envVarBuildDir))
	cmd.Flags().Var(&rustc, "rustc", fmt.Sprintf("Compiler driver used to locate the toolchain, overrides env var %s", envVarRustc))

	return cmd
}
