package main

import (
	"fmt"
	"runtime"

	"github.com/mrow-os/mrow/src/cmd/mrow/version"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	var short, commit bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "print the mrow version",
		Long: `Print the mrow version, the commit it was built from and the
platform of the binary. The boot images it builds do not depend on the
platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case short:
				fmt.Fprintln(out, version.Version)
			case commit:
				fmt.Fprintln(out, version.GitCommit)
			default:
				fmt.Fprintf(out, "mrow %s (commit %s)\n", version.Version, version.GitCommit)
				fmt.Fprintf(out, "built with %s for %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print just the version number")
	cmd.Flags().BoolVar(&commit, "commit", false, "Print just the commit")
	cmd.MarkFlagsMutuallyExclusive("short", "commit")

	return cmd
}
