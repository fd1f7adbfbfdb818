package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrow-os/mrow/src/cmd/mrow/util"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var (
	// Config is the global tool configuration
	Config = GlobalConfig{}
)

// GlobalConfig is the global tool configuration
type GlobalConfig struct {
	Build BuildConfig `yaml:"build"`
}

// BuildConfig holds defaults for the `build` subcommand
type BuildConfig struct {
	Profile string `yaml:"profile"`
	// Target is the target triple or specification file, relative to the
	// workspace root.
	Target          string   `yaml:"target"`
	Stage1          string   `yaml:"stage-1"`
	Stage2          string   `yaml:"stage-2"`
	Features        []string `yaml:"features"`
	ExternalObjcopy bool     `yaml:"external-objcopy"`
}

func configPath() string {
	return filepath.Join(util.HomeDir(), ".mrow", "config.yml")
}

func readConfig(cfgPath string) error {
	cfgBytes, err := os.ReadFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %q: %w", cfgPath, err)
	}
	if err := yaml.Unmarshal(cfgBytes, &Config); err != nil {
		return fmt.Errorf("failed to parse %q: %w", cfgPath, err)
	}
	return nil
}

func newCmd() *cobra.Command {
	var (
		flagQuiet       bool
		flagVerbose     int
		flagVerboseName = "verbose"
	)
	cmd := &cobra.Command{
		Use:               "mrow",
		Short:             "build BIOS boot images for mrow",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := readConfig(configPath()); err != nil {
				return err
			}
			return util.SetupLogging(flagQuiet, flagVerbose, cmd.Flag(flagVerboseName).Changed)
		},
	}

	cmd.AddCommand(buildCmd())
	cmd.AddCommand(envCmd())
	cmd.AddCommand(inspectCmd())
	cmd.AddCommand(objcopyCmd())
	cmd.AddCommand(versionCmd())

	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet execution")
	cmd.PersistentFlags().IntVarP(&flagVerbose, flagVerboseName, "v", 1, "Verbosity of logging: 0 = quiet, 1 = info, 2 = debug, 3 = trace. Default is info. Setting it explicitly will create structured logging lines.")

	return cmd
}
