package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mrow-os/mrow/src/cmd/mrow/bios"
	"github.com/mrow-os/mrow/src/cmd/mrow/buildvar"
	"github.com/mrow-os/mrow/src/cmd/mrow/environ"
	"github.com/spf13/cobra"
)

const (
	defaultProfile = "release"
	defaultTarget  = "i386-code16.json"
	defaultStage1  = "mrow-bios-stage-1"
	defaultStage2  = "mrow-bios-stage-2"

	envVarBuildDir = "MROW_BUILD_DIR"
	envVarProfile  = "MROW_PROFILE"
	envVarRustc    = "RUSTC"
)

// firstSet returns the first non-empty value.
func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveTarget makes a relative target specification file relative to
// the workspace root. Target triples are returned unchanged.
func resolveTarget(e *environ.Env, target string) string {
	if strings.HasSuffix(target, ".json") && !filepath.IsAbs(target) {
		return filepath.Join(e.WorkspaceRoot, target)
	}
	return target
}

func checkPackages(e *environ.Env, names ...string) error {
	if len(e.Packages) == 0 {
		return nil
	}
	for _, name := range names {
		if _, ok := e.Package(name); !ok {
			return fmt.Errorf("package %q is not a member of the workspace at %s", name, e.WorkspaceRoot)
		}
	}
	return nil
}

func buildCmd() *cobra.Command {
	var (
		profile           = flagOverEnvVarOverDefaultString{envVar: envVarProfile}
		buildDir          = flagOverEnvVarOverDefaultString{envVar: envVarBuildDir}
		rustc             = flagOverEnvVarOverDefaultString{def: "rustc", envVar: envVarRustc}
		target            string
		stage1            string
		stage2            string
		stage2Size        string
		features          []string
		noDefaultFeatures bool
		reset             bool
		externalObjcopy   bool
		compress          bool
		randomSignature   bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the BIOS boot image",
		Long: `Build the BIOS boot image.

Both boot stages are compiled concurrently with cargo, their loadable
sections are copied out of the ELF files and stage 1 is patched to load
stage 2 from the sectors following it. The image is written to
bios-boot.bin in the build directory.
`,
		Example: `  mrow build --profile release --gzip`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			profile.def = firstSet(Config.Build.Profile, defaultProfile)
			target = firstSet(target, Config.Build.Target, defaultTarget)
			stage1 = firstSet(stage1, Config.Build.Stage1, defaultStage1)
			stage2 = firstSet(stage2, Config.Build.Stage2, defaultStage2)
			if len(features) == 0 {
				features = Config.Build.Features
			}
			if !cmd.Flags().Changed("external-objcopy") {
				externalObjcopy = Config.Build.ExternalObjcopy
			}

			e, err := environ.Load(ctx, environ.Options{
				Rustc:    rustc.String(),
				BuildDir: buildDir.String(),
				Stderr:   cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			if err := checkPackages(e, stage1, stage2); err != nil {
				return err
			}

			session, err := e.SetupBuild(reset)
			if err != nil {
				return err
			}
			defer session.Close()

			tc := &bios.Toolchain{
				Env:               e,
				Target:            resolveTarget(e, target),
				Profile:           profile.String(),
				Features:          features,
				NoDefaultFeatures: noDefaultFeatures,
				BuildStd:          bios.DefaultBuildStd,
				BuildStdFeatures:  bios.DefaultBuildStdFeatures,
				ExternalObjcopy:   externalObjcopy,
			}
			b := bios.NewBuilder(tc, stage1, stage2, session.Logs)
			b.RandomDiskSignature = randomSignature
			if stage2Size != "" {
				b.Stage1.Env = map[string]string{buildvar.Stage2Size: stage2Size}
			}

			written, err := b.BuildAndSave(ctx, e, compress)
			if err != nil {
				return err
			}
			for _, p := range written {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().Var(&profile, "profile", fmt.Sprintf("Cargo profile to build with, overrides env var %s (default %q)", envVarProfile, defaultProfile))
	cmd.Flags().Var(&buildDir, "build-dir", fmt.Sprintf("Directory for the image and logs, overrides env var %s (default <workspace>/build)", envVarBuildDir))
	cmd.Flags().Var(&rustc, "rustc", fmt.Sprintf("Compiler driver used to locate the toolchain, overrides env var %s", envVarRustc))
	cmd.Flags().StringVar(&target, "target", "", fmt.Sprintf("Target triple or specification file, relative to the workspace root (default %q)", defaultTarget))
	cmd.Flags().StringVar(&stage1, "stage-1", "", fmt.Sprintf("Package of the first stage (default %q)", defaultStage1))
	cmd.Flags().StringVar(&stage2, "stage-2", "", fmt.Sprintf("Package of the second stage (default %q)", defaultStage2))
	cmd.Flags().StringVar(&stage2Size, "stage-2-size", "", fmt.Sprintf("Stage 2 sector count stage 1 is built for, overrides env var %s", buildvar.Stage2Size))
	cmd.Flags().StringSliceVar(&features, "features", nil, "Cargo features to enable for both stages")
	cmd.Flags().BoolVar(&noDefaultFeatures, "no-default-features", false, "Do not enable the default cargo features")
	cmd.Flags().BoolVar(&reset, "reset", true, "Empty the build directory first, --reset=false keeps earlier logs")
	cmd.Flags().BoolVar(&externalObjcopy, "external-objcopy", false, "Use llvm-objcopy from the toolchain instead of the built in section copy")
	cmd.Flags().BoolVar(&compress, "gzip", false, "Also write a gzip compressed image")
	cmd.Flags().BoolVar(&randomSignature, "random-disk-signature", false, "Stamp a random disk signature into the MBR")

	return cmd
}
