package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	units "github.com/docker/go-units"
	"github.com/mrow-os/mrow/src/cmd/mrow/objcopy"
	"github.com/spf13/cobra"
)

func objcopyCmd() *cobra.Command {
	var (
		pad  uint8
		list bool
	)
	cmd := &cobra.Command{
		Use:   "objcopy",
		Short: "copy the loadable sections of an ELF file into a flat binary",
		Long: `Copy the loadable sections of an ELF file into a flat binary.

Sections are written in address order and the gaps between them are filled
with the pad byte. Compressed sections are decompressed. An output of "-"
writes to standard output.
`,
		Example: `  mrow objcopy target/i386-code16/release/mrow-bios-stage-2 stage-2.bin`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := objcopy.Open(args[0])
			if err != nil {
				return err
			}
			defer obj.Close()

			if list {
				return listSections(cmd.OutOrStdout(), obj)
			}
			if len(args) != 2 {
				return fmt.Errorf("an output file is required unless --list is given")
			}

			var n int64
			if args[1] == "-" {
				n, err = obj.Extract(cmd.OutOrStdout(), pad)
			} else {
				n, err = extractToFile(obj, args[1], pad)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[1], units.HumanSize(float64(n)))
			return nil
		},
	}
	cmd.Flags().Uint8Var(&pad, "pad", 0, "Byte used to fill the gaps between sections")
	cmd.Flags().BoolVar(&list, "list", false, "List the sections instead of copying them")

	return cmd
}

func extractToFile(obj *objcopy.Object, path string, pad byte) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := obj.Extract(f, pad)
	if err != nil {
		_ = f.Close()
		return n, err
	}
	return n, f.Close()
}

func listSections(out io.Writer, obj *objcopy.Object) error {
	sections, err := obj.Sections()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDR\tSIZE\tTYPE\tCOMPRESSION\tLOADABLE")
	for _, s := range sections {
		fmt.Fprintf(w, "%s\t%#x\t%d\t%s\t%s\t%t\n", s.Name, s.Addr, s.Size, s.Type, s.Compression, objcopy.Loadable(s))
	}
	return w.Flush()
}
