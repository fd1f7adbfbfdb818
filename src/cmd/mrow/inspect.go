package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	units "github.com/docker/go-units"
	"github.com/mrow-os/mrow/src/cmd/mrow/mbr"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inspect",
		Short:   "print the master boot record of an image",
		Example: `  mrow inspect build/bios-boot.bin`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sector := make([]byte, mbr.SectorSize)
			if _, err := io.ReadFull(f, sector); err != nil {
				return fmt.Errorf("reading the first sector of %s: %w", args[0], err)
			}
			rec, err := mbr.FromBytes(sector)
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), rec)
		},
	}
	return cmd
}

func printRecord(out io.Writer, rec *mbr.MasterBootRecord) error {
	fmt.Fprintf(out, "disk signature: %#08x\n", rec.UniqueID())
	sig := "valid"
	if !rec.HasBootSignature() {
		sig = "missing"
	}
	fmt.Fprintf(out, "boot signature: %#04x (%s)\n\n", rec.Signature(), sig)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tBOOT\tTYPE\tSTART\tSECTORS\tSIZE")
	for i := 0; i < 4; i++ {
		e := rec.Entry(i)
		boot := ""
		if e.IsBootable() {
			boot = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%#02x\t%d\t%d\t%s\n", i, boot, e.Kind(), e.StartLBA(), e.SectorLen(),
			units.BytesSize(float64(uint64(e.SectorLen())*mbr.SectorSize)))
	}
	return w.Flush()
}
