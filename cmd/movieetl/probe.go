package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"movieetl/internal/probe"
)

func newProbeCommand(stdout io.Writer) *cobra.Command {
	var (
		rows  int
		comma string
	)
	cmd := &cobra.Command{
		Use:   "probe <uri>",
		Short: "Sample a raw source and suggest its declared columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt := probe.Options{URI: args[0], MaxRows: rows}
			if comma != "" {
				opt.Comma = []rune(comma)[0]
			}
			res, err := probe.Probe(cmd.Context(), opt)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLS\tSAMPLE")
			for _, c := range res.Columns {
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", c.Name, c.Type, c.Nulls, res.Rows, c.Sample)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			b, err := res.JSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(stdout, "\n%s\n", b)
			return err
		},
	}
	cmd.Flags().IntVar(&rows, "rows", probe.DefaultSampleRows, "data rows to sample")
	cmd.Flags().StringVar(&comma, "comma", ",", "field delimiter")
	return cmd
}
