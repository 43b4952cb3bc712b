package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"movieetl/internal/pipeline"
	"movieetl/internal/quality"
	"movieetl/internal/storage"
	"movieetl/internal/table"
)

func newRunCommand(o *globalOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(o)
			if err != nil {
				return err
			}
			if err := checkPipeline(cmd.ErrOrStderr(), p); err != nil {
				return err
			}
			flush := setupMetrics(p.Metrics, p.Job)
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := pipeline.Open(ctx, p)
			if err != nil {
				return err
			}
			defer s.Close()

			start := time.Now()
			res, err := pipeline.Run(ctx, s)
			printRun(stdout, res, time.Since(start))
			return err
		},
	}
}

func newValidateCommand(o *globalOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Lint the pipeline file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(o)
			if err != nil {
				return err
			}
			if err := checkPipeline(stdout, p); err != nil {
				return errors.Wrap(err, o.ConfigPath)
			}
			fmt.Fprintf(stdout, "configuration is valid: %s\n", o.ConfigPath)
			return nil
		},
	}
}

func newHistoryCommand(o *globalOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "history [tier/name ...]",
		Short: "List the commits of storage locations",
		Long: `List the commits of storage locations, oldest first. Without arguments
the bronze and gold locations of the pipeline are listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			locs := []storage.Location{quality.BronzeMovies, quality.BronzeRatings, quality.GoldRatings}
			if len(args) > 0 {
				locs = locs[:0]
				for _, a := range args {
					l, err := storage.ParseLocation(a)
					if err != nil {
						return err
					}
					locs = append(locs, l)
				}
			}
			p, err := loadPipeline(o)
			if err != nil {
				return err
			}
			s, err := pipeline.Open(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer s.Close()

			tw := tabwriter.NewWriter(stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "LOCATION\tVERSION\tMODE\tROWS\tCHECKSUM\tWRITTEN\tRUN")
			for _, l := range locs {
				cs, err := s.Persister().History(cmd.Context(), l)
				if err != nil {
					return err
				}
				for _, c := range cs {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\t%s\n",
						c.Location, c.Version, c.Mode, c.Rows, c.Checksum,
						c.WrittenAt.UTC().Format(time.RFC3339), c.RunID)
				}
			}
			return tw.Flush()
		},
	}
}

func newQualityCommand(o *globalOptions, stdout io.Writer) *cobra.Command {
	var failOnFlag bool
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Run the quality checks against persisted tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(o)
			if err != nil {
				return err
			}
			flush := setupMetrics(p.Metrics, p.Job)
			defer flush()

			s, err := pipeline.Open(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer s.Close()

			rep := pipeline.Quality(cmd.Context(), s)
			printQuality(stdout, rep)
			if failOnFlag && rep.Flagged() {
				return errors.New("quality: flagged checks")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnFlag, "fail-on-flag", false, "exit non-zero when a check is flagged")
	return cmd
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(stdout, "movieetl %s (built %s)\n", Version, BuildTime)
			return err
		},
	}
}

func printRun(w io.Writer, res pipeline.Result, took time.Duration) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s\n", res.RunID)
	fmt.Fprintln(tw, "STEP\tSTATUS\tTOOK\tSUMMARY")
	for _, st := range res.Steps {
		status, summary := "ok", st.Summary
		if st.Err != nil {
			status, summary = "failed", st.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Name, status, st.Duration.Truncate(time.Millisecond), summary)
	}
	_ = tw.Flush()
	if res.Quality != nil {
		printQuality(w, *res.Quality)
	}
	fmt.Fprintf(w, "completed in %s\n", took.Truncate(time.Millisecond))
}

func printQuality(w io.Writer, rep quality.Report) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tVALUE\tFLAGGED")
	for _, c := range rep.Checks {
		flag := ""
		if c.Flagged {
			flag = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, table.FormatValue(c.Value), flag)
	}
	_ = tw.Flush()
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}
