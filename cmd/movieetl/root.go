package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"movieetl/internal/config"
)

var (
	// Version is filled in by ldflags at build time.
	Version string
	// BuildTime is filled in by ldflags at build time.
	BuildTime string
)

// envPrefix is prepended to upper-cased flag names, e.g. MOVIEETL_MAX_ROWS.
const envPrefix = "MOVIEETL"

// globalOptions are the persistent flags shared by every subcommand. Each can
// also be set through the environment.
type globalOptions struct {
	ConfigPath string
	Verbose    bool
	LogFormat  string

	MetricsBackend string
	MetricsTarget  string

	MaxRows     int
	TimeZone    string
	StorageKind string
	DSN         string
	Root        string
}

// NewRootCommand builds the movieetl command tree writing to the given
// streams.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if Version == "" {
		Version = "v0.0.0"
	}
	if BuildTime == "" {
		BuildTime = "not recorded"
	}
	o := &globalOptions{}
	rc := &cobra.Command{
		Use:   "movieetl",
		Short: "movieetl - movie ratings medallion pipeline",
		Long: `movieetl loads raw movies and ratings, cleans them, persists a bronze
tier, aggregates per-movie rating statistics into a gold tier and reports
data quality.

Every flag can also be set as an environment variable: MOVIEETL_ followed by
the upper-cased flag name with dashes replaced by underscores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setAllConfig(viper.New(), cmd.Flags(), envPrefix); err != nil {
				return err
			}
			return setupLogging(o, stderr)
		},
	}

	pf := rc.PersistentFlags()
	pf.StringVarP(&o.ConfigPath, "config", "c", "configs/pipelines/movie_ratings.json", "pipeline file (JSON or YAML)")
	pf.BoolVarP(&o.Verbose, "verbose", "v", false, "enable debug logs and stage previews")
	pf.StringVar(&o.LogFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&o.MetricsBackend, "metrics-backend", "", "metrics backend: none, prometheus or datadog (overrides the pipeline file)")
	pf.StringVar(&o.MetricsTarget, "metrics-target", "", "Pushgateway URL or DogStatsD address")
	pf.IntVar(&o.MaxRows, "max-rows", 0, "rows read per source (overrides runtime.max_rows)")
	pf.StringVar(&o.TimeZone, "time-zone", "", "IANA zone for rating dates (overrides runtime.time_zone)")
	pf.StringVar(&o.StorageKind, "storage", "", "storage backend (overrides storage.kind)")
	pf.StringVar(&o.DSN, "dsn", "", "storage connection string (overrides storage.db.dsn)")
	pf.StringVar(&o.Root, "root", "", "parquet storage root (overrides storage.root)")

	rc.AddCommand(
		newRunCommand(o, stdout),
		newValidateCommand(o, stdout),
		newHistoryCommand(o, stdout),
		newQualityCommand(o, stdout),
		newProbeCommand(stdout),
		newVersionCommand(stdout),
	)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setAllConfig resolves every flag in priority order: command line, then
// environment, then the flag default. Flags set on the command line are left
// untouched.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, prefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "bind flags")
	}
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		if err := f.Value.Set(v.GetString(f.Name)); err != nil {
			flagErr = errors.Wrapf(err, "flag --%s", f.Name)
		}
	})
	return flagErr
}

func setupLogging(o *globalOptions, w io.Writer) error {
	log.SetOutput(w)
	switch strings.ToLower(o.LogFormat) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", o.LogFormat)
	}
	log.SetLevel(log.InfoLevel)
	if o.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

// loadPipeline reads the pipeline file and applies flag overrides.
func loadPipeline(o *globalOptions) (config.Pipeline, error) {
	p, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Pipeline{}, err
	}
	if o.MaxRows > 0 {
		p.Runtime.MaxRows = o.MaxRows
	}
	if o.TimeZone != "" {
		p.Runtime.TimeZone = o.TimeZone
	}
	if o.StorageKind != "" {
		p.Storage.Kind = o.StorageKind
	}
	if o.DSN != "" {
		p.Storage.DB.DSN = o.DSN
	}
	if o.Root != "" {
		p.Storage.Root = o.Root
	}
	if o.MetricsBackend != "" {
		p.Metrics.Backend = o.MetricsBackend
	}
	if o.MetricsTarget != "" {
		p.Metrics.Target = o.MetricsTarget
	}
	return p, nil
}

// checkPipeline prints every issue and fails on errors.
func checkPipeline(w io.Writer, p config.Pipeline) error {
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errors.New("configuration is invalid")
	}
	return nil
}
