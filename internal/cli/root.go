// Package cli implements the commands of the dataset binary.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/dataset/internal/config"
	"github.com/born-ml/dataset/internal/loader"
	"github.com/born-ml/dataset/internal/logger"
	"github.com/born-ml/dataset/internal/metrics"
	"github.com/born-ml/dataset/internal/parallel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is reported by the version command.
var Version = "v0.0.1-dev"

// envPrefix prefixes the environment variables that set flags, such as
// DATASET_CONFIG.
const envPrefix = "DATASET"

// CmdIO holds the streams a command reads and writes.
type CmdIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	CmdIO

	configPath  string
	verbose     bool
	showMetrics bool

	logger  logger.Logger
	metrics *metrics.Metrics
	gather  *prometheus.Registry
}

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{CmdIO: CmdIO{Stdin: stdin, Stdout: stdout, Stderr: stderr}}

	rc := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect and export samples produced by loader pipelines.",
		Long: `dataset builds a loader pipeline from a TOML description and inspects
the samples it produces: counts, metadata, checksums and exports.

Every flag can also be set through the environment as DATASET_<FLAG>,
for example DATASET_CONFIG=pipeline.toml.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setAllConfig(viper.New(), cmd.Flags()); err != nil {
				return err
			}
			a.setup()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.showMetrics {
				return writeMetrics(a.gather, a.Stderr)
			}
			return nil
		},
	}
	flags := rc.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Pipeline description to read from.")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging.")
	flags.BoolVar(&a.showMetrics, "metrics", false, "Print loader counters to stderr when done.")

	rc.AddCommand(newCountCommand(a))
	rc.AddCommand(newMetadataCommand(a))
	rc.AddCommand(newChecksumCommand(a))
	rc.AddCommand(newExportCommand(a))
	rc.AddCommand(newDocsCommand(a))
	rc.AddCommand(newLoadersCommand(a))
	rc.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.Stdout, "dataset %s\n", Version)
		},
	})

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func (a *app) setup() {
	if a.verbose {
		a.logger = logger.NewVerboseLogger(a.Stderr)
	} else {
		a.logger = logger.NewStandardLogger(a.Stderr)
	}
	a.gather = prometheus.NewRegistry()
	a.metrics = metrics.New(a.gather)
}

func (a *app) registry() *loader.Registry {
	return loader.NewRegistry(
		loader.OptRegistryLogger(a.logger),
		loader.OptRegistryMetrics(a.metrics),
	)
}

// pipeline builds the pipeline described by --config.
func (a *app) pipeline() (loader.Loader, error) {
	if a.configPath == "" {
		return nil, fmt.Errorf("a pipeline description is required (--config or %s_CONFIG)", envPrefix)
	}
	p, err := config.LoadFile(a.configPath)
	if err != nil {
		return nil, err
	}
	return p.Build(a.registry())
}

// workersFlag adds --workers to cmd, bound to dst.
func workersFlag(cmd *cobra.Command, dst *int) {
	cmd.Flags().IntVarP(dst, "workers", "w", parallel.DefaultConfig().NumWorkers, "Number of pipeline clones loading in parallel.")
}

// setAllConfig applies environment variables to every flag not set on the
// command line. DATASET_FOO_BAR sets --foo-bar.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		flagErr = f.Value.Set(v.GetString(f.Name))
	})
	return flagErr
}
