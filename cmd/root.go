package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/findr-pipeline/findr/reduce"
	"github.com/findr-pipeline/findr/reduce/fitsmeta"
	"github.com/findr-pipeline/findr/reduce/tools"
)

var (
	logLevel   string // Log verbosity level
	configPath string // Path to the YAML configuration file
	framesDir  string // Directory holding the raw frames
	reportPath string // Optional JSON run report

	// exitCode is set by commands that finish with partial failures.
	exitCode = reduce.ExitOK
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:           "findr",
	Short:         "Reduction pipeline for adaptive-optics imaging frames",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
}

// reduceCmd runs the full pipeline: extraction, classification, norms,
// master dark and subtract-and-center.
var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Classify raw frames, build the master dark, then dark-subtract and center science frames",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Progress milestones share stdout with the failure summary.
		logrus.SetOutput(cmd.OutOrStdout())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		code, err := runReduce(ctx, configPath, framesDir, reportPath, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		exitCode = code
		return nil
	},
}

// loadConfig reads the configuration and logs it at debug level.
func loadConfig(path string) (*reduce.Config, error) {
	logrus.Info("Loading configuration file...")
	cfg, err := reduce.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("Configuration: %+v", *cfg)
	return cfg, nil
}

// newPipeline wires the production collaborators into a pipeline.
func newPipeline(cfg *reduce.Config, stdout io.Writer) *reduce.Pipeline {
	log := logrus.StandardLogger()
	runner := tools.Runner{Log: log}
	darkmaster := &tools.Darkmaster{Runner: runner}
	return &reduce.Pipeline{
		Config:     cfg,
		Headers:    fitsmeta.Reader{},
		Normalizer: darkmaster,
		Darks:      darkmaster,
		Frames:     &tools.SubtractCenter{Runner: runner},
		Log:        log,
		Stdout:     stdout,
	}
}

// runReduce executes one reduction run and returns the process exit code.
func runReduce(ctx context.Context, cfgPath, dir, report string, stdout io.Writer) (int, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return reduce.ExitFatal, err
	}

	rep := NewRunReport(dir, cfgPath)
	logrus.WithField("run_id", rep.RunID).Infof("Starting reduction of %s", dir)

	res, err := newPipeline(cfg, stdout).Run(ctx, dir)
	if err != nil {
		return reduce.ExitFatal, err
	}

	rep.Complete(res, time.Now())
	if report != "" {
		if err := rep.Write(report); err != nil {
			return reduce.ExitFatal, err
		}
		logrus.Infof("Run report written to %s", report)
	}
	return res.ExitCode(), nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		var cfgErr *reduce.ConfigError
		if errors.As(err, &cfgErr) {
			logrus.Error("Check the findr section of the configuration file")
		}
		os.Exit(reduce.ExitFatal)
	}
	os.Exit(exitCode)
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "findr.yaml", "Path to the YAML configuration file")

	reduceCmd.Flags().StringVar(&framesDir, "frames", "", "Directory containing the raw FITS frames")
	reduceCmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON run report to this path")
	_ = reduceCmd.MarkFlagRequired("frames")

	// Attach `reduce` as a subcommand to `root`
	rootCmd.AddCommand(reduceCmd)
}
