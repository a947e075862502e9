package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/findr-pipeline/findr/reduce"
)

// --- findr classify ---

var classifyFramesDir string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Print the cleaned frame classification as YAML",
	Long:  "Build (or load from cache) the frame metadata, sort frames by type and drop open-loop science frames. No external tools are run. Output is written to stdout for piping.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClassify(cmd.Context(), configPath, classifyFramesDir, cmd.OutOrStdout())
	},
}

func runClassify(ctx context.Context, cfgPath, dir string, stdout io.Writer) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	cls, err := newPipeline(cfg, stdout).Classify(ctx, dir)
	if err != nil {
		return err
	}
	if len(cls.Build.Failures) > 0 {
		exitCode = reduce.ExitPartial
	}
	return writeYAML(stdout, cls.Cleaned)
}

// --- findr norms ---

var normsFile string

var normsCmd = &cobra.Command{
	Use:   "norms",
	Short: "Print a norms file in resolved (natural filename) order",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := reduce.LoadNormTable(normsFile)
		if err != nil {
			return err
		}
		return reduce.WriteNorms(cmd.OutOrStdout(), table)
	},
}

// writeYAML marshals v to YAML and writes it to w.
func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("YAML marshal failed: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func init() {
	classifyCmd.Flags().StringVar(&classifyFramesDir, "frames", "", "Directory containing the raw FITS frames")
	_ = classifyCmd.MarkFlagRequired("frames")

	normsCmd.Flags().StringVar(&normsFile, "file", "", "Path to a norms file")
	_ = normsCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(normsCmd)
}
