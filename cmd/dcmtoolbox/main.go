// Command dcmtoolbox converts folders of DICOM slices into JPEG stacks, MP4
// videos or reconstructed 3D STL surface meshes, and analyzes folders to
// suggest how to split them into series.
package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dcmtoolbox/pkg/analyze"
	"dcmtoolbox/pkg/config"
	"dcmtoolbox/pkg/convert"
	"dcmtoolbox/pkg/export"
	"dcmtoolbox/pkg/series"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

// cli carries the state shared between subcommands: the loaded configuration
// and the flag values that override it.
type cli struct {
	cfg        *config.Config
	configPath string
	verbose    bool

	inputDir  string
	outputDir string
	splitBy   string
	precision int
	workers   int
	force     bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "dcmtoolbox",
		Short:         "Convert and analyze folders of DICOM slices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg

			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if c.verbose || cfg.Output.Verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "dcmtoolbox.yaml", "configuration file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newConvertCmd(c))
	root.AddCommand(newAnalyzeCmd(c))
	return root
}

func newConvertCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a DICOM folder into per-series output artifacts",
	}
	cmd.PersistentFlags().StringVarP(&c.inputDir, "in", "i", "", "input folder containing .dcm files")
	cmd.PersistentFlags().StringVarP(&c.outputDir, "out", "o", "", "output folder, one subfolder per series")
	cmd.PersistentFlags().StringVar(&c.splitBy, "split-by", "", "tag to split series by (series-uid, series-number, acquisition-number, description, orientation, stack-id)")
	cmd.PersistentFlags().IntVar(&c.precision, "orientation-precision", 0, "decimal places for orientation grouping keys")
	cmd.PersistentFlags().IntVar(&c.workers, "workers", 0, "number of concurrent workers")
	cmd.PersistentFlags().BoolVarP(&c.force, "force", "f", false, "overwrite existing output without asking")
	cmd.MarkPersistentFlagRequired("in")
	cmd.MarkPersistentFlagRequired("out")

	cmd.AddCommand(newJPEGCmd(c))
	cmd.AddCommand(newVideoCmd(c))
	cmd.AddCommand(newSTLCmd(c))
	return cmd
}

func newJPEGCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "jpeg",
		Short: "Export each series as a numbered JPEG image stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd, convert.JPEG{})
		},
	}
}

func newVideoCmd(c *cli) *cobra.Command {
	var fps int
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Encode each series as an MP4 video (requires ffmpeg)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("fps") {
				fps = c.cfg.Video.FPS
			}
			return c.runConvert(cmd, convert.Video{FPS: fps})
		},
	}
	cmd.Flags().IntVar(&fps, "fps", export.DefaultFPS, "output frame rate")
	return cmd
}

func newSTLCmd(c *cli) *cobra.Command {
	var isoLevel float64
	var smooth float64
	cmd := &cobra.Command{
		Use:   "stl",
		Short: "Reconstruct each series into a 3D surface mesh",
		RunE: func(cmd *cobra.Command, args []string) error {
			format := convert.STL{SmoothSigma: smooth}
			if cmd.Flags().Changed("iso-level") {
				format.IsoLevel = &isoLevel
			}
			if !cmd.Flags().Changed("smooth") {
				format.SmoothSigma = c.cfg.Processing.SmoothSigma
			}
			return c.runConvert(cmd, format)
		},
	}
	cmd.Flags().Float64Var(&isoLevel, "iso-level", 0, "explicit surface threshold (default: adaptive per series)")
	cmd.Flags().Float64Var(&smooth, "smooth", 1.0, "Gaussian smoothing sigma, 0 disables")
	return cmd
}

// runConvert resolves flag/config precedence and executes the batch.
func (c *cli) runConvert(cmd *cobra.Command, format convert.Format) error {
	splitBy, err := c.resolveSplitBy()
	if err != nil {
		return err
	}

	precision := c.precision
	if precision == 0 {
		precision = c.cfg.Grouping.OrientationPrecision
	}
	workers := c.workers
	if workers == 0 {
		workers = c.cfg.Processing.NumWorkers
	}

	var prompter convert.CleanupPrompter = convert.NewTerminalPrompter()
	if c.force {
		prompter = convert.ForcePrompter{}
	}

	results, err := convert.Run(cmd.Context(), convert.Options{
		InputDir:             c.inputDir,
		OutputDir:            c.outputDir,
		Format:               format,
		SplitBy:              splitBy,
		OrientationPrecision: precision,
		Workers:              workers,
		Prompter:             prompter,
	})
	if err != nil {
		return err
	}
	if failed := convert.Summarize(results); failed > 0 {
		return fmt.Errorf("%d of %d series failed to convert", failed, len(results))
	}
	return nil
}

func (c *cli) resolveSplitBy() (series.SplitBy, error) {
	value := c.splitBy
	if value == "" {
		value = c.cfg.Grouping.SplitBy
	}
	return series.ParseSplitBy(value)
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	var expectedGroups int
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report how each split tag would partition a DICOM folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			workers := c.workers
			if workers == 0 {
				workers = c.cfg.Processing.NumWorkers
			}

			report, err := analyze.Run(cmd.Context(), c.inputDir, expectedGroups, workers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d files, %d readable\n\n", report.Files, report.Readable)
			for _, tc := range report.Counts {
				fmt.Fprintf(out, "  %-20s %d groups\n", tc.SplitBy.String(), tc.Groups)
			}
			fmt.Fprintf(out, "\nrecommended: --split-by %s\n", report.Recommended.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&c.inputDir, "in", "i", "", "input folder containing .dcm files")
	cmd.Flags().IntVar(&expectedGroups, "expected-groups", 1, "how many series you expect the folder to contain")
	cmd.Flags().IntVar(&c.workers, "workers", 0, "number of concurrent workers")
	cmd.MarkFlagRequired("in")
	return cmd
}
