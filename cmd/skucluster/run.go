package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"skucluster/pkg/data"
	"skucluster/pkg/model"
	"skucluster/pkg/pipeline"
	"skucluster/pkg/viz"
)

var (
	runSheet     string
	runOutputDir string
	runNoPlot    bool
)

var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Prepare the data, run every enabled engine and print the scores",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.Input.Path = args[0]
		}
		if cmd.Flags().Changed("sheet") {
			cfg.Input.Sheet = runSheet
		}
		if cmd.Flags().Changed("output-dir") {
			cfg.Report.OutputDir = runOutputDir
		}
		if runNoPlot {
			cfg.Report.Plot = false
		}
		if cfg.Input.Path == "" {
			return fmt.Errorf("no input file: pass one or set input.path")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, logger, flush, err := commandLogger(cmd)
		if err != nil {
			return err
		}
		defer flush()

		raw, err := data.Load(ctx, cfg.Input.Path, cfg.Input.Sheet)
		if err != nil {
			return err
		}
		logger.Infow("loaded input", "path", cfg.Input.Path, "rows", raw.Len(), "columns", len(raw.Names))

		ds, err := pipeline.SKUSchema.Prepare(ctx, raw)
		if err != nil {
			return err
		}
		prepared, err := pipeline.NewRunner(cfg.Stages()...).Run(ctx, ds)
		if err != nil {
			return err
		}

		var plotter pipeline.Plotter
		if cfg.Report.Plot {
			plotter = viz.NewRenderer(cfg.Report.OutputDir)
		}
		reports, err := pipeline.RunEngines(ctx, prepared, cfg.Engines(), plotter)
		printReports(cmd.OutOrStdout(), reports)
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "workbook sheet to read (overrides config)")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "directory for scatter plots (overrides config)")
	runCmd.Flags().BoolVar(&runNoPlot, "no-plot", false, "skip scatter plots")
	rootCmd.AddCommand(runCmd)
}

func printReports(w io.Writer, reports []*pipeline.ClusterReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tCLUSTERS\tITER\tCONVERGED\tSILHOUETTE\tCALINSKI-HARABASZ\tDAVIES-BOULDIN\tVARIANCE")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%t\t%s\t%s\t%s\t%.1f%%\n",
			r.Algorithm,
			r.Result.NClusters(),
			r.Result.Iterations,
			r.Result.Converged,
			formatScore(r.Evaluation, model.Silhouette),
			formatScore(r.Evaluation, model.CalinskiHarabasz),
			formatScore(r.Evaluation, model.DaviesBouldin),
			r.CompressVariance*100,
		)
	}
	_ = tw.Flush()
}

func formatScore(ev *model.Evaluation, metric string) string {
	v, ok := ev.Score(metric)
	if !ok {
		return "undefined"
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
