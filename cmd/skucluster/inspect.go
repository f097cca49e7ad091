package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"skucluster/pkg/core"
	"skucluster/pkg/data"
	"skucluster/pkg/dataprep"
	"skucluster/pkg/pipeline"
)

var inspectSheet string

// fenceIQR is the Tukey fence distance, in interquartile ranges, used to
// count extreme values per feature.
const fenceIQR = 1.5

var inspectCmd = &cobra.Command{
	Use:   "inspect [input]",
	Short: "Print missing values, spread outliers and correlations per feature",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		path, sheet := cfg.Input.Path, cfg.Input.Sheet
		if len(args) == 1 {
			path = args[0]
		}
		if cmd.Flags().Changed("sheet") {
			sheet = inspectSheet
		}
		if path == "" {
			return fmt.Errorf("no input file: pass one or set input.path")
		}

		ctx, _, flush, err := commandLogger(cmd)
		if err != nil {
			return err
		}
		defer flush()

		raw, err := data.Load(ctx, path, sheet)
		if err != nil {
			return err
		}
		ds, err := pipeline.SKUSchema.Prepare(ctx, raw)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		complete, _ := dataprep.DropIncompleteRows(ds)
		fmt.Fprintf(out, "%d rows (%d complete), %d features\n\n", ds.Len(), complete.Len(), len(ds.Names))
		printMissing(out, dataprep.MissingReport(ds), dataprep.FenceReport(ds, fenceIQR))
		fmt.Fprintln(out)
		printCorrelation(out, ds)
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectSheet, "sheet", "", "workbook sheet to read (overrides config)")
	rootCmd.AddCommand(inspectCmd)
}

func printMissing(w io.Writer, missing, extreme []dataprep.ColumnCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tMISSING\tBEYOND 1.5 IQR")
	for j, c := range missing {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Column, c.Count, extreme[j].Count)
	}
	_ = tw.Flush()
}

func printCorrelation(w io.Writer, ds *core.Dataset) {
	corr := dataprep.CorrelationMatrix(ds)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\t")
	for _, n := range ds.Names {
		fmt.Fprintf(tw, "%s\t", n)
	}
	fmt.Fprintln(tw)
	for i, row := range corr {
		fmt.Fprintf(tw, "%s\t", ds.Names[i])
		for _, v := range row {
			fmt.Fprintf(tw, "%.3f\t", v)
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}
