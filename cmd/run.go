package cmd

import (
	"fmt"

	"github.com/KaramelBytes/propensity-cli/internal/pipeline"
	"github.com/KaramelBytes/propensity-cli/internal/report"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: train, evaluate, rank, plot and export",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := requireConfig()
		if err != nil {
			return err
		}
		c, err := applyFlags(cmd, base)
		if err != nil {
			return err
		}
		r, err := newRun("run", c)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		err = func() error {
			p, err := pipeline.Prepare(c, c.Features, nil, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Joined %d rows (%d features, %d purchasers)\n", p.Join.Rows, len(p.Table.Names), p.Table.Positives())

			t, err := pipeline.Train(ctx, p, c, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Trained %d trees on %d rows, evaluated on %d\n", c.Trees, len(t.Train), len(t.Test))
			report.PrintMetrics(out, t.Evaluation)
			report.PrintImportances(out, p.Table.Names, t.Importances)
			if chart := report.LearningCurveASCII(t.Curve); chart != "" {
				fmt.Fprintln(out, chart)
			}
			if err := pipeline.SaveModel(r.Path("model"), p, t, r); err != nil {
				return err
			}

			k, err := pipeline.Rank(p, t.Scaler, t.Forest, c, r)
			if err != nil {
				return err
			}
			report.PrintTop(out, k.Primary.ProductID, k.Primary.Top)
			report.PrintProducts(out, k.Products)

			if err := pipeline.Export(ctx, c, p, t, k, r); err != nil {
				return err
			}
			printWarnings(out, r.Warnings)
			return nil
		}()
		if err := finish(r, err); err != nil {
			return err
		}
		printArtifacts(out, r)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addInputFlags(runCmd)
	addModelFlags(runCmd)
	addRankFlags(runCmd)
}
