package cmd

import (
	"fmt"

	"github.com/KaramelBytes/propensity-cli/internal/pipeline"
	"github.com/KaramelBytes/propensity-cli/internal/report"
	"github.com/spf13/cobra"
)

var trainModelDir string

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train and evaluate the model, then save the model bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := requireConfig()
		if err != nil {
			return err
		}
		c, err := applyFlags(cmd, base)
		if err != nil {
			return err
		}
		r, err := newRun("train", c)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		err = func() error {
			p, err := pipeline.Prepare(c, c.Features, nil, r)
			if err != nil {
				return err
			}
			t, err := pipeline.Train(cmd.Context(), p, c, r)
			if err != nil {
				return err
			}
			report.PrintMetrics(out, t.Evaluation)
			report.PrintImportances(out, p.Table.Names, t.Importances)

			dir := trainModelDir
			if dir == "" {
				dir = r.Path("model")
			}
			if err := pipeline.SaveModel(dir, p, t, r); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Model saved to %s\n", dir)
			if err := pipeline.Export(cmd.Context(), c, p, t, nil, r); err != nil {
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
	rootCmd.AddCommand(trainCmd)
	addInputFlags(trainCmd)
	addModelFlags(trainCmd)
	trainCmd.Flags().StringVar(&trainModelDir, "model-dir", "", "where to save the model bundle (default <run>/model)")
}
