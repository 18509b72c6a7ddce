package cmd

import (
	"fmt"

	"github.com/KaramelBytes/propensity-cli/internal/dataset"
	"github.com/KaramelBytes/propensity-cli/internal/model"
	"github.com/KaramelBytes/propensity-cli/internal/pipeline"
	"github.com/KaramelBytes/propensity-cli/internal/report"
	"github.com/KaramelBytes/propensity-cli/internal/utils"
	"github.com/spf13/cobra"
)

var scoreModelDir string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the segment with a saved model bundle and export rankings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scoreModelDir == "" {
			return fmt.Errorf("--model is required")
		}
		base, err := requireConfig()
		if err != nil {
			return err
		}
		c, err := applyFlags(cmd, base)
		if err != nil {
			return err
		}
		dir, err := utils.ExpandHome(scoreModelDir)
		if err != nil {
			return err
		}
		forest, bundle, err := model.Load(dir)
		if err != nil {
			return err
		}
		c.DecisionThreshold = bundle.Params.Threshold
		r, err := newRun("score", c)
		if err != nil {
			return err
		}
		r.Inputs["model"] = dir
		out := cmd.OutOrStdout()

		err = func() error {
			enc := bundle.Encodings
			if enc == nil {
				enc = dataset.Encodings{}
			}
			p, err := pipeline.Prepare(c, bundle.Features, enc, r)
			if err != nil {
				return err
			}
			k, err := pipeline.Rank(p, &bundle.Scaler, forest, c, r)
			if err != nil {
				return err
			}
			if n := len(k.Segment.Missing); n > 0 {
				fmt.Fprintf(out, "⚠ %d segment customers not found in joined data\n", n)
			}
			report.PrintTop(out, k.Primary.ProductID, k.Primary.Top)
			report.PrintProducts(out, k.Products)
			if err := pipeline.Export(cmd.Context(), c, p, nil, k, r); err != nil {
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
	rootCmd.AddCommand(scoreCmd)
	addInputFlags(scoreCmd)
	addRankFlags(scoreCmd)
	scoreCmd.Flags().StringVar(&scoreModelDir, "model", "", "directory holding trained_model.cls and model_bundle.json")
}
