package cmd

import (
	"fmt"

	"github.com/KaramelBytes/propensity-cli/internal/run"
	"github.com/KaramelBytes/propensity-cli/internal/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var listRunsDir string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List previous runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := listRunsDir
		if dir == "" {
			c, err := requireConfig()
			if err != nil {
				return err
			}
			dir = c.RunsDir
		}
		dir, err := utils.ExpandHome(dir)
		if err != nil {
			return err
		}
		runs, err := run.List(dir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "(no runs)")
			return nil
		}
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"ID", "Command", "Status", "Started", "Accuracy", "AUC"})
		for _, r := range runs {
			acc, auc := "-", "-"
			if r.Metrics != nil {
				acc = fmt.Sprintf("%.3f", r.Metrics.Accuracy)
				if r.Metrics.AUCDefined {
					auc = fmt.Sprintf("%.3f", r.Metrics.AUC)
				}
			}
			table.Append([]string{r.ID, r.Command, r.Status, r.StartedAt.Local().Format("2006-01-02 15:04"), acc, auc})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listRunsDir, "runs-dir", "", "runs directory (default from config)")
}
