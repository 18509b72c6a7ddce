package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/propensity-cli/internal/dataset"
	"github.com/KaramelBytes/propensity-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	profOutput    string
	profDelimiter string
	profSheet     string
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Summarize a CSV/TSV/XLSX table column by column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		delim, err := dataset.ParseDelimiter(profDelimiter)
		if err != nil {
			return fmt.Errorf("unsupported --delimiter: %w", err)
		}
		opt := dataset.LoadOptions{Delimiter: delim, SheetName: profSheet}
		if cfg != nil {
			opt.IDColumn = cfg.IDColumn
		}
		df, err := dataset.LoadTable(path, opt)
		if err != nil && opt.IDColumn != "" {
			// not every table carries the customer key
			opt.IDColumn = ""
			df, err = dataset.LoadTable(path, opt)
		}
		if err != nil {
			return err
		}
		p, err := dataset.ProfileFrame(filepath.Base(path), df)
		if err != nil {
			return err
		}
		md := p.Markdown()
		if profOutput != "" {
			if err := utils.SafeWriteFile(profOutput, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Profile written to %s\n", profOutput)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profOutput, "output", "o", "", "write the profile to a file instead of stdout")
	profileCmd.Flags().StringVar(&profDelimiter, "delimiter", "", "CSV delimiter: ','|';'|'tab' (default by extension)")
	profileCmd.Flags().StringVar(&profSheet, "sheet", "", "XLSX sheet name (default first sheet)")
}
