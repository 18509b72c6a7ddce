package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/propensity-cli/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Propensity configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		next := *cfg
		if err := setKey(&next, key, val); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		cfg = &next
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	var err error
	switch key {
	case "click_data":
		c.ClickData = val
	case "sales_data":
		c.SalesData = val
	case "demographic_data":
		c.DemographicData = val
	case "segment_data":
		c.SegmentData = val
	case "id_column":
		c.IDColumn = val
	case "product_column":
		c.ProductColumn = val
	case "delimiter":
		c.Delimiter = val
	case "sheet_name":
		c.SheetName = val
	case "features":
		c.Features = splitList(val)
	case "test_size":
		c.TestSize, err = parseFloat(key, val)
	case "seed":
		c.Seed, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			err = fmt.Errorf("invalid int for seed: %w", err)
		}
	case "trees":
		c.Trees, err = parseInt(key, val)
	case "max_features":
		c.MaxFeatures, err = parseInt(key, val)
	case "cv_folds":
		c.CVFolds, err = parseInt(key, val)
	case "curve_points":
		c.CurvePoints, err = parseInt(key, val)
	case "skip_learning_curve":
		c.SkipCurve, err = strconv.ParseBool(val)
		if err != nil {
			err = fmt.Errorf("invalid bool for %s: %w", key, err)
		}
	case "hist_bins":
		c.HistBins, err = parseInt(key, val)
	case "plot_width_in":
		c.PlotWidthIn, err = parseFloat(key, val)
	case "plot_height_in":
		c.PlotHeightIn, err = parseFloat(key, val)
	case "primary_product":
		c.PrimaryProduct = val
	case "products":
		c.Products = splitList(val)
	case "top_n":
		c.TopN, err = parseInt(key, val)
	case "top_n_per_product":
		c.TopNPerProduct, err = parseInt(key, val)
	case "decision_threshold":
		c.DecisionThreshold, err = parseFloat(key, val)
	case "runs_dir":
		c.RunsDir = val
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func parseInt(key, val string) (int, error) {
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %w", key, err)
	}
	return i, nil
}

func parseFloat(key, val string) (float64, error) {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float for %s: %w", key, err)
	}
	return f, nil
}

func splitList(val string) []string {
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
