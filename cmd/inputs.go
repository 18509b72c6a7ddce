package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	cfgpkg "github.com/KaramelBytes/propensity-cli/internal/config"
	"github.com/KaramelBytes/propensity-cli/internal/run"
	"github.com/KaramelBytes/propensity-cli/internal/utils"
	"github.com/spf13/cobra"
)

// Input and model overrides shared by run, train and score.
var (
	inClicks    string
	inSales     string
	inDemo      string
	inSegment   string
	inDelimiter string
	inSheet     string
	outDir      string
	optSeed     int64
	optTrees    int
	optTopN     int
	optProduct  string
	optProducts []string
	optNoCurve  bool
)

func addInputFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&inClicks, "clicks", "", "click data file (overrides config)")
	f.StringVar(&inSales, "sales", "", "sales data file (overrides config)")
	f.StringVar(&inDemo, "demographics", "", "demographic data file (overrides config)")
	f.StringVar(&inSegment, "segment", "", "segment customer list (overrides config)")
	f.StringVar(&inDelimiter, "delimiter", "", "CSV delimiter: ','|';'|'tab' (default by extension)")
	f.StringVar(&inSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	f.StringVarP(&outDir, "output", "o", "", "output directory (default <runs_dir>/<run-id>)")
}

func addModelFlags(c *cobra.Command) {
	f := c.Flags()
	f.Int64Var(&optSeed, "seed", 0, "random seed for split and forest")
	f.IntVar(&optTrees, "trees", 0, "number of trees")
	f.BoolVar(&optNoCurve, "skip-learning-curve", false, "skip the cross-validated learning curve")
}

func addRankFlags(c *cobra.Command) {
	f := c.Flags()
	f.IntVar(&optTopN, "top-n", 0, "customers to keep for the primary product")
	f.StringVar(&optProduct, "product", "", "primary product ID")
	f.StringSliceVar(&optProducts, "products", nil, "product IDs for per-product targets")
}

// applyFlags copies explicitly set flags onto a copy of the loaded config.
func applyFlags(c *cobra.Command, base *cfgpkg.Global) (*cfgpkg.Global, error) {
	cc := *base
	f := c.Flags()
	set := func(name string, apply func()) {
		if fl := f.Lookup(name); fl != nil && fl.Changed {
			apply()
		}
	}
	set("clicks", func() { cc.ClickData = inClicks })
	set("sales", func() { cc.SalesData = inSales })
	set("demographics", func() { cc.DemographicData = inDemo })
	set("segment", func() { cc.SegmentData = inSegment })
	set("delimiter", func() { cc.Delimiter = inDelimiter })
	set("sheet", func() { cc.SheetName = inSheet })
	set("seed", func() { cc.Seed = optSeed })
	set("trees", func() { cc.Trees = optTrees })
	set("skip-learning-curve", func() { cc.SkipCurve = optNoCurve })
	set("top-n", func() { cc.TopN = optTopN })
	set("product", func() { cc.PrimaryProduct = optProduct })
	set("products", func() { cc.Products = append([]string(nil), optProducts...) })
	for _, p := range []*string{&cc.ClickData, &cc.SalesData, &cc.DemographicData, &cc.SegmentData, &cc.RunsDir} {
		v, err := utils.ExpandHome(*p)
		if err != nil {
			return nil, err
		}
		*p = v
	}
	if err := cc.Validate(); err != nil {
		return nil, err
	}
	return &cc, nil
}

// newRun creates the run manifest in --output or under the runs directory.
func newRun(command string, c *cfgpkg.Global) (*run.Run, error) {
	var r *run.Run
	if outDir != "" {
		dir, err := utils.ExpandHome(outDir)
		if err != nil {
			return nil, err
		}
		r = run.NewAt(command, dir, "")
	} else {
		r = run.New(command, c.RunsDir)
	}
	if err := utils.EnsureDir(r.Dir()); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	r.Params = map[string]any{
		"features":   c.Features,
		"test_size":  c.TestSize,
		"seed":       c.Seed,
		"trees":      c.Trees,
		"threshold":  c.DecisionThreshold,
		"top_n":      c.TopN,
		"products":   c.Products,
		"primary":    c.PrimaryProduct,
		"id_column":  c.IDColumn,
		"input_sep":  c.Delimiter,
		"skip_curve": c.SkipCurve,
	}
	return r, r.Save()
}

// finish records the outcome in run.json; the command error wins over a
// manifest write error.
func finish(r *run.Run, err error) error {
	if ferr := r.Finish(err); ferr != nil && err == nil {
		return fmt.Errorf("save run manifest: %w", ferr)
	}
	return err
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "⚠ %s\n", msg)
	}
}

func printArtifacts(w io.Writer, r *run.Run) {
	fmt.Fprintf(w, "✓ Run %s written to %s\n", r.ID, r.Dir())
	var names []string
	for _, a := range r.Artifacts {
		names = append(names, filepath.ToSlash(a.Path))
	}
	if len(names) > 0 {
		fmt.Fprintf(w, "  artifacts: %s\n", strings.Join(names, ", "))
	}
}
