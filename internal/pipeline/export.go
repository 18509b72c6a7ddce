package pipeline

import (
	"context"
	"time"

	"github.com/KaramelBytes/propensity-cli/internal/config"
	"github.com/KaramelBytes/propensity-cli/internal/report"
	"github.com/KaramelBytes/propensity-cli/internal/run"
	"github.com/KaramelBytes/propensity-cli/internal/utils"
)

// Export writes plots (when t is non-nil), rankings (when k is non-nil),
// the metrics textfile and the Markdown summary into the run directory.
func Export(ctx context.Context, cfg *config.Global, p *Prepared, t *Trained, k *Ranked, r *run.Run) error {
	if t != nil {
		done := r.Stage("plot")
		paths, err := report.RenderPlots(ctx, r.Dir(), report.PlotData{
			Evaluation:   t.Evaluation,
			FeatureNames: p.Table.Names,
			Importances:  t.Importances,
			Features:     p.Table.X,
			Curve:        t.Curve,
		}, report.PlotOptions{WidthIn: cfg.PlotWidthIn, HeightIn: cfg.PlotHeightIn, Bins: cfg.HistBins})
		done()
		if err != nil {
			return err
		}
		for _, path := range paths {
			r.AddArtifact("plot", path)
		}
	}

	done := r.Stage("export")
	defer done()
	if k != nil {
		if err := report.WriteTopCSV(r.Path(report.TopCSV), k.Primary.Top); err != nil {
			return err
		}
		r.AddArtifact("ranking", r.Path(report.TopCSV))
		if err := report.WriteXLSX(r.Path(report.ResultsXLSX), k.Products); err != nil {
			return err
		}
		r.AddArtifact("ranking", r.Path(report.ResultsXLSX))
	}

	sum := &report.Summary{RunID: r.ID, Join: p.Join, Warnings: r.Warnings}
	rm := report.RunMetrics{Rows: r.Rows, Durations: r.Durations(), Finished: time.Now()}
	if t != nil {
		sum.Train, sum.Test = len(t.Train), len(t.Test)
		sum.Evaluation = t.Evaluation
		sum.Features = p.Table.Names
		sum.Importance = t.Importances
		rm.Model = &t.Evaluation.Metrics
	}
	if k != nil {
		sum.Primary = k.Primary
		sum.Products = k.Products
		sum.Missing = len(k.Segment.Missing)
	}
	if err := utils.SafeWriteFile(r.Path(report.SummaryFile), []byte(sum.Markdown())); err != nil {
		return err
	}
	r.AddArtifact("summary", r.Path(report.SummaryFile))
	if err := report.WriteMetrics(r.Path(report.MetricsFile), rm); err != nil {
		return err
	}
	r.AddArtifact("metrics", r.Path(report.MetricsFile))
	return nil
}
