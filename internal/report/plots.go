// Package report renders plots, exports and terminal summaries for a run.
package report

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/sjwhitworth/golearn/evaluation"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/KaramelBytes/propensity-cli/internal/logging"
	"github.com/KaramelBytes/propensity-cli/internal/model"
)

// Plot file names.
const (
	ConfusionPNG   = "confusion_matrix.png"
	ROCPNG         = "roc_curve.png"
	PRPNG          = "precision_recall_curve.png"
	ImportancePNG  = "feature_importance.png"
	HistogramsPNG  = "feature_histograms.png"
	CorrelationPNG = "correlation_matrix.png"
	LearningPNG    = "learning_curve.png"
)

// PlotData is everything the diagnostic plots draw from.
type PlotData struct {
	Evaluation   *model.Report
	FeatureNames []string
	Importances  []float64
	// Features is the unscaled feature matrix.
	Features *mat.Dense
	Curve    *model.LearningCurve
}

// PlotOptions sizes the images.
type PlotOptions struct {
	WidthIn  float64
	HeightIn float64
	Bins     int
}

func (o PlotOptions) size() (vg.Length, vg.Length) {
	w, h := o.WidthIn, o.HeightIn
	if w <= 0 {
		w = 8
	}
	if h <= 0 {
		h = 6
	}
	return vg.Length(w) * vg.Inch, vg.Length(h) * vg.Inch
}

type renderer struct {
	name string
	fn   func(path string) error
}

// RenderPlots writes every plot the data allows into dir, concurrently, and
// returns the written paths in a stable order. Plots whose inputs are
// missing (undefined ROC, skipped learning curve) are left out.
func RenderPlots(ctx context.Context, dir string, d PlotData, opt PlotOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	w, h := opt.size()
	bins := opt.Bins
	if bins <= 0 {
		bins = 30
	}
	l := logging.With("plot")

	var jobs []renderer
	if d.Evaluation != nil {
		ev := d.Evaluation
		jobs = append(jobs, renderer{ConfusionPNG, func(p string) error { return confusionPlot(p, ev.Confusion, w, h) }})
		if ev.Metrics.AUCDefined {
			jobs = append(jobs,
				renderer{ROCPNG, func(p string) error { return rocPlot(p, ev.ROC, ev.Metrics.AUC, w, h) }},
				renderer{PRPNG, func(p string) error { return prPlot(p, ev.PR, w, h) }},
			)
		} else {
			l.Warn().Msg("ROC and precision-recall plots skipped: single-class test set")
		}
	}
	if len(d.Importances) > 0 {
		jobs = append(jobs, renderer{ImportancePNG, func(p string) error { return importancePlot(p, d.FeatureNames, d.Importances, w, h) }})
	}
	if d.Features != nil {
		jobs = append(jobs,
			renderer{HistogramsPNG, func(p string) error { return histogramsPlot(p, d.FeatureNames, d.Features, bins, w, h) }},
			renderer{CorrelationPNG, func(p string) error { return correlationPlot(p, d.FeatureNames, d.Features, w, h) }},
		)
	}
	if d.Curve != nil && len(d.Curve.TrainSizes) > 0 {
		jobs = append(jobs, renderer{LearningPNG, func(p string) error { return learningPlot(p, d.Curve, w, h) }})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	paths := make([]string, len(jobs))
	for i, j := range jobs {
		paths[i] = filepath.Join(dir, j.name)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := j.fn(paths[i]); err != nil {
				return fmt.Errorf("%s: %w", j.name, err)
			}
			l.Debug().Str("file", paths[i]).Msg("plot written")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// matrixGrid adapts a matrix to plotter.GridXYZ; row 0 is drawn at the
// bottom.
type matrixGrid struct {
	m mat.Matrix
}

func (g matrixGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}
func (g matrixGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g matrixGrid) X(c int) float64    { return float64(c) }
func (g matrixGrid) Y(r int) float64    { return float64(r) }

func heatmap(p *plot.Plot, m mat.Matrix, lo, hi float64, format string) error {
	hm := plotter.NewHeatMap(matrixGrid{m}, palette.Heat(16, 1))
	hm.Min, hm.Max = lo, hi
	p.Add(hm)

	r, c := m.Dims()
	var xys plotter.XYs
	var labels []string
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			xys = append(xys, plotter.XY{X: float64(j), Y: float64(i)})
			labels = append(labels, fmt.Sprintf(format, m.At(i, j)))
		}
	}
	lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return err
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].XAlign = draw.XCenter
		lbl.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(lbl)
	return nil
}

func confusionPlot(path string, cm evaluation.ConfusionMatrix, w, h vg.Length) error {
	m := mat.NewDense(len(model.Labels), len(model.Labels), nil)
	peak := 0.0
	for i, actual := range model.Labels {
		for j, pred := range model.Labels {
			v := float64(cm[actual][pred])
			m.Set(i, j, v)
			peak = math.Max(peak, v)
		}
	}
	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"
	if err := heatmap(p, m, 0, math.Max(peak, 1), "%.0f"); err != nil {
		return err
	}
	p.NominalX(model.Labels...)
	p.NominalY(model.Labels...)
	return p.Save(w, h, path)
}

func rocPlot(path string, c model.Curve, auc float64, w, h vg.Length) error {
	p := plot.New()
	p.Title.Text = "ROC Curve"
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = 0, 1, 0, 1.05

	roc, err := plotter.NewLine(curveXYs(c))
	if err != nil {
		return err
	}
	roc.LineStyle.Width = vg.Points(2)
	roc.LineStyle.Color = color.RGBA{R: 255, G: 140, A: 255}

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	diag.LineStyle.Color = color.RGBA{B: 139, A: 255}
	diag.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(roc, diag, plotter.NewGrid())
	p.Legend.Add(fmt.Sprintf("ROC curve (area = %.2f)", auc), roc)
	p.Legend.Top = false
	return p.Save(w, h, path)
}

func prPlot(path string, c model.Curve, w, h vg.Length) error {
	p := plot.New()
	p.Title.Text = "Precision-Recall Curve"
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = 0, 1, 0, 1.05

	line, err := plotter.NewLine(curveXYs(c))
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = color.RGBA{B: 200, A: 255}
	p.Add(line, plotter.NewGrid())
	return p.Save(w, h, path)
}

func curveXYs(c model.Curve) plotter.XYs {
	xys := make(plotter.XYs, len(c.X))
	for i := range c.X {
		xys[i] = plotter.XY{X: c.X[i], Y: c.Y[i]}
	}
	return xys
}

// importancePlot draws a horizontal bar chart, largest importance on top.
func importancePlot(path string, names []string, imp []float64, w, h vg.Length) error {
	order := make([]int, len(imp))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return imp[order[a]] < imp[order[b]] })
	values := make(plotter.Values, len(order))
	labels := make([]string, len(order))
	for i, j := range order {
		values[i] = imp[j]
		labels[i] = names[j]
	}

	p := plot.New()
	p.Title.Text = "Feature Importance"
	p.X.Label.Text = "Mean decrease in impurity"
	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return err
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(labels...)
	return p.Save(w, h, path)
}

// histogramsPlot tiles one histogram per feature into a single image.
func histogramsPlot(path string, names []string, x *mat.Dense, bins int, w, h vg.Length) error {
	n := len(names)
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := int(math.Ceil(float64(n) / float64(cols)))

	plots := make([][]*plot.Plot, rows)
	for r := range plots {
		plots[r] = make([]*plot.Plot, cols)
		for c := range plots[r] {
			k := r*cols + c
			p := plot.New()
			if k >= n {
				p.HideAxes()
				plots[r][c] = p
				continue
			}
			p.Title.Text = names[k]
			vals := plotter.Values(mat.Col(nil, k, x))
			if constant(vals) {
				p.Title.Text += " (constant)"
			} else {
				hist, err := plotter.NewHist(vals, bins)
				if err != nil {
					return fmt.Errorf("histogram %s: %w", names[k], err)
				}
				hist.FillColor = color.RGBA{R: 100, G: 149, B: 237, A: 255}
				p.Add(hist)
			}
			plots[r][c] = p
		}
	}

	img := vgimg.New(w*vg.Length(cols)/2, h*vg.Length(rows)/2)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Points(4), PadBottom: vg.Points(4),
		PadLeft: vg.Points(4), PadRight: vg.Points(4),
	}
	canvases := plot.Align(plots, tiles, dc)
	for r := range plots {
		for c := range plots[r] {
			plots[r][c].Draw(canvases[r][c])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func constant(v []float64) bool {
	if len(v) == 0 {
		return true
	}
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

// correlationPlot draws the Pearson correlation matrix with annotations.
// Correlations involving constant columns are shown as 0.
func correlationPlot(path string, names []string, x *mat.Dense, w, h vg.Length) error {
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, x, nil)
	n := len(names)
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := corr.At(i, j)
			if math.IsNaN(v) {
				v = 0
			}
			m.Set(i, j, v)
		}
	}
	p := plot.New()
	p.Title.Text = "Feature Correlation Matrix"
	if err := heatmap(p, m, -1, 1, "%.2f"); err != nil {
		return err
	}
	p.NominalX(names...)
	p.NominalY(names...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	return p.Save(w, h, path)
}

func learningPlot(path string, lc *model.LearningCurve, w, h vg.Length) error {
	train := make(plotter.XYs, len(lc.TrainSizes))
	valid := make(plotter.XYs, len(lc.TrainSizes))
	for i, s := range lc.TrainSizes {
		train[i] = plotter.XY{X: float64(s), Y: lc.TrainScores[i]}
		valid[i] = plotter.XY{X: float64(s), Y: lc.ValidScores[i]}
	}
	p := plot.New()
	p.Title.Text = "Learning Curve"
	p.X.Label.Text = "Training examples"
	p.Y.Label.Text = "Accuracy"
	if err := plotutil.AddLinePoints(p,
		"Training score", train,
		"Cross-validation score", valid,
	); err != nil {
		return err
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = false
	return p.Save(w, h, path)
}
