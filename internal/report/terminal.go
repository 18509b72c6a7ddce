package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"

	"github.com/KaramelBytes/propensity-cli/internal/model"
	"github.com/KaramelBytes/propensity-cli/internal/rank"
)

// PrintTop writes a rank table for one product.
func PrintTop(w io.Writer, product string, top []rank.Scored) {
	fmt.Fprintf(w, "Top %d customers for product %s\n", len(top), product)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Customer", "Probability"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, s := range top {
		table.Append([]string{fmt.Sprint(i + 1), s.CustomerID, fmt.Sprintf("%.3f", s.Probability)})
	}
	table.Render()
}

// PrintProducts writes one row per product with its comma-joined customers.
func PrintProducts(w io.Writer, rankings []rank.ProductRanking) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Product", "Top customers"})
	for _, r := range rankings {
		table.Append([]string{r.ProductID, strings.Join(r.CustomerIDs(), ", ")})
	}
	table.Render()
}

// PrintMetrics writes the evaluation metrics and the confusion matrix.
func PrintMetrics(w io.Writer, ev *model.Report) {
	m := ev.Metrics
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"accuracy", fmt.Sprintf("%.3f", m.Accuracy)})
	table.Append([]string{"precision", fmt.Sprintf("%.3f", m.Precision)})
	table.Append([]string{"recall", fmt.Sprintf("%.3f", m.Recall)})
	table.Append([]string{"f1", fmt.Sprintf("%.3f", m.F1)})
	auc := "n/a"
	if m.AUCDefined {
		auc = fmt.Sprintf("%.3f", m.AUC)
	}
	table.Append([]string{"auc", auc})
	table.Append([]string{"support", fmt.Sprint(m.Support)})
	table.Render()

	cm := tablewriter.NewWriter(w)
	cm.SetHeader([]string{"actual \\ predicted", model.Labels[0], model.Labels[1]})
	for _, a := range model.Labels {
		cm.Append([]string{a, fmt.Sprint(ev.Confusion[a][model.Labels[0]]), fmt.Sprint(ev.Confusion[a][model.Labels[1]])})
	}
	cm.Render()
}

// PrintImportances lists features by descending importance.
func PrintImportances(w io.Writer, names []string, imp []float64) {
	order := make([]int, len(imp))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return imp[order[a]] > imp[order[b]] })
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Feature", "Importance"})
	for _, j := range order {
		table.Append([]string{names[j], fmt.Sprintf("%.4f", imp[j])})
	}
	table.Render()
}

// LearningCurveASCII renders training and validation accuracy as a terminal
// chart.
func LearningCurveASCII(lc *model.LearningCurve) string {
	if lc == nil || len(lc.TrainScores) == 0 {
		return ""
	}
	return asciigraph.PlotMany(
		[][]float64{lc.TrainScores, lc.ValidScores},
		asciigraph.Height(10),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.Caption(fmt.Sprintf("learning curve: training (red) vs validation (green), %d..%d examples",
			lc.TrainSizes[0], lc.TrainSizes[len(lc.TrainSizes)-1])),
	)
}
