package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/propensity-cli/internal/model"
	"github.com/KaramelBytes/propensity-cli/internal/rank"
)

func sampleReport(t *testing.T) *model.Report {
	t.Helper()
	ev, err := model.Evaluate([]int{0, 0, 1, 1, 0, 1}, []float64{0.1, 0.4, 0.45, 0.8, 0.2, 0.9}, 0.5)
	require.NoError(t, err)
	return ev
}

func rankings() []rank.ProductRanking {
	return []rank.ProductRanking{
		{ProductID: "12345", Top: []rank.Scored{{CustomerID: "007", ProductID: "12345", Probability: 0.9}, {CustomerID: "003", ProductID: "12345", Probability: 0.6}}},
		{ProductID: "67890", Top: []rank.Scored{{CustomerID: "011", ProductID: "67890", Probability: 0.7}}},
	}
}

func TestRenderPlots(t *testing.T) {
	dir := t.TempDir()
	x := mat.NewDense(6, 3, []float64{
		0.1, 30, 1,
		0.4, 42, 1,
		0.3, 25, 1,
		0.8, 51, 1,
		0.2, 38, 1,
		0.9, 47, 1,
	})
	paths, err := RenderPlots(context.Background(), dir, PlotData{
		Evaluation:   sampleReport(t),
		FeatureNames: []string{"click_rate", "age", "const"},
		Importances:  []float64{0.6, 0.4, 0},
		Features:     x,
		Curve: &model.LearningCurve{
			TrainSizes:  []int{2, 4},
			TrainScores: []float64{1, 0.9},
			ValidScores: []float64{0.5, 0.8},
		},
	}, PlotOptions{WidthIn: 4, HeightIn: 3, Bins: 5})
	require.NoError(t, err)
	assert.Len(t, paths, 7)
	for _, p := range paths {
		st, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Greater(t, st.Size(), int64(0))
	}
}

func TestRenderPlotsSingleFeature(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{0.1, 0.5, 0.3, 0.9})
	paths, err := RenderPlots(context.Background(), t.TempDir(), PlotData{
		FeatureNames: []string{"click_rate"},
		Importances:  []float64{1},
		Features:     x,
	}, PlotOptions{WidthIn: 3, HeightIn: 3, Bins: 4})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	names := map[string]bool{}
	for _, p := range paths {
		names[filepath.Base(p)] = true
		st, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Greater(t, st.Size(), int64(0))
	}
	assert.True(t, names[CorrelationPNG])
	assert.True(t, names[HistogramsPNG])
	assert.True(t, names[ImportancePNG])
}

func TestRenderPlotsSkipsUndefinedROC(t *testing.T) {
	ev, err := model.Evaluate([]int{0, 0}, []float64{0.2, 0.7}, 0.5)
	require.NoError(t, err)
	paths, err := RenderPlots(context.Background(), t.TempDir(), PlotData{Evaluation: ev}, PlotOptions{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, ConfusionPNG, filepath.Base(paths[0]))
}

func TestWriteTopCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), TopCSV)
	require.NoError(t, WriteTopCSV(path, rankings()[0].Top))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "customer_id\n007\n003\n", string(data))
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), ResultsXLSX)
	require.NoError(t, WriteXLSX(path, rankings()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetResults, SheetRanked}, f.GetSheetList())

	rows, err := f.GetRows(SheetResults)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"product_id", "top_customers"}, rows[0])
	assert.Equal(t, []string{"12345", "007,003"}, rows[1])

	ranked, err := f.GetRows(SheetRanked)
	require.NoError(t, err)
	require.Len(t, ranked, 4)
	assert.Equal(t, []string{"67890", "1", "011", "0.7"}, ranked[3])
}

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), MetricsFile)
	ev := sampleReport(t)
	require.NoError(t, WriteMetrics(path, RunMetrics{
		Model:     &ev.Metrics,
		Rows:      map[string]int{"joined": 6},
		Durations: map[string]time.Duration{"train": 1500 * time.Millisecond},
		Finished:  time.Unix(1700000000, 0),
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `propensity_rows{stage="joined"} 6`)
	assert.Contains(t, out, `propensity_stage_duration_seconds{stage="train"} 1.5`)
	assert.Contains(t, out, `propensity_model_score{metric="accuracy"}`)
	assert.Contains(t, out, `propensity_model_score{metric="auc"} 1`)
	assert.Contains(t, out, "propensity_last_run_timestamp_seconds 1.7e+09")
}

func TestTerminalOutput(t *testing.T) {
	var buf bytes.Buffer
	PrintTop(&buf, "67890", rankings()[0].Top)
	PrintProducts(&buf, rankings())
	PrintMetrics(&buf, sampleReport(t))
	PrintImportances(&buf, []string{"a", "b"}, []float64{0.2, 0.8})
	out := buf.String()
	assert.Contains(t, out, "Top 2 customers for product 67890")
	assert.Contains(t, out, "007")
	assert.Contains(t, out, "007, 003")
	assert.Contains(t, out, "accuracy")
	assert.Less(t, strings.Index(out, "| b "), strings.Index(out, "| a "))

	chart := LearningCurveASCII(&model.LearningCurve{
		TrainSizes:  []int{10, 20, 30},
		TrainScores: []float64{1, 0.95, 0.9},
		ValidScores: []float64{0.6, 0.7, 0.8},
	})
	assert.Contains(t, chart, "10..30 examples")
	assert.Empty(t, LearningCurveASCII(nil))
}

func TestSummaryMarkdown(t *testing.T) {
	r := rankings()
	s := &Summary{
		RunID:      "abc",
		Train:      4,
		Test:       2,
		Evaluation: sampleReport(t),
		Features:   []string{"age"},
		Importance: []float64{1},
		Primary:    r[1],
		Products:   r,
		Missing:    2,
		Warnings:   []string{"1 rows with zero visits: ratio features set to 0"},
	}
	md := s.Markdown()
	assert.Contains(t, md, "# Propensity run abc")
	assert.Contains(t, md, "- train/test: 4/2")
	assert.Contains(t, md, "| auc | 1.000 |")
	assert.Contains(t, md, "1. 011 (0.700)")
	assert.Contains(t, md, "- 12345: 007, 003")
	assert.Contains(t, md, "## Warnings")
}
