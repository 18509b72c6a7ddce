//go:debug randseednop=0

package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/propensity-cli/internal/dataset"
	"github.com/KaramelBytes/propensity-cli/internal/features"
)

// separable returns n rows where both features split the classes cleanly.
func separable(n int) (*mat.Dense, []int) {
	x := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		off := float64(i%5) * 0.1
		if i%2 == 0 {
			x.SetRow(i, []float64{off, 1 + off})
			continue
		}
		y[i] = 1
		x.SetRow(i, []float64{5 + off, 8 + off})
	}
	return x, y
}

func trained(t *testing.T) *Forest {
	t.Helper()
	x, y := separable(40)
	f := NewForest([]string{"click_rate", "income"}, Params{Trees: 15, Seed: 42})
	require.NoError(t, f.Fit(x, y))
	return f
}

func TestFitRejectsSingleClass(t *testing.T) {
	f := NewForest([]string{"a"}, DefaultParams())
	err := f.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), []int{1, 1, 1})
	assert.True(t, errors.Is(err, ErrSingleClass))
}

func TestPredictBeforeFit(t *testing.T) {
	f := NewForest([]string{"a"}, DefaultParams())
	_, err := f.PredictProba(mat.NewDense(1, 1, nil))
	assert.True(t, errors.Is(err, ErrNotTrained))
}

func TestPredictProbaSeparates(t *testing.T) {
	f := trained(t)
	x := mat.NewDense(2, 2, []float64{
		0.2, 1.2,
		5.2, 8.2,
	})
	p, err := f.PredictProba(x)
	require.NoError(t, err)
	require.Len(t, p, 2)
	for _, v := range p {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Less(t, p[0], 0.5)
	assert.GreaterOrEqual(t, p[1], 0.5)

	labels, err := f.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, labels)
}

func TestPredictProbaColumnMismatch(t *testing.T) {
	f := trained(t)
	_, err := f.PredictProba(mat.NewDense(1, 3, nil))
	assert.Error(t, err)
}

func TestFeatureImportancesNormalized(t *testing.T) {
	f := trained(t)
	imp, err := f.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
	// each feature separates the classes on its own, so both are used
	assert.Greater(t, imp[0], 0.0)
	assert.Greater(t, imp[1], 0.0)
}

func TestTreeRootReadsBaggedTrees(t *testing.T) {
	f := trained(t)
	for i, m := range f.rf.Model.Models {
		require.NotNil(t, treeRoot(m), "tree %d", i)
	}
	assert.Nil(t, treeRoot(struct{}{}))
}

func TestFeaturesPerTree(t *testing.T) {
	assert.Equal(t, 2, Params{}.featuresPerTree(5))
	assert.Equal(t, 1, Params{}.featuresPerTree(1))
	assert.Equal(t, 3, Params{MaxFeatures: 3}.featuresPerTree(5))
	assert.Equal(t, 2, Params{MaxFeatures: 9}.featuresPerTree(2))
}

func TestGini(t *testing.T) {
	n, g := gini(map[string]int{"0": 2, "1": 2})
	assert.Equal(t, 4.0, n)
	assert.InDelta(t, 0.5, g, 1e-12)
	_, g = gini(map[string]int{"1": 3})
	assert.Equal(t, 0.0, g)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := trained(t)
	dir := filepath.Join(t.TempDir(), "model")
	var sc features.StandardScaler
	x, _ := separable(40)
	require.NoError(t, sc.Fit(x))
	require.NoError(t, Save(dir, f, Bundle{
		Scaler:    sc,
		Encodings: dataset.Encodings{"gender": {"F", "M"}},
	}))
	for _, name := range []string{ModelFile, BundleFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
	}

	g, b, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, f.Names, b.Features)
	assert.Equal(t, sc.Mean, b.Scaler.Mean)
	assert.Equal(t, []string{"F", "M"}, b.Encodings["gender"])
	assert.Equal(t, 15, b.Params.Trees)

	want, err := f.PredictProba(x)
	require.NoError(t, err)
	got, err := g.PredictProba(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissingBundle(t *testing.T) {
	_, _, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	cm, err := ConfusionMatrix([]int{0, 0, 1, 1, 1}, []int{0, 1, 1, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, cm["0"]["0"])
	assert.Equal(t, 1, cm["0"]["1"])
	assert.Equal(t, 1, cm["1"]["0"])
	assert.Equal(t, 2, cm["1"]["1"])

	_, err = ConfusionMatrix([]int{0}, []int{0, 1})
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	r, err := Evaluate([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.5)
	require.NoError(t, err)
	m := r.Metrics
	assert.InDelta(t, 0.75, m.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, m.Precision, 1e-9)
	assert.InDelta(t, 0.5, m.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.F1, 1e-9)
	assert.True(t, m.AUCDefined)
	assert.InDelta(t, 0.75, m.AUC, 1e-9)
	assert.Equal(t, 4, m.Support)

	require.NotEmpty(t, r.ROC.X)
	assert.Equal(t, 0.0, r.ROC.X[0])
	assert.Equal(t, 1.0, r.ROC.X[len(r.ROC.X)-1])
	assert.Equal(t, 1.0, r.PR.Y[0])
	assert.Equal(t, 1.0, r.PR.X[len(r.PR.X)-1])
	assert.InDelta(t, 0.5, r.PR.Y[len(r.PR.Y)-1], 1e-9)
}

func TestEvaluateSingleClass(t *testing.T) {
	r, err := Evaluate([]int{0, 0, 0}, []float64{0.1, 0.2, 0.7}, 0.5)
	require.NoError(t, err)
	assert.False(t, r.Metrics.AUCDefined)
	assert.Equal(t, 0.0, r.Metrics.Recall)
	assert.NotEmpty(t, r.Warnings)
}

func TestLearningCurve(t *testing.T) {
	x, y := separable(50)
	lc, err := ComputeLearningCurve(x, y, []string{"a", "b"}, Params{Trees: 5, Seed: 1}, CurveOptions{Folds: 5, Points: 4})
	require.NoError(t, err)
	require.NotEmpty(t, lc.TrainSizes)
	assert.Equal(t, len(lc.TrainSizes), len(lc.TrainScores))
	assert.Equal(t, len(lc.TrainSizes), len(lc.ValidScores))
	assert.Equal(t, 40, lc.TrainSizes[len(lc.TrainSizes)-1])
	for i := 1; i < len(lc.TrainSizes); i++ {
		assert.Greater(t, lc.TrainSizes[i], lc.TrainSizes[i-1])
	}
	last := len(lc.ValidScores) - 1
	assert.InDelta(t, 1.0, lc.ValidScores[last], 1e-9)
}
