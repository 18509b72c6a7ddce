package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/ensemble"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/propensity-cli/internal/logging"
)

var (
	// ErrSingleClass is returned when the training labels contain one class.
	ErrSingleClass = errors.New("training labels contain a single class")
	// ErrNotTrained is returned when predicting with an unfitted forest.
	ErrNotTrained = errors.New("model not trained")
)

// Params are the forest hyper-parameters.
type Params struct {
	Trees       int     `json:"trees"`
	MaxFeatures int     `json:"max_features"` // 0 = floor(sqrt(n_features))
	Seed        int64   `json:"seed"`
	Threshold   float64 `json:"threshold"`
}

// DefaultParams mirrors the configuration defaults.
func DefaultParams() Params {
	return Params{Trees: 100, Seed: 42, Threshold: 0.5}
}

// featuresPerTree resolves MaxFeatures for n input features.
func (p Params) featuresPerTree(n int) int {
	k := p.MaxFeatures
	if k <= 0 {
		k = int(math.Floor(math.Sqrt(float64(n))))
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// Forest is a binary random forest over named float features.
type Forest struct {
	Params Params
	Names  []string

	schema *schema
	rf     *ensemble.RandomForest
}

// NewForest returns an untrained forest for the given feature names.
func NewForest(names []string, p Params) *Forest {
	if p.Trees <= 0 {
		p.Trees = DefaultParams().Trees
	}
	if p.Threshold <= 0 || p.Threshold >= 1 {
		p.Threshold = DefaultParams().Threshold
	}
	return &Forest{
		Params: p,
		Names:  append([]string(nil), names...),
		schema: newSchema(names),
	}
}

// Fit trains the forest on x with 0/1 labels y.
func (f *Forest) Fit(x mat.Matrix, y []int) error {
	pos := 0
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return ErrSingleClass
	}
	grid, err := f.schema.grid(x, y)
	if err != nil {
		return err
	}
	// golearn draws bootstrap samples and feature subsets from the global
	// source; trees are grown concurrently so ordering is best effort.
	rand.Seed(f.Params.Seed) //nolint:staticcheck
	k := f.Params.featuresPerTree(len(f.Names))
	rf := ensemble.NewRandomForest(f.Params.Trees, k)
	if err := rf.Fit(grid); err != nil {
		return fmt.Errorf("fit random forest: %w", err)
	}
	f.rf = rf
	r, _ := x.Dims()
	logging.With("train").Debug().
		Int("rows", r).
		Int("positives", pos).
		Int("trees", f.Params.Trees).
		Int("features_per_tree", k).
		Msg("forest fitted")
	return nil
}

// Trained reports whether the forest holds fitted trees.
func (f *Forest) Trained() bool {
	return f.rf != nil && f.rf.Model != nil && len(f.rf.Model.Models) > 0
}

// PredictProba returns, per row, the fraction of trees voting for class 1.
func (f *Forest) PredictProba(x mat.Matrix) ([]float64, error) {
	if !f.Trained() {
		return nil, ErrNotTrained
	}
	grid, err := f.schema.grid(x, nil)
	if err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	votes := make([]float64, r)
	models := f.rf.Model.Models
	for t, m := range models {
		pred, err := m.Predict(grid)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", t, err)
		}
		for i := 0; i < r; i++ {
			if base.GetClass(pred, i) == positive {
				votes[i]++
			}
		}
	}
	for i := range votes {
		votes[i] /= float64(len(models))
	}
	return votes, nil
}

// Predict thresholds PredictProba at Params.Threshold.
func (f *Forest) Predict(x mat.Matrix) ([]int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return nil, err
	}
	return Threshold(proba, f.Params.Threshold), nil
}

// Threshold maps probabilities to 0/1 labels; p >= t is positive.
func Threshold(proba []float64, t float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= t {
			out[i] = 1
		}
	}
	return out
}
