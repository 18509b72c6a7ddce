package model

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/propensity-cli/internal/features"
	"github.com/KaramelBytes/propensity-cli/internal/logging"
)

// LearningCurve holds mean training and validation accuracy per training
// set size.
type LearningCurve struct {
	TrainSizes  []int     `json:"train_sizes"`
	TrainScores []float64 `json:"train_scores"`
	ValidScores []float64 `json:"valid_scores"`
}

// CurveOptions controls the learning curve sweep.
type CurveOptions struct {
	Folds  int
	Points int
}

// ComputeLearningCurve trains fresh forests on growing prefixes of each
// stratified training fold and scores them on the fold and its complement.
// Sizes whose subsets hold a single class in every fold are omitted.
func ComputeLearningCurve(x *mat.Dense, y []int, names []string, p Params, opt CurveOptions) (*LearningCurve, error) {
	if opt.Folds == 0 {
		opt.Folds = 5
	}
	if opt.Points == 0 {
		opt.Points = 10
	}
	folds, err := features.StratifiedFolds(y, opt.Folds)
	if err != nil {
		return nil, err
	}
	fracs := floats.Span(make([]float64, opt.Points), 0.1, 1.0)

	trainSets := make([][]int, len(folds))
	minTrain := len(y)
	for k := range folds {
		for j, f := range folds {
			if j != k {
				trainSets[k] = append(trainSets[k], f...)
			}
		}
		if len(trainSets[k]) < minTrain {
			minTrain = len(trainSets[k])
		}
	}

	l := logging.With("learning_curve")
	lc := &LearningCurve{}
	for _, frac := range fracs {
		size := int(frac * float64(minTrain))
		if size < 1 {
			size = 1
		}
		var trainAcc, validAcc []float64
		for k, valid := range folds {
			idx := trainSets[k][:size]
			xs, ys := rows(x, y, idx)
			f := NewForest(names, p)
			if err := f.Fit(xs, ys); err != nil {
				l.Debug().Int("fold", k).Int("size", size).Err(err).Msg("skipping fold")
				continue
			}
			ta, err := accuracy(f, xs, ys)
			if err != nil {
				return nil, err
			}
			xv, yv := rows(x, y, valid)
			va, err := accuracy(f, xv, yv)
			if err != nil {
				return nil, err
			}
			trainAcc = append(trainAcc, ta)
			validAcc = append(validAcc, va)
		}
		if len(trainAcc) == 0 {
			continue
		}
		lc.TrainSizes = append(lc.TrainSizes, size)
		lc.TrainScores = append(lc.TrainScores, stat.Mean(trainAcc, nil))
		lc.ValidScores = append(lc.ValidScores, stat.Mean(validAcc, nil))
	}
	if len(lc.TrainSizes) == 0 {
		return nil, fmt.Errorf("learning curve: %w in every fold", ErrSingleClass)
	}
	l.Info().Ints("train_sizes", lc.TrainSizes).Msg("learning curve computed")
	return lc, nil
}

func rows(x *mat.Dense, y []int, idx []int) (*mat.Dense, []int) {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	ys := make([]int, len(idx))
	for i, r := range idx {
		out.SetRow(i, x.RawRowView(r))
		ys[i] = y[r]
	}
	return out, ys
}

func accuracy(f *Forest, x mat.Matrix, y []int) (float64, error) {
	pred, err := f.Predict(x)
	if err != nil {
		return 0, err
	}
	hit := 0
	for i := range y {
		if pred[i] == y[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(y)), nil
}
