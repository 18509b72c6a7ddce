package features

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	var s StandardScaler
	z, err := s.FitTransform(x)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, 1.118033988749895, s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1])

	col := mat.Col(nil, 0, z)
	var sum float64
	for _, v := range col {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-12)
	assert.InDelta(t, -1.3416407864998738, z.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, z.At(2, 1))
}

func TestScalerTransformUsesFittedStats(t *testing.T) {
	var s StandardScaler
	require.NoError(t, s.Fit(mat.NewDense(2, 1, []float64{0, 10})))
	z, err := s.Transform(mat.NewDense(1, 1, []float64{15}))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, z.At(0, 0), 1e-12)
}

func TestScalerErrors(t *testing.T) {
	var s StandardScaler
	_, err := s.Transform(mat.NewDense(1, 1, nil))
	assert.True(t, errors.Is(err, ErrNotFitted))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	assert.Error(t, err)
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(10, 0.25, 42)
	require.NoError(t, err)
	assert.Len(t, test, 3)
	assert.Len(t, train, 7)

	all := append(append([]int{}, train...), test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	train2, test2, err := TrainTestSplit(10, 0.25, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestTrainTestSplitRejects(t *testing.T) {
	_, _, err := TrainTestSplit(10, 0, 1)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(10, 1, 1)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(1, 0.5, 1)
	assert.Error(t, err)
}

func TestStratifiedFolds(t *testing.T) {
	labels := []int{0, 0, 0, 0, 1, 1, 1, 1, 0, 1}
	folds, err := StratifiedFolds(labels, 5)
	require.NoError(t, err)
	require.Len(t, folds, 5)
	seen := map[int]bool{}
	for _, f := range folds {
		pos := 0
		for _, i := range f {
			assert.False(t, seen[i])
			seen[i] = true
			pos += labels[i]
		}
		assert.Len(t, f, 2)
		assert.Equal(t, 1, pos)
	}
	assert.Len(t, seen, len(labels))
}
