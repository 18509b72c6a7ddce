package features

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TrainTestSplit shuffles row indices with a seeded source and returns
// disjoint train and test index sets. The test set holds ceil(n*testSize)
// rows.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0,1), got %v", testSize)
	}
	nTest := int(math.Ceil(float64(n) * testSize))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, fmt.Errorf("cannot split %d rows with test size %v", n, testSize)
	}
	rnd := rand.New(rand.NewSource(seed))
	perm := rnd.Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// StratifiedFolds assigns row indices to k folds so each fold keeps roughly
// the class balance of labels. Rows are taken class by class in original
// order and dealt round-robin, so fold sizes differ by at most one.
func StratifiedFolds(labels []int, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if len(labels) < k {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, len(labels))
	}
	byClass := make(map[int][]int)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	folds := make([][]int, k)
	n := 0
	for _, c := range classes {
		for _, i := range byClass[c] {
			folds[n%k] = append(folds[n%k], i)
			n++
		}
	}
	return folds, nil
}
