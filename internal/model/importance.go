package model

import (
	"errors"

	"github.com/sjwhitworth/golearn/trees"
)

// ErrNoTrees is returned when no fitted tree structure could be inspected.
var ErrNoTrees = errors.New("no inspectable trees in forest")

// FeatureImportances returns the mean decrease in Gini impurity per feature,
// averaged over trees and normalized to sum to 1. Features never used for a
// split get 0.
func (f *Forest) FeatureImportances() ([]float64, error) {
	if !f.Trained() {
		return nil, ErrNotTrained
	}
	index := make(map[string]int, len(f.Names))
	for i, n := range f.Names {
		index[n] = i
	}
	total := make([]float64, len(f.Names))
	counted, read := 0, 0
	for _, m := range f.rf.Model.Models {
		root := treeRoot(m)
		if root == nil {
			continue
		}
		read++
		per := make([]float64, len(f.Names))
		accumulateGini(root, index, per)
		if normalize(per) {
			for i, v := range per {
				total[i] += v
			}
			counted++
		}
	}
	if read == 0 {
		return nil, ErrNoTrees
	}
	if counted > 0 {
		for i := range total {
			total[i] /= float64(counted)
		}
		normalize(total)
	}
	return total, nil
}

// treeRoot returns the root node of a bagged tree. The forest bags ID3
// trees with random feature subsets.
func treeRoot(m any) *trees.DecisionTreeNode {
	switch t := m.(type) {
	case *trees.ID3DecisionTree:
		return t.Root
	case *trees.RandomTree:
		return t.Root
	}
	return nil
}

func accumulateGini(n *trees.DecisionTreeNode, index map[string]int, out []float64) {
	if n == nil || len(n.Children) == 0 || n.SplitRule == nil || n.SplitRule.SplitAttr == nil {
		return
	}
	parentN, parentG := gini(n.ClassDist)
	dec := parentN * parentG
	for _, c := range n.Children {
		cn, cg := gini(c.ClassDist)
		dec -= cn * cg
		accumulateGini(c, index, out)
	}
	if j, ok := index[n.SplitRule.SplitAttr.GetName()]; ok && dec > 0 {
		out[j] += dec
	}
}

// gini returns the sample count and Gini impurity of a class distribution.
func gini(dist map[string]int) (float64, float64) {
	total := 0
	for _, c := range dist {
		total += c
	}
	if total == 0 {
		return 0, 0
	}
	g := 1.0
	for _, c := range dist {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return float64(total), g
}

func normalize(v []float64) bool {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return false
	}
	for i := range v {
		v[i] /= sum
	}
	return true
}
