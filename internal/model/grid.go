// Package model wraps the random forest classifier, its persistence and the
// evaluation helpers used after training.
package model

import (
	"fmt"

	"github.com/sjwhitworth/golearn/base"
	"gonum.org/v1/gonum/mat"
)

const (
	classAttrName = "purchased"
	positive      = "1"
	negative      = "0"
)

// schema is the attribute layout shared by every grid a forest sees. Trees
// resolve split attributes by name, so training and scoring grids must agree.
type schema struct {
	attrs []*base.FloatAttribute
	class *base.CategoricalAttribute
}

func newSchema(names []string) *schema {
	s := &schema{attrs: make([]*base.FloatAttribute, len(names))}
	for i, n := range names {
		s.attrs[i] = base.NewFloatAttribute(n)
	}
	s.class = base.NewCategoricalAttribute()
	s.class.SetName(classAttrName)
	// fix system values so "0" and "1" encode the same in every grid
	s.class.GetSysValFromString(negative)
	s.class.GetSysValFromString(positive)
	return s
}

// grid copies x (and y, when non-nil) into golearn dense instances.
func (s *schema) grid(x mat.Matrix, y []int) (*base.DenseInstances, error) {
	r, c := x.Dims()
	if c != len(s.attrs) {
		return nil, fmt.Errorf("expected %d feature columns, got %d", len(s.attrs), c)
	}
	if y != nil && len(y) != r {
		return nil, fmt.Errorf("have %d rows but %d labels", r, len(y))
	}
	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, c)
	for j, a := range s.attrs {
		specs[j] = inst.AddAttribute(a)
	}
	classSpec := inst.AddAttribute(s.class)
	if err := inst.AddClassAttribute(s.class); err != nil {
		return nil, fmt.Errorf("set class attribute: %w", err)
	}
	if err := inst.Extend(r); err != nil {
		return nil, fmt.Errorf("allocate %d rows: %w", r, err)
	}
	for i := 0; i < r; i++ {
		for j, spec := range specs {
			inst.Set(spec, i, base.PackFloatToBytes(x.At(i, j)))
		}
		label := negative
		if y != nil && y[i] == 1 {
			label = positive
		}
		inst.Set(classSpec, i, s.class.GetSysValFromString(label))
	}
	return inst, nil
}
