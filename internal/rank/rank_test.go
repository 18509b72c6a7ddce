package rank

import (
	"errors"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/propensity-cli/internal/dataset"
)

type identity struct{}

func (identity) Transform(x mat.Matrix) (*mat.Dense, error) { return mat.DenseCopyOf(x), nil }

// firstColumn scores each row by its first feature.
type firstColumn struct{}

func (firstColumn) PredictProba(x mat.Matrix) ([]float64, error) {
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = x.At(i, 0)
	}
	return out, nil
}

func table(products []string) *dataset.FeatureTable {
	return &dataset.FeatureTable{
		IDs:      []string{"a", "b", "c", "d"},
		Products: products,
		Names:    []string{"p"},
		X:        mat.NewDense(4, 1, []float64{0.2, 0.9, 0.5, 0.7}),
		Labels:   []int{0, 1, 0, 1},
	}
}

func TestScoreSegment(t *testing.T) {
	res, err := ScoreSegment(table(nil), []string{"b", "c", "zz", "c"}, identity{}, firstColumn{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(res.Scored) != 2 {
		t.Fatalf("scored %d rows, want 2", len(res.Scored))
	}
	if !reflect.DeepEqual(res.Missing, []string{"zz"}) {
		t.Fatalf("missing = %v", res.Missing)
	}
	if want := (Scored{CustomerID: "b", Probability: 0.9}); res.Scored[0] != want {
		t.Fatalf("scored[0] = %+v", res.Scored[0])
	}
	if want := (Scored{CustomerID: "c", Probability: 0.5}); res.Scored[1] != want {
		t.Fatalf("scored[1] = %+v", res.Scored[1])
	}
}

func TestScoreSegmentEmpty(t *testing.T) {
	res, err := ScoreSegment(table(nil), []string{"x", "y"}, identity{}, firstColumn{})
	if !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("err = %v, want ErrEmptySegment", err)
	}
	if len(res.Missing) != 2 {
		t.Fatalf("missing = %v", res.Missing)
	}
}

func TestTopNOrderingAndTies(t *testing.T) {
	in := []Scored{
		{CustomerID: "c", Probability: 0.5},
		{CustomerID: "a", Probability: 0.9},
		{CustomerID: "b", Probability: 0.5},
		{CustomerID: "a", Probability: 0.1},
		{CustomerID: "d", Probability: 0.2},
	}
	top := TopN(in, 3)
	var ids []string
	for _, s := range top {
		ids = append(ids, s.CustomerID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Fatalf("top ids = %v", ids)
	}
	if top[0].Probability != 0.9 {
		t.Fatalf("duplicate customer should keep best score, got %v", top[0].Probability)
	}
	if n := len(TopN(in, 0)); n != 4 {
		t.Fatalf("TopN(0) returned %d, want all 4 customers", n)
	}
	if n := len(TopN(in, 10)); n != 4 {
		t.Fatalf("TopN(10) returned %d, want 4", n)
	}
	if in[0].CustomerID != "c" {
		t.Fatalf("input reordered")
	}
}

func TestTopPerProductWithoutProductIDs(t *testing.T) {
	res, err := ScoreSegment(table(nil), []string{"a", "b", "c", "d"}, identity{}, firstColumn{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	got := TopPerProduct(res.Scored, []string{"12345", "67890"}, 2)
	if len(got) != 2 {
		t.Fatalf("got %d rankings", len(got))
	}
	for _, pr := range got {
		if ids := pr.CustomerIDs(); !reflect.DeepEqual(ids, []string{"b", "d"}) {
			t.Fatalf("%s: ids = %v", pr.ProductID, ids)
		}
		for _, s := range pr.Top {
			if s.ProductID != pr.ProductID {
				t.Fatalf("%s: entry tagged %q", pr.ProductID, s.ProductID)
			}
		}
	}
}

func TestTopPerProductFiltersByProduct(t *testing.T) {
	res, err := ScoreSegment(table([]string{"1", "2", "1", "2"}), []string{"a", "b", "c", "d"}, identity{}, firstColumn{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	got := TopPerProduct(res.Scored, []string{"1", "2", "3"}, 1)
	if ids := got[0].CustomerIDs(); !reflect.DeepEqual(ids, []string{"c"}) {
		t.Fatalf("product 1: %v", ids)
	}
	if ids := got[1].CustomerIDs(); !reflect.DeepEqual(ids, []string{"b"}) {
		t.Fatalf("product 2: %v", ids)
	}
	if len(got[2].Top) != 0 {
		t.Fatalf("product 3 should be empty, got %v", got[2].Top)
	}
}
