// Package rank scores segment customers and builds the top-N lists.
package rank

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/propensity-cli/internal/dataset"
	"github.com/KaramelBytes/propensity-cli/internal/logging"
)

// ErrEmptySegment is returned when no segment customer is present in the
// feature table.
var ErrEmptySegment = errors.New("no segment customers found in the joined data")

// Scaler standardizes a feature matrix with previously fitted statistics.
type Scaler interface {
	Transform(x mat.Matrix) (*mat.Dense, error)
}

// Scorer returns a purchase probability per row.
type Scorer interface {
	PredictProba(x mat.Matrix) ([]float64, error)
}

// Scored is one customer (and product, when known) with its probability.
type Scored struct {
	CustomerID  string  `json:"customer_id"`
	ProductID   string  `json:"product_id,omitempty"`
	Probability float64 `json:"probability"`
}

// Result is the outcome of scoring a segment.
type Result struct {
	Scored  []Scored
	Missing []string // segment IDs absent from the feature table
}

// ScoreSegment scores the rows of t whose customer is in segment.
func ScoreSegment(t *dataset.FeatureTable, segment []string, sc Scaler, m Scorer) (*Result, error) {
	want := make(map[string]struct{}, len(segment))
	for _, id := range segment {
		want[id] = struct{}{}
	}
	present := make(map[string]struct{})
	var idx []int
	for i, id := range t.IDs {
		if _, ok := want[id]; ok {
			idx = append(idx, i)
			present[id] = struct{}{}
		}
	}
	res := &Result{}
	seen := make(map[string]struct{}, len(segment))
	for _, id := range segment {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := present[id]; !ok {
			res.Missing = append(res.Missing, id)
		}
	}
	l := logging.With("score")
	if len(res.Missing) > 0 {
		l.Warn().Int("missing", len(res.Missing)).Msg("segment customers absent from joined data")
	}
	if len(idx) == 0 {
		return res, ErrEmptySegment
	}

	sub := t.Subset(idx)
	x, err := sc.Transform(sub.X)
	if err != nil {
		return nil, fmt.Errorf("scale segment: %w", err)
	}
	proba, err := m.PredictProba(x)
	if err != nil {
		return nil, fmt.Errorf("predict segment: %w", err)
	}
	res.Scored = make([]Scored, len(idx))
	for i := range idx {
		s := Scored{CustomerID: sub.IDs[i], Probability: proba[i]}
		if sub.Products != nil {
			s.ProductID = sub.Products[i]
		}
		res.Scored[i] = s
	}
	l.Info().Int("scored", len(res.Scored)).Msg("segment scored")
	return res, nil
}

// TopN returns the n best customers: probability descending, ties by
// customer ID ascending, each customer at most once with its best score.
// n <= 0 returns every customer.
func TopN(scored []Scored, n int) []Scored {
	sorted := append([]Scored(nil), scored...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Probability != sorted[j].Probability {
			return sorted[i].Probability > sorted[j].Probability
		}
		return sorted[i].CustomerID < sorted[j].CustomerID
	})
	out := make([]Scored, 0, len(sorted))
	seen := make(map[string]struct{}, len(sorted))
	for _, s := range sorted {
		if _, dup := seen[s.CustomerID]; dup {
			continue
		}
		seen[s.CustomerID] = struct{}{}
		out = append(out, s)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// ProductRanking is the top list for one product.
type ProductRanking struct {
	ProductID string   `json:"product_id"`
	Top       []Scored `json:"top"`
}

// CustomerIDs lists the ranked customers in order.
func (p ProductRanking) CustomerIDs() []string {
	ids := make([]string, len(p.Top))
	for i, s := range p.Top {
		ids[i] = s.CustomerID
	}
	return ids
}

// TopPerProduct ranks customers for each product. When scores carry product
// IDs only that product's rows are ranked; otherwise every product receives
// the segment-wide ranking.
func TopPerProduct(scored []Scored, products []string, n int) []ProductRanking {
	hasProducts := false
	for _, s := range scored {
		if s.ProductID != "" {
			hasProducts = true
			break
		}
	}
	out := make([]ProductRanking, 0, len(products))
	for _, p := range products {
		rows := scored
		if hasProducts {
			rows = ForProduct(scored, p)
		}
		top := TopN(rows, n)
		for i := range top {
			top[i].ProductID = p
		}
		out = append(out, ProductRanking{ProductID: p, Top: top})
	}
	return out
}

// ForProduct filters scores to one product. Scores without product IDs are
// returned unchanged.
func ForProduct(scored []Scored, product string) []Scored {
	var out []Scored
	tagged := false
	for _, s := range scored {
		if s.ProductID == "" {
			continue
		}
		tagged = true
		if s.ProductID == product {
			out = append(out, s)
		}
	}
	if !tagged {
		return scored
	}
	return out
}
