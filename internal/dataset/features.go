package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/propensity-cli/internal/logging"
)

// Derived feature and label names.
const (
	ClickRate         = "click_rate"
	PurchaseFrequency = "purchase_frequency"
	Label             = "purchased"

	colClicks    = "clicks"
	colVisits    = "visits"
	colPurchases = "purchases"
)

// Encodings maps a categorical feature to its sorted category list; the code
// of a category is its index.
type Encodings map[string][]string

// Code returns the numeric code of value for feature. Values never seen
// during fitting map to len(categories).
func (e Encodings) Code(feature, value string) float64 {
	cats := e[feature]
	i := sort.SearchStrings(cats, value)
	if i < len(cats) && cats[i] == value {
		return float64(i)
	}
	return float64(len(cats))
}

// EngineerOptions controls feature extraction.
type EngineerOptions struct {
	IDColumn      string
	ProductColumn string
	Features      []string
	// Encodings from a previous fit. When nil, categorical encodings are
	// derived from the data.
	Encodings Encodings
}

// FeatureTable is the model-ready view of the joined data.
type FeatureTable struct {
	IDs       []string
	Products  []string // nil when the data has no product column
	Names     []string
	X         *mat.Dense
	Labels    []int
	Encodings Encodings
	Warnings  []string
}

// Rows returns the number of observations.
func (t *FeatureTable) Rows() int { return len(t.IDs) }

// Column returns a copy of feature column j.
func (t *FeatureTable) Column(j int) []float64 {
	return mat.Col(nil, j, t.X)
}

// Positives counts rows labelled 1.
func (t *FeatureTable) Positives() int {
	n := 0
	for _, y := range t.Labels {
		n += y
	}
	return n
}

// Subset returns the rows at idx as a new table sharing encodings.
func (t *FeatureTable) Subset(idx []int) *FeatureTable {
	_, c := t.X.Dims()
	out := &FeatureTable{
		IDs:       make([]string, len(idx)),
		Names:     t.Names,
		Labels:    make([]int, len(idx)),
		Encodings: t.Encodings,
	}
	if t.Products != nil {
		out.Products = make([]string, len(idx))
	}
	data := make([]float64, 0, len(idx)*c)
	for i, r := range idx {
		out.IDs[i] = t.IDs[r]
		out.Labels[i] = t.Labels[r]
		if t.Products != nil {
			out.Products[i] = t.Products[r]
		}
		data = append(data, t.X.RawRowView(r)...)
	}
	if len(idx) > 0 {
		out.X = mat.NewDense(len(idx), c, data)
	}
	return out
}

// Engineer derives click_rate, purchase_frequency and the purchased label
// from a joined frame and assembles the feature matrix.
func Engineer(df dataframe.DataFrame, opt EngineerOptions) (*FeatureTable, error) {
	if len(opt.Features) == 0 {
		return nil, fmt.Errorf("no features configured")
	}
	for _, c := range []string{opt.IDColumn, colClicks, colVisits, colPurchases} {
		if !hasColumn(df, c) {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, c)
		}
	}
	n := df.Nrow()
	clicks, clicksOK := numericColumn(df, colClicks)
	visits, visitsOK := numericColumn(df, colVisits)
	purchases, purchasesOK := numericColumn(df, colPurchases)

	derived := map[string][]float64{
		ClickRate:         make([]float64, n),
		PurchaseFrequency: make([]float64, n),
	}
	zeroVisits := 0
	for i := 0; i < n; i++ {
		if !visitsOK[i] {
			continue
		}
		if visits[i] == 0 {
			zeroVisits++
			continue
		}
		derived[ClickRate][i] = clicks[i] / visits[i]
		derived[PurchaseFrequency][i] = purchases[i] / visits[i]
	}

	enc := opt.Encodings
	if enc == nil {
		enc = Encodings{}
	}
	cols := make([][]float64, len(opt.Features))
	valid := make([]bool, n)
	useClicks, useVisits := false, false
	for _, name := range opt.Features {
		switch name {
		case ClickRate:
			useClicks, useVisits = true, true
		case PurchaseFrequency:
			useVisits = true
		}
	}
	for i := range valid {
		valid[i] = purchasesOK[i] &&
			(!useClicks || clicksOK[i]) &&
			(!useVisits || visitsOK[i])
	}
	for j, name := range opt.Features {
		if v, ok := derived[name]; ok {
			cols[j] = v
			continue
		}
		if !hasColumn(df, name) {
			return nil, fmt.Errorf("feature %w %q", ErrMissingColumn, name)
		}
		vals, ok, err := featureColumn(df, name, enc, opt.Encodings == nil)
		if err != nil {
			return nil, err
		}
		for i := range valid {
			valid[i] = valid[i] && ok[i]
		}
		cols[j] = vals
	}

	t := &FeatureTable{Names: append([]string(nil), opt.Features...), Encodings: enc}
	ids := df.Col(opt.IDColumn).Records()
	var products []string
	if opt.ProductColumn != "" && hasColumn(df, opt.ProductColumn) {
		products = df.Col(opt.ProductColumn).Records()
		t.Products = []string{}
	}
	data := make([]float64, 0, n*len(cols))
	dropped := 0
	for i := 0; i < n; i++ {
		if !valid[i] {
			dropped++
			continue
		}
		t.IDs = append(t.IDs, strings.TrimSpace(ids[i]))
		if products != nil {
			t.Products = append(t.Products, strings.TrimSpace(products[i]))
		}
		label := 0
		if purchases[i] > 0 {
			label = 1
		}
		t.Labels = append(t.Labels, label)
		for j := range cols {
			data = append(data, cols[j][i])
		}
	}
	if len(t.IDs) == 0 {
		return nil, fmt.Errorf("no complete rows after feature extraction: %w", ErrEmptyTable)
	}
	t.X = mat.NewDense(len(t.IDs), len(cols), data)

	if zeroVisits > 0 {
		t.Warnings = append(t.Warnings, fmt.Sprintf("%d rows with zero visits: ratio features set to 0", zeroVisits))
	}
	if dropped > 0 {
		t.Warnings = append(t.Warnings, fmt.Sprintf("dropped %d rows with missing feature values", dropped))
	}
	l := logging.With("features")
	for _, w := range t.Warnings {
		l.Warn().Msg(w)
	}
	l.Info().
		Int("rows", t.Rows()).
		Int("positives", t.Positives()).
		Strs("features", t.Names).
		Msg("features engineered")
	return t, nil
}

// numericColumn parses a column as numbers; ok[i] is false for missing or
// unparsable cells, whose value is 0.
func numericColumn(df dataframe.DataFrame, name string) ([]float64, []bool) {
	recs := df.Col(name).Records()
	vals := make([]float64, len(recs))
	ok := make([]bool, len(recs))
	for i, r := range recs {
		vals[i], ok[i] = parseNumeric(r)
	}
	return vals, ok
}

// featureColumn returns numeric values for a feature, falling back to an
// ordinal encoding when any present value is non-numeric.
func featureColumn(df dataframe.DataFrame, name string, enc Encodings, fit bool) ([]float64, []bool, error) {
	if _, categorical := enc[name]; !categorical {
		vals, ok := numericColumn(df, name)
		recs := df.Col(name).Records()
		numeric := true
		for i := range recs {
			if !ok[i] && !isMissing(recs[i]) {
				numeric = false
				break
			}
		}
		if numeric {
			return vals, ok, nil
		}
		if !fit {
			return nil, nil, fmt.Errorf("feature %q is non-numeric but the model has no encoding for it", name)
		}
		enc[name] = categories(recs)
	}
	recs := df.Col(name).Records()
	vals := make([]float64, len(recs))
	ok := make([]bool, len(recs))
	for i, r := range recs {
		r = strings.TrimSpace(r)
		if isMissing(r) {
			continue
		}
		vals[i], ok[i] = enc.Code(name, r), true
	}
	return vals, ok, nil
}

func categories(recs []string) []string {
	set := make(map[string]struct{})
	for _, r := range recs {
		r = strings.TrimSpace(r)
		if isMissing(r) {
			continue
		}
		set[r] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
