package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/propensity-cli/internal/logging"
)

// Collapse merges rows sharing the same key tuple. Numeric columns, including
// ones written with ',' decimals, are summed; other columns keep the first
// value seen. Row order follows first occurrence.
// The frame is returned unchanged when keys are already unique.
func Collapse(df dataframe.DataFrame, keys []string) (dataframe.DataFrame, error) {
	for _, k := range keys {
		if !hasColumn(df, k) {
			return df, fmt.Errorf("%w %q", ErrMissingColumn, k)
		}
	}
	keyCols := make([][]string, len(keys))
	for i, k := range keys {
		keyCols[i] = df.Col(k).Records()
	}
	n := df.Nrow()
	groupOf := make([]int, n)
	index := make(map[string]int)
	var firstRow []int
	for r := 0; r < n; r++ {
		parts := make([]string, len(keys))
		for i := range keys {
			parts[i] = strings.TrimSpace(keyCols[i][r])
		}
		k := strings.Join(parts, "\x1f")
		g, ok := index[k]
		if !ok {
			g = len(firstRow)
			index[k] = g
			firstRow = append(firstRow, r)
		}
		groupOf[r] = g
	}
	if len(firstRow) == n {
		return df, nil
	}

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	cols := make([]series.Series, 0, df.Ncol())
	for _, name := range df.Names() {
		col := df.Col(name)
		vals, ok := summable(col.Records())
		if isKey[name] || !ok {
			cols = append(cols, col.Subset(firstRow))
			continue
		}
		sums := make([]float64, len(firstRow))
		seen := make([]bool, len(firstRow))
		for r, v := range vals {
			if math.IsNaN(v) {
				continue
			}
			sums[groupOf[r]] += v
			seen[groupOf[r]] = true
		}
		// a group with no observed value stays missing
		for g := range sums {
			if !seen[g] {
				sums[g] = math.NaN()
			}
		}
		cols = append(cols, series.New(sums, series.Float, name))
	}
	out := dataframe.New(cols...)
	if out.Err != nil {
		return df, fmt.Errorf("rebuild frame: %w", out.Err)
	}
	logging.With("load").Debug().
		Strs("keys", keys).
		Int("rows_in", n).
		Int("rows_out", out.Nrow()).
		Msg("collapsed duplicate keys")
	return out, nil
}

// summable parses every record as a number, NaN for missing cells. It reports
// false when any present value is not numeric or nothing is present.
func summable(recs []string) ([]float64, bool) {
	vals := make([]float64, len(recs))
	present := false
	for i, r := range recs {
		if isMissing(r) {
			vals[i] = math.NaN()
			continue
		}
		x, ok := parseNumeric(r)
		if !ok {
			return nil, false
		}
		vals[i] = x
		present = true
	}
	return vals, present
}
