package dataset

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"

	"github.com/KaramelBytes/propensity-cli/internal/logging"
)

// JoinStats reports how many keys of each table did not survive the join.
type JoinStats struct {
	Rows                int
	DroppedClicks       int
	DroppedSales        int
	DroppedDemographics int
}

// Join inner-joins clicks, sales and demographics on key.
func Join(in *Inputs, key string) (dataframe.DataFrame, JoinStats, error) {
	var st JoinStats
	for name, df := range map[string]dataframe.DataFrame{
		"clicks": in.Clicks, "sales": in.Sales, "demographics": in.Demographics,
	} {
		if !hasColumn(df, key) {
			return dataframe.DataFrame{}, st, fmt.Errorf("%s: %w %q", name, ErrMissingColumn, key)
		}
	}

	if !overlaps(keySet(in.Clicks, key), keySet(in.Sales, key), keySet(in.Demographics, key)) {
		return dataframe.DataFrame{}, st, ErrEmptyJoin
	}

	joined := in.Clicks.InnerJoin(in.Sales, key)
	if joined.Err != nil {
		return joined, st, fmt.Errorf("join clicks/sales: %w", joined.Err)
	}
	joined = joined.InnerJoin(in.Demographics, key)
	if joined.Err != nil {
		return joined, st, fmt.Errorf("join demographics: %w", joined.Err)
	}

	kept := keySet(joined, key)
	st.Rows = joined.Nrow()
	st.DroppedClicks = missingKeys(in.Clicks, key, kept)
	st.DroppedSales = missingKeys(in.Sales, key, kept)
	st.DroppedDemographics = missingKeys(in.Demographics, key, kept)

	logging.With("join").Info().
		Int("rows", st.Rows).
		Int("dropped_clicks", st.DroppedClicks).
		Int("dropped_sales", st.DroppedSales).
		Int("dropped_demographics", st.DroppedDemographics).
		Msg("joined tables")

	if st.Rows == 0 {
		return joined, st, ErrEmptyJoin
	}
	return joined, st, nil
}

func keySet(df dataframe.DataFrame, key string) map[string]struct{} {
	set := make(map[string]struct{}, df.Nrow())
	for _, k := range df.Col(key).Records() {
		set[k] = struct{}{}
	}
	return set
}

// missingKeys counts distinct keys of df absent from kept.
func missingKeys(df dataframe.DataFrame, key string, kept map[string]struct{}) int {
	seen := make(map[string]struct{})
	n := 0
	for _, k := range df.Col(key).Records() {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := kept[k]; !ok {
			n++
		}
	}
	return n
}

func overlaps(sets ...map[string]struct{}) bool {
	if len(sets) == 0 {
		return false
	}
	for k := range sets[0] {
		all := true
		for _, s := range sets[1:] {
			if _, ok := s[k]; !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
