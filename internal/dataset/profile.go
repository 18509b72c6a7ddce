package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/montanaflynn/stats"
)

// ColumnProfile summarizes one column.
type ColumnProfile struct {
	Name    string
	Kind    string // numeric|categorical
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Mean, Std, Min, Q25, Median, Q75, Max float64
	// Categorical top values
	TopValues []CategoryCount
}

// CategoryCount is a value with its frequency.
type CategoryCount struct {
	Value string
	Count int
}

// Profile is a per-column summary of a table.
type Profile struct {
	Name    string
	Rows    int
	Columns []ColumnProfile
}

// ProfileFrame computes descriptive statistics for every column of df.
func ProfileFrame(name string, df dataframe.DataFrame) (*Profile, error) {
	p := &Profile{Name: name, Rows: df.Nrow()}
	for _, col := range df.Names() {
		recs := df.Col(col).Records()
		cp := ColumnProfile{Name: col}
		var nums []float64
		counts := make(map[string]int)
		nonNumeric := 0
		for _, r := range recs {
			r = strings.TrimSpace(r)
			if isMissing(r) {
				cp.Missing++
				continue
			}
			cp.NonNull++
			counts[r]++
			if x, ok := parseNumeric(r); ok {
				nums = append(nums, x)
			} else {
				nonNumeric++
			}
		}
		cp.Unique = len(counts)
		if len(nums) > 0 && nonNumeric == 0 {
			cp.Kind = "numeric"
			if err := describeNumeric(&cp, nums); err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
		} else {
			cp.Kind = "categorical"
			cp.TopValues = topValues(counts, 8)
		}
		p.Columns = append(p.Columns, cp)
	}
	return p, nil
}

func describeNumeric(cp *ColumnProfile, data stats.Float64Data) error {
	var err error
	if cp.Mean, err = stats.Mean(data); err != nil {
		return err
	}
	if cp.Std, err = stats.StandardDeviationSample(data); err != nil {
		cp.Std = 0
	}
	if cp.Min, err = stats.Min(data); err != nil {
		return err
	}
	if cp.Max, err = stats.Max(data); err != nil {
		return err
	}
	if cp.Median, err = stats.Median(data); err != nil {
		return err
	}
	if q, qerr := stats.Quartile(data); qerr == nil {
		cp.Q25, cp.Q75 = q.Q1, q.Q3
	} else {
		cp.Q25, cp.Q75 = cp.Median, cp.Median
	}
	return nil
}

func topValues(counts map[string]int, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

// Markdown renders the profile as a compact report.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET PROFILE]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(p.Columns)))
	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Columns {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", c.Name, c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			b.WriteString(fmt.Sprintf(" — mean %.4g, std %.4g, min %.4g, 25%% %.4g, 50%% %.4g, 75%% %.4g, max %.4g",
				c.Mean, c.Std, c.Min, c.Q25, c.Median, c.Q75, c.Max))
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString(" — top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", kv.Value, kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
