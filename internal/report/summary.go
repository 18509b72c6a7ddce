package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/propensity-cli/internal/dataset"
	"github.com/KaramelBytes/propensity-cli/internal/model"
	"github.com/KaramelBytes/propensity-cli/internal/rank"
)

// SummaryFile is the Markdown digest written per run.
const SummaryFile = "summary.md"

// Summary collects what a reader needs to judge a run at a glance.
type Summary struct {
	RunID      string
	Join       dataset.JoinStats
	Train      int
	Test       int
	Evaluation *model.Report
	Features   []string
	Importance []float64
	Primary    rank.ProductRanking
	Products   []rank.ProductRanking
	Missing    int
	Warnings   []string
}

// Markdown renders the summary.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("# Propensity run")
	if s.RunID != "" {
		b.WriteString(" " + s.RunID)
	}
	b.WriteString("\n\n## Data\n")
	b.WriteString(fmt.Sprintf("- joined rows: %d\n", s.Join.Rows))
	b.WriteString(fmt.Sprintf("- dropped keys: clicks %d, sales %d, demographics %d\n",
		s.Join.DroppedClicks, s.Join.DroppedSales, s.Join.DroppedDemographics))
	b.WriteString(fmt.Sprintf("- train/test: %d/%d\n", s.Train, s.Test))
	if s.Missing > 0 {
		b.WriteString(fmt.Sprintf("- segment customers not in joined data: %d\n", s.Missing))
	}

	if s.Evaluation != nil {
		m := s.Evaluation.Metrics
		b.WriteString("\n## Evaluation\n")
		b.WriteString("| metric | value |\n|---|---|\n")
		b.WriteString(fmt.Sprintf("| accuracy | %.3f |\n| precision | %.3f |\n| recall | %.3f |\n| f1 | %.3f |\n",
			m.Accuracy, m.Precision, m.Recall, m.F1))
		if m.AUCDefined {
			b.WriteString(fmt.Sprintf("| auc | %.3f |\n", m.AUC))
		}
	}

	if len(s.Importance) == len(s.Features) && len(s.Features) > 0 {
		b.WriteString("\n## Feature importance\n")
		for i, f := range s.Features {
			b.WriteString(fmt.Sprintf("- %s: %.4f\n", f, s.Importance[i]))
		}
	}

	if len(s.Primary.Top) > 0 {
		b.WriteString(fmt.Sprintf("\n## Top customers for product %s\n", s.Primary.ProductID))
		for i, c := range s.Primary.Top {
			b.WriteString(fmt.Sprintf("%d. %s (%.3f)\n", i+1, c.CustomerID, c.Probability))
		}
	}
	if len(s.Products) > 0 {
		b.WriteString("\n## Per-product targets\n")
		for _, p := range s.Products {
			b.WriteString(fmt.Sprintf("- %s: %s\n", p.ProductID, strings.Join(p.CustomerIDs(), ", ")))
		}
	}
	if len(s.Warnings) > 0 {
		b.WriteString("\n## Warnings\n")
		for _, w := range s.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}
