package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/propensity-cli/internal/rank"
	"github.com/KaramelBytes/propensity-cli/internal/utils"
)

// Export file names and sheet names.
const (
	TopCSV      = "top_customers.csv"
	ResultsXLSX = "results.xlsx"

	SheetResults = "results"
	SheetRanked  = "ranked"
)

// WriteTopCSV writes a single customer_id column in rank order.
func WriteTopCSV(path string, top []rank.Scored) error {
	ids := make([]string, len(top))
	for i, s := range top {
		ids[i] = s.CustomerID
	}
	df := dataframe.New(series.New(ids, series.String, "customer_id"))
	if df.Err != nil {
		return fmt.Errorf("build frame: %w", df.Err)
	}
	var b strings.Builder
	if err := df.WriteCSV(&b); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return utils.SafeWriteFile(path, []byte(b.String()))
}

// WriteXLSX writes the per-product top lists. The results sheet has one row
// per product with its customers comma-joined; the ranked sheet has one row
// per (product, rank).
func WriteXLSX(path string, rankings []rank.ProductRanking) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetResults); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, SheetResults, 1, []any{"product_id", "top_customers"}); err != nil {
		return err
	}
	for i, r := range rankings {
		if err := setRow(f, SheetResults, i+2, []any{r.ProductID, strings.Join(r.CustomerIDs(), ",")}); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetRanked); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	if err := setRow(f, SheetRanked, 1, []any{"product_id", "rank", "customer_id", "probability"}); err != nil {
		return err
	}
	row := 2
	for _, r := range rankings {
		for i, s := range r.Top {
			if err := setRow(f, SheetRanked, row, []any{r.ProductID, i + 1, s.CustomerID, s.Probability}); err != nil {
				return err
			}
			row++
		}
	}

	tmp := path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, vals []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	return nil
}
