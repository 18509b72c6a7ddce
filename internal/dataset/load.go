package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/propensity-cli/internal/logging"
)

// LoadOptions controls how a single table is read.
type LoadOptions struct {
	// IDColumn is forced to string type so joins compare identical keys.
	IDColumn string
	// Delimiter for CSV. If 0, chosen by file extension.
	Delimiter rune
	// SheetName selects an XLSX sheet; empty means the first sheet.
	SheetName string
}

// Inputs holds the four source tables.
type Inputs struct {
	Clicks       dataframe.DataFrame
	Sales        dataframe.DataFrame
	Demographics dataframe.DataFrame
	Segment      dataframe.DataFrame
}

// Paths names the files backing each input table.
type Paths struct {
	Clicks       string
	Sales        string
	Demographics string
	Segment      string
}

// LoadTable reads a CSV/TSV or XLSX file into a DataFrame.
func LoadTable(path string, opt LoadOptions) (dataframe.DataFrame, error) {
	var df dataframe.DataFrame
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".xlsx") {
		records, err := readXLSX(path, opt.SheetName)
		if err != nil {
			return df, err
		}
		df = dataframe.LoadRecords(records, loadOpts(opt)...)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return df, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		delim := opt.Delimiter
		if delim == 0 {
			delim = sniffDelimiter(path)
		}
		df = dataframe.ReadCSV(f, append(loadOpts(opt), dataframe.WithDelimiter(delim))...)
	}
	if df.Err != nil {
		return df, fmt.Errorf("parse %s: %w", filepath.Base(path), df.Err)
	}
	if opt.IDColumn != "" && !hasColumn(df, opt.IDColumn) {
		return df, fmt.Errorf("%s: %w %q", filepath.Base(path), ErrMissingColumn, opt.IDColumn)
	}
	if df.Nrow() == 0 {
		return df, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyTable)
	}
	logging.With("load").Debug().
		Str("file", filepath.Base(path)).
		Int("rows", df.Nrow()).
		Int("cols", df.Ncol()).
		Msg("table loaded")
	return df, nil
}

// LoadInputs reads all four tables and collapses duplicate keys in the
// click and sales tables.
func LoadInputs(p Paths, opt LoadOptions, productColumn string) (*Inputs, error) {
	var in Inputs
	var err error
	if in.Clicks, err = LoadTable(p.Clicks, opt); err != nil {
		return nil, fmt.Errorf("load clicks: %w", err)
	}
	if in.Sales, err = LoadTable(p.Sales, opt); err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	if in.Demographics, err = LoadTable(p.Demographics, opt); err != nil {
		return nil, fmt.Errorf("load demographics: %w", err)
	}
	if in.Segment, err = LoadTable(p.Segment, opt); err != nil {
		return nil, fmt.Errorf("load segment: %w", err)
	}

	if in.Clicks, err = Collapse(in.Clicks, []string{opt.IDColumn}); err != nil {
		return nil, fmt.Errorf("collapse clicks: %w", err)
	}
	salesKeys := []string{opt.IDColumn}
	if productColumn != "" && hasColumn(in.Sales, productColumn) {
		salesKeys = append(salesKeys, productColumn)
	}
	if in.Sales, err = Collapse(in.Sales, salesKeys); err != nil {
		return nil, fmt.Errorf("collapse sales: %w", err)
	}
	return &in, nil
}

// SegmentIDs returns the unique customer IDs of a segment table in file order.
func SegmentIDs(segment dataframe.DataFrame, idColumn string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, id := range segment.Col(idColumn).Records() {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func loadOpts(opt LoadOptions) []dataframe.LoadOption {
	opts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.NaNValues([]string{"", "NA", "NaN", "nan", "null", "NULL"}),
	}
	if opt.IDColumn != "" {
		opts = append(opts, dataframe.WithTypes(map[string]series.Type{opt.IDColumn: series.String}))
	}
	return opts
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: no sheets", filepath.Base(path))
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyTable)
	}
	// GetRows trims trailing empty cells; pad to header width
	width := len(rows[0])
	for i, r := range rows {
		if len(r) < width {
			padded := make([]string, width)
			copy(padded, r)
			rows[i] = padded
		}
	}
	return rows, nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

// ParseDelimiter maps a flag/config value to a delimiter rune.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case ";":
		return ';', nil
	case "\t", "tab":
		return '\t', nil
	default:
		return 0, fmt.Errorf("unsupported delimiter: %q (use ',' | ';' | 'tab')", s)
	}
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}
