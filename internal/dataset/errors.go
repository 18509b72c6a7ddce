package dataset

import "errors"

var (
	// ErrMissingColumn indicates a required column is absent from a table.
	ErrMissingColumn = errors.New("missing column")
	// ErrEmptyJoin indicates the inner join produced no rows.
	ErrEmptyJoin = errors.New("join produced no rows")
	// ErrEmptyTable indicates a table has a header but no data rows.
	ErrEmptyTable = errors.New("table has no rows")
)
