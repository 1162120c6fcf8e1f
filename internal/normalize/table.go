// Package normalize maps CSV files with drifting column sets onto the canonical
// play, game and team-stat schemas.
package normalize

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrSchema is returned when input cannot be read as tabular data at all
var ErrSchema = errors.New("input is not tabular")

// SchemaError describes why a file could not be parsed
type SchemaError struct {
	Line int
	Err  error
}

func (e *SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%v: line %d: %v", ErrSchema, e.Line, e.Err)
	}
	return fmt.Sprintf("%v: %v", ErrSchema, e.Err)
}

func (e *SchemaError) Unwrap() []error {
	return []error{ErrSchema, e.Err}
}

// Table is a header plus rows of nullable cells
type Table struct {
	Columns []string
	Rows    [][]sql.NullString

	index map[string]int
}

// NewTable builds an empty table with the given columns
func NewTable(columns []string) *Table {
	t := &Table{Columns: append([]string{}, columns...)}
	t.buildIndex()
	return t
}

func (t *Table) buildIndex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Value returns the cell at row i for the named column. The second return is
// false when the column is absent or the cell is null.
func (t *Table) Value(i int, column string) (string, bool) {
	if t.index == nil {
		t.buildIndex()
	}
	c, ok := t.index[column]
	if !ok || i < 0 || i >= len(t.Rows) || c >= len(t.Rows[i]) {
		return "", false
	}
	cell := t.Rows[i][c]
	return cell.String, cell.Valid
}

// HasColumn reports whether the table carries the column
func (t *Table) HasColumn(column string) bool {
	if t.index == nil {
		t.buildIndex()
	}
	_, ok := t.index[column]
	return ok
}

// Parse reads a CSV document with a header row. Rows whose field count differs
// from the header, broken quoting and empty input fail with a *SchemaError.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &SchemaError{Err: errors.New("empty input")}
	}
	if err != nil {
		return nil, &SchemaError{Line: 1, Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Columns: header}
	t.buildIndex()

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &SchemaError{Line: pe.Line, Err: pe.Err}
			}
			return nil, &SchemaError{Err: err}
		}

		row := make([]sql.NullString, len(rec))
		for i, v := range rec {
			row[i] = cell(v)
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// cell converts a raw CSV field into a nullable value. Empty fields and the
// NA markers written by R and pandas are null.
func cell(v string) sql.NullString {
	switch strings.TrimSpace(v) {
	case "", "NA", "NaN":
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
