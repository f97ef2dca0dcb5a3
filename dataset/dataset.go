// Package dataset loads tabular files into an in-memory table of named
// string columns. Type inference happens lazily: a column is numeric when
// every present value parses as a float64.
package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// unnamedPattern matches index artifacts such as "Unnamed: 0".
var unnamedPattern = regexp.MustCompile(`^Unnamed`)

// Column is one named column. Missing cells have Missing(i) == true and an
// empty String(i).
type Column struct {
	Name    string
	values  []string
	missing []bool
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.values) }

// String returns the raw cell text.
func (c *Column) String(i int) string { return c.values[i] }

// Missing reports whether cell i is absent.
func (c *Column) Missing(i int) bool { return c.missing[i] }

// Float parses cell i.
func (c *Column) Float(i int) (float64, error) {
	if c.missing[i] {
		return 0, errors.NewValueError("dataset.Column.Float", fmt.Sprintf("%s[%d] is missing", c.Name, i))
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(c.values[i]), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s[%d]", c.Name, i)
	}
	return v, nil
}

// IsNumeric reports whether every present cell parses as a number. A column
// with no present cells is not numeric.
func (c *Column) IsNumeric() bool {
	seen := false
	for i, v := range c.values {
		if c.missing[i] {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// Dataset is an in-memory table. Column names are unique and non-empty.
type Dataset struct {
	Name    string
	columns []*Column
	index   map[string]int
	rows    int
}

// FromRecords builds a Dataset from a header and rows of equal width.
// Empty cells are missing. Headers are normalised: whitespace trimmed, an
// empty name becomes "Unnamed: <i>", duplicates get ".1", ".2" suffixes,
// and columns matching ^Unnamed are dropped.
func FromRecords(header []string, records [][]string) (*Dataset, error) {
	names := normalizeHeader(header)
	cols := make([]*Column, len(names))
	for j, name := range names {
		cols[j] = &Column{
			Name:    name,
			values:  make([]string, len(records)),
			missing: make([]bool, len(records)),
		}
	}
	for i, rec := range records {
		if len(rec) != len(names) {
			return nil, errors.NewSchemaError("",
				fmt.Sprintf("row %d has %d fields, header has %d", i+1, len(rec), len(names)))
		}
		for j, v := range rec {
			cols[j].values[i] = v
			cols[j].missing[i] = strings.TrimSpace(v) == ""
		}
	}
	ds := &Dataset{rows: len(records)}
	for _, c := range cols {
		if unnamedPattern.MatchString(c.Name) {
			continue
		}
		ds.columns = append(ds.columns, c)
	}
	ds.reindex()
	return ds, nil
}

func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

func (d *Dataset) reindex() {
	d.index = make(map[string]int, len(d.columns))
	for i, c := range d.columns {
		d.index[c.Name] = i
	}
}

// Columns returns the column names in file order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return d.rows }

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int { return len(d.columns) }

// Drop removes the named column.
func (d *Dataset) Drop(name string) error {
	i, ok := d.index[name]
	if !ok {
		return errors.NewSchemaError(name, "column not found")
	}
	d.columns = append(d.columns[:i], d.columns[i+1:]...)
	d.reindex()
	return nil
}
