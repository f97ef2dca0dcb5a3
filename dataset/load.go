package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
)

// Format identifies an on-disk table format.
type Format int

const (
	// FormatDelimited is separator-delimited text.
	FormatDelimited Format = iota
	// FormatParquet is an Apache Parquet file.
	FormatParquet
)

// LoadOptions controls Load.
type LoadOptions struct {
	// ColumnNames replaces the file header when non-empty. Its length must
	// match the number of columns in the file.
	ColumnNames []string
	// Separator for delimited text. Empty means "," (tab for .tsv). The
	// literal string `\t` is accepted for tab.
	Separator string
	// NoHeader treats the first row of delimited text as data. Column names
	// then come from ColumnNames or default to "col_<i>".
	NoHeader bool
}

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv", ".data":
		return FormatDelimited, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return 0, errors.NewDataAccessError(path,
			errors.Newf("unsupported file extension %q", filepath.Ext(path)))
	}
}

// Load reads path into a Dataset named after the file's base name without
// extension.
func Load(ctx context.Context, path string, opts LoadOptions) (*Dataset, error) {
	logger := log.GetLoggerWithName("dataset")
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var header []string
	var records [][]string
	switch format {
	case FormatParquet:
		header, records, err = readParquet(ctx, path)
	default:
		header, records, err = readDelimitedFile(path, opts)
	}
	if err != nil {
		return nil, err
	}
	ds, err := build(header, records, opts.ColumnNames)
	if err != nil {
		return nil, err
	}
	ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	logger.Info("dataset loaded",
		"path", path,
		"rows", ds.NumRows(),
		"columns", ds.NumColumns(),
	)
	return ds, nil
}

func separatorRune(path, sep string) (rune, error) {
	switch sep {
	case "":
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			return '\t', nil
		}
		return ',', nil
	case `\t`, "\t", "tab":
		return '\t', nil
	}
	r := []rune(sep)
	if len(r) != 1 {
		return 0, errors.NewValidationError("separator", "must be a single character", sep)
	}
	return r[0], nil
}

func readDelimitedFile(path string, opts LoadOptions) ([]string, [][]string, error) {
	comma, err := separatorRune(path, opts.Separator)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.NewDataAccessError(path, err)
	}
	defer f.Close()
	return readDelimited(f, comma, path, opts.NoHeader)
}

// ReadDelimited parses delimited text from r into a Dataset. source is used
// in error messages only.
func ReadDelimited(r io.Reader, comma rune, source string, opts LoadOptions) (*Dataset, error) {
	header, records, err := readDelimited(r, comma, source, opts.NoHeader)
	if err != nil {
		return nil, err
	}
	return build(header, records, opts.ColumnNames)
}

func readDelimited(r io.Reader, comma rune, source string, noHeader bool) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, errors.NewDataAccessError(source, err)
	}
	if len(records) == 0 {
		return nil, nil, errors.NewDataAccessError(source, errors.ErrEmptyData)
	}
	if !noHeader {
		return records[0], records[1:], nil
	}
	header := make([]string, len(records[0]))
	for i := range header {
		header[i] = "col_" + strconv.Itoa(i)
	}
	return header, records, nil
}

// build applies the header override to the raw file columns, before
// unnamed index columns are dropped.
func build(header []string, records [][]string, override []string) (*Dataset, error) {
	if len(override) > 0 {
		if len(override) != len(header) {
			return nil, errors.NewSchemaError("",
				fmt.Sprintf("got %d column names for %d columns", len(override), len(header)))
		}
		header = override
	}
	return FromRecords(header, records)
}
