package dataset

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// readParquet reads every row group of a parquet file into string cells.
// Nulls become empty cells, which FromRecords marks missing.
func readParquet(ctx context.Context, path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.NewDataAccessError(path, err)
	}
	defer f.Close()

	mem := memory.DefaultAllocator
	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, nil, errors.NewDataAccessError(path, err)
	}
	defer tbl.Release()

	ncols := int(tbl.NumCols())
	nrows := int(tbl.NumRows())
	header := make([]string, ncols)
	records := make([][]string, nrows)
	for i := range records {
		records[i] = make([]string, ncols)
	}
	for j := 0; j < ncols; j++ {
		header[j] = tbl.Schema().Field(j).Name
		row := 0
		for _, chunk := range tbl.Column(j).Data().Chunks() {
			for k := 0; k < chunk.Len(); k++ {
				if !chunk.IsNull(k) {
					records[row][j] = chunk.ValueStr(k)
				}
				row++
			}
		}
	}
	return header, records, nil
}
