package reduce

import (
	"github.com/apache/arrow-go/v18/arrow"
)

type arrowColumn struct {
	Type   string
	Len    int
	Values []string
}

type arrowTable struct {
	Schema  string
	Rows    int64
	Columns []any
}

// arrowArrayRule replaces Arrow buffers, whose layout depends on the
// allocator and slicing history, with their logical values.
var arrowArrayRule = Rule{
	Name:     "arrow-array",
	Category: CategoryArray,
	Targets:  []Target{TypeOf[arrow.Array]()},
	Reduce: func(v any) (any, error) {
		return columnOf(v.(arrow.Array)), nil
	},
}

var arrowRecordRule = Rule{
	Name:     "arrow-record",
	Category: CategoryDataset,
	Targets:  []Target{TypeOf[arrow.Record]()},
	Reduce: func(v any) (any, error) {
		rec := v.(arrow.Record)
		cols := make([]any, rec.NumCols())
		for i := range cols {
			cols[i] = rec.Column(i)
		}
		return arrowTable{
			Schema:  rec.Schema().String(),
			Rows:    rec.NumRows(),
			Columns: cols,
		}, nil
	},
}

func columnOf(arr arrow.Array) arrowColumn {
	values := make([]string, arr.Len())
	for i := range values {
		values[i] = arr.ValueStr(i)
	}
	return arrowColumn{
		Type:   arr.DataType().String(),
		Len:    arr.Len(),
		Values: values,
	}
}

// recordRow returns the logical values of row i across all columns.
func recordRow(rec arrow.Record, i int) []string {
	row := make([]string, rec.NumCols())
	for c := range row {
		row[c] = rec.Column(c).ValueStr(i)
	}
	return row
}
