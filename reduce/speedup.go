package reduce

import (
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
)

const (
	// LargeDimension is the element count above which arrays are sampled.
	LargeDimension = 10000

	// SeedValue is the seed fixed on datasets before sampling, so datasets
	// with random augmentation reduce deterministically.
	SeedValue = 493

	// sampleBase is 13**17. Indexes derived from it look arbitrary but are
	// stable across runs; changing it invalidates every sampled key.
	sampleBase uint64 = 8650415919381337933
)

// SampleIndex returns the deterministic sample position for a sequence of
// length n > 0.
func SampleIndex(n int) int {
	return int(sampleBase % uint64(n))
}

// Dataset is an indexable collection of training examples.
type Dataset interface {
	Len() int
	Item(i int) (any, error)
}

// Seeder is implemented by datasets with random augmentation.
type Seeder interface {
	Seed(seed int64)
}

// Sample is a labeled dataset element.
type Sample struct {
	Data  any
	Label any
}

type arraySample struct {
	Shape []int
	Row   any
}

type datasetSample struct {
	Len   int
	Data  any
	Label any
}

// Speedup trades key precision for speed on large objects. Keys built with
// it are lossy: arrays above [LargeDimension] elements that differ only
// outside the sampled row, models that differ only in unsampled weights and
// datasets that differ only in unsampled elements collide. Use it only when
// such inputs are known to differ elsewhere too.
var Speedup = DeepLearning.Extend("speedup_deep_learning",
	arrayRule,
	sampledModelRule,
	datasetRule,
)

var arrayRule = Rule{
	Name:     "array",
	Category: CategoryArray,
	Targets: []Target{
		TypeOf[NDArray](),
		TypeOf[arrow.Array](),
		TargetFunc("numeric slice", isNumericSlice),
	},
	Reduce: func(v any) (any, error) {
		switch a := v.(type) {
		case NDArray:
			return reduceNDArray(a)
		case arrow.Array:
			return reduceArrowArray(a), nil
		default:
			return reduceNumericSlice(reflect.ValueOf(v)), nil
		}
	},
}

// sampledModelRule keeps the first, middle and last weights only.
var sampledModelRule = Rule{
	Name:     "model",
	Category: CategoryModel,
	Targets:  []Target{TypeOf[Model]()},
	Reduce: func(v any) (any, error) {
		state := v.(Model).StateDict()
		proxy := modelProxy{State: state, Class: reflect.TypeOf(v)}
		if n := len(state); n > 0 {
			proxy.State = []any{state[0].Value, state[n/2].Value, state[n-1].Value}
		}
		return proxy, nil
	},
}

// datasetRule reduces a dataset to its length and one sampled element.
var datasetRule = Rule{
	Name:     "dataset",
	Category: CategoryDataset,
	Targets: []Target{
		TypeOf[Dataset](),
		TypeOf[arrow.Record](),
	},
	Reduce: func(v any) (any, error) {
		if rec, ok := v.(arrow.Record); ok {
			return reduceRecord(rec), nil
		}
		return reduceDataset(v.(Dataset))
	},
}

func reduceNDArray(a NDArray) (any, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if len(a.Shape) == 0 {
		return a.Data[0], nil
	}

	if a.Size() > LargeDimension {
		return arraySample{Shape: a.Shape, Row: a.Row(SampleIndex(a.Shape[0]))}, nil
	}

	rows := make([]any, a.Shape[0])
	for i := range rows {
		if len(a.Shape) == 1 {
			rows[i] = a.Data[i]
		} else {
			rows[i] = a.Row(i)
		}
	}
	return rows, nil
}

func reduceArrowArray(arr arrow.Array) any {
	n := arr.Len()
	if n <= LargeDimension {
		return columnOf(arr)
	}
	return arraySample{
		Shape: []int{n},
		Row:   arr.ValueStr(SampleIndex(n)),
	}
}

func reduceNumericSlice(v reflect.Value) any {
	n := v.Len()
	if leafCount(v) > LargeDimension && n > 0 {
		return arraySample{Shape: shapeOf(v), Row: v.Index(SampleIndex(n)).Interface()}
	}

	rows := make([]any, n)
	for i := range rows {
		rows[i] = v.Index(i).Interface()
	}
	return rows
}

func reduceDataset(ds Dataset) (any, error) {
	n := ds.Len()
	if s, ok := ds.(Seeder); ok {
		s.Seed(SeedValue)
	}

	proxy := datasetSample{Len: n, Data: []any{}}
	if n <= 0 {
		return proxy, nil
	}

	item, err := ds.Item(SampleIndex(n))
	if err != nil {
		return nil, fmt.Errorf("reduce: dataset item: %w", err)
	}
	switch it := item.(type) {
	case Sample:
		proxy.Data, proxy.Label = it.Data, it.Label
	case []any:
		if len(it) == 2 {
			proxy.Data, proxy.Label = it[0], it[1]
		} else {
			proxy.Data = it
		}
	default:
		proxy.Data = item
	}
	return proxy, nil
}

func reduceRecord(rec arrow.Record) any {
	n := int(rec.NumRows())
	proxy := datasetSample{Len: n, Data: []any{}}
	if n > 0 {
		proxy.Data = recordRow(rec, SampleIndex(n))
	}
	return proxy
}

// isNumericSlice matches slices and arrays, at any depth, of integers or
// floats. Byte slices are blobs, not arrays.
func isNumericSlice(t reflect.Type) bool {
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return false
	}
	if t.Elem().Kind() == reflect.Uint8 {
		return false
	}
	elem := t.Elem()
	for elem.Kind() == reflect.Slice || elem.Kind() == reflect.Array {
		elem = elem.Elem()
	}
	switch elem.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func leafCount(v reflect.Value) int {
	k := v.Type().Elem().Kind()
	if k != reflect.Slice && k != reflect.Array {
		return v.Len()
	}
	total := 0
	for i := 0; i < v.Len(); i++ {
		total += leafCount(v.Index(i))
	}
	return total
}

// shapeOf follows the first element of each level.
func shapeOf(v reflect.Value) []int {
	var shape []int
	for {
		shape = append(shape, v.Len())
		k := v.Type().Elem().Kind()
		if (k != reflect.Slice && k != reflect.Array) || v.Len() == 0 {
			return shape
		}
		v = v.Index(0)
	}
}
