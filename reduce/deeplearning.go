package reduce

import (
	"fmt"
	"reflect"
)

// Model is a trained model. Its outputs are determined by its weights and
// its implementation, so that is all a cache key needs.
type Model interface {
	// StateDict returns the named parameters in a stable order.
	StateDict() []Param
}

// Param is one named entry of a model's state.
type Param struct {
	Name  string
	Value any
}

// Tensor is a dense numeric tensor, possibly backed by device memory.
type Tensor interface {
	Shape() []int
	// Float64s copies the elements in row-major order.
	Float64s() []float64
}

// NDArray is the plain host representation of a tensor.
type NDArray struct {
	Shape []int
	Data  []float64
}

// Size returns the number of elements implied by the shape.
func (a NDArray) Size() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Row returns the i-th slice along the leading dimension.
func (a NDArray) Row(i int) NDArray {
	inner := NDArray{Shape: a.Shape[1:]}
	size := inner.Size()
	inner.Data = a.Data[i*size : (i+1)*size]
	return inner
}

func (a NDArray) validate() error {
	n := 1
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("reduce: array shape %v has a negative dimension", a.Shape)
		}
		if d > 0 && n > len(a.Data)/d {
			return fmt.Errorf("reduce: array shape %v does not match %d elements", a.Shape, len(a.Data))
		}
		n *= d
	}
	if len(a.Data) != n {
		return fmt.Errorf("reduce: array shape %v does not match %d elements", a.Shape, len(a.Data))
	}
	return nil
}

type modelProxy struct {
	State any
	Class reflect.Type
}

// DeepLearning adds models, tensors and Arrow data to Base.
var DeepLearning = Base.Extend("deep_learning",
	modelRule,
	tensorRule,
	arrowArrayRule,
	arrowRecordRule,
)

// modelRule keeps weights and class identity only; hooks and other runtime
// bookkeeping of a model are not deterministic.
var modelRule = Rule{
	Name:     "model",
	Category: CategoryModel,
	Targets:  []Target{TypeOf[Model]()},
	Reduce: func(v any) (any, error) {
		return modelProxy{
			State: v.(Model).StateDict(),
			Class: reflect.TypeOf(v),
		}, nil
	},
}

// tensorRule copies tensors to a plain array; device-backed tensors do not
// serialize deterministically.
var tensorRule = Rule{
	Name:     "tensor",
	Category: CategoryTensor,
	Targets:  []Target{TypeOf[Tensor]()},
	Reduce: func(v any) (any, error) {
		t := v.(Tensor)
		a := NDArray{Shape: t.Shape(), Data: t.Float64s()}
		if err := a.validate(); err != nil {
			return nil, err
		}
		return a, nil
	},
}
