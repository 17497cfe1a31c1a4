package reduce

import (
	"io"
	"reflect"
)

// Base reduces code and open handles.
var Base = New("base", codeRule, handleRule)

// codeRule reduces funcs to their source and types to their qualified name,
// so results are invalidated when an implementation changes.
var codeRule = Rule{
	Name:     "code",
	Category: CategoryCode,
	Targets: []Target{
		KindOf(reflect.Func),
		TypeOf[reflect.Type](),
	},
	Reduce: func(v any) (any, error) {
		if t, ok := v.(reflect.Type); ok {
			return TypeName(t), nil
		}
		return Source(v), nil
	},
}

// handleRule drops open files, buffers and pipes: their identity is
// irrelevant to a result and unstable across calls.
var handleRule = Rule{
	Name:     "handle",
	Category: CategoryHandle,
	Targets: []Target{
		TypeOf[io.Reader](),
		TypeOf[io.Writer](),
		TypeOf[io.Closer](),
	},
	Reduce: func(any) (any, error) {
		return "", nil
	},
}
