package codec

import (
	"fmt"
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Unexported fields take part in the comparison. Nil and empty slices and
// maps are equal.
var roundTripOpts = cmp.Options{
	cmp.Exporter(func(reflect.Type) bool { return true }),
	cmpopts.EquateNaNs(),
	cmpopts.EquateEmpty(),
}

// Verify decodes data into a fresh value and reports whether it equals v.
// A non-nil pointer is compared through its element type, which is the type
// a reader decodes into. Types with an Equal method are compared with it.
// A mismatch wraps [ErrEncode].
func Verify(data []byte, v any) (err error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil
	}
	typ := rv.Type()
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		typ = typ.Elem()
		rv = rv.Elem()
	}

	fresh := reflect.New(typ)
	if err := Decode(data, fresh.Interface()); err != nil {
		return fmt.Errorf("%w: value does not decode: %v", ErrEncode, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: value cannot be compared after decoding: %v", ErrEncode, r)
		}
	}()
	if !cmp.Equal(rv.Interface(), fresh.Elem().Interface(), roundTripOpts) {
		return fmt.Errorf("%w: %T value does not round-trip through %s", ErrEncode, rv.Interface(), codecName(data))
	}
	return nil
}

func codecName(data []byte) string {
	pos := len(magic) + 3
	if len(data) < pos {
		return "codec"
	}
	n := int(data[pos-1])
	if len(data) < pos+n {
		return "codec"
	}
	return string(data[pos : pos+n])
}
