package cache

import (
	"fmt"
	"reflect"

	"github.com/jonwraymond/persistcache/codec"
	"github.com/jonwraymond/persistcache/fsys"
	"github.com/jonwraymond/persistcache/reduce"
)

// ArgReducer transforms one named argument before it is hashed.
type ArgReducer struct {
	Name   string
	Reduce func(any) (any, error)
}

// ReduceArg builds an ArgReducer from a typed transform. A missing argument
// is passed to fn as the zero T.
func ReduceArg[T, U any](name string, fn func(T) U) ArgReducer {
	return ArgReducer{
		Name: name,
		Reduce: func(v any) (any, error) {
			if v == nil {
				var zero T
				return fn(zero), nil
			}
			t, ok := v.(T)
			if !ok {
				return nil, fmt.Errorf("%w: argument %q is %T, want %s", ErrArgReducer, name, v, reflect.TypeFor[T]())
			}
			return fn(t), nil
		},
	}
}

// Policy configures how slots are keyed and stored.
type Policy struct {
	// Root is the storage root every slot path starts with.
	Root string

	// KeyArgs selects the named arguments, in order, as key material.
	KeyArgs []string

	// ArgReducers selects and transforms named arguments when KeyArgs is empty.
	ArgReducers []ArgReducer

	// ExtraKeys is additional key material. A slice or array is one list of
	// keys, anything else a single key.
	ExtraKeys any

	// Reducer overrides the reducer chain chosen by the flags below.
	Reducer *reduce.Reducer

	// DeepLearning selects [reduce.DeepLearning].
	DeepLearning bool

	// Speedup selects the lossy [reduce.Speedup] chain.
	Speedup bool

	Codec       codec.Codec
	Compression codec.Compression
	FS          fsys.FS
	Keyer       Keyer
}

// EffectiveReducer returns the reducer chain slots are hashed with. An
// explicit Reducer wins over DeepLearning, which wins over Speedup.
func (p Policy) EffectiveReducer() *reduce.Reducer {
	switch {
	case p.Reducer != nil:
		return p.Reducer
	case p.DeepLearning:
		return reduce.DeepLearning
	case p.Speedup:
		return reduce.Speedup
	default:
		return reduce.Base
	}
}

func (p Policy) withDefaults() Policy {
	if p.Codec == nil {
		p.Codec = codec.Default
	}
	if p.FS == nil {
		p.FS = fsys.NewReal()
	}
	if p.Keyer == nil {
		p.Keyer = NewDefaultKeyer()
	}
	return p
}

// extraKeys normalizes ExtraKeys to one material item.
func (p Policy) extraKeys() any {
	if p.ExtraKeys == nil {
		return nil
	}
	v := reflect.ValueOf(p.ExtraKeys)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		keys := make([]any, v.Len())
		for i := range keys {
			keys[i] = v.Index(i).Interface()
		}
		return keys
	}
	return []any{p.ExtraKeys}
}

// selectKeyMaterial picks the argument values that identify a call.
func (p Policy) selectKeyMaterial(sig Signature, call Call) ([]any, error) {
	bound, err := sig.Bind(call)
	if err != nil {
		return nil, err
	}

	switch {
	case len(p.KeyArgs) > 0:
		out := make([]any, len(p.KeyArgs))
		for i, name := range p.KeyArgs {
			out[i] = bound.Get(name)
		}
		return out, nil

	case len(p.ArgReducers) > 0:
		out := make([]any, len(p.ArgReducers))
		for i, ar := range p.ArgReducers {
			v, err := ar.Reduce(bound.Get(ar.Name))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	default:
		out := make([]any, 0, len(call.Args)+len(call.Kwargs))
		out = append(out, call.Args...)
		for _, kv := range call.Kwargs {
			out = append(out, kv.Value)
		}
		return out, nil
	}
}
