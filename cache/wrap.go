package cache

import (
	"context"
	"reflect"
	"strings"
)

// Wrap0 memoizes a function without arguments.
func Wrap0[R any](fn func(context.Context) (R, error), opts ...Option) func(context.Context) (R, error) {
	return Apply0(New(opts...), fn)
}

// Wrap memoizes a function of one argument. When A is a struct and no
// parameter names are given, its exported fields are keyword parameters
// named after the field or its `cache:"name"` tag; a "-" tag omits the
// field.
func Wrap[A, R any](fn func(context.Context, A) (R, error), opts ...Option) func(context.Context, A) (R, error) {
	return Apply(New(opts...), fn)
}

// Wrap2 memoizes a function of two arguments.
func Wrap2[A, B, R any](fn func(context.Context, A, B) (R, error), opts ...Option) func(context.Context, A, B) (R, error) {
	return Apply2(New(opts...), fn)
}

// Wrap3 memoizes a function of three arguments.
func Wrap3[A, B, C, R any](fn func(context.Context, A, B, C) (R, error), opts ...Option) func(context.Context, A, B, C) (R, error) {
	return Apply3(New(opts...), fn)
}

// WrapVariadic memoizes a variadic function. Names given with WithParams
// bind the leading arguments, which are then required; the remaining
// arguments bind to "args".
func WrapVariadic[V, R any](fn func(context.Context, ...V) (R, error), opts ...Option) func(context.Context, ...V) (R, error) {
	return ApplyVariadic(New(opts...), fn)
}

// Apply0 is Wrap0 with the configuration of d.
func Apply0[R any](d *Decorator, fn func(context.Context) (R, error)) func(context.Context) (R, error) {
	f, ferr := NewFunction(fn)
	return func(ctx context.Context) (R, error) {
		if ferr != nil {
			var zero R
			return zero, ferr
		}
		return memoize(ctx, d, f, Signature{}, Call{}, fn)
	}
}

// Apply is Wrap with the configuration of d.
func Apply[A, R any](d *Decorator, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	f, ferr := NewFunction(fn)
	sig, bind := unary[A](d)
	return func(ctx context.Context, a A) (R, error) {
		if ferr != nil {
			var zero R
			return zero, ferr
		}
		return memoize(ctx, d, f, sig, bind(a), func(ctx context.Context) (R, error) {
			return fn(ctx, a)
		})
	}
}

// Apply2 is Wrap2 with the configuration of d.
func Apply2[A, B, R any](d *Decorator, fn func(context.Context, A, B) (R, error)) func(context.Context, A, B) (R, error) {
	f, ferr := NewFunction(fn)
	sig := positional(paramNames(d.params, 2)...)
	return func(ctx context.Context, a A, b B) (R, error) {
		if ferr != nil {
			var zero R
			return zero, ferr
		}
		return memoize(ctx, d, f, sig, Call{Args: []any{a, b}}, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b)
		})
	}
}

// Apply3 is Wrap3 with the configuration of d.
func Apply3[A, B, C, R any](d *Decorator, fn func(context.Context, A, B, C) (R, error)) func(context.Context, A, B, C) (R, error) {
	f, ferr := NewFunction(fn)
	sig := positional(paramNames(d.params, 3)...)
	return func(ctx context.Context, a A, b B, c C) (R, error) {
		if ferr != nil {
			var zero R
			return zero, ferr
		}
		return memoize(ctx, d, f, sig, Call{Args: []any{a, b, c}}, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b, c)
		})
	}
}

// ApplyVariadic is WrapVariadic with the configuration of d.
func ApplyVariadic[V, R any](d *Decorator, fn func(context.Context, ...V) (R, error)) func(context.Context, ...V) (R, error) {
	f, ferr := NewFunction(fn)
	sig := positional(d.params...)
	sig.Variadic = "args"
	return func(ctx context.Context, vs ...V) (R, error) {
		if ferr != nil {
			var zero R
			return zero, ferr
		}
		args := make([]any, len(vs))
		for i, v := range vs {
			args[i] = v
		}
		return memoize(ctx, d, f, sig, Call{Args: args}, func(ctx context.Context) (R, error) {
			return fn(ctx, vs...)
		})
	}
}

// unary returns the signature of a one-argument function and how to bind
// its argument.
func unary[A any](d *Decorator) (Signature, func(A) Call) {
	typ := reflect.TypeFor[A]()
	if len(d.params) == 0 && typ.Kind() == reflect.Struct {
		if _, reduced := d.policy.EffectiveReducer().Lookup(typ); !reduced {
			if fields := structParams(typ); len(fields) > 0 {
				sig := Signature{Params: make([]Param, len(fields))}
				for i, fp := range fields {
					sig.Params[i] = Param{Name: fp.name}
				}
				return sig, func(a A) Call {
					v := reflect.ValueOf(a)
					kw := make([]KV, len(fields))
					for i, fp := range fields {
						kw[i] = KV{Name: fp.name, Value: v.Field(fp.index).Interface()}
					}
					return Call{Kwargs: kw}
				}
			}
		}
	}

	sig := positional(paramNames(d.params, 1)...)
	return sig, func(a A) Call { return Call{Args: []any{a}} }
}

type fieldParam struct {
	name  string
	index int
}

// structParams lists the exported fields of a struct type as parameters.
func structParams(typ reflect.Type) []fieldParam {
	var out []fieldParam
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("cache"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		out = append(out, fieldParam{name: name, index: i})
	}
	return out
}
