package cache

import (
	"fmt"
	"slices"
)

// Param is one named parameter of a memoized function.
type Param struct {
	Name       string
	Default    any
	HasDefault bool
}

// Signature describes how call arguments bind to parameter names.
type Signature struct {
	Params   []Param
	Variadic string // name collecting extra positional arguments, if any
}

// KV is one keyword argument.
type KV struct {
	Name  string
	Value any
}

// Call holds the arguments of one call. Kwargs keep call order.
type Call struct {
	Args   []any
	Kwargs []KV
}

// Bound is a call bound to a signature.
type Bound struct {
	names  []string
	values map[string]any
}

// Get returns the value bound to name, or nil when name is not a parameter.
func (b Bound) Get(name string) any {
	return b.values[name]
}

// Names returns the parameter names in declaration order.
func (b Bound) Names() []string {
	return slices.Clone(b.names)
}

// Bind maps positional then keyword arguments onto parameters and applies
// declared defaults. Extra positional arguments go to the variadic
// parameter as a []any.
func (s Signature) Bind(c Call) (Bound, error) {
	b := Bound{
		names:  make([]string, 0, len(s.Params)+1),
		values: make(map[string]any, len(s.Params)+1),
	}
	index := make(map[string]int, len(s.Params))
	for i, p := range s.Params {
		index[p.Name] = i
		b.names = append(b.names, p.Name)
	}

	set := make([]bool, len(s.Params))
	var rest []any
	for i, a := range c.Args {
		if i < len(s.Params) {
			b.values[s.Params[i].Name] = a
			set[i] = true
			continue
		}
		if s.Variadic == "" {
			return Bound{}, fmt.Errorf("%w: takes %d positional arguments but %d were given", ErrBind, len(s.Params), len(c.Args))
		}
		rest = append(rest, a)
	}
	if s.Variadic != "" {
		if rest == nil {
			rest = []any{}
		}
		b.names = append(b.names, s.Variadic)
		b.values[s.Variadic] = rest
	}

	for _, kv := range c.Kwargs {
		i, ok := index[kv.Name]
		if !ok {
			return Bound{}, fmt.Errorf("%w: unexpected keyword argument %q", ErrBind, kv.Name)
		}
		if set[i] {
			return Bound{}, fmt.Errorf("%w: multiple values for argument %q", ErrBind, kv.Name)
		}
		b.values[kv.Name] = kv.Value
		set[i] = true
	}

	for i, p := range s.Params {
		if set[i] {
			continue
		}
		if !p.HasDefault {
			return Bound{}, fmt.Errorf("%w: missing required argument %q", ErrBind, p.Name)
		}
		b.values[p.Name] = p.Default
	}
	return b, nil
}

// positional returns a signature of named positional parameters.
func positional(names ...string) Signature {
	sig := Signature{Params: make([]Param, len(names))}
	for i, n := range names {
		sig.Params[i] = Param{Name: n}
	}
	return sig
}

// paramNames returns names padded to n with arg<i> defaults.
func paramNames(names []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		if i < len(names) && names[i] != "" {
			out[i] = names[i]
		} else {
			out[i] = fmt.Sprintf("arg%d", i)
		}
	}
	return out
}
