package reduce

import (
	"fmt"
	"reflect"
	"slices"
)

// Category is the closed set of value kinds that receive special handling.
// Anything without a matching rule falls through to default serialization.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryCode
	CategoryHandle
	CategoryArray
	CategoryTensor
	CategoryModel
	CategoryDataset
)

func (c Category) String() string {
	switch c {
	case CategoryCode:
		return "code"
	case CategoryHandle:
		return "handle"
	case CategoryArray:
		return "array"
	case CategoryTensor:
		return "tensor"
	case CategoryModel:
		return "model"
	case CategoryDataset:
		return "dataset"
	default:
		return "none"
	}
}

// Target matches runtime types a rule applies to.
// Interface targets match every implementing type, concrete targets match
// the exact type.
type Target struct {
	desc  string
	match func(reflect.Type) bool
}

// TypeOf returns a Target for T.
func TypeOf[T any]() Target {
	want := reflect.TypeFor[T]()
	if want.Kind() == reflect.Interface {
		return Target{
			desc:  want.String(),
			match: func(t reflect.Type) bool { return t.Implements(want) },
		}
	}
	return Target{
		desc:  want.String(),
		match: func(t reflect.Type) bool { return t == want },
	}
}

// KindOf returns a Target matching every type of kind k.
func KindOf(k reflect.Kind) Target {
	return Target{
		desc:  "kind " + k.String(),
		match: func(t reflect.Type) bool { return t.Kind() == k },
	}
}

// TargetFunc returns a Target backed by an arbitrary predicate.
func TargetFunc(desc string, fn func(reflect.Type) bool) Target {
	return Target{desc: desc, match: fn}
}

// String describes the target.
func (t Target) String() string { return t.desc }

// Matches reports whether typ is covered by the target.
func (t Target) Matches(typ reflect.Type) bool { return t.match != nil && t.match(typ) }

// Rule is a named transformation applied to values of its target types.
//
// Contract:
//   - Determinism: equal inputs must produce equal proxies.
//   - Termination: the proxy must not be reduced by the same rule forever;
//     return a different type (or smaller value) than the input.
type Rule struct {
	Name     string
	Category Category
	Targets  []Target
	Reduce   func(v any) (any, error)
}

// Matches reports whether any of the rule's targets covers typ.
func (r Rule) Matches(typ reflect.Type) bool {
	for _, target := range r.Targets {
		if target.Matches(typ) {
			return true
		}
	}
	return false
}

// Reducer is an immutable ordered rule table.
type Reducer struct {
	name  string
	rules []Rule
}

// New creates a reducer from rules in precedence order.
func New(name string, rules ...Rule) *Reducer {
	return &Reducer{name: name, rules: slices.Clone(rules)}
}

// Extend composes a new reducer: rules come first, followed by the
// receiver's rules that are not replaced by a rule with the same name.
func (r *Reducer) Extend(name string, rules ...Rule) *Reducer {
	replaced := make(map[string]bool, len(rules))
	for _, rule := range rules {
		replaced[rule.Name] = true
	}

	merged := slices.Clone(rules)
	for _, rule := range r.rules {
		if !replaced[rule.Name] {
			merged = append(merged, rule)
		}
	}
	return &Reducer{name: name, rules: merged}
}

// Name identifies the reducer. It is part of every cache key.
func (r *Reducer) Name() string { return r.name }

// Rules returns a copy of the table in precedence order.
func (r *Reducer) Rules() []Rule { return slices.Clone(r.rules) }

// Lookup returns the first rule matching typ.
func (r *Reducer) Lookup(typ reflect.Type) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.Matches(typ) {
			return rule, true
		}
	}
	return Rule{}, false
}

// String returns the reducer name and its rule names.
func (r *Reducer) String() string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return fmt.Sprintf("%s%v", r.name, names)
}
