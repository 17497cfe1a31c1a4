package cache

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/jonwraymond/persistcache/reduce"
)

// Sentinel errors for cache operations.
var (
	// ErrKeyNotFound is returned by Slot.Get when the slot is absent or its
	// content cannot be decoded.
	ErrKeyNotFound = errors.New("cache: key not found")

	// ErrBind indicates call arguments that do not satisfy the signature.
	ErrBind = errors.New("cache: arguments do not match signature")

	// ErrArgReducer indicates an argument reducer received a value it does
	// not accept.
	ErrArgReducer = errors.New("cache: argument reducer rejected value")

	// ErrNilFunc indicates a nil function was wrapped.
	ErrNilFunc = errors.New("cache: function is nil")

	// ErrNoRoot indicates a slot without a storage root.
	ErrNoRoot = errors.New("cache: storage root is not set")
)

// Function identifies a memoized function. It is part of every key, so a
// change to the function's source text moves all of its slots.
type Function struct {
	Module string // import path of the defining package
	Name   string // name within the package, e.g. Train or Train.func1
	Source string // source text, or the qualified name when unavailable
}

// NewFunction derives the identity of fn, which must be a non-nil func.
func NewFunction(fn any) (Function, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return Function{}, ErrNilFunc
	}
	module, name := reduce.FuncName(fn)
	return Function{Module: module, Name: name, Source: reduce.Source(fn)}, nil
}

// Dir returns the slot directory of the function relative to a root.
func (f Function) Dir() string {
	return filepath.Join(sanitizeModule(f.Module), sanitizeName(f.Name))
}

var moduleReplacer = strings.NewReplacer("/", "_", ".", "_", `\`, "_")

func sanitizeModule(module string) string {
	if module == "" {
		return "_"
	}
	return moduleReplacer.Replace(module)
}

// sanitizeName replaces characters that are invalid in file names on any
// supported platform.
func sanitizeName(name string) string {
	if name == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}
