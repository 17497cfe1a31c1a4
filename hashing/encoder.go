package hashing

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"runtime"
	"sort"
	"unsafe"

	"github.com/jonwraymond/persistcache/reduce"
)

// Encoding tags. Every value starts with exactly one.
const (
	tagNil      = 'N'
	tagTrue     = 'T'
	tagFalse    = 'F'
	tagInt      = 'i'
	tagUint     = 'u'
	tagFloat    = 'f'
	tagComplex  = 'c'
	tagString   = 's'
	tagBytes    = 'b'
	tagList     = 'l'
	tagMap      = 'm'
	tagStruct   = 'o'
	tagBinary   = 'B'
	tagReduced  = 'R'
	tagBackRef  = 'P'
	tagFuncName = 'C'
)

const (
	maxDepth       = 4096
	maxReduceDepth = 64
)

var (
	stringType          = reflect.TypeFor[string]()
	binaryMarshalerType = reflect.TypeFor[encoding.BinaryMarshaler]()
)

// visit identifies a reference value on the ancestor stack.
type visit struct {
	typ reflect.Type
	ptr uintptr
	len int
}

type encoder struct {
	r           *reduce.Reducer
	buf         []byte
	ancestors   []visit
	depth       int
	reduceDepth int
}

func newEncoder(r *reduce.Reducer) *encoder {
	return &encoder{r: r}
}

// child returns an encoder writing to its own buffer that shares the
// ancestor stack, for values whose bytes must be ordered afterwards.
func (e *encoder) child() *encoder {
	return &encoder{
		r:           e.r,
		ancestors:   e.ancestors,
		depth:       e.depth,
		reduceDepth: e.reduceDepth,
	}
}

func (e *encoder) encodeAny(v any) error {
	return e.encode(reflect.ValueOf(v))
}

func (e *encoder) encode(v reflect.Value) error {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrUnhashable, maxDepth)
	}

	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			break
		}
		v = v.Elem()
	}
	if !v.IsValid() || isNil(v) {
		e.buf = append(e.buf, tagNil)
		return nil
	}

	if v.Type() != stringType && v.CanInterface() {
		if rule, ok := e.r.Lookup(v.Type()); ok {
			return e.encodeReduced(rule, v.Interface())
		}
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			e.buf = append(e.buf, tagTrue)
		} else {
			e.buf = append(e.buf, tagFalse)
		}
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf = append(e.buf, tagInt)
		e.buf = binary.AppendVarint(e.buf, v.Int())
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf = append(e.buf, tagUint)
		e.buf = binary.AppendUvarint(e.buf, v.Uint())
		return nil
	case reflect.Float32, reflect.Float64:
		e.buf = append(e.buf, tagFloat)
		e.appendFloat(v.Float())
		return nil
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		e.buf = append(e.buf, tagComplex)
		e.appendFloat(real(c))
		e.appendFloat(imag(c))
		return nil
	case reflect.String:
		e.writeString(v.String())
		return nil
	}

	if v.CanInterface() && v.Type().Implements(binaryMarshalerType) {
		return e.encodeBinary(v)
	}

	switch v.Kind() {
	case reflect.Pointer:
		return e.withAncestor(v, 0, func() error { return e.encode(v.Elem()) })
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			e.buf = append(e.buf, tagBytes)
			e.appendBytes(v.Bytes())
			return nil
		}
		return e.withAncestor(v, v.Len(), func() error { return e.encodeList(v) })
	case reflect.Array:
		return e.encodeList(v)
	case reflect.Map:
		return e.withAncestor(v, 0, func() error { return e.encodeMap(v) })
	case reflect.Struct:
		return e.encodeStruct(v)
	case reflect.Func:
		// Reached only without a matching rule. Values read through
		// unexported fields are identified by symbol when the reducer
		// reduces funcs at all.
		if _, ok := e.r.Lookup(v.Type()); ok {
			e.buf = append(e.buf, tagFuncName)
			e.appendBytes([]byte(runtime.FuncForPC(v.Pointer()).Name()))
			return nil
		}
		return fmt.Errorf("%w: func %s (reducer %s has no rule for code)", ErrUnhashable, v.Type(), e.r.Name())
	default:
		return fmt.Errorf("%w: %s", ErrUnhashable, v.Type())
	}
}

// encodeReduced embeds the encoding of the rule's proxy. The proxy is
// encoded from scratch so it cannot refer back into the reduced object.
func (e *encoder) encodeReduced(rule reduce.Rule, v any) error {
	if e.reduceDepth >= maxReduceDepth {
		return fmt.Errorf("%w: rule %q does not terminate", ErrUnhashable, rule.Name)
	}
	proxy, err := rule.Reduce(v)
	if err != nil {
		return fmt.Errorf("%w: rule %q: %v", ErrUnhashable, rule.Name, err)
	}

	sub := &encoder{r: e.r, depth: e.depth, reduceDepth: e.reduceDepth + 1}
	if err := sub.encodeAny(proxy); err != nil {
		return err
	}
	e.buf = append(e.buf, tagReduced)
	e.appendBytes([]byte(rule.Name))
	e.appendBytes(sub.buf)
	return nil
}

func (e *encoder) encodeBinary(v reflect.Value) error {
	data, err := v.Interface().(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnhashable, v.Type(), err)
	}
	e.buf = append(e.buf, tagBinary)
	e.appendBytes([]byte(reduce.TypeName(v.Type())))
	e.appendBytes(data)
	return nil
}

func (e *encoder) encodeList(v reflect.Value) error {
	e.buf = append(e.buf, tagList)
	e.buf = binary.AppendUvarint(e.buf, uint64(v.Len()))
	for i := 0; i < v.Len(); i++ {
		if err := e.encode(v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

type mapEntry struct {
	key, value []byte
}

func (e *encoder) encodeMap(v reflect.Value) error {
	entries := make([]mapEntry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		kenc, venc := e.child(), e.child()
		if err := kenc.encode(iter.Key()); err != nil {
			return err
		}
		if err := venc.encode(iter.Value()); err != nil {
			return err
		}
		entries = append(entries, mapEntry{key: kenc.buf, value: venc.buf})
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := bytes.Compare(entries[i].key, entries[j].key); c != 0 {
			return c < 0
		}
		return bytes.Compare(entries[i].value, entries[j].value) < 0
	})

	e.buf = append(e.buf, tagMap)
	e.buf = binary.AppendUvarint(e.buf, uint64(len(entries)))
	for _, entry := range entries {
		e.appendBytes(entry.key)
		e.appendBytes(entry.value)
	}
	return nil
}

func (e *encoder) encodeStruct(v reflect.Value) error {
	if !v.CanAddr() {
		tmp := reflect.New(v.Type()).Elem()
		tmp.Set(v)
		v = tmp
	}

	t := v.Type()
	e.buf = append(e.buf, tagStruct)
	e.appendBytes([]byte(reduce.TypeName(t)))
	e.buf = binary.AppendUvarint(e.buf, uint64(t.NumField()))
	for i := 0; i < t.NumField(); i++ {
		e.appendBytes([]byte(t.Field(i).Name))
		if err := e.encode(exported(v.Field(i))); err != nil {
			return err
		}
	}
	return nil
}

// withAncestor encodes a reference value, writing a back reference instead
// when the same value is already being encoded further up.
func (e *encoder) withAncestor(v reflect.Value, n int, fn func() error) error {
	id := visit{typ: v.Type(), ptr: v.Pointer(), len: n}
	for i := len(e.ancestors) - 1; i >= 0; i-- {
		if e.ancestors[i] == id {
			e.buf = append(e.buf, tagBackRef)
			e.buf = binary.AppendUvarint(e.buf, uint64(len(e.ancestors)-i))
			return nil
		}
	}

	e.ancestors = append(e.ancestors, id)
	err := fn()
	e.ancestors = e.ancestors[:len(e.ancestors)-1]
	return err
}

func (e *encoder) writeString(s string) {
	e.buf = append(e.buf, tagString)
	e.appendBytes([]byte(s))
}

func (e *encoder) appendBytes(b []byte) {
	e.buf = binary.AppendUvarint(e.buf, uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) appendFloat(f float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(f))
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan,
		reflect.Interface, reflect.UnsafePointer:
		return v.IsNil()
	default:
		return false
	}
}

// exported makes a field read through an unexported struct field usable
// with Interface, so reducer rules apply to it like to any other value.
// v must be addressable.
func exported(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}
