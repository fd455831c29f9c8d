package engine

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// Kind identifies the neutral value category.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindArray
	KindObject
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is a script value with an equivalent Go mapping. The engine supports
// values beyond these (functions, symbols), but they have no useful Go
// semantics and convert to UnsupportedTypeError instead.
type Value struct {
	kind  Kind
	b     bool
	num   float64
	str   string
	arr   []Value
	obj   map[string]Value
	bytes []byte
}

// Undefined returns the `undefined` value.
func Undefined() Value { return Value{kind: KindUndefined} }

// Null returns the `null` value.
func Null() Value { return Value{kind: KindNull} }

// Boolean returns a boolean value.
func Boolean(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Number returns a numeric value. Both integral and fractional numbers share
// this representation, matching the script side.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array returns an array value over the given elements.
func Array(elems ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value{}, elems...)}
}

// Object returns an object value over the given properties.
func Object(props map[string]Value) Value {
	copied := make(map[string]Value, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return Value{kind: KindObject, obj: copied}
}

// Bytes returns a byte-buffer value, the Go mapping of an ArrayBuffer.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, bytes: append([]byte{}, b...)}
}

// Kind reports the value category.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean payload. Valid only for KindBoolean.
func (v Value) Bool() bool { return v.b }

// Num returns the numeric payload. Valid only for KindNumber.
func (v Value) Num() float64 { return v.num }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.str }

// Elems returns the array payload. Valid only for KindArray.
func (v Value) Elems() []Value { return v.arr }

// Props returns the object payload. Valid only for KindObject.
func (v Value) Props() map[string]Value { return v.obj }

// Buf returns the byte payload. Valid only for KindBytes.
func (v Value) Buf() []byte { return v.bytes }

// IsUndefined reports whether the value is `undefined`.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull reports whether the value is `null`.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Equal reports deep equality between two values. NaN equals NaN so that
// round-trip assertions behave sensibly.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindUndefined, KindNull:
		return true
	case KindBoolean:
		return v.b == other.b
	case KindNumber:
		if math.IsNaN(v.num) && math.IsNaN(other.num) {
			return true
		}
		return v.num == other.num
	case KindString:
		return v.str == other.str
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, val := range v.obj {
			ov, ok := other.obj[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	case KindBytes:
		if len(v.bytes) != len(other.bytes) {
			return false
		}
		for i := range v.bytes {
			if v.bytes[i] != other.bytes[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the value in a compact, JSON-like form for display.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.num == math.Trunc(v.num) && !math.IsInf(v.num, 0) && math.Abs(v.num) < 1e15 {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.str)
	case KindArray:
		parts := make([]string, 0, len(v.arr))
		for _, e := range v.arr {
			parts = append(parts, e.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, strconv.Quote(k)+": "+v.obj[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.bytes))
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}

// FromJS converts an engine-level value into its neutral mapping. Values with
// no mapping (functions, symbols, host objects) yield UnsupportedTypeError.
func FromJS(v goja.Value) (Value, error) {
	if v == nil || goja.IsUndefined(v) {
		return Undefined(), nil
	}
	if goja.IsNull(v) {
		return Null(), nil
	}
	return fromExport(v.Export())
}

func fromExport(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Boolean(t), nil
	case int64:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(t), nil
	case goja.ArrayBuffer:
		return Bytes(t.Bytes()), nil
	case []any:
		elems := make([]Value, 0, len(t))
		for _, e := range t {
			ev, err := fromExport(e)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, ev)
		}
		return Value{kind: KindArray, arr: elems}, nil
	case map[string]any:
		props := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := fromExport(e)
			if err != nil {
				return Value{}, err
			}
			props[k] = ev
		}
		return Value{kind: KindObject, obj: props}, nil
	default:
		rt := reflect.TypeOf(x)
		name := rt.String()
		if rt.Kind() == reflect.Func {
			name = "function"
		}
		return Value{}, &UnsupportedTypeError{Type: name}
	}
}

func (c *Context) toJS(v Value) goja.Value {
	switch v.kind {
	case KindUndefined:
		return goja.Undefined()
	case KindNull:
		return goja.Null()
	case KindBoolean:
		return c.rt.ToValue(v.b)
	case KindNumber:
		return c.rt.ToValue(v.num)
	case KindString:
		return c.rt.ToValue(v.str)
	case KindArray:
		elems := make([]any, 0, len(v.arr))
		for _, e := range v.arr {
			elems = append(elems, c.toJS(e))
		}
		return c.rt.NewArray(elems...)
	case KindObject:
		obj := c.rt.NewObject()
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_ = obj.Set(k, c.toJS(v.obj[k]))
		}
		return obj
	case KindBytes:
		buf := v.bytes
		if c.pool != nil {
			if ref, err := c.pool.Store(v.bytes); err == nil {
				buf = c.pool.Bytes(ref)
			}
		}
		return c.rt.ToValue(c.rt.NewArrayBuffer(buf))
	default:
		return goja.Undefined()
	}
}
