// Package value is the tagged-variant representation of remote call arguments.
//
// A Value is one of null, bool, int, float, string, array or record. Records keep their
// fields in insertion order, which is also the order they are serialized in, so the bytes
// sent to the editor are stable for a given argument list. Values are immutable: every
// accessor that exposes children returns a copy.
package value

import (
	"errors"
	"fmt"
	"math"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindRecord
)

var kindNames = [...]string{"null", "bool", "int", "float", "string", "array", "record"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is an immutable tagged union. The zero Value is null.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	items  []Value
	fields []Field
}

// Field is one key/value pair of a record.
type Field struct {
	Key   string
	Value Value
}

// F is shorthand for building a record field.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array builds an array value. The slice is copied.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value(nil), items...)}
}

// Record builds a record value with fields in the given order. The slice is copied.
// Use Validate to reject duplicate or empty keys.
func Record(fields ...Field) Value {
	return Value{kind: KindRecord, fields: append([]Field(nil), fields...)}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean and whether v is a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer and whether v is an int.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns v as a float64. Ints are widened.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Str returns the string and whether v is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Len is the number of array items or record fields.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindRecord:
		return len(v.fields)
	}
	return 0
}

// Index returns the i-th array item, or null when out of range or not an array.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.items) {
		return Null()
	}
	return v.items[i]
}

// Get returns the first field named key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindRecord {
		return Null(), false
	}
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Null(), false
}

// Fields returns a copy of the record fields in order.
func (v Value) Fields() []Field {
	if v.kind != KindRecord {
		return nil
	}
	return append([]Field(nil), v.fields...)
}

// Items returns a copy of the array items.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return append([]Value(nil), v.items...)
}

var (
	ErrNonFinite    = errors.New("value: float is NaN or infinite")
	ErrEmptyKey     = errors.New("value: record key is empty")
	ErrDuplicateKey = errors.New("value: duplicate record key")
)

// Validate checks that v can be represented on the wire: floats must be finite and
// record keys must be non-empty and unique within their record.
func (v Value) Validate() error {
	return v.validate("$")
}

func (v Value) validate(path string) error {
	switch v.kind {
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("%s: %w", path, ErrNonFinite)
		}
	case KindArray:
		for i, item := range v.items {
			if err := item.validate(fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case KindRecord:
		seen := make(map[string]struct{}, len(v.fields))
		for _, f := range v.fields {
			if f.Key == "" {
				return fmt.Errorf("%s: %w", path, ErrEmptyKey)
			}
			if _, dup := seen[f.Key]; dup {
				return fmt.Errorf("%s.%s: %w", path, f.Key, ErrDuplicateKey)
			}
			seen[f.Key] = struct{}{}
			if err := f.Value.validate(path + "." + f.Key); err != nil {
				return err
			}
		}
	case KindNull, KindBool, KindInt, KindString:
	default:
		return fmt.Errorf("%s: unknown kind %d", path, v.kind)
	}
	return nil
}

// Equal reports deep equality. Record field order is significant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Key != o.fields[i].Key || !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}
