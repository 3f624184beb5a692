package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// MarshalJSON encodes v with record fields in declaration order.
//
// An integral Float is written without a fraction (Float(3) becomes 3), so Parse reads
// it back as Int. The wire form carries no int/float distinction; editor handlers that
// declare an integer field accept it either way.
func (v Value) MarshalJSON() ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		b, err := json.Marshal(v.f)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindRecord:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("value: cannot encode kind %d", v.kind)
	}
	return nil
}

// UnmarshalJSON decodes JSON into v, preserving object key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse decodes a single JSON document. Object key order is preserved; numbers
// without a fraction or exponent that fit in int64 become Int, the rest Float.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return Null(), fmt.Errorf("value: parse: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Null(), errors.New("value: parse: trailing data after document")
	}
	if err := v.Validate(); err != nil {
		return Null(), err
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null(), err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return fromNumber(t)
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := parseValue(dec)
				if err != nil {
					return Null(), err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return Value{kind: KindArray, items: items}, nil
		case '{':
			var fields []Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null(), fmt.Errorf("unexpected object key %v", keyTok)
				}
				fv, err := parseValue(dec)
				if err != nil {
					return Null(), err
				}
				fields = append(fields, Field{Key: key, Value: fv})
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return Value{kind: KindRecord, fields: fields}, nil
		}
	}
	return Null(), fmt.Errorf("unexpected token %v", tok)
}

func fromNumber(n json.Number) (Value, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return Null(), fmt.Errorf("invalid number %q: %w", n, err)
	}
	return Float(f), nil
}

// FromAny converts plain Go data into a Value. Maps become records with keys sorted,
// since Go maps carry no order. Supported inputs: nil, bool, the integer and float
// kinds, string, json.Number, []any, map[string]any, []Value and Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, t.Validate()
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		if uint64(t) > 1<<63-1 {
			return Null(), fmt.Errorf("value: %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case uint64:
		if t > 1<<63-1 {
			return Null(), fmt.Errorf("value: %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case float32:
		return checked(Float(float64(t)))
	case float64:
		return checked(Float(t))
	case string:
		return String(t), nil
	case json.Number:
		return fromNumber(t)
	case []Value:
		return checked(Array(t...))
	case []any:
		items := make([]Value, 0, len(t))
		for i, e := range t {
			item, err := FromAny(e)
			if err != nil {
				return Null(), fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		return Value{kind: KindArray, items: items}, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(t))
		for _, k := range keys {
			fv, err := FromAny(t[k])
			if err != nil {
				return Null(), fmt.Errorf("%s: %w", k, err)
			}
			fields = append(fields, Field{Key: k, Value: fv})
		}
		return checked(Value{kind: KindRecord, fields: fields})
	}
	return Null(), fmt.Errorf("value: unsupported type %T", x)
}

func checked(v Value) (Value, error) {
	if err := v.Validate(); err != nil {
		return Null(), err
	}
	return v, nil
}
