package nbt

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	gnbt "github.com/sandertv/gophertunnel/minecraft/nbt"
)

// ErrNotCompound is returned when the root tag is not a compound.
var ErrNotCompound = errors.New("nbt: root tag is not a compound")

// Unmarshal decodes a big-endian document with a compound root, ignoring the
// root's name.
//
// Empty lists come back with element type TagEnd: the decoded form does not
// keep the declared type of a list without items.
func Unmarshal(data []byte) (Compound, error) {
	if len(data) == 0 || TagType(data[0]) != TagCompound {
		got := TagEnd
		if len(data) > 0 {
			got = TagType(data[0])
		}
		return nil, fmt.Errorf("%w: got %v", ErrNotCompound, got)
	}
	var m map[string]any
	if err := gnbt.NewDecoderWithEncoding(bytes.NewReader(data), gnbt.BigEndian).Decode(&m); err != nil {
		return nil, fmt.Errorf("nbt: decoding: %w", err)
	}
	c, err := fromMap(m)
	if err != nil {
		return nil, fmt.Errorf("nbt: decoding: %w", err)
	}
	return c, nil
}

// Marshal encodes root as an unnamed big-endian root compound. Entry order
// within compounds is not fixed.
func Marshal(root Compound) ([]byte, error) {
	m, err := toMap(root)
	if err != nil {
		return nil, fmt.Errorf("nbt: encoding: %w", err)
	}
	var buf bytes.Buffer
	if err := gnbt.NewEncoderWithEncoding(&buf, gnbt.BigEndian).Encode(m); err != nil {
		return nil, fmt.Errorf("nbt: encoding: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	byteType  = reflect.TypeOf(uint8(0))
	int32Type = reflect.TypeOf(int32(0))
	int64Type = reflect.TypeOf(int64(0))
	mapType   = reflect.TypeOf(map[string]any(nil))
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
)

func toMap(c Compound) (map[string]any, error) {
	m := make(map[string]any, len(c))
	for name, t := range c {
		v, err := toValue(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		m[name] = v
	}
	return m, nil
}

// toValue maps t onto the Go value the encoder writes as t's tag type. Arrays
// become Go arrays because the encoder writes slices as lists.
func toValue(t Tag) (any, error) {
	switch v := t.(type) {
	case Byte:
		return uint8(v), nil
	case Short:
		return int16(v), nil
	case Int:
		return int32(v), nil
	case Long:
		return int64(v), nil
	case Float:
		return float32(v), nil
	case Double:
		return float64(v), nil
	case String:
		return string(v), nil
	case ByteArray:
		return array(byteType, reflect.ValueOf([]byte(v))), nil
	case IntArray:
		return array(int32Type, reflect.ValueOf([]int32(v))), nil
	case LongArray:
		return array(int64Type, reflect.ValueOf([]int64(v))), nil
	case Compound:
		return toMap(v)
	case *List:
		return listValue(v)
	case nil:
		return nil, errors.New("nil tag")
	default:
		return nil, fmt.Errorf("unsupported tag %T", t)
	}
}

func array(elem reflect.Type, src reflect.Value) any {
	arr := reflect.New(reflect.ArrayOf(src.Len(), elem)).Elem()
	reflect.Copy(arr, src)
	return arr.Interface()
}

// listValue builds a slice typed after l.Elem so that an empty list is still
// written with its element type. Element types without a fixed Go type use
// []any.
func listValue(l *List) (any, error) {
	if l == nil {
		return []any{}, nil
	}
	var elem reflect.Type
	switch l.Elem {
	case TagByte:
		elem = byteType
	case TagShort:
		elem = reflect.TypeOf(int16(0))
	case TagInt:
		elem = int32Type
	case TagLong:
		elem = int64Type
	case TagFloat:
		elem = reflect.TypeOf(float32(0))
	case TagDouble:
		elem = reflect.TypeOf(float64(0))
	case TagString:
		elem = reflect.TypeOf("")
	case TagCompound:
		elem = mapType
	default:
		elem = anyType
	}
	out := reflect.MakeSlice(reflect.SliceOf(elem), len(l.Items), len(l.Items))
	for i, it := range l.Items {
		if it == nil || (l.Elem != TagEnd && it.Type() != l.Elem) {
			return nil, fmt.Errorf("list of %v holds %T at %d", l.Elem, it, i)
		}
		v, err := toValue(it)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(v))
	}
	return out.Interface(), nil
}

func fromMap(m map[string]any) (Compound, error) {
	c := make(Compound, len(m))
	for name, v := range m {
		t, err := fromValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		c[name] = t
	}
	return c, nil
}

func fromValue(v any) (Tag, error) {
	switch v := v.(type) {
	case uint8:
		return Byte(int8(v)), nil
	case int8:
		return Byte(v), nil
	case bool:
		if v {
			return Byte(1), nil
		}
		return Byte(0), nil
	case int16:
		return Short(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Long(v), nil
	case float32:
		return Float(v), nil
	case float64:
		return Double(v), nil
	case string:
		return String(v), nil
	case map[string]any:
		return fromMap(v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		switch rv.Type().Elem().Kind() {
		case reflect.Uint8:
			out := make(ByteArray, rv.Len())
			reflect.Copy(reflect.ValueOf([]byte(out)), rv)
			return out, nil
		case reflect.Int32:
			out := make(IntArray, rv.Len())
			reflect.Copy(reflect.ValueOf([]int32(out)), rv)
			return out, nil
		case reflect.Int64:
			out := make(LongArray, rv.Len())
			reflect.Copy(reflect.ValueOf([]int64(out)), rv)
			return out, nil
		}
	case reflect.Slice:
		l := &List{Elem: TagEnd}
		if rv.Len() > 0 {
			l.Items = make([]Tag, rv.Len())
		}
		for i := range l.Items {
			t, err := fromValue(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l.Items[i] = t
		}
		if len(l.Items) > 0 {
			l.Elem = l.Items[0].Type()
		}
		return l, nil
	}
	return nil, fmt.Errorf("unsupported decoded value %T", v)
}
