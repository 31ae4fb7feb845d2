// Package nbt models the named binary tag documents stored in region entries:
// a typed tag tree, its big-endian binary codec, and the compression families
// that wrap encoded documents on disk.
package nbt

import "fmt"

// TagType is the on-wire type id of a tag.
type TagType byte

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagNames = [...]string{
	"End", "Byte", "Short", "Int", "Long", "Float", "Double",
	"ByteArray", "String", "List", "Compound", "IntArray", "LongArray",
}

func (t TagType) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("TagType(%d)", byte(t))
}

// Tag is any node of the document tree.
type Tag interface {
	Type() TagType
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []byte
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() TagType      { return TagByte }
func (Short) Type() TagType     { return TagShort }
func (Int) Type() TagType       { return TagInt }
func (Long) Type() TagType      { return TagLong }
func (Float) Type() TagType     { return TagFloat }
func (Double) Type() TagType    { return TagDouble }
func (ByteArray) Type() TagType { return TagByteArray }
func (String) Type() TagType    { return TagString }
func (IntArray) Type() TagType  { return TagIntArray }
func (LongArray) Type() TagType { return TagLongArray }

// List is a homogeneous sequence of tags. Elem is kept even when the list is
// empty so that re-encoding preserves the declared element type.
type List struct {
	Elem  TagType
	Items []Tag
}

// NewList returns a list of elem holding items.
func NewList(elem TagType, items ...Tag) *List {
	return &List{Elem: elem, Items: items}
}

func (*List) Type() TagType { return TagList }

// Len returns the number of items.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// Compounds returns the compound items of the list, skipping anything else.
func (l *List) Compounds() []Compound {
	if l == nil {
		return nil
	}
	out := make([]Compound, 0, len(l.Items))
	for _, it := range l.Items {
		if c, ok := it.(Compound); ok {
			out = append(out, c)
		}
	}
	return out
}

// Compound is a set of named tags.
type Compound map[string]Tag

func (Compound) Type() TagType { return TagCompound }

// Put stores tag under name.
func (c Compound) Put(name string, tag Tag) { c[name] = tag }

// Remove deletes name.
func (c Compound) Remove(name string) { delete(c, name) }

// Has reports whether name is present with type t.
func (c Compound) Has(name string, t TagType) bool {
	v, ok := c[name]
	return ok && v.Type() == t
}

// Byte returns the byte tag name.
func (c Compound) Byte(name string) (int8, bool) {
	v, ok := c[name].(Byte)
	return int8(v), ok
}

// Short returns the short tag name.
func (c Compound) Short(name string) (int16, bool) {
	v, ok := c[name].(Short)
	return int16(v), ok
}

// Int returns the int tag name.
func (c Compound) Int(name string) (int32, bool) {
	v, ok := c[name].(Int)
	return int32(v), ok
}

// Long returns the long tag name.
func (c Compound) Long(name string) (int64, bool) {
	v, ok := c[name].(Long)
	return int64(v), ok
}

// StringValue returns the string tag name.
func (c Compound) StringValue(name string) (string, bool) {
	v, ok := c[name].(String)
	return string(v), ok
}

// ByteArray returns the byte array tag name. The slice aliases the tree.
func (c Compound) ByteArray(name string) ([]byte, bool) {
	v, ok := c[name].(ByteArray)
	return v, ok
}

// IntArray returns the int array tag name. The slice aliases the tree.
func (c Compound) IntArray(name string) ([]int32, bool) {
	v, ok := c[name].(IntArray)
	return v, ok
}

// Compound returns the nested compound name.
func (c Compound) Compound(name string) (Compound, bool) {
	v, ok := c[name].(Compound)
	return v, ok
}

// List returns the list tag name.
func (c Compound) List(name string) (*List, bool) {
	v, ok := c[name].(*List)
	return v, ok && v != nil
}

// Clone returns a deep copy of c.
func (c Compound) Clone() Compound {
	if c == nil {
		return nil
	}
	return Clone(c).(Compound)
}

// Clone returns a deep copy of t.
func Clone(t Tag) Tag {
	switch v := t.(type) {
	case ByteArray:
		return append(ByteArray(nil), v...)
	case IntArray:
		return append(IntArray(nil), v...)
	case LongArray:
		return append(LongArray(nil), v...)
	case *List:
		if v == nil {
			return v
		}
		var items []Tag
		if v.Items != nil {
			items = make([]Tag, len(v.Items))
		}
		for i, it := range v.Items {
			items[i] = Clone(it)
		}
		return &List{Elem: v.Elem, Items: items}
	case Compound:
		out := make(Compound, len(v))
		for k, it := range v {
			out[k] = Clone(it)
		}
		return out
	default:
		return t
	}
}
