package nbt

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sampleDoc() Compound {
	return Compound{
		"Level": Compound{
			"v":        Byte(1),
			"x":        Int(-3),
			"y":        Int(70),
			"z":        Int(12),
			"name":     String("cube"),
			"time":     Long(1 << 40),
			"ratio":    Float(0.5),
			"height":   Double(-12.25),
			"short":    Short(-2),
			"Blocks":   ByteArray{1, 2, 3},
			"Heights":  IntArray{1, -1, 1 << 30},
			"States":   LongArray{-5, 7},
			"Entities": NewList(TagCompound),
			"Pos":      NewList(TagDouble, Double(1), Double(2), Double(3)),
			"Sections": NewList(TagCompound, Compound{"Y": Byte(0)}),
		},
	}
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	doc := sampleDoc()
	raw, err := Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, byte(TagCompound), raw[0])
	got, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, emptyListsAsEnd(doc), got)

	level, ok := got.Compound("Level")
	require.True(t, ok)
	ents, ok := level.List("Entities")
	require.True(t, ok)
	assert.Equal(t, 0, ents.Len())
	pos, ok := level.List("Pos")
	require.True(t, ok)
	assert.Equal(t, TagDouble, pos.Elem)
}

// An empty compound list is written with its declared element type, which
// vanilla readers check before appending.
func TestMarshal_EmptyListElementType(t *testing.T) {
	raw, err := Marshal(Compound{"E": NewList(TagCompound)})
	require.NoError(t, err)
	want := []byte{byte(TagList), 0, 1, 'E', byte(TagCompound), 0, 0, 0, 0, byte(TagEnd)}
	assert.True(t, bytes.Contains(raw, want), "% x", raw)
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte{byte(TagInt), 0, 0, 0, 0, 0, 1})
	assert.ErrorIs(t, err, ErrNotCompound)
	_, err = Unmarshal(nil)
	assert.ErrorIs(t, err, ErrNotCompound)

	raw, err := Marshal(sampleDoc())
	require.NoError(t, err)
	_, err = Unmarshal(raw[:len(raw)-3])
	assert.Error(t, err)

	_, err = Unmarshal([]byte{byte(TagCompound), 0, 0, 42})
	assert.Error(t, err)

	// A byte array claiming more bytes than remain.
	_, err = Unmarshal([]byte{byte(TagCompound), 0, 0, byte(TagByteArray), 0, 1, 'a', 0x7f, 0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestClone_IsDeep(t *testing.T) {
	doc := sampleDoc()
	cp := doc.Clone()
	level, _ := cp.Compound("Level")
	blocks, _ := level.ByteArray("Blocks")
	blocks[0] = 99
	level.Put("x", Int(100))

	orig, _ := doc.Compound("Level")
	ob, _ := orig.ByteArray("Blocks")
	assert.Equal(t, byte(1), ob[0])
	x, _ := orig.Int("x")
	assert.Equal(t, int32(-3), x)
}

func TestFamilies(t *testing.T) {
	doc := sampleDoc()
	for _, f := range []Family{FamilyCubic, FamilyPrefixed} {
		t.Run(f.String(), func(t *testing.T) {
			data, err := Write(f, doc)
			require.NoError(t, err)
			if f == FamilyCubic {
				assert.Equal(t, []byte{0x1f, 0x8b}, data[:2], "bare gzip magic")
			} else {
				assert.Equal(t, SchemeGzip, data[0])
			}
			got, err := Read(f, data)
			require.NoError(t, err)
			assert.Equal(t, emptyListsAsEnd(doc), got)
		})
	}
}

func TestPrefixed_ReadsZlib(t *testing.T) {
	raw, err := Marshal(sampleDoc())
	require.NoError(t, err)
	var buf bytes.Buffer
	buf.WriteByte(SchemeZlib)
	zw := zlib.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got, err := Read(FamilyPrefixed, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, emptyListsAsEnd(sampleDoc()), got)
}

func TestPrefixed_UnknownScheme(t *testing.T) {
	_, err := Read(FamilyPrefixed, []byte{7, 1, 2})
	assert.ErrorIs(t, err, ErrUnknownCompression)
	_, err = Read(FamilyPrefixed, nil)
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		doc := Compound{}
		n := rapid.IntRange(0, 8).Draw(rt, "n")
		for i := 0; i < n; i++ {
			name := rapid.StringN(0, 12, 64).Draw(rt, "name")
			switch rapid.IntRange(0, 3).Draw(rt, "kind") {
			case 0:
				doc[name] = Int(rapid.Int32().Draw(rt, "int"))
			case 1:
				doc[name] = ByteArray(rapid.SliceOf(rapid.Byte()).Draw(rt, "bytes"))
			case 2:
				doc[name] = String(rapid.StringN(0, 20, 100).Draw(rt, "str"))
			case 3:
				doc[name] = NewList(TagLong, Long(rapid.Int64().Draw(rt, "long")))
			}
		}
		raw, err := Marshal(doc)
		if err != nil {
			rt.Fatalf("marshal: %v", err)
		}
		got, err := Unmarshal(raw)
		if err != nil {
			rt.Fatalf("unmarshal: %v", err)
		}
		assert.Equal(rt, normalize(doc), got)
	})
}

// normalize maps nil byte arrays to empty ones, matching what decoding yields.
func normalize(c Compound) Compound {
	out := Compound{}
	for k, v := range c {
		if b, ok := v.(ByteArray); ok && b == nil {
			v = ByteArray{}
		}
		out[k] = v
	}
	return out
}

// emptyListsAsEnd returns a deep copy of c where empty lists have element type
// TagEnd, matching what decoding yields.
func emptyListsAsEnd(c Compound) Compound {
	out := c.Clone()
	var walk func(Tag)
	walk = func(t Tag) {
		switch v := t.(type) {
		case Compound:
			for _, e := range v {
				walk(e)
			}
		case *List:
			if v.Len() == 0 {
				v.Elem = TagEnd
			}
			for _, e := range v.Items {
				walk(e)
			}
		}
	}
	walk(out)
	return out
}
